// Package llm answers questions over retrieved context through an
// OpenAI-compatible chat completions API.
package llm

import (
	"fmt"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const defaultSystemPrompt = `You are a legal expert.

# Instructions
- Use the provided context to analyze the user's question thoroughly
- Implement chain-of-thought reasoning by breaking down your analysis step by step
- First carefully examine the relevant sections from the provided context
- Think about what legal principles apply to this situation
- Consider multiple perspectives and interpretations if applicable
- Draw connections between different parts of the context
- Formulate a comprehensive and legally sound analysis
- Cite specific articles, sections, or provisions when possible
- Clearly separate your reasoning process from your final conclusion
- If you don't know the answer or it's not in the context, state this clearly

# Output Format
Structure your response with these sections:
1. SOURCES: A brief bulleted list of the most relevant source documents you're drawing from
2. ANALYSIS: Your step-by-step reasoning about the question (this should be detailed)
3. APPLICABLE PROVISIONS: Specific articles, sections, or legal provisions that apply
4. CONCLUSION: Your final answer based on the analysis

# Context
%s
`

// SystemPrompt builds the system message for a query. When the dataset
// carries custom instructions they replace the default prompt entirely,
// context included; datasets that want grounding must say so in their own
// instructions.
func SystemPrompt(context, customInstructions string) string {
	if customInstructions != "" {
		return customInstructions
	}
	return fmt.Sprintf(defaultSystemPrompt, context)
}

// BuildMessages assembles the message list: system prompt, then the trailing
// historyLimit turns of history (system turns skipped), then the user query.
func BuildMessages(query, context, customInstructions string, history []Message, historyLimit int) []Message {
	messages := []Message{{Role: RoleSystem, Content: SystemPrompt(context, customInstructions)}}

	filtered := make([]Message, 0, len(history))
	for _, m := range history {
		if m.Role == RoleSystem {
			continue
		}
		filtered = append(filtered, m)
	}
	if historyLimit > 0 && len(filtered) > historyLimit {
		filtered = filtered[len(filtered)-historyLimit:]
	}
	messages = append(messages, filtered...)

	return append(messages, Message{Role: RoleUser, Content: query})
}
