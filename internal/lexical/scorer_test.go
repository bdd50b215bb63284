package lexical

import (
	"reflect"
	"testing"

	"github.com/Jumawebhub/qlex/internal/models"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "lowercases and strips punctuation",
			input: "Article 5(2) applies.",
			want:  []string{"article", "applies"},
		},
		{
			name:  "drops stopwords",
			input: "what are the penalties for non-compliance",
			want:  []string{"penalties", "non", "compliance"},
		},
		{
			name:  "splits hyphenated compounds",
			input: "dual-use goods",
			want:  []string{"dual", "use", "goods"},
		},
		{
			name:  "keeps numeric tokens",
			input: "regulation 2021/821",
			want:  []string{"regulation", "2021", "821"},
		},
		{
			name:  "empty input",
			input: "  ",
			want:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestUniqueTerms(t *testing.T) {
	got := UniqueTerms("sanctions list sanctions regime")
	want := []string{"sanctions", "list", "regime"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("UniqueTerms = %v, want %v", got, want)
	}
}

func TestScoreCandidates_Bounds(t *testing.T) {
	s := NewScorer()
	candidates := []*models.Chunk{
		{ID: "a", Text: "export controls for dual-use goods under the sanctions regime"},
		{ID: "b", Text: "agricultural subsidies and rural development funds"},
	}
	scores := s.ScoreCandidates("dual-use goods sanctions", candidates)
	for id, score := range scores {
		if score < 0 || score > 1 {
			t.Errorf("score for %s out of bounds: %f", id, score)
		}
	}
	if scores["a"] <= scores["b"] {
		t.Errorf("matching chunk should outscore non-matching: a=%f b=%f", scores["a"], scores["b"])
	}
	if scores["b"] != 0 {
		t.Errorf("chunk with no query terms should score 0, got %f", scores["b"])
	}
}

func TestScoreCandidates_RareTermsWeighMore(t *testing.T) {
	s := NewScorer()
	// "regulation" appears in every candidate; "confiscation" in one.
	candidates := []*models.Chunk{
		{ID: "common", Text: "this regulation establishes a framework"},
		{ID: "rare", Text: "confiscation of proceeds under this provision"},
		{ID: "filler", Text: "the regulation entered into force"},
	}
	scores := s.ScoreCandidates("regulation confiscation", candidates)
	if scores["rare"] <= scores["common"] {
		t.Errorf("rare-term match should outscore common-term match: rare=%f common=%f",
			scores["rare"], scores["common"])
	}
}

func TestScoreCandidates_Deterministic(t *testing.T) {
	s := NewScorer()
	candidates := []*models.Chunk{
		{ID: "a", Text: "member states shall impose effective penalties"},
		{ID: "b", Text: "penalties must be proportionate and dissuasive"},
	}
	first := s.ScoreCandidates("effective penalties", candidates)
	for i := 0; i < 10; i++ {
		again := s.ScoreCandidates("effective penalties", candidates)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d produced different scores: %v vs %v", i, first, again)
		}
	}
}

func TestScoreCandidates_EmptyQuery(t *testing.T) {
	s := NewScorer()
	candidates := []*models.Chunk{{ID: "a", Text: "some text"}}
	scores := s.ScoreCandidates("the of and", candidates)
	if scores["a"] != 0 {
		t.Errorf("stopword-only query should score 0, got %f", scores["a"])
	}
}
