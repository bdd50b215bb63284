package lexical

import (
	"math"

	"github.com/Jumawebhub/qlex/internal/models"
)

// Scorer computes keyword-overlap scores for a candidate set. Rare query
// terms (within the candidate set) weigh more than common ones, so a chunk
// matching the discriminating term of a query outranks one matching only its
// generic terms.
type Scorer struct{}

// NewScorer creates a lexical scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// ScoreCandidates returns a score in [0, 1] for every chunk in candidates.
// The score is the IDF-weighted fraction of distinct query terms present in
// the chunk, with a small term-frequency bonus for repeated matches. A chunk
// containing every query term scores close to 1; a chunk containing none
// scores 0. Scoring depends only on the query and the candidate set, never
// on external state.
func (s *Scorer) ScoreCandidates(query string, candidates []*models.Chunk) map[string]float64 {
	scores := make(map[string]float64, len(candidates))
	terms := UniqueTerms(query)
	if len(terms) == 0 {
		for _, c := range candidates {
			scores[c.ID] = 0
		}
		return scores
	}

	// Tokenize each candidate once; count term frequencies.
	freqs := make([]map[string]int, len(candidates))
	for i, c := range candidates {
		tf := make(map[string]int)
		for _, tok := range Tokenize(c.Text) {
			tf[tok]++
		}
		freqs[i] = tf
	}

	// Candidate-set IDF: idf(t) = ln(1 + N/(1+df)). Terms appearing in every
	// candidate still carry a small positive weight.
	n := float64(len(candidates))
	idf := make(map[string]float64, len(terms))
	var idfTotal float64
	for _, t := range terms {
		df := 0
		for _, tf := range freqs {
			if tf[t] > 0 {
				df++
			}
		}
		w := math.Log(1 + n/float64(1+df))
		idf[t] = w
		idfTotal += w
	}
	if idfTotal == 0 {
		for _, c := range candidates {
			scores[c.ID] = 0
		}
		return scores
	}

	for i, c := range candidates {
		var matched float64
		for _, t := range terms {
			count := freqs[i][t]
			if count == 0 {
				continue
			}
			// Saturating TF bonus: a second occurrence adds half weight, a
			// third a third, capped so coverage dominates frequency.
			tfBonus := math.Min(1+0.25*math.Log(float64(count)), 1.25)
			matched += idf[t] * tfBonus
		}
		score := matched / (idfTotal * 1.25)
		if score > 1 {
			score = 1
		}
		scores[c.ID] = score
	}
	return scores
}
