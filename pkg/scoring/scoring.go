// Package scoring compares normalized names with a weighted composite of
// string similarity measures.
package scoring

import (
	"strings"

	"github.com/Ramsey-B/bramble/pkg/models"
)

// Weights for the composite score. Must sum to 1.0; validated at config load.
type Weights struct {
	Levenshtein float64
	JaroWinkler float64
	Jaccard     float64
}

// DefaultWeights returns the standard weighting.
func DefaultWeights() Weights {
	return Weights{Levenshtein: 0.40, JaroWinkler: 0.35, Jaccard: 0.25}
}

// Scorer provides string comparison algorithms over normalized names
type Scorer struct {
	weights Weights
}

// NewScorer creates a new Scorer
func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Score returns the weighted composite similarity in [0,1]. Exact equality
// shortcuts to 1.0.
func (s *Scorer) Score(a, b string) float64 {
	if a == b {
		return 1.0
	}

	composite := s.weights.Levenshtein*s.Levenshtein(a, b) +
		s.weights.JaroWinkler*s.JaroWinkler(a, b) +
		s.weights.Jaccard*s.TokenJaccard(a, b)

	return clamp(composite)
}

// Levenshtein returns the edit-distance ratio between 0.0 and 1.0
func (s *Scorer) Levenshtein(a, b string) float64 {
	distance := s.LevenshteinDistance(a, b)
	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(distance)/float64(maxLen)
}

// LevenshteinDistance calculates the edit distance between two strings
func (s *Scorer) LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Two-row dynamic programming
	row := make([]int, len(b)+1)
	prevRow := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prevRow[j] = j
	}

	for i := 1; i <= len(a); i++ {
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			row[j] = min(min(row[j-1]+1, prevRow[j]+1), prevRow[j-1]+cost)
		}
		row, prevRow = prevRow, row
	}

	return prevRow[len(b)]
}

// JaroWinkler calculates the Jaro-Winkler similarity between two strings
// Returns a value between 0.0 (no similarity) and 1.0 (exact match)
func (s *Scorer) JaroWinkler(a, b string) float64 {
	if a == b {
		return 1.0
	}

	jaro := s.Jaro(a, b)

	// Winkler modification: boost for common prefix, capped at 4 characters
	prefixLen := 0
	maxPrefix := 4
	for i := 0; i < len(a) && i < len(b) && i < maxPrefix; i++ {
		if a[i] == b[i] {
			prefixLen++
		} else {
			break
		}
	}

	scalingFactor := 0.1
	return jaro + float64(prefixLen)*scalingFactor*(1.0-jaro)
}

// Jaro calculates the Jaro similarity between two strings
func (s *Scorer) Jaro(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	// Maximum distance for character matching
	matchDist := max(len(a), len(b))/2 - 1
	if matchDist < 0 {
		matchDist = 0
	}

	aMatches := make([]bool, len(a))
	bMatches := make([]bool, len(b))

	matches := 0
	transpositions := 0

	// Find matches
	for i := 0; i < len(a); i++ {
		start := max(0, i-matchDist)
		end := min(len(b), i+matchDist+1)

		for j := start; j < end; j++ {
			if bMatches[j] || a[i] != b[j] {
				continue
			}
			aMatches[i] = true
			bMatches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	// Count transpositions
	k := 0
	for i := 0; i < len(a); i++ {
		if !aMatches[i] {
			continue
		}
		for !bMatches[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	t := float64(transpositions) / 2

	return (m/float64(len(a)) + m/float64(len(b)) + (m-t)/m) / 3
}

// TokenJaccard computes set overlap on whitespace-split tokens.
func (s *Scorer) TokenJaccard(a, b string) float64 {
	aTokens := strings.Fields(a)
	bTokens := strings.Fields(b)
	if len(aTokens) == 0 && len(bTokens) == 0 {
		return 1.0
	}
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return 0.0
	}

	aSet := make(map[string]struct{}, len(aTokens))
	for _, tok := range aTokens {
		aSet[tok] = struct{}{}
	}
	bSet := make(map[string]struct{}, len(bTokens))
	for _, tok := range bTokens {
		bSet[tok] = struct{}{}
	}

	intersection := 0
	for tok := range aSet {
		if _, ok := bSet[tok]; ok {
			intersection++
		}
	}
	union := len(aSet) + len(bSet) - intersection

	return float64(intersection) / float64(union)
}

// BetterCandidate reports whether candidate a beats candidate b given their
// composite scores. Ties resolve by candidate confidence, then older
// createdAt, so ranking is deterministic across instances.
func BetterCandidate(scoreA float64, a *models.Entity, scoreB float64, b *models.Entity) bool {
	if scoreA != scoreB {
		return scoreA > scoreB
	}
	if a.ConfidenceScore != b.ConfidenceScore {
		return a.ConfidenceScore > b.ConfidenceScore
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
