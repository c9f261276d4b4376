package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/bramble/pkg/models"
)

func TestScore_ExactMatch(t *testing.T) {
	s := NewScorer(DefaultWeights())

	assert.Equal(t, 1.0, s.Score("acme widgets", "acme widgets"))
}

func TestScore_Bounds(t *testing.T) {
	s := NewScorer(DefaultWeights())

	pairs := [][2]string{
		{"acme", "acme widgets"},
		{"microsoft", "micrsoft"},
		{"a", "zzzzzzzzzz"},
		{"", "acme"},
	}
	for _, p := range pairs {
		score := s.Score(p[0], p[1])
		assert.GreaterOrEqual(t, score, 0.0, "%q vs %q", p[0], p[1])
		assert.LessOrEqual(t, score, 1.0, "%q vs %q", p[0], p[1])
	}
}

func TestScore_TypoLandsInSynonymBand(t *testing.T) {
	s := NewScorer(DefaultWeights())

	// A single-character typo in one token of a multi-token name: high edit
	// similarity, but the typo'd token drops out of the Jaccard intersection.
	score := s.Score("international business machines", "international busines machines")
	assert.InDelta(t, 0.86, score, 0.01)
	assert.GreaterOrEqual(t, score, 0.80)
	assert.Less(t, score, 0.92)
}

func TestScore_SharedTokensReachAutoMergeBand(t *testing.T) {
	s := NewScorer(DefaultWeights())

	// Names sharing most tokens exactly clear the auto-merge threshold.
	score := s.Score(
		"acme global widget manufacturing holdings international group",
		"acme global widget manufacturing holdings international groop",
	)
	assert.GreaterOrEqual(t, score, 0.92)
}

func TestScore_UnrelatedNamesLow(t *testing.T) {
	s := NewScorer(DefaultWeights())

	assert.Less(t, s.Score("acme widgets", "globex industries"), 0.60)
}

func TestLevenshtein(t *testing.T) {
	s := NewScorer(DefaultWeights())

	assert.Equal(t, 0, s.LevenshteinDistance("acme", "acme"))
	assert.Equal(t, 1, s.LevenshteinDistance("acme", "akme"))
	assert.Equal(t, 3, s.LevenshteinDistance("kitten", "sitting"))
	assert.Equal(t, 4, s.LevenshteinDistance("", "acme"))

	assert.InDelta(t, 0.75, s.Levenshtein("acme", "akme"), 1e-9)
	assert.Equal(t, 1.0, s.Levenshtein("", ""))
}

func TestJaroWinkler(t *testing.T) {
	s := NewScorer(DefaultWeights())

	assert.Equal(t, 1.0, s.JaroWinkler("acme", "acme"))
	assert.Equal(t, 0.0, s.JaroWinkler("", "acme"))

	// Classic reference pair.
	assert.InDelta(t, 0.961, s.JaroWinkler("martha", "marhta"), 0.001)

	// Prefix bonus: shared prefix scores higher than the same edit elsewhere.
	assert.Greater(t, s.JaroWinkler("prefixed", "prefixes"), s.JaroWinkler("xprefixed", "sprefixed"))
}

func TestTokenJaccard(t *testing.T) {
	s := NewScorer(DefaultWeights())

	assert.Equal(t, 1.0, s.TokenJaccard("acme widgets", "widgets acme"))
	assert.InDelta(t, 1.0/3.0, s.TokenJaccard("acme widgets", "acme industries"), 1e-9)
	assert.Equal(t, 0.0, s.TokenJaccard("acme", "globex"))
	assert.Equal(t, 1.0, s.TokenJaccard("", ""))
	assert.Equal(t, 0.0, s.TokenJaccard("", "acme"))
}

func TestBetterCandidate(t *testing.T) {
	now := time.Now().UTC()
	older := &models.Entity{ID: "a", ConfidenceScore: 0.9, CreatedAt: now.Add(-time.Hour)}
	newer := &models.Entity{ID: "b", ConfidenceScore: 0.9, CreatedAt: now}
	confident := &models.Entity{ID: "c", ConfidenceScore: 0.95, CreatedAt: now}

	// Score dominates.
	assert.True(t, BetterCandidate(0.8, newer, 0.7, older))

	// Equal score: higher candidate confidence wins.
	assert.True(t, BetterCandidate(0.8, confident, 0.8, newer))

	// Equal score and confidence: older createdAt wins.
	assert.True(t, BetterCandidate(0.8, older, 0.8, newer))
	assert.False(t, BetterCandidate(0.8, newer, 0.8, older))
}
