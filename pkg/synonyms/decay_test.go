package synonyms

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/bramble/pkg/models"
)

func newSynonym(confidence float64, supportCount int, lastConfirmed time.Time) *models.Synonym {
	return &models.Synonym{
		ID:              "syn-1",
		Confidence:      confidence,
		SupportCount:    supportCount,
		LastConfirmedAt: lastConfirmed,
	}
}

func engineAt(now time.Time) *DecayEngine {
	e := NewDecayEngine(DefaultDecayConfig())
	e.now = func() time.Time { return now }
	return e
}

func TestEffectiveConfidence_FreshSynonym(t *testing.T) {
	now := time.Now().UTC()
	e := engineAt(now)

	syn := newSynonym(0.85, 1, now)
	effective := e.EffectiveConfidence(syn)

	// No decay yet, small boost from supportCount=1.
	boost := 0.15 / math.Log(51) * math.Log(2)
	assert.InDelta(t, 0.85+boost, effective, 1e-9)
}

func TestEffectiveConfidence_DecaysOverTime(t *testing.T) {
	now := time.Now().UTC()
	e := engineAt(now)

	fresh := e.EffectiveConfidence(newSynonym(0.85, 1, now))
	aged := e.EffectiveConfidence(newSynonym(0.85, 1, now.Add(-365*24*time.Hour)))
	ancient := e.EffectiveConfidence(newSynonym(0.85, 1, now.Add(-5*365*24*time.Hour)))

	// Monotonic non-increasing in elapsed time.
	assert.Greater(t, fresh, aged)
	assert.Greater(t, aged, ancient)

	// One year at lambda=0.001/day decays base by exp(-0.365).
	boost := 0.15 / math.Log(51) * math.Log(2)
	assert.InDelta(t, 0.85*math.Exp(-0.365)+boost, aged, 1e-9)
}

func TestEffectiveConfidence_BoostMonotonicAndCapped(t *testing.T) {
	now := time.Now().UTC()
	e := engineAt(now)

	low := e.EffectiveConfidence(newSynonym(0.5, 1, now))
	mid := e.EffectiveConfidence(newSynonym(0.5, 10, now))
	high := e.EffectiveConfidence(newSynonym(0.5, 50, now))
	beyond := e.EffectiveConfidence(newSynonym(0.5, 5000, now))

	assert.Less(t, low, mid)
	assert.Less(t, mid, high)

	// supportCount at the target earns the full cap; beyond it, no more.
	assert.InDelta(t, 0.65, high, 1e-6)
	assert.InDelta(t, 0.65, beyond, 1e-9)
}

func TestEffectiveConfidence_Clamped(t *testing.T) {
	now := time.Now().UTC()
	e := engineAt(now)

	assert.LessOrEqual(t, e.EffectiveConfidence(newSynonym(0.99, 5000, now)), 1.0)
	assert.GreaterOrEqual(t, e.EffectiveConfidence(newSynonym(0.0, 1, now.Add(-10000*24*time.Hour))), 0.0)
}

func TestEffectiveConfidence_FutureTimestampNoBonus(t *testing.T) {
	now := time.Now().UTC()
	e := engineAt(now)

	future := e.EffectiveConfidence(newSynonym(0.85, 1, now.Add(time.Hour)))
	fresh := e.EffectiveConfidence(newSynonym(0.85, 1, now))
	assert.Equal(t, fresh, future)
}

func TestShouldTriggerReview(t *testing.T) {
	now := time.Now().UTC()
	e := engineAt(now)

	// Base above the threshold but decayed below it.
	decayed := newSynonym(0.82, 1, now.Add(-3*365*24*time.Hour))
	assert.True(t, e.ShouldTriggerReview(decayed, 0.80))

	// Fresh synonym above threshold: no review.
	fresh := newSynonym(0.82, 1, now)
	assert.False(t, e.ShouldTriggerReview(fresh, 0.80))

	// Base never reached the threshold: not a decay problem.
	weak := newSynonym(0.50, 1, now.Add(-3*365*24*time.Hour))
	assert.False(t, e.ShouldTriggerReview(weak, 0.80))
}

func TestIsStale(t *testing.T) {
	now := time.Now().UTC()
	e := engineAt(now)

	assert.False(t, e.IsStale(newSynonym(0.85, 1, now), 0.60))
	assert.True(t, e.IsStale(newSynonym(0.62, 1, now.Add(-5*365*24*time.Hour)), 0.60))
}

func TestPenalizedConfidence(t *testing.T) {
	e := NewDecayEngine(DefaultDecayConfig())

	assert.InDelta(t, 0.60, e.PenalizedConfidence(0.80), 1e-9)
	assert.InDelta(t, 0.0, e.PenalizedConfidence(0.0), 1e-9)
}
