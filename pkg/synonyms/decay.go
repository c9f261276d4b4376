// Package synonyms manages alternative names for entities, including the
// time-decay and reinforcement model over synonym confidence.
package synonyms

import (
	"math"
	"time"

	"github.com/Ramsey-B/bramble/pkg/models"
)

// DecayConfig tunes the confidence decay and reinforcement curves.
type DecayConfig struct {
	// Lambda is the exponential decay rate per day.
	Lambda float64
	// Cap bounds the reinforcement boost.
	Cap float64
	// TargetCount is the support count at which the boost saturates at Cap.
	TargetCount int
	// Penalty is the multiplicative confidence reduction on rejection.
	Penalty float64
}

// DefaultDecayConfig returns the standard tuning.
func DefaultDecayConfig() DecayConfig {
	return DecayConfig{Lambda: 0.001, Cap: 0.15, TargetCount: 50, Penalty: 0.25}
}

// DecayEngine computes effective synonym confidence lazily at query time.
// Stored confidence is never rewritten by decay; only rejection rewrites it.
type DecayEngine struct {
	cfg DecayConfig
	k   float64
	now func() time.Time
}

// NewDecayEngine calibrates the boost coefficient so a support count of
// TargetCount earns approximately the full cap.
func NewDecayEngine(cfg DecayConfig) *DecayEngine {
	k := 0.0
	if cfg.TargetCount > 0 && cfg.Cap > 0 {
		k = cfg.Cap / math.Log(1+float64(cfg.TargetCount))
	}
	return &DecayEngine{cfg: cfg, k: k, now: time.Now}
}

// EffectiveConfidence applies exponential time decay to the stored base
// confidence and adds a logarithmic support boost, clamped to [0,1].
func (d *DecayEngine) EffectiveConfidence(syn *models.Synonym) float64 {
	days := d.now().UTC().Sub(syn.LastConfirmedAt).Hours() / 24
	if days < 0 {
		days = 0
	}

	decay := math.Exp(-d.cfg.Lambda * days)
	boost := math.Min(d.cfg.Cap, d.k*math.Log(1+float64(syn.SupportCount)))

	effective := syn.Confidence*decay + boost
	if effective < 0 {
		return 0
	}
	if effective > 1 {
		return 1
	}
	return effective
}

// ShouldTriggerReview reports whether a synonym was usable at its base
// confidence but has decayed below the synonym threshold.
func (d *DecayEngine) ShouldTriggerReview(syn *models.Synonym, synonymThreshold float64) bool {
	return d.EffectiveConfidence(syn) < synonymThreshold && syn.Confidence >= synonymThreshold
}

// IsStale reports whether the synonym has decayed below the review threshold.
func (d *DecayEngine) IsStale(syn *models.Synonym, reviewThreshold float64) bool {
	return d.EffectiveConfidence(syn) < reviewThreshold
}

// PenalizedConfidence returns the base confidence after one rejection.
func (d *DecayEngine) PenalizedConfidence(base float64) float64 {
	penalized := base * (1 - d.cfg.Penalty)
	if penalized < 0 {
		return 0
	}
	return penalized
}
