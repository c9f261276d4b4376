// Package resolution hosts the resolve pipeline: normalize the input, find
// candidates, decide an outcome against the configured thresholds, and act
// on it (create, alias, enqueue for review, or merge).
package resolution

import (
	"math"
	"time"

	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/scoring"
)

const maxNameLength = 512

// Options tunes the resolution pipeline. Validate before use.
type Options struct {
	AutoMergeThreshold float64
	SynonymThreshold   float64
	ReviewThreshold    float64

	AutoMergeEnabled bool

	UseLLM                 bool
	LLMFloor               float64
	LLMConfidenceThreshold float64

	SourceSystem string

	Weights scoring.Weights

	// FullScanLimit gates the discovery fallback: when blocking produces no
	// candidates and the ACTIVE corpus for the type is at or below this size,
	// every entity of the type is scored.
	FullScanLimit int

	MaxBatchSize         int
	BatchCommitChunkSize int
	MaxBatchMemoryBytes  int64

	CachingEnabled bool
	CacheMaxSize   int
	CacheTTL       time.Duration

	LockTimeout  time.Duration
	AsyncTimeout time.Duration
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{
		AutoMergeThreshold:     0.92,
		SynonymThreshold:       0.80,
		ReviewThreshold:        0.60,
		AutoMergeEnabled:       true,
		UseLLM:                 false,
		LLMFloor:               0.40,
		LLMConfidenceThreshold: 0.85,
		SourceSystem:           "api",
		Weights:                scoring.DefaultWeights(),
		FullScanLimit:          10000,
		MaxBatchSize:           50000,
		BatchCommitChunkSize:   1000,
		MaxBatchMemoryBytes:    256 << 20,
		CachingEnabled:         true,
		CacheMaxSize:           10000,
		CacheTTL:               5 * time.Minute,
		LockTimeout:            5 * time.Second,
		AsyncTimeout:           30 * time.Second,
	}
}

// Validate rejects inconsistent tunings.
func (o Options) Validate() error {
	for _, t := range []float64{o.AutoMergeThreshold, o.SynonymThreshold, o.ReviewThreshold, o.LLMFloor, o.LLMConfidenceThreshold} {
		if t < 0 || t > 1 {
			return models.NewError(models.ErrInputInvalid, "thresholds must lie in [0,1]")
		}
	}
	if o.ReviewThreshold > o.SynonymThreshold || o.SynonymThreshold > o.AutoMergeThreshold {
		return models.NewError(models.ErrInputInvalid, "thresholds must satisfy review <= synonym <= autoMerge")
	}

	sum := o.Weights.Levenshtein + o.Weights.JaroWinkler + o.Weights.Jaccard
	if math.Abs(sum-1.0) > 1e-9 {
		return models.NewError(models.ErrInputInvalid, "similarity weights must sum to 1.0, got %v", sum)
	}

	if o.BatchCommitChunkSize < 1 {
		return models.NewError(models.ErrInputInvalid, "batch commit chunk size must be positive")
	}
	if o.MaxBatchSize < 1 {
		return models.NewError(models.ErrInputInvalid, "max batch size must be positive")
	}

	return nil
}

// snapshot captures the thresholds in force for decision records.
func (o Options) snapshot() models.ThresholdSnapshot {
	return models.ThresholdSnapshot{
		AutoMerge: o.AutoMergeThreshold,
		Synonym:   o.SynonymThreshold,
		Review:    o.ReviewThreshold,
	}
}
