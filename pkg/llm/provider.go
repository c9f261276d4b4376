// Package llm enriches borderline match decisions with a model-based
// judgment of whether two names refer to the same real-world entity.
package llm

import "context"

// Judgment is the model's verdict on a candidate pair.
type Judgment struct {
	SameEntity bool    `json:"same_entity"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Provider compares two entity names. Implementations must be safe for
// concurrent use.
type Provider interface {
	CompareEntities(ctx context.Context, nameA, nameB, entityType string) (*Judgment, error)
}
