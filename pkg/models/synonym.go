package models

import "time"

// SynonymSource describes where a synonym came from
type SynonymSource string

const (
	SynonymSourceSystem SynonymSource = "SYSTEM"
	SynonymSourceLLM    SynonymSource = "LLM"
	SynonymSourceHuman  SynonymSource = "HUMAN"
)

// Synonym is an alternative name attached to exactly one entity via
// SYNONYM_OF. Confidence stored here is the base confidence; the effective
// confidence is computed lazily from decay and reinforcement (pkg/synonyms).
type Synonym struct {
	ID              string        `json:"id"`
	TenantID        string        `json:"tenant_id"`
	EntityID        string        `json:"entity_id"`
	Value           string        `json:"value"`
	NormalizedValue string        `json:"normalized_value"`
	Source          SynonymSource `json:"source"`
	Confidence      float64       `json:"confidence"`
	SupportCount    int           `json:"support_count"`
	LastConfirmedAt time.Time     `json:"last_confirmed_at"`
	CreatedAt       time.Time     `json:"created_at"`
}
