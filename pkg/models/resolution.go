package models

// ResolutionResult is what a resolve call returns to the caller, alongside
// the merge-stable reference built from EntityID.
type ResolutionResult struct {
	EntityID        string       `json:"entity_id"`
	CanonicalName   string       `json:"canonical_name"`
	NormalizedName  string       `json:"normalized_name"`
	EntityType      string       `json:"entity_type"`
	IsNewEntity     bool         `json:"is_new_entity"`
	MatchConfidence float64      `json:"match_confidence"`
	Outcome         MatchOutcome `json:"outcome"`
	DecisionID      string       `json:"decision_id,omitempty"`
	ReviewID        string       `json:"review_id,omitempty"`
}
