package models

import "time"

// MatchOutcome is the terminal classification of a candidate comparison
type MatchOutcome string

const (
	OutcomeAutoMerge MatchOutcome = "AUTO_MERGE"
	OutcomeSynonym   MatchOutcome = "SYNONYM"
	OutcomeReview    MatchOutcome = "REVIEW"
	OutcomeNoMatch   MatchOutcome = "NO_MATCH"
	OutcomeLLMEnrich MatchOutcome = "LLM_ENRICH"
)

// Evaluator identifies what produced a decision
type Evaluator string

const (
	EvaluatorSystem Evaluator = "SYSTEM"
	EvaluatorLLM    Evaluator = "LLM"
	EvaluatorHuman  Evaluator = "HUMAN"
)

// ThresholdSnapshot captures the thresholds in force when a decision was
// made, so historical decisions stay explainable after config changes.
type ThresholdSnapshot struct {
	AutoMerge float64 `json:"auto_merge"`
	Synonym   float64 `json:"synonym"`
	Review    float64 `json:"review"`
}

// MatchDecision is an immutable record of a single candidate comparison.
// One decision is written per non-trivial candidate evaluated, winners and
// losers alike.
type MatchDecision struct {
	ID                string            `json:"id"`
	TenantID          string            `json:"tenant_id"`
	InputTempID       string            `json:"input_temp_id"`
	CandidateID       string            `json:"candidate_id"`
	EntityType        string            `json:"entity_type"`
	ExactScore        float64           `json:"exact_score"`
	LevScore          float64           `json:"lev_score"`
	JWScore           float64           `json:"jw_score"`
	JaccardScore      float64           `json:"jaccard_score"`
	LLMScore          *float64          `json:"llm_score,omitempty"`
	GraphContextScore *float64          `json:"graph_context_score,omitempty"`
	FinalScore        float64           `json:"final_score"`
	Outcome           MatchOutcome      `json:"outcome"`
	Thresholds        ThresholdSnapshot `json:"thresholds"`
	Evaluator         Evaluator         `json:"evaluator"`
	EvaluatedAt       time.Time         `json:"evaluated_at"`
}
