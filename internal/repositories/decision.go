package repositories

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/bramble/pkg/graphstore"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// DecisionRepository persists immutable MatchDecision nodes, linked to the
// candidate entity they scored.
type DecisionRepository struct {
	store  graphstore.Store
	logger ectologger.Logger
}

// NewDecisionRepository creates a decision repository.
func NewDecisionRepository(store graphstore.Store, logger ectologger.Logger) *DecisionRepository {
	return &DecisionRepository{store: store, logger: logger}
}

// Create appends one decision record. Decisions are never updated.
func (r *DecisionRepository) Create(ctx context.Context, decision *models.MatchDecision) error {
	ctx, span := tracing.StartSpan(ctx, "repositories.DecisionRepository.Create")
	defer span.End()

	params := map[string]any{
		"id":                  decision.ID,
		"tenant_id":           decision.TenantID,
		"input_temp_id":       decision.InputTempID,
		"candidate_id":        decision.CandidateID,
		"entity_type":         decision.EntityType,
		"exact_score":         decision.ExactScore,
		"lev_score":           decision.LevScore,
		"jw_score":            decision.JWScore,
		"jaccard_score":       decision.JaccardScore,
		"final_score":         decision.FinalScore,
		"outcome":             string(decision.Outcome),
		"threshold_auto":      decision.Thresholds.AutoMerge,
		"threshold_synonym":   decision.Thresholds.Synonym,
		"threshold_review":    decision.Thresholds.Review,
		"evaluator":           string(decision.Evaluator),
		"evaluated_at":        decision.EvaluatedAt.UTC().Format(timeFormat),
		"llm_score":           nil,
		"graph_context_score": nil,
	}
	if decision.LLMScore != nil {
		params["llm_score"] = *decision.LLMScore
	}
	if decision.GraphContextScore != nil {
		params["graph_context_score"] = *decision.GraphContextScore
	}

	err := r.store.Execute(ctx, `
		CREATE (d:MatchDecision {
			id: $id,
			tenant_id: $tenant_id,
			input_temp_id: $input_temp_id,
			candidate_id: $candidate_id,
			entity_type: $entity_type,
			exact_score: $exact_score,
			lev_score: $lev_score,
			jw_score: $jw_score,
			jaccard_score: $jaccard_score,
			llm_score: $llm_score,
			graph_context_score: $graph_context_score,
			final_score: $final_score,
			outcome: $outcome,
			threshold_auto: $threshold_auto,
			threshold_synonym: $threshold_synonym,
			threshold_review: $threshold_review,
			evaluator: $evaluator,
			evaluated_at: $evaluated_at
		})
		WITH d
		MATCH (c:Entity {id: $candidate_id})
		CREATE (d)-[:DECIDED_FOR]->(c)`,
		params)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"decision_id": decision.ID}).Warn("Failed to persist match decision")
		return err
	}
	return nil
}

// GetByID fetches one decision.
func (r *DecisionRepository) GetByID(ctx context.Context, id string) (*models.MatchDecision, error) {
	ctx, span := tracing.StartSpan(ctx, "repositories.DecisionRepository.GetByID")
	defer span.End()

	rows, err := r.store.Query(ctx, `
		MATCH (d:MatchDecision {id: $id})
		RETURN properties(d) AS props`,
		map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, models.NewError(models.ErrNotFound, "match decision %q not found", id)
	}
	props, _ := rows[0]["props"].(map[string]any)
	return decisionFromProps(props), nil
}

// GetForCandidate lists decisions recorded against a candidate entity,
// newest first.
func (r *DecisionRepository) GetForCandidate(ctx context.Context, candidateID string, limit int) ([]*models.MatchDecision, error) {
	ctx, span := tracing.StartSpan(ctx, "repositories.DecisionRepository.GetForCandidate")
	defer span.End()

	rows, err := r.store.Query(ctx, `
		MATCH (d:MatchDecision)-[:DECIDED_FOR]->(c:Entity {id: $candidate_id})
		RETURN properties(d) AS props
		ORDER BY d.evaluated_at DESC
		LIMIT $limit`,
		map[string]any{"candidate_id": candidateID, "limit": limit})
	if err != nil {
		return nil, err
	}

	out := make([]*models.MatchDecision, 0, len(rows))
	for _, row := range rows {
		if props, ok := row["props"].(map[string]any); ok {
			out = append(out, decisionFromProps(props))
		}
	}
	return out, nil
}

// CreateReviewDecision appends a review decision node, linked to the match
// decision it confirms or contradicts.
func (r *DecisionRepository) CreateReviewDecision(ctx context.Context, decision *models.ReviewDecision) error {
	ctx, span := tracing.StartSpan(ctx, "repositories.DecisionRepository.CreateReviewDecision")
	defer span.End()

	params := map[string]any{
		"id":                decision.ID,
		"tenant_id":         decision.TenantID,
		"review_id":         decision.ReviewID,
		"match_decision_id": decision.MatchDecisionID,
		"action":            string(decision.Action),
		"reviewer_id":       decision.ReviewerID,
		"rationale":         nil,
		"decided_at":        decision.DecidedAt.UTC().Format(timeFormat),
	}
	if decision.Rationale != nil {
		params["rationale"] = *decision.Rationale
	}

	return r.store.Execute(ctx, `
		CREATE (rd:ReviewDecision {
			id: $id,
			tenant_id: $tenant_id,
			review_id: $review_id,
			match_decision_id: $match_decision_id,
			action: $action,
			reviewer_id: $reviewer_id,
			rationale: $rationale,
			decided_at: $decided_at
		})
		WITH rd
		OPTIONAL MATCH (d:MatchDecision {id: $match_decision_id})
		FOREACH (_ IN CASE WHEN d IS NULL THEN [] ELSE [1] END |
			CREATE (rd)-[:CONFIRMS]->(d))`,
		params)
}

func decisionFromProps(props map[string]any) *models.MatchDecision {
	d := &models.MatchDecision{
		ID:           getString(props, "id"),
		TenantID:     getString(props, "tenant_id"),
		InputTempID:  getString(props, "input_temp_id"),
		CandidateID:  getString(props, "candidate_id"),
		EntityType:   getString(props, "entity_type"),
		ExactScore:   getFloat(props, "exact_score"),
		LevScore:     getFloat(props, "lev_score"),
		JWScore:      getFloat(props, "jw_score"),
		JaccardScore: getFloat(props, "jaccard_score"),
		FinalScore:   getFloat(props, "final_score"),
		Outcome:      models.MatchOutcome(getString(props, "outcome")),
		Thresholds: models.ThresholdSnapshot{
			AutoMerge: getFloat(props, "threshold_auto"),
			Synonym:   getFloat(props, "threshold_synonym"),
			Review:    getFloat(props, "threshold_review"),
		},
		Evaluator:   models.Evaluator(getString(props, "evaluator")),
		EvaluatedAt: getTime(props, "evaluated_at"),
	}

	if v, ok := props["llm_score"].(float64); ok {
		d.LLMScore = &v
	}
	if v, ok := props["graph_context_score"].(float64); ok {
		d.GraphContextScore = &v
	}
	return d
}
