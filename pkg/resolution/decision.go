package resolution

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/bramble/pkg/llm"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// DecisionSink persists MatchDecision records. Persistence is non-critical:
// failures are logged and resolution proceeds.
type DecisionSink interface {
	Create(ctx context.Context, decision *models.MatchDecision) error
}

// decisionEngine classifies a scored candidate against the thresholds and
// optionally enriches borderline scores with an LLM judgment.
type decisionEngine struct {
	opts      Options
	provider  llm.Provider
	decisions DecisionSink
	logger    ectologger.Logger
}

// classify maps a score to an outcome. Threshold bounds are inclusive.
func (e *decisionEngine) classify(score float64) models.MatchOutcome {
	switch {
	case score >= e.opts.AutoMergeThreshold:
		return models.OutcomeAutoMerge
	case score >= e.opts.SynonymThreshold:
		return models.OutcomeSynonym
	case score >= e.opts.ReviewThreshold:
		return models.OutcomeReview
	default:
		return models.OutcomeNoMatch
	}
}

// decide produces the decision record for the winning candidate, invoking the
// LLM on sub-review scores when enabled. The record is persisted best-effort.
func (e *decisionEngine) decide(ctx context.Context, tenantID, inputName, inputTempID, entityType string, cand *candidate) *models.MatchDecision {
	ctx, span := tracing.StartSpan(ctx, "resolution.decisionEngine.decide")
	defer span.End()

	decision := e.buildDecision(tenantID, inputTempID, entityType, cand)
	decision.Outcome = e.classify(cand.score)

	if decision.Outcome == models.OutcomeNoMatch && e.opts.UseLLM && e.provider != nil && cand.score >= e.opts.LLMFloor {
		e.enrich(ctx, inputName, cand, decision)
	}

	e.persist(ctx, decision)
	return decision
}

// recordLoser emits a decision record for a candidate that was evaluated but
// not chosen, classified by its own score.
func (e *decisionEngine) recordLoser(ctx context.Context, tenantID, inputTempID, entityType string, cand *candidate) {
	decision := e.buildDecision(tenantID, inputTempID, entityType, cand)
	decision.Outcome = e.classify(cand.score)
	e.persist(ctx, decision)
}

// enrich asks the LLM about the pair and re-decides with the blended score.
// The blend never escalates to AUTO_MERGE unless the LLM itself is confident
// past the configured bar. An unavailable LLM leaves the decision unchanged
// with a null llmScore.
func (e *decisionEngine) enrich(ctx context.Context, inputName string, cand *candidate, decision *models.MatchDecision) {
	judgment, err := e.provider.CompareEntities(ctx, inputName, cand.entity.CanonicalName, cand.entity.EntityType)
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"candidate_id": cand.entity.ID,
		}).Warn("LLM enrichment unavailable, deciding without it")
		return
	}

	llmScore := judgment.Confidence
	if !judgment.SameEntity {
		llmScore = 1 - judgment.Confidence
	}

	blended := clampScore(0.5*cand.score + 0.5*llmScore)
	outcome := e.classify(blended)
	if outcome == models.OutcomeAutoMerge && judgment.Confidence < e.opts.LLMConfidenceThreshold {
		outcome = models.OutcomeReview
	}

	decision.LLMScore = &llmScore
	decision.GraphContextScore = &blended
	decision.FinalScore = blended
	decision.Outcome = outcome
	decision.Evaluator = models.EvaluatorLLM
}

func (e *decisionEngine) buildDecision(tenantID, inputTempID, entityType string, cand *candidate) *models.MatchDecision {
	return &models.MatchDecision{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		InputTempID:  inputTempID,
		CandidateID:  cand.entity.ID,
		EntityType:   entityType,
		ExactScore:   cand.exactScore,
		LevScore:     cand.levScore,
		JWScore:      cand.jwScore,
		JaccardScore: cand.jaccardScore,
		FinalScore:   cand.score,
		Thresholds:   e.opts.snapshot(),
		Evaluator:    models.EvaluatorSystem,
		EvaluatedAt:  time.Now().UTC(),
	}
}

func (e *decisionEngine) persist(ctx context.Context, decision *models.MatchDecision) {
	if e.decisions == nil {
		return
	}
	if err := e.decisions.Create(ctx, decision); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"decision_id": decision.ID,
		}).Warn("Failed to persist match decision")
	}
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
