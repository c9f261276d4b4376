// Package review runs the human review workflow over queued borderline
// matches: submission, listing, and the approve/reject decisions that feed
// back into merges and synonym reinforcement.
package review

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/bramble/pkg/events"
	"github.com/Ramsey-B/bramble/pkg/merging"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/normalize"
	"github.com/Ramsey-B/bramble/pkg/synonyms"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// Repository is the queue persistence surface.
type Repository interface {
	Create(ctx context.Context, item *models.ReviewItem) (*models.ReviewItem, error)
	Get(ctx context.Context, tenantID, id string) (*models.ReviewItem, error)
	List(ctx context.Context, tenantID string, filter models.ReviewFilter, page models.PageRequest) (*models.ReviewPage, error)
	MarkDecided(ctx context.Context, tenantID, id string, status models.ReviewStatus, reviewerID string, notes *string) error
}

// DecisionStore appends review decisions to the decision graph.
type DecisionStore interface {
	CreateReviewDecision(ctx context.Context, decision *models.ReviewDecision) error
}

// EntityGetter fetches entities by id.
type EntityGetter interface {
	GetByID(ctx context.Context, id string) (*models.Entity, error)
}

// Merger performs entity merges.
type Merger interface {
	Merge(ctx context.Context, req merging.Request) (*models.MergeRecord, error)
}

// AuditSink appends audit entries.
type AuditSink interface {
	Append(ctx context.Context, entry *models.AuditEntry) (*models.AuditEntry, error)
}

// Service coordinates the review queue.
type Service struct {
	repo       Repository
	decisions  DecisionStore
	entities   EntityGetter
	merger     Merger
	synonyms   *synonyms.Service
	audit      AuditSink
	bus        *events.Bus
	normalizer *normalize.Normalizer
	logger     ectologger.Logger
}

// NewService creates a review service. The merger may be nil when approvals
// never carry a source entity.
func NewService(
	repo Repository,
	decisions DecisionStore,
	entities EntityGetter,
	merger Merger,
	synonymService *synonyms.Service,
	audit AuditSink,
	bus *events.Bus,
	logger ectologger.Logger,
) *Service {
	return &Service{
		repo:       repo,
		decisions:  decisions,
		entities:   entities,
		merger:     merger,
		synonyms:   synonymService,
		audit:      audit,
		bus:        bus,
		normalizer: normalize.NewNormalizer(nil),
		logger:     logger,
	}
}

// Submit enqueues a match for human judgement.
func (s *Service) Submit(ctx context.Context, item *models.ReviewItem) (*models.ReviewItem, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Service.Submit")
	defer span.End()

	if item.CandidateEntityID == "" {
		return nil, models.NewError(models.ErrInputInvalid, "review item requires a candidate entity")
	}
	if item.SourceEntityID == "" && item.SourceName == "" {
		return nil, models.NewError(models.ErrInputInvalid, "review item requires a source entity or name")
	}
	if item.SimilarityScore < 0 || item.SimilarityScore > 1 {
		return nil, models.NewError(models.ErrInputInvalid, "similarity score must lie in [0,1]")
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	created, err := s.repo.Create(ctx, item)
	if err != nil {
		return nil, err
	}

	s.auditAppend(ctx, created.TenantID, created.CandidateEntityID, models.AuditReviewSubmitted, "SYSTEM", map[string]any{
		"review_id": created.ID,
		"score":     created.SimilarityScore,
	})
	if s.bus != nil {
		s.bus.PublishReviewSubmitted(ctx, events.ReviewSubmittedEvent{
			ReviewID:    created.ID,
			SourceID:    created.SourceEntityID,
			CandidateID: created.CandidateEntityID,
			Score:       created.SimilarityScore,
		})
	}

	return created, nil
}

// GetPending pages the open queue. An empty status filter defaults to
// PENDING.
func (s *Service) GetPending(ctx context.Context, tenantID string, filter models.ReviewFilter, page models.PageRequest) (*models.ReviewPage, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Service.GetPending")
	defer span.End()

	if filter.Status == "" {
		filter.Status = models.ReviewStatusPending
	}
	return s.repo.List(ctx, tenantID, filter, page)
}

// Approve confirms a match. The match is applied first, as a merge when the
// item carries a source entity or a HUMAN synonym on the candidate otherwise,
// and only then does the item flip to APPROVED. The participating synonym,
// if any, is reinforced.
func (s *Service) Approve(ctx context.Context, tenantID, id, reviewerID string, notes *string) error {
	ctx, span := tracing.StartSpan(ctx, "review.Service.Approve")
	defer span.End()

	item, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}

	// Apply before marking decided: a failed apply leaves the item PENDING
	// so the approval can be retried.
	if item.SourceEntityID != "" {
		if s.merger == nil {
			return models.NewError(models.ErrStateInvalid, "no merge engine configured for entity reviews")
		}
		if _, err := s.merger.Merge(ctx, merging.Request{
			SourceID:    item.SourceEntityID,
			TargetID:    item.CandidateEntityID,
			Confidence:  item.SimilarityScore,
			Decision:    string(models.OutcomeAutoMerge),
			TriggeredBy: reviewerID,
			Reasoning:   "approved in review",
		}); err != nil {
			return err
		}
		s.reinforceParticipating(ctx, item)
	} else if err := s.attachApprovedSynonym(ctx, item); err != nil {
		// Attach-or-reinforce is itself the confirmation for
		// resolve-originated items.
		return err
	}

	if err := s.repo.MarkDecided(ctx, tenantID, id, models.ReviewStatusApproved, reviewerID, notes); err != nil {
		return err
	}
	s.appendDecision(ctx, item, models.ReviewActionApprove, reviewerID, notes)

	s.auditAppend(ctx, item.TenantID, item.CandidateEntityID, models.AuditReviewDecided, reviewerID, map[string]any{
		"review_id": item.ID,
		"action":    string(models.ReviewActionApprove),
	})
	if s.bus != nil {
		s.bus.PublishReviewDecided(ctx, events.ReviewDecidedEvent{
			ReviewID:   item.ID,
			Action:     models.ReviewActionApprove,
			ReviewerID: reviewerID,
		})
	}

	return nil
}

// Reject dismisses a match and applies negative reinforcement to the
// participating synonym.
func (s *Service) Reject(ctx context.Context, tenantID, id, reviewerID string, notes *string) error {
	ctx, span := tracing.StartSpan(ctx, "review.Service.Reject")
	defer span.End()

	item, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}

	if err := s.repo.MarkDecided(ctx, tenantID, id, models.ReviewStatusRejected, reviewerID, notes); err != nil {
		return err
	}
	s.appendDecision(ctx, item, models.ReviewActionReject, reviewerID, notes)

	s.penalizeParticipating(ctx, item)

	s.auditAppend(ctx, item.TenantID, item.CandidateEntityID, models.AuditReviewDecided, reviewerID, map[string]any{
		"review_id": item.ID,
		"action":    string(models.ReviewActionReject),
	})
	if s.bus != nil {
		s.bus.PublishReviewDecided(ctx, events.ReviewDecidedEvent{
			ReviewID:   item.ID,
			Action:     models.ReviewActionReject,
			ReviewerID: reviewerID,
		})
	}

	return nil
}

// attachApprovedSynonym records the approved mention as a HUMAN synonym of
// the candidate. Resolve-originated reviews carry no source entity, so the
// mention name is all there is to attach.
func (s *Service) attachApprovedSynonym(ctx context.Context, item *models.ReviewItem) error {
	entity, err := s.entities.GetByID(ctx, item.CandidateEntityID)
	if err != nil {
		return err
	}

	normalized := s.normalizer.Normalize(item.SourceName, item.EntityType)
	if normalized == entity.NormalizedName {
		return nil
	}

	_, err = s.synonyms.CreateForEntity(ctx, entity, item.SourceName, normalized, models.SynonymSourceHuman, item.SimilarityScore)
	return err
}

// reinforceParticipating bumps the synonym that carried the original match,
// when one exists on the candidate. Best-effort.
func (s *Service) reinforceParticipating(ctx context.Context, item *models.ReviewItem) {
	syn := s.participatingSynonym(ctx, item)
	if syn == nil {
		return
	}
	if err := s.synonyms.Reinforce(ctx, syn); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"synonym_id": syn.ID,
		}).Warn("Failed to reinforce synonym after approval")
	}
}

func (s *Service) penalizeParticipating(ctx context.Context, item *models.ReviewItem) {
	syn := s.participatingSynonym(ctx, item)
	if syn == nil {
		return
	}
	if err := s.synonyms.Penalize(ctx, syn); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"synonym_id": syn.ID,
		}).Warn("Failed to penalize synonym after rejection")
	}
}

func (s *Service) participatingSynonym(ctx context.Context, item *models.ReviewItem) *models.Synonym {
	if item.SourceName == "" {
		return nil
	}

	normalized := s.normalizer.Normalize(item.SourceName, item.EntityType)
	matches, err := s.synonyms.FindByNormalizedValue(ctx, item.TenantID, normalized)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to look up participating synonym")
		return nil
	}
	for _, syn := range matches {
		if syn.EntityID == item.CandidateEntityID {
			return syn
		}
	}
	return nil
}

func (s *Service) appendDecision(ctx context.Context, item *models.ReviewItem, action models.ReviewAction, reviewerID string, notes *string) {
	if s.decisions == nil {
		return
	}
	err := s.decisions.CreateReviewDecision(ctx, &models.ReviewDecision{
		ID:              uuid.New().String(),
		TenantID:        item.TenantID,
		ReviewID:        item.ID,
		MatchDecisionID: item.MatchDecisionID,
		Action:          action,
		ReviewerID:      reviewerID,
		Rationale:       notes,
		DecidedAt:       time.Now().UTC(),
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"review_id": item.ID,
		}).Warn("Failed to append review decision")
	}
}

func (s *Service) auditAppend(ctx context.Context, tenantID, entityID string, action models.AuditAction, actorID string, details map[string]any) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(details)
	if _, err := s.audit.Append(ctx, &models.AuditEntry{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		EntityID:  entityID,
		Action:    action,
		ActorID:   actorID,
		Details:   payload,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"action": string(action),
		}).Warn("Failed to append audit entry")
	}
}
