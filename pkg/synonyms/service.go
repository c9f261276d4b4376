package synonyms

import (
	"context"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// Repository is the persistence surface the synonym service consumes.
type Repository interface {
	Create(ctx context.Context, syn *models.Synonym) error
	GetByNormalizedValue(ctx context.Context, tenantID, normalizedValue string) ([]*models.Synonym, error)
	GetByEntity(ctx context.Context, entityID string) ([]*models.Synonym, error)
	Reinforce(ctx context.Context, synonymID string, at time.Time) error
	UpdateConfidence(ctx context.Context, synonymID string, confidence float64) error
	Delete(ctx context.Context, synonymID string) error
}

// Service creates, reinforces and penalizes synonyms.
type Service struct {
	repo   Repository
	decay  *DecayEngine
	logger ectologger.Logger
}

// NewService creates a synonym service.
func NewService(repo Repository, decay *DecayEngine, logger ectologger.Logger) *Service {
	return &Service{repo: repo, decay: decay, logger: logger}
}

// Decay exposes the decay engine for effective-confidence computation.
func (s *Service) Decay() *DecayEngine {
	return s.decay
}

// CreateForEntity attaches a synonym to an entity. If a synonym with the same
// normalized value already points at that entity, it is reinforced instead.
// A synonym whose normalized value equals the entity's own normalized name is
// rejected: the canonical name is not its own alias.
func (s *Service) CreateForEntity(ctx context.Context, entity *models.Entity, value, normalizedValue string, source models.SynonymSource, confidence float64) (*models.Synonym, error) {
	ctx, span := tracing.StartSpan(ctx, "synonyms.Service.CreateForEntity")
	defer span.End()

	if normalizedValue == entity.NormalizedName {
		return nil, models.NewError(models.ErrInputInvalid, "synonym %q equals the entity's normalized name", normalizedValue)
	}

	existing, err := s.repo.GetByEntity(ctx, entity.ID)
	if err != nil {
		return nil, err
	}
	for _, syn := range existing {
		if strings.EqualFold(syn.NormalizedValue, normalizedValue) {
			if err := s.Reinforce(ctx, syn); err != nil {
				return nil, err
			}
			return syn, nil
		}
	}

	now := time.Now().UTC()
	syn := &models.Synonym{
		ID:              uuid.New().String(),
		TenantID:        entity.TenantID,
		EntityID:        entity.ID,
		Value:           value,
		NormalizedValue: normalizedValue,
		Source:          source,
		Confidence:      confidence,
		SupportCount:    1,
		LastConfirmedAt: now,
		CreatedAt:       now,
	}
	if err := s.repo.Create(ctx, syn); err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_id":  entity.ID,
		"synonym_id": syn.ID,
		"source":     string(source),
	}).Debug("Synonym created")

	return syn, nil
}

// Reinforce records a repeated observation, bumping the support count and
// resetting the decay clock.
func (s *Service) Reinforce(ctx context.Context, syn *models.Synonym) error {
	ctx, span := tracing.StartSpan(ctx, "synonyms.Service.Reinforce")
	defer span.End()

	now := time.Now().UTC()
	if err := s.repo.Reinforce(ctx, syn.ID, now); err != nil {
		return err
	}
	syn.SupportCount++
	syn.LastConfirmedAt = now
	return nil
}

// Penalize applies negative reinforcement after a review rejection.
func (s *Service) Penalize(ctx context.Context, syn *models.Synonym) error {
	ctx, span := tracing.StartSpan(ctx, "synonyms.Service.Penalize")
	defer span.End()

	penalized := s.decay.PenalizedConfidence(syn.Confidence)
	if err := s.repo.UpdateConfidence(ctx, syn.ID, penalized); err != nil {
		return err
	}
	syn.Confidence = penalized

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"synonym_id": syn.ID,
		"confidence": penalized,
	}).Debug("Synonym penalized")

	return nil
}

// FindByNormalizedValue returns synonyms matching a normalized value within
// a tenant.
func (s *Service) FindByNormalizedValue(ctx context.Context, tenantID, normalizedValue string) ([]*models.Synonym, error) {
	ctx, span := tracing.StartSpan(ctx, "synonyms.Service.FindByNormalizedValue")
	defer span.End()

	return s.repo.GetByNormalizedValue(ctx, tenantID, normalizedValue)
}
