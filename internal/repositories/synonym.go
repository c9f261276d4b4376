package repositories

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/bramble/pkg/graphstore"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/synonyms"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// SynonymRepository persists Synonym nodes attached to entities via
// SYNONYM_OF edges.
type SynonymRepository struct {
	store  graphstore.Store
	logger ectologger.Logger
}

var _ synonyms.Repository = (*SynonymRepository)(nil)

// NewSynonymRepository creates a synonym repository.
func NewSynonymRepository(store graphstore.Store, logger ectologger.Logger) *SynonymRepository {
	return &SynonymRepository{store: store, logger: logger}
}

// Create persists a synonym and links it to its entity.
func (r *SynonymRepository) Create(ctx context.Context, syn *models.Synonym) error {
	ctx, span := tracing.StartSpan(ctx, "repositories.SynonymRepository.Create")
	defer span.End()

	err := r.store.Execute(ctx, `
		MATCH (e:Entity {id: $entity_id})
		CREATE (s:Synonym {
			id: $id,
			tenant_id: $tenant_id,
			entity_id: $entity_id,
			value: $value,
			normalized_value: $normalized_value,
			source: $source,
			confidence: $confidence,
			support_count: $support_count,
			last_confirmed_at: $last_confirmed_at,
			created_at: $created_at
		})
		CREATE (s)-[:SYNONYM_OF]->(e)`,
		map[string]any{
			"id":                syn.ID,
			"tenant_id":         syn.TenantID,
			"entity_id":         syn.EntityID,
			"value":             syn.Value,
			"normalized_value":  syn.NormalizedValue,
			"source":            string(syn.Source),
			"confidence":        syn.Confidence,
			"support_count":     syn.SupportCount,
			"last_confirmed_at": syn.LastConfirmedAt.UTC().Format(timeFormat),
			"created_at":        syn.CreatedAt.UTC().Format(timeFormat),
		})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"synonym_id": syn.ID}).Error("Failed to create synonym")
		return err
	}
	return nil
}

// GetByNormalizedValue returns synonyms whose normalized value matches,
// scoped to a tenant when one is given.
func (r *SynonymRepository) GetByNormalizedValue(ctx context.Context, tenantID, normalizedValue string) ([]*models.Synonym, error) {
	ctx, span := tracing.StartSpan(ctx, "repositories.SynonymRepository.GetByNormalizedValue")
	defer span.End()

	rows, err := r.store.Query(ctx, `
		MATCH (s:Synonym {normalized_value: $normalized_value})
		WHERE $tenant_id = '' OR s.tenant_id = $tenant_id
		RETURN properties(s) AS props`,
		map[string]any{
			"normalized_value": normalizedValue,
			"tenant_id":        tenantID,
		})
	if err != nil {
		return nil, err
	}
	return synonymsFromRows(rows), nil
}

// GetByEntity returns all synonyms attached to an entity.
func (r *SynonymRepository) GetByEntity(ctx context.Context, entityID string) ([]*models.Synonym, error) {
	ctx, span := tracing.StartSpan(ctx, "repositories.SynonymRepository.GetByEntity")
	defer span.End()

	rows, err := r.store.Query(ctx, `
		MATCH (s:Synonym)-[:SYNONYM_OF]->(e:Entity {id: $entity_id})
		RETURN properties(s) AS props`,
		map[string]any{"entity_id": entityID})
	if err != nil {
		return nil, err
	}
	return synonymsFromRows(rows), nil
}

// GetActiveEntityForSynonym returns the ACTIVE entity reachable from a
// synonym with the given normalized value, along with that synonym.
func (r *SynonymRepository) GetActiveEntityForSynonym(ctx context.Context, tenantID, normalizedValue string) (*models.Entity, *models.Synonym, error) {
	ctx, span := tracing.StartSpan(ctx, "repositories.SynonymRepository.GetActiveEntityForSynonym")
	defer span.End()

	rows, err := r.store.Query(ctx, `
		MATCH (s:Synonym {normalized_value: $normalized_value})-[:SYNONYM_OF]->(e:Entity {status: 'ACTIVE'})
		WHERE $tenant_id = '' OR s.tenant_id = $tenant_id
		RETURN properties(s) AS synonym_props, properties(e) AS entity_props
		ORDER BY s.confidence DESC
		LIMIT 1`,
		map[string]any{
			"normalized_value": normalizedValue,
			"tenant_id":        tenantID,
		})
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	entityProps, _ := rows[0]["entity_props"].(map[string]any)
	synonymProps, _ := rows[0]["synonym_props"].(map[string]any)
	return entityFromProps(entityProps), synonymFromProps(synonymProps), nil
}

// Reinforce bumps the support count and resets the decay clock.
func (r *SynonymRepository) Reinforce(ctx context.Context, synonymID string, at time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "repositories.SynonymRepository.Reinforce")
	defer span.End()

	return r.store.Execute(ctx, `
		MATCH (s:Synonym {id: $id})
		SET s.support_count = s.support_count + 1, s.last_confirmed_at = $at`,
		map[string]any{
			"id": synonymID,
			"at": at.UTC().Format(timeFormat),
		})
}

// UpdateConfidence rewrites the stored base confidence.
func (r *SynonymRepository) UpdateConfidence(ctx context.Context, synonymID string, confidence float64) error {
	ctx, span := tracing.StartSpan(ctx, "repositories.SynonymRepository.UpdateConfidence")
	defer span.End()

	return r.store.Execute(ctx, `
		MATCH (s:Synonym {id: $id})
		SET s.confidence = $confidence`,
		map[string]any{
			"id":         synonymID,
			"confidence": confidence,
		})
}

// Delete removes a synonym. Only used by merge compensation.
func (r *SynonymRepository) Delete(ctx context.Context, synonymID string) error {
	ctx, span := tracing.StartSpan(ctx, "repositories.SynonymRepository.Delete")
	defer span.End()

	return r.store.Execute(ctx, `
		MATCH (s:Synonym {id: $id})
		DETACH DELETE s`,
		map[string]any{"id": synonymID})
}

func synonymsFromRows(rows []map[string]any) []*models.Synonym {
	out := make([]*models.Synonym, 0, len(rows))
	for _, row := range rows {
		if props, ok := row["props"].(map[string]any); ok {
			out = append(out, synonymFromProps(props))
		}
	}
	return out
}
