package repositories

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/bramble/pkg/graphstore"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// EntityRepository persists Entity nodes and their blocking keys.
type EntityRepository struct {
	store  graphstore.Store
	logger ectologger.Logger
}

// NewEntityRepository creates an entity repository.
func NewEntityRepository(store graphstore.Store, logger ectologger.Logger) *EntityRepository {
	return &EntityRepository{store: store, logger: logger}
}

// Create persists a new entity and links its blocking keys.
func (r *EntityRepository) Create(ctx context.Context, entity *models.Entity) error {
	ctx, span := tracing.StartSpan(ctx, "repositories.EntityRepository.Create")
	defer span.End()

	err := r.store.Execute(ctx, `
		CREATE (e:Entity {
			id: $id,
			tenant_id: $tenant_id,
			canonical_name: $canonical_name,
			normalized_name: $normalized_name,
			entity_type: $entity_type,
			confidence_score: $confidence_score,
			status: $status,
			blocking_keys: $blocking_keys,
			created_at: $created_at,
			updated_at: $updated_at
		})
		WITH e
		UNWIND $blocking_keys AS key
		MERGE (b:BlockingKey {key: key, tenant_id: $tenant_id})
		MERGE (e)-[:HAS_KEY]->(b)`,
		map[string]any{
			"id":               entity.ID,
			"tenant_id":        entity.TenantID,
			"canonical_name":   entity.CanonicalName,
			"normalized_name":  entity.NormalizedName,
			"entity_type":      entity.EntityType,
			"confidence_score": entity.ConfidenceScore,
			"status":           string(entity.Status),
			"blocking_keys":    entity.BlockingKeys,
			"created_at":       entity.CreatedAt.UTC().Format(timeFormat),
			"updated_at":       entity.UpdatedAt.UTC().Format(timeFormat),
		})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_id": entity.ID}).Error("Failed to create entity")
		return err
	}
	return nil
}

// GetByID fetches an entity regardless of status.
func (r *EntityRepository) GetByID(ctx context.Context, id string) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "repositories.EntityRepository.GetByID")
	defer span.End()

	rows, err := r.store.Query(ctx, `MATCH (e:Entity {id: $id}) RETURN properties(e) AS props`, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, models.NewError(models.ErrNotFound, "entity %q not found", id)
	}
	props, _ := rows[0]["props"].(map[string]any)
	return entityFromProps(props), nil
}

// GetActiveByNormalizedName fetches the ACTIVE entity for a normalized name
// and type within a tenant, or nil when absent.
func (r *EntityRepository) GetActiveByNormalizedName(ctx context.Context, tenantID, normalizedName, entityType string) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "repositories.EntityRepository.GetActiveByNormalizedName")
	defer span.End()

	rows, err := r.store.Query(ctx, `
		MATCH (e:Entity {normalized_name: $normalized_name, entity_type: $entity_type, status: 'ACTIVE'})
		WHERE $tenant_id = '' OR e.tenant_id = $tenant_id
		RETURN properties(e) AS props
		LIMIT 1`,
		map[string]any{
			"normalized_name": normalizedName,
			"entity_type":     entityType,
			"tenant_id":       tenantID,
		})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	props, _ := rows[0]["props"].(map[string]any)
	return entityFromProps(props), nil
}

// GetByBlockingKeys fetches distinct ACTIVE entities sharing at least one
// blocking key.
func (r *EntityRepository) GetByBlockingKeys(ctx context.Context, tenantID string, keys []string, entityType string) ([]*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "repositories.EntityRepository.GetByBlockingKeys")
	defer span.End()

	if len(keys) == 0 {
		return nil, nil
	}

	rows, err := r.store.Query(ctx, `
		MATCH (b:BlockingKey)<-[:HAS_KEY]-(e:Entity {entity_type: $entity_type, status: 'ACTIVE'})
		WHERE b.key IN $keys AND ($tenant_id = '' OR e.tenant_id = $tenant_id)
		RETURN DISTINCT properties(e) AS props`,
		map[string]any{
			"keys":        keys,
			"entity_type": entityType,
			"tenant_id":   tenantID,
		})
	if err != nil {
		return nil, err
	}
	return entitiesFromRows(rows), nil
}

// GetAllActiveByType fetches up to limit ACTIVE entities of a type. Used by
// the full-scan discovery fallback.
func (r *EntityRepository) GetAllActiveByType(ctx context.Context, tenantID, entityType string, limit int) ([]*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "repositories.EntityRepository.GetAllActiveByType")
	defer span.End()

	rows, err := r.store.Query(ctx, `
		MATCH (e:Entity {entity_type: $entity_type, status: 'ACTIVE'})
		WHERE $tenant_id = '' OR e.tenant_id = $tenant_id
		RETURN properties(e) AS props
		LIMIT $limit`,
		map[string]any{
			"entity_type": entityType,
			"tenant_id":   tenantID,
			"limit":       limit,
		})
	if err != nil {
		return nil, err
	}
	return entitiesFromRows(rows), nil
}

// CountActiveByType reports the ACTIVE entity count for a type, used to gate
// the full-scan fallback.
func (r *EntityRepository) CountActiveByType(ctx context.Context, tenantID, entityType string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "repositories.EntityRepository.CountActiveByType")
	defer span.End()

	rows, err := r.store.Query(ctx, `
		MATCH (e:Entity {entity_type: $entity_type, status: 'ACTIVE'})
		WHERE $tenant_id = '' OR e.tenant_id = $tenant_id
		RETURN count(e) AS total`,
		map[string]any{
			"entity_type": entityType,
			"tenant_id":   tenantID,
		})
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return getInt(rows[0], "total"), nil
}

// MarkMerged flips the source to MERGED and creates the MERGED_INTO edge.
func (r *EntityRepository) MarkMerged(ctx context.Context, sourceID, targetID string) error {
	ctx, span := tracing.StartSpan(ctx, "repositories.EntityRepository.MarkMerged")
	defer span.End()

	now := time.Now().UTC().Format(timeFormat)
	return r.store.Execute(ctx, `
		MATCH (s:Entity {id: $source_id}), (t:Entity {id: $target_id})
		SET s.status = 'MERGED', s.updated_at = $now
		CREATE (s)-[:MERGED_INTO {merged_at: $now}]->(t)`,
		map[string]any{
			"source_id": sourceID,
			"target_id": targetID,
			"now":       now,
		})
}

// RevertMerge flips the source back to ACTIVE and removes the MERGED_INTO
// edge. Used as the merge compensation for MarkMerged.
func (r *EntityRepository) RevertMerge(ctx context.Context, sourceID, targetID string) error {
	ctx, span := tracing.StartSpan(ctx, "repositories.EntityRepository.RevertMerge")
	defer span.End()

	return r.store.Execute(ctx, `
		MATCH (s:Entity {id: $source_id})
		SET s.status = 'ACTIVE', s.updated_at = $now
		WITH s
		OPTIONAL MATCH (s)-[m:MERGED_INTO]->(:Entity {id: $target_id})
		DELETE m`,
		map[string]any{
			"source_id": sourceID,
			"target_id": targetID,
			"now":       time.Now().UTC().Format(timeFormat),
		})
}

// ResolveCurrentID follows the merge chain from an id to the terminal ACTIVE
// entity. Canonical ids resolve to themselves.
func (r *EntityRepository) ResolveCurrentID(ctx context.Context, id string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "repositories.EntityRepository.ResolveCurrentID")
	defer span.End()

	rows, err := r.store.Query(ctx, `
		MATCH (e:Entity {id: $id})
		OPTIONAL MATCH (e)-[:MERGED_INTO*]->(t:Entity {status: 'ACTIVE'})
		RETURN e.id AS original, t.id AS current`,
		map[string]any{"id": id})
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", models.NewError(models.ErrNotFound, "entity %q not found", id)
	}

	if current, ok := rows[0]["current"].(string); ok && current != "" {
		return current, nil
	}
	return getString(rows[0], "original"), nil
}

// MergeChain returns the ids of entities merged (directly or transitively)
// into the given entity, nearest first.
func (r *EntityRepository) MergeChain(ctx context.Context, id string) ([]models.MergeChainLink, error) {
	ctx, span := tracing.StartSpan(ctx, "repositories.EntityRepository.MergeChain")
	defer span.End()

	rows, err := r.store.Query(ctx, `
		MATCH path = (m:Entity)-[:MERGED_INTO*]->(e:Entity {id: $id})
		WITH m, relationships(path)[0] AS first_hop, nodes(path)[1] AS direct_target, length(path) AS depth
		RETURN m.id AS entity_id, m.canonical_name AS canonical_name,
			direct_target.id AS merged_into_id, first_hop.merged_at AS merged_at, depth
		ORDER BY depth ASC`,
		map[string]any{"id": id})
	if err != nil {
		return nil, err
	}

	links := make([]models.MergeChainLink, 0, len(rows))
	for _, row := range rows {
		links = append(links, models.MergeChainLink{
			EntityID:      getString(row, "entity_id"),
			CanonicalName: getString(row, "canonical_name"),
			MergedIntoID:  getString(row, "merged_into_id"),
			MergedAt:      getTime(row, "merged_at"),
			Depth:         getInt(row, "depth"),
		})
	}
	return links, nil
}

func entitiesFromRows(rows []map[string]any) []*models.Entity {
	entities := make([]*models.Entity, 0, len(rows))
	for _, row := range rows {
		if props, ok := row["props"].(map[string]any); ok {
			entities = append(entities, entityFromProps(props))
		}
	}
	return entities
}
