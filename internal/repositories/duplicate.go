package repositories

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/bramble/pkg/graphstore"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// DuplicateRepository persists DuplicateEntity provenance nodes created
// during merges.
type DuplicateRepository struct {
	store  graphstore.Store
	logger ectologger.Logger
}

// NewDuplicateRepository creates a duplicate repository.
func NewDuplicateRepository(store graphstore.Store, logger ectologger.Logger) *DuplicateRepository {
	return &DuplicateRepository{store: store, logger: logger}
}

// Create records the pre-merge identity of the source entity against the
// surviving canonical entity.
func (r *DuplicateRepository) Create(ctx context.Context, dup *models.DuplicateEntity) error {
	ctx, span := tracing.StartSpan(ctx, "repositories.DuplicateRepository.Create")
	defer span.End()

	return r.store.Execute(ctx, `
		MATCH (e:Entity {id: $entity_id})
		CREATE (d:DuplicateEntity {
			id: $id,
			tenant_id: $tenant_id,
			original_name: $original_name,
			normalized_name: $normalized_name,
			source_system: $source_system,
			created_at: $created_at
		})
		CREATE (d)-[:DUPLICATE_OF]->(e)`,
		map[string]any{
			"id":              dup.ID,
			"tenant_id":       dup.TenantID,
			"entity_id":       dup.EntityID,
			"original_name":   dup.OriginalName,
			"normalized_name": dup.NormalizedName,
			"source_system":   dup.SourceSystem,
			"created_at":      dup.CreatedAt.UTC().Format(timeFormat),
		})
}

// Delete removes a duplicate node. Only used by merge compensation.
func (r *DuplicateRepository) Delete(ctx context.Context, duplicateID string) error {
	ctx, span := tracing.StartSpan(ctx, "repositories.DuplicateRepository.Delete")
	defer span.End()

	return r.store.Execute(ctx, `
		MATCH (d:DuplicateEntity {id: $id})
		DETACH DELETE d`,
		map[string]any{"id": duplicateID})
}

// GetForEntity lists the duplicates recorded against a canonical entity.
func (r *DuplicateRepository) GetForEntity(ctx context.Context, entityID string) ([]*models.DuplicateEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "repositories.DuplicateRepository.GetForEntity")
	defer span.End()

	rows, err := r.store.Query(ctx, `
		MATCH (d:DuplicateEntity)-[:DUPLICATE_OF]->(e:Entity {id: $entity_id})
		RETURN properties(d) AS props, e.id AS entity_id
		ORDER BY d.created_at ASC`,
		map[string]any{"entity_id": entityID})
	if err != nil {
		return nil, err
	}

	out := make([]*models.DuplicateEntity, 0, len(rows))
	for _, row := range rows {
		props, ok := row["props"].(map[string]any)
		if !ok {
			continue
		}
		out = append(out, &models.DuplicateEntity{
			ID:             getString(props, "id"),
			TenantID:       getString(props, "tenant_id"),
			OriginalName:   getString(props, "original_name"),
			NormalizedName: getString(props, "normalized_name"),
			SourceSystem:   getString(props, "source_system"),
			EntityID:       getString(row, "entity_id"),
			CreatedAt:      getTime(props, "created_at"),
		})
	}
	return out, nil
}
