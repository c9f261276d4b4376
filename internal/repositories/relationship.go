package repositories

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/bramble/pkg/graphstore"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// RelationshipRepository persists LIBRARY_REL edges between entities and
// re-homes them when an endpoint is merged away.
type RelationshipRepository struct {
	store  graphstore.Store
	logger ectologger.Logger
}

// NewRelationshipRepository creates a relationship repository.
func NewRelationshipRepository(store graphstore.Store, logger ectologger.Logger) *RelationshipRepository {
	return &RelationshipRepository{store: store, logger: logger}
}

// Create links two ACTIVE entities. Either endpoint being missing or merged
// surfaces STATE_INVALID.
func (r *RelationshipRepository) Create(ctx context.Context, rel *models.LibraryRelationship) error {
	ctx, span := tracing.StartSpan(ctx, "repositories.RelationshipRepository.Create")
	defer span.End()

	rows, err := r.store.Query(ctx, `
		MATCH (f:Entity {id: $from_id}), (t:Entity {id: $to_id})
		RETURN f.status AS from_status, t.status AS to_status`,
		map[string]any{"from_id": rel.FromEntityID, "to_id": rel.ToEntityID})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return models.NewError(models.ErrNotFound, "relationship endpoints %q, %q not found", rel.FromEntityID, rel.ToEntityID)
	}
	if getString(rows[0], "from_status") != string(models.EntityStatusActive) ||
		getString(rows[0], "to_status") != string(models.EntityStatusActive) {
		return models.NewError(models.ErrStateInvalid, "relationship endpoints must both be ACTIVE")
	}

	return r.store.Execute(ctx, `
		MATCH (f:Entity {id: $from_id}), (t:Entity {id: $to_id})
		CREATE (f)-[:LIBRARY_REL {
			id: $id,
			tenant_id: $tenant_id,
			type: $type,
			props: $props,
			created_by: $created_by,
			created_at: $created_at
		}]->(t)`,
		map[string]any{
			"from_id":    rel.FromEntityID,
			"to_id":      rel.ToEntityID,
			"id":         rel.ID,
			"tenant_id":  rel.TenantID,
			"type":       rel.Type,
			"props":      string(rel.Props),
			"created_by": rel.CreatedBy,
			"created_at": rel.CreatedAt.UTC().Format(timeFormat),
		})
}

// Rehome rewrites the source's edges to point at the target. Edges that
// would become self-loops on the target are dropped. Moved edges are tagged
// with the source id so a best-effort reverse migration is possible.
func (r *RelationshipRepository) Rehome(ctx context.Context, sourceID, targetID string) error {
	ctx, span := tracing.StartSpan(ctx, "repositories.RelationshipRepository.Rehome")
	defer span.End()

	// Drop edges that would self-loop on the target.
	if err := r.store.Execute(ctx, `
		MATCH (s:Entity {id: $source_id})-[r:LIBRARY_REL]-(o:Entity {id: $target_id})
		DELETE r`,
		map[string]any{"source_id": sourceID, "target_id": targetID}); err != nil {
		return err
	}

	// Outgoing edges.
	if err := r.store.Execute(ctx, `
		MATCH (s:Entity {id: $source_id})-[r:LIBRARY_REL]->(o:Entity)
		MATCH (t:Entity {id: $target_id})
		CREATE (t)-[nr:LIBRARY_REL]->(o)
		SET nr = properties(r), nr.rehomed_from = $source_id
		DELETE r`,
		map[string]any{"source_id": sourceID, "target_id": targetID}); err != nil {
		return err
	}

	// Incoming edges.
	return r.store.Execute(ctx, `
		MATCH (o:Entity)-[r:LIBRARY_REL]->(s:Entity {id: $source_id})
		MATCH (t:Entity {id: $target_id})
		CREATE (o)-[nr:LIBRARY_REL]->(t)
		SET nr = properties(r), nr.rehomed_from = $source_id
		DELETE r`,
		map[string]any{"source_id": sourceID, "target_id": targetID})
}

// ReverseRehome moves re-homed edges back to the source. Self-looping edges
// dropped during Rehome are gone and cannot be restored.
func (r *RelationshipRepository) ReverseRehome(ctx context.Context, sourceID, targetID string) error {
	ctx, span := tracing.StartSpan(ctx, "repositories.RelationshipRepository.ReverseRehome")
	defer span.End()

	if err := r.store.Execute(ctx, `
		MATCH (t:Entity {id: $target_id})-[r:LIBRARY_REL {rehomed_from: $source_id}]->(o:Entity)
		MATCH (s:Entity {id: $source_id})
		CREATE (s)-[nr:LIBRARY_REL]->(o)
		SET nr = properties(r)
		REMOVE nr.rehomed_from
		DELETE r`,
		map[string]any{"source_id": sourceID, "target_id": targetID}); err != nil {
		return err
	}

	return r.store.Execute(ctx, `
		MATCH (o:Entity)-[r:LIBRARY_REL {rehomed_from: $source_id}]->(t:Entity {id: $target_id})
		MATCH (s:Entity {id: $source_id})
		CREATE (o)-[nr:LIBRARY_REL]->(s)
		SET nr = properties(r)
		REMOVE nr.rehomed_from
		DELETE r`,
		map[string]any{"source_id": sourceID, "target_id": targetID})
}

// GetForEntity lists edges touching an entity.
func (r *RelationshipRepository) GetForEntity(ctx context.Context, entityID string) ([]*models.LibraryRelationship, error) {
	ctx, span := tracing.StartSpan(ctx, "repositories.RelationshipRepository.GetForEntity")
	defer span.End()

	rows, err := r.store.Query(ctx, `
		MATCH (f:Entity)-[r:LIBRARY_REL]->(t:Entity)
		WHERE f.id = $entity_id OR t.id = $entity_id
		RETURN properties(r) AS props, f.id AS from_id, t.id AS to_id`,
		map[string]any{"entity_id": entityID})
	if err != nil {
		return nil, err
	}

	out := make([]*models.LibraryRelationship, 0, len(rows))
	for _, row := range rows {
		props, ok := row["props"].(map[string]any)
		if !ok {
			continue
		}
		out = append(out, &models.LibraryRelationship{
			ID:           getString(props, "id"),
			TenantID:     getString(props, "tenant_id"),
			Type:         getString(props, "type"),
			FromEntityID: getString(row, "from_id"),
			ToEntityID:   getString(row, "to_id"),
			Props:        []byte(getString(props, "props")),
			CreatedBy:    getString(props, "created_by"),
			CreatedAt:    getTime(props, "created_at"),
		})
	}
	return out, nil
}
