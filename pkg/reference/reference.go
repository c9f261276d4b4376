// Package reference provides merge-stable handles to canonical entities. A
// reference taken before a merge keeps pointing at the surviving entity.
package reference

import "context"

// Resolver follows the merge chain from an original id to the current
// canonical id. It returns the input id when the entity is already canonical.
type Resolver func(ctx context.Context, originalID string) (string, error)

// EntityReference is an opaque handle to an entity. Identity is defined by
// the current canonical id plus type, never the original id.
type EntityReference struct {
	originalID string
	entityType string
	resolve    Resolver
}

// New creates a reference for the given original id.
func New(originalID, entityType string, resolve Resolver) *EntityReference {
	return &EntityReference{originalID: originalID, entityType: entityType, resolve: resolve}
}

// Type returns the entity type.
func (r *EntityReference) Type() string {
	return r.entityType
}

// CurrentID resolves the current canonical id.
func (r *EntityReference) CurrentID(ctx context.Context) (string, error) {
	return r.resolve(ctx, r.originalID)
}

// WasMerged reports whether the referenced entity has been merged away since
// the reference was taken.
func (r *EntityReference) WasMerged(ctx context.Context) (bool, error) {
	current, err := r.resolve(ctx, r.originalID)
	if err != nil {
		return false, err
	}
	return current != r.originalID, nil
}

// Equal reports whether two references point at the same canonical entity.
func (r *EntityReference) Equal(ctx context.Context, other *EntityReference) (bool, error) {
	if other == nil {
		return false, nil
	}
	if r.entityType != other.entityType {
		return false, nil
	}

	selfID, err := r.CurrentID(ctx)
	if err != nil {
		return false, err
	}
	otherID, err := other.CurrentID(ctx)
	if err != nil {
		return false, err
	}
	return selfID == otherID, nil
}
