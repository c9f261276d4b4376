// Package models defines the domain types shared across bramble services.
package models

import (
	"encoding/json"
	"time"
)

// EntityStatus describes the lifecycle state of a canonical entity
type EntityStatus string

const (
	EntityStatusActive EntityStatus = "ACTIVE"
	EntityStatusMerged EntityStatus = "MERGED"
)

// Entity is a canonical node in the resolution graph. Exactly one ACTIVE
// entity exists per (normalized_name, entity_type, tenant_id) tuple.
type Entity struct {
	ID              string       `json:"id"`
	TenantID        string       `json:"tenant_id"`
	CanonicalName   string       `json:"canonical_name"`
	NormalizedName  string       `json:"normalized_name"`
	EntityType      string       `json:"entity_type"`
	ConfidenceScore float64      `json:"confidence_score"`
	Status          EntityStatus `json:"status"`
	BlockingKeys    []string     `json:"blocking_keys"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// IsActive reports whether the entity is the surviving canonical node.
func (e *Entity) IsActive() bool {
	return e.Status == EntityStatusActive
}

// Mention is a single inbound entity observation to resolve.
type Mention struct {
	TenantID     string          `json:"tenant_id"`
	Name         string          `json:"name"`
	EntityType   string          `json:"entity_type"`
	SourceSystem string          `json:"source_system,omitempty"`
	Attributes   json.RawMessage `json:"attributes,omitempty"`
}

// DuplicateEntity records the pre-merge identity of a source entity,
// attached to the surviving canonical entity via DUPLICATE_OF.
type DuplicateEntity struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	OriginalName   string    `json:"original_name"`
	NormalizedName string    `json:"normalized_name"`
	SourceSystem   string    `json:"source_system"`
	EntityID       string    `json:"entity_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// LibraryRelationship is a typed edge between two canonical entities.
// Both endpoints must be ACTIVE at creation; merges re-home the edge to
// the surviving entity.
type LibraryRelationship struct {
	ID           string          `json:"id"`
	TenantID     string          `json:"tenant_id"`
	Type         string          `json:"type"`
	FromEntityID string          `json:"from_entity_id"`
	ToEntityID   string          `json:"to_entity_id"`
	Props        json.RawMessage `json:"props,omitempty"`
	CreatedBy    string          `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
}
