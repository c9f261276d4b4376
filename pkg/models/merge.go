package models

import (
	"encoding/json"
	"time"
)

// MergeRecord is one append-only ledger entry per successful merge.
type MergeRecord struct {
	ID            string    `json:"id" db:"id"`
	TenantID      string    `json:"tenant_id" db:"tenant_id"`
	SourceID      string    `json:"source_id" db:"source_id"`
	TargetID      string    `json:"target_id" db:"target_id"`
	SourceName    string    `json:"source_name" db:"source_name"`
	TargetName    string    `json:"target_name" db:"target_name"`
	Confidence    float64   `json:"confidence" db:"confidence"`
	Decision      string    `json:"decision" db:"decision"`
	TriggeredBy   string    `json:"triggered_by" db:"triggered_by"`
	Reasoning     string    `json:"reasoning" db:"reasoning"`
	CorrelationID string    `json:"correlation_id" db:"correlation_id"`
	MergedAt      time.Time `json:"merged_at" db:"merged_at"`
}

// MergeChainLink is one hop in a merge lineage walk.
type MergeChainLink struct {
	EntityID       string    `json:"entity_id"`
	CanonicalName  string    `json:"canonical_name"`
	MergedIntoID   string    `json:"merged_into_id"`
	MergedAt       time.Time `json:"merged_at"`
	Depth          int       `json:"depth"`
}

// AuditAction enumerates the audited operations.
type AuditAction string

const (
	AuditEntityCreated   AuditAction = "ENTITY_CREATED"
	AuditEntityMerged    AuditAction = "ENTITY_MERGED"
	AuditSynonymAttached AuditAction = "SYNONYM_ATTACHED"
	AuditReviewSubmitted AuditAction = "REVIEW_SUBMITTED"
	AuditReviewDecided   AuditAction = "REVIEW_DECIDED"
)

// AuditEntry is one append-only audit log row.
type AuditEntry struct {
	ID        string          `json:"id" db:"id"`
	TenantID  string          `json:"tenant_id" db:"tenant_id"`
	EntityID  string          `json:"entity_id" db:"entity_id"`
	Action    AuditAction     `json:"action" db:"action"`
	ActorID   string          `json:"actor_id" db:"actor_id"`
	Details   json.RawMessage `json:"details,omitempty" db:"details"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// AuditFilter narrows audit listings; Cursor is an ISO timestamp and pages
// strictly older entries.
type AuditFilter struct {
	EntityID string
	Action   AuditAction
	ActorID  string
	From     *time.Time
	To       *time.Time
	Cursor   *time.Time
	Limit    int
}
