package models

import "time"

// ReviewStatus is the workflow state of a review item
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "PENDING"
	ReviewStatusApproved ReviewStatus = "APPROVED"
	ReviewStatusRejected ReviewStatus = "REJECTED"
)

// ReviewAction is a human decision on a review item
type ReviewAction string

const (
	ReviewActionApprove ReviewAction = "APPROVE"
	ReviewActionReject  ReviewAction = "REJECT"
)

// ReviewItem is a queued match awaiting human judgement. Resolve-originated
// items carry the raw mention in SourceName and no SourceEntityID, since no
// entity is created for a REVIEW-range input; entity-vs-entity items carry
// both endpoints.
type ReviewItem struct {
	ID                string       `json:"id" db:"id"`
	TenantID          string       `json:"tenant_id" db:"tenant_id"`
	SourceEntityID    string       `json:"source_entity_id" db:"source_entity_id"`
	SourceName        string       `json:"source_name" db:"source_name"`
	CandidateEntityID string       `json:"candidate_entity_id" db:"candidate_entity_id"`
	SimilarityScore   float64      `json:"similarity_score" db:"similarity_score"`
	EntityType        string       `json:"entity_type" db:"entity_type"`
	Status            ReviewStatus `json:"status" db:"status"`
	MatchDecisionID   string       `json:"match_decision_id" db:"match_decision_id"`
	SubmittedAt       time.Time    `json:"submitted_at" db:"submitted_at"`
	ReviewedAt        *time.Time   `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ReviewerID        *string      `json:"reviewer_id,omitempty" db:"reviewer_id"`
	Notes             *string      `json:"notes,omitempty" db:"notes"`
}

// ReviewDecision is the immutable record of a human approve/reject, linked
// to the MatchDecision it confirms or contradicts.
type ReviewDecision struct {
	ID              string       `json:"id"`
	TenantID        string       `json:"tenant_id"`
	ReviewID        string       `json:"review_id"`
	MatchDecisionID string       `json:"match_decision_id"`
	Action          ReviewAction `json:"action"`
	ReviewerID      string       `json:"reviewer_id"`
	Rationale       *string      `json:"rationale,omitempty"`
	DecidedAt       time.Time    `json:"decided_at"`
}

// ReviewFilter narrows review queue listings.
type ReviewFilter struct {
	Status     ReviewStatus
	EntityType string
	MinScore   *float64
	MaxScore   *float64
}

// PageRequest is offset/limit pagination.
type PageRequest struct {
	Offset int
	Limit  int
}

// ReviewPage is one page of review items with the total count.
type ReviewPage struct {
	Items  []ReviewItem `json:"items"`
	Total  int          `json:"total"`
	Offset int          `json:"offset"`
	Limit  int          `json:"limit"`
}
