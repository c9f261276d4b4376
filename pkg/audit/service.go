// Package audit exposes the append-only audit trail and the merge ledger,
// including the merge-lineage walk.
package audit

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// TrailStore persists audit entries.
type TrailStore interface {
	Append(ctx context.Context, entry *models.AuditEntry) (*models.AuditEntry, error)
	List(ctx context.Context, tenantID string, filter models.AuditFilter) ([]models.AuditEntry, error)
}

// LedgerStore persists merge records.
type LedgerStore interface {
	GetForTarget(ctx context.Context, tenantID, targetID string, limit int) ([]models.MergeRecord, error)
	List(ctx context.Context, tenantID string, cursor *time.Time, limit int) ([]models.MergeRecord, error)
}

// ChainWalker follows inbound MERGED_INTO edges.
type ChainWalker interface {
	MergeChain(ctx context.Context, id string) ([]models.MergeChainLink, error)
}

// Service fronts the audit trail and merge ledger.
type Service struct {
	trail  TrailStore
	ledger LedgerStore
	chains ChainWalker
	logger ectologger.Logger
}

// NewService creates an audit service.
func NewService(trail TrailStore, ledger LedgerStore, chains ChainWalker, logger ectologger.Logger) *Service {
	return &Service{trail: trail, ledger: ledger, chains: chains, logger: logger}
}

// Record appends one audit entry.
func (s *Service) Record(ctx context.Context, entry *models.AuditEntry) (*models.AuditEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "audit.Service.Record")
	defer span.End()

	return s.trail.Append(ctx, entry)
}

// ListEntries pages the audit trail newest-first; the cursor timestamp pages
// strictly older entries.
func (s *Service) ListEntries(ctx context.Context, tenantID string, filter models.AuditFilter) ([]models.AuditEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "audit.Service.ListEntries")
	defer span.End()

	return s.trail.List(ctx, tenantID, filter)
}

// ListMerges pages the merge ledger newest-first.
func (s *Service) ListMerges(ctx context.Context, tenantID string, cursor *time.Time, limit int) ([]models.MergeRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "audit.Service.ListMerges")
	defer span.End()

	return s.ledger.List(ctx, tenantID, cursor, limit)
}

// GetRecordsForTarget lists ledger entries where the entity survived a merge.
func (s *Service) GetRecordsForTarget(ctx context.Context, tenantID, targetID string, limit int) ([]models.MergeRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "audit.Service.GetRecordsForTarget")
	defer span.End()

	return s.ledger.GetForTarget(ctx, tenantID, targetID, limit)
}

// GetMergeChain walks the lineage of entities merged into the given one,
// nearest first.
func (s *Service) GetMergeChain(ctx context.Context, entityID string) ([]models.MergeChainLink, error) {
	ctx, span := tracing.StartSpan(ctx, "audit.Service.GetMergeChain")
	defer span.End()

	return s.chains.MergeChain(ctx, entityID)
}
