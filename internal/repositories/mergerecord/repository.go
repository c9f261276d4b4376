// Package mergerecord persists the append-only merge ledger.
package mergerecord

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/bramble/pkg/database"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

const maxPageSize = 500

// Repository handles merge record persistence. The ledger is append-only
// and tolerant of duplicate correlation ids.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new merge record repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Append writes one ledger entry.
func (r *Repository) Append(ctx context.Context, record *models.MergeRecord) (*models.MergeRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "mergerecord.Repository.Append")
	defer span.End()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.MergedAt.IsZero() {
		record.MergedAt = time.Now().UTC()
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("merge_records")
	sb.Cols("id", "tenant_id", "source_id", "target_id", "source_name", "target_name", "confidence", "decision", "triggered_by", "reasoning", "correlation_id", "merged_at")
	sb.Values(record.ID, record.TenantID, record.SourceID, record.TargetID, record.SourceName, record.TargetName, record.Confidence, record.Decision, record.TriggeredBy, record.Reasoning, record.CorrelationID, record.MergedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"source_id": record.SourceID,
			"target_id": record.TargetID,
		}).Error("Failed to append merge record")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to append merge record")
	}

	return record, nil
}

// GetForTarget lists ledger entries where the entity was the surviving side,
// newest first.
func (r *Repository) GetForTarget(ctx context.Context, tenantID, targetID string, limit int) ([]models.MergeRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "mergerecord.Repository.GetForTarget")
	defer span.End()

	if limit < 1 || limit > maxPageSize {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "source_id", "target_id", "source_name", "target_name", "confidence", "decision", "triggered_by", "reasoning", "correlation_id", "merged_at")
	sb.From("merge_records")
	where := []string{sb.Equal("target_id", targetID)}
	if tenantID != "" {
		where = append(where, sb.Equal("tenant_id", tenantID))
	}
	sb.Where(where...)
	sb.OrderBy("merged_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var records []models.MergeRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list merge records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list merge records")
	}

	return records, nil
}

// List pages the ledger by cursor timestamp, newest first.
func (r *Repository) List(ctx context.Context, tenantID string, cursor *time.Time, limit int) ([]models.MergeRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "mergerecord.Repository.List")
	defer span.End()

	if limit < 1 || limit > maxPageSize {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "source_id", "target_id", "source_name", "target_name", "confidence", "decision", "triggered_by", "reasoning", "correlation_id", "merged_at")
	sb.From("merge_records")
	var where []string
	if tenantID != "" {
		where = append(where, sb.Equal("tenant_id", tenantID))
	}
	if cursor != nil {
		where = append(where, sb.LessThan("merged_at", *cursor))
	}
	if len(where) > 0 {
		sb.Where(where...)
	}
	sb.OrderBy("merged_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var records []models.MergeRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list merge records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list merge records")
	}

	return records, nil
}
