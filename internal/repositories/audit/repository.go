// Package audit persists the append-only audit log.
package audit

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

// Repository handles audit entry persistence. Entries are append-only;
// there is no update or delete path.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new audit repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Append writes one audit entry.
func (r *Repository) Append(ctx context.Context, entry *models.AuditEntry) (*models.AuditEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "audit.Repository.Append")
	defer span.End()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("audit_entries")
	sb.Cols("id", "tenant_id", "entity_id", "action", "actor_id", "details", "created_at")
	sb.Values(entry.ID, entry.TenantID, entry.EntityID, entry.Action, entry.ActorID, []byte(entry.Details), entry.CreatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"entity_id": entry.EntityID,
			"action":    string(entry.Action),
		}).Error("Failed to append audit entry")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to append audit entry")
	}

	return entry, nil
}

// List returns entries matching the filter, newest first, using the cursor
// timestamp to page strictly older entries.
func (r *Repository) List(ctx context.Context, tenantID string, filter models.AuditFilter) ([]models.AuditEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "audit.Repository.List")
	defer span.End()

	limit := filter.Limit
	if limit < 1 || limit > maxPageSize {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "entity_id", "action", "actor_id", "details", "created_at")
	sb.From("audit_entries")

	var where []string
	if tenantID != "" {
		where = append(where, sb.Equal("tenant_id", tenantID))
	}
	if filter.EntityID != "" {
		where = append(where, sb.Equal("entity_id", filter.EntityID))
	}
	if filter.Action != "" {
		where = append(where, sb.Equal("action", filter.Action))
	}
	if filter.ActorID != "" {
		where = append(where, sb.Equal("actor_id", filter.ActorID))
	}
	if filter.From != nil {
		where = append(where, sb.GreaterEqualThan("created_at", *filter.From))
	}
	if filter.To != nil {
		where = append(where, sb.LessEqualThan("created_at", *filter.To))
	}
	if filter.Cursor != nil {
		where = append(where, sb.LessThan("created_at", *filter.Cursor))
	}
	if len(where) > 0 {
		sb.Where(where...)
	}
	sb.OrderBy("created_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var entries []models.AuditEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list audit entries")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list audit entries")
	}

	return entries, nil
}
