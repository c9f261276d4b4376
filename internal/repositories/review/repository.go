// Package review persists the human review queue.
package review

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/bramble/pkg/database"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

const maxPageSize = 500

// Repository handles review item persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new review repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create enqueues a review item.
func (r *Repository) Create(ctx context.Context, item *models.ReviewItem) (*models.ReviewItem, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Repository.Create")
	defer span.End()

	if item.SubmittedAt.IsZero() {
		item.SubmittedAt = time.Now().UTC()
	}
	item.Status = models.ReviewStatusPending

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("review_items")
	sb.Cols("id", "tenant_id", "source_entity_id", "source_name", "candidate_entity_id", "similarity_score", "entity_type", "status", "match_decision_id", "submitted_at")
	sb.Values(item.ID, item.TenantID, item.SourceEntityID, item.SourceName, item.CandidateEntityID, item.SimilarityScore, item.EntityType, item.Status, item.MatchDecisionID, item.SubmittedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"review_id": item.ID}).Error("Failed to create review item")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create review item")
	}

	return item, nil
}

// Get retrieves a review item by ID
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.ReviewItem, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "source_entity_id", "source_name", "candidate_entity_id", "similarity_score", "entity_type", "status", "match_decision_id", "submitted_at", "reviewed_at", "reviewer_id", "notes")
	sb.From("review_items")
	where := []string{sb.Equal("id", id)}
	if tenantID != "" {
		where = append(where, sb.Equal("tenant_id", tenantID))
	}
	sb.Where(where...)

	query, args := sb.Build()
	var item models.ReviewItem
	if err := r.db.GetContext(ctx, &item, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, models.NewError(models.ErrNotFound, "review item %q not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get review item")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get review item")
	}

	return &item, nil
}

// List returns one page of review items matching the filter with the total
// count. Default ordering is submitted_at ascending; score-range filters
// switch the ordering to score descending.
func (r *Repository) List(ctx context.Context, tenantID string, filter models.ReviewFilter, page models.PageRequest) (*models.ReviewPage, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Repository.List")
	defer span.End()

	if page.Limit < 1 || page.Limit > maxPageSize {
		page.Limit = 100
	}
	if page.Offset < 0 {
		page.Offset = 0
	}

	buildWhere := func(sb *sqlbuilder.SelectBuilder) {
		var where []string
		if tenantID != "" {
			where = append(where, sb.Equal("tenant_id", tenantID))
		}
		if filter.Status != "" {
			where = append(where, sb.Equal("status", filter.Status))
		}
		if filter.EntityType != "" {
			where = append(where, sb.Equal("entity_type", filter.EntityType))
		}
		if filter.MinScore != nil {
			where = append(where, sb.GreaterEqualThan("similarity_score", *filter.MinScore))
		}
		if filter.MaxScore != nil {
			where = append(where, sb.LessEqualThan("similarity_score", *filter.MaxScore))
		}
		if len(where) > 0 {
			sb.Where(where...)
		}
	}

	countSB := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countSB.Select("COUNT(*)")
	countSB.From("review_items")
	buildWhere(countSB)

	query, args := countSB.Build()
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count review items")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list review items")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "source_entity_id", "source_name", "candidate_entity_id", "similarity_score", "entity_type", "status", "match_decision_id", "submitted_at", "reviewed_at", "reviewer_id", "notes")
	sb.From("review_items")
	buildWhere(sb)
	if filter.MinScore != nil || filter.MaxScore != nil {
		sb.OrderBy("similarity_score DESC", "submitted_at ASC")
	} else {
		sb.OrderBy("submitted_at ASC")
	}
	sb.Offset(page.Offset)
	sb.Limit(page.Limit)

	query, args = sb.Build()
	var items []models.ReviewItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list review items")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list review items")
	}

	return &models.ReviewPage{
		Items:  items,
		Total:  total,
		Offset: page.Offset,
		Limit:  page.Limit,
	}, nil
}

// MarkDecided transitions a PENDING item to its terminal status. The status
// guard in the WHERE clause makes double-deciding visible as zero rows.
func (r *Repository) MarkDecided(ctx context.Context, tenantID, id string, status models.ReviewStatus, reviewerID string, notes *string) error {
	ctx, span := tracing.StartSpan(ctx, "review.Repository.MarkDecided")
	defer span.End()

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("review_items")
	sb.Set(
		sb.Assign("status", status),
		sb.Assign("reviewed_at", now),
		sb.Assign("reviewer_id", reviewerID),
		sb.Assign("notes", notes),
	)
	where := []string{
		sb.Equal("id", id),
		sb.Equal("status", models.ReviewStatusPending),
	}
	if tenantID != "" {
		where = append(where, sb.Equal("tenant_id", tenantID))
	}
	sb.Where(where...)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update review item")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update review item")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Either missing or already decided; disambiguate for the caller.
		existing, getErr := r.Get(ctx, tenantID, id)
		if getErr != nil {
			return getErr
		}
		return models.NewError(models.ErrStateInvalid, "review item %q already decided (%s)", id, existing.Status)
	}

	return nil
}
