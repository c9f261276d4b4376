package resolve

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/bramble/internal/repositories"
	"github.com/Ramsey-B/bramble/pkg/appcontext"
	"github.com/Ramsey-B/bramble/pkg/metrics"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/resolution"
	"github.com/Ramsey-B/bramble/pkg/utils"
)

// Register registers resolution routes
func Register(g *echo.Group) {
	g.POST("", ResolveMention)
	g.POST("/async", ResolveMentionAsync)
	g.POST("/batch", ResolveBatch)
}

// ResolveRequest is the request body for resolving a single mention
type ResolveRequest struct {
	Name         string          `json:"name" validate:"required"`
	EntityType   string          `json:"entity_type" validate:"required"`
	SourceSystem string          `json:"source_system,omitempty"`
	Attributes   json.RawMessage `json:"attributes,omitempty"`
}

// ResolveMention resolves one mention to its canonical entity
func ResolveMention(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	req, err := utils.BindRequest[ResolveRequest](c)
	if err != nil {
		return err
	}

	ctx, resolver, err := ectoinject.GetContext[*resolution.Resolver](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "resolver unavailable")
	}

	start := time.Now()
	result, err := resolver.Resolve(ctx, models.Mention{
		TenantID:     tenantID,
		Name:         req.Name,
		EntityType:   req.EntityType,
		SourceSystem: req.SourceSystem,
		Attributes:   req.Attributes,
	})
	if err != nil {
		return err
	}
	metrics.RecordResolution(tenantID, req.EntityType, string(result.Outcome), time.Since(start).Seconds())

	status := http.StatusOK
	if result.IsNewEntity {
		status = http.StatusCreated
	}
	return c.JSON(status, result)
}

// ResolveMentionAsync resolves a mention on a background goroutine bounded by
// the configured async timeout, detached from the request's own cancellation.
func ResolveMentionAsync(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	req, err := utils.BindRequest[ResolveRequest](c)
	if err != nil {
		return err
	}

	ctx, resolver, err := ectoinject.GetContext[*resolution.Resolver](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "resolver unavailable")
	}

	future := resolution.NewAsyncResolver(resolver).ResolveAsync(ctx, models.Mention{
		TenantID:     tenantID,
		Name:         req.Name,
		EntityType:   req.EntityType,
		SourceSystem: req.SourceSystem,
		Attributes:   req.Attributes,
	})

	result, err := future.Wait(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// BatchMention is one staged mention in a batch request
type BatchMention struct {
	TempID       string          `json:"temp_id" validate:"required"`
	Name         string          `json:"name" validate:"required"`
	EntityType   string          `json:"entity_type" validate:"required"`
	SourceSystem string          `json:"source_system,omitempty"`
	Attributes   json.RawMessage `json:"attributes,omitempty"`
}

// BatchRelationship is an edge between two staged mentions
type BatchRelationship struct {
	FromTempID string          `json:"from_temp_id" validate:"required"`
	ToTempID   string          `json:"to_temp_id" validate:"required"`
	Type       string          `json:"type" validate:"required"`
	Props      json.RawMessage `json:"props,omitempty"`
}

// BatchResolveRequest is the request body for batch resolution
type BatchResolveRequest struct {
	Mentions      []BatchMention      `json:"mentions" validate:"required,min=1,dive"`
	Relationships []BatchRelationship `json:"relationships,omitempty" validate:"dive"`
}

// BatchMentionResult reports the outcome for one staged mention
type BatchMentionResult struct {
	TempID string                   `json:"temp_id"`
	Result *models.ResolutionResult `json:"result,omitempty"`
	Error  string                   `json:"error,omitempty"`
}

// BatchResolveResponse is the response body for batch resolution
type BatchResolveResponse struct {
	Results       []BatchMentionResult     `json:"results"`
	Chunks        []resolution.ChunkResult `json:"chunks"`
	Resolved      int                      `json:"resolved"`
	Failed        int                      `json:"failed"`
	Relationships int                      `json:"relationships"`
}

// ResolveBatch stages a set of mentions plus relationships and commits them
// in one pass; mentions sharing a normalized name share one resolution.
func ResolveBatch(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	req, err := utils.BindRequest[BatchResolveRequest](c)
	if err != nil {
		return err
	}

	ctx, resolver, err := ectoinject.GetContext[*resolution.Resolver](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "resolver unavailable")
	}
	ctx, relationships, err := ectoinject.GetContext[*repositories.RelationshipRepository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "relationship store unavailable")
	}
	ctx, logger, err := ectoinject.GetContext[ectologger.Logger](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "logger unavailable")
	}

	batch := resolution.NewBatch(resolver, relationships, resolver.Options(), logger)
	defer batch.Release()

	refs := make(map[string]*resolution.BatchRef, len(req.Mentions))
	order := make([]string, 0, len(req.Mentions))
	for _, m := range req.Mentions {
		if _, ok := refs[m.TempID]; ok {
			return httperror.NewHTTPError(http.StatusBadRequest, "duplicate temp_id "+m.TempID)
		}
		ref, err := batch.Resolve(models.Mention{
			TenantID:     tenantID,
			Name:         m.Name,
			EntityType:   m.EntityType,
			SourceSystem: m.SourceSystem,
			Attributes:   m.Attributes,
		})
		if err != nil {
			return err
		}
		refs[m.TempID] = ref
		order = append(order, m.TempID)
	}

	createdBy := appcontext.GetUserID(ctx)
	for _, rel := range req.Relationships {
		from, ok := refs[rel.FromTempID]
		if !ok {
			return httperror.NewHTTPError(http.StatusBadRequest, "unknown from_temp_id "+rel.FromTempID)
		}
		to, ok := refs[rel.ToTempID]
		if !ok {
			return httperror.NewHTTPError(http.StatusBadRequest, "unknown to_temp_id "+rel.ToTempID)
		}
		if err := batch.CreateRelationship(from, to, rel.Type, rel.Props, createdBy); err != nil {
			return err
		}
	}

	committed, err := batch.Commit(ctx)
	if err != nil {
		return err
	}

	resp := BatchResolveResponse{
		Results:       make([]BatchMentionResult, 0, len(order)),
		Chunks:        committed.Chunks,
		Resolved:      committed.Resolved,
		Failed:        committed.Failed,
		Relationships: committed.Relationships,
	}
	for _, tempID := range order {
		ref := refs[tempID]
		out := BatchMentionResult{TempID: tempID, Result: ref.Result()}
		if err := ref.Err(); err != nil {
			out.Error = err.Error()
		}
		resp.Results = append(resp.Results, out)
	}

	return c.JSON(http.StatusOK, resp)
}
