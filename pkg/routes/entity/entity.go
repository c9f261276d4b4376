package entity

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/bramble/internal/repositories"
	"github.com/Ramsey-B/bramble/pkg/appcontext"
	"github.com/Ramsey-B/bramble/pkg/audit"
	"github.com/Ramsey-B/bramble/pkg/merging"
	"github.com/Ramsey-B/bramble/pkg/utils"
)

// Register registers entity routes
func Register(g *echo.Group) {
	g.GET("/:id", GetEntity)
	g.GET("/:id/current", GetCurrentEntity)
	g.GET("/:id/synonyms", GetEntitySynonyms)
	g.GET("/:id/duplicates", GetEntityDuplicates)
	g.GET("/:id/relationships", GetEntityRelationships)
	g.GET("/:id/chain", GetMergeChain)
	g.GET("/:id/merges", GetMergeRecords)
	g.POST("/merge", MergeEntities)
}

// GetEntity gets an entity by ID
func GetEntity(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*repositories.EntityRepository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	entity, err := repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, entity)
}

// GetCurrentEntity follows MERGED_INTO hops from the given ID and returns
// the surviving canonical entity.
func GetCurrentEntity(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*repositories.EntityRepository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	currentID, err := repo.ResolveCurrentID(ctx, id)
	if err != nil {
		return err
	}

	entity, err := repo.GetByID(ctx, currentID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, entity)
}

// GetEntitySynonyms lists the synonyms attached to an entity
func GetEntitySynonyms(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*repositories.SynonymRepository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	synonyms, err := repo.GetByEntity(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, synonyms)
}

// GetEntityDuplicates lists the duplicate records folded into an entity
func GetEntityDuplicates(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*repositories.DuplicateRepository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	duplicates, err := repo.GetForEntity(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, duplicates)
}

// GetEntityRelationships lists relationships touching an entity
func GetEntityRelationships(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*repositories.RelationshipRepository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	relationships, err := repo.GetForEntity(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, relationships)
}

// GetMergeChain walks the merge lineage of an entity, nearest hop first
func GetMergeChain(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	ctx, service, err := ectoinject.GetContext[*audit.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	chain, err := service.GetMergeChain(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, chain)
}

// GetMergeRecords lists ledger entries where this entity survived a merge
func GetMergeRecords(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appcontext.GetTenantID(ctx)
	id := c.Param("id")

	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return httperror.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	ctx, service, err := ectoinject.GetContext[*audit.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	records, err := service.GetRecordsForTarget(ctx, tenantID, id, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, records)
}

// MergeRequest is the request body for a direct merge
type MergeRequest struct {
	SourceID   string  `json:"source_id" validate:"required"`
	TargetID   string  `json:"target_id" validate:"required"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// MergeEntities merges the source entity into the target
func MergeEntities(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	req, err := utils.BindRequest[MergeRequest](c)
	if err != nil {
		return err
	}

	triggeredBy := appcontext.GetUserID(ctx)
	if triggeredBy == "" {
		triggeredBy = "api"
	}

	ctx, engine, err := ectoinject.GetContext[*merging.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "merge engine unavailable")
	}

	record, err := engine.Merge(ctx, merging.Request{
		SourceID:    req.SourceID,
		TargetID:    req.TargetID,
		Confidence:  req.Confidence,
		Decision:    "MANUAL",
		TriggeredBy: triggeredBy,
		Reasoning:   req.Reasoning,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, record)
}
