package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/bramble/pkg/appcontext"
	auditsvc "github.com/Ramsey-B/bramble/pkg/audit"
	"github.com/Ramsey-B/bramble/pkg/models"
)

// Register registers audit trail and merge ledger routes
func Register(g *echo.Group) {
	g.GET("", ListAuditEntries)
	g.GET("/merges", ListMergeRecords)
}

// ListAuditEntries pages the audit trail newest-first
func ListAuditEntries(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	filter := models.AuditFilter{
		EntityID: c.QueryParam("entity_id"),
		Action:   models.AuditAction(c.QueryParam("action")),
		ActorID:  c.QueryParam("actor_id"),
		Limit:    100,
	}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return httperror.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		filter.Limit = limit
	}
	cursor, err := parseTimeParam(c, "cursor")
	if err != nil {
		return err
	}
	filter.Cursor = cursor
	if filter.From, err = parseTimeParam(c, "from"); err != nil {
		return err
	}
	if filter.To, err = parseTimeParam(c, "to"); err != nil {
		return err
	}

	ctx, service, err := ectoinject.GetContext[*auditsvc.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "audit service unavailable")
	}

	entries, err := service.ListEntries(ctx, tenantID, filter)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, entries)
}

// ListMergeRecords pages the merge ledger newest-first
func ListMergeRecords(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return httperror.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}
	cursor, err := parseTimeParam(c, "cursor")
	if err != nil {
		return err
	}

	ctx, service, err := ectoinject.GetContext[*auditsvc.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "audit service unavailable")
	}

	records, err := service.ListMerges(ctx, tenantID, cursor, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, records)
}

func parseTimeParam(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, name+" must be an RFC3339 timestamp")
	}
	return &parsed, nil
}
