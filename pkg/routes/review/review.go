package review

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/bramble/pkg/appcontext"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/review"
	"github.com/Ramsey-B/bramble/pkg/utils"
)

// Register registers review queue routes
func Register(g *echo.Group) {
	g.GET("", ListReviews)
	g.POST("/:id/approve", ApproveReview)
	g.POST("/:id/reject", RejectReview)
}

// ListReviews pages the review queue; status defaults to PENDING
func ListReviews(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	filter := models.ReviewFilter{
		Status:     models.ReviewStatus(c.QueryParam("status")),
		EntityType: c.QueryParam("entity_type"),
	}
	if raw := c.QueryParam("min_score"); raw != "" {
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "min_score must be a number")
		}
		filter.MinScore = &score
	}
	if raw := c.QueryParam("max_score"); raw != "" {
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "max_score must be a number")
		}
		filter.MaxScore = &score
	}

	page := models.PageRequest{Limit: 50}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return httperror.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		page.Limit = limit
	}
	if raw := c.QueryParam("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return httperror.NewHTTPError(http.StatusBadRequest, "offset must be a non-negative integer")
		}
		page.Offset = offset
	}

	ctx, service, err := ectoinject.GetContext[*review.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "review service unavailable")
	}

	result, err := service.GetPending(ctx, tenantID, filter, page)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// DecideRequest is the request body for approve/reject
type DecideRequest struct {
	Notes *string `json:"notes,omitempty"`
}

// ApproveReview confirms a queued match
func ApproveReview(c echo.Context) error {
	return decide(c, models.ReviewActionApprove)
}

// RejectReview dismisses a queued match
func RejectReview(c echo.Context) error {
	return decide(c, models.ReviewActionReject)
}

func decide(c echo.Context, action models.ReviewAction) error {
	ctx := c.Request().Context()
	tenantID := appcontext.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}
	reviewerID := appcontext.GetUserID(ctx)
	if reviewerID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "user_id is required to decide a review")
	}

	id := c.Param("id")

	req, err := utils.BindRequest[DecideRequest](c)
	if err != nil {
		return err
	}

	ctx, service, err := ectoinject.GetContext[*review.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "review service unavailable")
	}

	if action == models.ReviewActionApprove {
		err = service.Approve(ctx, tenantID, id, reviewerID, req.Notes)
	} else {
		err = service.Reject(ctx, tenantID, id, reviewerID, req.Notes)
	}
	if err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
