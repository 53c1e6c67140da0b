package snapshot

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/joabeoliveira/ocupacao/internal/httperr"
	"github.com/joabeoliveira/ocupacao/internal/platform/auth"
)

type Handler struct {
	svc    *Service
	detail bool
}

// NewHandler returns the snapshot handler. detail exposes internal error
// text in 5xx responses.
func NewHandler(svc *Service, detail bool) *Handler {
	return &Handler{svc: svc, detail: detail}
}

// RegisterRoutes mounts the history endpoints on api. cached wraps the
// read-only aggregate routes.
func (h *Handler) RegisterRoutes(api *echo.Group, cached ...echo.MiddlewareFunc) {
	read := api.Group("", auth.RequireRole(auth.AllRoles...))
	read.GET("/history", h.History, cached...)
	read.GET("/stats", h.Stats, cached...)
	read.GET("/chart", h.Chart, cached...)
	read.GET("/clinics", h.Clinics, cached...)
	read.GET("/snapshots/:date/imports", h.Imports)

	write := api.Group("", auth.RequireRole(auth.RoleUploader, auth.RoleManagement))
	write.PUT("/snapshots/:date", h.MoveDate)
	write.DELETE("/snapshots/:date", h.DeleteDate)

	source := api.Group("", auth.RequireRole(auth.RoleManagement))
	source.GET("/imports/:id/source", h.SourceFile)
}

func (h *Handler) fail(err error) error {
	return httperr.Map(err, h.detail)
}

// queryDate parses the optional data parameter.
func queryDate(c echo.Context) (*time.Time, error) {
	v := c.QueryParam("data")
	if v == "" {
		return nil, nil
	}
	d, err := ParseDate(v)
	if err != nil {
		return nil, &FilterError{Field: "data", Value: v, Reason: "expected YYYY-MM-DD or DD/MM/YYYY"}
	}
	return &d, nil
}

func pathDate(c echo.Context) (time.Time, error) {
	v := c.Param("date")
	d, err := ParseDate(v)
	if err != nil {
		return time.Time{}, &FilterError{Field: "date", Value: v, Reason: "expected YYYY-MM-DD or DD/MM/YYYY"}
	}
	return d, nil
}

func (h *Handler) History(c echo.Context) error {
	entries, err := h.svc.History(c.Request().Context())
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"dates": entries})
}

func (h *Handler) Stats(c echo.Context) error {
	date, err := queryDate(c)
	if err != nil {
		return h.fail(err)
	}
	stats, err := h.svc.DayStats(c.Request().Context(), date)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) Chart(c echo.Context) error {
	date, err := queryDate(c)
	if err != nil {
		return h.fail(err)
	}
	points, err := h.svc.Chart(c.Request().Context(), date)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"points": points})
}

func (h *Handler) Clinics(c echo.Context) error {
	clinics, err := h.svc.Clinics(c.Request().Context())
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"clinics": clinics})
}

func (h *Handler) Imports(c echo.Context) error {
	date, err := pathDate(c)
	if err != nil {
		return h.fail(err)
	}
	imps, err := h.svc.Imports(c.Request().Context(), date)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"reference_date": date.Format(DateLayout),
		"imports":        imps,
	})
}

type moveRequest struct {
	NewDate string `json:"new_date"`
}

func (h *Handler) MoveDate(c echo.Context) error {
	from, err := pathDate(c)
	if err != nil {
		return h.fail(err)
	}
	var req moveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.NewDate == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "new_date is required")
	}
	to, err := ParseDate(req.NewDate)
	if err != nil {
		return h.fail(&FilterError{Field: "new_date", Value: req.NewDate, Reason: "expected YYYY-MM-DD or DD/MM/YYYY"})
	}

	ctx := c.Request().Context()
	n, err := h.svc.MoveDate(ctx, from, to, auth.UserIDFromContext(ctx))
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"from": from.Format(DateLayout),
		"to":   to.Format(DateLayout),
		"rows": n,
	})
}

func (h *Handler) DeleteDate(c echo.Context) error {
	date, err := pathDate(c)
	if err != nil {
		return h.fail(err)
	}
	ctx := c.Request().Context()
	n, err := h.svc.DeleteDate(ctx, date, auth.UserIDFromContext(ctx))
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"reference_date": date.Format(DateLayout),
		"rows":           n,
	})
}

func (h *Handler) SourceFile(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid import id")
	}
	imp, obj, err := h.svc.SourceFile(c.Request().Context(), id)
	if err != nil {
		return h.fail(err)
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", imp.FileName))
	return c.Blob(http.StatusOK, contentType, obj.Data)
}
