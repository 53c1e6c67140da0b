package los

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/joabeoliveira/ocupacao/internal/domain/snapshot"
	"github.com/joabeoliveira/ocupacao/internal/httperr"
	"github.com/joabeoliveira/ocupacao/internal/platform/auth"
	"github.com/joabeoliveira/ocupacao/pkg/pagination"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc    *Service
	detail bool
}

func NewHandler(svc *Service, detail bool) *Handler {
	return &Handler{svc: svc, detail: detail}
}

// RegisterRoutes mounts the length-of-stay endpoints. Responses carry
// patient data and are never cached.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/los", h.Report, auth.RequireRole(auth.AllRoles...))
	api.GET("/los/export", h.Export, auth.RequireRole(auth.RoleManagement))
}

func (h *Handler) filter(c echo.Context) (snapshot.Filter, error) {
	f, err := snapshot.ParseFilter(c.QueryParams(), h.svc.Buildings())
	if err != nil {
		return snapshot.Filter{}, httperr.Map(err, h.detail)
	}
	return f, nil
}

func (h *Handler) Report(c echo.Context) error {
	f, err := h.filter(c)
	if err != nil {
		return err
	}
	p := pagination.FromContext(c, h.svc.PageSize())
	rep, err := h.svc.Report(c.Request().Context(), f, p)
	if err != nil {
		return httperr.Map(err, h.detail)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) Export(c echo.Context) error {
	f, err := h.filter(c)
	if err != nil {
		return err
	}
	file, err := h.svc.Export(c.Request().Context(), f)
	if err != nil {
		return httperr.Map(err, h.detail)
	}
	hdr := c.Response().Header()
	hdr.Set(echo.HeaderContentDisposition, `attachment; filename="`+file.FileName+`"`)
	hdr.Set(echo.HeaderCacheControl, "no-store")
	hdr.Set("X-Export-Rows", strconv.Itoa(file.Rows))
	return c.Blob(http.StatusOK, xlsxContentType, file.Data)
}
