package occupancy

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/joabeoliveira/ocupacao/internal/domain/snapshot"
	"github.com/joabeoliveira/ocupacao/internal/httperr"
	"github.com/joabeoliveira/ocupacao/internal/platform/auth"
)

type Handler struct {
	svc    *Service
	detail bool
}

func NewHandler(svc *Service, detail bool) *Handler {
	return &Handler{svc: svc, detail: detail}
}

func (h *Handler) RegisterRoutes(api *echo.Group, cached ...echo.MiddlewareFunc) {
	read := api.Group("/occupancy", auth.RequireRole(auth.AllRoles...))
	read.GET("/stats", h.Stats, cached...)
	read.GET("/evolution", h.Evolution, cached...)
	read.GET("/clinics", h.Clinics, cached...)
	read.GET("/buildings", h.Buildings, cached...)
}

func (h *Handler) filter(c echo.Context) (snapshot.Filter, error) {
	f, err := snapshot.ParseFilter(c.QueryParams(), h.svc.Buildings())
	if err != nil {
		return snapshot.Filter{}, httperr.Map(err, h.detail)
	}
	return f, nil
}

func (h *Handler) Stats(c echo.Context) error {
	f, err := h.filter(c)
	if err != nil {
		return err
	}
	st, err := h.svc.Stats(c.Request().Context(), f)
	if err != nil {
		return httperr.Map(err, h.detail)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) Evolution(c echo.Context) error {
	f, err := h.filter(c)
	if err != nil {
		return err
	}
	rows, err := h.svc.Evolution(c.Request().Context(), f)
	if err != nil {
		return httperr.Map(err, h.detail)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"months": rows, "filters": f.Echo()})
}

func (h *Handler) Clinics(c echo.Context) error {
	f, err := h.filter(c)
	if err != nil {
		return err
	}
	rows, err := h.svc.ByClinic(c.Request().Context(), f)
	if err != nil {
		return httperr.Map(err, h.detail)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"clinics": rows, "filters": f.Echo()})
}

func (h *Handler) Buildings(c echo.Context) error {
	f, err := h.filter(c)
	if err != nil {
		return err
	}
	rows, err := h.svc.ByBuilding(c.Request().Context(), f)
	if err != nil {
		return httperr.Map(err, h.detail)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"buildings": rows,
		"ranges":    h.svc.Buildings(),
		"filters":   f.Echo(),
	})
}
