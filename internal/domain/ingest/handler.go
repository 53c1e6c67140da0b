package ingest

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

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

// RegisterRoutes mounts the upload endpoint. upload is applied to the
// route after the role check, typically a body limit and a rate limit.
func (h *Handler) RegisterRoutes(api *echo.Group, upload ...echo.MiddlewareFunc) {
	write := api.Group("", auth.RequireRole(auth.RoleUploader, auth.RoleManagement))
	write.POST("/snapshots", h.Upload, upload...)
}

func (h *Handler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
			return he
		}
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file could not be read")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return httperr.Map(fmt.Errorf("read upload: %w", err), h.detail)
	}

	ctx := c.Request().Context()
	res, err := h.svc.Import(ctx, Request{
		FileName:      fh.Filename,
		ContentType:   fh.Header.Get(echo.HeaderContentType),
		Data:          data,
		ReferenceDate: c.FormValue("data_referencia"),
		Actor:         auth.UserIDFromContext(ctx),
	})
	if err != nil {
		return httperr.Map(err, h.detail)
	}
	return c.JSON(http.StatusCreated, res)
}
