// Package httperr maps service errors onto HTTP responses in one place.
package httperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/joabeoliveira/ocupacao/internal/platform/db"
)

// Error is a domain error that knows its HTTP status. Packages declare
// sentinels with New and wrap them for context.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// Status returns the HTTP status err maps to.
func Status(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Status
	}
	if db.IsUnavailable(err) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Map converts err into an *echo.HTTPError. Client errors carry the full
// wrapped message; server errors carry a generic message unless detail is
// set. The original error is always kept as Internal for the request log.
func Map(err error, detail bool) error {
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	status := Status(err)
	msg := err.Error()
	switch {
	case status == http.StatusServiceUnavailable:
		msg = "database unavailable"
		if detail {
			msg += ": " + err.Error()
		}
	case status >= 500 && !detail:
		msg = "internal server error"
	}
	return echo.NewHTTPError(status, msg).SetInternal(err)
}
