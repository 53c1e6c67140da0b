package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets browser hardening headers on every request.
// Responses under any of noStorePrefixes carry patient identifiers and are
// marked no-store; other responses may be revalidated by the browser.
func SecurityHeaders(noStorePrefixes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

			cacheControl := "private, no-cache"
			path := c.Request().URL.Path
			for _, p := range noStorePrefixes {
				if strings.HasPrefix(path, p) {
					cacheControl = "no-store"
					break
				}
			}
			h.Set("Cache-Control", cacheControl)

			return next(c)
		}
	}
}
