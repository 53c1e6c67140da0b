package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/joabeoliveira/ocupacao/internal/platform/auth"
)

// AuditEntry records one access to patient-identifying data.
type AuditEntry struct {
	UserID     string
	UserRoles  []string
	Resource   string
	Action     string // read, export, create, update, delete
	Path       string
	Method     string
	Query      string
	IPAddress  string
	UserAgent  string
	RequestID  string
	StatusCode int
	Timestamp  time.Time
}

// AuditRecorder persists audit entries somewhere other than the log.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// DefaultAuditPrefixes are the routes that expose patient names, medical
// record numbers or raw uploads, plus the snapshot write routes.
var DefaultAuditPrefixes = []string{
	"/api/los",
	"/api/imports/",
	"/api/snapshots",
}

// Audit logs a "patient_data_access" event for every request whose path
// starts with one of prefixes. Reads of /api/snapshots listings are not
// audited; writes are.
func Audit(logger zerolog.Logger, prefixes []string, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			if !isAuditable(req.Method, path, prefixes) {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok && !c.Response().Committed {
				status = he.Code
			}

			ctx := req.Context()
			entry := AuditEntry{
				UserID:     auth.UserIDFromContext(ctx),
				UserRoles:  auth.RolesFromContext(ctx),
				Resource:   resourceOf(path),
				Action:     actionOf(req.Method, path),
				Path:       path,
				Method:     req.Method,
				Query:      req.URL.RawQuery,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				StatusCode: status,
				Timestamp:  time.Now().UTC(),
			}
			entry.RequestID, _ = c.Get("request_id").(string)

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("resource", entry.Resource).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("query", entry.Query).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("patient_data_access")

			return err
		}
	}
}

func isAuditable(method, path string, prefixes []string) bool {
	for _, p := range prefixes {
		if !strings.HasPrefix(path, p) {
			continue
		}
		if strings.HasPrefix(path, "/api/snapshots") && (method == http.MethodGet || method == http.MethodHead) {
			return false
		}
		return true
	}
	return false
}

// resourceOf returns the first segment after /api/, e.g. "los" or "imports".
func resourceOf(path string) string {
	rest := strings.TrimPrefix(path, "/api/")
	if rest == path {
		return "unknown"
	}
	seg, _, _ := strings.Cut(rest, "/")
	if seg == "" {
		return "unknown"
	}
	return seg
}

func actionOf(method, path string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		if strings.HasSuffix(path, "/export") || strings.HasSuffix(path, "/source") {
			return "export"
		}
		return "read"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}
