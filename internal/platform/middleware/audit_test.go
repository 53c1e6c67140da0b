package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/joabeoliveira/ocupacao/internal/platform/auth"
)

// mockRecorder collects audit entries for assertions.
type mockRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (m *mockRecorder) RecordAccess(entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

func (m *mockRecorder) last() AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[len(m.entries)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func newTestContext(method, target string, opts ...func(*http.Request)) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func withAuth(userID string, roles []string) func(*http.Request) {
	return func(req *http.Request) {
		*req = *req.WithContext(auth.WithIdentity(req.Context(), userID, roles))
	}
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestAudit_LOSListing(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newTestContext(http.MethodGet, "/api/los?clinica=UTI&page=2", withAuth("user-1", []string{"analyst"}))
	c.Set("request_id", "req-abc")

	if err := Audit(zerolog.Nop(), DefaultAuditPrefixes, rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("expected 1 audit entry, got %d", rec.count())
	}
	entry := rec.last()
	if entry.UserID != "user-1" {
		t.Errorf("expected user_id 'user-1', got %q", entry.UserID)
	}
	if entry.Resource != "los" {
		t.Errorf("expected resource 'los', got %q", entry.Resource)
	}
	if entry.Action != "read" {
		t.Errorf("expected action 'read', got %q", entry.Action)
	}
	if entry.Query != "clinica=UTI&page=2" {
		t.Errorf("unexpected query %q", entry.Query)
	}
	if entry.RequestID != "req-abc" {
		t.Errorf("expected request_id 'req-abc', got %q", entry.RequestID)
	}
	if entry.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", entry.StatusCode)
	}
}

func TestAudit_ExportAction(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newTestContext(http.MethodGet, "/api/los/export", withAuth("boss", []string{"management"}))

	_ = Audit(zerolog.Nop(), DefaultAuditPrefixes, rec)(okHandler)(c)

	if got := rec.last().Action; got != "export" {
		t.Errorf("expected action 'export', got %q", got)
	}
}

func TestAudit_DeniedRequestStillAudited(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newTestContext(http.MethodGet, "/api/los/export", withAuth("intern", []string{"analyst"}))
	deny := func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusForbidden, "required role: management")
	}

	err := Audit(zerolog.Nop(), DefaultAuditPrefixes, rec)(deny)(c)

	if err == nil {
		t.Fatal("expected handler error to propagate")
	}
	if rec.count() != 1 {
		t.Fatalf("expected 1 audit entry, got %d", rec.count())
	}
	if got := rec.last().StatusCode; got != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", got)
	}
}

func TestAudit_SkipsAggregates(t *testing.T) {
	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/occupancy/stats"},
		{http.MethodGet, "/api/history"},
		{http.MethodGet, "/api/snapshots/2025-01-05/imports"},
		{http.MethodGet, "/health"},
	}
	for _, p := range paths {
		rec := &mockRecorder{}
		c, _ := newTestContext(p.method, p.path)
		_ = Audit(zerolog.Nop(), DefaultAuditPrefixes, rec)(okHandler)(c)
		if rec.count() != 0 {
			t.Errorf("%s %s should not be audited", p.method, p.path)
		}
	}
}

func TestAudit_SnapshotWrites(t *testing.T) {
	tests := []struct {
		method string
		path   string
		action string
	}{
		{http.MethodPost, "/api/snapshots", "create"},
		{http.MethodPut, "/api/snapshots/2025-01-05", "update"},
		{http.MethodDelete, "/api/snapshots/2025-01-05", "delete"},
		{http.MethodGet, "/api/imports/7d5d/source", "export"},
	}
	for _, tt := range tests {
		rec := &mockRecorder{}
		c, _ := newTestContext(tt.method, tt.path)
		_ = Audit(zerolog.Nop(), DefaultAuditPrefixes, rec)(okHandler)(c)
		if rec.count() != 1 {
			t.Fatalf("%s %s: expected 1 entry, got %d", tt.method, tt.path, rec.count())
		}
		if got := rec.last().Action; got != tt.action {
			t.Errorf("%s %s: expected action %q, got %q", tt.method, tt.path, tt.action, got)
		}
	}
}

func TestAudit_RecorderErrorDoesNotFailRequest(t *testing.T) {
	rec := &mockRecorder{err: errors.New("disk full")}
	c, httpRec := newTestContext(http.MethodGet, "/api/los")

	if err := Audit(zerolog.Nop(), DefaultAuditPrefixes, rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if httpRec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", httpRec.Code)
	}
}

func TestResourceOf(t *testing.T) {
	tests := map[string]string{
		"/api/los":                "los",
		"/api/los/export":         "los",
		"/api/imports/abc/source": "imports",
		"/api/":                   "unknown",
		"/health":                 "unknown",
	}
	for path, want := range tests {
		if got := resourceOf(path); got != want {
			t.Errorf("resourceOf(%q) = %q, want %q", path, got, want)
		}
	}
}
