package snapshot_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/joabeoliveira/ocupacao/internal/domain/snapshot"
	"github.com/joabeoliveira/ocupacao/internal/platform/auth"
	"github.com/joabeoliveira/ocupacao/internal/platform/blobstore"
)

func newTestHandler(f *fixture) (*snapshot.Handler, *echo.Echo) {
	return snapshot.NewHandler(f.svc, false), echo.New()
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %T: %v", err, err)
	}
	return he.Code
}

func TestHandler_Stats(t *testing.T) {
	h, e := newTestHandler(newFixture(threeDays()...))

	req := httptest.NewRequest(http.MethodGet, "/api/stats?data=04/01/2025", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Stats(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats snapshot.DayStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.ReferenceDate != "2025-01-04" || stats.Occupied != 2 || stats.OccupancyRate != 100 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestHandler_Stats_BadDate(t *testing.T) {
	h, e := newTestHandler(newFixture(threeDays()...))

	req := httptest.NewRequest(http.MethodGet, "/api/stats?data=ontem", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	if code := httpStatus(t, h.Stats(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_Stats_NoData(t *testing.T) {
	h, e := newTestHandler(newFixture())

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	if code := httpStatus(t, h.Stats(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_DatabaseErrorIsGeneric(t *testing.T) {
	f := newFixture()
	f.repo.Err = errors.New("relation bed_snapshot does not exist")
	h, e := newTestHandler(f)

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/history", nil), httptest.NewRecorder())
	err := h.History(c)

	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	if he.Code != http.StatusInternalServerError || he.Message != "internal server error" {
		t.Errorf("unexpected error response: %d %v", he.Code, he.Message)
	}
}

func TestHandler_MoveDate(t *testing.T) {
	f := newFixture(threeDays()...)
	h, e := newTestHandler(f)

	body := `{"new_date":"06/01/2025"}`
	req := httptest.NewRequest(http.MethodPut, "/api/snapshots/2025-01-05", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithIdentity(req.Context(), "ana", []string{auth.RoleUploader}))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("date")
	c.SetParamValues("2025-01-05")

	if err := h.MoveDate(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"to":"2025-01-06"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
	if len(f.pub.Events) != 1 || f.pub.Events[0].Actor != "ana" {
		t.Errorf("expected one event by ana, got %+v", f.pub.Events)
	}
}

func TestHandler_MoveDate_Validation(t *testing.T) {
	h, e := newTestHandler(newFixture(threeDays()...))

	cases := []struct {
		name, body string
		want       int
	}{
		{"missing", `{}`, http.StatusBadRequest},
		{"malformed", `{"new_date":"amanha"}`, http.StatusBadRequest},
		{"same date", `{"new_date":"2025-01-05"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(tc.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			c := e.NewContext(req, httptest.NewRecorder())
			c.SetParamNames("date")
			c.SetParamValues("2025-01-05")

			if code := httpStatus(t, h.MoveDate(c)); code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, code)
			}
		})
	}
}

func TestHandler_DeleteDate_NotFound(t *testing.T) {
	h, e := newTestHandler(newFixture(threeDays()...))

	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), httptest.NewRecorder())
	c.SetParamNames("date")
	c.SetParamValues("2020-01-01")

	if code := httpStatus(t, h.DeleteDate(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_SourceFile(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	key := blobstore.Key("snapshots", day(2025, 1, 5), id, "censo 05.csv")
	if err := f.blobs.Put(context.Background(), key, "text/csv", []byte("NUM ENF;LEITO")); err != nil {
		t.Fatal(err)
	}
	f.repo.Imps = []snapshot.Import{{ID: id, ReferenceDate: day(2025, 1, 5), FileName: "censo 05.csv", BlobKey: key}}
	h, e := newTestHandler(f)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	if err := h.SourceFile(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Body.String() != "NUM ENF;LEITO" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(cd, "censo 05.csv") {
		t.Errorf("unexpected content disposition %q", cd)
	}
}

func TestHandler_RoleGuards(t *testing.T) {
	f := newFixture(threeDays()...)
	h := snapshot.NewHandler(f.svc, false)

	identity := func(roles ...string) echo.MiddlewareFunc {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				ctx := auth.WithIdentity(c.Request().Context(), "u1", roles)
				c.SetRequest(c.Request().WithContext(ctx))
				return next(c)
			}
		}
	}

	cases := []struct {
		name   string
		role   string
		method string
		path   string
		want   int
	}{
		{"analyst reads", auth.RoleAnalyst, http.MethodGet, "/api/history", http.StatusOK},
		{"analyst cannot delete", auth.RoleAnalyst, http.MethodDelete, "/api/snapshots/2025-01-03", http.StatusForbidden},
		{"uploader deletes", auth.RoleUploader, http.MethodDelete, "/api/snapshots/2025-01-03", http.StatusOK},
		{"uploader cannot download source", auth.RoleUploader, http.MethodGet, "/api/imports/" + uuid.NewString() + "/source", http.StatusForbidden},
		{"management downloads source", auth.RoleManagement, http.MethodGet, "/api/imports/" + uuid.NewString() + "/source", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			h.RegisterRoutes(e.Group("/api", identity(tc.role)))

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}
