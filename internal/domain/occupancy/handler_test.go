package occupancy_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/joabeoliveira/ocupacao/internal/domain/occupancy"
)

func TestHandler_Stats(t *testing.T) {
	svc, _ := newService(t, panelRows()...)
	h := occupancy.NewHandler(svc, false)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/occupancy/stats?clinica=UTI+ADULTO&data=01/02/2025", nil)
	rec := httptest.NewRecorder()

	if err := h.Stats(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var st occupancy.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.Total != 2 || st.Occupied != 1 || st.OccupancyRate != 50 {
		t.Errorf("unexpected stats %+v", st)
	}
	if st.ReferenceDate != "2025-02-01" {
		t.Errorf("expected reference date echo, got %q", st.ReferenceDate)
	}
}

func TestHandler_InvalidFilter(t *testing.T) {
	svc, _ := newService(t, panelRows()...)
	h := occupancy.NewHandler(svc, false)
	e := echo.New()

	cases := []struct {
		target string
		handle echo.HandlerFunc
	}{
		{"/api/occupancy/stats?mes=13", h.Stats},
		{"/api/occupancy/evolution?predio=9", h.Evolution},
		{"/api/occupancy/clinics?periodo_inicio=2025-03-01&periodo_fim=2025-01-01", h.Clinics},
	}
	for _, tc := range cases {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, tc.target, nil), httptest.NewRecorder())
		var he *echo.HTTPError
		if err := tc.handle(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %v", tc.target, err)
		}
	}
}

func TestHandler_Buildings(t *testing.T) {
	svc, _ := newService(t, panelRows()...)
	h := occupancy.NewHandler(svc, false)
	e := echo.New()

	rec := httptest.NewRecorder()
	if err := h.Buildings(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/occupancy/buildings", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Buildings []occupancy.Breakdown `json:"buildings"`
		Ranges    []struct {
			Code int `json:"code"`
		} `json:"ranges"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Buildings) != 2 || len(body.Ranges) != 2 {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}
