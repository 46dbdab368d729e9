package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"sorot-backend/internal/analyses"
	"sorot-backend/internal/briefing"
	"sorot-backend/internal/shared/config"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := &analyses.Service{
		Tracker:  analyses.NewMemoryTracker(),
		Briefing: &briefing.Static{},
	}
	return NewRouter(config.Config{Env: "production"}, analyses.NewHandler(svc))
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	r := newTestRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error != "Not found" {
		t.Fatalf("error = %q", body.Error)
	}
}

func TestWrongMethodReturns405(t *testing.T) {
	r := newTestRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/analyze", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error != "Method not allowed" {
		t.Fatalf("error = %q", body.Error)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "analysis_pipeline_started_total") {
		t.Fatalf("metrics output missing pipeline counter: %q", w.Body.String()[:80])
	}
}

func TestAddr(t *testing.T) {
	if got := Addr(""); got != ":8080" {
		t.Fatalf("Addr(\"\") = %q", got)
	}
	if got := Addr("9090"); got != ":9090" {
		t.Fatalf("Addr(\"9090\") = %q", got)
	}
	if got := Addr(":7070"); got != ":7070" {
		t.Fatalf("Addr(\":7070\") = %q", got)
	}
}
