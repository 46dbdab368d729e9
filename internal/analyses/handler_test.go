package analyses

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(svc)
	h.RegisterRoutes(r.Group("/api"))
	return r
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func TestStartAnalysisEndpoint(t *testing.T) {
	svc, tracker := newTestService()
	r := newTestRouter(svc)

	body := `{"pdfData":"` + textPayload(t, "A drifter returns home.") + `","trailerUrl":"` + testTrailerURL + `","inputType":"text"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !env.Success {
		t.Fatal("expected success envelope")
	}
	var data struct {
		AnalysisID string `json:"analysisId"`
		Status     string `json:"status"`
		Message    string `json:"message"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.AnalysisID == "" || data.Status != StatusProcessing {
		t.Fatalf("unexpected data %+v", data)
	}
	if data.Message != "Analysis started successfully" {
		t.Fatalf("message = %q", data.Message)
	}

	if _, err := tracker.Get(context.Background(), data.AnalysisID); err != nil {
		t.Fatalf("analysis not pollable after accept: %v", err)
	}
	waitTerminal(t, tracker, data.AnalysisID)
}

func TestStartAnalysisValidation(t *testing.T) {
	svc, _ := newTestService()
	r := newTestRouter(svc)

	cases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"empty body", `{}`, "Missing required fields: pdfData and trailerUrl are required"},
		{"missing url", `{"pdfData":"eA=="}`, "Missing required fields: pdfData and trailerUrl are required"},
		{"bad url", `{"pdfData":"eA==","trailerUrl":"https://vimeo.com/1"}`, "Invalid YouTube URL format"},
		{"short video id", `{"pdfData":"eA==","trailerUrl":"https://youtube.com/watch?v=short"}`, "Invalid YouTube URL format"},
		{"bad input type", `{"pdfData":"eA==","trailerUrl":"` + testTrailerURL + `","inputType":"docx"}`, "inputType must be 'file' or 'text'"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
			}
			var resp struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Error != tc.wantErr {
				t.Fatalf("error = %q, want %q", resp.Error, tc.wantErr)
			}
		})
	}
}

func TestStartAnalysisMethodNotAllowed(t *testing.T) {
	svc, _ := newTestService()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.HandleMethodNotAllowed = true
	h := NewHandler(svc)
	h.RegisterRoutes(r.Group("/api"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/analyze", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	svc, tracker := newTestService()
	r := newTestRouter(svc)

	id, err := svc.Start(context.Background(), StartRequest{
		Payload:    textPayload(t, "A drifter returns home."),
		Kind:       "text",
		TrailerURL: testTrailerURL,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitTerminal(t, tracker, id)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status?id="+id, nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	var p Progress
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	if p.Status != StatusCompleted || p.Result == nil {
		t.Fatalf("unexpected progress %+v", p)
	}
	if p.Result.Scores.Overall == 0 {
		t.Fatal("result scores missing")
	}
}

func TestStatusEndpointErrors(t *testing.T) {
	svc, _ := newTestService()
	r := newTestRouter(svc)

	t.Run("missing id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "Analysis ID required") {
			t.Fatalf("body = %s", w.Body.String())
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/status?id=nope", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "Analysis not found") {
			t.Fatalf("body = %s", w.Body.String())
		}
	})
}

func TestStatusEndpointPollLimit(t *testing.T) {
	svc, tracker := newTestService()
	r := newTestRouter(svc)

	id, err := svc.Start(context.Background(), StartRequest{
		Payload:    textPayload(t, "A drifter returns home."),
		Kind:       "text",
		TrailerURL: testTrailerURL,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitTerminal(t, tracker, id)

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/status?id="+id, nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first poll status = %d", first.Code)
	}

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/status?id="+id, nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second poll status = %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}
}

// closeNotifyRecorder augments the recorder with the CloseNotifier the
// streaming writer pulls from the response.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newCloseNotifyRecorder() *closeNotifyRecorder {
	return &closeNotifyRecorder{httptest.NewRecorder(), make(chan bool, 1)}
}

func (r *closeNotifyRecorder) CloseNotify() <-chan bool { return r.closed }

func TestStreamStatusEndpoint(t *testing.T) {
	svc, tracker := newTestService()
	r := newTestRouter(svc)

	id, err := svc.Start(context.Background(), StartRequest{
		Payload:    textPayload(t, "A drifter returns home."),
		Kind:       "text",
		TrailerURL: testTrailerURL,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitTerminal(t, tracker, id)

	w := newCloseNotifyRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status/stream?id="+id, nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "event:progress") && !strings.Contains(body, "event: progress") {
		t.Fatalf("missing progress event: %s", body)
	}
	if !strings.Contains(body, "Analysis Complete") {
		t.Fatalf("terminal progress not streamed: %s", body)
	}
}

func TestStreamStatusUnknownID(t *testing.T) {
	svc, _ := newTestService()
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status/stream?id=nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}
