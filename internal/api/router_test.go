package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/your-org/videoqa/internal/api/handlers"
	"github.com/your-org/videoqa/internal/api/ws"
	"github.com/your-org/videoqa/internal/mock"
	"github.com/your-org/videoqa/internal/storage"
)

func TestRouter(t *testing.T) {
	store := storage.NewMemoryStore()
	r := NewRouter(RouterConfig{
		APIKey:    "s3cret",
		Submitter: &mock.Submitter{},
		Store:     store,
		Hub:       ws.NewHub(),
		Readiness: map[string]handlers.Pinger{"store": store},
	})

	tests := []struct {
		name       string
		path       string
		key        string
		wantStatus int
	}{
		{name: "hello is public", path: "/", wantStatus: http.StatusOK},
		{name: "healthz is public", path: "/healthz", wantStatus: http.StatusOK},
		{name: "readyz", path: "/readyz", wantStatus: http.StatusOK},
		{name: "metrics", path: "/metrics", wantStatus: http.StatusOK},
		{name: "api needs key", path: "/api/ai-response?response_id=x", wantStatus: http.StatusUnauthorized},
		{name: "api with key", path: "/api/ai-response?response_id=x", key: "s3cret", wantStatus: http.StatusNotFound},
		{name: "video listing", path: "/api/videos/v1/responses", key: "s3cret", wantStatus: http.StatusOK},
		{name: "unknown route", path: "/v1/persons", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_CORS(t *testing.T) {
	r := NewRouter(RouterConfig{Submitter: &mock.Submitter{}, Store: storage.NewMemoryStore(), Hub: ws.NewHub()})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
	if !strings.Contains(w.Body.String(), "ok") {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}
