package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestAPIKeyMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		key    string
		header map[string]string
		want   int
	}{
		{name: "disabled", key: "", want: http.StatusOK},
		{name: "missing", key: "s3cret", want: http.StatusUnauthorized},
		{name: "header", key: "s3cret", header: map[string]string{"X-API-Key": "s3cret"}, want: http.StatusOK},
		{name: "bearer", key: "s3cret", header: map[string]string{"Authorization": "Bearer s3cret"}, want: http.StatusOK},
		{name: "wrong", key: "s3cret", header: map[string]string{"X-API-Key": "nope"}, want: http.StatusForbidden},
		{name: "basic is not a key", key: "s3cret", header: map[string]string{"Authorization": "Basic s3cret"}, want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(APIKeyMiddleware(tt.key))
			r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
