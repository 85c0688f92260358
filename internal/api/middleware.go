package api

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/videoqa/internal/observability"
)

// unmatchedRoute labels requests no route matched.
const unmatchedRoute = "unmatched"

// probeRoutes are polled by orchestrators and scrapers; logging them at info drowns out uploads.
var probeRoutes = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// requestLevel picks the log level for a finished request: server errors are
// errors, probes are debug, everything else is info.
func requestLevel(route string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case probeRoutes[route]:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// LoggingMiddleware logs each request with its upload size and records
// duration and body-size metrics labeled by route template.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}

		slog.Log(c.Request.Context(), requestLevel(route, status), "request",
			"method", c.Request.Method,
			"route", route,
			"path", c.Request.URL.Path,
			"status", status,
			"bytes_in", c.Request.ContentLength,
			"bytes_out", c.Writer.Size(),
			"duration", duration.String(),
			"ip", c.ClientIP(),
		)

		observability.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(status),
		).Observe(duration.Seconds())

		// Multipart uploads carry a Content-Length; chunked bodies report -1 and are skipped.
		if c.Request.ContentLength > 0 {
			observability.RequestBodyBytes.WithLabelValues(route).Observe(float64(c.Request.ContentLength))
		}
	}
}
