package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/videoqa/internal/analysis"
	"github.com/your-org/videoqa/internal/api/handlers"
	"github.com/your-org/videoqa/internal/api/ws"
	"github.com/your-org/videoqa/internal/auth"
	"github.com/your-org/videoqa/internal/storage"
)

type RouterConfig struct {
	APIKey         string
	Submitter      analysis.Submitter
	Store          storage.ResponseStore
	Hub            *ws.Hub
	MaxUploadBytes int64
	// Readiness lists the dependencies /readyz probes, keyed by name.
	Readiness map[string]handlers.Pinger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Readiness)
	r.GET("/", systemH.Hello)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	api.GET("/ws", cfg.Hub.HandleWS)

	analysisH := handlers.NewAnalysisHandler(cfg.Submitter, cfg.MaxUploadBytes)
	api.POST("/analyze-video", analysisH.Analyze)

	responseH := handlers.NewResponseHandler(cfg.Store)
	api.GET("/ai-response", responseH.Get)
	api.GET("/videos/:video_id/responses", responseH.ListByVideo)

	return r
}
