package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/your-org/videoqa/internal/analysis"
	"github.com/your-org/videoqa/internal/api"
	"github.com/your-org/videoqa/internal/api/handlers"
	"github.com/your-org/videoqa/internal/api/ws"
	"github.com/your-org/videoqa/internal/config"
	"github.com/your-org/videoqa/internal/ingest"
	"github.com/your-org/videoqa/internal/janitor"
	"github.com/your-org/videoqa/internal/models"
	"github.com/your-org/videoqa/internal/observability"
	"github.com/your-org/videoqa/internal/queue"
	"github.com/your-org/videoqa/internal/reasoning"
	"github.com/your-org/videoqa/internal/sampler"
	"github.com/your-org/videoqa/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting video analysis API",
		"port", cfg.Server.Port,
		"mode", cfg.Analysis.Mode,
		"storage", cfg.Storage.Backend,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.OpenResponseStore(ctx, cfg)
	if err != nil {
		slog.Error("open response store", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := store.Close(closeCtx); err != nil {
			slog.Warn("close response store", "error", err)
		}
	}()

	readiness := map[string]handlers.Pinger{cfg.Storage.Backend: store}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run(ctx)

	// Connect to MinIO (queue mode only; inline analyses never archive)
	var minioStore *storage.MinIOStore
	if cfg.ArchiveEnabled() {
		minioStore, err = storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			slog.Error("connect to minio", "error", err)
			os.Exit(1)
		}
		if err := minioStore.EnsureBucket(ctx); err != nil {
			slog.Warn("ensure minio bucket", "error", err)
		}
		readiness["minio"] = minioStore
	}

	var submitter analysis.Submitter
	switch cfg.Analysis.Mode {
	case config.ModeQueue:
		producer, err := queue.NewProducer(cfg.NATS.URL)
		if err != nil {
			slog.Error("connect to nats", "error", err)
			os.Exit(1)
		}
		defer producer.Close()

		if err := producer.EnsureStreams(ctx); err != nil {
			slog.Warn("ensure nats streams", "error", err)
		}
		readiness["nats"] = producer

		consumer, err := queue.NewConsumer(cfg.NATS.URL)
		if err != nil {
			slog.Error("create result consumer", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()

		// Start result consumer to broadcast outcomes via WebSocket
		err = consumer.ConsumeEvents(ctx, resultConsumerName(), func(ctx context.Context, ev models.ResultEvent) error {
			hub.BroadcastEvent(ev)
			return nil
		})
		if err != nil {
			slog.Warn("start result consumer", "error", err)
		}

		submitter = analysis.NewQueueSubmitter(minioStore, producer)

	default:
		backend, err := reasoning.New(ctx, cfg.Backend)
		if err != nil {
			slog.Error("init reasoning backend", "provider", cfg.Backend.Provider, "error", err)
			os.Exit(1)
		}
		defer backend.Close()

		orchestrator := analysis.NewOrchestrator(
			ingest.NewFFmpegDecoder(cfg.FFmpeg),
			sampler.New(sampler.OptionsFromConfig(cfg.Sampler)),
			backend,
			cfg.Analysis.Timeout,
		)
		submitter = analysis.NewService(orchestrator, store, cfg.Analysis.TempDir, hub)
		slog.Info("inline analysis ready", "backend", backend.Name(), "model", cfg.Backend.Model)
	}

	if cfg.Janitor.Enabled {
		var sweeper janitor.ObjectSweeper
		if minioStore != nil {
			sweeper = minioStore
		}
		j := janitor.New(cfg.Analysis.TempDir, cfg.Janitor.MaxAge, sweeper)
		if err := j.Start(cfg.Janitor.Schedule); err != nil {
			slog.Error("start janitor", "error", err)
			os.Exit(1)
		}
		defer j.Stop()
	}

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:         cfg.Server.APIKey,
		Submitter:      submitter,
		Store:          store,
		Hub:            hub,
		MaxUploadBytes: cfg.Analysis.MaxUploadMB << 20,
		Readiness:      readiness,
	})

	// Inline requests hold the connection for the whole analysis.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: cfg.Analysis.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Analysis.Timeout+10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	cancel()

	slog.Info("API server stopped")
}

// resultConsumerName is unique per replica so every API instance sees every event.
func resultConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = fmt.Sprintf("pid-%d", os.Getpid())
	}
	return "api-results-" + sanitizeName(host)
}

// sanitizeName keeps characters JetStream allows in durable names.
func sanitizeName(s string) string {
	out := []rune(s)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
