package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/videoqa/internal/analysis"
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

	slog.Info("starting video analysis worker",
		"workers", cfg.Worker.Concurrency,
		"cpu_cores", runtime.NumCPU(),
		"backend", cfg.Backend.Provider,
	)

	if cfg.NATS.URL == "" || !cfg.MinIO.Enabled() {
		slog.Error("worker needs nats.url and minio.endpoint")
		os.Exit(1)
	}

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
		_ = store.Close(closeCtx)
	}()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(ctx); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	backend, err := reasoning.New(ctx, cfg.Backend)
	if err != nil {
		slog.Error("init reasoning backend", "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	orchestrator := analysis.NewOrchestrator(
		ingest.NewFFmpegDecoder(cfg.FFmpeg),
		sampler.New(sampler.OptionsFromConfig(cfg.Sampler)),
		backend,
		cfg.Analysis.Timeout,
	)
	svc := analysis.NewService(orchestrator, store, cfg.Analysis.TempDir, producer)

	slog.Info("analysis pipeline initialized", "backend", backend.Name(), "model", cfg.Backend.Model)

	// Create NATS consumer
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	// Start consuming analysis tasks
	err = consumer.ConsumeTasks(ctx, "analysis-workers", func(ctx context.Context, task models.AnalysisTask) error {
		return svc.RunTask(ctx, task, minioStore)
	}, cfg.Worker.Concurrency, cfg.Analysis.Timeout+time.Minute)
	if err != nil {
		slog.Error("start analysis consumer", "error", err)
		os.Exit(1)
	}

	// Spool files left by a crashed worker
	if cfg.Janitor.Enabled {
		j := janitor.New(cfg.Analysis.TempDir, cfg.Janitor.MaxAge, nil)
		if err := j.Start(cfg.Janitor.Schedule); err != nil {
			slog.Error("start janitor", "error", err)
			os.Exit(1)
		}
		defer j.Stop()
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		addr := fmt.Sprintf(":%d", cfg.Worker.MetricsPort)
		slog.Info("worker metrics listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Periodically report queue depth
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := producer.QueueDepth(ctx)
				if err == nil {
					observability.QueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker, waiting for in-flight analyses...")
	cancel()

	done := make(chan struct{})
	go func() {
		consumer.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cfg.Analysis.Timeout + 10*time.Second):
		slog.Warn("worker shutdown timed out")
	}
	slog.Info("worker stopped")
}
