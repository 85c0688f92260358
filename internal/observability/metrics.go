package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vq",
		Name:      "analyses_total",
		Help:      "Total number of analyses by outcome",
	}, []string{"outcome"})

	FramesSampled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vq",
		Name:      "frames_sampled_total",
		Help:      "Total number of frames decoded and kept by the sampler",
	})

	FramesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vq",
		Name:      "frames_skipped_total",
		Help:      "Total number of sample timestamps that failed to decode",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vq",
		Name:      "stage_duration_seconds",
		Help:      "Duration of analysis pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"stage"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vq",
		Name:      "queue_depth",
		Help:      "Number of pending analysis tasks in queue",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vq",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	RequestBodyBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vq",
		Name:      "http_request_body_bytes",
		Help:      "Size of request bodies, mostly video uploads",
		Buckets:   prometheus.ExponentialBuckets(64*1024, 4, 9),
	}, []string{"route"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vq",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})

	JanitorRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vq",
		Name:      "janitor_removed_total",
		Help:      "Total number of stale spool files removed",
	})
)
