package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/videoqa/internal/models"
)

const (
	AnalysesStreamName  = "ANALYSES"
	AnalysesSubjectBase = "analyses"
	ResultsStreamName   = "RESULTS"
	ResultsSubjectBase  = "results"
)

// TaskSubject is the subject a task for videoID is published on.
func TaskSubject(videoID string) string {
	return fmt.Sprintf("%s.%s", AnalysesSubjectBase, videoID)
}

// ResultSubject is the subject outcome events for videoID are published on.
func ResultSubject(videoID string) string {
	return fmt.Sprintf("%s.%s", ResultsSubjectBase, videoID)
}

func connect(natsURL string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create jetstream context: %w", err)
	}
	return nc, js, nil
}

type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Producer{nc: nc, js: js}, nil
}

// StreamConfigs are the streams the API and workers share.
func StreamConfigs() []jetstream.StreamConfig {
	return []jetstream.StreamConfig{
		{
			Name:        AnalysesStreamName,
			Subjects:    []string{AnalysesSubjectBase + ".>"},
			Retention:   jetstream.WorkQueuePolicy,
			MaxAge:      time.Hour,
			MaxMsgs:     100000,
			Storage:     jetstream.FileStorage,
			Discard:     jetstream.DiscardOld,
			Duplicates:  10 * time.Minute,
			Description: "Queued video analyses for workers",
		},
		{
			Name:        ResultsStreamName,
			Subjects:    []string{ResultsSubjectBase + ".>"},
			Retention:   jetstream.LimitsPolicy,
			MaxAge:      time.Hour,
			MaxMsgs:     100000,
			Storage:     jetstream.FileStorage,
			Description: "Analysis outcome events",
		},
	}
}

// EnsureStreams creates JetStream streams if they don't exist.
// Retries up to 30 times (1s apart) to handle NATS startup delay.
func (p *Producer) EnsureStreams(ctx context.Context) error {
	streams := StreamConfigs()

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		allOK := true
		for _, cfg := range streams {
			opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
			cancel()
			if err != nil {
				allOK = false
				if attempt == maxAttempts {
					return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
				}
				slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)
				break
			}
			slog.Info("ensured NATS stream", "name", cfg.Name)
		}
		if allOK {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return nil
}

// PublishTask queues one analysis. The response id doubles as the JetStream
// message id, so a retried publish within the duplicate window is dropped.
func (p *Producer) PublishTask(ctx context.Context, task models.AnalysisTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal analysis task: %w", err)
	}

	_, err = p.js.Publish(ctx, TaskSubject(task.VideoID), payload, jetstream.WithMsgID(task.ResponseID))
	if err != nil {
		return fmt.Errorf("publish analysis task: %w", err)
	}
	return nil
}

// PublishEvent publishes an analysis outcome.
func (p *Producer) PublishEvent(ctx context.Context, ev models.ResultEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal result event: %w", err)
	}

	_, err = p.js.Publish(ctx, ResultSubject(ev.VideoID), payload)
	if err != nil {
		return fmt.Errorf("publish result event: %w", err)
	}
	return nil
}

// Notify publishes ev and only logs a failure; the record is already stored.
func (p *Producer) Notify(ctx context.Context, ev models.ResultEvent) {
	if err := p.PublishEvent(ctx, ev); err != nil {
		slog.Warn("publish result event", "response_id", ev.ResponseID, "error", err)
	}
}

// QueueDepth returns the number of pending messages in the ANALYSES stream.
func (p *Producer) QueueDepth(ctx context.Context) (uint64, error) {
	stream, err := p.js.Stream(ctx, AnalysesStreamName)
	if err != nil {
		return 0, err
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.State.Msgs, nil
}

func (p *Producer) Ping(_ context.Context) error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}
