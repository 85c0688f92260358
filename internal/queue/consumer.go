package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/videoqa/internal/models"
)

type TaskHandler func(ctx context.Context, task models.AnalysisTask) error

type EventHandler func(ctx context.Context, ev models.ResultEvent) error

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
	wg sync.WaitGroup
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Consumer{nc: nc, js: js}, nil
}

// DecodeTask parses a task payload and rejects tasks missing an identifier.
func DecodeTask(data []byte) (models.AnalysisTask, error) {
	var task models.AnalysisTask
	if err := json.Unmarshal(data, &task); err != nil {
		return task, fmt.Errorf("decode analysis task: %w", err)
	}
	if task.VideoID == "" || task.ResponseID == "" || task.ObjectKey == "" {
		return task, fmt.Errorf("decode analysis task: missing video_id, response_id or object_key")
	}
	return task, nil
}

// TaskConsumerConfig is the durable pull consumer workers share. Failed
// analyses are terminal, so every task is delivered at most once.
func TaskConsumerConfig(name string, ackWait time.Duration) jetstream.ConsumerConfig {
	return jetstream.ConsumerConfig{
		Name:          name,
		Durable:       name,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       ackWait,
		MaxDeliver:    1,
		FilterSubject: AnalysesSubjectBase + ".>",
	}
}

// ConsumeTasks starts consuming analysis tasks from the ANALYSES stream.
// workerCount determines how many analyses run concurrently. ackWait must
// cover the slowest analysis.
func (c *Consumer) ConsumeTasks(ctx context.Context, consumerName string, handler TaskHandler, workerCount int, ackWait time.Duration) error {
	stream, err := c.js.Stream(ctx, AnalysesStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", AnalysesStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, TaskConsumerConfig(consumerName, ackWait))
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	msgCh := make(chan jetstream.Msg, workerCount)

	go func() {
		defer close(msgCh)
		for {
			if ctx.Err() != nil {
				return
			}

			batch, err := cons.Fetch(workerCount, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("fetch analysis tasks error", "error", err)
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				select {
				case msgCh <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	for i := 0; i < workerCount; i++ {
		c.wg.Add(1)
		go func(workerID int) {
			defer c.wg.Done()
			for msg := range msgCh {
				c.handleTask(ctx, workerID, msg, handler)
			}
		}(i)
	}

	slog.Info("analysis consumer started", "consumer", consumerName, "workers", workerCount)
	return nil
}

func (c *Consumer) handleTask(ctx context.Context, workerID int, msg jetstream.Msg, handler TaskHandler) {
	task, err := DecodeTask(msg.Data())
	if err != nil {
		slog.Error("drop analysis task", "worker", workerID, "error", err, "subject", msg.Subject())
		_ = msg.Term()
		return
	}

	// In-flight analyses run to completion on shutdown; the orchestrator timeout bounds them.
	if err := handler(context.WithoutCancel(ctx), task); err != nil {
		slog.Error("process analysis task", "worker", workerID, "response_id", task.ResponseID, "error", err)
	}
	_ = msg.Ack()
}

// ConsumeEvents starts consuming result events (for API to broadcast via WebSocket).
// Each API replica needs its own consumerName to see every event.
func (c *Consumer) ConsumeEvents(ctx context.Context, consumerName string, handler EventHandler) error {
	stream, err := c.js.Stream(ctx, ResultsStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", ResultsStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:              consumerName,
		Durable:           consumerName,
		AckPolicy:         jetstream.AckExplicitPolicy,
		AckWait:           10 * time.Second,
		MaxDeliver:        3,
		FilterSubject:     ResultsSubjectBase + ".>",
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		InactiveThreshold: time.Hour,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			if ctx.Err() != nil {
				return
			}

			batch, err := cons.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				var ev models.ResultEvent
				if err := json.Unmarshal(msg.Data(), &ev); err != nil {
					slog.Error("decode result event", "error", err)
					_ = msg.Term()
					continue
				}
				if err := handler(ctx, ev); err != nil {
					slog.Error("process result event", "error", err)
					_ = msg.Nak()
				} else {
					_ = msg.Ack()
				}
			}
		}
	}()

	slog.Info("result consumer started", "consumer", consumerName)
	return nil
}

// Wait blocks until every consumer goroutine has returned. Cancel the context
// passed to ConsumeTasks/ConsumeEvents first.
func (c *Consumer) Wait() {
	c.wg.Wait()
}

func (c *Consumer) Close() {
	c.nc.Close()
}
