package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"lake-ingest/internal/domain"
)

// Producer sends readings to a queue on a cron schedule.
type Producer struct {
	queue  domain.Queue
	gen    *Generator
	logger *slog.Logger
}

// NewProducer creates a producer.
func NewProducer(queue domain.Queue, gen *Generator, logger *slog.Logger) *Producer {
	return &Producer{queue: queue, gen: gen, logger: logger.With("component", "telemetry")}
}

// SendOne generates and sends a single reading, returning the message ID.
func (p *Producer) SendOne(ctx context.Context) (string, error) {
	body, err := Message(p.gen.Next())
	if err != nil {
		return "", fmt.Errorf("encode reading: %w", err)
	}
	id, err := p.queue.Send(ctx, body)
	if err != nil {
		return "", err
	}
	p.logger.Info("reading sent", "message_id", id)
	return id, nil
}

// Run sends a reading on every tick of schedule until ctx is cancelled or,
// when count > 0, until count sends have been attempted. Send failures are
// logged and do not stop the loop.
func (p *Producer) Run(ctx context.Context, schedule string, count int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu   sync.Mutex
		sent int
	)
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		mu.Lock()
		if count > 0 && sent >= count {
			mu.Unlock()
			return
		}
		sent++
		done := count > 0 && sent >= count
		mu.Unlock()

		if _, err := p.SendOne(ctx); err != nil {
			p.logger.Warn("send reading failed", "error", err)
		}
		if done {
			cancel()
		}
	}); err != nil {
		return domain.ErrValidation("invalid telemetry schedule %q: %v", schedule, err)
	}

	c.Start()
	p.logger.Info("telemetry producer started", "schedule", schedule, "count", count)
	<-ctx.Done()
	<-c.Stop().Done()

	mu.Lock()
	defer mu.Unlock()
	p.logger.Info("telemetry producer stopped", "sent", sent)
	return nil
}
