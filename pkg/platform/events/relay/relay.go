// Package relay drains the outbox table into Kafka.
package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"landadmin/internal/platform/kafka"
	"landadmin/pkg/platform/events/store/postgres"
)

// Outbox is the storage the relay drains.
type Outbox interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	FetchUnpublished(ctx context.Context, limit int) ([]postgres.Entry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Producer publishes a record to the broker.
type Producer interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// Relay polls the outbox and publishes pending rows in creation order.
type Relay struct {
	outbox    Outbox
	producer  Producer
	topic     string
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	now       func() time.Time
}

func New(outbox Outbox, producer Producer, topic string, interval time.Duration, batchSize int, logger *slog.Logger) *Relay {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{
		outbox:    outbox,
		producer:  producer,
		topic:     topic,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
		now:       time.Now,
	}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if _, err := r.RelayOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.WarnContext(ctx, "outbox relay pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RelayOnce publishes one batch and returns how many rows were marked.
// Rows are marked up to the first publish failure so ordering is preserved;
// the failed row is retried on the next pass.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	var (
		published  int
		publishErr error
	)
	err := r.outbox.RunInTx(ctx, func(ctx context.Context) error {
		entries, err := r.outbox.FetchUnpublished(ctx, r.batchSize)
		if err != nil {
			return err
		}
		var done []uuid.UUID
		for _, e := range entries {
			publishErr = r.producer.Publish(ctx, kafka.Message{
				Topic:   r.topic,
				Key:     []byte(e.AggregateID),
				Value:   e.Payload,
				Headers: map[string]string{"event_type": e.EventType},
			})
			if publishErr != nil {
				break
			}
			done = append(done, e.ID)
		}
		if err := r.outbox.MarkPublished(ctx, done, r.now()); err != nil {
			return err
		}
		published = len(done)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return published, publishErr
}
