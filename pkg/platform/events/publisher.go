package events

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Sink delivers an event to a destination.
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// Publisher hands events to a Sink without ever failing the caller. Delivery
// errors are logged at WARN and counted.
type Publisher struct {
	sink    Sink
	logger  *slog.Logger
	metrics *Metrics
	timeout time.Duration

	queue chan queued
	wg    sync.WaitGroup
	once  sync.Once
}

type queued struct {
	ctx   context.Context
	event Event
}

// Option configures the Publisher.
type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// WithTimeout bounds each sink write.
func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) { p.timeout = d }
}

// WithAsyncBuffer delivers events from a background goroutine. Events that
// do not fit in the buffer are dropped.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.queue = make(chan queued, size)
		}
	}
}

const defaultWriteTimeout = 3 * time.Second

// NewPublisher creates a publisher that writes synchronously unless
// WithAsyncBuffer is given.
func NewPublisher(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{
		sink:    sink,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.queue != nil {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Publish delivers event. It never returns an error and never blocks on a
// full buffer.
func (p *Publisher) Publish(ctx context.Context, event Event) {
	// Detach so request cancellation after the response does not abort delivery.
	ctx = context.WithoutCancel(ctx)
	if p.queue == nil {
		p.deliver(ctx, event)
		return
	}
	select {
	case p.queue <- queued{ctx: ctx, event: event}:
	default:
		p.metrics.incDropped()
		p.logger.WarnContext(ctx, "event buffer full, dropping event",
			"event_type", event.Type,
			"aggregate_id", event.AggregateID,
		)
	}
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for q := range p.queue {
		p.deliver(q.ctx, q.event)
	}
}

func (p *Publisher) deliver(ctx context.Context, event Event) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.sink.Write(ctx, event); err != nil {
		p.metrics.incFailure(event.Type)
		p.logger.WarnContext(ctx, "failed to publish event",
			"event_type", event.Type,
			"aggregate_id", event.AggregateID,
			"event_id", event.ID,
			"request_id", event.Metadata.RequestID,
			"error", err,
		)
		return
	}
	p.metrics.incPublished(event.Type)
}

// Close drains buffered events. Publish must not be called after Close.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.queue != nil {
			close(p.queue)
			p.wg.Wait()
		}
	})
}
