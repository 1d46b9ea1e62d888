package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"landadmin/internal/platform/kafka"
	"landadmin/pkg/platform/events"
)

// Producer is the subset of the Kafka producer the sink uses.
type Producer interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// BreakerSettings tunes when the sink stops calling a failing broker.
type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenRequests    uint32
}

// DefaultBreakerSettings trips after five consecutive failures and probes
// again after thirty seconds.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{ConsecutiveFailures: 5, OpenTimeout: 30 * time.Second, HalfOpenRequests: 1}
}

// KafkaSink produces events keyed by aggregate id. Calls go through a
// circuit breaker so a down broker fails fast.
type KafkaSink struct {
	producer Producer
	topic    string
	breaker  *gobreaker.CircuitBreaker
}

func NewKafkaSink(producer Producer, topic string, settings BreakerSettings, logger *slog.Logger) *KafkaSink {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "kafka-events",
		MaxRequests: settings.HalfOpenRequests,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("event sink circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return &KafkaSink{producer: producer, topic: topic, breaker: cb}
}

func (s *KafkaSink) Write(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = s.breaker.Execute(func() (any, error) {
		return nil, s.producer.Publish(ctx, kafka.Message{
			Topic: s.topic,
			Key:   []byte(event.AggregateID),
			Value: body,
			Headers: map[string]string{
				"event_type": string(event.Type),
				"event_id":   event.ID,
			},
		})
	})
	return err
}

// State exposes the breaker state for health reporting.
func (s *KafkaSink) State() gobreaker.State {
	return s.breaker.State()
}
