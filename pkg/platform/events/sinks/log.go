// Package sinks holds the destinations a Publisher can deliver to.
package sinks

import (
	"context"
	"log/slog"

	"landadmin/pkg/platform/events"
)

// LogSink writes events to the structured log. It is the default when no
// broker is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Write(ctx context.Context, event events.Event) error {
	s.logger.InfoContext(ctx, "domain event",
		"event_id", event.ID,
		"event_type", event.Type,
		"aggregate_id", event.AggregateID,
		"request_id", event.Metadata.RequestID,
		"actor_id", event.Metadata.ActorID,
		"payload", event.Payload,
	)
	return nil
}
