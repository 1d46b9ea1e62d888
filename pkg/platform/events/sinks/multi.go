package sinks

import (
	"context"
	"errors"

	"landadmin/pkg/platform/events"
)

// Multi writes to every sink and joins their errors.
type Multi []events.Sink

func (m Multi) Write(ctx context.Context, event events.Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
