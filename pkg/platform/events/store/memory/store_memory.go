// Package memory records events in memory. Tests use it to assert what a
// service published.
package memory

import (
	"context"
	"sync"

	"landadmin/pkg/platform/events"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events []events.Event
	err    error
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Write(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

// FailWith makes subsequent writes return err. Pass nil to recover.
func (s *InMemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *InMemoryStore) All() []events.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]events.Event{}, s.events...)
}

// Types lists the types of recorded events in publish order.
func (s *InMemoryStore) Types() []events.Type {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]events.Type, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
