// Package memstore provides an in-memory Storage adapter for tests and
// single-process use.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/target/esg-checklist-ui/internal/ports"
)

const watchBuffer = 16

// Store is an in-memory key/value store. Every mutation is delivered to watchers.
type Store struct {
	mu       sync.RWMutex
	values   map[string]string
	watchers map[chan ports.StorageEvent]struct{}
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		values:   make(map[string]string),
		watchers: make(map[chan ports.StorageEvent]struct{}),
	}
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Store) SetMany(_ context.Context, values map[string]string) error {
	s.mu.Lock()
	events := make([]ports.StorageEvent, 0, len(values))
	for k, v := range values {
		s.values[k] = v
		events = append(events, ports.StorageEvent{Key: k})
	}
	s.mu.Unlock()

	s.broadcast(events)
	return nil
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	events := make([]ports.StorageEvent, 0, len(keys))
	for _, k := range keys {
		if _, ok := s.values[k]; !ok {
			continue
		}
		delete(s.values, k)
		events = append(events, ports.StorageEvent{Key: k, Removed: true})
	}
	s.mu.Unlock()

	s.broadcast(events)
	return nil
}

func (s *Store) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Watch returns a channel of change events that is closed when ctx is done.
func (s *Store) Watch(ctx context.Context) (<-chan ports.StorageEvent, error) {
	ch := make(chan ports.StorageEvent, watchBuffer)

	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, ch)
		close(ch)
		s.mu.Unlock()
	}()

	return ch, nil
}

// broadcast delivers events to watchers; slow watchers drop events rather than block writers.
func (s *Store) broadcast(events []ports.StorageEvent) {
	if len(events) == 0 {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.watchers {
		for _, ev := range events {
			select {
			case ch <- ev:
			default:
			}
		}
	}
}
