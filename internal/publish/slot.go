package publish

import (
	"context"
	"sync"
)

// Slot hands events from the analysis loop to the dispatcher. It holds at
// most one pending event; a newer Put replaces an undelivered one, so the
// loop never waits on consumers.
type Slot struct {
	mu      sync.Mutex
	pending *Event
	latest  *Event
	ready   chan struct{}
}

// NewSlot creates an empty slot.
func NewSlot() *Slot {
	return &Slot{ready: make(chan struct{}, 1)}
}

// Put stores ev and reports whether an undelivered event was replaced.
func (s *Slot) Put(ev *Event) bool {
	s.mu.Lock()
	replaced := s.pending != nil
	s.pending = ev
	s.latest = ev
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
	return replaced
}

// Take waits for the pending event and removes it.
func (s *Slot) Take(ctx context.Context) (*Event, error) {
	for {
		s.mu.Lock()
		if ev := s.pending; ev != nil {
			s.pending = nil
			s.mu.Unlock()
			return ev, nil
		}
		s.mu.Unlock()

		select {
		case <-s.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Latest returns the most recent event put, delivered or not.
func (s *Slot) Latest() *Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}
