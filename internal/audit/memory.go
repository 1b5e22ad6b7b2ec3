package audit

import (
	"context"
	"sync"
	"time"
)

const defaultListLimit = 200

// MemorySink keeps audit events in process.
type MemorySink struct {
	mu     sync.RWMutex
	events []Event
	now    func() time.Time
}

// NewMemorySink constructs an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{now: time.Now}
}

// Record appends an event.
func (s *MemorySink) Record(ctx context.Context, event Event) error {
	_ = ctx
	if err := prepare(&event, s.now()); err != nil {
		return err
	}
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

// List returns events newest first.
func (s *MemorySink) List(ctx context.Context, eventType EventType, limit int) ([]Event, error) {
	_ = ctx
	if limit <= 0 {
		limit = defaultListLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []Event
	for i := len(s.events) - 1; i >= 0 && len(result) < limit; i-- {
		if eventType != "" && s.events[i].EventType != eventType {
			continue
		}
		result = append(result, s.events[i])
	}
	return result, nil
}

// Events returns every event in insertion order.
func (s *MemorySink) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
