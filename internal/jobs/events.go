package jobs

import (
	"sync"
	"time"

	"transcript-server/internal/domain"
)

// EventType classifies status feed entries.
type EventType string

const (
	EventTypeStatus  EventType = "status"
	EventTypeRemoved EventType = "removed"
)

// Event is a sequenced status change consumed by pollers.
type Event struct {
	Seq       int64            `json:"seq"`
	Timestamp time.Time        `json:"timestamp"`
	Type      EventType        `json:"type"`
	User      string           `json:"userId"`
	Project   string           `json:"projectId"`
	Status    domain.JobStatus `json:"status"`
}

// EventBus stores recent events and provides incremental reads.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// StatusChanged records a store change.
func (b *EventBus) StatusChanged(c Change) {
	typ := EventTypeStatus
	if c.Removed {
		typ = EventTypeRemoved
	}
	b.Publish(Event{Type: typ, User: c.User, Project: c.Project, Status: c.Status})
}

// Publish appends one event and assigns sequence and timestamp.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	return b.filter(seq, func(Event) bool { return true })
}

// SinceForUser is Since restricted to one user's jobs.
func (b *EventBus) SinceForUser(user string, seq int64) []Event {
	return b.filter(seq, func(e Event) bool { return e.User == user })
}

func (b *EventBus) filter(seq int64, keep func(Event) bool) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Event
	for _, event := range b.events {
		if event.Seq > seq && keep(event) {
			out = append(out, event)
		}
	}
	return out
}
