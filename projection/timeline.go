// Package projection builds local read models from observed events.
// Does not emit events or interact with the transport directly.
package projection

import (
	"context"
	"sync"
	"time"

	"wagl-backend/domain/event"

	"github.com/google/uuid"
)

const DefaultTimelineSize = 100

// Entry is one line of a session timeline.
type Entry struct {
	Name   string
	RoomID uuid.UUID
	At     time.Time
}

// Timeline keeps the latest events of every session, oldest first.
// Ended and cancelled sessions are dropped from memory.
type Timeline struct {
	mu       sync.RWMutex
	size     int
	sessions map[uuid.UUID][]Entry
}

func NewTimeline(size int) *Timeline {
	if size <= 0 {
		size = DefaultTimelineSize
	}
	return &Timeline{size: size, sessions: make(map[uuid.UUID][]Entry)}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if changed, ok := e.(event.SessionStatusChanged); ok && changed.Session.IsTerminal() {
		delete(t.sessions, e.SessionID())
		return nil
	}
	entries := append(t.sessions[e.SessionID()], Entry{Name: e.Name(), RoomID: e.RoomID(), At: e.OccurredAt()})
	if len(entries) > t.size {
		entries = entries[len(entries)-t.size:]
	}
	t.sessions[e.SessionID()] = entries
	return nil
}

// Recent returns a copy of the timeline of a session.
func (t *Timeline) Recent(sessionID uuid.UUID) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Entry(nil), t.sessions[sessionID]...)
}

// Sessions is the number of sessions currently tracked.
func (t *Timeline) Sessions() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
