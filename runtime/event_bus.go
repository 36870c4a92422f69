package runtime

import (
	"log/slog"

	"wagl-backend/domain/event"
)

// EventBus is the bounded queue between the services and the event fanout.
type EventBus struct {
	log    *slog.Logger
	events chan event.DomainEvent
}

func NewEventBus(log *slog.Logger, bufferSize int) *EventBus {
	return &EventBus{log: log, events: make(chan event.DomainEvent, bufferSize)}
}

// Publish never blocks: when the queue is full the event is dropped.
func (b *EventBus) Publish(e event.DomainEvent) {
	select {
	case b.events <- e:
	default:
		b.log.Warn("Event channel full, dropping event", "event", e.Name(), "session", e.SessionID())
	}
}

func (b *EventBus) Events() <-chan event.DomainEvent { return b.events }
