package workers

import (
	"context"
	"log/slog"
	"time"

	"wagl-backend/contract"
	"wagl-backend/domain/event"
)

// EventFanout delivers domain events to the connections following the room,
// or the whole session for session wide events, plus the permanent sinks.
//
// Delivery is best effort: no ordering across sinks, no retries. Each sink
// gets its own goroutine bounded by sinkTimeout so one slow client cannot
// hold back the others.
type EventFanout struct {
	log            *slog.Logger
	permanentSinks []contract.EventSink
	registry       contract.IRegistry
	events         <-chan event.DomainEvent
	sinkTimeout    time.Duration
}

func NewEventFanout(log *slog.Logger, permanentSinks []contract.EventSink, registry contract.IRegistry,
	events <-chan event.DomainEvent, sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{
		log:            log,
		permanentSinks: permanentSinks,
		registry:       registry,
		events:         events,
		sinkTimeout:    sinkTimeout,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return nil
		case evt, ok := <-w.events:
			if !ok {
				return nil
			}
			w.Fanout(ctx, evt)
		}
	}
}

// Fanout one goroutine for each sink
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	sinks := append([]contract.EventSink{}, w.permanentSinks...)
	sinks = append(sinks, w.registry.GetSinks(evt.SessionID(), evt.RoomID())...)
	for _, sink := range sinks {
		go func(s contract.EventSink) {
			sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
			defer cancel()
			if err := s.Consume(sinkCtx, evt); err != nil {
				w.log.Debug("Sink did not consume event", "event", evt.Name(), "error", err)
			}
		}(sink)
	}
}
