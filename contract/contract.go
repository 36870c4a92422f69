//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"wagl-backend/domain"
	"wagl-backend/domain/event"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// used for logging during supervision.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is one connection of the real-time transport.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

type IRegistry interface {
	// GetSinks returns the sinks interested in an event of a session room.
	// domain.BroadcastRoomID selects every sink of the session.
	GetSinks(sessionID, roomID uuid.UUID) []EventSink
	Subscribe(participantID, sessionID, roomID uuid.UUID, sink EventSink)
	Unsubscribe(participantID uuid.UUID)
}

// IEventPublisher hands domain events over to the transport, never blocking.
type IEventPublisher interface {
	Publish(e event.DomainEvent)
}

// IRelayDispatcher queues calls to the relay target, never blocking.
type IRelayDispatcher interface {
	DispatchMessage(msg domain.ChatMessage)
	DispatchConnect(p domain.Participant)
	DispatchDisconnect(p domain.Participant)
}

type IRelayClient interface {
	Relay(ctx context.Context, msg domain.ChatMessage, relaySessionID string, roomNumber int) bool
	NotifyConnect(ctx context.Context, p domain.Participant, relaySessionID string, roomNumber int) bool
	NotifyDisconnect(ctx context.Context, p domain.Participant, relaySessionID string, roomNumber int) bool
	IsHealthy(ctx context.Context) bool
}

// ISweeper runs one housekeeping pass.
type ISweeper interface {
	Sweep(ctx context.Context, now time.Time) error
}

// IPresence is the presence side of the participant registry, driven by the transport.
type IPresence interface {
	MarkActive(ctx context.Context, id uuid.UUID, connectionHandle string) (domain.Participant, error)
	MarkAsLeftByConnection(ctx context.Context, connectionHandle string) error
}
