package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"wagl-backend/domain"
	"wagl-backend/domain/event"
	"wagl-backend/mocks"
	"wagl-backend/runtime/workers"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type recordingSink struct {
	events chan event.DomainEvent
}

func newRecordingSink() *recordingSink {
	return &recordingSink{events: make(chan event.DomainEvent, 16)}
}

func (s *recordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.events <- e
	return nil
}

func (s *recordingSink) next(t *testing.T) event.DomainEvent {
	t.Helper()
	select {
	case e := <-s.events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
		return nil
	}
}

type orchestratorDeps struct {
	presence *mocks.MockIPresence
	client   *mocks.MockIRelayClient
	sweeper  *mocks.MockISweeper
	registry *Registry
	bus      *EventBus
	relay    *RelayDispatcher
}

func newOrchestrator(t *testing.T) (*Orchestrator, orchestratorDeps) {
	ctrl := gomock.NewController(t)
	deps := orchestratorDeps{
		presence: mocks.NewMockIPresence(ctrl),
		client:   mocks.NewMockIRelayClient(ctrl),
		sweeper:  mocks.NewMockISweeper(ctrl),
		registry: NewRegistry(),
		bus:      NewEventBus(slog.Default(), 16),
		relay:    newDispatcher(t, 16),
	}
	o := NewOrchestrator(slog.Default(), workers.NewSupervisor(slog.Default(), 10*time.Millisecond),
		deps.registry, deps.presence, deps.bus, deps.relay, deps.client, deps.sweeper, Config{
			RelayWorkers:   2,
			SinkTimeout:    time.Second,
			SweepInterval:  time.Hour,
			HealthInterval: time.Hour,
		})
	return o, deps
}

func TestOrchestrator_Connect_And_Disconnect(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	o, deps := newOrchestrator(t)
	participant := domain.Participant{ID: uuid.New(), SessionID: uuid.New(), RoomID: uuid.New(), IsActive: true}
	sink := newRecordingSink()

	// Given a participant connecting
	deps.presence.EXPECT().MarkActive(ctx, participant.ID, "conn-1").Return(participant, nil)
	connected, err := o.Connect(ctx, participant.ID, "conn-1", sink)
	req.NoError(err)
	req.Equal(participant.ID, connected.ID)

	// Then its room events reach the sink
	req.Len(deps.registry.GetSinks(participant.SessionID, participant.RoomID), 1)

	// When it disconnects
	deps.presence.EXPECT().MarkAsLeftByConnection(ctx, "conn-1").Return(nil)
	req.NoError(o.Disconnect(ctx, participant.ID, "conn-1"))

	// Then nothing is routed to it anymore
	req.Empty(deps.registry.GetSinks(participant.SessionID, participant.RoomID))
}

func TestOrchestrator_Pipeline(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	o, deps := newOrchestrator(t)
	permanent := newRecordingSink()
	o.Add(permanent)
	req.True(o.RelayHealthy())

	msg := domain.ChatMessage{ID: uuid.New(), SessionID: uuid.New(), RoomID: uuid.New(), Content: "hello"}
	relayed := make(chan domain.ChatMessage, 1)
	deps.client.EXPECT().Relay(gomock.Any(), msg, msg.SessionID.String(), gomock.Any()).
		DoAndReturn(func(_ context.Context, m domain.ChatMessage, _ string, _ int) bool {
			relayed <- m
			return true
		})

	done := make(chan struct{})
	go func() {
		o.Start(ctx)
		close(done)
	}()

	// When a message event is published and its relay call dispatched
	deps.bus.Publish(event.MessageReceived{Message: msg})
	deps.relay.DispatchMessage(msg)

	// Then the permanent sink sees the event and a relay worker sends it
	req.Equal(event.MessageReceivedName, permanent.next(t).Name())
	select {
	case m := <-relayed:
		req.Equal(msg.ID, m.ID)
	case <-time.After(2 * time.Second):
		req.Fail("message not relayed")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		req.Fail("orchestrator did not stop")
	}
}
