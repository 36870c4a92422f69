package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"wagl-backend/contract"
	"wagl-backend/domain"
	"wagl-backend/domain/event"
	"wagl-backend/mocks"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestEventFanout_Fanout(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	mockRegistry := mocks.NewMockIRegistry(ctrl)
	permanentSink := mocks.NewMockEventSink(ctrl)
	roomSink := mocks.NewMockEventSink(ctrl)

	msg := domain.ChatMessage{ID: uuid.New(), RoomID: uuid.New(), SessionID: uuid.New(), Content: "hi"}
	evt := event.MessageReceived{Message: msg}

	done := make(chan struct{})
	var count atomic.Int32
	consume := func(ctx context.Context, e event.DomainEvent) error {
		if count.Add(1) == 3 {
			close(done)
		}
		return nil
	}

	// Given two connections in the room and one permanent sink
	mockRegistry.EXPECT().GetSinks(msg.SessionID, msg.RoomID).
		Return([]contract.EventSink{roomSink, roomSink}).Times(1)
	permanentSink.EXPECT().Consume(gomock.Any(), evt).DoAndReturn(consume).Times(1)
	roomSink.EXPECT().Consume(gomock.Any(), evt).DoAndReturn(consume).Times(2)

	fanout := NewEventFanout(log, []contract.EventSink{permanentSink}, mockRegistry, nil, time.Second)

	// When the event is fanned out
	fanout.Fanout(context.Background(), evt)

	// Then every sink consumed it
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("Sinks were not all consumed in time")
	}
}

func TestEventFanout_SinkTimeout(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	mockRegistry := mocks.NewMockIRegistry(ctrl)
	slowSink := mocks.NewMockEventSink(ctrl)

	evt := event.SessionStatusChanged{Session: domain.ChatSession{ID: uuid.New()}}
	errs := make(chan error, 1)

	// Given a sink that never answers
	mockRegistry.EXPECT().GetSinks(evt.Session.ID, domain.BroadcastRoomID).
		Return([]contract.EventSink{slowSink}).Times(1)
	slowSink.EXPECT().Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, e event.DomainEvent) error {
			<-ctx.Done()
			errs <- ctx.Err()
			return ctx.Err()
		}).Times(1)

	fanout := NewEventFanout(log, nil, mockRegistry, nil, 20*time.Millisecond)
	fanout.Fanout(context.Background(), evt)

	// Then its context expires after the sink timeout
	select {
	case err := <-errs:
		req.ErrorIs(err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		req.Fail("Sink context was never cancelled")
	}
}

func TestEventFanout_Run_Stops_On_Closed_Channel(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	events := make(chan event.DomainEvent)
	close(events)

	fanout := NewEventFanout(slog.Default(), nil, mocks.NewMockIRegistry(ctrl), events, time.Second)
	req.NoError(fanout.Run(context.Background()))
}
