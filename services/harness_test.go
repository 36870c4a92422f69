package services

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"wagl-backend/domain"
	"wagl-backend/domain/event"
	"wagl-backend/infrastructure/search"
	"wagl-backend/infrastructure/storage"
	"wagl-backend/mocks"
	"wagl-backend/moderation"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type eventLog struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (l *eventLog) record(e event.DomainEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.events))
	for _, e := range l.events {
		names = append(names, e.Name())
	}
	return names
}

func (l *eventLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

type harness struct {
	ctx          context.Context
	clock        *testClock
	events       *eventLog
	relay        *mocks.MockIRelayDispatcher
	db           *badger.DB
	store        *storage.Store
	sessions     *SessionService
	allocator    *RoomAllocator
	invites      *InviteService
	participants *ParticipantService
	system       *SystemParticipantService
	messages     *MessageService
}

// setup wires every service on an in-memory store. Relay dispatch accepts any
// call unless a test sets its own expectations on a fresh controller.
func setup(t *testing.T) *harness {
	t.Helper()
	return setupWithRelay(t, func(relay *mocks.MockIRelayDispatcher) {
		relay.EXPECT().DispatchConnect(gomock.Any()).AnyTimes()
		relay.EXPECT().DispatchDisconnect(gomock.Any()).AnyTimes()
		relay.EXPECT().DispatchMessage(gomock.Any()).AnyTimes()
	})
}

func setupWithRelay(t *testing.T, expect func(relay *mocks.MockIRelayDispatcher)) *harness {
	t.Helper()
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	req.NoError(err)
	t.Cleanup(func() { _ = writer.Close() })

	ctrl := gomock.NewController(t)
	events := &eventLog{}
	publisher := mocks.NewMockIEventPublisher(ctrl)
	publisher.EXPECT().Publish(gomock.Any()).Do(events.record).AnyTimes()
	relay := mocks.NewMockIRelayDispatcher(ctrl)
	expect(relay)

	moderator, err := moderation.NewModerator([]string{"moron"}, '*', log)
	req.NoError(err)

	clock := &testClock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
	store := storage.NewStore(db, log, 0)
	chat := NewChat(Dependencies{
		Store:     store,
		Publisher: publisher,
		Relay:     relay,
		Censor:    moderator,
		Index:     search.NewMessageIndex(writer, log, 10),
		Log:       log,
		Now:       clock.Now,
	})
	return &harness{
		ctx:          context.Background(),
		clock:        clock,
		events:       events,
		relay:        relay,
		db:           db,
		store:        store,
		sessions:     chat.Sessions,
		allocator:    chat.Allocator,
		invites:      chat.Invites,
		participants: chat.Participants,
		system:       chat.System,
		messages:     chat.Messages,
	}
}

// newSession creates a scheduled session starting in one hour.
func (h *harness) newSession(t *testing.T, maxParticipants, perRoom int) (domain.ChatSession, []domain.ChatRoom) {
	t.Helper()
	session, rooms, err := h.sessions.Create(h.ctx, CreateSessionCommand{
		Name:                   "Friday chat",
		ScheduledStart:         h.clock.Now().Add(time.Hour),
		Duration:               time.Hour,
		MaxParticipants:        maxParticipants,
		MaxParticipantsPerRoom: perRoom,
		CreatedByUserID:        "host-1",
	})
	require.NoError(t, err)
	return session, rooms
}

// reload reads the current state of a room.
func (h *harness) reload(t *testing.T, r domain.ChatRoom) domain.ChatRoom {
	t.Helper()
	room, err := h.allocator.GetRoom(h.ctx, r.ID)
	require.NoError(t, err)
	return room
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
