package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"wagl-backend/domain"
	"wagl-backend/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db, slog.Default(), 0)
}

func newSession(now time.Time) domain.ChatSession {
	return domain.ChatSession{
		ID:                     uuid.New(),
		Name:                   "Friday chat",
		ScheduledStart:         now.Add(time.Hour),
		Duration:               time.Hour,
		MaxParticipants:        12,
		MaxParticipantsPerRoom: 6,
		Status:                 domain.SessionScheduled,
		CreatedByUserID:        "owner",
		CreatedAt:              now,
	}
}

func Test_NextRoomNumber_Is_Unique_Under_Concurrency(t *testing.T) {
	req := require.New(t)
	store := setupStore(t)
	ctx := context.Background()
	session := newSession(time.Now().UTC())
	req.NoError(store.Update(ctx, func(tx *Tx) error { return tx.PutSession(session) }))

	// Given 20 goroutines reserving a room number at the same time
	const workers = 20
	numbers := make(chan int, workers)
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var n int
			err := store.Update(ctx, func(tx *Tx) error {
				var err error
				n, err = tx.NextRoomNumber(session.ID)
				return err
			})
			errs <- err
			numbers <- n
		}()
	}
	wg.Wait()
	close(numbers)
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	// Then every number from 1 to 20 was handed out exactly once
	seen := map[int]bool{}
	for n := range numbers {
		req.False(seen[n], "duplicate room number %d", n)
		seen[n] = true
	}
	req.Len(seen, workers)
	for i := 1; i <= workers; i++ {
		req.True(seen[i])
	}
}

func Test_PutSession_Keeps_Room_Sequence(t *testing.T) {
	req := require.New(t)
	store := setupStore(t)
	ctx := context.Background()
	session := newSession(time.Now().UTC())

	req.NoError(store.Update(ctx, func(tx *Tx) error {
		if err := tx.PutSession(session); err != nil {
			return err
		}
		_, err := tx.NextRoomNumber(session.ID)
		return err
	}))

	// When the session is rewritten
	session.Name = "Renamed"
	req.NoError(store.Update(ctx, func(tx *Tx) error { return tx.PutSession(session) }))

	// Then the next room number continues the sequence
	var next int
	req.NoError(store.Update(ctx, func(tx *Tx) error {
		var err error
		next, err = tx.NextRoomNumber(session.ID)
		return err
	}))
	req.Equal(2, next)
}

func Test_Rooms_Are_Listed_By_Number(t *testing.T) {
	req := require.New(t)
	store := setupStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	session := newSession(now)

	req.NoError(store.Update(ctx, func(tx *Tx) error {
		if err := tx.PutSession(session); err != nil {
			return err
		}
		for _, n := range []int{3, 1, 12, 2} {
			if err := tx.PutRoom(domain.NewRoom(session.ID, n, 6, now)); err != nil {
				return err
			}
		}
		return nil
	}))

	var rooms []domain.ChatRoom
	req.NoError(store.View(ctx, func(tx *Tx) error {
		var err error
		rooms, err = tx.RoomsBySession(session.ID)
		return err
	}))
	req.Equal([]int{1, 2, 3, 12}, lo.Map(rooms, func(r domain.ChatRoom, _ int) int { return r.Number }))
}

func Test_Participant_Indexes(t *testing.T) {
	req := require.New(t)
	store := setupStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	session := newSession(now)
	room := domain.NewRoom(session.ID, 1, 6, now)
	p := domain.NewParticipant(session.ID, room.ID, "Alice", lo.ToPtr("user-1"), domain.RegisteredUser, now)
	p.ConnectionHandle = lo.ToPtr("conn-1")

	req.NoError(store.Update(ctx, func(tx *Tx) error {
		if err := tx.PutSession(session); err != nil {
			return err
		}
		if err := tx.PutRoom(room); err != nil {
			return err
		}
		return tx.PutParticipant(p)
	}))

	// When the connection handle changes
	p.ConnectionHandle = lo.ToPtr("conn-2")
	req.NoError(store.Update(ctx, func(tx *Tx) error { return tx.PutParticipant(p) }))

	req.NoError(store.View(ctx, func(tx *Tx) error {
		// Then the old handle no longer resolves
		_, err := tx.ParticipantByConnection("conn-1")
		req.ErrorIs(err, errors.ErrParticipantNotFound)

		byConn, err := tx.ParticipantByConnection("conn-2")
		req.NoError(err)
		req.Equal(p.ID, byConn.ID)

		byUser, err := tx.UserParticipant(session.ID, "user-1")
		req.NoError(err)
		req.Equal(p.ID, byUser.ID)

		inRoom, err := tx.ParticipantsByRoom(room.ID)
		req.NoError(err)
		req.Len(inRoom, 1)
		return nil
	}))
}

func Test_Messages_Pagination(t *testing.T) {
	req := require.New(t)
	store := setupStore(t)
	ctx := context.Background()
	roomID := uuid.New()
	now := time.Now().UTC()

	// Given 10 messages, the 5th one soft deleted
	req.NoError(store.Update(ctx, func(tx *Tx) error {
		for i := 1; i <= 10; i++ {
			m := domain.ChatMessage{
				ID:         uuid.New(),
				RoomID:     roomID,
				SenderName: fmt.Sprintf("user_%d", i),
				Content:    fmt.Sprintf("Message %d", i),
				SentAt:     now.Add(time.Duration(i) * time.Minute),
			}
			if i == 5 {
				m.DeletedAt = lo.ToPtr(now)
			}
			if err := tx.PutMessage(m); err != nil {
				return err
			}
		}
		return nil
	}))

	page := func(cursor *string) ([]domain.ChatMessage, *string) {
		var msgs []domain.ChatMessage
		var next *string
		req.NoError(store.View(ctx, func(tx *Tx) error {
			var err error
			msgs, next, err = tx.Messages(roomID, cursor, 4)
			return err
		}))
		return msgs, next
	}

	// When walking the history
	msgs1, cursor1 := page(nil)
	req.Len(msgs1, 4)
	req.Equal("user_10", msgs1[0].SenderName)
	req.Equal("user_7", msgs1[3].SenderName)
	req.NotNil(cursor1)

	msgs2, cursor2 := page(cursor1)
	req.Len(msgs2, 4)
	req.Equal("user_6", msgs2[0].SenderName)
	req.Equal("user_2", msgs2[3].SenderName)
	req.NotNil(cursor2)

	msgs3, cursor3 := page(cursor2)
	req.Len(msgs3, 1)
	req.Equal("user_1", msgs3[0].SenderName)
	req.Nil(cursor3)
}

func Test_DeleteSession_Cascades(t *testing.T) {
	req := require.New(t)
	store := setupStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	session := newSession(now)
	room := domain.NewRoom(session.ID, 1, 6, now)
	p := domain.NewParticipant(session.ID, room.ID, "Bob", nil, domain.GuestUser, now)
	msg := domain.ChatMessage{ID: uuid.New(), RoomID: room.ID, SessionID: session.ID, ParticipantID: p.ID, Content: "hi", SentAt: now}
	inv := domain.SessionInvite{ID: uuid.New(), SessionID: session.ID, Token: "tok", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}

	req.NoError(store.Update(ctx, func(tx *Tx) error {
		for _, fn := range []func() error{
			func() error { return tx.PutSession(session) },
			func() error { return tx.PutRoom(room) },
			func() error { return tx.PutParticipant(p) },
			func() error { return tx.PutMessage(msg) },
			func() error { return tx.PutInvite(inv) },
		} {
			if err := fn(); err != nil {
				return err
			}
		}
		return nil
	}))

	// When deleting the session
	var deleted []uuid.UUID
	req.NoError(store.Update(ctx, func(tx *Tx) error {
		var err error
		deleted, err = tx.DeleteSession(session.ID)
		return err
	}))

	// Then nothing of it remains and the message ids are reported
	req.Equal([]uuid.UUID{msg.ID}, deleted)
	req.NoError(store.View(ctx, func(tx *Tx) error {
		_, err := tx.Session(session.ID)
		req.ErrorIs(err, errors.ErrSessionNotFound)
		_, err = tx.Room(room.ID)
		req.ErrorIs(err, errors.ErrRoomNotFound)
		_, err = tx.Participant(p.ID)
		req.ErrorIs(err, errors.ErrParticipantNotFound)
		_, err = tx.Message(msg.ID)
		req.ErrorIs(err, errors.ErrMessageNotFound)
		_, err = tx.Invite("tok")
		req.ErrorIs(err, errors.ErrInviteNotFound)
		return nil
	}))
}

func Test_Update_Cancelled_Context_Leaves_Nothing(t *testing.T) {
	req := require.New(t)
	store := setupStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	session := newSession(time.Now().UTC())

	// When the context is cancelled while the transaction runs
	err := store.Update(ctx, func(tx *Tx) error {
		if err := tx.PutSession(session); err != nil {
			return err
		}
		cancel()
		return nil
	})

	// Then the write is discarded
	req.ErrorIs(err, context.Canceled)
	req.NoError(store.View(context.Background(), func(tx *Tx) error {
		_, err := tx.Session(session.ID)
		req.ErrorIs(err, errors.ErrSessionNotFound)
		return nil
	}))
}
