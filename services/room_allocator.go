package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"wagl-backend/contract"
	"wagl-backend/domain"
	"wagl-backend/domain/event"
	"wagl-backend/errors"
	"wagl-backend/infrastructure/storage"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IRoomAllocator interface {
	Allocate(ctx context.Context, sessionID uuid.UUID, displayName string, userID *string) (Allocation, error)
	Remove(ctx context.Context, participantID uuid.UUID) error
	Consolidate(ctx context.Context, sessionID uuid.UUID) ([]domain.ChatRoom, error)
	ListRooms(ctx context.Context, sessionID uuid.UUID) ([]domain.ChatRoom, error)
	GetRoom(ctx context.Context, roomID uuid.UUID) (domain.ChatRoom, error)
}

type Allocation struct {
	Room        domain.ChatRoom
	Participant domain.Participant
}

// RoomAllocator packs participants into the rooms of a session, first fit.
// Seats are counted on the room record itself; the capacity check and the
// increment share a transaction, so concurrent joins retry instead of overfilling.
type RoomAllocator struct {
	store     *storage.Store
	publisher contract.IEventPublisher
	relay     contract.IRelayDispatcher
	log       *slog.Logger
	now       Clock
}

func NewRoomAllocator(store *storage.Store, publisher contract.IEventPublisher, relay contract.IRelayDispatcher,
	log *slog.Logger, now Clock) *RoomAllocator {
	return &RoomAllocator{store: store, publisher: publisher, relay: relay, log: log, now: now}
}

func (a *RoomAllocator) Allocate(ctx context.Context, sessionID uuid.UUID, displayName string, userID *string) (Allocation, error) {
	var allocation Allocation
	var events []event.DomainEvent
	err := a.store.Update(ctx, func(tx *storage.Tx) error {
		var err error
		allocation, events, err = a.allocate(tx, sessionID, displayName, userID)
		return err
	})
	if err != nil {
		logFailure(ctx, a.log, err, "Allocation failed", "session", sessionID)
		return Allocation{}, err
	}
	a.announceJoin(allocation, events)
	return allocation, nil
}

// announceJoin runs once the allocation is committed.
func (a *RoomAllocator) announceJoin(allocation Allocation, events []event.DomainEvent) {
	publishAll(a.publisher, events)
	a.relay.DispatchConnect(allocation.Participant)
	a.log.Debug("Participant allocated", "session", allocation.Room.SessionID, "room", allocation.Room.Name)
}

// allocate seats a new human participant inside tx.
func (a *RoomAllocator) allocate(tx *storage.Tx, sessionID uuid.UUID, displayName string, userID *string) (Allocation, []event.DomainEvent, error) {
	now := a.now()
	session, err := tx.Session(sessionID)
	if err != nil {
		return Allocation{}, nil, err
	}
	if !session.IsJoinable() {
		return Allocation{}, nil, fmt.Errorf("%w: status %s", errors.ErrSessionNotJoinable, session.Status)
	}

	kind := domain.ParticipantTypeFor(userID)
	if kind == domain.RegisteredUser {
		// The index read also guards against two first joins of the same user
		existing, err := tx.UserParticipant(sessionID, *userID)
		switch {
		case err == nil && existing.IsActive:
			return Allocation{}, nil, errors.ErrAlreadyInSession
		case err != nil && !errors.Is(err, errors.ErrParticipantNotFound):
			return Allocation{}, nil, err
		}
	}

	rooms, err := tx.RoomsBySession(sessionID)
	if err != nil {
		return Allocation{}, nil, err
	}
	room, found := lo.Find(rooms, func(r domain.ChatRoom) bool { return r.HasCapacity() })
	if !found {
		number, err := tx.NextRoomNumber(sessionID)
		if err != nil {
			return Allocation{}, nil, err
		}
		room = domain.NewRoom(sessionID, number, session.MaxParticipantsPerRoom, now)
	}

	before := room.Status
	if !room.Occupy() {
		return Allocation{}, nil, errors.ErrRoomFull
	}
	if err := tx.PutRoom(room); err != nil {
		return Allocation{}, nil, err
	}

	participant := domain.NewParticipant(sessionID, room.ID, displayName, userID, kind, now)
	if err := tx.PutParticipant(participant); err != nil {
		return Allocation{}, nil, err
	}

	events := []event.DomainEvent{event.ParticipantJoined{Participant: participant, At: now}}
	if changed, ok := event.RoomTransition(before, room, now); ok {
		events = append(events, changed)
	}
	return Allocation{Room: room, Participant: participant}, events, nil
}

// Remove deactivates a participant and gives its seat back.
func (a *RoomAllocator) Remove(ctx context.Context, participantID uuid.UUID) error {
	var participant domain.Participant
	var events []event.DomainEvent
	var left bool
	err := a.store.Update(ctx, func(tx *storage.Tx) error {
		var err error
		participant, events, left, err = a.release(tx, participantID)
		return err
	})
	if err != nil {
		logFailure(ctx, a.log, err, "Removing participant failed", "participant", participantID)
		return err
	}
	if left {
		publishAll(a.publisher, events)
		a.relay.DispatchDisconnect(participant)
	}
	return nil
}

// release marks the participant as left and frees its seat inside tx.
// It reports false when the participant had already left.
func (a *RoomAllocator) release(tx *storage.Tx, participantID uuid.UUID) (domain.Participant, []event.DomainEvent, bool, error) {
	now := a.now()
	participant, err := tx.Participant(participantID)
	if err != nil {
		return domain.Participant{}, nil, false, err
	}
	if !participant.IsActive {
		return participant, nil, false, nil
	}
	participant.MarkAsLeft(now)
	if err := tx.PutParticipant(participant); err != nil {
		return domain.Participant{}, nil, false, err
	}

	events := []event.DomainEvent{event.ParticipantLeft{Participant: participant, At: now}}
	if !participant.Type.TakesSeat() {
		return participant, events, true, nil
	}

	room, err := tx.Room(participant.RoomID)
	if err != nil {
		return domain.Participant{}, nil, false, err
	}
	before := room.Status
	room.Release()
	if err := tx.PutRoom(room); err != nil {
		return domain.Participant{}, nil, false, err
	}
	if changed, ok := event.RoomTransition(before, room, now); ok {
		events = append(events, changed)
	}
	return participant, events, true, nil
}

// Consolidate closes empty active rooms while at least two active rooms remain,
// so a session always keeps one open room. The highest numbers close first.
func (a *RoomAllocator) Consolidate(ctx context.Context, sessionID uuid.UUID) ([]domain.ChatRoom, error) {
	var closed []domain.ChatRoom
	var events []event.DomainEvent
	err := a.store.Update(ctx, func(tx *storage.Tx) error {
		closed, events = nil, nil
		now := a.now()
		rooms, err := tx.RoomsBySession(sessionID)
		if err != nil {
			return err
		}
		active := lo.CountBy(rooms, func(r domain.ChatRoom) bool { return r.Status == domain.RoomActive })
		for _, room := range slices.Backward(rooms) {
			if active < 2 {
				break
			}
			if room.Status != domain.RoomActive || !room.IsEmpty() {
				continue
			}
			before := room.Status
			room.Close(now)
			if err := tx.PutRoom(room); err != nil {
				return err
			}
			active--
			closed = append(closed, room)
			events = append(events, event.RoomStatusChanged{Room: room, Previous: before, At: now})
		}
		return nil
	})
	if err != nil {
		logFailure(ctx, a.log, err, "Consolidation failed", "session", sessionID)
		return nil, err
	}
	publishAll(a.publisher, events)
	if len(closed) > 0 {
		a.log.Info("Empty rooms closed", "session", sessionID, "count", len(closed))
	}
	return closed, nil
}

func (a *RoomAllocator) ListRooms(ctx context.Context, sessionID uuid.UUID) ([]domain.ChatRoom, error) {
	var rooms []domain.ChatRoom
	err := a.store.View(ctx, func(tx *storage.Tx) error {
		if _, err := tx.Session(sessionID); err != nil {
			return err
		}
		var err error
		rooms, err = tx.RoomsBySession(sessionID)
		return err
	})
	if err != nil {
		logFailure(ctx, a.log, err, "Listing rooms failed", "session", sessionID)
		return nil, err
	}
	return rooms, nil
}

func (a *RoomAllocator) GetRoom(ctx context.Context, roomID uuid.UUID) (domain.ChatRoom, error) {
	var room domain.ChatRoom
	err := a.store.View(ctx, func(tx *storage.Tx) error {
		var err error
		room, err = tx.Room(roomID)
		return err
	})
	if err != nil {
		logFailure(ctx, a.log, err, "Room lookup failed", "room", roomID)
		return domain.ChatRoom{}, err
	}
	return room, nil
}
