package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"wagl-backend/contract"
	"wagl-backend/domain"
	"wagl-backend/domain/event"
	"wagl-backend/errors"
	"wagl-backend/infrastructure/storage"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IParticipantService interface {
	MarkActive(ctx context.Context, id uuid.UUID, connectionHandle string) (domain.Participant, error)
	MarkAsLeft(ctx context.Context, id uuid.UUID) error
	MarkAsLeftByConnection(ctx context.Context, connectionHandle string) error
	Get(ctx context.Context, id uuid.UUID) (domain.Participant, error)
	GetByConnection(ctx context.Context, connectionHandle string) (domain.Participant, error)
	ListByRoom(ctx context.Context, roomID uuid.UUID, filter ParticipantFilter) ([]domain.Participant, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID, filter ParticipantFilter) ([]domain.Participant, error)
	IsUserInSession(ctx context.Context, userID string, sessionID uuid.UUID) (bool, error)
}

// ParticipantService tracks presence. Leaving frees the seat, coming back
// takes it again in the same room.
type ParticipantService struct {
	store     *storage.Store
	allocator *RoomAllocator
	publisher contract.IEventPublisher
	relay     contract.IRelayDispatcher
	log       *slog.Logger
	now       Clock
}

func NewParticipantService(store *storage.Store, allocator *RoomAllocator, publisher contract.IEventPublisher,
	relay contract.IRelayDispatcher, log *slog.Logger, now Clock) *ParticipantService {
	return &ParticipantService{store: store, allocator: allocator, publisher: publisher, relay: relay, log: log, now: now}
}

// MarkActive binds a connection to the participant.
func (s *ParticipantService) MarkActive(ctx context.Context, id uuid.UUID, connectionHandle string) (domain.Participant, error) {
	var participant domain.Participant
	var events []event.DomainEvent
	err := s.store.Update(ctx, func(tx *storage.Tx) error {
		events = nil
		now := s.now()
		var err error
		participant, err = tx.Participant(id)
		if err != nil {
			return err
		}
		returning := !participant.IsActive
		var roomChanged []event.DomainEvent
		if returning && participant.Type.TakesSeat() {
			if roomChanged, err = s.retakeSeat(tx, participant, now); err != nil {
				return err
			}
		}
		participant.MarkActive(connectionHandle)
		if err := tx.PutParticipant(participant); err != nil {
			return err
		}
		if returning {
			events = append([]event.DomainEvent{event.ParticipantJoined{Participant: participant, At: now}}, roomChanged...)
		}
		return nil
	})
	if err != nil {
		logFailure(ctx, s.log, err, "Marking participant active failed", "participant", id)
		return domain.Participant{}, err
	}
	publishAll(s.publisher, events)
	s.relay.DispatchConnect(participant)
	return participant, nil
}

// retakeSeat occupies the seat of a returning participant in its own room.
func (s *ParticipantService) retakeSeat(tx *storage.Tx, participant domain.Participant, now time.Time) ([]event.DomainEvent, error) {
	session, err := tx.Session(participant.SessionID)
	if err != nil {
		return nil, err
	}
	if session.IsTerminal() {
		return nil, fmt.Errorf("%w: status %s", errors.ErrSessionNotJoinable, session.Status)
	}
	// The user may have joined again with another invite while away
	if participant.UserID != nil {
		current, err := tx.UserParticipant(participant.SessionID, *participant.UserID)
		switch {
		case err == nil && current.ID != participant.ID && current.IsActive:
			return nil, errors.ErrAlreadyInSession
		case err != nil && !errors.Is(err, errors.ErrParticipantNotFound):
			return nil, err
		}
	}
	room, err := tx.Room(participant.RoomID)
	if err != nil {
		return nil, err
	}
	before := room.Status
	switch {
	case room.Status == domain.RoomClosed:
		return nil, errors.ErrRoomClosed
	case !room.Occupy():
		return nil, errors.ErrRoomFull
	}
	if err := tx.PutRoom(room); err != nil {
		return nil, err
	}
	if changed, ok := event.RoomTransition(before, room, now); ok {
		return []event.DomainEvent{changed}, nil
	}
	return nil, nil
}

// MarkAsLeft follows the same path as RoomAllocator.Remove.
func (s *ParticipantService) MarkAsLeft(ctx context.Context, id uuid.UUID) error {
	return s.allocator.Remove(ctx, id)
}

// MarkAsLeftByConnection is the disconnect callback of the transport.
// An unknown handle is not an error: the participant may already be gone.
func (s *ParticipantService) MarkAsLeftByConnection(ctx context.Context, connectionHandle string) error {
	var participant domain.Participant
	var events []event.DomainEvent
	var left bool
	err := s.store.Update(ctx, func(tx *storage.Tx) error {
		events, left = nil, false
		found, err := tx.ParticipantByConnection(connectionHandle)
		if errors.Is(err, errors.ErrParticipantNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		participant, events, left, err = s.allocator.release(tx, found.ID)
		return err
	})
	if err != nil {
		logFailure(ctx, s.log, err, "Disconnect failed", "connection", connectionHandle)
		return err
	}
	if !left {
		s.log.Debug("Disconnect of unknown connection", "connection", connectionHandle)
		return nil
	}
	publishAll(s.publisher, events)
	s.relay.DispatchDisconnect(participant)
	return nil
}

func (s *ParticipantService) Get(ctx context.Context, id uuid.UUID) (domain.Participant, error) {
	return s.lookup(ctx, "participant", id, func(tx *storage.Tx) (domain.Participant, error) {
		return tx.Participant(id)
	})
}

func (s *ParticipantService) GetByConnection(ctx context.Context, connectionHandle string) (domain.Participant, error) {
	return s.lookup(ctx, "connection", connectionHandle, func(tx *storage.Tx) (domain.Participant, error) {
		return tx.ParticipantByConnection(connectionHandle)
	})
}

func (s *ParticipantService) lookup(ctx context.Context, key string, value any,
	find func(tx *storage.Tx) (domain.Participant, error)) (domain.Participant, error) {
	var participant domain.Participant
	err := s.store.View(ctx, func(tx *storage.Tx) error {
		var err error
		participant, err = find(tx)
		return err
	})
	if err != nil {
		logFailure(ctx, s.log, err, "Participant lookup failed", key, value)
		return domain.Participant{}, err
	}
	return participant, nil
}

func (s *ParticipantService) ListByRoom(ctx context.Context, roomID uuid.UUID, filter ParticipantFilter) ([]domain.Participant, error) {
	return s.list(ctx, "room", roomID, filter, func(tx *storage.Tx) ([]domain.Participant, error) {
		if roomID != domain.BroadcastRoomID {
			if _, err := tx.Room(roomID); err != nil {
				return nil, err
			}
		}
		return tx.ParticipantsByRoom(roomID)
	})
}

func (s *ParticipantService) ListBySession(ctx context.Context, sessionID uuid.UUID, filter ParticipantFilter) ([]domain.Participant, error) {
	return s.list(ctx, "session", sessionID, filter, func(tx *storage.Tx) ([]domain.Participant, error) {
		if _, err := tx.Session(sessionID); err != nil {
			return nil, err
		}
		return tx.ParticipantsBySession(sessionID)
	})
}

func (s *ParticipantService) list(ctx context.Context, key string, id uuid.UUID, filter ParticipantFilter,
	load func(tx *storage.Tx) ([]domain.Participant, error)) ([]domain.Participant, error) {
	var participants []domain.Participant
	err := s.store.View(ctx, func(tx *storage.Tx) error {
		var err error
		participants, err = load(tx)
		return err
	})
	if err != nil {
		logFailure(ctx, s.log, err, "Listing participants failed", key, id)
		return nil, err
	}
	participants = lo.Filter(participants, func(p domain.Participant, _ int) bool { return filter.Match(p) })
	slices.SortFunc(participants, func(a, b domain.Participant) int { return a.JoinedAt.Compare(b.JoinedAt) })
	return participants, nil
}

// IsUserInSession reports whether the user has an active participant in the session.
func (s *ParticipantService) IsUserInSession(ctx context.Context, userID string, sessionID uuid.UUID) (bool, error) {
	var active bool
	err := s.store.View(ctx, func(tx *storage.Tx) error {
		participant, err := tx.UserParticipant(sessionID, userID)
		if errors.Is(err, errors.ErrParticipantNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		active = participant.IsActive
		return nil
	})
	if err != nil {
		logFailure(ctx, s.log, err, "Presence lookup failed", "session", sessionID)
		return false, err
	}
	return active, nil
}
