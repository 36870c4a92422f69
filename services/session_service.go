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

type ISessionService interface {
	Create(ctx context.Context, cmd CreateSessionCommand) (domain.ChatSession, []domain.ChatRoom, error)
	Start(ctx context.Context, id uuid.UUID) (bool, error)
	End(ctx context.Context, id uuid.UUID) (bool, error)
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (domain.ChatSession, error)
	List(ctx context.Context, statuses ...domain.SessionStatus) ([]domain.ChatSession, error)
	SweepExpired(ctx context.Context, now time.Time) (SweepReport, error)
}

// SweepReport counts what one expiry pass did.
type SweepReport struct {
	Deleted []uuid.UUID
	Ended   []uuid.UUID
}

// SessionService owns the session state machine:
// scheduled -> active -> ended, and cancelled from any non terminal state.
type SessionService struct {
	store     *storage.Store
	index     MessageIndex
	publisher contract.IEventPublisher
	log       *slog.Logger
	now       Clock
}

func NewSessionService(store *storage.Store, index MessageIndex, publisher contract.IEventPublisher,
	log *slog.Logger, now Clock) *SessionService {
	return &SessionService{store: store, index: index, publisher: publisher, log: log, now: now}
}

// Create stores the session and the rooms needed to seat MaxParticipants.
func (s *SessionService) Create(ctx context.Context, cmd CreateSessionCommand) (domain.ChatSession, []domain.ChatRoom, error) {
	if err := validateCommand(cmd); err != nil {
		logFailure(ctx, s.log, err, "Session rejected", "name", cmd.Name)
		return domain.ChatSession{}, nil, err
	}
	perRoom := cmd.MaxParticipantsPerRoom
	if perRoom == 0 {
		perRoom = domain.DefaultRoomCapacity
	}

	now := s.now()
	session := domain.ChatSession{
		ID:                     uuid.New(),
		Name:                   cmd.Name,
		ScheduledStart:         cmd.ScheduledStart,
		Duration:               cmd.Duration,
		MaxParticipants:        cmd.MaxParticipants,
		MaxParticipantsPerRoom: perRoom,
		Status:                 domain.SessionScheduled,
		CreatedByUserID:        cmd.CreatedByUserID,
		CreatedAt:              now,
	}

	var rooms []domain.ChatRoom
	err := s.store.Update(ctx, func(tx *storage.Tx) error {
		rooms = nil
		if err := tx.PutSession(session); err != nil {
			return err
		}
		for range domain.RoomCount(session.MaxParticipants, perRoom) {
			number, err := tx.NextRoomNumber(session.ID)
			if err != nil {
				return err
			}
			room := domain.NewRoom(session.ID, number, perRoom, now)
			if err := tx.PutRoom(room); err != nil {
				return err
			}
			rooms = append(rooms, room)
		}
		return nil
	})
	if err != nil {
		logFailure(ctx, s.log, err, "Session creation failed", "name", cmd.Name)
		return domain.ChatSession{}, nil, err
	}
	s.log.Info("Session created", "session", session.ID, "rooms", len(rooms))
	return session, rooms, nil
}

// Start opens a scheduled session. It returns false when the session is in any other state.
func (s *SessionService) Start(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.transition(ctx, id, "start", func(session *domain.ChatSession, now time.Time) bool {
		return session.Start(now)
	}, false)
}

// End closes an active session and all its rooms.
func (s *SessionService) End(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.transition(ctx, id, "end", func(session *domain.ChatSession, now time.Time) bool {
		return session.End(now)
	}, true)
}

// Cancel stops a session that has not terminated yet and closes its rooms.
func (s *SessionService) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.transition(ctx, id, "cancel", func(session *domain.ChatSession, now time.Time) bool {
		return session.Cancel(now)
	}, true)
}

func (s *SessionService) transition(ctx context.Context, id uuid.UUID, name string,
	apply func(*domain.ChatSession, time.Time) bool, closeRooms bool) (bool, error) {
	var applied bool
	var events []event.DomainEvent
	err := s.store.Update(ctx, func(tx *storage.Tx) error {
		var err error
		applied, events, err = s.applyTransition(tx, id, apply, closeRooms)
		return err
	})
	if err != nil {
		logFailure(ctx, s.log, err, "Session transition failed", "session", id, "transition", name)
		return false, err
	}
	if !applied {
		s.log.Debug("Session transition refused", "session", id, "transition", name)
		return false, nil
	}
	publishAll(s.publisher, events)
	s.log.Info("Session transition applied", "session", id, "transition", name)
	return true, nil
}

func (s *SessionService) applyTransition(tx *storage.Tx, id uuid.UUID,
	apply func(*domain.ChatSession, time.Time) bool, closeRooms bool) (bool, []event.DomainEvent, error) {
	now := s.now()
	session, err := tx.Session(id)
	if err != nil {
		return false, nil, err
	}
	previous := session.Status
	if !apply(&session, now) {
		return false, nil, nil
	}
	if err := tx.PutSession(session); err != nil {
		return false, nil, err
	}
	events := []event.DomainEvent{event.SessionStatusChanged{Session: session, Previous: previous, At: now}}
	if closeRooms {
		closed, err := closeAllRooms(tx, id, now)
		if err != nil {
			return false, nil, err
		}
		events = append(events, closed...)
	}
	return true, events, nil
}

func closeAllRooms(tx *storage.Tx, sessionID uuid.UUID, now time.Time) ([]event.DomainEvent, error) {
	rooms, err := tx.RoomsBySession(sessionID)
	if err != nil {
		return nil, err
	}
	var events []event.DomainEvent
	for _, room := range rooms {
		if room.Status == domain.RoomClosed {
			continue
		}
		before := room.Status
		room.Close(now)
		if err := tx.PutRoom(room); err != nil {
			return nil, err
		}
		events = append(events, event.RoomStatusChanged{Room: room, Previous: before, At: now})
	}
	return events, nil
}

// Delete removes a session that is not active, with everything it scopes.
func (s *SessionService) Delete(ctx context.Context, id uuid.UUID) error {
	var messageIDs []uuid.UUID
	err := s.store.Update(ctx, func(tx *storage.Tx) error {
		session, err := tx.Session(id)
		if err != nil {
			return err
		}
		if session.Status == domain.SessionActive {
			return errors.ErrSessionActive
		}
		messageIDs, err = tx.DeleteSession(id)
		return err
	})
	if err != nil {
		logFailure(ctx, s.log, err, "Session deletion failed", "session", id)
		return err
	}
	s.unindex(id, messageIDs)
	s.log.Info("Session deleted", "session", id)
	return nil
}

// unindex runs after commit. A failure leaves stale documents that search
// already skips.
func (s *SessionService) unindex(sessionID uuid.UUID, messageIDs []uuid.UUID) {
	if err := s.index.RemoveAll(messageIDs); err != nil {
		s.log.Warn("Unindexing session messages failed", "session", sessionID, "messages", len(messageIDs), "error", err)
	}
}

func (s *SessionService) Get(ctx context.Context, id uuid.UUID) (domain.ChatSession, error) {
	var session domain.ChatSession
	err := s.store.View(ctx, func(tx *storage.Tx) error {
		var err error
		session, err = tx.Session(id)
		return err
	})
	if err != nil {
		logFailure(ctx, s.log, err, "Session lookup failed", "session", id)
		return domain.ChatSession{}, err
	}
	return session, nil
}

// List returns sessions ordered by scheduled start, keeping only the given
// statuses when any is provided.
func (s *SessionService) List(ctx context.Context, statuses ...domain.SessionStatus) ([]domain.ChatSession, error) {
	var sessions []domain.ChatSession
	err := s.store.View(ctx, func(tx *storage.Tx) error {
		var err error
		sessions, err = tx.Sessions()
		return err
	})
	if err != nil {
		logFailure(ctx, s.log, err, "Listing sessions failed")
		return nil, err
	}
	if len(statuses) > 0 {
		sessions = lo.Filter(sessions, func(session domain.ChatSession, _ int) bool {
			return slices.Contains(statuses, session.Status)
		})
	}
	slices.SortFunc(sessions, func(a, b domain.ChatSession) int {
		return a.ScheduledStart.Compare(b.ScheduledStart)
	})
	return sessions, nil
}

// SweepExpired handles sessions whose scheduled end has passed. A session that
// never started is deleted; an active one is ended, never deleted.
// Each session is handled in its own transaction.
func (s *SessionService) SweepExpired(ctx context.Context, now time.Time) (SweepReport, error) {
	sessions, err := s.List(ctx, domain.SessionScheduled, domain.SessionActive)
	if err != nil {
		return SweepReport{}, err
	}

	var report SweepReport
	var errs []error
	for _, candidate := range sessions {
		if !candidate.IsExpired(now) {
			continue
		}
		var deleted bool
		var messageIDs []uuid.UUID
		var events []event.DomainEvent
		err := s.store.Update(ctx, func(tx *storage.Tx) error {
			deleted, messageIDs, events = false, nil, nil
			session, err := tx.Session(candidate.ID)
			if err != nil {
				return err
			}
			if !session.IsExpired(now) {
				return nil
			}
			switch session.Status {
			case domain.SessionScheduled:
				deleted = true
				messageIDs, err = tx.DeleteSession(session.ID)
				return err
			case domain.SessionActive:
				_, events, err = s.applyTransition(tx, session.ID, func(cs *domain.ChatSession, _ time.Time) bool {
					return cs.End(now)
				}, true)
				return err
			}
			return nil
		})
		switch {
		case errors.Is(err, errors.ErrSessionNotFound):
			continue
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return report, err
		case err != nil:
			logFailure(ctx, s.log, err, "Expiring session failed", "session", candidate.ID)
			errs = append(errs, fmt.Errorf("expire session %s: %w", candidate.ID, err))
			continue
		}
		if deleted {
			report.Deleted = append(report.Deleted, candidate.ID)
			s.unindex(candidate.ID, messageIDs)
		} else if len(events) > 0 {
			report.Ended = append(report.Ended, candidate.ID)
			publishAll(s.publisher, events)
		}
	}
	if len(report.Deleted)+len(report.Ended) > 0 {
		s.log.Info("Expired sessions swept", "deleted", len(report.Deleted), "ended", len(report.Ended))
	}
	return report, errors.Join(errs...)
}
