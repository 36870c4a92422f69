package services

import (
	"context"
	"log/slog"

	"wagl-backend/contract"
	"wagl-backend/domain"
	"wagl-backend/domain/event"
	"wagl-backend/errors"
	"wagl-backend/infrastructure/storage"

	"github.com/google/uuid"
)

const ModeratorName = "Moderator"

type ISystemParticipantService interface {
	GetOrCreateSessionModerator(ctx context.Context, sessionID uuid.UUID) (domain.Participant, error)
	GetOrCreateBotParticipant(ctx context.Context, sessionID, roomID uuid.UUID, name string) (domain.Participant, error)
	CleanupInactiveBots(ctx context.Context, roomID uuid.UUID) (int, error)
}

// SystemParticipantService creates the synthetic speakers of a session:
// one moderator per session and one bot per room. They never take a seat.
type SystemParticipantService struct {
	store     *storage.Store
	publisher contract.IEventPublisher
	log       *slog.Logger
	now       Clock
}

func NewSystemParticipantService(store *storage.Store, publisher contract.IEventPublisher, log *slog.Logger, now Clock) *SystemParticipantService {
	return &SystemParticipantService{store: store, publisher: publisher, log: log, now: now}
}

// GetOrCreateSessionModerator returns the moderator of the session, creating it once.
// The moderator lives in domain.BroadcastRoomID and speaks to every room.
func (s *SystemParticipantService) GetOrCreateSessionModerator(ctx context.Context, sessionID uuid.UUID) (domain.Participant, error) {
	var moderator domain.Participant
	var created bool
	err := s.store.Update(ctx, func(tx *storage.Tx) error {
		created = false
		if _, err := tx.Session(sessionID); err != nil {
			return err
		}
		var err error
		moderator, err = tx.Moderator(sessionID)
		if !errors.Is(err, errors.ErrParticipantNotFound) {
			return err
		}
		moderator = domain.NewParticipant(sessionID, domain.BroadcastRoomID, ModeratorName, nil, domain.SystemModerator, s.now())
		created = true
		return tx.SetModerator(moderator)
	})
	if err != nil {
		logFailure(ctx, s.log, err, "Moderator creation failed", "session", sessionID)
		return domain.Participant{}, err
	}
	if created {
		s.announce(moderator)
	}
	return moderator, nil
}

// GetOrCreateBotParticipant returns the bot of a room, creating it once.
func (s *SystemParticipantService) GetOrCreateBotParticipant(ctx context.Context, sessionID, roomID uuid.UUID, name string) (domain.Participant, error) {
	var bot domain.Participant
	var created bool
	err := s.store.Update(ctx, func(tx *storage.Tx) error {
		created = false
		room, err := tx.Room(roomID)
		if err != nil {
			return err
		}
		if room.SessionID != sessionID {
			return errors.ErrRoomMismatch
		}
		bot, err = tx.Bot(roomID)
		if !errors.Is(err, errors.ErrParticipantNotFound) {
			return err
		}
		bot = domain.NewParticipant(sessionID, roomID, name, nil, domain.BotParticipant, s.now())
		created = true
		return tx.SetBot(bot)
	})
	if err != nil {
		logFailure(ctx, s.log, err, "Bot creation failed", "session", sessionID, "room", roomID)
		return domain.Participant{}, err
	}
	if created {
		s.announce(bot)
	}
	return bot, nil
}

func (s *SystemParticipantService) announce(p domain.Participant) {
	s.publisher.Publish(event.ParticipantJoined{Participant: p, At: p.JoinedAt})
	s.log.Info("System participant created", "type", p.Type, "session", p.SessionID, "room", p.RoomID)
}

// CleanupInactiveBots deletes the bots of a room that have left.
func (s *SystemParticipantService) CleanupInactiveBots(ctx context.Context, roomID uuid.UUID) (int, error) {
	var deleted int
	err := s.store.Update(ctx, func(tx *storage.Tx) error {
		deleted = 0
		participants, err := tx.ParticipantsByRoom(roomID)
		if err != nil {
			return err
		}
		for _, p := range participants {
			if p.Type != domain.BotParticipant || (p.IsActive && p.LeftAt == nil) {
				continue
			}
			if err := s.deleteBot(tx, p); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		logFailure(ctx, s.log, err, "Bot cleanup failed", "room", roomID)
		return 0, err
	}
	if deleted > 0 {
		s.log.Info("Inactive bots deleted", "room", roomID, "count", deleted)
	}
	return deleted, nil
}

// deleteBot frees the singleton slot only when it still points at this bot.
func (s *SystemParticipantService) deleteBot(tx *storage.Tx, p domain.Participant) error {
	current, err := tx.Bot(p.RoomID)
	switch {
	case err == nil && current.ID == p.ID:
		return tx.DeleteBot(p)
	case err == nil, errors.Is(err, errors.ErrParticipantNotFound):
		return tx.DeleteParticipant(p)
	default:
		return err
	}
}
