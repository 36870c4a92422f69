package services

import (
	"context"
	"log/slog"

	"wagl-backend/domain"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IRelayInboundService interface {
	Handle(ctx context.Context, msg InboundRelayMessage) ([]domain.ChatMessage, error)
}

type RoomAddresser interface {
	RoomNumberFor(roomID uuid.UUID) int
}

// RelayInboundService turns relay speech into room messages. The moderator
// speaks to every open room of the session; a bot speaks in each open room
// that maps onto the relay room number. Nothing is echoed back to the relay.
type RelayInboundService struct {
	allocator  *RoomAllocator
	system     *SystemParticipantService
	messages   *MessageService
	addressing RoomAddresser
	log        *slog.Logger
}

func NewRelayInboundService(allocator *RoomAllocator, system *SystemParticipantService, messages *MessageService,
	addressing RoomAddresser, log *slog.Logger) *RelayInboundService {
	return &RelayInboundService{allocator: allocator, system: system, messages: messages, addressing: addressing, log: log}
}

func (s *RelayInboundService) Handle(ctx context.Context, msg InboundRelayMessage) ([]domain.ChatMessage, error) {
	if err := validateCommand(msg); err != nil {
		logFailure(ctx, s.log, err, "Inbound relay message rejected", "relay_session", msg.RelaySessionID)
		return nil, err
	}
	sessionID := uuid.MustParse(msg.RelaySessionID)

	rooms, err := s.allocator.ListRooms(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	rooms = lo.Filter(rooms, func(r domain.ChatRoom, _ int) bool {
		if r.Status == domain.RoomClosed {
			return false
		}
		return msg.Speaker == SpeakerModerator || s.addressing.RoomNumberFor(r.ID) == msg.RoomNumber
	})
	if len(rooms) == 0 {
		s.log.Warn("Inbound relay message matches no open room", "session", sessionID, "room_number", msg.RoomNumber)
		return nil, nil
	}

	var posted []domain.ChatMessage
	for _, room := range rooms {
		speaker, err := s.speaker(ctx, msg, sessionID, room.ID)
		if err != nil {
			return posted, err
		}
		sent, err := s.messages.Send(ctx, SendMessageCommand{ParticipantID: speaker.ID, RoomID: room.ID, Content: msg.Content})
		if err != nil {
			return posted, err
		}
		posted = append(posted, sent)
	}
	s.log.Debug("Inbound relay message posted", "session", sessionID, "speaker", msg.Speaker, "rooms", len(posted))
	return posted, nil
}

func (s *RelayInboundService) speaker(ctx context.Context, msg InboundRelayMessage, sessionID, roomID uuid.UUID) (domain.Participant, error) {
	if msg.Speaker == SpeakerModerator {
		return s.system.GetOrCreateSessionModerator(ctx, sessionID)
	}
	return s.system.GetOrCreateBotParticipant(ctx, sessionID, roomID, msg.SpeakerName)
}
