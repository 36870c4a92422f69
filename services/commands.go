package services

import (
	"fmt"
	"time"

	"wagl-backend/domain"
	"wagl-backend/errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateCommand(cmd any) error {
	if err := validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidCommand, err)
	}
	return nil
}

type CreateSessionCommand struct {
	Name                   string        `validate:"required,max=200"`
	ScheduledStart         time.Time     `validate:"required"`
	Duration               time.Duration `validate:"gt=0"`
	MaxParticipants        int           `validate:"gte=1"`
	MaxParticipantsPerRoom int           `validate:"gte=0"`
	CreatedByUserID        string        `validate:"required"`
}

type CreateInviteCommand struct {
	SessionID         uuid.UUID `validate:"required"`
	InviteeEmail      *string   `validate:"omitempty,email"`
	InviteeName       *string   `validate:"omitempty,max=200"`
	ExpirationMinutes int       `validate:"gte=0"`
}

type InviteRecipient struct {
	Email *string `validate:"omitempty,email"`
	Name  *string `validate:"omitempty,max=200"`
}

type SendMessageCommand struct {
	ParticipantID uuid.UUID `validate:"required"`
	RoomID        uuid.UUID `validate:"required"`
	Content       string
}

type ListMessagesQuery struct {
	RoomID uuid.UUID `validate:"required"`
	Cursor *string
	Limit  int `validate:"gte=0,lte=200"`
}

// ParticipantFilter narrows participant listings. Zero value matches everyone.
type ParticipantFilter struct {
	ActiveOnly bool
	Types      []domain.ParticipantType
}

func (f ParticipantFilter) Match(p domain.Participant) bool {
	if f.ActiveOnly && !p.IsActive {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if p.Type == t {
			return true
		}
	}
	return false
}

type InboundSpeaker string

const (
	SpeakerModerator InboundSpeaker = "moderator"
	SpeakerBot       InboundSpeaker = "bot"
)

// InboundRelayMessage is speech pushed by the relay target for one of its rooms.
type InboundRelayMessage struct {
	RelaySessionID string         `validate:"required,uuid"`
	RoomNumber     int            `validate:"gte=0"`
	Speaker        InboundSpeaker `validate:"oneof=moderator bot"`
	SpeakerName    string         `validate:"required_if=Speaker bot,max=200"`
	Content        string
}
