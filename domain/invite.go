package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionInvite is a single consumable grant to join a session.
type SessionInvite struct {
	ID               uuid.UUID
	SessionID        uuid.UUID
	Token            string
	InviteeEmail     *string
	InviteeName      *string
	CreatedByUserID  string
	CreatedAt        time.Time
	ExpiresAt        time.Time
	IsConsumed       bool
	ConsumedAt       *time.Time
	ConsumedByUserID *string
	ConsumedByName   *string
}

func (i SessionInvite) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// Consume is a one-way transition.
func (i *SessionInvite) Consume(displayName string, userID *string, now time.Time) {
	i.IsConsumed = true
	i.ConsumedAt = &now
	i.ConsumedByName = &displayName
	i.ConsumedByUserID = userID
}

type InviteStatus int

// InviteUnknown is the zero value: an unfilled validation is never valid.
// The others are ordered by validation priority.
const (
	InviteUnknown InviteStatus = iota
	InviteValid
	InviteInvalidToken
	InviteExpired
	InviteAlreadyConsumed
	InviteSessionNotJoinable
	InviteUserAlreadyInSession
)

func (s InviteStatus) String() string {
	switch s {
	case InviteValid:
		return "valid"
	case InviteInvalidToken:
		return "invalid_token"
	case InviteExpired:
		return "expired"
	case InviteAlreadyConsumed:
		return "already_consumed"
	case InviteSessionNotJoinable:
		return "session_not_joinable"
	case InviteUserAlreadyInSession:
		return "user_already_in_session"
	default:
		return "unknown"
	}
}

// InviteValidation is the typed outcome of checking an invite token.
type InviteValidation struct {
	Status         InviteStatus
	SessionID      uuid.UUID
	SessionName    string
	ScheduledStart time.Time
}

func (v InviteValidation) IsValid() bool { return v.Status == InviteValid }

// Reason is the human-readable explanation shown to the invitee.
func (v InviteValidation) Reason() string {
	switch v.Status {
	case InviteValid:
		return "invite valid"
	case InviteInvalidToken:
		return "invite not found"
	case InviteExpired:
		return "invite expired"
	case InviteAlreadyConsumed:
		return "invite already used"
	case InviteSessionNotJoinable:
		return "session is no longer open"
	case InviteUserAlreadyInSession:
		return "you already joined this session"
	default:
		return "invite rejected"
	}
}

// ValidateInvite applies the validation rules in priority order.
// A nil invite means the token is unknown; a nil session means it was removed.
func ValidateInvite(invite *SessionInvite, session *ChatSession, now time.Time) InviteValidation {
	if invite == nil {
		return InviteValidation{Status: InviteInvalidToken}
	}
	v := InviteValidation{SessionID: invite.SessionID}
	if session != nil {
		v.SessionName = session.Name
		v.ScheduledStart = session.ScheduledStart
	}
	switch {
	case invite.IsExpired(now):
		v.Status = InviteExpired
	case invite.IsConsumed:
		v.Status = InviteAlreadyConsumed
	case session == nil || !session.IsJoinable():
		v.Status = InviteSessionNotJoinable
	default:
		v.Status = InviteValid
	}
	return v
}
