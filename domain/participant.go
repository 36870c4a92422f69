// Package domain contains core concepts of the chat system.
// This file defines Participant entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// BroadcastRoomID is the room of participants that speak to every room of a session.
var BroadcastRoomID = uuid.Nil

type ParticipantType int

const (
	RegisteredUser ParticipantType = iota
	GuestUser
	SystemModerator
	BotParticipant
)

func (t ParticipantType) String() string {
	switch t {
	case RegisteredUser:
		return "registered"
	case GuestUser:
		return "guest"
	case SystemModerator:
		return "moderator"
	case BotParticipant:
		return "bot"
	default:
		return "unknown"
	}
}

func (t ParticipantType) HasUserID() bool { return t == RegisteredUser }

func (t ParticipantType) IsSystem() bool {
	return t == SystemModerator || t == BotParticipant
}

// TakesSeat reports whether the participant counts against room capacity.
func (t ParticipantType) TakesSeat() bool { return !t.IsSystem() }

func ParticipantTypeFor(userID *string) ParticipantType {
	if userID != nil && *userID != "" {
		return RegisteredUser
	}
	return GuestUser
}

// Participant occupies exactly one room for its lifetime.
// IsActive is false exactly when LeftAt is set.
type Participant struct {
	ID               uuid.UUID
	RoomID           uuid.UUID
	SessionID        uuid.UUID
	UserID           *string
	DisplayName      string
	ConnectionHandle *string
	Type             ParticipantType
	IsActive         bool
	JoinedAt         time.Time
	LeftAt           *time.Time
}

func NewParticipant(sessionID, roomID uuid.UUID, displayName string, userID *string, kind ParticipantType, now time.Time) Participant {
	if !kind.HasUserID() {
		userID = nil
	}
	return Participant{
		ID:          uuid.New(),
		RoomID:      roomID,
		SessionID:   sessionID,
		UserID:      userID,
		DisplayName: displayName,
		Type:        kind,
		IsActive:    true,
		JoinedAt:    now,
	}
}

func (p *Participant) MarkActive(connectionHandle string) {
	p.IsActive = true
	p.LeftAt = nil
	if connectionHandle != "" {
		p.ConnectionHandle = &connectionHandle
	}
}

func (p *Participant) MarkAsLeft(now time.Time) {
	p.IsActive = false
	p.ConnectionHandle = nil
	p.LeftAt = &now
}

func (p Participant) IsUser(userID string) bool {
	return p.UserID != nil && *p.UserID == userID
}
