// Package event defines the outbound events handed to the real-time transport.
// A RoomID equal to domain.BroadcastRoomID addresses every room of the session.
package event

import (
	"time"

	"wagl-backend/domain"

	"github.com/google/uuid"
)

type DomainEvent interface {
	Name() string
	SessionID() uuid.UUID
	RoomID() uuid.UUID
	OccurredAt() time.Time
}

const (
	MessageReceivedName      = "ReceiveMessage"
	ParticipantJoinedName    = "UserJoined"
	ParticipantLeftName      = "UserLeft"
	RoomStatusChangedName    = "RoomStatusChanged"
	SessionStatusChangedName = "SessionStatusChanged"
)

type MessageReceived struct {
	Message domain.ChatMessage
}

func (e MessageReceived) Name() string          { return MessageReceivedName }
func (e MessageReceived) SessionID() uuid.UUID  { return e.Message.SessionID }
func (e MessageReceived) RoomID() uuid.UUID     { return e.Message.RoomID }
func (e MessageReceived) OccurredAt() time.Time { return e.Message.SentAt }

type ParticipantJoined struct {
	Participant domain.Participant
	At          time.Time
}

func (e ParticipantJoined) Name() string          { return ParticipantJoinedName }
func (e ParticipantJoined) SessionID() uuid.UUID  { return e.Participant.SessionID }
func (e ParticipantJoined) RoomID() uuid.UUID     { return e.Participant.RoomID }
func (e ParticipantJoined) OccurredAt() time.Time { return e.At }

type ParticipantLeft struct {
	Participant domain.Participant
	At          time.Time
}

func (e ParticipantLeft) Name() string          { return ParticipantLeftName }
func (e ParticipantLeft) SessionID() uuid.UUID  { return e.Participant.SessionID }
func (e ParticipantLeft) RoomID() uuid.UUID     { return e.Participant.RoomID }
func (e ParticipantLeft) OccurredAt() time.Time { return e.At }

type RoomStatusChanged struct {
	Room     domain.ChatRoom
	Previous domain.RoomStatus
	At       time.Time
}

func (e RoomStatusChanged) Name() string          { return RoomStatusChangedName }
func (e RoomStatusChanged) SessionID() uuid.UUID  { return e.Room.SessionID }
func (e RoomStatusChanged) RoomID() uuid.UUID     { return e.Room.ID }
func (e RoomStatusChanged) OccurredAt() time.Time { return e.At }

type SessionStatusChanged struct {
	Session  domain.ChatSession
	Previous domain.SessionStatus
	At       time.Time
}

func (e SessionStatusChanged) Name() string          { return SessionStatusChangedName }
func (e SessionStatusChanged) SessionID() uuid.UUID  { return e.Session.ID }
func (e SessionStatusChanged) RoomID() uuid.UUID     { return domain.BroadcastRoomID }
func (e SessionStatusChanged) OccurredAt() time.Time { return e.At }

// RoomTransition returns the status event for a room whose status moved, if any.
func RoomTransition(before domain.RoomStatus, room domain.ChatRoom, at time.Time) (RoomStatusChanged, bool) {
	if before == room.Status {
		return RoomStatusChanged{}, false
	}
	return RoomStatusChanged{Room: room, Previous: before, At: at}, true
}
