// Package domain contains core concepts of the chat system.
// This file defines ChatRoom capacity rules.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const DefaultRoomCapacity = 6

type RoomStatus string

const (
	RoomActive RoomStatus = "active"
	RoomFull   RoomStatus = "full"
	RoomClosed RoomStatus = "closed"
)

// ChatRoom is a capacity-bounded sub-channel of a session.
// ParticipantCount never exceeds MaxParticipants.
type ChatRoom struct {
	ID               uuid.UUID
	SessionID        uuid.UUID
	Number           int
	Name             string
	MaxParticipants  int
	ParticipantCount int
	Status           RoomStatus
	CreatedAt        time.Time
	ClosedAt         *time.Time
}

func NewRoom(sessionID uuid.UUID, number, capacity int, now time.Time) ChatRoom {
	if capacity <= 0 {
		capacity = DefaultRoomCapacity
	}
	return ChatRoom{
		ID:              uuid.New(),
		SessionID:       sessionID,
		Number:          number,
		Name:            RoomName(number),
		MaxParticipants: capacity,
		Status:          RoomActive,
		CreatedAt:       now,
	}
}

func RoomName(number int) string {
	return fmt.Sprintf("Room %d", number)
}

func (r ChatRoom) HasCapacity() bool {
	return r.Status == RoomActive && r.ParticipantCount < r.MaxParticipants
}

func (r ChatRoom) IsEmpty() bool { return r.ParticipantCount == 0 }

// Occupy takes one seat. It reports false when the room is full or closed.
func (r *ChatRoom) Occupy() bool {
	if !r.HasCapacity() {
		return false
	}
	r.ParticipantCount++
	if r.ParticipantCount >= r.MaxParticipants {
		r.Status = RoomFull
	}
	return true
}

// Release frees one seat and reopens a full room.
func (r *ChatRoom) Release() {
	if r.ParticipantCount > 0 {
		r.ParticipantCount--
	}
	if r.Status == RoomFull && r.ParticipantCount < r.MaxParticipants {
		r.Status = RoomActive
	}
}

func (r *ChatRoom) Close(now time.Time) {
	r.Status = RoomClosed
	r.ClosedAt = &now
}
