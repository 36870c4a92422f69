// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is one posted message. Deletion is soft: DeletedAt is set and the
// message disappears from listings and search.
type ChatMessage struct {
	ID            uuid.UUID
	RoomID        uuid.UUID
	SessionID     uuid.UUID
	ParticipantID uuid.UUID
	SenderName    string
	SenderType    ParticipantType
	Content       string
	Language      string
	SentAt        time.Time
	DeletedAt     *time.Time
}

func (m ChatMessage) IsDeleted() bool { return m.DeletedAt != nil }
