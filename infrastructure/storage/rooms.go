package storage

import (
	"fmt"
	"time"

	"wagl-backend/domain"
	"wagl-backend/errors"

	"github.com/google/uuid"
)

type diskRoom struct {
	ID               uuid.UUID  `json:"id"`
	SessionID        uuid.UUID  `json:"session_id"`
	Number           int        `json:"number"`
	Name             string     `json:"name"`
	MaxParticipants  int        `json:"max_participants"`
	ParticipantCount int        `json:"participant_count"`
	Status           string     `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	ClosedAt         *time.Time `json:"closed_at,omitempty"`
}

func (tx *Tx) Room(id uuid.UUID) (domain.ChatRoom, error) {
	var r diskRoom
	if err := tx.get(roomKey(id), &r); err != nil {
		if isNotFound(err) {
			return domain.ChatRoom{}, errors.ErrRoomNotFound
		}
		return domain.ChatRoom{}, fmt.Errorf("get room %s: %w", id, err)
	}
	return toRoom(r), nil
}

func (tx *Tx) PutRoom(room domain.ChatRoom) error {
	if err := tx.put(roomKey(room.ID), fromRoom(room)); err != nil {
		return err
	}
	return tx.putString(sessionRoomKey(room.SessionID, room.Number), room.ID.String())
}

// RoomsBySession returns the rooms of a session ordered by room number.
// Each room record is read through the transaction, so a concurrent
// change to any of them makes the caller's commit conflict.
func (tx *Tx) RoomsBySession(sessionID uuid.UUID) ([]domain.ChatRoom, error) {
	entries, err := tx.scan(sessionRoomPrefix(sessionID), false, "", 0)
	if err != nil {
		return nil, err
	}
	rooms := make([]domain.ChatRoom, 0, len(entries))
	for _, e := range entries {
		id, err := uuid.Parse(string(e.value))
		if err != nil {
			return nil, fmt.Errorf("corrupted room index %s: %w", e.key, err)
		}
		room, err := tx.Room(id)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (tx *Tx) DeleteRoom(room domain.ChatRoom) error {
	if err := tx.delete(sessionRoomKey(room.SessionID, room.Number)); err != nil {
		return err
	}
	if err := tx.delete(botKey(room.ID)); err != nil {
		return err
	}
	return tx.delete(roomKey(room.ID))
}

func fromRoom(r domain.ChatRoom) diskRoom {
	return diskRoom{
		ID:               r.ID,
		SessionID:        r.SessionID,
		Number:           r.Number,
		Name:             r.Name,
		MaxParticipants:  r.MaxParticipants,
		ParticipantCount: r.ParticipantCount,
		Status:           string(r.Status),
		CreatedAt:        r.CreatedAt,
		ClosedAt:         r.ClosedAt,
	}
}

func toRoom(r diskRoom) domain.ChatRoom {
	return domain.ChatRoom{
		ID:               r.ID,
		SessionID:        r.SessionID,
		Number:           r.Number,
		Name:             r.Name,
		MaxParticipants:  r.MaxParticipants,
		ParticipantCount: r.ParticipantCount,
		Status:           domain.RoomStatus(r.Status),
		CreatedAt:        r.CreatedAt,
		ClosedAt:         r.ClosedAt,
	}
}
