package storage

import (
	"fmt"
	"time"

	"wagl-backend/domain"
	"wagl-backend/errors"

	"github.com/google/uuid"
)

type diskParticipant struct {
	ID               uuid.UUID  `json:"id"`
	RoomID           uuid.UUID  `json:"room_id"`
	SessionID        uuid.UUID  `json:"session_id"`
	UserID           *string    `json:"user_id,omitempty"`
	DisplayName      string     `json:"display_name"`
	ConnectionHandle *string    `json:"connection_handle,omitempty"`
	Type             int        `json:"type"`
	IsActive         bool       `json:"is_active"`
	JoinedAt         time.Time  `json:"joined_at"`
	LeftAt           *time.Time `json:"left_at,omitempty"`
}

func (tx *Tx) Participant(id uuid.UUID) (domain.Participant, error) {
	var p diskParticipant
	if err := tx.get(participantKey(id), &p); err != nil {
		if isNotFound(err) {
			return domain.Participant{}, errors.ErrParticipantNotFound
		}
		return domain.Participant{}, fmt.Errorf("get participant %s: %w", id, err)
	}
	return toParticipant(p), nil
}

// PutParticipant stores the participant and keeps its secondary indexes in
// sync, including the connection handle index when the handle changed.
func (tx *Tx) PutParticipant(p domain.Participant) error {
	var previous diskParticipant
	err := tx.get(participantKey(p.ID), &previous)
	switch {
	case err == nil:
		if previous.ConnectionHandle != nil && (p.ConnectionHandle == nil || *p.ConnectionHandle != *previous.ConnectionHandle) {
			if err := tx.delete(connectionKey(*previous.ConnectionHandle)); err != nil {
				return err
			}
		}
	case !isNotFound(err):
		return fmt.Errorf("get participant %s: %w", p.ID, err)
	}

	if err := tx.put(participantKey(p.ID), fromParticipant(p)); err != nil {
		return err
	}
	if err := tx.putString(roomParticipantKey(p.RoomID, p.ID), ""); err != nil {
		return err
	}
	if err := tx.putString(sessionParticipantKey(p.SessionID, p.ID), ""); err != nil {
		return err
	}
	if p.ConnectionHandle != nil {
		if err := tx.putString(connectionKey(*p.ConnectionHandle), p.ID.String()); err != nil {
			return err
		}
	}
	if p.UserID != nil {
		return tx.putString(userSessionKey(p.SessionID, *p.UserID), p.ID.String())
	}
	return nil
}

func (tx *Tx) DeleteParticipant(p domain.Participant) error {
	keys := []string{
		roomParticipantKey(p.RoomID, p.ID),
		sessionParticipantKey(p.SessionID, p.ID),
	}
	if p.ConnectionHandle != nil {
		keys = append(keys, connectionKey(*p.ConnectionHandle))
	}
	if p.UserID != nil {
		keys = append(keys, userSessionKey(p.SessionID, *p.UserID))
	}
	keys = append(keys, participantKey(p.ID))
	for _, k := range keys {
		if err := tx.delete(k); err != nil {
			return err
		}
	}
	return nil
}

func (tx *Tx) ParticipantByConnection(handle string) (domain.Participant, error) {
	return tx.participantByIndex(connectionKey(handle))
}

// UserParticipant returns the latest participant row of a registered user in a session.
func (tx *Tx) UserParticipant(sessionID uuid.UUID, userID string) (domain.Participant, error) {
	return tx.participantByIndex(userSessionKey(sessionID, userID))
}

func (tx *Tx) Moderator(sessionID uuid.UUID) (domain.Participant, error) {
	return tx.participantByIndex(moderatorKey(sessionID))
}

func (tx *Tx) SetModerator(p domain.Participant) error {
	if err := tx.PutParticipant(p); err != nil {
		return err
	}
	return tx.putString(moderatorKey(p.SessionID), p.ID.String())
}

func (tx *Tx) Bot(roomID uuid.UUID) (domain.Participant, error) {
	return tx.participantByIndex(botKey(roomID))
}

func (tx *Tx) SetBot(p domain.Participant) error {
	if err := tx.PutParticipant(p); err != nil {
		return err
	}
	return tx.putString(botKey(p.RoomID), p.ID.String())
}

// DeleteBot removes a bot row and releases the per-room singleton slot.
func (tx *Tx) DeleteBot(p domain.Participant) error {
	if err := tx.delete(botKey(p.RoomID)); err != nil {
		return err
	}
	return tx.DeleteParticipant(p)
}

func (tx *Tx) ParticipantsByRoom(roomID uuid.UUID) ([]domain.Participant, error) {
	return tx.participantsByPrefix(roomParticipantPrefix(roomID))
}

func (tx *Tx) ParticipantsBySession(sessionID uuid.UUID) ([]domain.Participant, error) {
	return tx.participantsByPrefix(sessionParticipantPrefix(sessionID))
}

func (tx *Tx) participantByIndex(key string) (domain.Participant, error) {
	raw, err := tx.getString(key)
	if err != nil {
		if isNotFound(err) {
			return domain.Participant{}, errors.ErrParticipantNotFound
		}
		return domain.Participant{}, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("corrupted index %s: %w", key, err)
	}
	return tx.Participant(id)
}

func (tx *Tx) participantsByPrefix(prefix string) ([]domain.Participant, error) {
	entries, err := tx.scan(prefix, false, "", 0)
	if err != nil {
		return nil, err
	}
	participants := make([]domain.Participant, 0, len(entries))
	for _, e := range entries {
		id, err := uuid.Parse(e.key[len(prefix):])
		if err != nil {
			return nil, fmt.Errorf("corrupted participant index %s: %w", e.key, err)
		}
		p, err := tx.Participant(id)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, nil
}

func fromParticipant(p domain.Participant) diskParticipant {
	return diskParticipant{
		ID:               p.ID,
		RoomID:           p.RoomID,
		SessionID:        p.SessionID,
		UserID:           p.UserID,
		DisplayName:      p.DisplayName,
		ConnectionHandle: p.ConnectionHandle,
		Type:             int(p.Type),
		IsActive:         p.IsActive,
		JoinedAt:         p.JoinedAt,
		LeftAt:           p.LeftAt,
	}
}

func toParticipant(p diskParticipant) domain.Participant {
	return domain.Participant{
		ID:               p.ID,
		RoomID:           p.RoomID,
		SessionID:        p.SessionID,
		UserID:           p.UserID,
		DisplayName:      p.DisplayName,
		ConnectionHandle: p.ConnectionHandle,
		Type:             domain.ParticipantType(p.Type),
		IsActive:         p.IsActive,
		JoinedAt:         p.JoinedAt,
		LeftAt:           p.LeftAt,
	}
}
