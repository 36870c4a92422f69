package storage

import (
	"fmt"
	"time"

	"wagl-backend/domain"
	"wagl-backend/errors"

	"github.com/google/uuid"
)

type diskSession struct {
	ID                     uuid.UUID  `json:"id"`
	Name                   string     `json:"name"`
	ScheduledStart         time.Time  `json:"scheduled_start"`
	DurationNanos          int64      `json:"duration_ns"`
	MaxParticipants        int        `json:"max_participants"`
	MaxParticipantsPerRoom int        `json:"max_participants_per_room"`
	Status                 string     `json:"status"`
	CreatedByUserID        string     `json:"created_by_user_id"`
	CreatedAt              time.Time  `json:"created_at"`
	StartedAt              *time.Time `json:"started_at,omitempty"`
	EndedAt                *time.Time `json:"ended_at,omitempty"`
	RoomSeq                int        `json:"room_seq"`
}

// Session loads a session. RoomSeq is the number of rooms ever created for it.
func (tx *Tx) Session(id uuid.UUID) (domain.ChatSession, error) {
	s, err := tx.diskSession(id)
	if err != nil {
		return domain.ChatSession{}, err
	}
	return toSession(s), nil
}

func (tx *Tx) diskSession(id uuid.UUID) (diskSession, error) {
	var s diskSession
	if err := tx.get(sessionKey(id), &s); err != nil {
		if isNotFound(err) {
			return diskSession{}, errors.ErrSessionNotFound
		}
		return diskSession{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return s, nil
}

// PutSession stores the session, keeping the room sequence already recorded.
func (tx *Tx) PutSession(session domain.ChatSession) error {
	seq := 0
	if existing, err := tx.diskSession(session.ID); err == nil {
		seq = existing.RoomSeq
	} else if !errors.Is(err, errors.ErrSessionNotFound) {
		return err
	}
	return tx.put(sessionKey(session.ID), fromSession(session, seq))
}

// NextRoomNumber reserves the next room number of a session. Reading and
// rewriting the session record makes concurrent room creation conflict.
func (tx *Tx) NextRoomNumber(sessionID uuid.UUID) (int, error) {
	s, err := tx.diskSession(sessionID)
	if err != nil {
		return 0, err
	}
	s.RoomSeq++
	if err := tx.put(sessionKey(sessionID), s); err != nil {
		return 0, err
	}
	return s.RoomSeq, nil
}

func (tx *Tx) Sessions() ([]domain.ChatSession, error) {
	entries, err := tx.scan(sessionPrefix, false, "", 0)
	if err != nil {
		return nil, err
	}
	disks, err := decode[diskSession](entries)
	if err != nil {
		return nil, err
	}
	sessions := make([]domain.ChatSession, 0, len(disks))
	for _, s := range disks {
		sessions = append(sessions, toSession(s))
	}
	return sessions, nil
}

// DeleteSession removes a session with its rooms, participants, invites and
// messages. It returns the ids of the deleted messages.
func (tx *Tx) DeleteSession(id uuid.UUID) ([]uuid.UUID, error) {
	rooms, err := tx.RoomsBySession(id)
	if err != nil {
		return nil, err
	}
	var messageIDs []uuid.UUID
	for _, room := range rooms {
		ids, err := tx.DeleteRoomMessages(room.ID)
		if err != nil {
			return nil, err
		}
		messageIDs = append(messageIDs, ids...)
		if err := tx.DeleteRoom(room); err != nil {
			return nil, err
		}
	}
	participants, err := tx.ParticipantsBySession(id)
	if err != nil {
		return nil, err
	}
	for _, p := range participants {
		if err := tx.DeleteParticipant(p); err != nil {
			return nil, err
		}
	}
	invites, err := tx.InvitesBySession(id)
	if err != nil {
		return nil, err
	}
	for _, inv := range invites {
		if err := tx.DeleteInvite(inv); err != nil {
			return nil, err
		}
	}
	if err := tx.delete(moderatorKey(id)); err != nil {
		return nil, err
	}
	return messageIDs, tx.delete(sessionKey(id))
}

func fromSession(s domain.ChatSession, roomSeq int) diskSession {
	return diskSession{
		ID:                     s.ID,
		Name:                   s.Name,
		ScheduledStart:         s.ScheduledStart,
		DurationNanos:          int64(s.Duration),
		MaxParticipants:        s.MaxParticipants,
		MaxParticipantsPerRoom: s.MaxParticipantsPerRoom,
		Status:                 string(s.Status),
		CreatedByUserID:        s.CreatedByUserID,
		CreatedAt:              s.CreatedAt,
		StartedAt:              s.StartedAt,
		EndedAt:                s.EndedAt,
		RoomSeq:                roomSeq,
	}
}

func toSession(s diskSession) domain.ChatSession {
	return domain.ChatSession{
		ID:                     s.ID,
		Name:                   s.Name,
		ScheduledStart:         s.ScheduledStart,
		Duration:               time.Duration(s.DurationNanos),
		MaxParticipants:        s.MaxParticipants,
		MaxParticipantsPerRoom: s.MaxParticipantsPerRoom,
		Status:                 domain.SessionStatus(s.Status),
		CreatedByUserID:        s.CreatedByUserID,
		CreatedAt:              s.CreatedAt,
		StartedAt:              s.StartedAt,
		EndedAt:                s.EndedAt,
	}
}
