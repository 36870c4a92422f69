package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	sessionPrefix     = "session:"
	roomPrefix        = "room:"
	participantPrefix = "participant:"
	invitePrefix      = "invite:"
	messagePrefix     = "msg:"
)

func sessionKey(id uuid.UUID) string { return sessionPrefix + id.String() }

func roomKey(id uuid.UUID) string { return roomPrefix + id.String() }

// Zero-padded so rooms iterate in creation order.
func sessionRoomKey(sessionID uuid.UUID, number int) string {
	return fmt.Sprintf("idx:session-room:%s:%06d", sessionID, number)
}

func sessionRoomPrefix(sessionID uuid.UUID) string {
	return fmt.Sprintf("idx:session-room:%s:", sessionID)
}

func participantKey(id uuid.UUID) string { return participantPrefix + id.String() }

func roomParticipantKey(roomID, participantID uuid.UUID) string {
	return fmt.Sprintf("idx:room-participant:%s:%s", roomID, participantID)
}

func roomParticipantPrefix(roomID uuid.UUID) string {
	return fmt.Sprintf("idx:room-participant:%s:", roomID)
}

func sessionParticipantKey(sessionID, participantID uuid.UUID) string {
	return fmt.Sprintf("idx:session-participant:%s:%s", sessionID, participantID)
}

func sessionParticipantPrefix(sessionID uuid.UUID) string {
	return fmt.Sprintf("idx:session-participant:%s:", sessionID)
}

func connectionKey(handle string) string { return "idx:connection:" + handle }

func userSessionKey(sessionID uuid.UUID, userID string) string {
	return fmt.Sprintf("idx:user-session:%s:%s", sessionID, userID)
}

func moderatorKey(sessionID uuid.UUID) string { return "idx:moderator:" + sessionID.String() }

func botKey(roomID uuid.UUID) string { return "idx:bot:" + roomID.String() }

func inviteKey(token string) string { return invitePrefix + token }

func sessionInviteKey(sessionID uuid.UUID, token string) string {
	return fmt.Sprintf("idx:session-invite:%s:%s", sessionID, token)
}

func sessionInvitePrefix(sessionID uuid.UUID) string {
	return fmt.Sprintf("idx:session-invite:%s:", sessionID)
}

// messageKey is formatted as "msg:{room_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using the UUID as a tie breaker if two messages
//     arrive at the same nanosecond.
func messageKey(roomID uuid.UUID, at time.Time, id uuid.UUID) string {
	return fmt.Sprintf("msg:%s:%019d:%s", roomID, at.UnixNano(), id)
}

func roomMessagePrefix(roomID uuid.UUID) string {
	return fmt.Sprintf("msg:%s:", roomID)
}

func messageIndexKey(id uuid.UUID) string { return "idx:message:" + id.String() }
