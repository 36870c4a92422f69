package storage

import (
	"fmt"
	"strings"

	"wagl-backend/domain"

	json "github.com/goccy/go-json"
)

// Entry is a human readable view of one raw key/value pair.
type Entry struct {
	Key    string
	Kind   string
	At     string
	Detail string
}

const inspectTimeLayout = "2006-01-02 15:04:05"

// Describe decodes a raw Badger entry for the debug inspector and the
// inspect command. Unknown or undecodable values are reported, never fatal.
func Describe(key string, val []byte) Entry {
	entry := Entry{Key: key}
	var err error
	switch {
	case strings.HasPrefix(key, "idx:"):
		entry.Kind = "INDEX"
		entry.Detail = string(val)
	case strings.HasPrefix(key, sessionPrefix):
		entry.Kind = "SESSION"
		err = describe(val, &entry, toSession, func(s domain.ChatSession) (string, string) {
			return s.CreatedAt.Format(inspectTimeLayout),
				fmt.Sprintf("%s [%s] %d/room, starts %s", s.Name, s.Status, s.MaxParticipantsPerRoom,
					s.ScheduledStart.Format(inspectTimeLayout))
		})
	case strings.HasPrefix(key, roomPrefix):
		entry.Kind = "ROOM"
		err = describe(val, &entry, toRoom, func(r domain.ChatRoom) (string, string) {
			return r.CreatedAt.Format(inspectTimeLayout),
				fmt.Sprintf("%s [%s] %d/%d", r.Name, r.Status, r.ParticipantCount, r.MaxParticipants)
		})
	case strings.HasPrefix(key, participantPrefix):
		entry.Kind = "PARTICIPANT"
		err = describe(val, &entry, toParticipant, func(p domain.Participant) (string, string) {
			state := "left"
			if p.IsActive {
				state = "active"
			}
			return p.JoinedAt.Format(inspectTimeLayout),
				fmt.Sprintf("%s (%s, %s) room %s", p.DisplayName, p.Type, state, p.RoomID)
		})
	case strings.HasPrefix(key, invitePrefix):
		entry.Kind = "INVITE"
		err = describe(val, &entry, toInvite, func(i domain.SessionInvite) (string, string) {
			state := "open"
			if i.IsConsumed {
				state = "consumed"
			}
			return i.CreatedAt.Format(inspectTimeLayout),
				fmt.Sprintf("session %s, %s, expires %s", i.SessionID, state, i.ExpiresAt.Format(inspectTimeLayout))
		})
	case strings.HasPrefix(key, messagePrefix):
		entry.Kind = "MESSAGE"
		err = describe(val, &entry, toMessage, func(m domain.ChatMessage) (string, string) {
			detail := fmt.Sprintf("%s: %s", m.SenderName, m.Content)
			if m.DeletedAt != nil {
				detail += " (deleted)"
			}
			return m.SentAt.Format(inspectTimeLayout), detail
		})
	default:
		entry.Kind = "UNKNOWN"
		entry.Detail = fmt.Sprintf("%d bytes", len(val))
	}
	if err != nil {
		entry.Detail = "Error: unmarshal failed"
	}
	return entry
}

func describe[D, T any](val []byte, entry *Entry, convert func(D) T, render func(T) (string, string)) error {
	var d D
	if err := json.Unmarshal(val, &d); err != nil {
		return err
	}
	entry.At, entry.Detail = render(convert(d))
	return nil
}
