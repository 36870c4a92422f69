package storage

import (
	"fmt"
	"time"

	"wagl-backend/domain"
	"wagl-backend/errors"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

type diskMessage struct {
	ID            uuid.UUID  `json:"id"`
	RoomID        uuid.UUID  `json:"room_id"`
	SessionID     uuid.UUID  `json:"session_id"`
	ParticipantID uuid.UUID  `json:"participant_id"`
	SenderName    string     `json:"sender_name"`
	SenderType    int        `json:"sender_type"`
	Content       string     `json:"content"`
	Language      string     `json:"language,omitempty"`
	SentAt        time.Time  `json:"sent_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

func (tx *Tx) PutMessage(m domain.ChatMessage) error {
	key := messageKey(m.RoomID, m.SentAt, m.ID)
	if err := tx.put(key, fromMessage(m)); err != nil {
		return err
	}
	return tx.putString(messageIndexKey(m.ID), key)
}

func (tx *Tx) Message(id uuid.UUID) (domain.ChatMessage, error) {
	key, err := tx.getString(messageIndexKey(id))
	if err != nil {
		if isNotFound(err) {
			return domain.ChatMessage{}, errors.ErrMessageNotFound
		}
		return domain.ChatMessage{}, err
	}
	var m diskMessage
	if err := tx.get(key, &m); err != nil {
		if isNotFound(err) {
			return domain.ChatMessage{}, errors.ErrMessageNotFound
		}
		return domain.ChatMessage{}, fmt.Errorf("get message %s: %w", id, err)
	}
	return toMessage(m), nil
}

// Messages walks a room history from the newest message backwards.
// The returned cursor is the key suffix of the last message read and is nil
// once the history is exhausted. Soft deleted messages are skipped.
func (tx *Tx) Messages(roomID uuid.UUID, cursor *string, limit int) ([]domain.ChatMessage, *string, error) {
	prefixStr := roomMessagePrefix(roomID)
	prefix := []byte(prefixStr)
	options := badger.DefaultIteratorOptions
	options.Reverse = true
	options.Prefix = prefix
	it := tx.txn.NewIterator(options)
	defer it.Close()

	var seekKey []byte
	switch cursor {
	case nil:
		seekKey = append([]byte(prefixStr), []byte("9999999999999999999")...)
	default:
		seekKey = append([]byte(prefixStr), []byte(*cursor)...)
	}

	it.Seek(seekKey)
	if cursor != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()) == string(seekKey) {
		it.Next()
	}

	var messages []domain.ChatMessage
	var lastKey string
	exhausted := true
	for ; it.ValidForPrefix(prefix); it.Next() {
		if limit > 0 && len(messages) == limit {
			exhausted = false
			break
		}
		item := it.Item()
		lastKey = string(item.Key()[len(prefix):])
		var m diskMessage
		err := item.Value(func(value []byte) error {
			return json.Unmarshal(value, &m)
		})
		if err != nil {
			return nil, nil, err
		}
		if m.DeletedAt != nil {
			continue
		}
		messages = append(messages, toMessage(m))
	}
	if exhausted {
		return messages, nil, nil
	}
	return messages, &lastKey, nil
}

// DeleteRoomMessages removes the history of a room and returns the ids of the
// deleted messages.
func (tx *Tx) DeleteRoomMessages(roomID uuid.UUID) ([]uuid.UUID, error) {
	entries, err := tx.scan(roomMessagePrefix(roomID), false, "", 0)
	if err != nil {
		return nil, err
	}
	disks, err := decode[diskMessage](entries)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(disks))
	for i, m := range disks {
		if err := tx.delete(messageIndexKey(m.ID)); err != nil {
			return nil, err
		}
		if err := tx.delete(entries[i].key); err != nil {
			return nil, err
		}
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func fromMessage(m domain.ChatMessage) diskMessage {
	return diskMessage{
		ID:            m.ID,
		RoomID:        m.RoomID,
		SessionID:     m.SessionID,
		ParticipantID: m.ParticipantID,
		SenderName:    m.SenderName,
		SenderType:    int(m.SenderType),
		Content:       m.Content,
		Language:      m.Language,
		SentAt:        m.SentAt,
		DeletedAt:     m.DeletedAt,
	}
}

func toMessage(m diskMessage) domain.ChatMessage {
	return domain.ChatMessage{
		ID:            m.ID,
		RoomID:        m.RoomID,
		SessionID:     m.SessionID,
		ParticipantID: m.ParticipantID,
		SenderName:    m.SenderName,
		SenderType:    domain.ParticipantType(m.SenderType),
		Content:       m.Content,
		Language:      m.Language,
		SentAt:        m.SentAt,
		DeletedAt:     m.DeletedAt,
	}
}
