package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	"wagl-backend/contract"
	"wagl-backend/domain"
	"wagl-backend/domain/event"
	"wagl-backend/errors"
	"wagl-backend/infrastructure/search"
	"wagl-backend/infrastructure/storage"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	MaxMessageLength = 2000
	DefaultPageSize  = 50
)

type IMessageService interface {
	Send(ctx context.Context, cmd SendMessageCommand) (domain.ChatMessage, error)
	List(ctx context.Context, q ListMessagesQuery) (MessagePage, error)
	Delete(ctx context.Context, messageID, participantID uuid.UUID) error
	Search(ctx context.Context, roomID uuid.UUID, text string, page int) (SearchResult, error)
}

type Censor interface {
	Censor(content string) (string, []string)
}

type MessageIndex interface {
	Index(msg domain.ChatMessage) error
	Remove(messageID uuid.UUID) error
	RemoveAll(messageIDs []uuid.UUID) error
	Search(ctx context.Context, roomID uuid.UUID, text string, page int) ([]search.Hit, uint64, error)
}

// MessagePage is in chronological order. NextCursor reaches older messages
// and is nil once the history is exhausted.
type MessagePage struct {
	Messages   []domain.ChatMessage
	NextCursor *string
}

type SearchResult struct {
	Messages []domain.ChatMessage
	Total    uint64
}

// MessageService posts, lists and soft deletes room messages.
// Content is censored before it is stored; only human messages go to the relay.
type MessageService struct {
	store     *storage.Store
	censor    Censor
	index     MessageIndex
	publisher contract.IEventPublisher
	relay     contract.IRelayDispatcher
	log       *slog.Logger
	now       Clock
}

func NewMessageService(store *storage.Store, censor Censor, index MessageIndex, publisher contract.IEventPublisher,
	relay contract.IRelayDispatcher, log *slog.Logger, now Clock) *MessageService {
	return &MessageService{store: store, censor: censor, index: index, publisher: publisher, relay: relay, log: log, now: now}
}

func (s *MessageService) Send(ctx context.Context, cmd SendMessageCommand) (domain.ChatMessage, error) {
	content, err := s.prepare(cmd)
	if err != nil {
		logFailure(ctx, s.log, err, "Message rejected", "participant", cmd.ParticipantID)
		return domain.ChatMessage{}, err
	}

	var msg domain.ChatMessage
	err = s.store.Update(ctx, func(tx *storage.Tx) error {
		sender, err := tx.Participant(cmd.ParticipantID)
		if err != nil {
			return err
		}
		if err := checkSender(tx, sender, cmd.RoomID); err != nil {
			return err
		}
		msg = s.newMessage(sender, cmd.RoomID, content)
		return tx.PutMessage(msg)
	})
	if err != nil {
		logFailure(ctx, s.log, err, "Sending message failed", "participant", cmd.ParticipantID, "room", cmd.RoomID)
		return domain.ChatMessage{}, err
	}
	s.deliver(msg)
	return msg, nil
}

// prepare trims and censors the content.
func (s *MessageService) prepare(cmd SendMessageCommand) (string, error) {
	if err := validateCommand(cmd); err != nil {
		return "", err
	}
	content := strings.TrimSpace(cmd.Content)
	if content == "" {
		return "", errors.ErrEmptyMessage
	}
	if n := utf8.RuneCountInString(content); n > MaxMessageLength {
		return "", fmt.Errorf("%w: %d characters, at most %d", errors.ErrMessageTooLong, n, MaxMessageLength)
	}
	censored, words := s.censor.Censor(content)
	if len(words) > 0 {
		s.log.Info("Message censored", "participant", cmd.ParticipantID, "words", len(words))
	}
	return censored, nil
}

// checkSender accepts an active participant speaking in its own room.
// The session moderator speaks in any open room of its session.
func checkSender(tx *storage.Tx, sender domain.Participant, roomID uuid.UUID) error {
	if !sender.IsActive {
		return errors.ErrParticipantInactive
	}
	if sender.RoomID != roomID && sender.Type != domain.SystemModerator {
		return errors.ErrNotInRoom
	}
	room, err := tx.Room(roomID)
	if err != nil {
		return err
	}
	if room.SessionID != sender.SessionID {
		return errors.ErrRoomMismatch
	}
	if room.Status == domain.RoomClosed {
		return errors.ErrRoomClosed
	}
	session, err := tx.Session(room.SessionID)
	if err != nil {
		return err
	}
	if session.IsTerminal() {
		return fmt.Errorf("%w: status %s", errors.ErrSessionNotJoinable, session.Status)
	}
	return nil
}

func (s *MessageService) newMessage(sender domain.Participant, roomID uuid.UUID, content string) domain.ChatMessage {
	return domain.ChatMessage{
		ID:            uuid.New(),
		RoomID:        roomID,
		SessionID:     sender.SessionID,
		ParticipantID: sender.ID,
		SenderName:    sender.DisplayName,
		SenderType:    sender.Type,
		Content:       content,
		Language:      detectLanguage(content),
		SentAt:        s.now(),
	}
}

// detectLanguage returns the ISO 639-1 code, empty when detection is unreliable.
func detectLanguage(content string) string {
	info := whatlanggo.Detect(content)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}

// deliver runs after commit. A failed index write only degrades search.
func (s *MessageService) deliver(msg domain.ChatMessage) {
	if err := s.index.Index(msg); err != nil {
		s.log.Warn("Indexing message failed", "message", msg.ID, "error", err)
	}
	s.publisher.Publish(event.MessageReceived{Message: msg})
	if !msg.SenderType.IsSystem() {
		s.relay.DispatchMessage(msg)
	}
}

// List returns one page of a room history, oldest first.
func (s *MessageService) List(ctx context.Context, q ListMessagesQuery) (MessagePage, error) {
	if err := validateCommand(q); err != nil {
		logFailure(ctx, s.log, err, "Message listing rejected", "room", q.RoomID)
		return MessagePage{}, err
	}
	limit := q.Limit
	if limit == 0 {
		limit = DefaultPageSize
	}
	var page MessagePage
	err := s.store.View(ctx, func(tx *storage.Tx) error {
		if _, err := tx.Room(q.RoomID); err != nil {
			return err
		}
		var err error
		page.Messages, page.NextCursor, err = tx.Messages(q.RoomID, q.Cursor, limit)
		return err
	})
	if err != nil {
		logFailure(ctx, s.log, err, "Listing messages failed", "room", q.RoomID)
		return MessagePage{}, err
	}
	slices.Reverse(page.Messages)
	return page, nil
}

// Delete soft deletes a message. Only its author may delete it; deleting
// twice is a no-op.
func (s *MessageService) Delete(ctx context.Context, messageID, participantID uuid.UUID) error {
	var deleted bool
	err := s.store.Update(ctx, func(tx *storage.Tx) error {
		deleted = false
		msg, err := tx.Message(messageID)
		if err != nil {
			return err
		}
		if msg.ParticipantID != participantID {
			return errors.ErrNotMessageAuthor
		}
		if msg.IsDeleted() {
			return nil
		}
		now := s.now()
		msg.DeletedAt = &now
		deleted = true
		return tx.PutMessage(msg)
	})
	if err != nil {
		logFailure(ctx, s.log, err, "Deleting message failed", "message", messageID)
		return err
	}
	if deleted {
		if err := s.index.Remove(messageID); err != nil {
			s.log.Warn("Unindexing message failed", "message", messageID, "error", err)
		}
	}
	return nil
}

// Search runs a full-text query over a room. Messages deleted after they were
// indexed are dropped from the page.
func (s *MessageService) Search(ctx context.Context, roomID uuid.UUID, text string, page int) (SearchResult, error) {
	if strings.TrimSpace(text) == "" {
		err := fmt.Errorf("%w: empty search", errors.ErrInvalidCommand)
		logFailure(ctx, s.log, err, "Search rejected", "room", roomID)
		return SearchResult{}, err
	}
	hits, total, err := s.index.Search(ctx, roomID, text, page)
	if err != nil {
		logFailure(ctx, s.log, err, "Search failed", "room", roomID)
		return SearchResult{}, err
	}

	result := SearchResult{Total: total}
	err = s.store.View(ctx, func(tx *storage.Tx) error {
		for _, id := range lo.Map(hits, func(h search.Hit, _ int) uuid.UUID { return h.MessageID }) {
			msg, err := tx.Message(id)
			if errors.Is(err, errors.ErrMessageNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if !msg.IsDeleted() {
				result.Messages = append(result.Messages, msg)
			}
		}
		return nil
	})
	if err != nil {
		logFailure(ctx, s.log, err, "Loading search results failed", "room", roomID)
		return SearchResult{}, err
	}
	return result, nil
}
