// Package search keeps a full-text index of chat messages in Bluge.
// Badger stays the source of truth: the index only maps words to message ids.
package search

import (
	"context"
	"fmt"
	"log/slog"

	"wagl-backend/domain"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

const (
	fieldContent = "content"
	fieldRoom    = "room_id"
	fieldSession = "session_id"

	DefaultPageSize = 20
)

type Hit struct {
	MessageID uuid.UUID
	Score     float64
}

type MessageIndex struct {
	writer   *bluge.Writer
	log      *slog.Logger
	pageSize int
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger, pageSize int) *MessageIndex {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &MessageIndex{writer: writer, log: log, pageSize: pageSize}
}

// Index adds or replaces the document of a message.
func (i *MessageIndex) Index(msg domain.ChatMessage) error {
	doc := bluge.NewDocument(msg.ID.String()).
		AddField(bluge.NewTextField(fieldContent, msg.Content)).
		AddField(bluge.NewKeywordField(fieldRoom, msg.RoomID.String())).
		AddField(bluge.NewKeywordField(fieldSession, msg.SessionID.String()))
	if err := i.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("index message %s: %w", msg.ID, err)
	}
	return nil
}

func (i *MessageIndex) Remove(messageID uuid.UUID) error {
	if err := i.writer.Delete(bluge.Identifier(messageID.String())); err != nil {
		return fmt.Errorf("unindex message %s: %w", messageID, err)
	}
	return nil
}

// RemoveAll drops the documents of the given messages in one batch.
func (i *MessageIndex) RemoveAll(messageIDs []uuid.UUID) error {
	if len(messageIDs) == 0 {
		return nil
	}
	batch := bluge.NewBatch()
	for _, id := range messageIDs {
		batch.Delete(bluge.Identifier(id.String()))
	}
	if err := i.writer.Batch(batch); err != nil {
		return fmt.Errorf("unindex %d messages: %w", len(messageIDs), err)
	}
	return nil
}

// Search returns one page of the messages of a room matching text, best match
// first, and the total number of matches. Pages start at 0.
func (i *MessageIndex) Search(ctx context.Context, roomID uuid.UUID, text string, page int) ([]Hit, uint64, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, 0, fmt.Errorf("open index reader: %w", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Closing index reader failed", "error", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(text).SetField(fieldContent)).
		AddMust(bluge.NewTermQuery(roomID.String()).SetField(fieldRoom))
	request := bluge.NewTopNSearch(i.pageSize, query).
		SetFrom(max(page, 0) * i.pageSize).
		WithStandardAggregations()

	matches, err := reader.Search(ctx, request)
	if err != nil {
		return nil, 0, fmt.Errorf("search room %s: %w", roomID, err)
	}

	var hits []Hit
	match, err := matches.Next()
	for err == nil && match != nil {
		hit := Hit{Score: match.Score}
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			if field != "_id" {
				return true
			}
			hit.MessageID, err = uuid.ParseBytes(value)
			return false
		})
		if visitErr != nil {
			return nil, 0, visitErr
		}
		if err != nil {
			return nil, 0, fmt.Errorf("corrupted document id: %w", err)
		}
		hits = append(hits, hit)
		match, err = matches.Next()
	}
	if err != nil {
		return nil, 0, fmt.Errorf("iterate matches: %w", err)
	}
	return hits, matches.Aggregations().Count(), nil
}
