package search

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"wagl-backend/domain"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func setupIndex(t *testing.T, pageSize int) *MessageIndex {
	t.Helper()
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return NewMessageIndex(writer, slog.Default(), pageSize)
}

func message(roomID uuid.UUID, content string) domain.ChatMessage {
	return domain.ChatMessage{
		ID:        uuid.New(),
		RoomID:    roomID,
		SessionID: uuid.New(),
		Content:   content,
		SentAt:    time.Now().UTC(),
	}
}

func Test_Search_Is_Scoped_To_Room_And_Case_Insensitive(t *testing.T) {
	req := require.New(t)
	index := setupIndex(t, 10)
	roomID, otherRoom := uuid.New(), uuid.New()

	// Given messages in two rooms
	match := message(roomID, "The Database migration is done")
	req.NoError(index.Index(match))
	req.NoError(index.Index(message(roomID, "lunch at noon")))
	req.NoError(index.Index(message(otherRoom, "database backup failed")))

	// When searching the first room
	hits, total, err := index.Search(context.Background(), roomID, "DATABASE", 0)

	// Then only its matching message is returned
	req.NoError(err)
	req.Equal(uint64(1), total)
	req.Len(hits, 1)
	req.Equal(match.ID, hits[0].MessageID)
}

func Test_Search_Pages(t *testing.T) {
	req := require.New(t)
	index := setupIndex(t, 2)
	roomID := uuid.New()

	// Given five matching messages
	for range 5 {
		req.NoError(index.Index(message(roomID, "standup notes")))
	}

	// When reading every page
	var seen []uuid.UUID
	for page := 0; page < 3; page++ {
		hits, total, err := index.Search(context.Background(), roomID, "standup", page)
		req.NoError(err)
		req.Equal(uint64(5), total)
		seen = append(seen, lo.Map(hits, func(h Hit, _ int) uuid.UUID { return h.MessageID })...)
	}

	// Then each message shows up once
	req.Len(seen, 5)
	req.Len(lo.Uniq(seen), 5)
}

func Test_Removed_Message_Is_Not_Found(t *testing.T) {
	req := require.New(t)
	index := setupIndex(t, 10)
	roomID := uuid.New()
	msg := message(roomID, "secret plan")
	req.NoError(index.Index(msg))

	// When the message is removed
	req.NoError(index.Remove(msg.ID))

	// Then it no longer matches
	hits, total, err := index.Search(context.Background(), roomID, "secret", 0)
	req.NoError(err)
	req.Zero(total)
	req.Empty(hits)
}

func Test_RemoveAll_Drops_Only_Listed_Messages(t *testing.T) {
	req := require.New(t)
	index := setupIndex(t, 10)
	roomID := uuid.New()
	first, second := message(roomID, "release notes"), message(roomID, "release party")
	kept := message(roomID, "release date")
	for _, m := range []domain.ChatMessage{first, second, kept} {
		req.NoError(index.Index(m))
	}

	// When two of them are removed in one batch
	req.NoError(index.RemoveAll([]uuid.UUID{first.ID, second.ID}))
	req.NoError(index.RemoveAll(nil))

	// Then only the third still matches
	hits, total, err := index.Search(context.Background(), roomID, "release", 0)
	req.NoError(err)
	req.Equal(uint64(1), total)
	req.Equal(kept.ID, hits[0].MessageID)
}
