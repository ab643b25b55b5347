package search

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"youth-hub/domain"
)

func openTestIndex(t *testing.T) *MessageIndex {
	t.Helper()
	idx, err := NewMessageIndex(t.TempDir(), logs.GetLoggerFromLevel(slog.LevelDebug))
	require.New(t).NoError(err)
	t.Cleanup(func() {
		require.New(t).NoError(idx.Close())
	})
	return idx
}

func Test_Search_Matches_Only_Within_The_Requested_Room(t *testing.T) {
	req := require.New(t)
	idx := openTestIndex(t)

	// Given the same wording indexed in two different rooms
	now := time.Now().UTC()
	req.NoError(idx.Add(domain.Message{ID: 1, RoomID: "room-a", SenderID: "alice", Content: "pizza night on friday", CreatedAt: now}))
	req.NoError(idx.Add(domain.Message{ID: 2, RoomID: "room-b", SenderID: "bob", Content: "pizza for everyone", CreatedAt: now}))

	// When searching room-a
	hits, err := idx.Search(context.Background(), "room-a", "pizza", 10)

	// Then only room-a content comes back
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal(domain.MessageID(1), hits[0].MessageID)
	req.Equal(domain.UserID("alice"), hits[0].SenderID)
	req.Equal("pizza night on friday", hits[0].Content)
}

func Test_Search_Returns_Nothing_For_Unmatched_Terms(t *testing.T) {
	req := require.New(t)
	idx := openTestIndex(t)

	req.NoError(idx.Add(domain.Message{ID: 1, RoomID: "room-a", SenderID: "alice", Content: "see you at the retreat", CreatedAt: time.Now().UTC()}))

	hits, err := idx.Search(context.Background(), "room-a", "pizza", 10)
	req.NoError(err)
	req.Empty(hits)
}

func Test_Reindexing_The_Same_Message_Does_Not_Duplicate_It(t *testing.T) {
	req := require.New(t)
	idx := openTestIndex(t)

	// Given a message indexed twice under the same store key
	msg := domain.Message{ID: 7, RoomID: "room-a", SenderID: "alice", Content: "carpool to the concert", CreatedAt: time.Now().UTC()}
	req.NoError(idx.Add(msg))
	req.NoError(idx.Add(msg))

	// When searching for it
	hits, err := idx.Search(context.Background(), "room-a", "carpool", 10)

	// Then a single hit remains
	req.NoError(err)
	req.Len(hits, 1)
}
