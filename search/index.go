// Package search maintains a full-text index over stored messages so
// members can search the backlog of rooms they belong to.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/blugelabs/bluge"

	"youth-hub/domain"
)

type IMessageIndex interface {
	Add(msg domain.Message) error
	Search(ctx context.Context, roomID domain.RoomID, terms string, limit int) ([]Hit, error)
	Close() error
}

// Hit is one search result, rebuilt from the stored index fields.
type Hit struct {
	MessageID domain.MessageID `json:"messageId"`
	RoomID    domain.RoomID    `json:"roomId"`
	SenderID  domain.UserID    `json:"senderId"`
	Content   string           `json:"content"`
	CreatedAt time.Time        `json:"createdAt"`
}

type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(path string, log *slog.Logger) (*MessageIndex, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	return &MessageIndex{writer: writer, log: log}, nil
}

func (i *MessageIndex) Close() error {
	return i.writer.Close()
}

// Add indexes one stored message. The document id mirrors the store key
// so re-indexing the same message is an update, not a duplicate.
func (i *MessageIndex) Add(msg domain.Message) error {
	docID := fmt.Sprintf("msg:%s:%d", msg.RoomID, msg.ID)

	doc := bluge.NewDocument(docID)
	doc.AddField(bluge.NewKeywordField("room", string(msg.RoomID)))
	doc.AddField(bluge.NewKeywordField("sender", string(msg.SenderID)).StoreValue())
	doc.AddField(bluge.NewKeywordField("message_id", strconv.FormatUint(uint64(msg.ID), 10)).StoreValue())
	doc.AddField(bluge.NewKeywordField("created_at", msg.CreatedAt.UTC().Format(time.RFC3339Nano)).StoreValue())
	doc.AddField(bluge.NewTextField("content", msg.Content).StoreValue())

	if err := i.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("failed to index message %s: %w", docID, err)
	}
	return nil
}

// Search matches terms against message content, constrained to a single
// room. Authorization is the caller's job; the index never checks it.
func (i *MessageIndex) Search(ctx context.Context, roomID domain.RoomID, terms string, limit int) ([]Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open index reader: %w", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Failed to close index reader", "error", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(string(roomID)).SetField("room")).
		AddMust(bluge.NewMatchQuery(terms).SetField("content"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	var hits []Hit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate search results: %w", err)
		}
		if match == nil {
			break
		}

		hit := Hit{RoomID: roomID}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "message_id":
				if id, err := strconv.ParseUint(string(value), 10, 64); err == nil {
					hit.MessageID = domain.MessageID(id)
				}
			case "sender":
				hit.SenderID = domain.UserID(value)
			case "content":
				hit.Content = string(value)
			case "created_at":
				if at, err := time.Parse(time.RFC3339Nano, string(value)); err == nil {
					hit.CreatedAt = at
				}
			}
			return true
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load stored fields: %w", err)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
