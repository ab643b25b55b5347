//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"youth-hub/domain"
)

type IMessageRepository interface {
	InsertMessage(roomID domain.RoomID, senderID domain.UserID, content, lang string) (domain.Message, error)
	GetMessages(roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error)
	LastMessage(roomID domain.RoomID) (*domain.Message, error)
}

type MessageRepository struct {
	db            *badger.DB
	seq           *badger.Sequence
	log           *slog.Logger
	limitMessages *int
}

// NewMessageRepository reserves the message id sequence. Ids are assigned
// by the store at insert time and are the single source of truth for
// message ordering within a room.
func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte("seq:message"), 128)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{db: db, seq: seq, log: log, limitMessages: limitMessages}, nil
}

// Close releases the unused tail of the id sequence.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

type diskMessage struct {
	ID      uint64 `json:"id"`
	Room    string `json:"room"`
	Author  string `json:"author"`
	Content string `json:"content"`
	Lang    string `json:"lang"`
	At      int64  `json:"at"`
}

// InsertMessage persists a message in BadgerDB and assigns its canonical
// id and timestamp. The key is formatted as "msg:{room_id}:{id_padded}":
// 20-digit zero padding keeps lexicographical key order equal to id order,
// so a prefix scan returns messages in store order.
func (m *MessageRepository) InsertMessage(roomID domain.RoomID, senderID domain.UserID, content, lang string) (domain.Message, error) {
	n, err := m.seq.Next()
	if err != nil {
		return domain.Message{}, err
	}
	// Sequence values start at zero; ids start at one.
	id := n + 1

	message := domain.Message{
		ID:        domain.MessageID(id),
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		Lang:      lang,
		CreatedAt: time.Now().UTC(),
	}

	key := fmt.Sprintf("msg:%s:%020d", roomID, id)
	bytes, err := json.Marshal(fromMessage(message))
	if err != nil {
		return domain.Message{}, err
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

// GetMessages retrieves one page of a room's history, newest first, using
// a reverse prefix scan. Thanks to the padded id in the key, messages are
// naturally sorted in store order. It stops once the configured
// limitMessages is reached and hands back a cursor for the next page.
// A short or empty page means the history is exhausted, and the cursor
// is nil so clients can detect the last page.
func (m *MessageRepository) GetMessages(roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	var byteMessages [][]byte
	var lastKey string

	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", roomID)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible key, then walk backwards.
			seekKey = append(prefix, []byte("99999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(byteMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				byteMessages = append(byteMessages, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var messages []domain.Message
	for _, b := range byteMessages {
		var dm diskMessage
		if err = json.Unmarshal(b, &dm); err != nil {
			return nil, nil, err
		}
		messages = append(messages, toMessage(dm))
	}

	var next *string
	if m.limitMessages != nil && lastKey != "" && len(messages) == *m.limitMessages {
		next = &lastKey
	}
	return messages, next, nil
}

// LastMessage returns the newest message of a room, or nil when the room
// has no history yet.
func (m *MessageRepository) LastMessage(roomID domain.RoomID) (*domain.Message, error) {
	var raw []byte

	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%s:", roomID))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		it.Seek(append(prefix, []byte("99999999999999999999")...))
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		return it.Item().Value(func(value []byte) error {
			raw = append([]byte(nil), value...)
			return nil
		})
	})
	if err != nil || raw == nil {
		return nil, err
	}

	var dm diskMessage
	if err = json.Unmarshal(raw, &dm); err != nil {
		return nil, err
	}
	message := toMessage(dm)
	return &message, nil
}

func fromMessage(message domain.Message) diskMessage {
	return diskMessage{
		ID:      uint64(message.ID),
		Room:    string(message.RoomID),
		Author:  string(message.SenderID),
		Content: message.Content,
		Lang:    message.Lang,
		At:      message.CreatedAt.UnixNano(),
	}
}

func toMessage(dm diskMessage) domain.Message {
	return domain.Message{
		ID:        domain.MessageID(dm.ID),
		RoomID:    domain.RoomID(dm.Room),
		SenderID:  domain.UserID(dm.Author),
		Content:   dm.Content,
		Lang:      dm.Lang,
		CreatedAt: time.Unix(0, dm.At).UTC(),
	}
}
