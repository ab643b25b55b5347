//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"youth-hub/domain"
	"youth-hub/errors"
)

// IRoomRepository is the membership authority: a membership row's
// existence grants access to a room's messages. Every check is a direct
// read against the store, never a cached answer, because memberships can
// change between a join and a later send.
type IRoomRepository interface {
	CreateGroupRoom(name string, members []domain.UserID) (domain.Room, error)
	FindOrCreatePrivateRoom(a, b domain.UserID) (domain.Room, bool, error)
	GetRoom(roomID domain.RoomID) (domain.Room, error)
	IsMember(userID domain.UserID, roomID domain.RoomID) (bool, error)
	AddMember(userID domain.UserID, roomID domain.RoomID) error
	RemoveMember(userID domain.UserID, roomID domain.RoomID) error
	RoomsForUser(userID domain.UserID) ([]domain.Room, error)
}

type RoomRepository struct {
	db *badger.DB
}

func NewRoomRepository(db *badger.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

type diskRoom struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

func roomKey(roomID domain.RoomID) []byte {
	return []byte("room:" + roomID)
}

func memberKey(roomID domain.RoomID, userID domain.UserID) []byte {
	return []byte(fmt.Sprintf("member:%s:%s", roomID, userID))
}

func userRoomKey(userID domain.UserID, roomID domain.RoomID) []byte {
	return []byte(fmt.Sprintf("urooms:%s:%s", userID, roomID))
}

// pairKey indexes a private room by its unordered member pair, which is
// what makes the find-or-create idempotent.
func pairKey(a, b domain.UserID) []byte {
	lo, hi := string(a), string(b)
	if strings.Compare(lo, hi) > 0 {
		lo, hi = hi, lo
	}
	return []byte(fmt.Sprintf("private:%s:%s", lo, hi))
}

// CreateGroupRoom creates a group room and its initial membership rows in
// a single transaction.
func (r *RoomRepository) CreateGroupRoom(name string, members []domain.UserID) (domain.Room, error) {
	room := domain.Room{
		ID:        domain.RoomID(uuid.NewString()),
		Type:      domain.RoomGroup,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		if err := writeRoom(txn, room); err != nil {
			return err
		}
		for _, member := range members {
			if err := writeMembership(txn, member, room.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

// FindOrCreatePrivateRoom returns the private 1:1 room between two users,
// creating it on first use. The unordered pair key gives it a uniqueness
// constraint: two simultaneous requests race on the same key and Badger
// aborts one with ErrConflict, which we retry so both callers end up with
// the same room. The second return value reports whether this call
// created the room.
func (r *RoomRepository) FindOrCreatePrivateRoom(a, b domain.UserID) (domain.Room, bool, error) {
	if a == b {
		return domain.Room{}, false, errors.ErrSelfChat
	}

	const maxRetries = 3
	var room domain.Room
	var created bool

	for attempt := 0; attempt < maxRetries; attempt++ {
		room, created = domain.Room{}, false
		err := r.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(pairKey(a, b))
			switch err {
			case nil:
				return item.Value(func(value []byte) error {
					existing, err := readRoom(txn, domain.RoomID(value))
					room = existing
					return err
				})
			case badger.ErrKeyNotFound:
				// First conversation between this pair.
			default:
				return err
			}

			room = domain.Room{
				ID:        domain.RoomID(uuid.NewString()),
				Type:      domain.RoomPrivate,
				CreatedAt: time.Now().UTC(),
			}
			created = true

			if err := writeRoom(txn, room); err != nil {
				return err
			}
			for _, member := range []domain.UserID{a, b} {
				if err := writeMembership(txn, member, room.ID); err != nil {
					return err
				}
			}
			return txn.Set(pairKey(a, b), []byte(room.ID))
		})
		if err == badger.ErrConflict {
			continue
		}
		if err != nil {
			return domain.Room{}, false, err
		}
		return room, created, nil
	}
	return domain.Room{}, false, badger.ErrConflict
}

func (r *RoomRepository) GetRoom(roomID domain.RoomID) (domain.Room, error) {
	var room domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		found, err := readRoom(txn, roomID)
		room = found
		return err
	})
	if err == badger.ErrKeyNotFound {
		return domain.Room{}, errors.ErrNotFound
	}
	return room, err
}

// IsMember answers the canonical authorization question for a room. It is
// called at join time and again on every state-changing room operation.
func (r *RoomRepository) IsMember(userID domain.UserID, roomID domain.RoomID) (bool, error) {
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(memberKey(roomID, userID))
		return err
	})
	switch err {
	case nil:
		return true, nil
	case badger.ErrKeyNotFound:
		return false, nil
	default:
		return false, err
	}
}

func (r *RoomRepository) AddMember(userID domain.UserID, roomID domain.RoomID) error {
	return r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(roomKey(roomID)); err != nil {
			if err == badger.ErrKeyNotFound {
				return errors.ErrNotFound
			}
			return err
		}
		return writeMembership(txn, userID, roomID)
	})
}

func (r *RoomRepository) RemoveMember(userID domain.UserID, roomID domain.RoomID) error {
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(memberKey(roomID, userID)); err != nil {
			return err
		}
		return txn.Delete(userRoomKey(userID, roomID))
	})
}

// RoomsForUser scans the user's inverse membership index and resolves each
// entry into its room record.
func (r *RoomRepository) RoomsForUser(userID domain.UserID) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("urooms:%s:", userID)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			roomID := domain.RoomID(it.Item().Key()[len(prefixStr):])
			room, err := readRoom(txn, roomID)
			if err != nil {
				return err
			}
			rooms = append(rooms, room)
		}
		return nil
	})
	return rooms, err
}

func writeRoom(txn *badger.Txn, room domain.Room) error {
	bytes, err := json.Marshal(diskRoom{
		ID:        string(room.ID),
		Type:      string(room.Type),
		Name:      room.Name,
		CreatedAt: room.CreatedAt.Unix(),
	})
	if err != nil {
		return err
	}
	return txn.Set(roomKey(room.ID), bytes)
}

func writeMembership(txn *badger.Txn, userID domain.UserID, roomID domain.RoomID) error {
	if err := txn.Set(memberKey(roomID, userID), nil); err != nil {
		return err
	}
	return txn.Set(userRoomKey(userID, roomID), nil)
}

func readRoom(txn *badger.Txn, roomID domain.RoomID) (domain.Room, error) {
	item, err := txn.Get(roomKey(roomID))
	if err != nil {
		return domain.Room{}, err
	}
	var dr diskRoom
	err = item.Value(func(value []byte) error {
		return json.Unmarshal(value, &dr)
	})
	if err != nil {
		return domain.Room{}, err
	}
	return domain.Room{
		ID:        domain.RoomID(dr.ID),
		Type:      domain.RoomType(dr.Type),
		Name:      dr.Name,
		CreatedAt: time.Unix(dr.CreatedAt, 0).UTC(),
	}, nil
}
