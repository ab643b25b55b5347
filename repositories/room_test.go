package repositories

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"youth-hub/domain"
	"youth-hub/errors"
)

func Test_FindOrCreatePrivateRoom_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t))

	// When the same pair opens a chat twice, in both argument orders
	room1, created1, err := repository.FindOrCreatePrivateRoom("alice", "bob")
	req.NoError(err)
	room2, created2, err := repository.FindOrCreatePrivateRoom("bob", "alice")
	req.NoError(err)

	// Then a single room exists
	req.True(created1)
	req.False(created2)
	req.Equal(room1.ID, room2.ID)
	req.Equal(domain.RoomPrivate, room1.Type)

	// And both members were granted access
	for _, user := range []domain.UserID{"alice", "bob"} {
		member, err := repository.IsMember(user, room1.ID)
		req.NoError(err)
		req.True(member)
	}
}

func Test_FindOrCreatePrivateRoom_Concurrent_Requests_Share_One_Room(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t))

	const callers = 8
	rooms := make([]domain.Room, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			room, _, err := repository.FindOrCreatePrivateRoom("alice", "bob")
			require.NoError(t, err)
			rooms[slot] = room
		}(i)
	}
	wg.Wait()

	for _, room := range rooms {
		req.Equal(rooms[0].ID, room.ID)
	}
}

func Test_FindOrCreatePrivateRoom_Rejects_Self(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t))

	_, _, err := repository.FindOrCreatePrivateRoom("alice", "alice")
	req.ErrorIs(err, errors.ErrSelfChat)
}

func Test_Membership_Grant_And_Revoke(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t))

	room, err := repository.CreateGroupRoom("youth camp", []domain.UserID{"alice"})
	req.NoError(err)

	// Given a user who was never added
	member, err := repository.IsMember("bob", room.ID)
	req.NoError(err)
	req.False(member)

	// When granted and then revoked
	req.NoError(repository.AddMember("bob", room.ID))
	member, err = repository.IsMember("bob", room.ID)
	req.NoError(err)
	req.True(member)

	req.NoError(repository.RemoveMember("bob", room.ID))
	member, err = repository.IsMember("bob", room.ID)
	req.NoError(err)
	req.False(member)
}

func Test_AddMember_Unknown_Room(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t))

	err := repository.AddMember("bob", "no-such-room")
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_RoomsForUser(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t))

	camp, err := repository.CreateGroupRoom("youth camp", []domain.UserID{"alice", "bob"})
	req.NoError(err)
	_, err = repository.CreateGroupRoom("leaders only", []domain.UserID{"clara"})
	req.NoError(err)
	private, _, err := repository.FindOrCreatePrivateRoom("alice", "clara")
	req.NoError(err)

	rooms, err := repository.RoomsForUser("alice")
	req.NoError(err)
	req.Len(rooms, 2)

	ids := []domain.RoomID{rooms[0].ID, rooms[1].ID}
	req.Contains(ids, camp.ID)
	req.Contains(ids, private.ID)
}
