package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"youth-hub/domain"
	"youth-hub/domain/event"
)

type recordingSink struct {
	events []event.DomainEvent
	err    error
}

func (s *recordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

func TestRegistry_Subscribe_One_Room_One_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	connectionID := uuid.NewString()
	roomID := domain.RoomID("room-1")
	sink := &recordingSink{}

	// Given no connection is subscribed anywhere
	req.False(registry.IsSubscribed(connectionID, roomID))

	// When a connection subscribes a room
	registry.Subscribe(connectionID, roomID, sink)

	// Then
	req.True(registry.IsSubscribed(connectionID, roomID))
	req.Len(registry.GetSinksForRoom(roomID), 1)
}

func TestRegistry_Subscribe_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	connectionID := uuid.NewString()
	roomID := domain.RoomID("room-1")
	sink := &recordingSink{}

	// When the same connection subscribes the same room twice
	registry.Subscribe(connectionID, roomID, sink)
	registry.Subscribe(connectionID, roomID, sink)

	// Then it appears once, not twice
	req.Len(registry.GetSinksForRoom(roomID), 1)
}

func TestRegistry_UnsubscribeAll_Removes_Every_Room(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	connectionID := uuid.NewString()
	other := uuid.NewString()
	sink := &recordingSink{}
	otherSink := &recordingSink{}

	// Given a connection subscribed to two rooms alongside another one
	registry.Subscribe(connectionID, "room-1", sink)
	registry.Subscribe(connectionID, "room-2", sink)
	registry.Subscribe(other, "room-1", otherSink)

	// When the connection closes
	registry.UnsubscribeAll(connectionID)

	// Then it is gone from every room and the other connection remains
	req.False(registry.IsSubscribed(connectionID, "room-1"))
	req.False(registry.IsSubscribed(connectionID, "room-2"))
	req.True(registry.IsSubscribed(other, "room-1"))
	req.Len(registry.GetSinksForRoom("room-1"), 1)
	req.Nil(registry.GetSinksForRoom("room-2"))
}

func TestRegistry_UnsubscribeAll_With_Zero_Rooms(t *testing.T) {
	registry := NewRegistry(slog.Default())

	// Must be safe for a connection that never joined anything
	registry.UnsubscribeAll(uuid.NewString())
}

func TestRegistry_Broadcast_Reaches_All_Subscribers(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	sink1 := &recordingSink{}
	sink2 := &recordingSink{}
	outsider := &recordingSink{}

	registry.Subscribe(uuid.NewString(), "room-1", sink1)
	registry.Subscribe(uuid.NewString(), "room-1", sink2)
	registry.Subscribe(uuid.NewString(), "room-2", outsider)

	evt := event.MessageStored{ID: 1, Room: "room-1", SenderID: "alice", Content: "hello"}
	registry.Broadcast(context.Background(), evt)

	req.Equal([]event.DomainEvent{evt}, sink1.events)
	req.Equal([]event.DomainEvent{evt}, sink2.events)
	req.Empty(outsider.events)
}

func TestRegistry_Broadcast_Isolates_Failing_Recipient(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	broken := &recordingSink{err: fmt.Errorf("transport gone")}
	healthy := &recordingSink{}

	registry.Subscribe(uuid.NewString(), "room-1", broken)
	registry.Subscribe(uuid.NewString(), "room-1", healthy)

	registry.Broadcast(context.Background(), event.MessageStored{ID: 1, Room: "room-1"})

	// A failing transport must not abort delivery to the rest
	req.Len(healthy.events, 1)
}

func TestRegistry_Broadcast_After_Disconnect_Never_Reaches_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	connectionID := uuid.NewString()
	sink := &recordingSink{}

	registry.Subscribe(connectionID, "room-1", sink)
	registry.UnsubscribeAll(connectionID)

	registry.Broadcast(context.Background(), event.MessageStored{ID: 1, Room: "room-1"})

	req.Empty(sink.events)
}
