// Package runtime owns the live, process-wide state of the messaging
// core: which connections are currently subscribed to which rooms.
// Nothing here is authoritative; the registry is rebuilt from scratch on
// restart and carries no authorization decisions.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"youth-hub/contract"
	"youth-hub/domain"
	"youth-hub/domain/event"
)

type Set map[string]struct{}

// Registry maps room ids to the set of currently subscribed connections.
// Each connection's joined-room set is tracked inversely so that cleanup
// on disconnect is O(rooms joined), not O(all rooms).
type Registry struct {
	mu          sync.RWMutex
	log         *slog.Logger
	sinks       map[string]contract.EventSink  // connection id -> delivery sink
	roomMembers map[domain.RoomID]Set          // room -> connection ids
	joined      map[string]map[domain.RoomID]struct{} // connection id -> rooms
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:         log,
		sinks:       make(map[string]contract.EventSink),
		roomMembers: make(map[domain.RoomID]Set),
		joined:      make(map[string]map[domain.RoomID]struct{}),
	}
}

// Subscribe adds a connection to a room's subscriber set. Subscribing
// twice to the same room is a no-op, not an error. The caller must have
// passed a membership check immediately before; the registry itself never
// re-checks.
func (r *Registry) Subscribe(connectionID string, roomID domain.RoomID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sinks[connectionID] = sink

	if _, ok := r.roomMembers[roomID]; !ok {
		r.roomMembers[roomID] = make(Set)
	}
	r.roomMembers[roomID][connectionID] = struct{}{}

	if _, ok := r.joined[connectionID]; !ok {
		r.joined[connectionID] = make(map[domain.RoomID]struct{})
	}
	r.joined[connectionID][roomID] = struct{}{}
}

// Unsubscribe removes a connection from one room. Empty sets are removed
// so the maps don't leak over time.
func (r *Registry) Unsubscribe(connectionID string, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubscribeLocked(connectionID, roomID)
}

// UnsubscribeAll removes a connection from every room it held and drops
// its sink. It runs exactly once, on connection close, and is safe to
// call for a connection that never joined anything.
func (r *Registry) UnsubscribeAll(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for roomID := range r.joined[connectionID] {
		r.unsubscribeLocked(connectionID, roomID)
	}
	delete(r.joined, connectionID)
	delete(r.sinks, connectionID)
}

func (r *Registry) unsubscribeLocked(connectionID string, roomID domain.RoomID) {
	if members, ok := r.roomMembers[roomID]; ok {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(r.roomMembers, roomID)
		}
	}
	if rooms, ok := r.joined[connectionID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.joined, connectionID)
		}
	}
}

// IsSubscribed reports whether a connection currently appears in a room's
// live subscriber set.
func (r *Registry) IsSubscribed(connectionID string, roomID domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.roomMembers[roomID][connectionID]
	return ok
}

// GetSinksForRoom snapshots the delivery sinks of a room's current
// subscribers. Returns nil if the room has no live subscribers.
func (r *Registry) GetSinksForRoom(roomID domain.RoomID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[roomID]
	if !ok {
		return nil
	}
	var activeSinks []contract.EventSink
	for connectionID := range members {
		if sink, exists := r.sinks[connectionID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

// Broadcast delivers an event to every current subscriber of its room.
// The subscriber set is snapshotted first, so concurrent unsubscribes
// during delivery are safe, and a failing recipient never aborts delivery
// to the rest.
func (r *Registry) Broadcast(ctx context.Context, e event.DomainEvent) {
	for _, sink := range r.GetSinksForRoom(e.RoomID()) {
		if err := sink.Consume(ctx, e); err != nil {
			r.log.Warn(fmt.Sprintf("Delivery failed for room %s", e.RoomID()), "error", err)
		}
	}
}
