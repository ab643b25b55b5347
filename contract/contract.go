//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"youth-hub/domain"
	"youth-hub/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision, avoiding manual naming in the
// Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is one delivery endpoint for domain events, typically the
// buffered channel feeding a connection's write pump.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry is the live, non-authoritative index of which connections are
// currently subscribed to which rooms. It never decides authorization;
// membership rows in the store do.
type IRegistry interface {
	Subscribe(connectionID string, roomID domain.RoomID, sink EventSink)
	Unsubscribe(connectionID string, roomID domain.RoomID)
	UnsubscribeAll(connectionID string)
	IsSubscribed(connectionID string, roomID domain.RoomID) bool
	GetSinksForRoom(roomID domain.RoomID) []EventSink
	Broadcast(ctx context.Context, e event.DomainEvent)
}
