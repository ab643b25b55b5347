package event

import (
	"time"

	"youth-hub/domain"
)

type DomainEvent interface {
	RoomID() domain.RoomID
}

// MessageStored is emitted after a message has been durably persisted.
// Its content is exactly the persisted content, decorated with the
// sender's display name for delivery.
type MessageStored struct {
	ID                domain.MessageID
	Room              domain.RoomID
	SenderID          domain.UserID
	SenderDisplayName string
	Content           string
	Lang              string
	At                time.Time
}

func (m MessageStored) RoomID() domain.RoomID {
	return m.Room
}
