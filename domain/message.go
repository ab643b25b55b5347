// This file defines Message records and related rules.
// Messages are immutable once the store has assigned their id.
package domain

import "time"

// MessageID is assigned by the durable store. Ids are monotonic, so the
// id order is the canonical message order within a room.
type MessageID uint64

// Message is the durable record created exactly once per successful send.
type Message struct {
	ID        MessageID `json:"id"`
	RoomID    RoomID    `json:"roomId"`
	SenderID  UserID    `json:"senderId"`
	Content   string    `json:"content"`
	Lang      string    `json:"lang,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
