package domain

import "time"

type RoomID string

type RoomType string

const (
	RoomPrivate RoomType = "private"
	RoomGroup   RoomType = "group"
)

// Room is a named channel whose history and live traffic are restricted
// to its members. Authorization lives in the durable membership rows, not
// in the live registry.
type Room struct {
	ID        RoomID    `json:"id"`
	Type      RoomType  `json:"type"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
