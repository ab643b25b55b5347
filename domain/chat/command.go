package chat

import "youth-hub/domain"

type Command interface {
	RoomID() domain.RoomID
}

// PostMessageCommand carries one send intent through the relay pipeline.
// Sender is the connection's immutable identity, never client-supplied.
type PostMessageCommand struct {
	Room    domain.RoomID
	Sender  domain.Identity
	Content string
}

func (p PostMessageCommand) RoomID() domain.RoomID {
	return p.Room
}

type GetMessageCommand struct {
	Room   domain.RoomID
	Cursor *string
}

func (p GetMessageCommand) RoomID() domain.RoomID {
	return p.Room
}
