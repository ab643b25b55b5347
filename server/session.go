package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"youth-hub/domain"
	"youth-hub/domain/chat"
	"youth-hub/domain/event"
	"youth-hub/observability"
	"youth-hub/services"
	"youth-hub/sink"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	maxFrameSize = 8192
)

type sessionState int32

const (
	stateConnecting sessionState = iota
	stateAuthenticated
	stateActive
	stateClosed
)

// clientFrame is the envelope of every inbound websocket frame.
type clientFrame struct {
	Event   string `json:"event"`
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
}

type serverFrame struct {
	Event        string `json:"event"`
	ConnectionID string `json:"connectionId,omitempty"`
	Payload      any    `json:"payload,omitempty"`
}

type messagePayload struct {
	ID                domain.MessageID `json:"id"`
	RoomID            domain.RoomID    `json:"roomId"`
	SenderID          domain.UserID    `json:"senderId"`
	SenderDisplayName string           `json:"senderDisplayName"`
	Content           string           `json:"content"`
	Lang              string           `json:"lang,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
}

// Session owns one websocket connection from handshake to close. Its
// identity is set once, right after the upgrade, and never re-derived.
// Cleanup runs on every exit path, so a crashed reader still releases
// all of the connection's subscriptions.
type Session struct {
	id       string
	conn     *websocket.Conn
	identity domain.Identity
	chat     services.IChatService
	sink     *sink.BufferedSink
	metrics  *observability.Metrics
	log      *slog.Logger
	// state is written by Run and read by the reader goroutine.
	state atomic.Int32
}

func NewSession(
	id string,
	conn *websocket.Conn,
	chat services.IChatService,
	sk *sink.BufferedSink,
	metrics *observability.Metrics,
	log *slog.Logger,
) *Session {
	return &Session{
		id:      id,
		conn:    conn,
		chat:    chat,
		sink:    sk,
		metrics: metrics,
		log:     log.With("connection_id", id),
	}
}

func (s *Session) setState(state sessionState) {
	s.state.Store(int32(state))
}

func (s *Session) currentState() sessionState {
	return sessionState(s.state.Load())
}

// Run drives the session after a successful handshake. It blocks until
// the connection dies, then tears everything down exactly once.
func (s *Session) Run(ctx context.Context, identity domain.Identity) {
	s.identity = identity
	s.setState(stateAuthenticated)

	defer func() {
		s.chat.LeaveAll(s.id)
		s.metrics.ConnectionClosed()
		s.log.Debug("Session closed", "user_id", s.identity.UserID)
	}()

	if err := s.writeFrame(serverFrame{Event: "connected", ConnectionID: s.id}); err != nil {
		s.log.Debug("Failed to confirm connection", "error", err)
		s.setState(stateClosed)
		_ = s.conn.Close()
		return
	}
	s.setState(stateActive)
	s.log.Debug("Session active", "user_id", s.identity.UserID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.readPump(ctx)
	}()
	s.writePump(ctx, done)

	// The reader must be fully stopped before subscriptions are released:
	// closing the transport unblocks ReadMessage, and waiting on done
	// guarantees no in-flight dispatch can re-subscribe after LeaveAll.
	s.setState(stateClosed)
	_ = s.conn.Close()
	<-done
}

// readPump decodes inbound frames and dispatches them. A malformed or
// unauthorized frame is dropped and logged; only transport errors end
// the loop.
func (s *Session) readPump(ctx context.Context) {
	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("Unexpected close", "error", err)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			s.log.Warn("Dropping malformed frame", "error", err)
			continue
		}
		s.dispatch(ctx, frame)
	}
}

// dispatch handles one client frame. Anything but join/send, or any frame
// outside the Active state, is rejected.
func (s *Session) dispatch(ctx context.Context, frame clientFrame) {
	if s.currentState() != stateActive {
		s.log.Warn("Dropping frame outside active state", "event", frame.Event)
		return
	}

	switch frame.Event {
	case "join":
		// A denial is silent on the wire: the client learns nothing
		// about whether the room exists.
		if err := s.chat.JoinRoom(s.id, s.identity, domain.RoomID(frame.RoomID), s.sink); err != nil {
			s.log.Debug("Join not granted", "room_id", frame.RoomID, "error", err)
		}
	case "send":
		_, err := s.chat.PostMessage(ctx, chat.PostMessageCommand{
			Room:    domain.RoomID(frame.RoomID),
			Sender:  s.identity,
			Content: frame.Content,
		})
		if err != nil {
			s.log.Debug("Send dropped", "room_id", frame.RoomID, "error", err)
		}
	default:
		s.log.Warn("Dropping unknown event", "event", frame.Event)
	}
}

// writePump is the only goroutine writing to the connection. It drains
// the sink's buffer and keeps the connection alive with pings.
func (s *Session) writePump(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case e := <-s.sink.Events:
			if stored, ok := e.(event.MessageStored); ok {
				if err := s.writeFrame(newMessageFrame(stored)); err != nil {
					s.log.Debug("Write failed", "error", err)
					return
				}
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) writeFrame(frame serverFrame) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(frame)
}

func newMessageFrame(stored event.MessageStored) serverFrame {
	return serverFrame{
		Event: "newMessage",
		Payload: messagePayload{
			ID:                stored.ID,
			RoomID:            stored.Room,
			SenderID:          stored.SenderID,
			SenderDisplayName: stored.SenderDisplayName,
			Content:           stored.Content,
			Lang:              stored.Lang,
			CreatedAt:         stored.At,
		},
	}
}
