//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"

	"youth-hub/contract"
	"youth-hub/domain"
	"youth-hub/domain/chat"
	"youth-hub/domain/event"
	"youth-hub/errors"
	"youth-hub/moderation"
	"youth-hub/observability"
	"youth-hub/repositories"
	"youth-hub/search"
)

const maxContentRunes = 2000

type IChatService interface {
	PostMessage(ctx context.Context, cmd chat.PostMessageCommand) (domain.Message, error)
	JoinRoom(connectionID string, identity domain.Identity, roomID domain.RoomID, sink contract.EventSink) error
	LeaveAll(connectionID string)
	History(identity domain.Identity, cmd chat.GetMessageCommand) ([]domain.Message, *string, error)
	RoomsForUser(identity domain.Identity) ([]RoomSummary, error)
	OpenPrivateRoom(identity domain.Identity, other domain.UserID) (domain.Room, bool, error)
	CreateGroupRoom(identity domain.Identity, name string, members []domain.UserID) (domain.Room, error)
	Search(ctx context.Context, identity domain.Identity, roomID domain.RoomID, terms string) ([]search.Hit, error)
}

// RoomSummary is a room plus its newest message, for conversation lists.
type RoomSummary struct {
	Room        domain.Room     `json:"room"`
	LastMessage *domain.Message `json:"lastMessage,omitempty"`
}

// ChatService is the relay pipeline: it authorizes, censors, persists and
// broadcasts every message, in that order. Membership is re-read from the
// store on each operation rather than remembered from join time, so a
// revoked member loses access on their very next send.
type ChatService struct {
	log         *slog.Logger
	messages    repositories.IMessageRepository
	rooms       repositories.IRoomRepository
	registry    contract.IRegistry
	moderator   *moderation.Moderator
	index       search.IMessageIndex
	metrics     *observability.Metrics
	roomLocks   sync.Map
	searchLimit int
}

func NewChatService(
	log *slog.Logger,
	messages repositories.IMessageRepository,
	rooms repositories.IRoomRepository,
	registry contract.IRegistry,
	moderator *moderation.Moderator,
	index search.IMessageIndex,
	metrics *observability.Metrics,
	searchLimit int,
) *ChatService {
	return &ChatService{
		log:         log,
		messages:    messages,
		rooms:       rooms,
		registry:    registry,
		moderator:   moderator,
		index:       index,
		metrics:     metrics,
		searchLimit: searchLimit,
	}
}

// roomLock serializes persist+broadcast per room so delivery order always
// matches store order. Senders in different rooms never contend.
func (s *ChatService) roomLock(roomID domain.RoomID) *sync.Mutex {
	lock, _ := s.roomLocks.LoadOrStore(roomID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// PostMessage runs one send through the full pipeline. The stored record
// and the broadcast payload are built from the same censored content, so
// readers of the backlog and live recipients see identical text.
func (s *ChatService) PostMessage(ctx context.Context, cmd chat.PostMessageCommand) (domain.Message, error) {
	content := strings.TrimSpace(cmd.Content)
	if content == "" || utf8.RuneCountInString(content) > maxContentRunes {
		s.metrics.IncrSendsRejected()
		return domain.Message{}, errors.ErrInvalidPayload
	}

	// Membership is checked at send time, not join time
	member, err := s.rooms.IsMember(cmd.Sender.UserID, cmd.Room)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStorageFailure, err)
	}
	if !member {
		s.metrics.IncrSendsRejected()
		s.log.Warn("Send rejected for non-member",
			"user_id", cmd.Sender.UserID, "room_id", cmd.Room)
		return domain.Message{}, errors.ErrNotAMember
	}

	censored, matched := s.moderator.Censor(content)
	if len(matched) > 0 {
		s.log.Info("Message content censored",
			"user_id", cmd.Sender.UserID, "room_id", cmd.Room, "matched", len(matched))
	}

	lang := detectLang(censored)

	lock := s.roomLock(cmd.Room)
	lock.Lock()
	message, err := s.messages.InsertMessage(cmd.Room, cmd.Sender.UserID, censored, lang)
	if err != nil {
		lock.Unlock()
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStorageFailure, err)
	}
	s.metrics.IncrMessagesPersisted()

	stored := event.MessageStored{
		ID:                message.ID,
		Room:              message.RoomID,
		SenderID:          message.SenderID,
		SenderDisplayName: cmd.Sender.DisplayName,
		Content:           message.Content,
		Lang:              message.Lang,
		At:                message.CreatedAt,
	}
	recipients := len(s.registry.GetSinksForRoom(cmd.Room))
	s.registry.Broadcast(ctx, stored)
	lock.Unlock()

	s.metrics.IncrMessagesBroadcast(uint64(recipients))

	// Indexing failures never fail the send; the message is already
	// durable and delivered.
	if err := s.index.Add(message); err != nil {
		s.log.Warn("Failed to index message", "message_id", message.ID, "error", err)
	}
	return message, nil
}

// JoinRoom subscribes a connection to a room's live feed. A denial is
// deliberately indistinguishable from a nonexistent room so probing
// reveals nothing about which rooms exist.
func (s *ChatService) JoinRoom(connectionID string, identity domain.Identity, roomID domain.RoomID, sink contract.EventSink) error {
	member, err := s.rooms.IsMember(identity.UserID, roomID)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStorageFailure, err)
	}
	if !member {
		s.metrics.IncrJoinsDenied()
		s.log.Warn("Join denied for non-member",
			"user_id", identity.UserID, "room_id", roomID, "connection_id", connectionID)
		return errors.ErrNotAMember
	}

	s.registry.Subscribe(connectionID, roomID, sink)
	s.metrics.IncrJoinsGranted()
	s.log.Debug("Join granted",
		"user_id", identity.UserID, "room_id", roomID, "connection_id", connectionID)
	return nil
}

// LeaveAll drops every live subscription of a connection. Membership rows
// are untouched; the user can rejoin on their next connection.
func (s *ChatService) LeaveAll(connectionID string) {
	s.registry.UnsubscribeAll(connectionID)
}

// History returns one page of a room's backlog, newest first.
func (s *ChatService) History(identity domain.Identity, cmd chat.GetMessageCommand) ([]domain.Message, *string, error) {
	member, err := s.rooms.IsMember(identity.UserID, cmd.Room)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errors.ErrStorageFailure, err)
	}
	if !member {
		return nil, nil, errors.ErrNotAMember
	}
	return s.messages.GetMessages(cmd.Room, cmd.Cursor)
}

// RoomsForUser lists the user's rooms with their newest message as a
// conversation preview.
func (s *ChatService) RoomsForUser(identity domain.Identity) ([]RoomSummary, error) {
	rooms, err := s.rooms.RoomsForUser(identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorageFailure, err)
	}

	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		last, err := s.messages.LastMessage(room.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrStorageFailure, err)
		}
		summaries = append(summaries, RoomSummary{Room: room, LastMessage: last})
	}
	return summaries, nil
}

// OpenPrivateRoom finds or creates the 1:1 room between the caller and
// another user. The boolean reports whether this call created it.
func (s *ChatService) OpenPrivateRoom(identity domain.Identity, other domain.UserID) (domain.Room, bool, error) {
	room, created, err := s.rooms.FindOrCreatePrivateRoom(identity.UserID, other)
	if err != nil {
		return domain.Room{}, false, err
	}
	if created {
		s.log.Info("Private room created",
			"room_id", room.ID, "user_id", identity.UserID, "other_id", other)
	}
	return room, created, nil
}

// CreateGroupRoom creates a group room. Only leaders and bureau members
// may open group rooms; the creator is always a member.
func (s *ChatService) CreateGroupRoom(identity domain.Identity, name string, members []domain.UserID) (domain.Room, error) {
	if identity.Role != domain.RoleLeader && identity.Role != domain.RoleBureau {
		return domain.Room{}, errors.ErrNotAMember
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Room{}, errors.ErrInvalidPayload
	}

	all := append([]domain.UserID{identity.UserID}, members...)
	room, err := s.rooms.CreateGroupRoom(name, dedupe(all))
	if err != nil {
		return domain.Room{}, fmt.Errorf("%w: %v", errors.ErrStorageFailure, err)
	}
	s.log.Info("Group room created", "room_id", room.ID, "name", name, "members", len(all))
	return room, nil
}

// Search runs a full-text query over one room's backlog, restricted to
// members of that room.
func (s *ChatService) Search(ctx context.Context, identity domain.Identity, roomID domain.RoomID, terms string) ([]search.Hit, error) {
	member, err := s.rooms.IsMember(identity.UserID, roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorageFailure, err)
	}
	if !member {
		return nil, errors.ErrNotAMember
	}
	if strings.TrimSpace(terms) == "" {
		return nil, errors.ErrInvalidPayload
	}
	return s.index.Search(ctx, roomID, terms, s.searchLimit)
}

// detectLang tags a message with its ISO 639-1 language code, or leaves
// it empty when detection is not confident enough to be useful.
func detectLang(content string) string {
	info := whatlanggo.Detect(content)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}

func dedupe(users []domain.UserID) []domain.UserID {
	seen := make(map[domain.UserID]struct{}, len(users))
	out := make([]domain.UserID, 0, len(users))
	for _, u := range users {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
