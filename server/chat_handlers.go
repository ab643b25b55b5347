package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"youth-hub/domain"
	"youth-hub/domain/chat"
	"youth-hub/errors"
	"youth-hub/observability"
	"youth-hub/services"
)

type ChatHandler struct {
	log     *slog.Logger
	service services.IChatService
	metrics *observability.Metrics
}

func NewChatHandler(log *slog.Logger, service services.IChatService, metrics *observability.Metrics) *ChatHandler {
	return &ChatHandler{log: log, service: service, metrics: metrics}
}

// ListRooms returns the caller's rooms with their newest message.
func (h *ChatHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	identity, err := IdentityFromContext(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	summaries, err := h.service.RoomsForUser(identity)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

type historyResponse struct {
	Messages []domain.Message `json:"messages"`
	Cursor   *string          `json:"cursor,omitempty"`
}

// History returns one page of a room's backlog, newest first. The cursor
// from the previous page requests the next one.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	identity, err := IdentityFromContext(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	roomID := domain.RoomID(mux.Vars(r)["roomId"])
	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}

	messages, next, err := h.service.History(identity, chat.GetMessageCommand{Room: roomID, Cursor: cursor})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Messages: messages, Cursor: next})
}

type openPrivateRequest struct {
	UserID string `json:"userId"`
}

type openPrivateResponse struct {
	Room    domain.Room `json:"room"`
	Created bool        `json:"created"`
}

// OpenPrivate finds or creates the 1:1 room with another user.
func (h *ChatHandler) OpenPrivate(w http.ResponseWriter, r *http.Request) {
	identity, err := IdentityFromContext(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var req openPrivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, h.log, errors.ErrInvalidPayload)
		return
	}

	room, created, err := h.service.OpenPrivateRoom(identity, domain.UserID(req.UserID))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, openPrivateResponse{Room: room, Created: created})
}

type createGroupRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// CreateGroup opens a new group room. Restricted to leaders and bureau
// members inside the service.
func (h *ChatHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	identity, err := IdentityFromContext(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, errors.ErrInvalidPayload)
		return
	}

	members := make([]domain.UserID, 0, len(req.Members))
	for _, m := range req.Members {
		members = append(members, domain.UserID(m))
	}

	room, err := h.service.CreateGroupRoom(identity, req.Name, members)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// Search runs a full-text query over one room's backlog.
func (h *ChatHandler) Search(w http.ResponseWriter, r *http.Request) {
	identity, err := IdentityFromContext(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	roomID := domain.RoomID(mux.Vars(r)["roomId"])
	terms := r.URL.Query().Get("q")

	hits, err := h.service.Search(r.Context(), identity, roomID, terms)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

// Stats exposes the relay's live counters.
func (h *ChatHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.Snapshot())
}
