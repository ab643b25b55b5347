package server

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"youth-hub/auth"
	"youth-hub/errors"
	"youth-hub/observability"
	"youth-hub/services"
	"youth-hub/sink"
)

// WebSocketHandler performs the handshake for the live messaging surface.
// The connection is upgraded first and verified second, so an auth
// failure can be reported with a proper close frame instead of a bare
// HTTP error the browser cannot read.
type WebSocketHandler struct {
	log        *slog.Logger
	verifier   *auth.Verifier
	chat       services.IChatService
	metrics    *observability.Metrics
	bufferSize int
	upgrader   websocket.Upgrader
}

func NewWebSocketHandler(
	log *slog.Logger,
	verifier *auth.Verifier,
	chat services.IChatService,
	metrics *observability.Metrics,
	bufferSize int,
) *WebSocketHandler {
	return &WebSocketHandler{
		log:        log,
		verifier:   verifier,
		chat:       chat,
		metrics:    metrics,
		bufferSize: bufferSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin filtering belongs to the reverse proxy in front
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle upgrades the connection, verifies the credential exactly once,
// and hands the socket to a session. The credential may arrive in the
// Authorization header or, for browser clients, the token query param.
func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "error", err)
		return
	}
	h.metrics.ConnectionOpened()

	credential := r.Header.Get("Authorization")
	if credential == "" {
		credential = r.URL.Query().Get("token")
	}

	identity, err := h.verifier.Verify(credential)
	if err != nil {
		h.metrics.IncrAuthFailures()
		h.rejectHandshake(conn, err)
		return
	}

	connectionID := uuid.NewString()
	session := NewSession(
		connectionID,
		conn,
		h.chat,
		sink.NewBufferedSink(h.bufferSize, h.metrics),
		h.metrics,
		h.log,
	)
	session.Run(r.Context(), identity)
}

// rejectHandshake closes an unauthenticated connection with a policy
// violation frame naming the failure.
func (h *WebSocketHandler) rejectHandshake(conn *websocket.Conn, err error) {
	reason := "invalid credential"
	if stderrors.Is(err, errors.ErrCredentialMissing) {
		reason = "missing credential"
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason))
	_ = conn.Close()
	h.metrics.ConnectionClosed()
	h.log.Warn("Handshake rejected", "reason", reason)
}
