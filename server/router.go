package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"youth-hub/auth"
	"youth-hub/observability"
	"youth-hub/services"
)

// NewRouter assembles the HTTP surface: public auth routes, the JWT
// protected REST API, and the websocket entry point. The websocket route
// is outside the middleware because it verifies the credential itself,
// after the upgrade.
func NewRouter(
	log *slog.Logger,
	verifier *auth.Verifier,
	authService services.IAuthService,
	chatService services.IChatService,
	metrics *observability.Metrics,
	connectionBufferSize int,
) *mux.Router {
	authHandler := NewAuthHandler(log, authService)
	chatHandler := NewChatHandler(log, chatService, metrics)
	wsHandler := NewWebSocketHandler(log, verifier, chatService, metrics, connectionBufferSize)

	router := mux.NewRouter()

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	router.HandleFunc("/api/auth/register", authHandler.Register).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", authHandler.Login).Methods(http.MethodPost)

	router.HandleFunc("/ws", wsHandler.Handle)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(AuthMiddleware(log, verifier, metrics))
	api.HandleFunc("/rooms", chatHandler.ListRooms).Methods(http.MethodGet)
	api.HandleFunc("/rooms/private", chatHandler.OpenPrivate).Methods(http.MethodPost)
	api.HandleFunc("/rooms/group", chatHandler.CreateGroup).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{roomId}/messages", chatHandler.History).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{roomId}/search", chatHandler.Search).Methods(http.MethodGet)
	api.HandleFunc("/stats", chatHandler.Stats).Methods(http.MethodGet)

	return router
}
