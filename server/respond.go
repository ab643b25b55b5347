package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"youth-hub/errors"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError translates the error taxonomy into an HTTP status. Internal
// details never leak to the client; they only reach the logs.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := errors.MapToHTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Error("Request failed", "error", err)
		writeJSON(w, status, errorBody{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}
