package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"youth-hub/auth"
	"youth-hub/domain"
	"youth-hub/errors"
	"youth-hub/observability"
)

type contextKey string

const identityKey contextKey = "identity"

// AuthMiddleware validates the bearer token on protected routes and
// injects the resulting identity into the request context. Login and
// Register are mounted outside this middleware.
func AuthMiddleware(log *slog.Logger, verifier *auth.Verifier, metrics *observability.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := verifier.Verify(r.Header.Get("Authorization"))
			if err != nil {
				metrics.IncrAuthFailures()
				writeError(w, log, err)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the identity placed by AuthMiddleware.
func IdentityFromContext(ctx context.Context) (domain.Identity, error) {
	identity, ok := ctx.Value(identityKey).(domain.Identity)
	if !ok {
		return domain.Identity{}, errors.ErrCredentialMissing
	}
	return identity, nil
}
