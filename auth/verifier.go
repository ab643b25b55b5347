package auth

import (
	"fmt"
	"log/slog"
	"strings"

	"youth-hub/domain"
	"youth-hub/errors"
)

// Verifier authenticates the credential presented at connection time and
// produces the immutable identity for the lifetime of that connection.
// It runs exactly once per connection; the identity is trusted for the
// session's duration, bounded by the credential's own expiry.
type Verifier struct {
	log *slog.Logger
}

func NewVerifier(log *slog.Logger) *Verifier {
	return &Verifier{log: log}
}

// Verify maps a bearer credential to an Identity. A blank credential is
// ErrCredentialMissing; a malformed, unsigned, or expired one is
// ErrCredentialInvalid. There are no side effects on success.
func (v *Verifier) Verify(credential string) (domain.Identity, error) {
	credential = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(credential), "Bearer"))
	if credential == "" {
		return domain.Identity{}, errors.ErrCredentialMissing
	}

	claims, err := ValidateToken(credential)
	if err != nil {
		v.log.Debug("credential rejected", "error", err)
		return domain.Identity{}, fmt.Errorf("%w: %v", errors.ErrCredentialInvalid, err)
	}

	return domain.Identity{
		UserID:      domain.UserID(claims.UserID),
		DisplayName: claims.DisplayName,
		Role:        domain.Role(claims.Role),
	}, nil
}
