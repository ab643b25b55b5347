package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Connection-fatal handshake failures. Either one closes the transport.
var (
	ErrCredentialMissing = fmt.Errorf("credential missing")
	ErrCredentialInvalid = fmt.Errorf("credential invalid")
)

// Event-fatal send failures. The event is dropped, the connection stays up.
var (
	ErrInvalidPayload = fmt.Errorf("invalid payload")
	ErrNotAMember     = fmt.Errorf("not a member of the room")
	ErrStorageFailure = fmt.Errorf("storage failure")
)

// Account and room management failures surfaced on the REST side.
var (
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrNotFound           = fmt.Errorf("not found")
	ErrSelfChat           = fmt.Errorf("cannot open a private chat with yourself")
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")
)

// MapToHTTPStatus translates the error taxonomy for the REST surface.
// Membership denials map to 404 on purpose: an unauthorized caller must
// not be able to distinguish "forbidden" from "does not exist".
func MapToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrCredentialMissing), errors.Is(err, ErrCredentialInvalid),
		errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotAMember), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidPayload), errors.Is(err, ErrInvalidPassword),
		errors.Is(err, ErrSelfChat), errors.Is(err, ErrUserAlreadyExists):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
