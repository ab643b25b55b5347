package services

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"youth-hub/auth"
	"youth-hub/errors"
	"youth-hub/repositories"
)

const strongPassword = "Tr0ub4dour&Horse!"

func newAuthFixture(t *testing.T) IAuthService {
	t.Helper()
	req := require.New(t)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { req.NoError(db.Close()) })

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return NewAuthService(log, repositories.NewUserRepository(db), time.Hour)
}

func Test_Register_Issues_A_Valid_Token(t *testing.T) {
	req := require.New(t)
	service := newAuthFixture(t)

	// When registering a new account
	token, err := service.Register("alice@example.org", "Alice", strongPassword)
	req.NoError(err)
	req.NotEmpty(token)

	// Then the token carries the account identity
	claims, err := auth.ValidateToken(string(token))
	req.NoError(err)
	req.Equal("Alice", claims.DisplayName)
	req.Equal("Member", claims.Role)
}

func Test_Register_Refuses_Duplicate_Emails(t *testing.T) {
	req := require.New(t)
	service := newAuthFixture(t)

	_, err := service.Register("alice@example.org", "Alice", strongPassword)
	req.NoError(err)

	_, err = service.Register("alice@example.org", "Imposter", strongPassword)
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_Register_Refuses_Weak_Passwords(t *testing.T) {
	req := require.New(t)
	service := newAuthFixture(t)

	_, err := service.Register("alice@example.org", "Alice", "short")
	req.ErrorIs(err, errors.ErrInvalidPassword)
}

func Test_Login_Succeeds_With_The_Right_Password(t *testing.T) {
	req := require.New(t)
	service := newAuthFixture(t)

	_, err := service.Register("alice@example.org", "Alice", strongPassword)
	req.NoError(err)

	token, err := service.Login("alice@example.org", strongPassword)
	req.NoError(err)
	req.NotEmpty(token)
}

func Test_Login_Rejects_Wrong_Password_And_Unknown_Email_Alike(t *testing.T) {
	req := require.New(t)
	service := newAuthFixture(t)

	_, err := service.Register("alice@example.org", "Alice", strongPassword)
	req.NoError(err)

	// The two failure modes are indistinguishable to the caller
	_, errWrong := service.Login("alice@example.org", "WrongPassword123!")
	_, errUnknown := service.Login("nobody@example.org", strongPassword)
	req.ErrorIs(errWrong, errors.ErrInvalidCredentials)
	req.ErrorIs(errUnknown, errors.ErrInvalidCredentials)
}
