package repositories

import (
	"testing"

	"github.com/stretchr/testify/require"

	"youth-hub/errors"
)

func Test_CreateUser_And_Lookups(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	created, err := repository.CreateUser("ana@example.com", "Ana Diaz", "$argon2id$hash")
	req.NoError(err)
	req.NotEmpty(created.ID)
	req.Equal("Member", created.Role)

	byEmail, err := repository.GetUserByEmail("ana@example.com")
	req.NoError(err)
	req.Equal(created.ID, byEmail.ID)

	byID, err := repository.GetUserByID(created.ID)
	req.NoError(err)
	req.Equal("Ana Diaz", byID.DisplayName)
}

func Test_CreateUser_Duplicate_Email(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.CreateUser("ana@example.com", "Ana Diaz", "$argon2id$hash")
	req.NoError(err)

	_, err = repository.CreateUser("ana@example.com", "Impostor", "$argon2id$other")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_GetUser_Not_Found(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.GetUserByEmail("ghost@example.com")
	req.ErrorIs(err, errors.ErrNotFound)

	_, err = repository.GetUserByID("no-such-id")
	req.ErrorIs(err, errors.ErrNotFound)
}
