//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"fmt"
	"log/slog"
	"time"

	"youth-hub/auth"
	"youth-hub/errors"
	"youth-hub/repositories"
)

type IAuthService interface {
	Login(email, password string) (Token, error)
	Register(email, displayName, password string) (Token, error)
}

type Token string

type AuthService struct {
	log            *slog.Logger
	userRepository repositories.IUserRepository
	tokenDuration  time.Duration
}

func NewAuthService(log *slog.Logger, repo repositories.IUserRepository, tokenDuration time.Duration) IAuthService {
	return &AuthService{log: log, userRepository: repo, tokenDuration: tokenDuration}
}

func (s *AuthService) Register(email, displayName, password string) (Token, error) {
	valReq := auth.RegisterRequest{
		Email:       email,
		DisplayName: displayName,
		Password:    password,
	}

	// 1. Validate business rules (email format, password complexity)
	// We check this before any expensive cryptographic operation.
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// 2. Hash the password using Argon2id
	// Done in the service layer to keep the repository unaware of plain passwords.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	// 3. Persist the user with the generated hash
	user, err := s.userRepository.CreateUser(email, displayName, hashedPassword)
	if err != nil {
		return "", err // Will propagate ErrUserAlreadyExists if email is taken
	}

	// 4. Generate the initial session token
	token, err := auth.GenerateToken(user.ID, user.DisplayName, user.Role, s.tokenDuration)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}

	s.log.Info("User registered", "user_id", user.ID)
	return Token(token), nil
}

func (s *AuthService) Login(email, password string) (Token, error) {
	// 1. Retrieve user by email from storage
	user, err := s.userRepository.GetUserByEmail(email)
	if err != nil {
		// Generic error to prevent user enumeration attacks
		return "", errors.ErrInvalidCredentials
	}

	// 2. Compare the provided password with the stored hash
	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	// 3. Issue the JWT token
	token, err := auth.GenerateToken(user.ID, user.DisplayName, user.Role, s.tokenDuration)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}

	return Token(token), nil
}
