package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "UnMotDePasseTr0pSûr!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("WrongPassword", hash)
	req.NoError(err)
	req.False(match)
}

func TestTokenRoundTrip(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("user-42", "Ana Diaz", "Leader", time.Hour)
	req.NoError(err)

	claims, err := ValidateToken(token)
	req.NoError(err)
	req.Equal("user-42", claims.UserID)
	req.Equal("Ana Diaz", claims.DisplayName)
	req.Equal("Leader", claims.Role)
}

func TestTokenExpired(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("user-42", "Ana Diaz", "Member", -time.Minute)
	req.NoError(err)

	_, err = ValidateToken(token)
	req.Error(err)
}

func TestRegistrationValidation(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{"test@example.com", "Test User", "ComplexPass123!"}, false},
		{"Invalid email", RegisterRequest{"notanemail", "Test User", "ComplexPass123!"}, true},
		{"Missing display name", RegisterRequest{"test@example.com", "", "ComplexPass123!"}, true},
		{"Password too short", RegisterRequest{"test@example.com", "Test User", "Short1!"}, true},
		{"Missing digit", RegisterRequest{"test@example.com", "Test User", "NoDigitPassword!"}, true},
		{"Missing special char", RegisterRequest{"test@example.com", "Test User", "NoSpecialChar123"}, true},
		{"Missing uppercase", RegisterRequest{"test@example.com", "Test User", "nouppercase123!"}, true},
		{"Password too long (edge case)", RegisterRequest{"test@example.com", "Test User", strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}
