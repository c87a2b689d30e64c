package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	userID := uuid.New().String()

	token, err := m.Generate(userID)
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	require.Equal(t, userID, claims.Subject)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	token, err := m.Generate(uuid.New().String())
	require.NoError(t, err)

	other := NewJWTManager("different", time.Hour)
	_, err = other.Verify(token)
	require.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m := NewJWTManager("secret", -time.Minute)
	token, err := m.Generate(uuid.New().String())
	require.NoError(t, err)

	_, err = m.Verify(token)
	require.Error(t, err)
}

func TestExtractTokenFromHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer abc123")

	token, err := ExtractTokenFromHeader(r)
	require.NoError(t, err)
	require.Equal(t, "abc123", token)

	r.Header.Set("Authorization", "abc123")
	_, err = ExtractTokenFromHeader(r)
	require.Error(t, err)
}

func TestExtractTokenFromRequestPrefersQuery(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=query-token", nil)
	r.Header.Set("Authorization", "Bearer header-token")

	token, err := ExtractTokenFromRequest(r)
	require.NoError(t, err)
	require.Equal(t, "query-token", token)

	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer header-token")
	token, err = ExtractTokenFromRequest(r)
	require.NoError(t, err)
	require.Equal(t, "header-token", token)

	r = httptest.NewRequest("GET", "/ws", nil)
	_, err = ExtractTokenFromRequest(r)
	require.Error(t, err)
}
