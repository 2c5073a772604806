package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftlogio/liftlog/config"
)

func TestGenerateAndParseToken(t *testing.T) {
	config.Set(config.AppConfig{JWTSecret: "test-secret"})

	token, err := GenerateToken(42, "alice", TokenTTL)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(TokenTTL), claims.ExpiresAt.Time, time.Minute)
}

func TestParseToken_Expired(t *testing.T) {
	config.Set(config.AppConfig{JWTSecret: "test-secret"})

	token, err := GenerateToken(1, "bob", -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token)
	assert.Error(t, err)
}

func TestParseToken_WrongSecret(t *testing.T) {
	config.Set(config.AppConfig{JWTSecret: "secret-one"})
	token, err := GenerateToken(1, "bob", TokenTTL)
	require.NoError(t, err)

	config.Set(config.AppConfig{JWTSecret: "secret-two"})
	_, err = ParseToken(token)
	assert.Error(t, err)
}

func TestParseToken_Garbage(t *testing.T) {
	config.Set(config.AppConfig{JWTSecret: "test-secret"})
	_, err := ParseToken("not.a.token")
	assert.Error(t, err)
}
