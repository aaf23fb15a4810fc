package auth

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens_RoundTrip(t *testing.T) {
	tokens, err := NewTokens("secret", time.Hour)
	require.NoError(t, err)

	raw, err := tokens.Generate("user-1", "Asha", domain.RoleAdmin)
	require.NoError(t, err)

	claims, err := tokens.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "Asha", claims.Name)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
}

func TestTokens_Rejects(t *testing.T) {
	tokens, err := NewTokens("secret", time.Hour)
	require.NoError(t, err)
	other, err := NewTokens("other-secret", time.Hour)
	require.NoError(t, err)
	expired, err := NewTokens("secret", -time.Minute)
	require.NoError(t, err)

	foreign, err := other.Generate("user-1", "", domain.RoleUser)
	require.NoError(t, err)
	stale, err := expired.Generate("user-1", "", domain.RoleUser)
	require.NoError(t, err)
	noUser, err := tokens.Generate("", "", domain.RoleUser)
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "user-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"wrong key", foreign, ErrInvalidToken},
		{"expired", stale, ErrInvalidToken},
		{"garbage", "not.a.token", ErrInvalidToken},
		{"alg none", unsigned, ErrInvalidToken},
		{"no user", noUser, ErrMissingUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tokens.Validate(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewTokens_EmptySecret(t *testing.T) {
	_, err := NewTokens("", time.Hour)
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestFromContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{UserID: "user-1", Role: domain.RoleUser})
	id, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "user-1", id.UserID)
}
