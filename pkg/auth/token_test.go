package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	v := NewTokenVerifier("test-secret")
	require.NotNil(t, v)

	token, err := v.IssueToken("alice", time.Hour)
	require.NoError(t, err)

	user, err := v.ParseBearerToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "alice", user)
}

func TestTokenWrongSecret(t *testing.T) {
	issuer := NewTokenVerifier("secret-a")
	verifier := NewTokenVerifier("secret-b")

	token, err := issuer.IssueToken("alice", time.Hour)
	require.NoError(t, err)

	_, err = verifier.ParseBearerToken("Bearer " + token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestTokenExpired(t *testing.T) {
	v := NewTokenVerifier("test-secret")

	token, err := v.IssueToken("alice", -time.Minute)
	require.NoError(t, err)

	_, err = v.ParseBearerToken("Bearer " + token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestTokenMalformedHeader(t *testing.T) {
	v := NewTokenVerifier("test-secret")

	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer not.a.token"} {
		_, err := v.ParseBearerToken(header)
		assert.ErrorIs(t, err, ErrUnauthenticated, "header %q", header)
	}
}

func TestNewTokenVerifierEmptySecret(t *testing.T) {
	assert.Nil(t, NewTokenVerifier(""))
}

func TestIdentityContext(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{Username: "alice", IsAdmin: true})
	id, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "alice", id.Username)
	assert.True(t, id.IsAdmin)
}
