package auth

import (
	"encoding/base64"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func basicHeader(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestParseBasicAuth(t *testing.T) {
	user, pass, err := ParseBasicAuth(basicHeader("alice", "s3cret"))
	require.NoError(t, err)
	assert.Equal(t, "alice", user)
	assert.Equal(t, "s3cret", pass)
}

func TestParseBasicAuthSchemeCaseInsensitive(t *testing.T) {
	header := "bAsIc " + base64.StdEncoding.EncodeToString([]byte("bob:pw"))
	user, pass, err := ParseBasicAuth(header)
	require.NoError(t, err)
	assert.Equal(t, "bob", user)
	assert.Equal(t, "pw", pass)
}

func TestParseBasicAuthPasswordMayContainColons(t *testing.T) {
	user, pass, err := ParseBasicAuth(basicHeader("carol", "a:b:c"))
	require.NoError(t, err)
	assert.Equal(t, "carol", user)
	assert.Equal(t, "a:b:c", pass)
}

func TestParseBasicAuthMalformed(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"empty", ""},
		{"wrong scheme", "Bearer abc"},
		{"no payload", "Basic"},
		{"invalid base64", "Basic not-valid-base64!"},
		{"missing colon", "Basic " + base64.StdEncoding.EncodeToString([]byte("justauser"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseBasicAuth(tt.header)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}

func TestWriteChallenge(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteChallenge(rr, "modeltrack")

	assert.Equal(t, 401, rr.Code)
	assert.Equal(t, `Basic realm="modeltrack"`, rr.Header().Get("WWW-Authenticate"))
	assert.Contains(t, rr.Body.String(), "UNAUTHENTICATED")
}
