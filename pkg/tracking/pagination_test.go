package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageTokenRoundTrip(t *testing.T) {
	for _, offset := range []int{0, 1, 5, 100, 99999} {
		token := EncodePageToken(offset)
		decoded, err := DecodePageToken(token)
		require.NoError(t, err)
		assert.Equal(t, offset, decoded)

		// Equal offsets must produce byte-identical tokens.
		assert.Equal(t, token, EncodePageToken(offset))
	}
}

func TestDecodeEmptyToken(t *testing.T) {
	offset, err := DecodePageToken("")
	require.NoError(t, err)
	assert.Zero(t, offset)
}

func TestDecodeInvalidToken(t *testing.T) {
	for _, token := range []string{"not base64!", "bm90LWEtbnVtYmVy", EncodePageToken(-5)} {
		_, err := DecodePageToken(token)
		assert.Error(t, err, "token %q", token)
	}
}
