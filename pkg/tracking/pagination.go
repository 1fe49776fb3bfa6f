package tracking

import (
	"encoding/base64"
	"fmt"
	"strconv"
)

// Page tokens are base64-encoded decimal offsets into the ordered,
// unfiltered result sequence. Encoding the same offset always yields the
// same bytes, so callers may compare tokens for equality. An empty token
// means offset zero (first page) on input and "no more results" on output.

// EncodePageToken returns the opaque token for a numeric offset.
func EncodePageToken(offset int) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

// DecodePageToken returns the offset encoded in a token. An empty token
// decodes to zero.
func DecodePageToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("invalid page token %q: %w", token, err)
	}
	offset, err := strconv.Atoi(string(decoded))
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("invalid page token %q: not a valid offset", token)
	}
	return offset, nil
}
