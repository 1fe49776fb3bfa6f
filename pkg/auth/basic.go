package auth

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrUnauthenticated is returned for any missing or malformed credential.
// Parse failures are deliberately indistinguishable from each other.
var ErrUnauthenticated = errors.New("unauthenticated")

// ParseBasicAuth extracts (username, password) from an Authorization header
// value. The scheme token must be "Basic" (case-insensitive), the payload
// must be valid standard base64, and the decoded form must contain a colon
// separator. Anything else returns ErrUnauthenticated.
func ParseBasicAuth(header string) (username, password string, err error) {
	scheme, payload, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Basic") {
		return "", "", ErrUnauthenticated
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return "", "", ErrUnauthenticated
	}
	username, password, ok = strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", ErrUnauthenticated
	}
	return username, password, nil
}
