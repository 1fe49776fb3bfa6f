package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier validates HMAC-signed bearer tokens. It is an optional
// alternative to basic auth for clients that hold a session token; the
// server only enables it when a signing secret is configured.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier creates a verifier for tokens signed with the given
// shared secret. An empty secret disables bearer auth entirely.
func NewTokenVerifier(secret string) *TokenVerifier {
	if secret == "" {
		return nil
	}
	return &TokenVerifier{secret: []byte(secret)}
}

// ParseBearerToken extracts the username from a "Bearer <jwt>" Authorization
// header value. The token must be HS256-signed with the configured secret
// and carry the username in the subject claim. Any failure returns
// ErrUnauthenticated.
func (v *TokenVerifier) ParseBearerToken(header string) (string, error) {
	scheme, payload, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrUnauthenticated
	}

	token, err := jwt.Parse(strings.TrimSpace(payload), func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnauthenticated
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return "", ErrUnauthenticated
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", ErrUnauthenticated
	}
	return subject, nil
}

// IssueToken mints a signed token for a username, valid for the given
// duration. Used by the session endpoint after basic-auth verification.
func (v *TokenVerifier) IssueToken(username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
