// Package auth extracts caller identity from inbound requests. It supports
// HTTP basic auth and, when a signing secret is configured, HMAC-signed
// bearer tokens. Malformed credentials of any kind fold into a single
// unauthenticated failure so decode details never leak to callers.
package auth

import (
	"context"
	"net/http"
)

// identityCtxKey is an unexported type used as the context key for Identity.
type identityCtxKey struct{}

// Identity is the authenticated caller of a request.
type Identity struct {
	Username string
	IsAdmin  bool
}

// WithIdentity returns a new context with the given Identity attached. If
// an IdentityRecorder is present on the context, the identity is recorded
// there as well so middleware outside the authentication layer can observe
// the caller.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	if rec, ok := ctx.Value(recorderCtxKey{}).(*IdentityRecorder); ok {
		rec.id = id
		rec.set = true
	}
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// IdentityFromContext retrieves the Identity from the context.
// Returns the zero value and false if no identity is set.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(Identity)
	return id, ok
}

// recorderCtxKey is the context key for IdentityRecorder.
type recorderCtxKey struct{}

// IdentityRecorder captures the identity set deeper in a middleware chain.
// Context values only flow inward, so an outer middleware that needs the
// authenticated caller after the fact plants a recorder before handing off.
type IdentityRecorder struct {
	id  Identity
	set bool
}

// Identity returns the recorded identity, if any was set.
func (r *IdentityRecorder) Identity() (Identity, bool) {
	return r.id, r.set
}

// WithIdentityRecorder attaches a fresh recorder to the context and returns
// it alongside the derived context.
func WithIdentityRecorder(ctx context.Context) (context.Context, *IdentityRecorder) {
	rec := &IdentityRecorder{}
	return context.WithValue(ctx, recorderCtxKey{}, rec), rec
}

// WriteChallenge responds with a basic-auth challenge for the given realm.
func WriteChallenge(w http.ResponseWriter, realm string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"UNAUTHENTICATED","message":"You are not authenticated. Provide a valid username and password."}`))
}
