package authz

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/modeltrack/modeltrack/pkg/auth"
	"github.com/modeltrack/modeltrack/pkg/authstore"
	"github.com/modeltrack/modeltrack/pkg/permissions"
	"github.com/modeltrack/modeltrack/pkg/routes"
	"github.com/modeltrack/modeltrack/pkg/tracking"
)

// errBadRequest marks request-parameter failures so the middleware can map
// them to a 400 instead of a 500.
var errBadRequest = errors.New("bad request")

// Error codes carried in JSON error bodies.
const (
	codePermissionDenied = "PERMISSION_DENIED"
	codeResourceNotFound = "RESOURCE_DOES_NOT_EXIST"
	codeInvalidParameter = "INVALID_PARAMETER_VALUE"
	codeInternalError    = "INTERNAL_ERROR"
)

// Config assembles an Authorizer.
type Config struct {
	Perms             PermissionStore
	Tracking          TrackingStore
	DefaultPermission permissions.Permission
	// Realm is sent in basic-auth challenges.
	Realm string
	// Tokens enables bearer-token authentication when non-nil.
	Tokens *auth.TokenVerifier
	// MaxRefillFetches caps store round-trips per redacted search response.
	// Zero means unlimited.
	MaxRefillFetches int
	Logger           *slog.Logger
}

// Authorizer enforces per-route authorization and post-processes search
// responses. Its dispatch tables are built once at construction.
type Authorizer struct {
	resolver         *Resolver
	perms            PermissionStore
	tracking         TrackingStore
	realm            string
	tokens           *auth.TokenVerifier
	maxRefillFetches int
	logger           *slog.Logger

	validators  map[RouteKey]validator
	filters     map[RouteKey]responseFilter
	unprotected mapset.Set[RouteKey]
	// unprotectedPrefixes covers static assets, which have no fixed route key.
	unprotectedPrefixes []string
}

// New builds an Authorizer with its validator and response-filter tables.
func New(cfg Config) *Authorizer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	a := &Authorizer{
		resolver:         NewResolver(cfg.Perms, cfg.Tracking, cfg.DefaultPermission),
		perms:            cfg.Perms,
		tracking:         cfg.Tracking,
		realm:            cfg.Realm,
		tokens:           cfg.Tokens,
		maxRefillFetches: cfg.MaxRefillFetches,
		logger:           cfg.Logger,
		unprotected: mapset.NewSet(
			RouteKey{routes.Home, http.MethodGet},
			RouteKey{routes.Signup, http.MethodGet},
			RouteKey{routes.CreateUser, http.MethodPost},
			RouteKey{"/healthz", http.MethodGet},
		),
		unprotectedPrefixes: []string{"/static/", "/favicon.ico"},
	}
	a.validators = buildValidators(a.resolver)
	a.filters = a.buildResponseFilters()
	return a
}

// Resolver exposes the permission resolver for handlers that need direct
// capability checks (e.g. listing a user's own grants).
func (a *Authorizer) Resolver() *Resolver {
	return a.resolver
}

func (a *Authorizer) isUnprotected(r *http.Request) bool {
	if a.unprotected.Contains(RouteKey{r.URL.Path, r.Method}) {
		return true
	}
	for _, prefix := range a.unprotectedPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// authenticate verifies the request's credentials and returns the caller's
// username. Malformed headers, unknown users, and wrong passwords all
// produce auth.ErrUnauthenticated; store failures propagate.
func (a *Authorizer) authenticate(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")

	if a.tokens != nil {
		if scheme, _, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return a.tokens.ParseBearerToken(header)
		}
	}

	username, password, err := auth.ParseBasicAuth(header)
	if err != nil {
		return "", err
	}
	ok, err := a.perms.Authenticate(username, password)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", auth.ErrUnauthenticated
	}
	return username, nil
}

// Middleware returns the request-authorization middleware. Terminal
// outcomes per request: pass-through (unprotected route), 401 with a
// basic-auth challenge, 403 permission denied, 404 for name-based lookups
// of absent resources, or the handler running with the caller's identity in
// the request context.
func (a *Authorizer) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a.isUnprotected(r) {
				next.ServeHTTP(w, r)
				return
			}

			username, err := a.authenticate(r)
			if err != nil {
				if errors.Is(err, auth.ErrUnauthenticated) {
					auth.WriteChallenge(w, a.realm)
					return
				}
				a.writeError(w, http.StatusInternalServerError, codeInternalError, "authentication check failed")
				return
			}

			user, err := a.perms.GetUser(username)
			if err != nil {
				if errors.Is(err, authstore.ErrNotFound) {
					// Token subjects can outlive their accounts.
					auth.WriteChallenge(w, a.realm)
					return
				}
				a.writeError(w, http.StatusInternalServerError, codeInternalError, "authentication check failed")
				return
			}

			ctx := auth.WithIdentity(r.Context(), auth.Identity{Username: user.Username, IsAdmin: user.IsAdmin})
			r = r.WithContext(ctx)

			// Administrators bypass per-resource checks entirely.
			if user.IsAdmin {
				next.ServeHTTP(w, r)
				return
			}

			key := RouteKey{r.URL.Path, r.Method}
			check, ok := a.validators[key]
			if !ok {
				// No validator registered: the route is allowed as-is.
				a.logger.Debug("no validator for route", "path", key.Path, "method", key.Method)
				next.ServeHTTP(w, r)
				return
			}

			params, err := paramsFromRequest(r)
			if err != nil {
				a.writeError(w, http.StatusBadRequest, codeInvalidParameter, err.Error())
				return
			}

			allowed, err := check(params, user.Username)
			if err != nil {
				a.writeValidatorError(w, err)
				return
			}
			if !allowed {
				a.writeError(w, http.StatusForbidden, codePermissionDenied, "Permission denied")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeValidatorError maps a validator failure onto the error taxonomy:
// absent resources are 404, malformed parameters are 400, anything else is
// a backend failure and must not be downgraded to a permission default.
func (a *Authorizer) writeValidatorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tracking.ErrNotFound):
		a.writeError(w, http.StatusNotFound, codeResourceNotFound, err.Error())
	case errors.Is(err, errBadRequest):
		a.writeError(w, http.StatusBadRequest, codeInvalidParameter, err.Error())
	default:
		a.logger.Error("authorization check failed", "error", err)
		a.writeError(w, http.StatusInternalServerError, codeInternalError, "authorization check failed")
	}
}

func (a *Authorizer) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
