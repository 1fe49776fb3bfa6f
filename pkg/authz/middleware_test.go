package authz

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modeltrack/modeltrack/pkg/auth"
	"github.com/modeltrack/modeltrack/pkg/permissions"
	"github.com/modeltrack/modeltrack/pkg/routes"
	"github.com/modeltrack/modeltrack/pkg/tracking"
)

const testRealm = "modeltrack"

func basicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func newTestAuthorizer(t *testing.T, perms *fakePermStore, trackingStore *fakeTrackingStore, defaultPerm permissions.Permission) *Authorizer {
	t.Helper()
	return New(Config{
		Perms:             perms,
		Tracking:          trackingStore,
		DefaultPermission: defaultPerm,
		Realm:             testRealm,
	})
}

// protect wraps a recording handler in the authorization middleware.
func protect(a *Authorizer, reached *bool) http.Handler {
	return a.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*reached = true
		w.WriteHeader(http.StatusOK)
	}))
}

func TestUnprotectedRoutesSkipAuthentication(t *testing.T) {
	a := newTestAuthorizer(t, newFakePermStore(), newFakeTrackingStore(), permissions.Read)

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodPost, routes.CreateUser},
		{http.MethodGet, routes.Signup},
		{http.MethodGet, routes.Home},
		{http.MethodGet, "/static/app.css"},
	} {
		reached := false
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader("{}"))
		rec := httptest.NewRecorder()
		protect(a, &reached).ServeHTTP(rec, req)
		assert.True(t, reached, "%s %s should bypass authentication", tc.method, tc.path)
	}
}

func TestMissingCredentialsChallenge(t *testing.T) {
	a := newTestAuthorizer(t, newFakePermStore(), newFakeTrackingStore(), permissions.Read)

	reached := false
	req := httptest.NewRequest(http.MethodGet, routes.GetExperiment+"?experiment_id=e1", nil)
	rec := httptest.NewRecorder()
	protect(a, &reached).ServeHTTP(rec, req)

	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Basic realm="modeltrack"`, rec.Header().Get("WWW-Authenticate"))
	assert.Contains(t, rec.Body.String(), "UNAUTHENTICATED")
}

func TestMalformedCredentialsChallenge(t *testing.T) {
	perms := newFakePermStore()
	perms.addUser("alice", "secret", false)
	a := newTestAuthorizer(t, perms, newFakeTrackingStore(), permissions.Read)

	for _, header := range []string{
		"Basic not-valid-base64!",
		"Basic " + base64.StdEncoding.EncodeToString([]byte("no-colon")),
		"Digest abc",
		basicAuth("alice", "wrong-password"),
		basicAuth("nobody", "secret"),
	} {
		reached := false
		req := httptest.NewRequest(http.MethodGet, routes.GetExperiment+"?experiment_id=e1", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		protect(a, &reached).ServeHTTP(rec, req)

		assert.False(t, reached, "header %q should not authenticate", header)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
	}
}

func TestAdminBypassesValidators(t *testing.T) {
	perms := newFakePermStore()
	perms.addUser("root", "rootpw", true)
	a := newTestAuthorizer(t, perms, newFakeTrackingStore(), permissions.NoPermissions)

	// update-admin is denied to every non-admin, and the run does not even
	// exist; the admin passes both.
	for _, tc := range []struct {
		method, path, body string
	}{
		{http.MethodPatch, routes.UpdateUserAdmin, `{"username":"bob","is_admin":true}`},
		{http.MethodPost, routes.DeleteRun, `{"run_id":"no-such-run"}`},
	} {
		reached := false
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		req.Header.Set("Authorization", basicAuth("root", "rootpw"))
		rec := httptest.NewRecorder()
		protect(a, &reached).ServeHTTP(rec, req)

		assert.True(t, reached, "%s %s should bypass validation for admins", tc.method, tc.path)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestDeniedWithoutCapability(t *testing.T) {
	perms := newFakePermStore()
	perms.addUser("alice", "secret", false)
	trackingStore := newFakeTrackingStore()
	trackingStore.runs["run-1"] = &tracking.Run{ID: "run-1", ExperimentID: "exp-1"}
	a := newTestAuthorizer(t, perms, trackingStore, permissions.Read)

	reached := false
	req := httptest.NewRequest(http.MethodPost, routes.DeleteRun, strings.NewReader(`{"run_id":"run-1"}`))
	req.Header.Set("Authorization", basicAuth("alice", "secret"))
	rec := httptest.NewRecorder()
	protect(a, &reached).ServeHTTP(rec, req)

	assert.False(t, reached)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "PERMISSION_DENIED")
}

func TestExplicitGrantAllows(t *testing.T) {
	perms := newFakePermStore()
	perms.addUser("alice", "secret", false)
	perms.expGrants["exp-1/alice"] = permissions.Manage.Name
	a := newTestAuthorizer(t, perms, newFakeTrackingStore(), permissions.NoPermissions)

	reached := false
	req := httptest.NewRequest(http.MethodPost, routes.DeleteExperiment, strings.NewReader(`{"experiment_id":"exp-1"}`))
	req.Header.Set("Authorization", basicAuth("alice", "secret"))
	rec := httptest.NewRecorder()
	protect(a, &reached).ServeHTTP(rec, req)

	assert.True(t, reached)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunUuidFallbackParameter(t *testing.T) {
	perms := newFakePermStore()
	perms.addUser("alice", "secret", false)
	trackingStore := newFakeTrackingStore()
	trackingStore.runs["run-1"] = &tracking.Run{ID: "run-1", ExperimentID: "exp-1"}
	a := newTestAuthorizer(t, perms, trackingStore, permissions.Read)

	reached := false
	req := httptest.NewRequest(http.MethodGet, routes.GetRun+"?run_uuid=run-1", nil)
	req.Header.Set("Authorization", basicAuth("alice", "secret"))
	rec := httptest.NewRecorder()
	protect(a, &reached).ServeHTTP(rec, req)

	assert.True(t, reached)
}

func TestUnknownRunIsNotFound(t *testing.T) {
	perms := newFakePermStore()
	perms.addUser("alice", "secret", false)
	a := newTestAuthorizer(t, perms, newFakeTrackingStore(), permissions.Read)

	reached := false
	req := httptest.NewRequest(http.MethodPost, routes.DeleteRun, strings.NewReader(`{"run_id":"no-such-run"}`))
	req.Header.Set("Authorization", basicAuth("alice", "secret"))
	rec := httptest.NewRecorder()
	protect(a, &reached).ServeHTTP(rec, req)

	assert.False(t, reached)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "RESOURCE_DOES_NOT_EXIST")
}

func TestUnknownExperimentNameIsNotFoundBeforeDenial(t *testing.T) {
	perms := newFakePermStore()
	perms.addUser("alice", "secret", false)
	a := newTestAuthorizer(t, perms, newFakeTrackingStore(), permissions.NoPermissions)

	reached := false
	req := httptest.NewRequest(http.MethodGet, routes.GetExperimentByName+"?experiment_name=ghost", nil)
	req.Header.Set("Authorization", basicAuth("alice", "secret"))
	rec := httptest.NewRecorder()
	protect(a, &reached).ServeHTTP(rec, req)

	assert.False(t, reached)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMissingParameterIsBadRequest(t *testing.T) {
	perms := newFakePermStore()
	perms.addUser("alice", "secret", false)
	a := newTestAuthorizer(t, perms, newFakeTrackingStore(), permissions.Read)

	reached := false
	req := httptest.NewRequest(http.MethodPost, routes.DeleteExperiment, strings.NewReader(`{}`))
	req.Header.Set("Authorization", basicAuth("alice", "secret"))
	rec := httptest.NewRecorder()
	protect(a, &reached).ServeHTTP(rec, req)

	assert.False(t, reached)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_PARAMETER_VALUE")
}

func TestUnmappedRouteIsAllowed(t *testing.T) {
	perms := newFakePermStore()
	perms.addUser("alice", "secret", false)
	a := newTestAuthorizer(t, perms, newFakeTrackingStore(), permissions.NoPermissions)

	reached := false
	req := httptest.NewRequest(http.MethodPost, routes.CreateExperiment, strings.NewReader(`{"name":"new"}`))
	req.Header.Set("Authorization", basicAuth("alice", "secret"))
	rec := httptest.NewRecorder()
	protect(a, &reached).ServeHTTP(rec, req)

	assert.True(t, reached)
}

func TestIdentityReachesHandler(t *testing.T) {
	perms := newFakePermStore()
	perms.addUser("alice", "secret", false)
	a := newTestAuthorizer(t, perms, newFakeTrackingStore(), permissions.Read)

	var got auth.Identity
	handler := a.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, routes.SearchExperiments, nil)
	req.Header.Set("Authorization", basicAuth("alice", "secret"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, "alice", got.Username)
	assert.False(t, got.IsAdmin)
}

func TestNonAdminSelfServiceRoutes(t *testing.T) {
	perms := newFakePermStore()
	perms.addUser("alice", "secret", false)
	a := newTestAuthorizer(t, perms, newFakeTrackingStore(), permissions.Read)

	// Own account: allowed.
	reached := false
	req := httptest.NewRequest(http.MethodGet, routes.GetUser+"?username=alice", nil)
	req.Header.Set("Authorization", basicAuth("alice", "secret"))
	rec := httptest.NewRecorder()
	protect(a, &reached).ServeHTTP(rec, req)
	assert.True(t, reached)

	// Someone else's account: denied.
	reached = false
	req = httptest.NewRequest(http.MethodGet, routes.GetUser+"?username=bob", nil)
	req.Header.Set("Authorization", basicAuth("alice", "secret"))
	rec = httptest.NewRecorder()
	protect(a, &reached).ServeHTTP(rec, req)
	assert.False(t, reached)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
