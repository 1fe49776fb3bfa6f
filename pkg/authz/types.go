// Package authz is the request-authorization layer in front of the tracking
// API. It extracts the caller's identity, resolves which resource a request
// targets, resolves the caller's permission on that resource, and enforces
// the capability each route requires. For search endpoints it additionally
// redacts unauthorized items from result pages and refills them from the
// store, preserving the API's pagination-token semantics.
package authz

import (
	"github.com/modeltrack/modeltrack/pkg/authstore"
	"github.com/modeltrack/modeltrack/pkg/tracking"
)

// PermissionStore is the slice of the user/grant store the authorization
// layer consumes. Implementations must return authstore.ErrNotFound for
// missing rows and propagate every other failure unchanged; the resolver's
// fallback-to-default depends on that distinction.
type PermissionStore interface {
	Authenticate(username, password string) (bool, error)
	GetUser(username string) (*authstore.User, error)
	GetExperimentPermission(experimentID, username string) (*authstore.ExperimentPermission, error)
	GetRegisteredModelPermission(name, username string) (*authstore.RegisteredModelPermission, error)
	ListExperimentPermissions(username string) ([]authstore.ExperimentPermission, error)
	ListRegisteredModelPermissions(username string) ([]authstore.RegisteredModelPermission, error)
	CreateExperimentPermission(experimentID, username, permission string) (*authstore.ExperimentPermission, error)
	CreateRegisteredModelPermission(name, username, permission string) (*authstore.RegisteredModelPermission, error)
}

// TrackingStore is the read-only slice of the tracking store the
// authorization layer consumes: resource indirection lookups plus the paged
// searches the redaction refill loop re-queries.
type TrackingStore interface {
	GetRun(id string) (*tracking.Run, error)
	GetExperimentByName(name string) (*tracking.Experiment, error)
	SearchExperiments(filter, orderBy string, maxResults int, pageToken string) ([]tracking.Experiment, string, error)
	SearchRegisteredModels(filter, orderBy string, maxResults int, pageToken string) ([]tracking.RegisteredModel, string, error)
}

// RouteKey identifies one endpoint in the validator and response-filter
// tables.
type RouteKey struct {
	Path   string
	Method string
}
