package authz

import (
	"errors"
	"fmt"

	"github.com/modeltrack/modeltrack/pkg/authstore"
	"github.com/modeltrack/modeltrack/pkg/permissions"
)

// Resolver turns (resource, username) pairs into effective permissions.
// A missing grant falls back to the deployment's default permission; any
// other store failure propagates, so a transient outage can never be
// mistaken for "no grant". Nothing is cached across requests: grants are
// externally mutable and every request re-reads them.
type Resolver struct {
	perms       PermissionStore
	tracking    TrackingStore
	defaultPerm permissions.Permission
}

// NewResolver creates a Resolver with the given default permission.
func NewResolver(perms PermissionStore, trackingStore TrackingStore, defaultPerm permissions.Permission) *Resolver {
	return &Resolver{perms: perms, tracking: trackingStore, defaultPerm: defaultPerm}
}

// permissionOrDefault applies the fallback rule to a grant lookup result.
func (r *Resolver) permissionOrDefault(name string, err error) (permissions.Permission, error) {
	if err != nil {
		if errors.Is(err, authstore.ErrNotFound) {
			return r.defaultPerm, nil
		}
		return permissions.Permission{}, err
	}
	perm, err := permissions.Get(name)
	if err != nil {
		// A grant row holding an unknown level is store corruption, not a
		// permission decision.
		return permissions.Permission{}, fmt.Errorf("stored grant: %w", err)
	}
	return perm, nil
}

// ExperimentPermission resolves a user's permission on an experiment.
func (r *Resolver) ExperimentPermission(experimentID, username string) (permissions.Permission, error) {
	grant, err := r.perms.GetExperimentPermission(experimentID, username)
	if err != nil {
		return r.permissionOrDefault("", err)
	}
	return r.permissionOrDefault(grant.Permission, nil)
}

// ExperimentPermissionByName resolves an experiment by name first, then the
// permission on it. The name lookup runs before any permission evaluation,
// so a missing experiment surfaces as not-found rather than denied.
func (r *Resolver) ExperimentPermissionByName(name, username string) (permissions.Permission, error) {
	exp, err := r.tracking.GetExperimentByName(name)
	if err != nil {
		return permissions.Permission{}, err
	}
	return r.ExperimentPermission(exp.ID, username)
}

// RunPermission resolves a user's permission on a run. Runs carry no grants
// of their own: the run's owning experiment is looked up on every call and
// its grant governs, never a run-specific one.
func (r *Resolver) RunPermission(runID, username string) (permissions.Permission, error) {
	run, err := r.tracking.GetRun(runID)
	if err != nil {
		return permissions.Permission{}, err
	}
	return r.ExperimentPermission(run.ExperimentID, username)
}

// RegisteredModelPermission resolves a user's permission on a registered
// model.
func (r *Resolver) RegisteredModelPermission(name, username string) (permissions.Permission, error) {
	grant, err := r.perms.GetRegisteredModelPermission(name, username)
	if err != nil {
		return r.permissionOrDefault("", err)
	}
	return r.permissionOrDefault(grant.Permission, nil)
}

// ExperimentReadPredicate bulk-fetches the user's experiment grants in one
// store call and returns a readable check over experiment IDs. The redactor
// takes one snapshot per request so filtering and refilling make consistent
// decisions even if grants mutate mid-request.
func (r *Resolver) ExperimentReadPredicate(username string) (func(experimentID string) bool, error) {
	grants, err := r.perms.ListExperimentPermissions(username)
	if err != nil {
		return nil, err
	}
	canRead := make(map[string]bool, len(grants))
	for _, grant := range grants {
		perm, err := permissions.Get(grant.Permission)
		if err != nil {
			return nil, fmt.Errorf("stored grant: %w", err)
		}
		canRead[grant.ExperimentID] = perm.CanRead
	}
	defaultCanRead := r.defaultPerm.CanRead
	return func(experimentID string) bool {
		if readable, ok := canRead[experimentID]; ok {
			return readable
		}
		return defaultCanRead
	}, nil
}

// ModelReadPredicate is the registered-model counterpart of
// ExperimentReadPredicate, keyed by model name.
func (r *Resolver) ModelReadPredicate(username string) (func(name string) bool, error) {
	grants, err := r.perms.ListRegisteredModelPermissions(username)
	if err != nil {
		return nil, err
	}
	canRead := make(map[string]bool, len(grants))
	for _, grant := range grants {
		perm, err := permissions.Get(grant.Permission)
		if err != nil {
			return nil, fmt.Errorf("stored grant: %w", err)
		}
		canRead[grant.Name] = perm.CanRead
	}
	defaultCanRead := r.defaultPerm.CanRead
	return func(name string) bool {
		if readable, ok := canRead[name]; ok {
			return readable
		}
		return defaultCanRead
	}, nil
}
