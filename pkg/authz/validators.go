package authz

import (
	"net/http"

	"github.com/modeltrack/modeltrack/pkg/permissions"
	"github.com/modeltrack/modeltrack/pkg/routes"
)

// validator decides whether an authenticated non-admin user may perform a
// request. It locates the target resource from the request parameters,
// resolves the user's permission, and checks the single capability bit the
// route requires.
type validator func(params *requestParams, username string) (bool, error)

// capability selects one bit of a resolved permission.
type capability func(permissions.Permission) bool

var (
	canRead   capability = func(p permissions.Permission) bool { return p.CanRead }
	canUpdate capability = func(p permissions.Permission) bool { return p.CanUpdate }
	canDelete capability = func(p permissions.Permission) bool { return p.CanDelete }
	canManage capability = func(p permissions.Permission) bool { return p.CanManage }
)

func (r *Resolver) experimentValidator(check capability) validator {
	return func(params *requestParams, username string) (bool, error) {
		experimentID, err := params.get("experiment_id")
		if err != nil {
			return false, err
		}
		perm, err := r.ExperimentPermission(experimentID, username)
		if err != nil {
			return false, err
		}
		return check(perm), nil
	}
}

func (r *Resolver) experimentByNameValidator(check capability) validator {
	return func(params *requestParams, username string) (bool, error) {
		name, err := params.get("experiment_name")
		if err != nil {
			return false, err
		}
		perm, err := r.ExperimentPermissionByName(name, username)
		if err != nil {
			return false, err
		}
		return check(perm), nil
	}
}

func (r *Resolver) runValidator(check capability) validator {
	return func(params *requestParams, username string) (bool, error) {
		runID, err := params.get("run_id")
		if err != nil {
			return false, err
		}
		perm, err := r.RunPermission(runID, username)
		if err != nil {
			return false, err
		}
		return check(perm), nil
	}
}

func (r *Resolver) registeredModelValidator(check capability) validator {
	return func(params *requestParams, username string) (bool, error) {
		name, err := params.get("name")
		if err != nil {
			return false, err
		}
		perm, err := r.RegisteredModelPermission(name, username)
		if err != nil {
			return false, err
		}
		return check(perm), nil
	}
}

// usernameIsSender allows a user to act only on their own account.
func usernameIsSender(params *requestParams, sender string) (bool, error) {
	username, err := params.get("username")
	if err != nil {
		return false, err
	}
	return username == sender, nil
}

// adminOnly always denies: only administrators may perform the operation,
// and administrators never reach validators.
func adminOnly(_ *requestParams, _ string) (bool, error) {
	return false, nil
}

// buildValidators constructs the (path, method) dispatch table. Routes
// absent from the table are not validated; search routes are instead
// post-processed by the response filter.
func buildValidators(r *Resolver) map[RouteKey]validator {
	return map[RouteKey]validator{
		// Experiments. Restore is gated on delete: undeleting is the
		// inverse of deleting and needs the same capability.
		{routes.GetExperiment, http.MethodGet}:        r.experimentValidator(canRead),
		{routes.GetExperimentByName, http.MethodGet}:  r.experimentByNameValidator(canRead),
		{routes.UpdateExperiment, http.MethodPost}:    r.experimentValidator(canUpdate),
		{routes.DeleteExperiment, http.MethodPost}:    r.experimentValidator(canDelete),
		{routes.RestoreExperiment, http.MethodPost}:   r.experimentValidator(canDelete),

		// Runs. Creating a run mutates its experiment.
		{routes.CreateRun, http.MethodPost}:       r.experimentValidator(canUpdate),
		{routes.GetRun, http.MethodGet}:           r.runValidator(canRead),
		{routes.UpdateRun, http.MethodPost}:       r.runValidator(canUpdate),
		{routes.DeleteRun, http.MethodPost}:       r.runValidator(canDelete),
		{routes.RestoreRun, http.MethodPost}:      r.runValidator(canDelete),
		{routes.LogMetric, http.MethodPost}:       r.runValidator(canUpdate),
		{routes.LogParam, http.MethodPost}:        r.runValidator(canUpdate),
		{routes.SetTag, http.MethodPost}:          r.runValidator(canUpdate),
		{routes.GetMetricHistory, http.MethodGet}: r.runValidator(canRead),

		// Model registry.
		{routes.GetRegisteredModel, http.MethodGet}:       r.registeredModelValidator(canRead),
		{routes.UpdateRegisteredModel, http.MethodPatch}:  r.registeredModelValidator(canUpdate),
		{routes.DeleteRegisteredModel, http.MethodDelete}: r.registeredModelValidator(canDelete),

		// Audit log is for administrators only.
		{routes.ListAuditEvents, http.MethodGet}: adminOnly,

		// Users.
		{routes.GetUser, http.MethodGet}:              usernameIsSender,
		{routes.UpdateUserPassword, http.MethodPatch}: usernameIsSender,
		{routes.UpdateUserAdmin, http.MethodPatch}:    adminOnly,
		{routes.DeleteUser, http.MethodDelete}:        adminOnly,

		// Grant management requires MANAGE on the target resource.
		{routes.CreateExperimentPermission, http.MethodPost}:   r.experimentValidator(canManage),
		{routes.GetExperimentPermission, http.MethodGet}:       r.experimentValidator(canManage),
		{routes.UpdateExperimentPermission, http.MethodPatch}:  r.experimentValidator(canManage),
		{routes.DeleteExperimentPermission, http.MethodDelete}: r.experimentValidator(canManage),

		{routes.CreateRegisteredModelPermission, http.MethodPost}:   r.registeredModelValidator(canManage),
		{routes.GetRegisteredModelPermission, http.MethodGet}:       r.registeredModelValidator(canManage),
		{routes.UpdateRegisteredModelPermission, http.MethodPatch}:  r.registeredModelValidator(canManage),
		{routes.DeleteRegisteredModelPermission, http.MethodDelete}: r.registeredModelValidator(canManage),
	}
}
