// Package routes defines the fixed API paths. The authorization layer keys
// its validator and response-filter tables on these exact (path, method)
// pairs, so handlers and tables must agree on a single source of truth.
package routes

// UI and account bootstrap.
const (
	Home   = "/"
	Signup = "/signup"
)

// User management.
const (
	CreateUser         = "/api/2.0/tracking/users/create"
	GetUser            = "/api/2.0/tracking/users/get"
	UpdateUserPassword = "/api/2.0/tracking/users/update-password"
	UpdateUserAdmin    = "/api/2.0/tracking/users/update-admin"
	DeleteUser         = "/api/2.0/tracking/users/delete"
	CreateSession      = "/api/2.0/tracking/users/token"
)

// Experiments.
const (
	CreateExperiment    = "/api/2.0/tracking/experiments/create"
	GetExperiment       = "/api/2.0/tracking/experiments/get"
	GetExperimentByName = "/api/2.0/tracking/experiments/get-by-name"
	UpdateExperiment    = "/api/2.0/tracking/experiments/update"
	DeleteExperiment    = "/api/2.0/tracking/experiments/delete"
	RestoreExperiment   = "/api/2.0/tracking/experiments/restore"
	SearchExperiments   = "/api/2.0/tracking/experiments/search"
)

// Runs.
const (
	CreateRun        = "/api/2.0/tracking/runs/create"
	GetRun           = "/api/2.0/tracking/runs/get"
	UpdateRun        = "/api/2.0/tracking/runs/update"
	DeleteRun        = "/api/2.0/tracking/runs/delete"
	RestoreRun       = "/api/2.0/tracking/runs/restore"
	LogMetric        = "/api/2.0/tracking/runs/log-metric"
	LogParam         = "/api/2.0/tracking/runs/log-parameter"
	SetTag           = "/api/2.0/tracking/runs/set-tag"
	GetMetricHistory = "/api/2.0/tracking/metrics/get-history"
)

// Model registry.
const (
	CreateRegisteredModel  = "/api/2.0/tracking/registered-models/create"
	GetRegisteredModel     = "/api/2.0/tracking/registered-models/get"
	UpdateRegisteredModel  = "/api/2.0/tracking/registered-models/update"
	DeleteRegisteredModel  = "/api/2.0/tracking/registered-models/delete"
	SearchRegisteredModels = "/api/2.0/tracking/registered-models/search"
)

// Audit log.
const (
	ListAuditEvents = "/api/2.0/tracking/audit/list"
)

// Permission grants.
const (
	CreateExperimentPermission = "/api/2.0/tracking/experiments/permissions/create"
	GetExperimentPermission    = "/api/2.0/tracking/experiments/permissions/get"
	UpdateExperimentPermission = "/api/2.0/tracking/experiments/permissions/update"
	DeleteExperimentPermission = "/api/2.0/tracking/experiments/permissions/delete"

	CreateRegisteredModelPermission = "/api/2.0/tracking/registered-models/permissions/create"
	GetRegisteredModelPermission    = "/api/2.0/tracking/registered-models/permissions/get"
	UpdateRegisteredModelPermission = "/api/2.0/tracking/registered-models/permissions/update"
	DeleteRegisteredModelPermission = "/api/2.0/tracking/registered-models/permissions/delete"
)
