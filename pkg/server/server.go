// Package server wires the tracking API: HTTP routing, request handlers,
// and the authorization middleware in front of them.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/modeltrack/modeltrack/pkg/audit"
	"github.com/modeltrack/modeltrack/pkg/auth"
	"github.com/modeltrack/modeltrack/pkg/authstore"
	"github.com/modeltrack/modeltrack/pkg/authz"
	"github.com/modeltrack/modeltrack/pkg/config"
	"github.com/modeltrack/modeltrack/pkg/routes"
	"github.com/modeltrack/modeltrack/pkg/tracking"
)

// Server holds the stores and the authorizer behind the tracking API.
type Server struct {
	cfg      *config.Config
	users    *authstore.Store
	tracking *tracking.Store
	authz    *authz.Authorizer
	tokens   *auth.TokenVerifier
	audit    *audit.Store
	logger   *slog.Logger
}

// New assembles a Server from its stores and configuration. tokens may be
// nil when bearer-token sessions are not configured; auditStore may be nil
// to disable the audit trail.
func New(cfg *config.Config, users *authstore.Store, trackingStore *tracking.Store, authorizer *authz.Authorizer, tokens *auth.TokenVerifier, auditStore *audit.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		users:    users,
		tracking: trackingStore,
		authz:    authorizer,
		tokens:   tokens,
		audit:    auditStore,
		logger:   logger,
	}
}

// Handler builds the full router. The authorization middleware guards every
// route; the response-filter middleware runs inside it so search responses
// see the caller's identity.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(s.requestLogger)
	// Audit wraps the authorization middleware so denials are recorded too;
	// identity attaches inside, so pre-auth rejections log as anonymous.
	if s.audit != nil && s.cfg.Audit.Enabled {
		r.Use(audit.Middleware(s.audit, s.cfg.Audit, s.logger))
	}
	r.Use(s.authz.Middleware())
	r.Use(s.authz.ResponseFilterMiddleware())

	r.Get("/healthz", s.healthHandler)
	r.Get(routes.ListAuditEvents, s.listAuditEventsHandler)

	r.Get(routes.Home, s.homeHandler)
	r.Get(routes.Signup, s.signupPageHandler)

	r.Post(routes.CreateUser, s.createUserHandler)
	r.Get(routes.GetUser, s.getUserHandler)
	r.Patch(routes.UpdateUserPassword, s.updateUserPasswordHandler)
	r.Patch(routes.UpdateUserAdmin, s.updateUserAdminHandler)
	r.Delete(routes.DeleteUser, s.deleteUserHandler)
	r.Post(routes.CreateSession, s.createSessionHandler)

	r.Post(routes.CreateExperiment, s.createExperimentHandler)
	r.Get(routes.GetExperiment, s.getExperimentHandler)
	r.Get(routes.GetExperimentByName, s.getExperimentByNameHandler)
	r.Post(routes.UpdateExperiment, s.updateExperimentHandler)
	r.Post(routes.DeleteExperiment, s.deleteExperimentHandler)
	r.Post(routes.RestoreExperiment, s.restoreExperimentHandler)
	r.Get(routes.SearchExperiments, s.searchExperimentsHandler)
	r.Post(routes.SearchExperiments, s.searchExperimentsHandler)

	r.Post(routes.CreateRun, s.createRunHandler)
	r.Get(routes.GetRun, s.getRunHandler)
	r.Post(routes.UpdateRun, s.updateRunHandler)
	r.Post(routes.DeleteRun, s.deleteRunHandler)
	r.Post(routes.RestoreRun, s.restoreRunHandler)
	r.Post(routes.LogMetric, s.logMetricHandler)
	r.Post(routes.LogParam, s.logParamHandler)
	r.Post(routes.SetTag, s.setTagHandler)
	r.Get(routes.GetMetricHistory, s.getMetricHistoryHandler)

	r.Post(routes.CreateRegisteredModel, s.createRegisteredModelHandler)
	r.Get(routes.GetRegisteredModel, s.getRegisteredModelHandler)
	r.Patch(routes.UpdateRegisteredModel, s.updateRegisteredModelHandler)
	r.Delete(routes.DeleteRegisteredModel, s.deleteRegisteredModelHandler)
	r.Get(routes.SearchRegisteredModels, s.searchRegisteredModelsHandler)
	r.Post(routes.SearchRegisteredModels, s.searchRegisteredModelsHandler)

	r.Post(routes.CreateExperimentPermission, s.createExperimentPermissionHandler)
	r.Get(routes.GetExperimentPermission, s.getExperimentPermissionHandler)
	r.Patch(routes.UpdateExperimentPermission, s.updateExperimentPermissionHandler)
	r.Delete(routes.DeleteExperimentPermission, s.deleteExperimentPermissionHandler)

	r.Post(routes.CreateRegisteredModelPermission, s.createRegisteredModelPermissionHandler)
	r.Get(routes.GetRegisteredModelPermission, s.getRegisteredModelPermissionHandler)
	r.Patch(routes.UpdateRegisteredModelPermission, s.updateRegisteredModelPermissionHandler)
	r.Delete(routes.DeleteRegisteredModelPermission, s.deleteRegisteredModelPermissionHandler)

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) homeHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":   "modeltrack tracking server",
		"signup": routes.Signup,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

// writeStoreError maps store sentinel failures onto API status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tracking.ErrNotFound), errors.Is(err, authstore.ErrNotFound):
		writeError(w, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", err.Error())
	case errors.Is(err, tracking.ErrExists), errors.Is(err, authstore.ErrExists):
		writeError(w, http.StatusConflict, "RESOURCE_ALREADY_EXISTS", err.Error())
	case errors.Is(err, authstore.ErrInvalidPermission):
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

// decodeBody parses a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}
