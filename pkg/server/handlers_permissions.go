package server

import (
	"net/http"

	"github.com/modeltrack/modeltrack/pkg/authstore"
)

func experimentGrantToResponse(grant *authstore.ExperimentPermission) experimentPermissionResponse {
	return experimentPermissionResponse{
		ExperimentID: grant.ExperimentID,
		Username:     grant.Username,
		Permission:   grant.Permission,
	}
}

func modelGrantToResponse(grant *authstore.RegisteredModelPermission) registeredModelPermissionResponse {
	return registeredModelPermissionResponse{
		Name:       grant.Name,
		Username:   grant.Username,
		Permission: grant.Permission,
	}
}

// createExperimentPermissionHandler handles POST
// /api/2.0/tracking/experiments/permissions/create. Reaching any grant
// handler requires MANAGE on the target experiment.
func (s *Server) createExperimentPermissionHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExperimentID string `json:"experiment_id"`
		Username     string `json:"username"`
		Permission   string `json:"permission"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "malformed request body")
		return
	}
	grant, err := s.users.CreateExperimentPermission(req.ExperimentID, req.Username, req.Permission)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"experiment_permission": experimentGrantToResponse(grant)})
}

func (s *Server) getExperimentPermissionHandler(w http.ResponseWriter, r *http.Request) {
	grant, err := s.users.GetExperimentPermission(
		r.URL.Query().Get("experiment_id"), r.URL.Query().Get("username"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"experiment_permission": experimentGrantToResponse(grant)})
}

func (s *Server) updateExperimentPermissionHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExperimentID string `json:"experiment_id"`
		Username     string `json:"username"`
		Permission   string `json:"permission"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "malformed request body")
		return
	}
	if err := s.users.UpdateExperimentPermission(req.ExperimentID, req.Username, req.Permission); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) deleteExperimentPermissionHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExperimentID string `json:"experiment_id"`
		Username     string `json:"username"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "malformed request body")
		return
	}
	if err := s.users.DeleteExperimentPermission(req.ExperimentID, req.Username); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// createRegisteredModelPermissionHandler handles POST
// /api/2.0/tracking/registered-models/permissions/create.
func (s *Server) createRegisteredModelPermissionHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		Username   string `json:"username"`
		Permission string `json:"permission"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "malformed request body")
		return
	}
	grant, err := s.users.CreateRegisteredModelPermission(req.Name, req.Username, req.Permission)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"registered_model_permission": modelGrantToResponse(grant)})
}

func (s *Server) getRegisteredModelPermissionHandler(w http.ResponseWriter, r *http.Request) {
	grant, err := s.users.GetRegisteredModelPermission(
		r.URL.Query().Get("name"), r.URL.Query().Get("username"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"registered_model_permission": modelGrantToResponse(grant)})
}

func (s *Server) updateRegisteredModelPermissionHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		Username   string `json:"username"`
		Permission string `json:"permission"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "malformed request body")
		return
	}
	if err := s.users.UpdateRegisteredModelPermission(req.Name, req.Username, req.Permission); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) deleteRegisteredModelPermissionHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Username string `json:"username"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "malformed request body")
		return
	}
	if err := s.users.DeleteRegisteredModelPermission(req.Name, req.Username); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
