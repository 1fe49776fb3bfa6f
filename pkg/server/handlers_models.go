package server

import (
	"net/http"

	"github.com/modeltrack/modeltrack/pkg/tracking"
)

// createRegisteredModelHandler handles POST
// /api/2.0/tracking/registered-models/create. The creator receives a MANAGE
// grant on the new model via the response-filter middleware.
func (s *Server) createRegisteredModelHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "malformed request body")
		return
	}
	model, err := s.tracking.CreateRegisteredModel(req.Name, req.Description)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"registered_model": model})
}

func (s *Server) getRegisteredModelHandler(w http.ResponseWriter, r *http.Request) {
	model, err := s.tracking.GetRegisteredModel(r.URL.Query().Get("name"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"registered_model": model})
}

func (s *Server) updateRegisteredModelHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "malformed request body")
		return
	}
	if err := s.tracking.UpdateRegisteredModel(req.Name, req.Description); err != nil {
		writeStoreError(w, err)
		return
	}
	model, err := s.tracking.GetRegisteredModel(req.Name)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"registered_model": model})
}

func (s *Server) deleteRegisteredModelHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "malformed request body")
		return
	}
	if err := s.tracking.DeleteRegisteredModel(req.Name); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// searchRegisteredModelsHandler handles GET and POST
// /api/2.0/tracking/registered-models/search.
func (s *Server) searchRegisteredModelsHandler(w http.ResponseWriter, r *http.Request) {
	req, err := searchRequestFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "malformed search request")
		return
	}
	page, token, err := s.tracking.SearchRegisteredModels(req.Filter, req.OrderBy, req.MaxResults, req.PageToken)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", err.Error())
		return
	}
	if page == nil {
		page = []tracking.RegisteredModel{}
	}
	resp := map[string]any{"registered_models": page}
	if token != "" {
		resp["next_page_token"] = token
	}
	writeJSON(w, http.StatusOK, resp)
}
