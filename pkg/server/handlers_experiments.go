package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/modeltrack/modeltrack/pkg/tracking"
)

// searchRequest carries the common paged-search parameters. GET requests
// pass them in the query string, POST requests in the JSON body.
type searchRequest struct {
	Filter     string `json:"filter"`
	OrderBy    string `json:"order_by"`
	MaxResults int    `json:"max_results"`
	PageToken  string `json:"page_token"`
}

func searchRequestFrom(r *http.Request) (searchRequest, error) {
	if r.Method == http.MethodGet {
		req := searchRequest{
			Filter:    r.URL.Query().Get("filter"),
			OrderBy:   r.URL.Query().Get("order_by"),
			PageToken: r.URL.Query().Get("page_token"),
		}
		if raw := r.URL.Query().Get("max_results"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return searchRequest{}, err
			}
			req.MaxResults = n
		}
		return req, nil
	}
	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		return searchRequest{}, err
	}
	return req, nil
}

// createExperimentHandler handles POST /api/2.0/tracking/experiments/create.
// The creator receives a MANAGE grant on the new experiment via the
// response-filter middleware.
func (s *Server) createExperimentHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name             string `json:"name"`
		ArtifactLocation string `json:"artifact_location"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "malformed request body")
		return
	}
	exp, err := s.tracking.CreateExperiment(req.Name, req.ArtifactLocation)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"experiment": exp})
}

func (s *Server) getExperimentHandler(w http.ResponseWriter, r *http.Request) {
	exp, err := s.tracking.GetExperiment(r.URL.Query().Get("experiment_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"experiment": exp})
}

func (s *Server) getExperimentByNameHandler(w http.ResponseWriter, r *http.Request) {
	exp, err := s.tracking.GetExperimentByName(r.URL.Query().Get("experiment_name"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"experiment": exp})
}

func (s *Server) updateExperimentHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExperimentID string `json:"experiment_id"`
		NewName      string `json:"new_name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "malformed request body")
		return
	}
	if err := s.tracking.UpdateExperiment(req.ExperimentID, req.NewName); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) deleteExperimentHandler(w http.ResponseWriter, r *http.Request) {
	s.experimentLifecycleHandler(w, r, s.tracking.DeleteExperiment)
}

func (s *Server) restoreExperimentHandler(w http.ResponseWriter, r *http.Request) {
	s.experimentLifecycleHandler(w, r, s.tracking.RestoreExperiment)
}

func (s *Server) experimentLifecycleHandler(w http.ResponseWriter, r *http.Request, op func(string) error) {
	var req struct {
		ExperimentID string `json:"experiment_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "malformed request body")
		return
	}
	if err := op(req.ExperimentID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// searchExperimentsHandler handles GET and POST
// /api/2.0/tracking/experiments/search. The response-filter middleware
// redacts unreadable experiments from the page for non-admin callers.
func (s *Server) searchExperimentsHandler(w http.ResponseWriter, r *http.Request) {
	req, err := searchRequestFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "malformed search request")
		return
	}
	page, token, err := s.tracking.SearchExperiments(req.Filter, req.OrderBy, req.MaxResults, req.PageToken)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", err.Error())
		return
	}
	if page == nil {
		page = []tracking.Experiment{}
	}
	resp := map[string]any{"experiments": page}
	if token != "" {
		resp["next_page_token"] = token
	}
	writeJSON(w, http.StatusOK, resp)
}

// createRunHandler handles POST /api/2.0/tracking/runs/create. The run's
// owning experiment is fixed at creation.
func (s *Server) createRunHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExperimentID string `json:"experiment_id"`
		RunName      string `json:"run_name"`
		UserID       string `json:"user_id"`
		StartTime    int64  `json:"start_time"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "malformed request body")
		return
	}
	run, err := s.tracking.CreateRun(req.ExperimentID, req.RunName, req.UserID, req.StartTime)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

func (s *Server) getRunHandler(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		runID = r.URL.Query().Get("run_uuid")
	}
	run, err := s.tracking.GetRun(runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

func (s *Server) updateRunHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RunID   string `json:"run_id"`
		RunUUID string `json:"run_uuid"`
		Status  string `json:"status"`
		EndTime int64  `json:"end_time"`
		RunName string `json:"run_name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "malformed request body")
		return
	}
	runID := req.RunID
	if runID == "" {
		runID = req.RunUUID
	}
	if err := s.tracking.UpdateRun(runID, req.Status, req.EndTime, req.RunName); err != nil {
		writeStoreError(w, err)
		return
	}
	run, err := s.tracking.GetRun(runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

func (s *Server) deleteRunHandler(w http.ResponseWriter, r *http.Request) {
	s.runLifecycleHandler(w, r, s.tracking.DeleteRun)
}

func (s *Server) restoreRunHandler(w http.ResponseWriter, r *http.Request) {
	s.runLifecycleHandler(w, r, s.tracking.RestoreRun)
}

func (s *Server) runLifecycleHandler(w http.ResponseWriter, r *http.Request, op func(string) error) {
	var req struct {
		RunID   string `json:"run_id"`
		RunUUID string `json:"run_uuid"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "malformed request body")
		return
	}
	runID := req.RunID
	if runID == "" {
		runID = req.RunUUID
	}
	if err := op(runID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) logMetricHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RunID     string      `json:"run_id"`
		Key       string      `json:"key"`
		Value     json.Number `json:"value"`
		Timestamp int64       `json:"timestamp"`
		Step      int64       `json:"step"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "malformed request body")
		return
	}
	value, err := req.Value.Float64()
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "metric value must be numeric")
		return
	}
	if err := s.tracking.LogMetric(req.RunID, req.Key, value, req.Timestamp, req.Step); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) logParamHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RunID string `json:"run_id"`
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "malformed request body")
		return
	}
	if err := s.tracking.LogParam(req.RunID, req.Key, req.Value); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) setTagHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RunID string `json:"run_id"`
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "malformed request body")
		return
	}
	if err := s.tracking.SetTag(req.RunID, req.Key, req.Value); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getMetricHistoryHandler(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		runID = r.URL.Query().Get("run_uuid")
	}
	metrics, err := s.tracking.GetMetricHistory(runID, r.URL.Query().Get("metric_key"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if metrics == nil {
		metrics = []tracking.Metric{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"metrics": metrics})
}
