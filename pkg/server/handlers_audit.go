package server

import (
	"net/http"
	"strconv"

	"github.com/modeltrack/modeltrack/pkg/audit"
)

// listAuditEventsHandler handles GET /api/2.0/tracking/audit/list. Only
// administrators pass the authorization layer for this route.
func (s *Server) listAuditEventsHandler(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusNotImplemented, "FEATURE_DISABLED", "audit trail is not configured")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("max_results"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_PARAMETER_VALUE", "max_results must be an integer")
			return
		}
		limit = n
	}
	events, err := s.audit.List(r.URL.Query().Get("actor"), limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
