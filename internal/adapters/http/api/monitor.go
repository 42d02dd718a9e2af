// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"strconv"
)

// MonitorHandler serves the proctor's ranked session view.
type MonitorHandler struct {
	deps Dependencies
}

// NewMonitorHandler creates a new monitor handler.
func NewMonitorHandler(deps Dependencies) *MonitorHandler {
	return &MonitorHandler{deps: deps}
}

// HandleMonitor handles GET /monitor?limit=N requests. Sessions come back
// ordered by suspicion counter, most suspicious first.
func (h *MonitorHandler) HandleMonitor(w http.ResponseWriter, r *http.Request) {
	const op = "api.monitor"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}

	statuses := h.deps.TopSuspects(r.Context(), limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": statuses,
		"count":    len(statuses),
	})
}
