package handler

import (
	"net/http"
)

// StatusHandler serves the backend status (mode, active backends) for
// dashboards.
type StatusHandler struct {
	Mode    string
	Custody string
	Oracle  string
}

// NewStatusHandler creates a StatusHandler with the given runtime metadata.
func NewStatusHandler(mode, custody, oracle string) *StatusHandler {
	return &StatusHandler{Mode: mode, Custody: custody, Oracle: oracle}
}

// GetStatus responds with the current backend mode and active backends.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":    h.Mode,
		"custody": h.Custody,
		"oracle":  h.Oracle,
	})
}
