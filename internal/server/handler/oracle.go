package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
	"github.com/Hurisoft/soccersm-pools/internal/oracle"
)

// OracleService defines the methods that the oracle handler requires from
// the outcome data provider.
type OracleService interface {
	Provide(ctx context.Context, reporter domain.Address, key string, value []byte) error
	AddReporter(ctx context.Context, caller, reporter domain.Address) error
	HasData(ctx context.Context, key string) (bool, error)
}

// OracleHandler serves oracle data ingestion endpoints.
type OracleHandler struct {
	provider OracleService
	logger   *slog.Logger
}

// NewOracleHandler creates an OracleHandler with the given provider and
// logger.
func NewOracleHandler(provider OracleService, logger *slog.Logger) *OracleHandler {
	return &OracleHandler{
		provider: provider,
		logger:   logger,
	}
}

// provideRequest is the JSON body for reporting an outcome. The key is
// derived from the event parameter when not supplied directly.
type provideRequest struct {
	Reporter string `json:"reporter"`
	Key      string `json:"key"`
	Param    string `json:"param"`
	Value    string `json:"value"`
}

// ProvideData records an outcome for an event data key. Reporter only.
// POST /api/oracle/data
func (h *OracleHandler) ProvideData(w http.ResponseWriter, r *http.Request) {
	var req provideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	reporter, err := parseAddress(req.Reporter)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reporter: "+err.Error())
		return
	}

	key := req.Key
	if key == "" {
		if req.Param == "" {
			writeError(w, http.StatusBadRequest, "key or param is required")
			return
		}
		key = oracle.DataKey([]byte(req.Param))
	}
	if req.Value == "" {
		writeError(w, http.StatusBadRequest, "value is required")
		return
	}

	if err := h.provider.Provide(r.Context(), reporter, key, []byte(req.Value)); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	h.logger.InfoContext(r.Context(), "handler: outcome recorded",
		slog.String("key", key),
		slog.String("reporter", reporter.Hex()),
	)
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "status": "recorded"})
}

// HasData reports whether an outcome exists for a data key.
// GET /api/oracle/data/{key}
func (h *OracleHandler) HasData(w http.ResponseWriter, r *http.Request) {
	key := pathParam(r, "key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing data key")
		return
	}

	has, err := h.provider.HasData(r.Context(), key)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"key": key, "has_data": has})
}

// addReporterRequest is the JSON body for authorizing a reporter.
type addReporterRequest struct {
	Caller   string `json:"caller"`
	Reporter string `json:"reporter"`
}

// AddReporter authorizes an address to report outcomes. Owner only.
// POST /api/oracle/reporters
func (h *OracleHandler) AddReporter(w http.ResponseWriter, r *http.Request) {
	var req addReporterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}
	reporter, err := parseAddress(req.Reporter)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reporter: "+err.Error())
		return
	}

	if err := h.provider.AddReporter(r.Context(), caller, reporter); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"reporter": reporter.Hex()})
}
