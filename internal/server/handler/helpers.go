package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps well-known domain errors to HTTP status codes. The
// fallback logs the error and returns a generic 500 so internals never leak.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrPoolNotFound),
		errors.Is(err, domain.ErrTopicNotFound),
		errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, domain.ErrActionNotAllowed),
		errors.Is(err, domain.ErrAlreadyWithdrawn),
		errors.Is(err, domain.ErrPlayerAlreadyInPool),
		errors.Is(err, domain.ErrPlayerDidNotWin),
		errors.Is(err, domain.ErrPlayerNotInPool),
		errors.Is(err, domain.ErrPoolFull):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrRetryNotReached),
		errors.Is(err, domain.ErrLockHeld):
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrInvalidPrediction),
		errors.Is(err, domain.ErrInvalidEventParam),
		errors.Is(err, domain.ErrInvalidEventCount),
		errors.Is(err, domain.ErrLengthMismatch),
		errors.Is(err, domain.ErrMaturityOutOfBounds),
		errors.Is(err, domain.ErrInvalidOptions),
		errors.Is(err, domain.ErrStakeTooSmall),
		errors.Is(err, domain.ErrWrongPoolMode),
		errors.Is(err, domain.ErrTopicDisabled):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.ErrorContext(r.Context(), "handler: request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// parseListOpts extracts standard pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// pathID parses a numeric {id} path parameter.
func pathID(r *http.Request) (uint64, error) {
	return strconv.ParseUint(pathParam(r, "id"), 10, 64)
}

// parseAddress validates and decodes a hex account address.
func parseAddress(s string) (domain.Address, error) {
	if !common.IsHexAddress(s) {
		return domain.Address{}, errors.New("invalid account address")
	}
	return common.HexToAddress(s), nil
}

// parseAmount decodes a base-10 token amount.
func parseAmount(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, errors.New("invalid token amount")
	}
	return n, nil
}
