package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
	"github.com/Hurisoft/soccersm-pools/internal/engine"
)

// PoolService defines the methods that the pool handler requires from the
// service layer. It is declared locally so the handler package does not
// depend on the concrete service implementation.
type PoolService interface {
	Params() engine.Params
	CreatePool(ctx context.Context, caller domain.Address, eventParams [][]byte, maturities []time.Time, topicIDs []uint64, prediction string, stake *big.Int) (uint64, error)
	CreatePoll(ctx context.Context, caller domain.Address, eventParam []byte, topicID uint64, maturity time.Time, options []string, prediction string, tickets uint64, ticketPrice *big.Int) (uint64, error)
	JoinPool(ctx context.Context, caller domain.Address, poolID uint64, prediction string, stake *big.Int) error
	JoinPoll(ctx context.Context, caller domain.Address, poolID uint64, prediction string, tickets uint64) error
	Close(ctx context.Context, caller domain.Address, poolID uint64) error
	CloseMany(ctx context.Context, caller domain.Address, poolIDs []uint64) []engine.BatchResult
	SetManualResult(ctx context.Context, caller domain.Address, poolID uint64, result string) error
	Withdraw(ctx context.Context, caller domain.Address, poolID uint64) (*domain.WithdrawalRecord, error)
	WithdrawMany(ctx context.Context, caller domain.Address, poolIDs []uint64) []engine.BatchResult
	GetPool(ctx context.Context, poolID uint64) (*domain.Pool, error)
	ListPools(ctx context.Context, opts domain.ListOpts) ([]*domain.Pool, error)
	GetParticipant(ctx context.Context, poolID uint64, account domain.Address) (*domain.Participant, error)
	ListParticipants(ctx context.Context, poolID uint64, opts domain.ListOpts) ([]*domain.Participant, error)
	IsWinner(ctx context.Context, poolID uint64, account domain.Address) (bool, error)
}

// PoolHandler serves pool-related HTTP endpoints.
type PoolHandler struct {
	pools  PoolService
	logger *slog.Logger
}

// NewPoolHandler creates a PoolHandler with the given service and logger.
func NewPoolHandler(pools PoolService, logger *slog.Logger) *PoolHandler {
	return &PoolHandler{
		pools:  pools,
		logger: logger,
	}
}

// listPoolsResponse wraps the list endpoint output with pagination metadata.
type listPoolsResponse struct {
	Pools  []*domain.Pool `json:"pools"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// ListPools returns pools, newest first, with pagination.
// GET /api/pools?limit=50&offset=0
func (h *PoolHandler) ListPools(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	pools, err := h.pools.ListPools(r.Context(), opts)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if pools == nil {
		pools = []*domain.Pool{}
	}

	writeJSON(w, http.StatusOK, listPoolsResponse{
		Pools:  pools,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// GetPool returns a single pool by its ID.
// GET /api/pools/{id}
func (h *PoolHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pool id")
		return
	}

	pool, err := h.pools.GetPool(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, pool)
}

// GetParams returns the engine's static configuration.
// GET /api/params
func (h *PoolHandler) GetParams(w http.ResponseWriter, r *http.Request) {
	p := h.pools.Params()
	writeJSON(w, http.StatusOK, map[string]any{
		"create_fee_bps":            p.CreateFeeBps,
		"join_fee_bps":              p.JoinFeeBps,
		"poll_create_fee_bps":       p.PollCreateFeeBps,
		"poll_join_fee_bps":         p.PollJoinFeeBps,
		"join_period_seconds":       int64(p.JoinPeriod.Seconds()),
		"min_maturity_seconds":      int64(p.MinMaturityPeriod.Seconds()),
		"max_maturity_seconds":      int64(p.MaxMaturityPeriod.Seconds()),
		"max_events_per_pool":       p.MaxEventsPerPool,
		"max_options_per_pool":      p.MaxOptionsPerPool,
		"max_players_per_pool":      p.MaxPlayersPerPool,
		"max_poll_players_per_pool": p.MaxPollPlayersPerPool,
		"min_stake":                 p.MinStake.String(),
		"max_stale_retries":         p.MaxStaleRetries,
		"stale_extension_seconds":   int64(p.StaleExtensionPeriod.Seconds()),
	})
}

// createPoolRequest is the JSON body for opening an event-gate pool.
type createPoolRequest struct {
	Caller     string             `json:"caller"`
	Events     []createPoolEvent  `json:"events"`
	Prediction string             `json:"prediction"`
	Stake      string             `json:"stake"`
}

type createPoolEvent struct {
	Param    string    `json:"param"`
	Maturity time.Time `json:"maturity"`
	TopicID  uint64    `json:"topic_id"`
}

// CreatePool opens an event-gate pool with the creator's opening stake.
// POST /api/pools
func (h *PoolHandler) CreatePool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}
	stake, err := parseAmount(req.Stake)
	if err != nil {
		writeError(w, http.StatusBadRequest, "stake: "+err.Error())
		return
	}

	params := make([][]byte, 0, len(req.Events))
	maturities := make([]time.Time, 0, len(req.Events))
	topicIDs := make([]uint64, 0, len(req.Events))
	for _, ev := range req.Events {
		params = append(params, []byte(ev.Param))
		maturities = append(maturities, ev.Maturity)
		topicIDs = append(topicIDs, ev.TopicID)
	}

	id, err := h.pools.CreatePool(r.Context(), caller, params, maturities, topicIDs, req.Prediction, stake)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"pool_id": id})
}

// createPollRequest is the JSON body for opening a poll pool.
type createPollRequest struct {
	Caller      string    `json:"caller"`
	Param       string    `json:"param"`
	TopicID     uint64    `json:"topic_id"`
	Maturity    time.Time `json:"maturity"`
	Options     []string  `json:"options"`
	Prediction  string    `json:"prediction"`
	Tickets     uint64    `json:"tickets"`
	TicketPrice string    `json:"ticket_price"`
}

// CreatePoll opens a multi-option poll pool.
// POST /api/polls
func (h *PoolHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var req createPollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}
	price, err := parseAmount(req.TicketPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "ticket_price: "+err.Error())
		return
	}

	id, err := h.pools.CreatePoll(r.Context(), caller, []byte(req.Param), req.TopicID, req.Maturity, req.Options, req.Prediction, req.Tickets, price)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"pool_id": id})
}

// joinRequest is the JSON body for joining either pool mode. Stake is used
// for event-gate pools, Tickets for polls.
type joinRequest struct {
	Caller     string `json:"caller"`
	Prediction string `json:"prediction"`
	Stake      string `json:"stake"`
	Tickets    uint64 `json:"tickets"`
}

// JoinPool stakes the caller on a side of an event-gate pool.
// POST /api/pools/{id}/join
func (h *PoolHandler) JoinPool(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pool id")
		return
	}

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}
	stake, err := parseAmount(req.Stake)
	if err != nil {
		writeError(w, http.StatusBadRequest, "stake: "+err.Error())
		return
	}

	if err := h.pools.JoinPool(r.Context(), caller, id, req.Prediction, stake); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "joined", "pool_id": id})
}

// JoinPoll buys the caller tickets on an option of a poll pool.
// POST /api/polls/{id}/join
func (h *PoolHandler) JoinPoll(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pool id")
		return
	}

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}

	if err := h.pools.JoinPoll(r.Context(), caller, id, req.Prediction, req.Tickets); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "joined", "pool_id": id})
}

// callerRequest is the JSON body for operations that only need an acting
// account.
type callerRequest struct {
	Caller string `json:"caller"`
}

// batchRequest is the JSON body for batch close/withdraw operations.
type batchRequest struct {
	Caller  string   `json:"caller"`
	PoolIDs []uint64 `json:"pool_ids"`
}

// batchEntry is one pool's outcome in a batch response.
type batchEntry struct {
	PoolID uint64 `json:"pool_id"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

func toBatchEntries(results []engine.BatchResult) []batchEntry {
	out := make([]batchEntry, 0, len(results))
	for _, res := range results {
		entry := batchEntry{PoolID: res.PoolID, OK: res.Err == nil}
		if res.Err != nil {
			entry.Error = res.Err.Error()
		}
		out = append(out, entry)
	}
	return out
}

// Close attempts to resolve a matured pool against the oracle.
// POST /api/pools/{id}/close
func (h *PoolHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pool id")
		return
	}

	var req callerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}

	if err := h.pools.Close(r.Context(), caller, id); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	pool, err := h.pools.GetPool(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, pool)
}

// CloseMany attempts to resolve several pools, reporting per-pool outcomes.
// POST /api/pools/close
func (h *PoolHandler) CloseMany(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}
	if len(req.PoolIDs) == 0 {
		writeError(w, http.StatusBadRequest, "pool_ids must not be empty")
		return
	}

	results := h.pools.CloseMany(r.Context(), caller, req.PoolIDs)
	writeJSON(w, http.StatusOK, map[string]any{"results": toBatchEntries(results)})
}

// manualResultRequest is the JSON body for an owner-declared result.
type manualResultRequest struct {
	Caller string `json:"caller"`
	Result string `json:"result"`
}

// SetManualResult lets the owner declare the result of a manually frozen pool.
// POST /api/pools/{id}/result
func (h *PoolHandler) SetManualResult(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pool id")
		return
	}

	var req manualResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}

	if err := h.pools.SetManualResult(r.Context(), caller, id, req.Result); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "resolved", "pool_id": id})
}

// Withdraw pays out the caller's winnings from a resolved pool.
// POST /api/pools/{id}/withdraw
func (h *PoolHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pool id")
		return
	}

	var req callerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}

	rec, err := h.pools.Withdraw(r.Context(), caller, id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// WithdrawMany pays out winnings from several pools, reporting per-pool
// outcomes.
// POST /api/pools/withdraw
func (h *PoolHandler) WithdrawMany(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}
	if len(req.PoolIDs) == 0 {
		writeError(w, http.StatusBadRequest, "pool_ids must not be empty")
		return
	}

	results := h.pools.WithdrawMany(r.Context(), caller, req.PoolIDs)
	writeJSON(w, http.StatusOK, map[string]any{"results": toBatchEntries(results)})
}

// ListParticipants returns a pool's participants with pagination.
// GET /api/pools/{id}/participants
func (h *PoolHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pool id")
		return
	}

	participants, err := h.pools.ListParticipants(r.Context(), id, parseListOpts(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if participants == nil {
		participants = []*domain.Participant{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"participants": participants})
}

// GetParticipant returns a single participant entry, including whether the
// account is currently on the winning side.
// GET /api/pools/{id}/participants/{account}
func (h *PoolHandler) GetParticipant(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pool id")
		return
	}
	account, err := parseAddress(pathParam(r, "account"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "account: "+err.Error())
		return
	}

	participant, err := h.pools.GetParticipant(r.Context(), id, account)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	winner, err := h.pools.IsWinner(r.Context(), id, account)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"participant": participant,
		"winner":      winner,
	})
}
