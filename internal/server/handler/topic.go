package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
)

// TopicService defines the methods that the topic handler requires from the
// topic registry.
type TopicService interface {
	CreateTopic(ctx context.Context, caller domain.Address, title, description, evaluator string) (*domain.Topic, error)
	SetTopicEnabled(ctx context.Context, caller domain.Address, topicID uint64, enabled bool) error
	GetTopic(ctx context.Context, topicID uint64) (*domain.Topic, error)
	ListTopics(ctx context.Context, opts domain.ListOpts) ([]*domain.Topic, error)
}

// TopicHandler serves topic-related HTTP endpoints.
type TopicHandler struct {
	topics TopicService
	logger *slog.Logger
}

// NewTopicHandler creates a TopicHandler with the given registry and logger.
func NewTopicHandler(topics TopicService, logger *slog.Logger) *TopicHandler {
	return &TopicHandler{
		topics: topics,
		logger: logger,
	}
}

// ListTopics returns registered topics with pagination.
// GET /api/topics
func (h *TopicHandler) ListTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.topics.ListTopics(r.Context(), parseListOpts(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if topics == nil {
		topics = []*domain.Topic{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"topics": topics})
}

// GetTopic returns a single topic by its ID.
// GET /api/topics/{id}
func (h *TopicHandler) GetTopic(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid topic id")
		return
	}

	topic, err := h.topics.GetTopic(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, topic)
}

// createTopicRequest is the JSON body for registering a topic.
type createTopicRequest struct {
	Caller      string `json:"caller"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Evaluator   string `json:"evaluator"`
}

// CreateTopic registers a new topic. Owner only.
// POST /api/topics
func (h *TopicHandler) CreateTopic(w http.ResponseWriter, r *http.Request) {
	var req createTopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}

	topic, err := h.topics.CreateTopic(r.Context(), caller, req.Title, req.Description, req.Evaluator)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, topic)
}

// setEnabledRequest is the JSON body for enabling or disabling a topic.
type setEnabledRequest struct {
	Caller  string `json:"caller"`
	Enabled bool   `json:"enabled"`
}

// SetTopicEnabled enables or disables a topic for new pools. Owner only.
// PUT /api/topics/{id}/enabled
func (h *TopicHandler) SetTopicEnabled(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid topic id")
		return
	}

	var req setEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}

	if err := h.topics.SetTopicEnabled(r.Context(), caller, id, req.Enabled); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"topic_id": id, "enabled": req.Enabled})
}
