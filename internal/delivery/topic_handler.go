package delivery

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/go-chi/chi/v5"

	"github.com/Vovarama1992/online_assistant/internal/domain"
	"github.com/Vovarama1992/online_assistant/internal/ports"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type TopicService interface {
	ListTopics(ctx context.Context, limit int) ([]ports.TopicSummary, error)
	History(ctx context.Context, conversationID string) (*ports.Topic, error)
	Reset(ctx context.Context, conversationID string) (*domain.ResetResult, error)
}

type TopicHandler struct {
	topics TopicService
	log    *logger.ZapLogger
}

func NewTopicHandler(topics TopicService, log *logger.ZapLogger) *TopicHandler {
	return &TopicHandler{topics: topics, log: log}
}

// List -> GET /topics?limit=N
func (h *TopicHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxListLimit)
	}

	list, err := h.topics.ListTopics(r.Context(), limit)
	if err != nil {
		h.log.Log(logger.LogEntry{Level: "error", Message: "db error", Error: err})
		http.Error(w, "failed to list topics", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []ports.TopicSummary{}
	}

	writeJSON(w, http.StatusOK, list)
}

// Get -> GET /topics/{chat_id}
func (h *TopicHandler) Get(w http.ResponseWriter, r *http.Request) {
	chatID, ok := chatIDParam(w, r)
	if !ok {
		return
	}

	topic, err := h.topics.History(r.Context(), chatID)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, topic)
}

// Reset -> DELETE /topics/{chat_id}
func (h *TopicHandler) Reset(w http.ResponseWriter, r *http.Request) {
	chatID, ok := chatIDParam(w, r)
	if !ok {
		return
	}

	res, err := h.topics.Reset(r.Context(), chatID)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}

	h.log.Log(logger.LogEntry{Level: "info", Message: "topic reset for chat " + chatID})
	writeJSON(w, http.StatusOK, res)
}

func (h *TopicHandler) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, ports.ErrTopicNotFound) {
		http.Error(w, "no open topic", http.StatusNotFound)
		return
	}
	h.log.Log(logger.LogEntry{Level: "error", Message: "db error", Error: err})
	http.Error(w, "internal error", http.StatusInternalServerError)
}

// chatIDParam accepts Telegram chat ids, which are signed integers.
func chatIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "chat_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		http.Error(w, "invalid chat_id", http.StatusBadRequest)
		return "", false
	}
	return strconv.FormatInt(id, 10), true
}
