package handlers

import (
	"net/http"
	"strconv"

	"github.com/upb/llm-gateway/services/requestlog"
	"github.com/upb/llm-gateway/utils"
	"go.uber.org/zap"
)

// LogsResponse is the body for GET /v1/logs.
type LogsResponse struct {
	Entries []requestlog.Entry `json:"entries"`
	Total   int                `json:"total"`
}

// LogHandler serves the in-memory request log.
type LogHandler struct {
	store  *requestlog.Store
	logger *zap.Logger
}

// NewLogHandler creates a new LogHandler
func NewLogHandler(store *requestlog.Store, logger *zap.Logger) *LogHandler {
	return &LogHandler{
		store:  store,
		logger: logger,
	}
}

// HandleListLogs handles GET /v1/logs. Entries come back newest first;
// ?limit= caps the count.
func (h *LogHandler) HandleListLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			_ = utils.WriteBadRequest(w, "limit must be a non-negative integer", nil)
			return
		}
		limit = parsed
	}

	resp := LogsResponse{
		Entries: h.store.List(limit),
		Total:   h.store.Len(),
	}
	if err := utils.WriteOK(w, resp); err != nil {
		h.logger.Error("failed to write logs response", zap.Error(err))
	}
}
