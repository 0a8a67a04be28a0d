package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/upb/llm-gateway/app"
	"github.com/upb/llm-gateway/middleware"
	"github.com/upb/llm-gateway/services"
	"github.com/upb/llm-gateway/services/providers"
	"github.com/upb/llm-gateway/services/requestlog"
	"github.com/upb/llm-gateway/services/routing"
	"github.com/upb/llm-gateway/utils"
	"go.uber.org/zap"
)

// ChatMessage represents a single chat message
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

// ChatCompletionRequest is the body for POST /v1/chat/completions.
type ChatCompletionRequest struct {
	Messages     []ChatMessage `json:"messages" validate:"required,min=1,dive"`
	Model        string        `json:"model,omitempty"`
	SystemPrompt string        `json:"system_prompt,omitempty"`
	Temperature  *float64      `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens    int           `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
	TaskType     string        `json:"task_type,omitempty"`
	Stream       bool          `json:"stream,omitempty"`
}

// TaskCompletionRequest is the body for POST /v1/task/completions. The task
// type drives model selection; an explicit model still wins when given.
type TaskCompletionRequest struct {
	TaskType     string        `json:"task_type" validate:"required"`
	Messages     []ChatMessage `json:"messages" validate:"required,min=1,dive"`
	Model        string        `json:"model,omitempty"`
	SystemPrompt string        `json:"system_prompt,omitempty"`
	Temperature  *float64      `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens    int           `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
	Stream       bool          `json:"stream,omitempty"`
}

// CompletionHandler serves the chat completion endpoints.
type CompletionHandler struct {
	state    *app.GatewayState
	logStore *requestlog.Store
	logger   *zap.Logger
}

// NewCompletionHandler creates a new CompletionHandler
func NewCompletionHandler(state *app.GatewayState, logStore *requestlog.Store, logger *zap.Logger) *CompletionHandler {
	return &CompletionHandler{
		state:    state,
		logStore: logStore,
		logger:   logger,
	}
}

// HandleChatCompletion handles POST /v1/chat/completions. With stream=true
// the response is delivered as server-sent events; otherwise a single JSON
// envelope is returned.
func (h *CompletionHandler) HandleChatCompletion(w http.ResponseWriter, r *http.Request) {
	var chatReq ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&chatReq); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&chatReq); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	req := &providers.ChatRequest{
		Messages:     toProviderMessages(chatReq.Messages),
		SystemPrompt: chatReq.SystemPrompt,
		Model:        chatReq.Model,
		Temperature:  chatReq.Temperature,
		MaxTokens:    chatReq.MaxTokens,
		TaskType:     chatReq.TaskType,
	}

	if chatReq.Stream {
		h.streamCompletion(w, r, req)
		return
	}
	h.complete(w, r, req)
}

// HandleTaskCompletion handles POST /v1/task/completions.
func (h *CompletionHandler) HandleTaskCompletion(w http.ResponseWriter, r *http.Request) {
	var taskReq TaskCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&taskReq); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&taskReq); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if !routing.IsKnownTaskType(taskReq.TaskType) {
		err := services.NewDomainError(services.ErrorTypeValidation,
			fmt.Sprintf("unknown task type %q", taskReq.TaskType), nil).
			WithDetail("known_task_types", routing.TaskTypes())
		HandleServiceError(w, err, h.logger)
		return
	}

	req := &providers.ChatRequest{
		Messages:     toProviderMessages(taskReq.Messages),
		SystemPrompt: taskReq.SystemPrompt,
		Model:        taskReq.Model,
		Temperature:  taskReq.Temperature,
		MaxTokens:    taskReq.MaxTokens,
		TaskType:     taskReq.TaskType,
	}

	if taskReq.Stream {
		h.streamCompletion(w, r, req)
		return
	}
	h.complete(w, r, req)
}

// complete serves the non-streaming path.
func (h *CompletionHandler) complete(w http.ResponseWriter, r *http.Request, req *providers.ChatRequest) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)
	start := time.Now()

	resp, err := h.state.Engine().Complete(ctx, req)
	if err != nil {
		h.logger.Error("chat completion failed",
			zap.String("request_id", requestID),
			zap.String("task_type", req.TaskType),
			zap.Error(err))
		h.record(ctx, req, "", req.Model, time.Since(start), err)
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("chat completion successful",
		zap.String("request_id", requestID),
		zap.String("provider", resp.Provider),
		zap.String("model", resp.Model),
		zap.Int64("latency_ms", resp.LatencyMs))
	h.record(ctx, req, resp.Provider, resp.Model, time.Since(start), nil)

	if err := utils.WriteOK(w, resp); err != nil {
		h.logger.Error("failed to write completion response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// streamCompletion serves the streaming path as server-sent events. Each
// chunk is one data event; the stream closes with a [DONE] marker. Failures
// after the first chunk can only be reported in-band.
func (h *CompletionHandler) streamCompletion(w http.ResponseWriter, r *http.Request, req *providers.ChatRequest) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)
	start := time.Now()

	flusher, ok := w.(http.Flusher)
	if !ok {
		_ = utils.WriteInternalServerError(w, "Streaming not supported")
		return
	}

	// Streams never produce a Response, so resolve the model up front and
	// log the serving provider alongside it.
	engine := h.state.Engine()
	resolved := engine.SelectModel(req)
	provider := engine.Config().DefaultProvider

	stream, err := engine.Stream(ctx, resolved)
	if err != nil {
		h.logger.Error("failed to open completion stream",
			zap.String("request_id", requestID),
			zap.Error(err))
		h.record(ctx, req, provider, resolved.Model, time.Since(start), err)
		HandleServiceError(w, err, h.logger)
		return
	}
	defer func() { _ = stream.Close() }()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	var streamErr error
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			streamErr = err
			writeSSEError(w, err)
			flusher.Flush()
			break
		}
		if werr := writeSSEChunk(w, chunk); werr != nil {
			h.logger.Warn("client disconnected mid-stream",
				zap.String("request_id", requestID),
				zap.Error(werr))
			streamErr = werr
			break
		}
		flusher.Flush()
	}

	if streamErr == nil {
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}

	h.logger.Info("completion stream finished",
		zap.String("request_id", requestID),
		zap.Int64("latency_ms", time.Since(start).Milliseconds()),
		zap.Bool("failed", streamErr != nil))
	h.record(ctx, req, provider, resolved.Model, time.Since(start), streamErr)
}

// record appends a request log entry when logging is enabled. Provider and
// model are the resolved values that served (or would have served) the
// request, not the caller's raw input.
func (h *CompletionHandler) record(ctx context.Context, req *providers.ChatRequest, provider, model string, elapsed time.Duration, err error) {
	if !h.state.Config().Logging {
		return
	}

	entry := requestlog.Entry{
		ClientID:  middleware.GetClientIDFromContext(ctx),
		Provider:  provider,
		Model:     model,
		TaskType:  req.TaskType,
		LatencyMs: elapsed.Milliseconds(),
		Status:    requestlog.StatusOK,
	}
	if err != nil {
		entry.Status = requestlog.StatusError
		entry.Error = err.Error()
	}
	h.logStore.Append(entry)
}

// toProviderMessages converts the wire messages to the provider type.
func toProviderMessages(msgs []ChatMessage) []providers.Message {
	out := make([]providers.Message, len(msgs))
	for i, m := range msgs {
		out[i] = providers.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

// writeSSEChunk writes one chunk as a server-sent event.
func writeSSEChunk(w io.Writer, chunk providers.StreamChunk) error {
	payload, err := json.Marshal(chunk)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

// writeSSEError reports a mid-stream failure in-band; the HTTP status is
// already committed at this point.
func writeSSEError(w io.Writer, err error) {
	payload, merr := json.Marshal(map[string]string{"error": err.Error()})
	if merr != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: error\ndata: %s\n\n", payload)
}
