package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/upb/llm-gateway/app"
	"github.com/upb/llm-gateway/utils"
	"go.uber.org/zap"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// StatusResponse describes the gateway's routing state and per-provider
// reachability.
type StatusResponse struct {
	Status          string          `json:"status"`
	DefaultProvider string          `json:"default_provider"`
	FallbackChain   []string        `json:"fallback_chain"`
	SmartRouting    bool            `json:"smart_routing"`
	Providers       map[string]bool `json:"providers"`
	Timestamp       string          `json:"timestamp"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	state  *app.GatewayState
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(state *app.GatewayState, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		state:  state,
		logger: logger,
	}
}

// HandleHealth handles GET /health
// Basic health check - always returns 200 if service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleStatus handles GET /v1/status. Every configured provider is probed;
// an unreachable provider degrades the reported status but never fails the
// request.
func (h *HealthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	engine := h.state.Engine()
	cfg := h.state.Config()
	availability := engine.CheckAvailability(ctx)

	status := "healthy"
	if !availability[cfg.DefaultProvider] {
		status = "degraded"
	}

	resp := StatusResponse{
		Status:          status,
		DefaultProvider: cfg.DefaultProvider,
		FallbackChain:   cfg.FallbackChain,
		SmartRouting:    cfg.SmartRouting,
		Providers:       availability,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}

	if err := utils.WriteOK(w, resp); err != nil {
		h.logger.Error("failed to write status response", zap.Error(err))
	}
}
