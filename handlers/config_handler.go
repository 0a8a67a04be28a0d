package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/upb/llm-gateway/app"
	"github.com/upb/llm-gateway/middleware"
	"github.com/upb/llm-gateway/services/providers"
	"github.com/upb/llm-gateway/services/routing"
	"github.com/upb/llm-gateway/utils"
	"go.uber.org/zap"
)

// ConfigHandler serves the routing configuration endpoints.
type ConfigHandler struct {
	state  *app.GatewayState
	logger *zap.Logger
}

// NewConfigHandler creates a new ConfigHandler
func NewConfigHandler(state *app.GatewayState, logger *zap.Logger) *ConfigHandler {
	return &ConfigHandler{
		state:  state,
		logger: logger,
	}
}

// HandleGetConfig handles GET /v1/config. API keys are never echoed back.
func (h *ConfigHandler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.state.Config()
	if err := utils.WriteOK(w, redactConfig(cfg)); err != nil {
		h.logger.Error("failed to write config response", zap.Error(err))
	}
}

// HandleUpdateConfig handles PUT /v1/config. The body is a partial update:
// absent fields keep their current value, so an empty body changes nothing.
// An update that would leave the gateway without a working default provider
// is rejected and the previous configuration stays active.
func (h *ConfigHandler) HandleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestIDFromContext(r.Context())

	var upd app.ConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		h.logger.Warn("failed to parse config update",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	next, err := h.state.UpdateConfig(upd)
	if err != nil {
		h.logger.Warn("config update rejected",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, redactConfig(next)); err != nil {
		h.logger.Error("failed to write config response", zap.Error(err))
	}
}

// redactConfig strips credentials from a configuration before it leaves
// the process.
func redactConfig(cfg routing.RouterConfig) routing.RouterConfig {
	out := cfg.Clone()
	for i := range out.Providers {
		out.Providers[i].APIKey = ""
	}
	if out.Providers == nil {
		out.Providers = []providers.ProviderConfig{}
	}
	if out.FallbackChain == nil {
		out.FallbackChain = []string{}
	}
	return out
}
