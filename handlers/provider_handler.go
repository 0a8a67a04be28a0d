package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/upb/llm-gateway/app"
	"github.com/upb/llm-gateway/services/providers"
	"github.com/upb/llm-gateway/utils"
	"go.uber.org/zap"
)

// ProviderInfo describes one configured provider entry.
type ProviderInfo struct {
	ID           string `json:"id"`
	Family       string `json:"family"`
	DefaultModel string `json:"default_model,omitempty"`
	IsDefault    bool   `json:"is_default"`
}

// ProvidersResponse is the body for GET /v1/providers.
type ProvidersResponse struct {
	Providers       []ProviderInfo `json:"providers"`
	DefaultProvider string         `json:"default_provider"`
	FallbackChain   []string       `json:"fallback_chain"`
}

// ModelsResponse is the body for GET /v1/models.
type ModelsResponse struct {
	Models map[string][]string `json:"models"`
}

// ProviderHandler serves provider and model discovery endpoints.
type ProviderHandler struct {
	state  *app.GatewayState
	logger *zap.Logger
}

// NewProviderHandler creates a new ProviderHandler
func NewProviderHandler(state *app.GatewayState, logger *zap.Logger) *ProviderHandler {
	return &ProviderHandler{
		state:  state,
		logger: logger,
	}
}

// HandleListProviders handles GET /v1/providers
func (h *ProviderHandler) HandleListProviders(w http.ResponseWriter, r *http.Request) {
	cfg := h.state.Config()
	engine := h.state.Engine()

	enabled := make(map[string]bool)
	for _, id := range engine.Providers() {
		enabled[id] = true
	}

	infos := make([]ProviderInfo, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		if !enabled[pc.ID] {
			continue
		}
		info := ProviderInfo{
			ID:           pc.ID,
			DefaultModel: pc.DefaultModel,
			IsDefault:    pc.ID == cfg.DefaultProvider,
		}
		if family, ok := providerFamily(pc.ID); ok {
			info.Family = family
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })

	resp := ProvidersResponse{
		Providers:       infos,
		DefaultProvider: cfg.DefaultProvider,
		FallbackChain:   cfg.FallbackChain,
	}
	if resp.FallbackChain == nil {
		resp.FallbackChain = []string{}
	}

	if err := utils.WriteOK(w, resp); err != nil {
		h.logger.Error("failed to write providers response", zap.Error(err))
	}
}

// providerFamily resolves a provider id to its adapter family name.
func providerFamily(id string) (string, bool) {
	f, ok := providers.FamilyFor(id)
	return string(f), ok
}

// HandleListModels handles GET /v1/models. Providers whose enumeration
// fails contribute an empty list.
func (h *ProviderHandler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	models := h.state.Engine().ListAllModels(ctx)
	if err := utils.WriteOK(w, ModelsResponse{Models: models}); err != nil {
		h.logger.Error("failed to write models response", zap.Error(err))
	}
}
