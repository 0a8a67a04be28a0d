package routing

import (
	"context"
	"errors"
	"fmt"

	"github.com/upb/llm-gateway/services"
	"github.com/upb/llm-gateway/services/providers"
	"github.com/upb/llm-gateway/services/providers/ollama"
	"github.com/upb/llm-gateway/services/providers/openrouter"
	"go.uber.org/zap"
)

var (
	// ErrUnknownProvider is returned at construction for a provider id
	// that is not an alias of any known family.
	ErrUnknownProvider = errors.New("unknown provider type")

	// ErrNoDefaultProvider is returned at construction when the default
	// provider has no configured, enabled adapter.
	ErrNoDefaultProvider = errors.New("default provider not configured")
)

// Engine routes chat completion requests to provider adapters. It owns one
// adapter per enabled provider entry, applies the task-model policy, and
// degrades through the configured fallback chain. The adapter map is
// read-only after construction, so concurrent requests need no locking.
type Engine struct {
	cfg      RouterConfig
	adapters map[string]providers.Provider
	logger   *zap.Logger
}

// NewEngine builds an Engine from a RouterConfig. Construction fails with
// ErrUnknownProvider for an unrecognized provider id and with
// ErrNoDefaultProvider when the designated default has no enabled adapter.
// These are configuration errors: the caller must abort startup, not retry.
func NewEngine(cfg RouterConfig, logger *zap.Logger) (*Engine, error) {
	adapters := make(map[string]providers.Provider)

	for _, pc := range cfg.Providers {
		if !pc.IsEnabled() {
			continue
		}
		family, ok := providers.FamilyFor(pc.ID)
		if !ok {
			return nil, services.NewDomainError(services.ErrorTypeConfiguration,
				fmt.Sprintf("provider %q is not a known provider family", pc.ID),
				ErrUnknownProvider)
		}
		switch family {
		case providers.FamilyOpenRouter:
			adapters[pc.ID] = openrouter.New(pc, logger)
		case providers.FamilyLocal:
			adapters[pc.ID] = ollama.New(pc, logger)
		}
	}

	return newEngine(cfg, adapters, logger)
}

// newEngine wires a prepared adapter map. Split out so tests can install
// fake adapters.
func newEngine(cfg RouterConfig, adapters map[string]providers.Provider, logger *zap.Logger) (*Engine, error) {
	if _, ok := adapters[cfg.DefaultProvider]; !ok {
		return nil, services.NewDomainError(services.ErrorTypeConfiguration,
			fmt.Sprintf("default provider %q has no enabled adapter", cfg.DefaultProvider),
			ErrNoDefaultProvider)
	}
	return &Engine{
		cfg:      cfg,
		adapters: adapters,
		logger:   logger,
	}, nil
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() RouterConfig {
	return e.cfg
}

// Providers returns the ids of all enabled adapters.
func (e *Engine) Providers() []string {
	ids := make([]string, 0, len(e.adapters))
	for id := range e.adapters {
		ids = append(ids, id)
	}
	return ids
}

// SelectModel resolves the effective model for a request without mutating
// it. An explicit model always wins. With smart routing enabled and a task
// type declared, the per-provider override, then the router's task routes,
// then the built-in policy recommendation apply, in that order.
func (e *Engine) SelectModel(req *providers.ChatRequest) *providers.ChatRequest {
	resolved := req.Clone()
	if resolved.Model != "" {
		return resolved
	}
	if !e.cfg.SmartRouting || resolved.TaskType == "" {
		return resolved
	}

	if pc, ok := e.cfg.providerConfig(e.cfg.DefaultProvider); ok {
		if model, ok := pc.TaskModels[resolved.TaskType]; ok {
			resolved.Model = model
			return resolved
		}
	}
	if model, ok := e.cfg.TaskRoutes[resolved.TaskType]; ok {
		resolved.Model = model
		return resolved
	}
	resolved.Model = RecommendedModel(resolved.TaskType)
	return resolved
}

// Complete resolves the model once, invokes the default adapter, and on
// failure walks the fallback chain in order. The first success is returned.
// When every candidate fails, the default provider's error is returned
// verbatim; fallback errors are only logged. Every call walks the chain
// independently; there is no cross-request failure memory.
func (e *Engine) Complete(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	resolved := e.SelectModel(req)

	primary := e.adapters[e.cfg.DefaultProvider]
	resp, origErr := primary.ChatCompletion(ctx, resolved)
	if origErr == nil {
		return resp, nil
	}

	e.logger.Warn("default provider failed, walking fallback chain",
		zap.String("provider", e.cfg.DefaultProvider),
		zap.String("model", resolved.Model),
		zap.Error(origErr))

	tried := map[string]bool{e.cfg.DefaultProvider: true}
	for _, id := range e.cfg.FallbackChain {
		if tried[id] {
			continue
		}
		tried[id] = true
		adapter, ok := e.adapters[id]
		if !ok {
			continue
		}
		resp, err := adapter.ChatCompletion(ctx, resolved)
		if err == nil {
			e.logger.Info("fallback provider succeeded",
				zap.String("provider", id),
				zap.String("model", resolved.Model))
			return resp, nil
		}
		e.logger.Warn("fallback provider failed",
			zap.String("provider", id),
			zap.Error(err))
	}

	return nil, origErr
}

// Stream resolves the model exactly as Complete does, then dispatches to
// the default adapter only: there is no fallback for streams. A mid-stream
// failure is terminal; callers restart from the beginning.
func (e *Engine) Stream(ctx context.Context, req *providers.ChatRequest) (*Stream, error) {
	resolved := e.SelectModel(req)

	primary := e.adapters[e.cfg.DefaultProvider]
	src, err := primary.ChatCompletionStream(ctx, resolved)
	if err != nil {
		return nil, err
	}
	return newStream(src), nil
}

// CheckAvailability probes every adapter independently and returns a
// per-provider flag. Probe failures collapse to false, never to an error.
func (e *Engine) CheckAvailability(ctx context.Context) map[string]bool {
	out := make(map[string]bool, len(e.adapters))
	for id, adapter := range e.adapters {
		out[id] = adapter.IsAvailable(ctx)
	}
	return out
}

// ListAllModels queries every adapter independently. A failing adapter
// contributes an empty list rather than aborting the call.
func (e *Engine) ListAllModels(ctx context.Context) map[string][]string {
	out := make(map[string][]string, len(e.adapters))
	for id, adapter := range e.adapters {
		models := adapter.ListModels(ctx)
		if models == nil {
			models = []string{}
		}
		out[id] = models
	}
	return out
}
