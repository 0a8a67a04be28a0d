package app

import (
	"sync"

	"github.com/upb/llm-gateway/services/providers"
	"github.com/upb/llm-gateway/services/routing"
	"go.uber.org/zap"
)

// ConfigUpdate is a partial routing reconfiguration. Nil fields keep the
// current value, so an empty update is a no-op.
type ConfigUpdate struct {
	Providers       []providers.ProviderConfig `json:"providers,omitempty"`
	DefaultProvider *string                    `json:"default_provider,omitempty"`
	FallbackChain   []string                   `json:"fallback_chain,omitempty"`
	TaskRoutes      map[string]string          `json:"task_routes,omitempty"`
	SmartRouting    *bool                      `json:"smart_routing,omitempty"`
	Logging         *bool                      `json:"logging,omitempty"`
}

// GatewayState holds the live routing engine and the configuration it was
// built from. Reconfiguration builds a replacement engine off to the side
// and swaps it in atomically; a failed rebuild leaves the previous engine
// serving untouched.
type GatewayState struct {
	mu     sync.RWMutex
	cfg    routing.RouterConfig
	engine *routing.Engine
	logger *zap.Logger
}

// NewGatewayState builds the initial engine from cfg.
func NewGatewayState(cfg routing.RouterConfig, logger *zap.Logger) (*GatewayState, error) {
	engine, err := routing.NewEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &GatewayState{
		cfg:    cfg.Clone(),
		engine: engine,
		logger: logger,
	}, nil
}

// Engine returns the engine currently serving requests.
func (s *GatewayState) Engine() *routing.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// Config returns a copy of the active routing configuration.
func (s *GatewayState) Config() routing.RouterConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// UpdateConfig applies a partial update and rebuilds the engine. The new
// configuration is validated by construction: if the rebuilt engine is
// rejected, the update is discarded and the error returned.
func (s *GatewayState) UpdateConfig(upd ConfigUpdate) (routing.RouterConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg.Clone()
	if upd.Providers != nil {
		next.Providers = make([]providers.ProviderConfig, len(upd.Providers))
		for i, p := range upd.Providers {
			entry := p.Clone()
			// Config reads redact credentials, so an entry submitted without
			// a key inherits the one already held for that provider. Round
			// tripping GET into PUT must not wipe keys.
			if entry.APIKey == "" {
				if prev, ok := s.providerEntry(entry.ID); ok {
					entry.APIKey = prev.APIKey
				}
			}
			next.Providers[i] = entry
		}
	}
	if upd.DefaultProvider != nil {
		next.DefaultProvider = *upd.DefaultProvider
	}
	if upd.FallbackChain != nil {
		next.FallbackChain = append([]string(nil), upd.FallbackChain...)
	}
	if upd.TaskRoutes != nil {
		next.TaskRoutes = make(map[string]string, len(upd.TaskRoutes))
		for k, v := range upd.TaskRoutes {
			next.TaskRoutes[k] = v
		}
	}
	if upd.SmartRouting != nil {
		next.SmartRouting = *upd.SmartRouting
	}
	if upd.Logging != nil {
		next.Logging = *upd.Logging
	}

	engine, err := routing.NewEngine(next, s.logger)
	if err != nil {
		s.logger.Warn("config update rejected, previous engine still serving",
			zap.Error(err))
		return routing.RouterConfig{}, err
	}

	s.cfg = next
	s.engine = engine
	s.logger.Info("routing configuration updated",
		zap.String("default_provider", next.DefaultProvider),
		zap.Strings("fallback_chain", next.FallbackChain),
		zap.Bool("smart_routing", next.SmartRouting))
	return next.Clone(), nil
}

// providerEntry returns the active entry for a provider id. Caller holds
// the mutex.
func (s *GatewayState) providerEntry(id string) (providers.ProviderConfig, bool) {
	for _, p := range s.cfg.Providers {
		if p.ID == id {
			return p, true
		}
	}
	return providers.ProviderConfig{}, false
}
