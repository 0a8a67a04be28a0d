package routing

import (
	"github.com/upb/llm-gateway/services/providers"
)

// RouterConfig describes the full routing setup. It is immutable once an
// Engine has been constructed from it; runtime reconfiguration builds a new
// Engine (see app.GatewayState).
type RouterConfig struct {
	// Providers lists the configured provider entries. Order is not
	// significant for selection.
	Providers []providers.ProviderConfig `json:"providers" validate:"required,min=1,dive"`

	// DefaultProvider is the id served first on every request. It must
	// match a configured, enabled provider; violation is a construction
	// error.
	DefaultProvider string `json:"default_provider" validate:"required"`

	// FallbackChain is the ordered list of provider ids tried after the
	// default provider fails. The default provider is skipped if it
	// reappears here.
	FallbackChain []string `json:"fallback_chain,omitempty"`

	// TaskRoutes overrides the built-in task-to-model policy.
	TaskRoutes map[string]string `json:"task_routes,omitempty"`

	// SmartRouting enables task-type based model selection.
	SmartRouting bool `json:"smart_routing"`

	// Logging enables the in-memory request log.
	Logging bool `json:"logging"`
}

// Clone returns a deep copy of the configuration.
func (c RouterConfig) Clone() RouterConfig {
	cp := c
	cp.Providers = make([]providers.ProviderConfig, len(c.Providers))
	for i, p := range c.Providers {
		cp.Providers[i] = p.Clone()
	}
	cp.FallbackChain = append([]string(nil), c.FallbackChain...)
	if c.TaskRoutes != nil {
		cp.TaskRoutes = make(map[string]string, len(c.TaskRoutes))
		for k, v := range c.TaskRoutes {
			cp.TaskRoutes[k] = v
		}
	}
	return cp
}

// providerConfig returns the entry for a provider id.
func (c RouterConfig) providerConfig(id string) (providers.ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.ID == id {
			return p, true
		}
	}
	return providers.ProviderConfig{}, false
}
