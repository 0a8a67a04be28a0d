package providers

import "time"

// ProviderConfig holds the configuration for a single provider entry.
type ProviderConfig struct {
	// ID is the provider identifier ("openrouter", "groq", "ollama", ...)
	ID string `json:"id" validate:"required"`

	// APIKey for authentication, when the family requires one
	APIKey string `json:"api_key,omitempty"`

	// BaseURL overrides the family's default endpoint
	BaseURL string `json:"base_url,omitempty"`

	// DefaultModel applies when a request carries no explicit model
	DefaultModel string `json:"default_model,omitempty"`

	// TaskModels overrides the routing policy per task type
	TaskModels map[string]string `json:"task_models,omitempty"`

	// Enabled defaults to true when omitted
	Enabled *bool `json:"enabled,omitempty"`

	// Timeout for requests against this provider
	Timeout time.Duration `json:"-"`
}

// IsEnabled reports whether the entry is active. Nil means enabled.
func (c ProviderConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Clone returns a deep copy of the entry.
func (c ProviderConfig) Clone() ProviderConfig {
	cp := c
	if c.TaskModels != nil {
		cp.TaskModels = make(map[string]string, len(c.TaskModels))
		for k, v := range c.TaskModels {
			cp.TaskModels[k] = v
		}
	}
	if c.Enabled != nil {
		v := *c.Enabled
		cp.Enabled = &v
	}
	return cp
}
