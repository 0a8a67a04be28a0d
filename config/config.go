package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/upb/llm-gateway/services/providers"
	"github.com/upb/llm-gateway/services/ratelimit"
	"github.com/upb/llm-gateway/services/routing"
)

// ErrNoProviders is returned when neither a hosted credential nor a local
// backend is configured. The gateway cannot start without at least one.
var ErrNoProviders = errors.New("no providers configured")

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Router        routing.RouterConfig
	RateLimit     ratelimit.Config
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env if present
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Router: loadRouterConfig(),
		RateLimit: ratelimit.Config{
			MaxRequests: getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 60),
			Window:      getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
			PerClient:   getEnvAsBool("RATE_LIMIT_PER_CLIENT", true),
			GlobalLimit: getEnvAsInt("RATE_LIMIT_GLOBAL_MAX", 0),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if len(c.Router.Providers) == 0 {
		return ErrNoProviders
	}
	if c.Router.DefaultProvider == "" {
		return fmt.Errorf("default provider is required")
	}
	if c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("rate limit max requests must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}
	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// loadRouterConfig builds the routing setup from environment variables.
// An OPENROUTER_API_KEY activates the hosted adapter; OLLAMA_ENABLED or
// OLLAMA_BASE_URL activates the local one. The first active provider
// becomes the default and the other one the fallback chain.
func loadRouterConfig() routing.RouterConfig {
	var entries []providers.ProviderConfig

	if key := getEnv("OPENROUTER_API_KEY", ""); key != "" {
		entries = append(entries, providers.ProviderConfig{
			ID:           "openrouter",
			APIKey:       key,
			BaseURL:      getEnv("OPENROUTER_BASE_URL", ""),
			DefaultModel: getEnv("OPENROUTER_DEFAULT_MODEL", ""),
			Timeout:      getEnvAsDuration("OPENROUTER_TIMEOUT", 60*time.Second),
		})
	}

	ollamaBaseURL := getEnv("OLLAMA_BASE_URL", "")
	if getEnvAsBool("OLLAMA_ENABLED", false) || ollamaBaseURL != "" {
		entries = append(entries, providers.ProviderConfig{
			ID:           "ollama",
			BaseURL:      ollamaBaseURL,
			DefaultModel: getEnv("OLLAMA_DEFAULT_MODEL", ""),
			Timeout:      getEnvAsDuration("OLLAMA_TIMEOUT", 120*time.Second),
		})
	}

	cfg := routing.RouterConfig{
		Providers:    entries,
		SmartRouting: getEnvAsBool("SMART_ROUTING", true),
		Logging:      getEnvAsBool("REQUEST_LOGGING", true),
	}

	if defaultProvider := getEnv("DEFAULT_PROVIDER", ""); defaultProvider != "" {
		cfg.DefaultProvider = defaultProvider
	} else if len(entries) > 0 {
		cfg.DefaultProvider = entries[0].ID
	}
	for _, e := range entries {
		if e.ID != cfg.DefaultProvider {
			cfg.FallbackChain = append(cfg.FallbackChain, e.ID)
		}
	}
	return cfg
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
