package app

import (
	"fmt"

	"github.com/upb/llm-gateway/config"
	"github.com/upb/llm-gateway/services/ratelimit"
	"github.com/upb/llm-gateway/services/requestlog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Dependencies holds all application dependencies. This is the central
// wiring point for dependency injection.
type Dependencies struct {
	Config   *config.Config
	Logger   *zap.Logger
	State    *GatewayState
	Limiter  *ratelimit.Limiter
	LogStore *requestlog.Store
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	state, err := NewGatewayState(cfg.Router, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize routing engine: %w", err)
	}

	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		State:    state,
		Limiter:  ratelimit.New(cfg.RateLimit, logger),
		LogStore: requestlog.NewStore(requestlog.DefaultCapacity),
	}

	logger.Info("all dependencies initialized",
		zap.Strings("providers", state.Engine().Providers()),
		zap.String("default_provider", cfg.Router.DefaultProvider))
	return deps, nil
}

// Close flushes buffered log entries on shutdown.
func (d *Dependencies) Close() {
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}
}

// NewLogger builds a zap logger from the observability configuration.
// Unknown levels fall back to info rather than failing startup.
func NewLogger(cfg config.ObservabilityConfig) *zap.Logger {
	level := zapcore.InfoLevel
	if parsed, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		level = parsed
	}

	var zapCfg zap.Config
	if cfg.LogFormat == "text" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
