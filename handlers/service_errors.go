package handlers

import (
	"errors"
	"net/http"

	"github.com/upb/llm-gateway/services"
	"github.com/upb/llm-gateway/services/providers"
	"github.com/upb/llm-gateway/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain and provider errors to HTTP responses.
// Handlers stay thin: they decode, delegate, and hand failures here.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	var provErr *providers.ProviderError
	var domainErr *services.DomainError
	message := err.Error()
	details := map[string]interface{}(nil)
	if errors.As(err, &domainErr) {
		message = domainErr.Message
		if len(domainErr.Details) > 0 {
			details = domainErr.Details
		}
	}

	switch {
	case services.IsConfigurationError(err), services.IsValidationError(err):
		if werr := utils.WriteBadRequest(w, message, details); werr != nil {
			logger.Error("failed to write bad request response", zap.Error(werr))
		}

	case errors.As(err, &provErr):
		if werr := utils.WriteError(w, http.StatusBadGateway, "upstream_error", provErr.Message, map[string]interface{}{
			"provider":    provErr.Provider,
			"status_code": provErr.StatusCode,
		}); werr != nil {
			logger.Error("failed to write bad gateway response", zap.Error(werr))
		}

	default:
		logger.Error("unhandled error", zap.Error(err))
		if werr := utils.WriteInternalServerError(w, "An internal error occurred"); werr != nil {
			logger.Error("failed to write internal error response", zap.Error(werr))
		}
	}
}

// HandleValidationError handles validation errors from request parsing.
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			details[k] = v
		}
		if werr := utils.WriteBadRequest(w, "Validation failed", details); werr != nil {
			logger.Error("failed to write validation error response", zap.Error(werr))
		}
		return
	}

	if werr := utils.WriteBadRequest(w, err.Error(), nil); werr != nil {
		logger.Error("failed to write validation error response", zap.Error(werr))
	}
}
