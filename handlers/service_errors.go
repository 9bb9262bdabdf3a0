package handlers

import (
	"net/http"

	"github.com/upb/crm-gateway/services"
	"github.com/upb/crm-gateway/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses. Internal and
// configuration errors are logged and answered with a generic message.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	var writeErr error
	switch {
	case services.IsNoCredentialError(err):
		writeErr = utils.WriteUnauthorized(w, "Missing or invalid authorization")

	case services.IsInvalidCredentialError(err):
		writeErr = utils.WriteUnauthorized(w, "Invalid or expired token")

	case services.IsVerificationTransportError(err):
		logger.Warn("identity provider unavailable", zap.Error(err))
		writeErr = utils.WriteError(w, http.StatusServiceUnavailable, "Identity provider unavailable", nil)

	case services.IsValidationError(err):
		writeErr = utils.WriteValidationError(w, "", validationDetails(err))

	case services.IsForbiddenError(err):
		writeErr = utils.WriteForbidden(w, "Insufficient permissions")

	case services.IsRateLimitError(err):
		writeErr = utils.WriteTooManyRequests(w, "Too many requests", services.GetErrorDetails(err))

	case services.IsPayloadTooLargeError(err):
		var maxSize int64
		if v, ok := services.GetErrorDetails(err)["maxSize"].(int64); ok {
			maxSize = v
		}
		writeErr = utils.WritePayloadTooLarge(w, maxSize)

	case services.IsConfigurationError(err), services.IsInternalError(err):
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "An internal error occurred")

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// validationDetails flattens a validation error's "errors" detail
func validationDetails(err error) []string {
	switch v := services.GetErrorDetails(err)["errors"].(type) {
	case []string:
		return v
	case string:
		return []string{v}
	default:
		return nil
	}
}
