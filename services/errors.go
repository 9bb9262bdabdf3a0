package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNoCredential          ErrorType = "no_credential"
	ErrorTypeInvalidCredential     ErrorType = "invalid_credential"
	ErrorTypeVerificationTransport ErrorType = "verification_transport"
	ErrorTypeValidation            ErrorType = "validation"
	ErrorTypeRateLimit             ErrorType = "rate_limit"
	ErrorTypePayloadTooLarge       ErrorType = "payload_too_large"
	ErrorTypeForbidden             ErrorType = "forbidden"
	ErrorTypeConfiguration         ErrorType = "configuration"
	ErrorTypeInternal              ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError of the same type
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error. Call it on errors built with
// NewDomainError, never on the package sentinels.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Authentication
	ErrNoCredential          = NewDomainError(ErrorTypeNoCredential, "no credential presented", nil)
	ErrInvalidCredential     = NewDomainError(ErrorTypeInvalidCredential, "credential rejected", nil)
	ErrVerificationTransport = NewDomainError(ErrorTypeVerificationTransport, "identity provider unreachable", nil)

	// Request rejection
	ErrValidation        = NewDomainError(ErrorTypeValidation, "validation failed", nil)
	ErrRateLimitExceeded = NewDomainError(ErrorTypeRateLimit, "rate limit exceeded", nil)
	ErrPayloadTooLarge   = NewDomainError(ErrorTypePayloadTooLarge, "payload too large", nil)
	ErrForbidden         = NewDomainError(ErrorTypeForbidden, "access forbidden", nil)

	// Startup
	ErrConfiguration = NewDomainError(ErrorTypeConfiguration, "invalid configuration", nil)

	ErrInternal = NewDomainError(ErrorTypeInternal, "internal server error", nil)
)

func hasType(err error, t ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == t
	}
	return false
}

// IsNoCredentialError checks if no credential was presented
func IsNoCredentialError(err error) bool {
	return hasType(err, ErrorTypeNoCredential)
}

// IsInvalidCredentialError checks if a credential was presented and rejected
func IsInvalidCredentialError(err error) bool {
	return hasType(err, ErrorTypeInvalidCredential)
}

// IsUnauthenticatedError reports either authentication failure kind
func IsUnauthenticatedError(err error) bool {
	return IsNoCredentialError(err) || IsInvalidCredentialError(err)
}

// IsVerificationTransportError checks if the identity provider could not be reached
func IsVerificationTransportError(err error) bool {
	return hasType(err, ErrorTypeVerificationTransport)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return hasType(err, ErrorTypeValidation)
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	return hasType(err, ErrorTypeRateLimit)
}

// IsPayloadTooLargeError checks if an error is a size ceiling error
func IsPayloadTooLargeError(err error) bool {
	return hasType(err, ErrorTypePayloadTooLarge)
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return hasType(err, ErrorTypeForbidden)
}

// IsConfigurationError checks if an error is a startup configuration error
func IsConfigurationError(err error) bool {
	return hasType(err, ErrorTypeConfiguration)
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return hasType(err, ErrorTypeInternal)
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapConfiguration wraps an error as a fatal configuration error
func WrapConfiguration(message string, err error) error {
	return NewDomainError(ErrorTypeConfiguration, message, err)
}
