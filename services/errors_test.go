package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeInvalidCredential, "credential rejected", baseErr)

	assert.Equal(t, ErrorTypeInvalidCredential, domainErr.Type)
	assert.Equal(t, "credential rejected", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.NotNil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name: "error with wrapped error",
			err: &DomainError{
				Type:    ErrorTypeConfiguration,
				Message: "signing secret missing",
				Err:     errors.New("JWT_SECRET is empty"),
			},
			wantMsg: "configuration: signing secret missing (JWT_SECRET is empty)",
		},
		{
			name: "error without wrapped error",
			err: &DomainError{
				Type:    ErrorTypeValidation,
				Message: "invalid input",
			},
			wantMsg: "validation: invalid input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	baseErr := errors.New("dial tcp: timeout")
	domainErr := NewDomainError(ErrorTypeVerificationTransport, "provider unreachable", baseErr)

	assert.Equal(t, baseErr, errors.Unwrap(domainErr))
	assert.True(t, errors.Is(domainErr, baseErr))
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same error type", NewDomainError(ErrorTypeNoCredential, "missing", nil), ErrNoCredential, true},
		{"different error type", NewDomainError(ErrorTypeValidation, "validation", nil), ErrNoCredential, false},
		{"not a domain error", NewDomainError(ErrorTypeRateLimit, "limited", nil), errors.New("regular error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := NewDomainError(ErrorTypePayloadTooLarge, "too large", nil)

	err.WithDetail("maxSize", 1024).WithDetail("declared", 4096)

	assert.Equal(t, 1024, err.Details["maxSize"])
	assert.Equal(t, 4096, err.Details["declared"])
	assert.Empty(t, ErrPayloadTooLarge.Details)
}

func TestTypeHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"no credential", ErrNoCredential, IsNoCredentialError, true},
		{"wrapped invalid credential", fmt.Errorf("ws handshake: %w", ErrInvalidCredential), IsInvalidCredentialError, true},
		{"unauthenticated covers no credential", ErrNoCredential, IsUnauthenticatedError, true},
		{"unauthenticated covers invalid", ErrInvalidCredential, IsUnauthenticatedError, true},
		{"unauthenticated excludes forbidden", ErrForbidden, IsUnauthenticatedError, false},
		{"transport", ErrVerificationTransport, IsVerificationTransportError, true},
		{"validation", ErrValidation, IsValidationError, true},
		{"rate limit", ErrRateLimitExceeded, IsRateLimitError, true},
		{"payload", ErrPayloadTooLarge, IsPayloadTooLargeError, true},
		{"forbidden", ErrForbidden, IsForbiddenError, true},
		{"configuration", WrapConfiguration("secret", errors.New("empty")), IsConfigurationError, true},
		{"internal", WrapInternal("db", errors.New("down")), IsInternalError, true},
		{"regular error", errors.New("regular"), IsValidationError, false},
		{"nil error", nil, IsRateLimitError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestGetErrorTypeAndDetails(t *testing.T) {
	err := NewDomainError(ErrorTypeRateLimit, "limited", nil).WithDetail("retryAfter", 900)
	wrapped := fmt.Errorf("middleware: %w", err)

	assert.Equal(t, ErrorTypeRateLimit, GetErrorType(wrapped))
	assert.Equal(t, 900, GetErrorDetails(wrapped)["retryAfter"])
	assert.Equal(t, ErrorType(""), GetErrorType(errors.New("plain")))
	assert.Nil(t, GetErrorDetails(errors.New("plain")))
}
