package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeNotFound, "resource not found", baseErr)

	assert.Equal(t, ErrorTypeNotFound, domainErr.Type)
	assert.Equal(t, "resource not found", domainErr.Message)
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
				Type:    ErrorTypeInternal,
				Message: "failed to aggregate metrics",
				Err:     errors.New("label mismatch"),
			},
			wantMsg: "internal: failed to aggregate metrics (label mismatch)",
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
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeInternal, "internal error", baseErr)

	assert.Equal(t, baseErr, errors.Unwrap(domainErr))
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same error type", NewMissingFieldError("business_id"), NewValidationError("Validation failed"), true},
		{"different error type", NewValidationError("bad"), WrapInternal("boom", nil), false},
		{"sentinel", fmt.Errorf("summary: %w", NewDomainError(ErrorTypeNotFound, "no events", nil)), ErrNotFound, true},
		{"not a domain error", NewDomainError(ErrorTypeNotFound, "not found", nil), errors.New("regular error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestNewMissingFieldError(t *testing.T) {
	err := NewMissingFieldError("tokens_used")

	assert.True(t, IsValidationError(err))
	assert.Equal(t, "Missing required field: tokens_used", GetErrorMessage(err))
	assert.Equal(t, "tokens_used", GetErrorDetails(err)["field"])

	// Constructors never share a details map
	assert.Empty(t, NewValidationError("other").Details)
	assert.Empty(t, ErrNotFound.Details)
}

func TestErrorTypeHelpers(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		validation   bool
		internal     bool
		notFound     bool
		unauthorized bool
	}{
		{"validation", NewValidationError("bad"), true, false, false, false},
		{"wrapped validation", fmt.Errorf("wrapped: %w", NewMissingFieldError("business_id")), true, false, false, false},
		{"internal", WrapInternal("boom", errors.New("x")), false, true, false, false},
		{"not found", ErrNotFound, false, false, true, false},
		{"unauthorized", NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil), false, false, false, true},
		{"regular", errors.New("regular"), false, false, false, false},
		{"nil", nil, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.validation, IsValidationError(tt.err))
			assert.Equal(t, tt.internal, IsInternalError(tt.err))
			assert.Equal(t, tt.notFound, IsNotFoundError(tt.err))
			assert.Equal(t, tt.unauthorized, IsUnauthorizedError(tt.err))
		})
	}
}

func TestGetErrorDetails(t *testing.T) {
	err := NewDomainError(ErrorTypeValidation, "validation error", nil)
	err.WithDetail("field", "success_rate").WithDetail("reason", "out of range")

	details := GetErrorDetails(err)
	require.NotNil(t, details)
	assert.Equal(t, "success_rate", details["field"])
	assert.Equal(t, "out of range", details["reason"])

	assert.Nil(t, GetErrorDetails(errors.New("regular error")))
	assert.Equal(t, "", GetErrorMessage(errors.New("regular error")))
}

func TestWrapInternal(t *testing.T) {
	baseErr := errors.New("database connection failed")
	wrapped := WrapInternal("failed to persist metrics", baseErr)

	assert.True(t, IsInternalError(wrapped))
	assert.Equal(t, baseErr, errors.Unwrap(wrapped))
}
