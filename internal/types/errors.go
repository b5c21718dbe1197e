package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Handlers MUST use these constants instead of
// hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationUnknownPlan     ErrorCode = "validation_unknown_plan"
	ErrCodeValidationUnknownProduct  ErrorCode = "validation_unknown_product"
	ErrCodeValidationUnknownLocation ErrorCode = "validation_unknown_location"
	ErrCodeValidationUnknownSoftware ErrorCode = "validation_unknown_software"
	ErrCodeValidationUnknownSplits   ErrorCode = "validation_unknown_splits"
	ErrCodeValidationUnknownBackups  ErrorCode = "validation_unknown_backups"
	ErrCodeValidationMissingField    ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidEmail    ErrorCode = "validation_invalid_email"
	ErrCodeValidationInvalidJSON     ErrorCode = "validation_invalid_json"

	// Auth (401)
	ErrCodeAuthKeyMissing ErrorCode = "auth_key_missing"
	ErrCodeAuthKeyInvalid ErrorCode = "auth_key_invalid"

	// Internal/Upstream (500/502)
	ErrCodeInternalConfig     ErrorCode = "internal_config_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamBilling    ErrorCode = "upstream_billing_unavailable"
	ErrCodeUpstreamWebhook    ErrorCode = "upstream_webhook_unavailable"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type. All domain and handler
// errors are expressed as AppError to enable consistent error formatting,
// HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// Field returns the unresolved request field recorded in Details, if any.
// Checkout resolution errors always carry one so callers can report exactly
// which selection blocked the purchase.
func (e *AppError) Field() string {
	if e.Details == nil {
		return ""
	}
	field, _ := e.Details["field"].(string)
	return field
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewFieldError creates a validation AppError that names the request field
// that failed to resolve. Used by the checkout resolver's fail-fast lookups.
func NewFieldError(code ErrorCode, field, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: map[string]any{"field": field},
	}
}
