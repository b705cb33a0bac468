// Package errors defines custom error types and error handling utilities for the
// LimitGate decision engine. It provides structured errors that carry the engine's
// error taxonomy, an HTTP-equivalent status, and contextual metadata.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/turtacn/limitgate/pkg/constants"
)

// ================================================================================
// Base Error Interface
// ================================================================================

// LimitError represents a structured error with additional metadata.
type LimitError interface {
	error

	// Code returns the taxonomy error code
	Code() constants.ErrorCode

	// HTTPStatus returns the HTTP-equivalent status code
	HTTPStatus() int

	// Description returns a human-readable description
	Description() string

	// Unwrap returns the underlying error for error chain support
	Unwrap() error

	// WithCause adds a cause error to the error chain
	WithCause(cause error) LimitError

	// WithMetadata adds additional context metadata
	WithMetadata(key string, value interface{}) LimitError

	// Metadata returns all metadata
	Metadata() map[string]interface{}
}

// ================================================================================
// Base Error Implementation
// ================================================================================

// baseError is the internal implementation of LimitError.
type baseError struct {
	code        constants.ErrorCode
	httpStatus  int
	description string
	message     string
	cause       error
	metadata    map[string]interface{}
}

// Error implements the error interface.
func (e *baseError) Error() string {
	if e.message != "" {
		return e.message
	}
	return e.description
}

// Code returns the taxonomy error code.
func (e *baseError) Code() constants.ErrorCode {
	return e.code
}

// HTTPStatus returns the HTTP-equivalent status code.
func (e *baseError) HTTPStatus() int {
	return e.httpStatus
}

// Description returns the error description.
func (e *baseError) Description() string {
	return e.description
}

// Unwrap returns the underlying cause error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause error to the error chain.
func (e *baseError) WithCause(cause error) LimitError {
	e.cause = cause
	return e
}

// WithMetadata adds additional context metadata.
func (e *baseError) WithMetadata(key string, value interface{}) LimitError {
	if e.metadata == nil {
		e.metadata = make(map[string]interface{})
	}
	e.metadata[key] = value
	return e
}

// Metadata returns all metadata.
func (e *baseError) Metadata() map[string]interface{} {
	return e.metadata
}

// ================================================================================
// Error Constructor
// ================================================================================

// NewError creates a new LimitError with the specified parameters.
func NewError(code constants.ErrorCode, httpStatus int, description string, message string) LimitError {
	return &baseError{
		code:        code,
		httpStatus:  httpStatus,
		description: description,
		message:     message,
		metadata:    make(map[string]interface{}),
	}
}

// ================================================================================
// Taxonomy Error Constructors
// ================================================================================

// ErrConfiguration creates a configuration_error. Malformed limit parameters are
// rejected at rule-load time and never defaulted silently.
func ErrConfiguration(ruleID string, reason string) LimitError {
	return NewError(
		constants.ErrCodeConfiguration,
		http.StatusInternalServerError,
		"A limit rule carries malformed parameters and was rejected at load time.",
		fmt.Sprintf("invalid limit rule %q: %s", ruleID, reason),
	).WithMetadata("rule_id", ruleID)
}

// ErrStoreUnavailable creates a store_unavailable error. It is resolved by the
// configured fail-open/fail-closed policy, never left unresolved.
func ErrStoreUnavailable(reason string) LimitError {
	return NewError(
		constants.ErrCodeStoreUnavailable,
		http.StatusServiceUnavailable,
		"The shared counter store timed out or is unreachable.",
		fmt.Sprintf("counter store unavailable: %s", reason),
	)
}

// ErrKeyConstruction creates a key_construction_error. A rule whose required
// dimension is absent from the request is inapplicable, not a request failure.
func ErrKeyConstruction(ruleID string, dimension string) LimitError {
	return NewError(
		constants.ErrCodeKeyConstruction,
		http.StatusBadRequest,
		"A rule dimension is missing from the request context.",
		fmt.Sprintf("rule %q requires dimension %q which is absent from the request", ruleID, dimension),
	).WithMetadata("rule_id", ruleID).
		WithMetadata("dimension", dimension)
}

// ErrAlgorithmInternal creates an algorithm_internal_error for corrupted or
// unexpected counter state read from the store.
func ErrAlgorithmInternal(key string, reason string) LimitError {
	return NewError(
		constants.ErrCodeAlgorithmInternal,
		http.StatusInternalServerError,
		"Corrupted counter state was read from the shared store.",
		fmt.Sprintf("corrupt counter state for key %q: %s", key, reason),
	).WithMetadata("key", key)
}

// ErrRateLimitExceeded creates a rate_limit_exceeded error.
func ErrRateLimitExceeded(ruleID string) LimitError {
	return NewError(
		constants.ErrCodeRateLimitExceeded,
		http.StatusTooManyRequests,
		"Rate limit exceeded. Please try again later.",
		fmt.Sprintf("rate limit exceeded for rule %q", ruleID),
	).WithMetadata("rule_id", ruleID)
}

// ErrServerError creates a generic server_error.
func ErrServerError(message string) LimitError {
	return NewError(
		constants.ErrCodeServerError,
		http.StatusInternalServerError,
		"The decision engine encountered an unexpected condition.",
		message,
	)
}

// ================================================================================
// Error Classification Utilities
// ================================================================================

// AsLimitError attempts to cast an error to LimitError, unwrapping as needed.
func AsLimitError(err error) (LimitError, bool) {
	var le LimitError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// codeOf extracts the taxonomy code, or empty for foreign errors.
func codeOf(err error) constants.ErrorCode {
	if le, ok := AsLimitError(err); ok {
		return le.Code()
	}
	return ""
}

// IsConfiguration reports whether err is a configuration_error.
func IsConfiguration(err error) bool {
	return codeOf(err) == constants.ErrCodeConfiguration
}

// IsStoreUnavailable reports whether err is a store_unavailable error.
func IsStoreUnavailable(err error) bool {
	return codeOf(err) == constants.ErrCodeStoreUnavailable
}

// IsKeyConstruction reports whether err is a key_construction_error.
func IsKeyConstruction(err error) bool {
	return codeOf(err) == constants.ErrCodeKeyConstruction
}

// IsAlgorithmInternal reports whether err is an algorithm_internal_error.
func IsAlgorithmInternal(err error) bool {
	return codeOf(err) == constants.ErrCodeAlgorithmInternal
}

// IsRateLimitError reports whether err maps to HTTP 429.
func IsRateLimitError(err error) bool {
	if le, ok := AsLimitError(err); ok {
		return le.HTTPStatus() == http.StatusTooManyRequests
	}
	return false
}

// ================================================================================
// Error Response Builder
// ================================================================================

// ErrorResponse represents the JSON structure for error responses.
type ErrorResponse struct {
	Error            string                 `json:"error"`
	ErrorDescription string                 `json:"error_description"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// ToErrorResponse converts a LimitError to an ErrorResponse.
func ToErrorResponse(err LimitError) *ErrorResponse {
	return &ErrorResponse{
		Error:            string(err.Code()),
		ErrorDescription: err.Description(),
		Metadata:         err.Metadata(),
	}
}

// ToGenericErrorResponse converts any error to an ErrorResponse.
func ToGenericErrorResponse(err error) *ErrorResponse {
	if le, ok := AsLimitError(err); ok {
		return ToErrorResponse(le)
	}

	return &ErrorResponse{
		Error:            string(constants.ErrCodeServerError),
		ErrorDescription: "An unexpected error occurred",
	}
}
