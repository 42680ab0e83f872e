// Package errors defines custom error types and error handling utilities for the pushgate engine.
// This package provides structured error types that map to machine-readable codes and HTTP status codes.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeInvalidArgument    Code = "invalid_argument"
	CodeInternal           Code = "internal_error"
	CodeUnauthorized       Code = "unauthorized"
	CodeRateLimitExceeded  Code = "rate_limit_exceeded"
	CodeServiceUnavailable Code = "service_unavailable"
	CodeDuplicateRequest   Code = "duplicate_request"

	// Credential signer
	CodeKeyParse        Code = "key_parse_failed"
	CodeRandomSource    Code = "random_source_failed"
	CodeSignatureFormat Code = "signature_format_invalid"
	CodeKeySource       Code = "key_source_failed"

	// Protocol client
	CodeConnection            Code = "connection_failed"
	CodeProtocolTimeout       Code = "protocol_timeout"
	CodeUnregisteredRecipient Code = "unregistered_recipient"
	CodeProtocol              Code = "protocol_error"

	// Token registry
	CodeRegistryNotFound Code = "not_found"
	CodeRegistryIO       Code = "registry_io_error"

	// Dispatch coordinator
	CodeTaskBudgetExhausted Code = "task_budget_exhausted"
)

// ================================================================================
// Base Error Interface
// ================================================================================

// AppError represents a structured error with additional metadata
type AppError interface {
	error

	// Code returns the machine-readable error code
	Code() Code

	// HTTPStatus returns the HTTP status code
	HTTPStatus() int

	// Description returns a human-readable description
	Description() string

	// Unwrap returns the underlying error for error chain support
	Unwrap() error

	// WithCause returns a copy carrying cause in its error chain
	WithCause(cause error) AppError

	// WithMessage returns a copy with a more specific message
	WithMessage(message string) AppError

	// WithMetadata returns a copy with an additional context entry
	WithMetadata(key string, value interface{}) AppError

	// Metadata returns all metadata
	Metadata() map[string]interface{}
}

// ================================================================================
// Base Error Implementation
// ================================================================================

type baseError struct {
	code        Code
	httpStatus  int
	description string
	message     string
	cause       error
	metadata    map[string]interface{}
}

// Error implements the error interface
func (e *baseError) Error() string {
	msg := e.message
	if msg == "" {
		msg = e.description
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

func (e *baseError) Code() Code          { return e.code }
func (e *baseError) HTTPStatus() int     { return e.httpStatus }
func (e *baseError) Description() string { return e.description }
func (e *baseError) Unwrap() error       { return e.cause }

// Is reports whether target carries the same code, so wrapped copies of a
// sentinel still match it under errors.Is.
func (e *baseError) Is(target error) bool {
	t, ok := target.(*baseError)
	return ok && t.code == e.code
}

func (e *baseError) clone() *baseError {
	c := *e
	c.metadata = make(map[string]interface{}, len(e.metadata))
	for k, v := range e.metadata {
		c.metadata[k] = v
	}
	return &c
}

// WithCause adds a cause error to the error chain
func (e *baseError) WithCause(cause error) AppError {
	c := e.clone()
	c.cause = cause
	return c
}

// WithMessage overrides the message of a copy
func (e *baseError) WithMessage(message string) AppError {
	c := e.clone()
	c.message = message
	return c
}

// WithMetadata adds additional context metadata
func (e *baseError) WithMetadata(key string, value interface{}) AppError {
	c := e.clone()
	c.metadata[key] = value
	return c
}

// Metadata returns all metadata
func (e *baseError) Metadata() map[string]interface{} {
	return e.metadata
}

// ================================================================================
// Error Constructor
// ================================================================================

// NewError creates a new AppError with the specified parameters
func NewError(code Code, httpStatus int, description string) AppError {
	return &baseError{
		code:        code,
		httpStatus:  httpStatus,
		description: description,
		metadata:    make(map[string]interface{}),
	}
}

// ================================================================================
// Predefined Errors
// ================================================================================

var (
	ErrInvalidArgument    = NewError(CodeInvalidArgument, http.StatusBadRequest, "The request is missing a required parameter or includes an invalid parameter value.")
	ErrInternal           = NewError(CodeInternal, http.StatusInternalServerError, "An unexpected error occurred.")
	ErrUnauthorized       = NewError(CodeUnauthorized, http.StatusUnauthorized, "Authentication required.")
	ErrRateLimitExceeded  = NewError(CodeRateLimitExceeded, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
	ErrServiceUnavailable = NewError(CodeServiceUnavailable, http.StatusServiceUnavailable, "The service is temporarily unavailable.")
	ErrDuplicateRequest   = NewError(CodeDuplicateRequest, http.StatusConflict, "This request has already been processed.")

	ErrKeyParse        = NewError(CodeKeyParse, http.StatusInternalServerError, "The signing key could not be parsed as a P-256 private key.")
	ErrRandomSource    = NewError(CodeRandomSource, http.StatusInternalServerError, "The random source failed while signing.")
	ErrSignatureFormat = NewError(CodeSignatureFormat, http.StatusInternalServerError, "The ECDSA signature is not a well-formed DER sequence.")
	ErrKeySource       = NewError(CodeKeySource, http.StatusInternalServerError, "The signing key could not be loaded.")

	ErrConnection            = NewError(CodeConnection, http.StatusBadGateway, "The push gateway connection could not be established.")
	ErrProtocolTimeout       = NewError(CodeProtocolTimeout, http.StatusGatewayTimeout, "The push gateway did not respond in time.")
	ErrUnregisteredRecipient = NewError(CodeUnregisteredRecipient, http.StatusGone, "The recipient token is no longer registered.")
	ErrProtocol              = NewError(CodeProtocol, http.StatusBadGateway, "The push gateway rejected the notification.")

	ErrRegistryNotFound = NewError(CodeRegistryNotFound, http.StatusNotFound, "No matching registry entry.")
	ErrRegistryIO       = NewError(CodeRegistryIO, http.StatusInternalServerError, "The registry storage failed.")

	ErrTaskBudgetExhausted = NewError(CodeTaskBudgetExhausted, http.StatusServiceUnavailable, "Too many dispatch units are already scheduled.")
)

// ================================================================================
// Error Utilities
// ================================================================================

// Is is a passthrough to the standard library.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As is a passthrough to the standard library.
func As(err error, target interface{}) bool { return stderrors.As(err, target) }

// New is a passthrough to the standard library for plain errors.
func New(text string) error { return stderrors.New(text) }

// AsAppError finds the first AppError in err's chain
func AsAppError(err error) (AppError, bool) {
	var appErr AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Wrap attaches cause to a copy of the sentinel, with an optional message.
func Wrap(sentinel AppError, cause error, message string) AppError {
	e := sentinel.WithCause(cause)
	if message != "" {
		e = e.WithMessage(message)
	}
	return e
}

// ================================================================================
// Error Response Builder
// ================================================================================

// ErrorResponse represents the JSON structure for error responses
type ErrorResponse struct {
	Error            string                 `json:"error"`
	ErrorDescription string                 `json:"error_description"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// ToErrorResponse converts any error to an ErrorResponse and its HTTP status
func ToErrorResponse(err error) (int, *ErrorResponse) {
	if appErr, ok := AsAppError(err); ok {
		resp := &ErrorResponse{
			Error:            string(appErr.Code()),
			ErrorDescription: appErr.Description(),
		}
		if len(appErr.Metadata()) > 0 {
			resp.Metadata = appErr.Metadata()
		}
		return appErr.HTTPStatus(), resp
	}

	return http.StatusInternalServerError, &ErrorResponse{
		Error:            string(CodeInternal),
		ErrorDescription: "An unexpected error occurred",
	}
}

// ShouldLogError determines if an error should be logged based on severity
func ShouldLogError(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		status := appErr.HTTPStatus()
		return status >= 500 || status == http.StatusTooManyRequests
	}
	return true
}
