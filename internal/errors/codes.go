// Package errors defines the structured error taxonomy shared by the cache
// engine, its collaborators and the HTTP surface.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a specific error type for cache operations.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeConfiguration indicates a construction-time configuration problem.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"
	// ErrCodeServiceUnavailable indicates the similarity backend or categorizer is not reachable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeLLMCallFailed indicates the LLM caller failed to produce an answer.
	ErrCodeLLMCallFailed ErrorCode = "LLM_CALL_FAILED"
	// ErrCodeContextCanceled indicates the operation was canceled.
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// AIError represents a structured error for cache operations.
type AIError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *AIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AIError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *AIError) WithContext(key string, value interface{}) *AIError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// GetCode returns the error code.
func (e *AIError) GetCode() ErrorCode {
	return e.Code
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *AIError {
	return &AIError{Code: ErrCodeInvalidArgument, Message: msg}
}

// Configuration creates a configuration error.
func Configuration(msg string) *AIError {
	return &AIError{Code: ErrCodeConfiguration, Message: msg}
}

// ServiceUnavailable creates a service unavailable error.
func ServiceUnavailable(msg string, cause error) *AIError {
	return &AIError{Code: ErrCodeServiceUnavailable, Message: msg, Cause: cause}
}

// LLMCallFailed creates an LLM call failure error.
func LLMCallFailed(msg string, cause error) *AIError {
	return &AIError{Code: ErrCodeLLMCallFailed, Message: msg, Cause: cause}
}

// ContextCanceled creates a context canceled error.
func ContextCanceled(cause error) *AIError {
	return &AIError{Code: ErrCodeContextCanceled, Message: "operation canceled", Cause: cause}
}

// Timeout creates a timeout error.
func Timeout(msg string, cause error) *AIError {
	return &AIError{Code: ErrCodeTimeout, Message: msg, Cause: cause}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *AIError {
	return &AIError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error, or any error it wraps, carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var aiErr *AIError
	if stderrors.As(err, &aiErr) {
		return aiErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not an AIError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var aiErr *AIError
	if stderrors.As(err, &aiErr) {
		return aiErr.Code
	}
	return defaultCode
}
