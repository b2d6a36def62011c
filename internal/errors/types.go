package errors

import (
	"fmt"
)

// ErrorCode represents a categorized error type. Codes are stable tokens that
// flow through to API responses.
type ErrorCode string

const (
	// Request validation
	ErrCodeMissingFields ErrorCode = "missing_fields"
	ErrCodeInvalidInput  ErrorCode = "invalid_input"

	// Campaign preconditions
	ErrCodeSessionNotReady   ErrorCode = "session_not_ready"
	ErrCodeNoValidRecipients ErrorCode = "no_valid_recipients"

	// Session lifecycle
	ErrCodeSessionNotFound ErrorCode = "session_not_found"

	// External collaborators
	ErrCodeMessagingAPI ErrorCode = "messaging_api"
	ErrCodeDatabase     ErrorCode = "database"

	// Configuration
	ErrCodeInvalidConfig ErrorCode = "invalid_config"

	// Catch-all
	ErrCodeInternal  ErrorCode = "internal_error"
	ErrCodeNotFound  ErrorCode = "not_found"
	ErrCodeRateLimit ErrorCode = "rate_limit"
)

// AppError represents a structured application error
type AppError struct {
	Code        ErrorCode              `json:"code"`
	Message     string                 `json:"message"`
	Cause       error                  `json:"-"`
	Context     map[string]interface{} `json:"context,omitempty"`
	UserMessage string                 `json:"user_message,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithUserMessage sets a user-friendly message
func (e *AppError) WithUserMessage(msg string) *AppError {
	e.UserMessage = msg
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// GetUserMessage extracts a user-friendly message from an error
func GetUserMessage(err error) string {
	if appErr, ok := err.(*AppError); ok && appErr.UserMessage != "" {
		return appErr.UserMessage
	}
	return "An internal error occurred"
}
