package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique fault identifier
type ErrorCode string

const (
	// Transport
	ErrCodeTransportLost ErrorCode = "TRANSPORT_LOST"
	ErrCodeAuthFailed    ErrorCode = "AUTH_FAILED"

	// Protocol
	ErrCodeConfigRejected ErrorCode = "ROOM_CONFIG_REJECTED"
	ErrCodeJoinRejected   ErrorCode = "ROOM_JOIN_REJECTED"
	ErrCodeBadStanza      ErrorCode = "MALFORMED_STANZA"

	// Store
	ErrCodeStore ErrorCode = "STORE_ERROR"

	// Internal
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// AppError is a structured fault carried across the event loop.
type AppError struct {
	Code    ErrorCode
	Message string
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, cause: cause}
}

func TransportLost(cause error) *AppError {
	return Wrap(ErrCodeTransportLost, "session connection lost", cause)
}

func AuthFailed(cause error) *AppError {
	return Wrap(ErrCodeAuthFailed, "could not establish session", cause)
}

func ConfigRejected(room string, cause error) *AppError {
	return Wrap(ErrCodeConfigRejected, fmt.Sprintf("configuration rejected for %s", room), cause)
}

func Store(cause error) *AppError {
	return Wrap(ErrCodeStore, "store error", cause)
}

// IsTransportLost reports whether err means the session became unusable and a
// reconnect is required.
func IsTransportLost(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == ErrCodeTransportLost
	}
	return false
}

// GetCode returns the fault code, or ErrCodeInternal for plain errors.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}
