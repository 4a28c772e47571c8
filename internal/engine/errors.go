package engine

import (
	"errors"
	"fmt"
)

// AppError is the JSON shape every HTTP error takes.
type AppError struct {
	Code    string        `json:"code"`
	Status  int           `json:"-"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

type ErrorResponse struct {
	Error *AppError `json:"error"`
}

func NewAppError(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

// ── Pipeline error taxonomy ──
//
// AuthError rejects a delivery before any state is created and is never
// retried. MappingError and RemoteError abort the current attempt and are
// retried up to the cap. ConfigError fails identically on every attempt, so
// the state machine sends it straight to terminal failure.

// AuthError means a webhook signature was missing or wrong.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return e.Message }

// MappingError means a required source field could not be mapped.
type MappingError struct {
	Field   string
	Message string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping %s: %s", e.Field, e.Message)
}

// RemoteError wraps a failed CRM or voice-platform call.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// ConfigError means the integration is set up in a way no retry can fix:
// unknown CRM provider, unsupported action type, missing integration.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// IsPermanent reports whether an error should skip the retry loop.
func IsPermanent(err error) bool {
	var cfg *ConfigError
	return errors.As(err, &cfg)
}
