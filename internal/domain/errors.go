package domain

import (
	"errors"
	"fmt"
)

// ErrTwoFactorRequired signals that sign-in needs the account password.
// It drives the auth flow to the password step rather than ending it.
var ErrTwoFactorRequired = errors.New("two-factor password required")

// ErrNotAuthorized is returned by operations that need a signed-in user.
var ErrNotAuthorized = &AuthError{Message: "user is not authorized"}

// TransportError covers network failures and non-2xx backend responses.
type TransportError struct {
	StatusCode int // 0 when no response was received
	Message    string
	Cause      error
}

func (e *TransportError) Error() string {
	return e.Message
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// ValidationError rejects malformed input before any network call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// AuthError reports rejected credentials or an expired code hash.
type AuthError struct {
	Message string
	Cause   error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

// CodeRequestError wraps any failure of the send-code step.
type CodeRequestError struct {
	Cause error
}

func (e *CodeRequestError) Error() string {
	return "request code: " + e.Cause.Error()
}

func (e *CodeRequestError) Unwrap() error {
	return e.Cause
}
