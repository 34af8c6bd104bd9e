package engine

import (
	"errors"
	"fmt"
)

// SyncError represents an error detected by the engine itself, as
// opposed to an error surfaced by the store or the gateway.
type SyncError struct {
	// Code identifies the error category.
	Code SyncErrorCode

	// Message is a human-readable description.
	Message string

	// UserID identifies the affected identity, when known.
	UserID string
}

// SyncErrorCode categorizes engine errors.
type SyncErrorCode string

const (
	// ErrCodeNotBound indicates no identity is bound to the engine.
	ErrCodeNotBound SyncErrorCode = "NOT_BOUND"

	// ErrCodeCycleInFlight indicates a sync cycle is already running.
	ErrCodeCycleInFlight SyncErrorCode = "CYCLE_IN_FLIGHT"

	// ErrCodeInvariantViolation indicates a referential invariant was
	// about to be broken. These are programmer-detectable bugs and are
	// raised loudly, never swallowed.
	ErrCodeInvariantViolation SyncErrorCode = "INVARIANT_VIOLATION"

	// ErrCodeGatewayUnavailable indicates the remote gateway call
	// failed at the transport level.
	ErrCodeGatewayUnavailable SyncErrorCode = "GATEWAY_UNAVAILABLE"
)

// Error implements the error interface.
func (e *SyncError) Error() string {
	if e.UserID != "" {
		return fmt.Sprintf("%s: %s (user=%s)", e.Code, e.Message, e.UserID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNotBound reports whether err is a NOT_BOUND engine error.
// Uses errors.As to handle wrapped errors.
func IsNotBound(err error) bool {
	var se *SyncError
	return errors.As(err, &se) && se.Code == ErrCodeNotBound
}

// IsCycleInFlight reports whether err is a CYCLE_IN_FLIGHT error.
func IsCycleInFlight(err error) bool {
	var se *SyncError
	return errors.As(err, &se) && se.Code == ErrCodeCycleInFlight
}

// IsInvariantViolation reports whether err is an INVARIANT_VIOLATION.
func IsInvariantViolation(err error) bool {
	var se *SyncError
	return errors.As(err, &se) && se.Code == ErrCodeInvariantViolation
}

func errNotBound() *SyncError {
	return &SyncError{
		Code:    ErrCodeNotBound,
		Message: "no identity bound; call Bind first",
	}
}

func errCycleInFlight(userID string) *SyncError {
	return &SyncError{
		Code:    ErrCodeCycleInFlight,
		Message: "a sync cycle is already running",
		UserID:  userID,
	}
}

func errInvariant(message string) *SyncError {
	return &SyncError{
		Code:    ErrCodeInvariantViolation,
		Message: message,
	}
}
