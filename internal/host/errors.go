package host

import (
	"errors"
	"fmt"
)

// RuntimeError represents a host lifecycle failure.
//
// Runtime errors include:
//   - No host available: the host was destroyed and the lifecycle refuses
//     to create another one, or the process is shutting down
//   - Re-entrant creation: host creation was triggered again from inside
//     host creation
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// HostID identifies the affected host, if one exists.
	HostID string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeNoHostAvailable indicates no live host exists and none can be made.
	ErrCodeNoHostAvailable RuntimeErrorCode = "NO_HOST_AVAILABLE"

	// ErrCodeReentrantHostCreation indicates host creation recursed into itself.
	ErrCodeReentrantHostCreation RuntimeErrorCode = "REENTRANT_HOST_CREATION"
)

// Sentinels for errors.Is. Any RuntimeError with the same Code matches.
var (
	ErrNoHostAvailable       = &RuntimeError{Code: ErrCodeNoHostAvailable, Message: "no host available"}
	ErrReentrantHostCreation = &RuntimeError{Code: ErrCodeReentrantHostCreation, Message: "host creation re-entered"}
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.HostID != "" {
		return fmt.Sprintf("%s: %s (host=%s)", e.Code, e.Message, e.HostID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any RuntimeError carrying the same code.
func (e *RuntimeError) Is(target error) bool {
	var re *RuntimeError
	if !errors.As(target, &re) {
		return false
	}
	return re.Code == e.Code
}

// IsNoHostError returns true if err is or wraps a no-host error.
func IsNoHostError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeNoHostAvailable
	}
	return false
}

// NewNoHostError creates a RuntimeError for a missing host.
func NewNoHostError(reason, hostID string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeNoHostAvailable,
		Message: "no host available",
		HostID:  hostID,
		Details: map[string]string{
			"reason": reason,
		},
	}
}

// NewReentrantCreationError creates a RuntimeError for recursive creation.
func NewReentrantCreationError(name string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeReentrantHostCreation,
		Message: fmt.Sprintf("creation of host %q re-entered from inside its own creation", name),
		Details: map[string]string{
			"name": name,
		},
	}
}
