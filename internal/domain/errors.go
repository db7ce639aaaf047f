// Package domain contains domain errors used throughout the application.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	ErrNotGitRepo         = errors.New("not a git repository")
	ErrDetachedHead       = errors.New("HEAD is detached")
	ErrEmptyIdentity      = errors.New("identity is empty")
	ErrPortRangeExhausted = errors.New("no free port in range")
	ErrPortReserved       = errors.New("port is reserved")
	ErrPortOutOfRange     = errors.New("port is outside the configured range")
	ErrEntryNotFound      = errors.New("registry entry not found")
	ErrNoCommand          = errors.New("no dev-server command configured")
)

// GitError represents an error from Git operations.
type GitError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

func (e *GitError) Error() string {
	return fmt.Sprintf("git %s: %v", e.Op, e.Err)
}

func (e *GitError) Unwrap() error {
	return e.Err
}

// NewGitError creates a new GitError.
func NewGitError(op string, err error) *GitError {
	return &GitError{
		Op:  op,
		Err: err,
	}
}

// AllocationError reports a failed port allocation together with the range
// that was scanned, so users can self-diagnose without reading source.
type AllocationError struct {
	Identity string
	Min      int
	Max      int
	Err      error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("allocate port for %q: scanned %d-%d: %v", e.Identity, e.Min, e.Max, e.Err)
}

func (e *AllocationError) Unwrap() error {
	return e.Err
}

// NewAllocationError creates a new AllocationError.
func NewAllocationError(identity string, min, max int, err error) *AllocationError {
	return &AllocationError{
		Identity: identity,
		Min:      min,
		Max:      max,
		Err:      err,
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
