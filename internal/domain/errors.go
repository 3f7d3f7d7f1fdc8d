package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("already exists")
	ErrValidation       = errors.New("validation failed")
	ErrForbidden        = errors.New("access denied")
	ErrInvalidPlacement = errors.New("invalid placement")
)

// Domain error types. Each one matches its sentinel through errors.Is so
// callers can branch on the kind without caring about the concrete type.
type (
	// NotFoundError indicates a referenced folder, file or version does not exist
	NotFoundError struct {
		Message      string
		ResourceType string
		ResourceID   string
	}

	// ValidationError indicates malformed input (empty name, bad permission bits)
	ValidationError struct {
		Message string
	}

	// ForbiddenError indicates the actor lacks ownership or role for the operation
	ForbiddenError struct {
		Message string
	}

	// InvalidPlacementError indicates a structural rule was violated:
	// partition mismatch, move into own subtree, system folder mutation.
	InvalidPlacementError struct {
		Message string
	}
)

func (e *NotFoundError) Error() string         { return e.Message }
func (e *ValidationError) Error() string       { return e.Message }
func (e *ForbiddenError) Error() string        { return e.Message }
func (e *InvalidPlacementError) Error() string { return e.Message }

func (e *NotFoundError) Is(target error) bool         { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool       { return target == ErrValidation }
func (e *ForbiddenError) Is(target error) bool        { return target == ErrForbidden }
func (e *InvalidPlacementError) Is(target error) bool { return target == ErrInvalidPlacement }

// ConflictError represents a name collision with details about the existing resource
type ConflictError struct {
	Message      string // Human-readable error message
	ResourceType string // folder or file
	ResourceID   string // ID of the existing/conflicting resource
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return e.Message
}

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// NewNotFound builds a NotFoundError for a resource type and ID
func NewNotFound(resourceType, id string) *NotFoundError {
	return &NotFoundError{
		Message:      fmt.Sprintf("%s %s not found", resourceType, id),
		ResourceType: resourceType,
		ResourceID:   id,
	}
}

// NewForbidden builds a ForbiddenError
func NewForbidden(format string, args ...any) *ForbiddenError {
	return &ForbiddenError{Message: fmt.Sprintf(format, args...)}
}

// NewInvalidPlacement builds an InvalidPlacementError
func NewInvalidPlacement(format string, args ...any) *InvalidPlacementError {
	return &InvalidPlacementError{Message: fmt.Sprintf(format, args...)}
}

// NewValidation builds a ValidationError
func NewValidation(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
