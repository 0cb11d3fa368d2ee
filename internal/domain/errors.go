package domain

import (
	"errors"
	"fmt"
)

// ValidationError marks a malformed or self-inconsistent config. Terminal; the
// work order is never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "validation: " + e.Msg }

// ConflictError marks a business-key collision on create.
type ConflictError struct {
	Kind       ResourceKind
	BusinessID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s %q already has a current version", e.Kind, e.BusinessID)
}

// NotFoundError marks a missing reconciliation or lookup target.
type NotFoundError struct {
	Kind       ResourceKind
	BusinessID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s %q has no current version", e.Kind, e.BusinessID)
}

// RemoteProvisioningError wraps a failure reported by the external sharing
// system.
type RemoteProvisioningError struct {
	Op  string
	Err error
}

func (e *RemoteProvisioningError) Error() string {
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
}

func (e *RemoteProvisioningError) Unwrap() error { return e.Err }

// PersistenceError wraps a store transaction failure. Always fatal to the
// current step.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
