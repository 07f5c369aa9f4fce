// Package apperr defines the error taxonomy shared by the repositories, the
// REST layer and the sync engine. The processor decides retry eligibility
// from these types alone.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is matched by every NotFoundError through errors.Is.
var ErrNotFound = errors.New("not found")

// ValidationError is bad input. It is never retried.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

func NewValidationError(msgs ...string) error {
	return &ValidationError{Errors: msgs}
}

func IsValidationError(err error) bool {
	var validationError *ValidationError
	return errors.As(err, &validationError)
}

// NotFoundError is a missing row or a row owned by someone else.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// TransportError is a network failure, timeout or 5xx. Retried with backoff.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: remote returned %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func Transport(op string, statusCode int, err error) error {
	return &TransportError{Op: op, StatusCode: statusCode, Err: err}
}

func IsTransportError(err error) bool {
	var transportError *TransportError
	return errors.As(err, &transportError)
}

// StorageError is a local persistence failure. Fatal to the current operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("local storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError. A nil err stays nil and an existing
// StorageError is not wrapped twice.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var storageError *StorageError
	if errors.As(err, &storageError) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func IsStorageError(err error) bool {
	var storageError *StorageError
	return errors.As(err, &storageError)
}

// AssignmentError means no backend can be resolved for a user. It blocks all
// data access for that user.
type AssignmentError struct {
	UserID string
	Err    error
}

func (e *AssignmentError) Error() string {
	return fmt.Sprintf("no backend assignment for user %s: %v", e.UserID, e.Err)
}

func (e *AssignmentError) Unwrap() error { return e.Err }

func IsAssignmentError(err error) bool {
	var assignmentError *AssignmentError
	return errors.As(err, &assignmentError)
}

// Retryable reports whether the sync processor should retry err with
// backoff. Validation and not-found errors are terminal; anything unknown is
// treated as a transport problem.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case IsValidationError(err), IsNotFound(err), IsStorageError(err), IsAssignmentError(err):
		return false
	}
	return true
}
