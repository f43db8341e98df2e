package domain

import (
	"errors"
	"fmt"
)

// StoreTransientError wraps a retryable backend fault.
type StoreTransientError struct {
	Op  string
	Err error
}

func (e *StoreTransientError) Error() string {
	return fmt.Sprintf("store: transient failure in %s: %v", e.Op, e.Err)
}

func (e *StoreTransientError) Unwrap() error { return e.Err }

// NewStoreTransientError builds a StoreTransientError.
func NewStoreTransientError(op string, err error) *StoreTransientError {
	return &StoreTransientError{Op: op, Err: err}
}

// StoreFatalError wraps a non-retryable backend fault, including a
// transient fault whose retry budget has been exhausted.
type StoreFatalError struct {
	Op  string
	Err error
}

func (e *StoreFatalError) Error() string {
	return fmt.Sprintf("store: fatal failure in %s: %v", e.Op, e.Err)
}

func (e *StoreFatalError) Unwrap() error { return e.Err }

// NewStoreFatalError builds a StoreFatalError.
func NewStoreFatalError(op string, err error) *StoreFatalError {
	return &StoreFatalError{Op: op, Err: err}
}

// NotFoundError indicates the requested code is absent, expired, or
// malformed.
type NotFoundError struct {
	Code string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("code %q not found", e.Code)
}

// NewNotFoundError builds a NotFoundError.
func NewNotFoundError(code string) *NotFoundError {
	return &NotFoundError{Code: code}
}

// ValidationError indicates a write-time rejection: bad scheme, bad code
// format, reserved-prefix collision, oversize payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ConflictError indicates an upsert without overwrite hit an existing code.
type ConflictError struct {
	Code string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("code %q already exists", e.Code)
}

// NewConflictError builds a ConflictError.
func NewConflictError(code string) *ConflictError {
	return &ConflictError{Code: code}
}

// FlushFailedError indicates an accumulator flush could not complete; the
// caller is expected to restore the sampled deltas.
type FlushFailedError struct {
	Err error
}

func (e *FlushFailedError) Error() string {
	return fmt.Sprintf("click flush failed: %v", e.Err)
}

func (e *FlushFailedError) Unwrap() error { return e.Err }

// NewFlushFailedError builds a FlushFailedError.
func NewFlushFailedError(err error) *FlushFailedError {
	return &FlushFailedError{Err: err}
}

// ConfigValidationError indicates a set(key, value) call failed type
// parsing or range validation before any store transaction was opened.
type ConfigValidationError struct {
	Key    string
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("config key %q: %s", e.Key, e.Reason)
}

// NewConfigValidationError builds a ConfigValidationError.
func NewConfigValidationError(key, reason string) *ConfigValidationError {
	return &ConfigValidationError{Key: key, Reason: reason}
}

// IsRetryable reports whether err should be retried by the store's retry
// policy.
func IsRetryable(err error) bool {
	var transient *StoreTransientError
	return errors.As(err, &transient)
}

// IsNotFound reports whether err represents an absent/expired/malformed
// code.
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

// IsValidation reports whether err is a write-time validation failure.
func IsValidation(err error) bool {
	var validation *ValidationError
	return errors.As(err, &validation)
}

// IsConflict reports whether err is an upsert conflict.
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}

// IsStoreFatal reports whether err is a non-retryable backend fault.
func IsStoreFatal(err error) bool {
	var fatal *StoreFatalError
	return errors.As(err, &fatal)
}
