// Package domain defines core types, interfaces, and errors for the ingestion pipeline.
package domain

import (
	"fmt"
	"strings"
)

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., duplicate config entry).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// UnmatchedReason says why a storage key could not be routed.
type UnmatchedReason string

const (
	InvalidKeyShape UnmatchedReason = "invalid_key_shape"
	FormatMismatch  UnmatchedReason = "format_mismatch"
	NoConfigEntry   UnmatchedReason = "no_config_entry"
)

// UnmatchedError is returned when a key resolves to no table configuration.
type UnmatchedError struct {
	Key     string
	Reason  UnmatchedReason
	Message string
}

func (e *UnmatchedError) Error() string {
	return fmt.Sprintf("no config matched %q: %s", e.Key, e.Message)
}

// ErrUnmatched creates an UnmatchedError with a formatted message.
func ErrUnmatched(key string, reason UnmatchedReason, format string, args ...interface{}) *UnmatchedError {
	return &UnmatchedError{Key: key, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// PartitionArityError indicates the file name carried a different number of
// partition values than the table declares partition keys.
type PartitionArityError struct {
	Key      string
	Expected int
	Got      int
}

func (e *PartitionArityError) Error() string {
	return fmt.Sprintf("partition arity mismatch for %q: expected %d values, got %d", e.Key, e.Expected, e.Got)
}

// QualityCheckFailedError carries the expectations that did not pass.
type QualityCheckFailedError struct {
	Suite  string
	Failed []string
}

func (e *QualityCheckFailedError) Error() string {
	return fmt.Sprintf("quality suite %q failed: %s", e.Suite, strings.Join(e.Failed, ", "))
}

// ConfigUnavailableError indicates the lake config object could not be fetched.
type ConfigUnavailableError struct {
	Location string
	Err      error
}

func (e *ConfigUnavailableError) Error() string {
	return fmt.Sprintf("lake config unavailable at %s: %v", e.Location, e.Err)
}

func (e *ConfigUnavailableError) Unwrap() error { return e.Err }

// ConfigMalformedError indicates the lake config could not be parsed or validated.
type ConfigMalformedError struct {
	Location string
	Message  string
	Err      error
}

func (e *ConfigMalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lake config at %s is malformed: %s: %v", e.Location, e.Message, e.Err)
	}
	return fmt.Sprintf("lake config at %s is malformed: %s", e.Location, e.Message)
}

func (e *ConfigMalformedError) Unwrap() error { return e.Err }
