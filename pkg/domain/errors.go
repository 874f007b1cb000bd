package domain

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError describes one invalid or missing input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports caller mistakes: missing or malformed fields,
// self-references and impossible relationships. Never retried automatically.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) ValidationError {
	return ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Add appends a field error.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Empty reports whether no field errors were collected.
func (e ValidationError) Empty() bool { return len(e.Fields) == 0 }

// OrNil returns the error when it carries field errors and nil otherwise.
func (e ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

// HasField reports whether a field error is recorded for field.
func (e ValidationError) HasField(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func (e ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NotFoundError is returned when an operation target or a referenced record
// does not exist.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ConflictError signals that a record changed between the read and the
// compare-and-swap write. Callers should reload and retry.
type ConflictError struct {
	Entity   EntityType
	ID       string
	Expected int64
	Actual   int64
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently (expected version %d, found %d)", e.Entity, e.ID, e.Expected, e.Actual)
}

// InternalError wraps store and transaction failures. The transaction
// guarantees no partial effect, so callers may retry.
type InternalError struct {
	Op  string
	Err error
}

func (e InternalError) Error() string {
	if e.Err == nil {
		return e.Op + ": internal error"
	}
	return e.Op + ": " + e.Err.Error()
}

func (e InternalError) Unwrap() error { return e.Err }

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

// IsConflict reports whether err is or wraps a ConflictError.
func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

// IsInternal reports whether err is or wraps an InternalError.
func IsInternal(err error) bool {
	var target InternalError
	return errors.As(err, &target)
}
