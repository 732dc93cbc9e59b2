package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrAccessDenied    = errors.New("access denied")
	ErrUnauthenticated = errors.New("authentication required")
	ErrValidation      = errors.New("validation failed")
	// ErrDuplicate is returned by storage when a uniqueness constraint fails.
	ErrDuplicate = errors.New("duplicate record")

	// Both match ErrNotFound.
	ErrMonthNotFound = fmt.Errorf("month: %w", ErrNotFound)
	ErrNoteNotFound  = fmt.Errorf("note: %w", ErrNotFound)
)

// ValidationError reports field-level problems with submitted attributes.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError with a single field message.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Add records msg for field, keeping the first message per field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// FieldErrors extracts the field messages of a validation error, if any.
func FieldErrors(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}
