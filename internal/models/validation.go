// ABOUTME: Field-level validation errors shared by schema and domain checks.
// ABOUTME: ValidationError wraps ErrValidation so callers can use errors.Is.
package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrValidation is the sentinel wrapped by every ValidationError.
var ErrValidation = errors.New("validation failed")

// Violations maps a field path to a human-readable problem.
type Violations map[string]string

// Add records a violation for field unless one is already present.
func (v Violations) Add(field, msg string) {
	if _, ok := v[field]; !ok {
		v[field] = msg
	}
}

// Err returns nil when there are no violations, otherwise a *ValidationError.
func (v Violations) Err(table Table) error {
	if len(v) == 0 {
		return nil
	}
	return &ValidationError{Table: table, Violations: v}
}

// ValidationError reports invalid fields of a record.
type ValidationError struct {
	Table      Table
	Violations Violations
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for f := range e.Violations {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e.Violations[f]))
	}
	if e.Table == "" {
		return "invalid input: " + strings.Join(parts, "; ")
	}
	return fmt.Sprintf("invalid %s record: %s", e.Table, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Field returns the message for a field, if any.
func (e *ValidationError) Field(name string) (string, bool) {
	msg, ok := e.Violations[name]
	return msg, ok
}
