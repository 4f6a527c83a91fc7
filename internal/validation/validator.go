// =============================================================================
// Ticket Reconciler - Validation
// =============================================================================
//
// This module validates processing requests before any file is opened or any
// row is scanned. It covers:
//   - Row range checks (start must be >= 1 and <= end)
//   - Column selection checks (master id columns, target match columns)
//   - Column index bounds (indices must be >= 0)
//
// ERROR HANDLING:
//   - Errors are collected, not returned on the first failure
//   - Each error names the field, the offending value and the broken rule
//   - The rule is a sentinel, so callers can use errors.Is on the result
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ginjaninja78/ticket-reconciler/internal/types"
)

// =============================================================================
// RULES
// =============================================================================

var (
	// ErrInvalidRowRange is the rule broken by a range with start > end or start < 1.
	ErrInvalidRowRange = errors.New("invalid row range")

	// ErrNoColumns is the rule broken when a required column selection is empty.
	ErrNoColumns = errors.New("no columns selected")

	// ErrInvalidColumn is the rule broken by a negative column index.
	ErrInvalidColumn = errors.New("invalid column index")

	// ErrMissingPath is the rule broken when a required file path is empty.
	ErrMissingPath = errors.New("missing file path")

	// ErrInvalidValue is the rule broken by a value outside its allowed domain.
	ErrInvalidValue = errors.New("invalid value")
)

// =============================================================================
// VALIDATION ERROR
// =============================================================================

// ValidationError describes one failed check.
type ValidationError struct {
	// Field is the request field that failed validation.
	Field string

	// Value is the offending value, rendered for display.
	Value string

	// Rule is the sentinel for the violated rule.
	Rule error

	// Message is a human-readable explanation.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s (value: '%s')", e.Field, e.Message, e.Value)
}

// Unwrap exposes the rule so errors.Is works against the sentinels.
func (e *ValidationError) Unwrap() error {
	return e.Rule
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator accumulates validation errors.
type Validator struct {
	errs []*ValidationError
}

// New returns an empty Validator.
func New() *Validator {
	return &Validator{}
}

// Add records a failed check.
func (v *Validator) Add(field, value string, rule error, message string) {
	v.errs = append(v.errs, &ValidationError{
		Field:   field,
		Value:   value,
		Rule:    rule,
		Message: message,
	})
}

// RowRange checks an optional row range. A nil range is always valid.
func (v *Validator) RowRange(field string, rng *types.RowRange) {
	if rng == nil {
		return
	}
	if rng.Start < 1 {
		v.Add(field, rng.String(), ErrInvalidRowRange, "row range must start at row 1 or later")
		return
	}
	if rng.Start > rng.End {
		v.Add(field, rng.String(), ErrInvalidRowRange, "row range start is after its end")
	}
}

// Columns checks that at least one column is selected and all indices are valid.
func (v *Validator) Columns(field string, indices []int) {
	if len(indices) == 0 {
		v.Add(field, "", ErrNoColumns, "at least one column must be selected")
		return
	}
	for _, idx := range indices {
		if idx < 0 {
			v.Add(field, fmt.Sprintf("%d", idx), ErrInvalidColumn, "column index must not be negative")
		}
	}
}

// Column checks a single optional column index; -1 means "not set".
func (v *Validator) Column(field string, index int) {
	if index < -1 {
		v.Add(field, fmt.Sprintf("%d", index), ErrInvalidColumn, "column index must be -1 (unset) or non-negative")
	}
}

// Path checks that a file path is present.
func (v *Validator) Path(field, path string) {
	if strings.TrimSpace(path) == "" {
		v.Add(field, "", ErrMissingPath, "a file path is required")
	}
}

// Err returns nil when every check passed, otherwise all errors joined.
func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	errs := make([]error, len(v.errs))
	for i, e := range v.errs {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// =============================================================================
// HELPERS
// =============================================================================

// AsErrors unpacks the validation errors held by err, which is usually the
// result of Err. Errors of other types are left out.
func AsErrors(err error) []*ValidationError {
	if err == nil {
		return nil
	}
	switch e := err.(type) {
	case *ValidationError:
		return []*ValidationError{e}
	case interface{ Unwrap() []error }:
		var out []*ValidationError
		for _, inner := range e.Unwrap() {
			out = append(out, AsErrors(inner)...)
		}
		return out
	}
	return AsErrors(errors.Unwrap(err))
}

// FormatErrors formats validation errors for display or logging.
func FormatErrors(errs []*ValidationError) string {
	if len(errs) == 0 {
		return "No validation errors."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d validation error(s):\n", len(errs)))
	for i, e := range errs {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, e.Error()))
	}
	return sb.String()
}
