package customization

import (
	"fmt"
	"strings"
	"unicode/utf8"

	domain "github.com/storefront/customizer/internal/domain"
)

// DefaultMaxLength is the per-line character limit applied by Validate.
const DefaultMaxLength = 20

// Field names a customization input line.
type Field string

const (
	FieldLine1 Field = "line1"
	FieldLine2 Field = "line2"
)

// Fields lists the customization fields in display order.
var Fields = []Field{FieldLine1, FieldLine2}

// ErrorKind classifies a field error.
type ErrorKind string

const (
	// KindMissingRequiredField marks an empty line 1.
	KindMissingRequiredField ErrorKind = "missing_required_field"
	// KindFieldConstraintViolation marks a length or character-set violation.
	KindFieldConstraintViolation ErrorKind = "field_constraint_violation"
)

// ValidationResult is the verdict for a candidate customization.
// Valid is true iff Errors is empty.
type ValidationResult struct {
	Valid  bool                `json:"valid"`
	Errors map[Field]string    `json:"errors"`
	Kinds  map[Field]ErrorKind `json:"kinds,omitempty"`
}

// Message returns the error recorded for field, if any.
func (r ValidationResult) Message(field Field) string {
	return r.Errors[field]
}

// Kind returns the error classification recorded for field, if any.
func (r ValidationResult) Kind(field Field) ErrorKind {
	return r.Kinds[field]
}

// Err returns nil for a valid result, otherwise a *ValidationError describing it.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Result: r}
}

// Validate checks c against the default line length.
func Validate(c domain.TextCustomization) ValidationResult {
	return ValidateMaxLength(c, DefaultMaxLength)
}

// ValidateMaxLength checks c with an explicit per-line limit. Non-positive limits
// fall back to DefaultMaxLength. Each field records at most one error; the first
// rule that fires wins: presence, then length, then character set.
func ValidateMaxLength(c domain.TextCustomization, maxLength int) ValidationResult {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	errs := make(map[Field]string)
	kinds := make(map[Field]ErrorKind)
	record := func(field Field, kind ErrorKind, message string) {
		if _, exists := errs[field]; exists {
			return
		}
		errs[field] = message
		kinds[field] = kind
	}

	line1 := c.Line1
	if line1 == "" || strings.TrimSpace(line1) == "" {
		record(FieldLine1, KindMissingRequiredField, "Line 1 text is required")
	}
	if line1 != "" && utf8.RuneCountInString(line1) > maxLength {
		record(FieldLine1, KindFieldConstraintViolation, fmt.Sprintf("Line 1 must be %d characters or less", maxLength))
	}
	if line1 != "" && containsDisallowed(line1) {
		record(FieldLine1, KindFieldConstraintViolation, "Line 1 contains invalid characters")
	}

	line2 := c.Line2
	if line2 != "" && utf8.RuneCountInString(line2) > maxLength {
		record(FieldLine2, KindFieldConstraintViolation, fmt.Sprintf("Line 2 must be %d characters or less", maxLength))
	}
	if line2 != "" && containsDisallowed(line2) {
		record(FieldLine2, KindFieldConstraintViolation, "Line 2 contains invalid characters")
	}

	result := ValidationResult{
		Valid:  len(errs) == 0,
		Errors: errs,
	}
	if len(kinds) > 0 {
		result.Kinds = kinds
	}
	return result
}
