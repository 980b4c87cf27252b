package customization

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingRequiredField matches validation errors where line 1 is empty.
	ErrMissingRequiredField = errors.New("customization: missing required field")
	// ErrFieldConstraintViolation matches validation errors caused by length or character-set rules.
	ErrFieldConstraintViolation = errors.New("customization: field constraint violation")
)

// ValidationError wraps an invalid ValidationResult so it can travel through error returns.
type ValidationError struct {
	Result ValidationResult
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e == nil || len(e.Result.Errors) == 0 {
		return "customization: invalid"
	}
	parts := make([]string, 0, len(e.Result.Errors))
	for _, field := range Fields {
		if msg, ok := e.Result.Errors[field]; ok {
			parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
		}
	}
	return fmt.Sprintf("customization: invalid [%s]", strings.Join(parts, "; "))
}

// Is matches the sentinel for every error kind carried by the result.
func (e *ValidationError) Is(target error) bool {
	if e == nil {
		return false
	}
	for _, kind := range e.Result.Kinds {
		switch {
		case kind == KindMissingRequiredField && target == ErrMissingRequiredField:
			return true
		case kind == KindFieldConstraintViolation && target == ErrFieldConstraintViolation:
			return true
		}
	}
	return false
}

// Fields returns a copy of the field error messages.
func (e *ValidationError) Fields() map[Field]string {
	if e == nil {
		return nil
	}
	out := make(map[Field]string, len(e.Result.Errors))
	for k, v := range e.Result.Errors {
		out[k] = v
	}
	return out
}
