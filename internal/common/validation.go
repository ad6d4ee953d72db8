package common

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidationError is one failed rule on one field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Validator collects rule failures across fields.
type Validator struct {
	errors []ValidationError
}

func NewValidator() *Validator {
	return &Validator{}
}

// Field applies rules to value and records every failure.
func (v *Validator) Field(fieldName string, value any, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// Error joins the failures, or returns nil when there are none.
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	return errors.New(v.ErrorMessage())
}

func (v *Validator) ErrorMessage() string {
	msgs := make([]string, 0, len(v.errors))
	for _, err := range v.errors {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidationRule checks one field value. Rules only inspect the types they
// understand and pass everything else.
type ValidationRule func(fieldName string, value any) *ValidationError

func fail(fieldName string, value any, format string, args ...any) *ValidationError {
	return &ValidationError{Field: fieldName, Value: value, Message: fmt.Sprintf(format, args...)}
}

// Required rejects nil and blank strings.
func Required(fieldName string, value any) *ValidationError {
	switch v := value.(type) {
	case nil:
		return fail(fieldName, value, "is required")
	case string:
		if strings.TrimSpace(v) == "" {
			return fail(fieldName, value, "is required")
		}
	}
	return nil
}

// MaxLength rejects strings longer than max runes.
func MaxLength(max int) ValidationRule {
	return func(fieldName string, value any) *ValidationError {
		if s, ok := value.(string); ok && utf8.RuneCountInString(s) > max {
			// the value itself may be huge; keep it out of the message
			return &ValidationError{Field: fieldName, Message: fmt.Sprintf("must be at most %d characters", max)}
		}
		return nil
	}
}

// UUID accepts strings that parse as a UUID. Blank strings are left to Required.
func UUID(fieldName string, value any) *ValidationError {
	s, ok := value.(string)
	if !ok || s == "" {
		return nil
	}
	if _, err := uuid.Parse(s); err != nil {
		return fail(fieldName, value, "must be a valid UUID")
	}
	return nil
}

// OneOf accepts string values from a fixed set.
func OneOf(allowed ...string) ValidationRule {
	return func(fieldName string, value any) *ValidationError {
		s, _ := value.(string)
		for _, a := range allowed {
			if s == a {
				return nil
			}
		}
		return fail(fieldName, value, "must be one of [%s]", strings.Join(allowed, ", "))
	}
}

// IntRange accepts ints within [min, max].
func IntRange(min, max int) ValidationRule {
	return func(fieldName string, value any) *ValidationError {
		n, ok := value.(int)
		if !ok {
			return fail(fieldName, value, "must be an integer")
		}
		if n < min || n > max {
			return fail(fieldName, value, "must be between %d and %d", min, max)
		}
		return nil
	}
}

// ValidateAndReturnError turns collected failures into an InvalidArgument
// status error.
func ValidateAndReturnError(validator *Validator) error {
	if validator.HasErrors() {
		return ToStatus(fmt.Errorf("%w: %s", ErrValidation, validator.ErrorMessage()))
	}
	return nil
}
