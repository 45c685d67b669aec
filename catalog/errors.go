package catalog

import (
	"errors"
	"fmt"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/job"
)

// FieldError reports a single invalid parameter.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Invalid is a shorthand for building a FieldError.
func Invalid(field, format string, args ...any) error {
	return &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ValidationError is returned when parameters do not satisfy an entry's
// schema.
type ValidationError struct {
	DemoID string
	Field  string
	Reason string
}

func newValidationError(demoID string, err error) *ValidationError {
	ve := &ValidationError{DemoID: demoID, Reason: err.Error()}
	var fe *FieldError
	if errors.As(err, &fe) {
		ve.Field = fe.Field
		ve.Reason = fe.Reason
	}
	return ve
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid parameters for %s: %s: %s", e.DemoID, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid parameters for %s: %s", e.DemoID, e.Reason)
}

// Unwrap lets callers match the taxonomy with errors.Is.
func (*ValidationError) Unwrap() error {
	return job.ErrValidation
}
