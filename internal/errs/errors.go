package errs

import (
	"errors"
	"fmt"
)

// PreconditionError reports a configuration or argument that can never lead
// to a valid simulation. It is returned at construction time and is not
// meant to be retried.
type PreconditionError struct {
	Field  string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition violated: %s %s", e.Field, e.Reason)
}

func Precondition(field, format string, args ...any) *PreconditionError {
	return &PreconditionError{
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
	}
}

func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// Positive returns a PreconditionError unless value > 0.
func Positive[T int | float64](field string, value T) error {
	if value <= 0 {
		return Precondition(field, "must be positive, got %v", value)
	}
	return nil
}
