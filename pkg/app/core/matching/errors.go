package matching

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ValidationError rejects an order or cancel before it touches the book.
// Nothing is mutated and the caller may resubmit.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsFatal reports whether err must abort the enclosing block. Everything
// that is not a ValidationError is fatal: overflow, invariant violations and
// corrupt state all leave the engine in a state only a restore can fix.
func IsFatal(err error) bool {
	return err != nil && !IsValidation(err)
}
