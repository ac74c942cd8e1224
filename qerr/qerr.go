// Package qerr defines the error taxonomy shared by every pricing component.
//
// Each constructor wraps one of the sentinel errors so callers can branch with
// errors.Is while the message still names the offending quantity.
package qerr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument marks malformed constructor or call input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStaleQuote marks a required market quote that is invalid or missing.
	ErrStaleQuote = errors.New("stale or invalid quote")
	// ErrIncompatiblePricer marks a pricer or engine attached to the wrong kind of object.
	ErrIncompatiblePricer = errors.New("incompatible pricer")
	// ErrNumericalFailure marks optimizer non-convergence or an expression that cannot be evaluated.
	ErrNumericalFailure = errors.New("numerical failure")
	// ErrConfigurationMismatch marks count mismatches between parallel inputs.
	ErrConfigurationMismatch = errors.New("configuration mismatch")
)

func wrap(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// Invalid returns an ErrInvalidArgument error.
func Invalid(format string, args ...any) error {
	return wrap(ErrInvalidArgument, format, args...)
}

// Stale returns an ErrStaleQuote error.
func Stale(format string, args ...any) error {
	return wrap(ErrStaleQuote, format, args...)
}

// Incompatible returns an ErrIncompatiblePricer error.
func Incompatible(format string, args ...any) error {
	return wrap(ErrIncompatiblePricer, format, args...)
}

// Numerical returns an ErrNumericalFailure error.
func Numerical(format string, args ...any) error {
	return wrap(ErrNumericalFailure, format, args...)
}

// Mismatch returns an ErrConfigurationMismatch error naming both counts.
func Mismatch(what string, got, want int) error {
	return wrap(ErrConfigurationMismatch, "%s: got %d, want %d", what, got, want)
}

// TooMany reports a parallel array longer than the schedule allows.
func TooMany(what string, got, limit int) error {
	return wrap(ErrConfigurationMismatch, "too many %s (%d), only %d required", what, got, limit)
}

// Ordinal renders 1 -> "1st", 2 -> "2nd", 11 -> "11th".
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
