package brew

import (
	"errors"
	"fmt"
)

// Precondition failures, reported in priority order.
var (
	ErrOutOfWater      = errors.New("out of water")
	ErrOutOfCups       = errors.New("out of cups")
	ErrOutOfBeans      = errors.New("out of coffee beans")
	ErrUnsupportedType = errors.New("unsupported coffee type")
	ErrNoPower         = errors.New("no power")
)

// ErrInvalidCount is returned for a negative cup count. No unit is attempted.
var ErrInvalidCount = errors.New("cup count must not be negative")

// UnitError reports the unit at which a request stopped.
type UnitError struct {
	Unit      int // 1-based
	Completed int
	Err       error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("unit %d: %v", e.Unit, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

var codes = []struct {
	err  error
	code string
}{
	{ErrOutOfWater, "out_of_water"},
	{ErrOutOfCups, "out_of_cups"},
	{ErrOutOfBeans, "out_of_beans"},
	{ErrUnsupportedType, "unsupported_type"},
	{ErrNoPower, "no_power"},
	{ErrInvalidCount, "invalid_count"},
}

// Code maps err to a stable machine-readable outcome code.
// A nil error is "ok"; errors outside the brew taxonomy are "error".
func Code(err error) string {
	if err == nil {
		return "ok"
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "error"
}

// IsPrecondition reports whether err is one of the five precondition failures.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrOutOfWater) ||
		errors.Is(err, ErrOutOfCups) ||
		errors.Is(err, ErrOutOfBeans) ||
		errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrNoPower)
}
