package units

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a ParseError.
type ErrorKind int

const (
	// NoDigits means the text does not start with a decimal digit.
	NoDigits ErrorKind = iota + 1

	// NonPositive means the number parsed as zero.
	NonPositive

	// Overflow means the number, or the number scaled by its unit, does not
	// fit the target type.
	Overflow

	// UnknownDurationUnit means the suffix is not a duration unit.
	UnknownDurationUnit

	// UnknownAmountUnit means the suffix is not an amount unit.
	UnknownAmountUnit
)

var (
	ErrNoDigits    = errors.New("number contains no digits")
	ErrNonPositive = errors.New("only strictly positive numbers are allowed")
	ErrOverflow    = errors.New("number is too large")
	ErrUnknownUnit = errors.New("unknown unit suffix")
)

func (k ErrorKind) String() string {
	switch k {
	case NoDigits:
		return "no digits"
	case NonPositive:
		return "non-positive"
	case Overflow:
		return "overflow"
	case UnknownDurationUnit:
		return "unknown duration unit"
	case UnknownAmountUnit:
		return "unknown amount unit"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// ParseError describes why a duration or amount could not be parsed.
type ParseError struct {
	Input string
	Kind  ErrorKind
	Unit  string // offending suffix, set for the unknown-unit kinds
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case UnknownDurationUnit:
		return fmt.Sprintf("invalid duration %q: unknown unit %q (want one of d, h, m, s, ms, mcs, ns)", e.Input, e.Unit)
	case UnknownAmountUnit:
		return fmt.Sprintf("invalid amount %q: unknown unit %q (want one of K, M, G, T, P, E)", e.Input, e.Unit)
	}
	return fmt.Sprintf("invalid number %q: %v", e.Input, e.Unwrap())
}

// Unwrap returns the sentinel error matching the kind, so callers can use
// errors.Is(err, units.ErrUnknownUnit) and friends.
func (e *ParseError) Unwrap() error {
	switch e.Kind {
	case NoDigits:
		return ErrNoDigits
	case NonPositive:
		return ErrNonPositive
	case Overflow:
		return ErrOverflow
	case UnknownDurationUnit, UnknownAmountUnit:
		return ErrUnknownUnit
	}
	return nil
}
