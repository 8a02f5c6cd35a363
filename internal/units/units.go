// Package units parses the human-readable amounts and durations accepted on
// the command line and in configuration files.
//
// Both grammars are a run of decimal digits followed by an optional unit
// suffix:
//
//	23ms   -> 23 milliseconds
//	3mcs   -> 3 microseconds
//	10     -> 10 seconds
//	1K     -> 1000
//	5M     -> 5000000
package units

import (
	"math"
	"math/bits"
	"strconv"
	"time"
)

// Duration suffixes.
const (
	Nanoseconds  = "ns"
	Microseconds = "mcs"
	Milliseconds = "ms"
	Seconds      = "s"
	Minutes      = "m"
	Hours        = "h"
	Days         = "d"
)

// Amount suffixes, each a power of 1000.
const (
	Kilo = "K"
	Mega = "M"
	Giga = "G"
	Tera = "T"
	Peta = "P"
	Exa  = "E"
)

var durationUnits = map[string]uint64{
	"":           uint64(time.Second),
	Nanoseconds:  1,
	Microseconds: uint64(time.Microsecond),
	Milliseconds: uint64(time.Millisecond),
	Seconds:      uint64(time.Second),
	Minutes:      uint64(time.Minute),
	Hours:        uint64(time.Hour),
	Days:         24 * uint64(time.Hour),
}

var amountUnits = map[string]uint64{
	"":   1,
	Kilo: 1_000,
	Mega: 1_000_000,
	Giga: 1_000_000_000,
	Tera: 1_000_000_000_000,
	Peta: 1_000_000_000_000_000,
	Exa:  1_000_000_000_000_000_000,
}

// ParseNumberWithSuffix splits text into its leading decimal number and the
// remaining suffix. The suffix is returned verbatim; interpreting it is left
// to ParseDuration and ParseAmount.
func ParseNumberWithSuffix(text string) (uint64, string, error) {
	end := 0
	for end < len(text) && text[end] >= '0' && text[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, "", &ParseError{Input: text, Kind: NoDigits}
	}

	amount, err := strconv.ParseUint(text[:end], 10, 64)
	if err != nil {
		// The digit run is all ASCII digits, so the only possible failure is range.
		return 0, "", &ParseError{Input: text, Kind: Overflow}
	}
	if amount == 0 {
		return 0, "", &ParseError{Input: text, Kind: NonPositive}
	}

	return amount, text[end:], nil
}

// ParseDuration parses a duration such as "23ms" or "3mcs".
//
// A number without a suffix is read as seconds.
func ParseDuration(text string) (time.Duration, error) {
	amount, suffix, err := ParseNumberWithSuffix(text)
	if err != nil {
		return 0, err
	}

	multiplier, ok := durationUnits[suffix]
	if !ok {
		return 0, &ParseError{Input: text, Kind: UnknownDurationUnit, Unit: suffix}
	}

	ns, ok := mul(amount, multiplier)
	if !ok || ns > math.MaxInt64 {
		return 0, &ParseError{Input: text, Kind: Overflow}
	}
	return time.Duration(ns), nil
}

// ParseAmount parses a count such as "500", "1K" or "2M".
func ParseAmount(text string) (uint64, error) {
	amount, suffix, err := ParseNumberWithSuffix(text)
	if err != nil {
		return 0, err
	}

	multiplier, ok := amountUnits[suffix]
	if !ok {
		return 0, &ParseError{Input: text, Kind: UnknownAmountUnit, Unit: suffix}
	}

	total, ok := mul(amount, multiplier)
	if !ok {
		return 0, &ParseError{Input: text, Kind: Overflow}
	}
	return total, nil
}

// FormatDuration renders d in the largest unit of the duration grammar that
// represents it exactly, so that ParseDuration(FormatDuration(d)) == d for
// every positive d.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "0ns"
	}
	ns := uint64(d)
	for _, u := range []string{Days, Hours, Minutes, Seconds, Milliseconds, Microseconds} {
		m := durationUnits[u]
		if ns%m == 0 {
			return strconv.FormatUint(ns/m, 10) + u
		}
	}
	return strconv.FormatUint(ns, 10) + Nanoseconds
}

func mul(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}
