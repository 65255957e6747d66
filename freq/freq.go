// Package freq parses and renders frequencies and power levels the way the
// bench operator types and reads them.
package freq

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid frequency %q: %s", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// suffixes is checked in order, so the longer unit spellings must come first.
var suffixes = []struct {
	suffix     string
	multiplier float64
}{
	{"khz", 1e3},
	{"mhz", 1e6},
	{"ghz", 1e9},
	{"hz", 1},
	{"k", 1e3},
	{"m", 1e6},
	{"g", 1e9},
}

// Parse converts strings like "100mhz", "2.4 G" or "1500" (Hz) to Hz.
func Parse(text string) (float64, error) {
	s := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(text)), " ", "")
	multiplier := 1.0
	for _, u := range suffixes {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSuffix(s, u.suffix)
			multiplier = u.multiplier
			break
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &ParseError{Input: text, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ParseError{Input: text, Err: fmt.Errorf("not a finite number")}
	}
	return v * multiplier, nil
}

// Format renders hz in kHz, MHz or GHz keeping about four significant figures.
func Format(hz float64) string {
	value, unit := hz/1e9, "GHz"
	switch {
	case hz < 1e6:
		value, unit = hz/1e3, "kHz"
	case hz < 1e9:
		value, unit = hz/1e6, "MHz"
	}

	precision := 1
	switch {
	case value < 10:
		precision = 3
	case value < 100:
		precision = 2
	}
	return fmt.Sprintf("%.*f %s", precision, value, unit)
}

// Watts converts a dBm level to watts.
func Watts(dbm float64) float64 {
	return math.Pow(10, (dbm-30)/10)
}

// DBmToPowerString renders a dBm level as W, mW or µW.
func DBmToPowerString(dbm float64) string {
	w := Watts(dbm)
	switch {
	case w >= 1:
		return fmt.Sprintf("%.2f W", w)
	case w >= 1e-3:
		return fmt.Sprintf("%.2f mW", w*1e3)
	default:
		return fmt.Sprintf("%.2f µW", w*1e6)
	}
}
