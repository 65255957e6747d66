// Package peak classifies analyzer peaks into the carrier and spurious
// emissions.
package peak

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hb9tf/benchlab/diag"
)

const (
	// SearchFloor is the lowest frequency included in a spurious search.
	SearchFloor = 100e3

	minTolerance      = 100e3
	relativeTolerance = 0.01
)

type Peak struct {
	FrequencyHz float64 `json:"frequencyHz"`
	PowerDBm    float64 `json:"powerDBm"`
}

// Tolerance is the distance from the carrier within which a peak still
// counts as the carrier.
func Tolerance(carrierHz float64) float64 {
	return math.Max(carrierHz*relativeTolerance, minTolerance)
}

// Separate splits peaks into those belonging to the carrier and spurious
// ones, keeping the input order within each group.
func Separate(peaks []Peak, carrierHz float64) (carrier, spurious []Peak) {
	tolerance := Tolerance(carrierHz)
	for _, p := range peaks {
		if math.Abs(p.FrequencyHz-carrierHz) < tolerance {
			carrier = append(carrier, p)
			continue
		}
		spurious = append(spurious, p)
	}
	return carrier, spurious
}

// SearchCeiling returns the upper frequency up to which spurious emissions
// of a carrier are searched for.
func SearchCeiling(carrierHz float64) float64 {
	switch {
	case carrierHz < 1e6:
		return 10e6
	case carrierHz < 10e6:
		return 100e6
	case carrierHz < 500e6:
		return 2.5e9
	case carrierHz < 3e9:
		return 10e9
	default:
		return 26e9
	}
}

// ParseSignalResult parses one line of the analyzer signal list, formatted
// as "<index>,<frequency MHz>,<amplitude dBm>[,...]".
func ParseSignalResult(s string) (Peak, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) < 3 {
		return Peak{}, fmt.Errorf("expected at least 3 fields, got %d", len(parts))
	}
	mhz, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Peak{}, fmt.Errorf("invalid frequency: %w", err)
	}
	dbm, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return Peak{}, fmt.Errorf("invalid amplitude: %w", err)
	}
	if !finite(mhz) || !finite(dbm) {
		return Peak{}, fmt.Errorf("non-finite value in %q", strings.TrimSpace(s))
	}
	return Peak{FrequencyHz: mhz * 1e6, PowerDBm: dbm}, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ParseSignalResults parses all lines, skipping the ones that don't parse.
func ParseSignalResults(raw []string, sink diag.Sink) []Peak {
	var peaks []Peak
	for _, s := range raw {
		p, err := ParseSignalResult(s)
		if err != nil {
			diag.Warn(sink, "peak", err, "could not parse peak data point %q", strings.TrimSpace(s))
			continue
		}
		peaks = append(peaks, p)
	}
	return peaks
}
