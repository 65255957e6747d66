package compensation

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/hb9tf/benchlab/diag"
)

const (
	fileHeader = "# Frequency (Hz), Attenuation (dB)"

	// EvictionBand is the relative distance around a new point within which
	// existing points are replaced.
	EvictionBand = 0.1

	// traceReference is the reference level in dB the analyzer trace values
	// are measured against; trace values are in hundredths of a dB.
	traceReference = 80.0
	traceScale     = 100.0
)

// Range is a contiguous frequency span in Hz.
type Range struct {
	Start float64
	End   float64
}

// Merge removes every existing point within EvictionBand of a new point and
// returns survivors plus new points sorted by frequency. New points are only
// checked against the existing table, never against each other.
func Merge(existing, newPoints []Point) []Point {
	survivors := append([]Point(nil), existing...)
	for _, n := range newPoints {
		lo, hi := n.FrequencyHz*(1-EvictionBand), n.FrequencyHz*(1+EvictionBand)
		kept := survivors[:0]
		for _, p := range survivors {
			if p.FrequencyHz >= lo && p.FrequencyHz <= hi {
				continue
			}
			kept = append(kept, p)
		}
		survivors = kept
	}

	merged := append(survivors, newPoints...)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].FrequencyHz < merged[j].FrequencyHz })
	return merged
}

// MergeAndSave merges newPoints into existing and writes the result to target.
func MergeAndSave(existing, newPoints []Point, target string) error {
	return save(Merge(existing, newPoints), target)
}

func save(points []Point, target string) error {
	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("unable to create compensation file: %w", err)
	}
	w := bufio.NewWriter(f)
	fmt.Fprintln(w, fileHeader)
	for _, p := range points {
		fmt.Fprintf(w, "%s,%s\n", strconv.FormatFloat(p.FrequencyHz, 'g', -1, 64), strconv.FormatFloat(p.AttenuationDB, 'g', -1, 64))
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("unable to write compensation file: %w", err)
	}
	return f.Close()
}

// ReadFile returns the points stored in a compensation file written by
// MergeAndSave or by hand. Comment lines and a textual header are skipped.
func ReadFile(path string) ([]Point, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &MissingResourceError{Path: path, Err: err}
		}
		return nil, err
	}
	defer f.Close()
	return readPoints(f, 0, true)
}

// UpdateFile merges newPoints into the compensation file at path, creating
// it when absent.
func UpdateFile(path string, newPoints []Point, sink diag.Sink) error {
	existing, err := ReadFile(path)
	var missing *MissingResourceError
	switch {
	case errors.As(err, &missing):
		diag.Infof(sink, component, "creating new compensation file %s", path)
	case err != nil:
		return err
	}
	if err := MergeAndSave(existing, newPoints, path); err != nil {
		return err
	}
	diag.Infof(sink, component, "updated %s with %d new points", path, len(newPoints))
	return nil
}

// GenerateSubRanges splits [start, end] into contiguous spans whose end/start
// ratio is at most 10.
func GenerateSubRanges(start, end float64) []Range {
	if start <= 0 || start >= end {
		return nil
	}
	var ranges []Range
	for cur := start; cur < end; {
		next := cur * 10
		if next > end {
			next = end
		}
		ranges = append(ranges, Range{Start: cur, End: next})
		cur = next
	}
	return ranges
}

// TraceToPoints converts raw trace data read between startHz and stopHz into
// attenuation points evenly spread over the span.
func TraceToPoints(startHz, stopHz float64, raw string) ([]Point, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\r' || r == '\n' || r == ','
	})
	var values []float64
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("unable to parse trace value %q: %w", f, err)
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("empty trace")
	}

	points := make([]Point, len(values))
	step := 0.0
	if len(values) > 1 {
		step = (stopHz - startHz) / float64(len(values)-1)
	}
	for i, v := range values {
		points[i] = Point{
			FrequencyHz:   startHz + float64(i)*step,
			AttenuationDB: traceReference - v/traceScale,
		}
	}
	// Avoid rounding drift on the last point.
	if len(points) > 1 {
		points[len(points)-1].FrequencyHz = stopHz
	}
	return points, nil
}

// Extremes returns the points with the lowest and highest attenuation.
func Extremes(points []Point) (lowest, highest Point, ok bool) {
	if len(points) == 0 {
		return Point{}, Point{}, false
	}
	lowest, highest = points[0], points[0]
	for _, p := range points[1:] {
		if p.AttenuationDB < lowest.AttenuationDB {
			lowest = p
		}
		if p.AttenuationDB > highest.AttenuationDB {
			highest = p
		}
	}
	return lowest, highest, true
}
