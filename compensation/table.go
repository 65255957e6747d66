// Package compensation holds the frequency dependent attenuation of the
// measurement path and the tooling to build it from calibration sweeps.
package compensation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/hb9tf/benchlab/diag"
)

const (
	// DefaultFile holds the attenuation of the external attenuator and cabling.
	DefaultFile = "ext_att_compensation.csv"

	component = "compensation"
)

// Point is the attenuation of the measurement path at one frequency.
type Point struct {
	FrequencyHz   float64
	AttenuationDB float64
}

type MissingResourceError struct {
	Path string
	Err  error
}

func (e *MissingResourceError) Error() string {
	return fmt.Sprintf("compensation file %q not found", e.Path)
}

func (e *MissingResourceError) Unwrap() error {
	return e.Err
}

// Table is an ascending list of compensation points. A nil *Table is valid
// and means "no compensation".
type Table struct {
	points []Point
}

// NewTable sorts a copy of points by frequency.
func NewTable(points []Point) *Table {
	p := append([]Point(nil), points...)
	sort.SliceStable(p, func(i, j int) bool { return p[i].FrequencyHz < p[j].FrequencyHz })
	return &Table{points: p}
}

// Load reads a compensation file. The first line is always skipped (header
// or comment). Any problem yields a nil table and a warning: running without
// compensation is recoverable.
func Load(path string, sink diag.Sink) *Table {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			diag.Warn(sink, component, &MissingResourceError{Path: path, Err: err}, "no compensation will be applied")
		} else {
			diag.Warn(sink, component, err, "unable to open %q, no compensation will be applied", path)
		}
		return nil
	}
	defer f.Close()

	points, err := readPoints(f, 1, false)
	if err != nil {
		diag.Warn(sink, component, err, "error loading %q, no compensation will be applied", path)
		return nil
	}
	diag.Infof(sink, component, "loaded %d points from %s", len(points), path)
	return NewTable(points)
}

// readPoints parses "frequency,attenuation" rows after skipping skip lines.
// In lenient mode '#' comments and non numeric lines are ignored instead of
// failing the whole file.
func readPoints(r io.Reader, skip int, lenient bool) ([]Point, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if lenient {
		cr.Comment = '#'
	}

	var points []Point
	for line := 0; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if line < skip {
			continue
		}
		p, err := parsePoint(row)
		if err != nil {
			if lenient {
				continue
			}
			return nil, fmt.Errorf("row %d: %w", line+1, err)
		}
		points = append(points, p)
	}
	return points, nil
}

func parsePoint(row []string) (Point, error) {
	if len(row) < 2 {
		return Point{}, fmt.Errorf("expected 2 columns, got %d", len(row))
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(row[0]), 64)
	if err != nil {
		return Point{}, err
	}
	a, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
	if err != nil {
		return Point{}, err
	}
	return Point{FrequencyHz: f, AttenuationDB: a}, nil
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.points)
}

func (t *Table) Points() []Point {
	if t == nil {
		return nil
	}
	return append([]Point(nil), t.points...)
}

// Lookup linearly interpolates the compensation at hz. Outside the table the
// nearest edge value is used. NaN has no position in the table and yields NaN.
func (t *Table) Lookup(hz float64) float64 {
	if t.Len() == 0 {
		return 0
	}
	if math.IsNaN(hz) {
		return math.NaN()
	}
	p := t.points
	if hz <= p[0].FrequencyHz {
		return p[0].AttenuationDB
	}
	last := p[len(p)-1]
	if hz >= last.FrequencyHz {
		return last.AttenuationDB
	}

	// First knot strictly above hz; p[i-1] <= hz < p[i].
	i := sort.Search(len(p), func(i int) bool { return p[i].FrequencyHz > hz })
	lo, hi := p[i-1], p[i]
	if hz == lo.FrequencyHz {
		return lo.AttenuationDB
	}
	frac := (hz - lo.FrequencyHz) / (hi.FrequencyHz - lo.FrequencyHz)
	return lo.AttenuationDB + frac*(hi.AttenuationDB-lo.AttenuationDB)
}
