package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hb9tf/benchlab/compensation"
	"github.com/hb9tf/benchlab/diag"
	"github.com/hb9tf/benchlab/measurement"
	"github.com/hb9tf/benchlab/peak"
)

const (
	DefaultLogFile = "peak_report.csv"

	indexColumn  = "measurement_index"
	csvComponent = "measurement log"
)

// CSV is the append-only measurement log. The file is opened and closed on
// every write; the measurement index is always derived from its content.
type CSV struct {
	Path string
	Diag diag.Sink
}

func (c *CSV) path() string {
	if c.Path == "" {
		return DefaultLogFile
	}
	return c.Path
}

// NextIndex returns the highest measurement index in the log plus one, or 0
// when the log is absent, empty or unusable.
func (c *CSV) NextIndex() uint64 {
	f, err := os.Open(c.path())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			diag.Warn(c.Diag, csvComponent, err, "could not read %s, assuming index 0", c.path())
		}
		return 0
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return 0
	}
	if err != nil {
		diag.Warn(c.Diag, csvComponent, err, "could not read header of %s, assuming index 0", c.path())
		return 0
	}
	col := -1
	for i, name := range header {
		if strings.TrimSpace(name) == indexColumn {
			col = i
			break
		}
	}
	if col < 0 {
		diag.Warnf(c.Diag, csvComponent, "%q column not found in %s, assuming index 0", indexColumn, c.path())
		return 0
	}

	highest := int64(-1)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				continue
			}
			diag.Warn(c.Diag, csvComponent, err, "could not read %s, assuming index 0", c.path())
			return 0
		}
		if col >= len(row) {
			continue
		}
		idx, err := strconv.ParseInt(strings.TrimSpace(row[col]), 10, 64)
		if err != nil {
			continue
		}
		if idx > highest {
			highest = idx
		}
	}
	return uint64(highest + 1)
}

type AppendOptions struct {
	// Index overrides the next free measurement index.
	Index      *uint64
	// Timestamp overrides the current time.
	Timestamp  string
	Identifier string
	Note       string
}

// Append logs all peaks of one measurement and returns the records written.
// Nothing is touched when there are no peaks.
func (c *CSV) Append(ctx context.Context, carrier, spurious []peak.Peak, table *compensation.Table, opts AppendOptions) ([]measurement.Record, error) {
	if len(carrier) == 0 && len(spurious) == 0 {
		return nil, nil
	}
	var index uint64
	if opts.Index != nil {
		index = *opts.Index
	} else {
		index = c.NextIndex()
	}
	ts := opts.Timestamp
	if ts == "" {
		ts = measurement.Timestamp(time.Now())
	}

	records := measurement.NewRecords(carrier, spurious, table, index, ts)
	for i := range records {
		records[i].Identifier = opts.Identifier
		records[i].Note = opts.Note
	}
	if err := c.Write(ctx, Records(records)); err != nil {
		return nil, err
	}
	diag.Infof(c.Diag, csvComponent, "appended %d peaks to %s with measurement index %d", len(records), c.path(), index)
	return records, nil
}

// Write appends records to the log, writing the header first when the file
// does not exist yet.
func (c *CSV) Write(ctx context.Context, records <-chan measurement.Record) error {
	var (
		f *os.File
		w *csv.Writer
	)
	for r := range records {
		if w == nil {
			_, statErr := os.Stat(c.path())
			exists := statErr == nil

			var err error
			f, err = os.OpenFile(c.path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				diag.Fail(c.Diag, csvComponent, err, "error writing to %s", c.path())
				return fmt.Errorf("unable to open measurement log: %w", err)
			}
			w = csv.NewWriter(f)
			if !exists {
				w.Write(measurement.Header)
			}
		}
		if err := w.Write(r.CSV()); err != nil {
			diag.Warn(c.Diag, csvComponent, err, "error while writing CSV line")
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			diag.Fail(c.Diag, csvComponent, err, "error writing to %s", c.path())
			return fmt.Errorf("unable to write measurement log: %w", err)
		}
	}
	if f == nil {
		return nil
	}
	return f.Close()
}
