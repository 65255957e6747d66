package sweep

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var header = []string{"Frequency (Hz)", "Power (dBm)"}

// CSVPath appends the .csv suffix unless the name already carries it.
func CSVPath(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".csv") {
		return name
	}
	return name + ".csv"
}

// WriteCSV writes the results to name (see CSVPath) and returns the path
// actually written.
func WriteCSV(name string, results []Result) (string, error) {
	path := CSVPath(name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("unable to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Write(header)
	for _, r := range results {
		w.Write([]string{
			strconv.FormatFloat(r.FrequencyHz, 'f', -1, 64),
			strconv.FormatFloat(r.PowerDBm, 'f', -1, 64),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("unable to write %s: %w", path, err)
	}
	return path, f.Close()
}

// ReadCSV reads a two column (frequency, level) file. Lines that do not hold
// two numbers, such as headers and comments, are skipped.
func ReadCSV(r io.Reader) ([]Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	var results []Result
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return results, nil
		}
		if err != nil {
			return nil, err
		}
		if len(row) < 2 {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(row[0]), 64)
		if err != nil {
			continue
		}
		p, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			continue
		}
		results = append(results, Result{FrequencyHz: f, PowerDBm: p})
	}
}
