// Package measurement defines the records produced by a spurious emission
// measurement.
package measurement

import (
	"strconv"
	"time"

	"github.com/hb9tf/benchlab/compensation"
	"github.com/hb9tf/benchlab/peak"
)

const timestampFmt = "2006-01-02T15:04:05.000000"

type PeakType string

const (
	Carrier  PeakType = "carrier"
	Spurious PeakType = "spurious"
)

func (t PeakType) Valid() bool {
	return t == Carrier || t == Spurious
}

// Header lists the CSV columns in the order Record.CSV returns them.
var Header = []string{
	"measurement_index",
	"timestamp",
	"peak_type",
	"frequency_hz",
	"measured_power_dbm",
	"compensation_db",
	"corrected_power_dbm",
}

type Record struct {
	// Metadata
	Index      uint64   `json:"measurementIndex"`
	Timestamp  string   `json:"timestamp"`
	Identifier string   `json:"identifier,omitempty"`
	Note       string   `json:"note,omitempty"`
	Type       PeakType `json:"peakType"`

	// Peak data
	FrequencyHz       float64 `json:"frequencyHz"`
	MeasuredPowerDBm  float64 `json:"measuredPowerDBm"`
	CompensationDB    float64 `json:"compensationDB"`
	CorrectedPowerDBm float64 `json:"correctedPowerDBm"`
}

func (r Record) CSV() []string {
	return []string{
		strconv.FormatUint(r.Index, 10),
		r.Timestamp,
		string(r.Type),
		formatFloat(r.FrequencyHz),
		formatFloat(r.MeasuredPowerDBm),
		formatFloat(r.CompensationDB),
		formatFloat(r.CorrectedPowerDBm),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Timestamp renders t as ISO-8601 with microseconds.
func Timestamp(t time.Time) string {
	return t.Format(timestampFmt)
}

// NewRecords builds one record per peak, carriers first. The corrected power
// is the measured power minus the compensation at the peak frequency.
func NewRecords(carrier, spurious []peak.Peak, table *compensation.Table, index uint64, timestamp string) []Record {
	records := make([]Record, 0, len(carrier)+len(spurious))
	add := func(t PeakType, peaks []peak.Peak) {
		for _, p := range peaks {
			comp := table.Lookup(p.FrequencyHz)
			records = append(records, Record{
				Index:             index,
				Timestamp:         timestamp,
				Type:              t,
				FrequencyHz:       p.FrequencyHz,
				MeasuredPowerDBm:  p.PowerDBm,
				CompensationDB:    comp,
				CorrectedPowerDBm: p.PowerDBm - comp,
			})
		}
	}
	add(Carrier, carrier)
	add(Spurious, spurious)
	return records
}
