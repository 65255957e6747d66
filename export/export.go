package export

import (
	"context"

	"github.com/hb9tf/benchlab/measurement"
)

type Exporter interface {
	Write(context.Context, <-chan measurement.Record) error
}

// Records returns a closed channel holding all records, ready to be handed
// to an Exporter.
func Records(records []measurement.Record) <-chan measurement.Record {
	ch := make(chan measurement.Record, len(records))
	for _, r := range records {
		ch <- r
	}
	close(ch)
	return ch
}

// Tee hands the same records to every exporter in turn. Errors are collected
// per exporter so one failing backend does not hide the others.
func Tee(ctx context.Context, records []measurement.Record, exporters ...Exporter) []error {
	var errs []error
	for _, e := range exporters {
		if err := e.Write(ctx, Records(records)); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
