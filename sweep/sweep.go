// Package sweep steps a signal generator and the analyzer across a set of
// frequencies and records the marker power at each step.
package sweep

import (
	"context"
	"sort"
	"time"

	"github.com/hb9tf/benchlab/diag"
	"github.com/hb9tf/benchlab/instrument"
)

const (
	// HaltonPoints is the number of quasi random points of a default plan.
	HaltonPoints = 1000
	// DefaultSettle is the wait between tuning and reading the marker.
	DefaultSettle = 100 * time.Millisecond

	component = "sweep"
)

type Generator interface {
	SetFrequency(hz float64) error
}

type Analyzer interface {
	SetCenterFrequency(hz float64) error
	MarkerPower() (float64, error)
}

type Result struct {
	FrequencyHz float64
	PowerDBm    float64
}

// Halton returns the index-th element of the van der Corput sequence in the
// given base.
func Halton(index, base int) float64 {
	var (
		result float64
		f      = 1.0
	)
	for i := index; i > 0; i /= base {
		f /= float64(base)
		result += f * float64(i%base)
	}
	return result
}

// Plan returns the frequencies to measure. n > 0 spaces n points linearly
// from start to stop; otherwise start and stop enclose HaltonPoints points
// of the base 2 sequence.
func Plan(start, stop float64, n int) []float64 {
	if n > 0 {
		return linspace(start, stop, n)
	}
	freqs := make([]float64, 0, HaltonPoints+2)
	freqs = append(freqs, start)
	for i := 1; i <= HaltonPoints; i++ {
		freqs = append(freqs, start+(stop-start)*Halton(i, 2))
	}
	return append(freqs, stop)
}

func linspace(start, stop float64, n int) []float64 {
	if n == 1 {
		return []float64{start}
	}
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}

// Run measures every frequency in turn. A failing step is skipped with a
// warning; cancelling ctx ends the sweep early. The settle wait goes through
// the poller's clock. The results are sorted by frequency.
func Run(ctx context.Context, gen Generator, analyzer Analyzer, freqs []float64, settle time.Duration, poller instrument.Poller, sink diag.Sink) []Result {
	var results []Result
	for _, f := range freqs {
		if ctx.Err() != nil {
			diag.Warn(sink, component, ctx.Err(), "sweep aborted after %d of %d points", len(results), len(freqs))
			break
		}
		if err := gen.SetFrequency(f); err != nil {
			diag.Warn(sink, component, err, "unable to tune generator to %.0f Hz", f)
			continue
		}
		if err := analyzer.SetCenterFrequency(f); err != nil {
			diag.Warn(sink, component, err, "unable to tune analyzer to %.0f Hz", f)
			continue
		}
		if settle > 0 {
			poller.Pause(settle)
		}
		p, err := analyzer.MarkerPower()
		if err != nil {
			diag.Warn(sink, component, err, "unable to read power at %.0f Hz", f)
			continue
		}
		diag.Infof(sink, component, "%.3f MHz: %.2f dBm", f/1e6, p)
		results = append(results, Result{FrequencyHz: f, PowerDBm: p})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FrequencyHz < results[j].FrequencyHz
	})
	return results
}
