// Package hp8593em drives an HP 8593EM EMC spectrum analyzer.
package hp8593em

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hb9tf/benchlab/diag"
	"github.com/hb9tf/benchlab/instrument"
	"github.com/hb9tf/benchlab/peak"
)

const (
	// Identity is the substring of the ID? answer identifying the analyzer.
	Identity  = "8593EM"
	component = "hp8593em"

	// emptyListIntervals is the number of poll intervals to wait when the
	// signal list is still empty.
	emptyListIntervals = 5
)

type Analyzer struct {
	T instrument.Transport

	// Poller bounds the waits for the signal list.
	Poller instrument.Poller
	// Settle is the pause after mode changes and measurement starts.
	Settle time.Duration
	Diag   diag.Sink
}

func New(t instrument.Transport) *Analyzer {
	return &Analyzer{
		T:      instrument.Logged{Transport: t, Name: Identity},
		Settle: time.Second,
	}
}

func (a *Analyzer) Close() error {
	return a.T.Close()
}

func (a *Analyzer) settle() {
	if a.Settle > 0 {
		a.Poller.Pause(a.Settle)
	}
}

func (a *Analyzer) ID() (string, error) {
	id, err := a.T.Query("ID?")
	return strings.TrimSpace(id), err
}

// Reset puts the analyzer into EMC mode, configured for peak measurements.
func (a *Analyzer) Reset() error {
	if err := a.T.Write("*RST"); err != nil {
		return err
	}
	a.settle()
	if err := a.T.Write("MODE EMC"); err != nil {
		return err
	}
	a.settle()
	for _, cmd := range []string{
		"AT AUTO",
		"ARNG ON",
		"AUNITS DBM",
		"SIGLIST ON",
		"SIGDEL ALL",
		"AUTOQPD OFF",
		"AUTOAVG OFF",
	} {
		if err := a.T.Write(cmd); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) writef(format string, args ...interface{}) error {
	return a.T.Write(fmt.Sprintf(format, args...))
}

func (a *Analyzer) queryFloat(cmd string) (float64, error) {
	resp, err := a.T.Query(cmd)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(resp), 64)
	if err != nil {
		return 0, fmt.Errorf("unable to parse answer %q to %s: %w", strings.TrimSpace(resp), cmd, err)
	}
	return v, nil
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (a *Analyzer) SetCenterFrequency(f float64) error { return a.writef("CF %sHZ", num(f)) }
func (a *Analyzer) SetSpan(f float64) error            { return a.writef("SP %sHZ", num(f)) }
func (a *Analyzer) SetStartFrequency(f float64) error  { return a.writef("FA %sHZ", num(f)) }
func (a *Analyzer) SetStopFrequency(f float64) error   { return a.writef("FB %sHZ", num(f)) }
func (a *Analyzer) StartFrequency() (float64, error)   { return a.queryFloat("FA?") }
func (a *Analyzer) StopFrequency() (float64, error)    { return a.queryFloat("FB?") }

func (a *Analyzer) SetResolutionBandwidth(f float64) error { return a.writef("RB %sHZ", num(f)) }
func (a *Analyzer) SetVideoBandwidth(f float64) error      { return a.writef("VB %sHZ", num(f)) }
func (a *Analyzer) SetAttenuation(db float64) error        { return a.writef("AT %sDB", num(db)) }
func (a *Analyzer) SetReferenceLevel(dbm float64) error    { return a.writef("RL %sDBM", num(dbm)) }

// SetSearchWindow spans the analyzer from low to high using centre and span.
func (a *Analyzer) SetSearchWindow(low, high float64) error {
	if err := a.SetCenterFrequency((low + high) / 2); err != nil {
		return err
	}
	return a.SetSpan(high - low)
}

func (a *Analyzer) SetTrackingGeneratorPower(db float64) error { return a.writef("SRCPWR %sDB", num(db)) }
func (a *Analyzer) TrackingGeneratorOff() error                { return a.T.Write("SRCPWR OFF") }

func (a *Analyzer) SetTraceDataFormat(format string) error { return a.writef("TDF %s", format) }

// SetZeroSpan turns the analyzer into a tuned receiver at the centre
// frequency.
func (a *Analyzer) SetZeroSpan() error { return a.T.Write("SP 0HZ") }

func (a *Analyzer) SweepTime() (time.Duration, error) {
	s, err := a.queryFloat("SWPT?")
	if err != nil {
		return 0, err
	}
	return time.Duration(s * float64(time.Second)), nil
}

// SweepAndWait takes one sweep and waits for it to complete, with a small
// margin.
func (a *Analyzer) SweepAndWait() error {
	d, err := a.SweepTime()
	if err != nil {
		return err
	}
	if err := a.T.Write("TS"); err != nil {
		return err
	}
	a.Poller.Pause(d*11/10 + 100*time.Millisecond)
	return nil
}

// TraceData returns trace A in the configured trace data format.
func (a *Analyzer) TraceData() (string, error) {
	return a.T.Query("TA?")
}

// MarkerPower places the marker on the highest peak and returns its level.
func (a *Analyzer) MarkerPower() (float64, error) {
	if err := a.T.Write("MKPK HI"); err != nil {
		return 0, err
	}
	return a.queryFloat("MKA?")
}

// FindPeaks runs the EMC "measure all signals" function and returns the
// parsed signal list. A timeout yields the signals collected so far.
func (a *Analyzer) FindPeaks() ([]peak.Peak, error) {
	if err := a.T.Write("MEASALLSIGS"); err != nil {
		return nil, err
	}
	a.settle()

	n := a.waitForSignals()
	if n == 0 {
		diag.Warnf(a.Diag, component, "no signals found")
		return nil, nil
	}
	return peak.ParseSignalResults(a.fetchSignals(n), a.Diag), nil
}

// waitForSignals polls the signal list length until it is non zero.
func (a *Analyzer) waitForSignals() int {
	diag.Infof(a.Diag, component, "measurement in progress")
	var n int
	err := a.Poller.Until("signal list", func() (bool, int) {
		resp, err := a.T.Query("SIGLEN?")
		if err != nil {
			diag.Warn(a.Diag, component, err, "error querying number of signals, retrying")
			return false, 1
		}
		count, err := strconv.Atoi(strings.TrimSpace(resp))
		if err != nil {
			diag.Warn(a.Diag, component, err, "could not parse number of signals, retrying")
			return false, 1
		}
		if count <= 0 {
			return false, emptyListIntervals
		}
		n = count
		return true, 0
	})
	if err != nil {
		diag.Warn(a.Diag, component, err, "measurement did not complete")
		return 0
	}
	diag.Infof(a.Diag, component, "measurement complete, found %d signals", n)
	return n
}

func (a *Analyzer) fetchSignals(n int) []string {
	var signals []string
	i := 1
	err := a.Poller.Until("signal data", func() (bool, int) {
		for ; i <= n; i++ {
			if err := a.writef("SIGPOS %d", i); err != nil {
				diag.Warn(a.Diag, component, err, "error selecting signal %d, retrying", i)
				return false, 1
			}
			resp, err := a.T.Query("SIGRESULT?")
			if err != nil {
				diag.Warn(a.Diag, component, err, "error fetching signal %d, retrying", i)
				return false, 1
			}
			signals = append(signals, resp)
		}
		return true, 0
	})
	if err != nil {
		diag.Warn(a.Diag, component, err, "only got %d of %d signals", len(signals), n)
	}
	return signals
}
