package hp8593em

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hb9tf/benchlab/diag"
	"github.com/hb9tf/benchlab/instrument/instrumenttest"
	"github.com/hb9tf/benchlab/peak"
)

func newAnalyzer(t *instrumenttest.Transport) (*Analyzer, *instrumenttest.Clock, *diag.Recorder) {
	clock := &instrumenttest.Clock{}
	rec := &diag.Recorder{}
	return &Analyzer{
		T:      t,
		Poller: clock.Poller(600*time.Second, 2*time.Second),
		Settle: time.Second,
		Diag:   rec,
	}, clock, rec
}

func TestReset(t *testing.T) {
	fake := instrumenttest.New()
	a, clock, _ := newAnalyzer(fake)

	require.NoError(t, a.Reset())
	assert.Equal(t, []string{"*RST", "MODE EMC", "AT AUTO", "ARNG ON", "AUNITS DBM", "SIGLIST ON", "SIGDEL ALL", "AUTOQPD OFF", "AUTOAVG OFF"}, fake.Log)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, clock.Slept)
}

func TestFrequencyCommands(t *testing.T) {
	fake := instrumenttest.New().Respond("FA?", "1.0E+05\r\n").Respond("FB?", "2.5E+09\r\n")
	a, _, _ := newAnalyzer(fake)

	require.NoError(t, a.SetSearchWindow(100e3, 2.5e9))
	require.NoError(t, a.SetReferenceLevel(0))
	require.NoError(t, a.SetZeroSpan())
	start, err := a.StartFrequency()
	require.NoError(t, err)
	stop, err := a.StopFrequency()
	require.NoError(t, err)

	assert.Equal(t, []string{"CF 1250050000HZ", "SP 2499900000HZ", "RL 0DBM", "SP 0HZ"}, fake.Writes())
	assert.Equal(t, 100e3, start)
	assert.Equal(t, 2.5e9, stop)
}

func TestQueryFloatRejectsGarbage(t *testing.T) {
	a, _, _ := newAnalyzer(instrumenttest.New().Respond("FA?", "??"))
	_, err := a.StartFrequency()
	assert.Error(t, err)
}

func TestSweepAndWait(t *testing.T) {
	fake := instrumenttest.New().Respond("SWPT?", "0.5")
	a, clock, _ := newAnalyzer(fake)

	require.NoError(t, a.SweepAndWait())
	assert.Equal(t, []string{"TS"}, fake.Writes())
	assert.Equal(t, []time.Duration{650 * time.Millisecond}, clock.Slept)
}

func TestMarkerPower(t *testing.T) {
	fake := instrumenttest.New().Respond("MKA?", "-23.45")
	a, _, _ := newAnalyzer(fake)

	p, err := a.MarkerPower()
	require.NoError(t, err)
	assert.Equal(t, -23.45, p)
	assert.Equal(t, []string{"MKPK HI", "?MKA?"}, fake.Log)
}

func TestFindPeaks(t *testing.T) {
	fake := instrumenttest.New().
		On("SIGLEN?", instrumenttest.Reply{Err: errors.New("bus busy")}).
		Respond("SIGLEN?", "0", "junk", "3").
		Respond("SIGRESULT?", "1,433.5,10.5", "2,867.25,-45", "3,bad,bad")
	a, clock, rec := newAnalyzer(fake)

	peaks, err := a.FindPeaks()
	require.NoError(t, err)
	assert.Equal(t, []peak.Peak{{FrequencyHz: 433.5e6, PowerDBm: 10.5}, {FrequencyHz: 867.25e6, PowerDBm: -45}}, peaks)
	assert.Equal(t, []string{"MEASALLSIGS", "SIGPOS 1", "SIGPOS 2", "SIGPOS 3"}, fake.Writes())
	// settle, transport retry, empty list, parse retry
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 10 * time.Second, 2 * time.Second}, clock.Slept)
	// Transport retry, unparsable count and the bad signal line.
	assert.Equal(t, 3, rec.Count(diag.Warning))
}

func TestFindPeaksTimesOut(t *testing.T) {
	fake := instrumenttest.New().Respond("SIGLEN?", "0")
	a, _, rec := newAnalyzer(fake)
	a.Poller.Timeout = 30 * time.Second

	peaks, err := a.FindPeaks()
	require.NoError(t, err)
	assert.Empty(t, peaks)
	assert.Equal(t, 2, rec.Count(diag.Warning))
	assert.NotContains(t, fake.Writes(), "SIGPOS 1")
}

func TestFindPeaksRetriesSignalFetch(t *testing.T) {
	fake := instrumenttest.New().
		Respond("SIGLEN?", "2").
		Respond("SIGRESULT?", "1,100,-10").
		On("SIGRESULT?", instrumenttest.Reply{Err: errors.New("glitch")}).
		Respond("SIGRESULT?", "2,200,-20")
	a, _, _ := newAnalyzer(fake)

	peaks, err := a.FindPeaks()
	require.NoError(t, err)
	assert.Equal(t, []peak.Peak{{FrequencyHz: 100e6, PowerDBm: -10}, {FrequencyHz: 200e6, PowerDBm: -20}}, peaks)
	assert.Equal(t, []string{"MEASALLSIGS", "SIGPOS 1", "SIGPOS 2", "SIGPOS 2"}, fake.Writes())
}

func TestFindPeaksFailsWhenMeasurementCannotStart(t *testing.T) {
	fake := instrumenttest.New()
	fake.WriteErrs["MEASALLSIGS"] = errors.New("no listener")
	a, _, _ := newAnalyzer(fake)

	_, err := a.FindPeaks()
	assert.Error(t, err)
}
