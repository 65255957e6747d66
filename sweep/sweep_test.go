package sweep

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hb9tf/benchlab/diag"
	"github.com/hb9tf/benchlab/instrument"
	"github.com/hb9tf/benchlab/instrument/instrumenttest"
)

func TestHalton(t *testing.T) {
	for _, tc := range []struct {
		index, base int
		want        float64
	}{
		{0, 2, 0},
		{1, 2, 0.5},
		{2, 2, 0.25},
		{3, 2, 0.75},
		{4, 2, 0.125},
		{1, 3, 1.0 / 3},
		{5, 3, 2.0/3 + 1.0/9},
	} {
		assert.InDelta(t, tc.want, Halton(tc.index, tc.base), 1e-12, "Halton(%d, %d)", tc.index, tc.base)
	}
}

func TestPlanLinear(t *testing.T) {
	assert.Equal(t, []float64{100, 125, 150, 175, 200}, Plan(100, 200, 5))
	assert.Equal(t, []float64{100}, Plan(100, 200, 1))
}

func TestPlanHalton(t *testing.T) {
	freqs := Plan(1e6, 2e6, 0)
	require.Len(t, freqs, HaltonPoints+2)
	assert.Equal(t, 1e6, freqs[0])
	assert.Equal(t, 1.5e6, freqs[1])
	assert.Equal(t, 2e6, freqs[len(freqs)-1])
	for _, f := range freqs {
		assert.True(t, f >= 1e6 && f <= 2e6, "%f out of range", f)
	}
}

type fakeGen struct {
	tuned []float64
	fail  map[float64]bool
}

func (g *fakeGen) SetFrequency(hz float64) error {
	g.tuned = append(g.tuned, hz)
	if g.fail[hz] {
		return errors.New("bus error")
	}
	return nil
}

type fakeAnalyzer struct {
	centre float64
}

func (a *fakeAnalyzer) SetCenterFrequency(hz float64) error {
	a.centre = hz
	return nil
}

func (a *fakeAnalyzer) MarkerPower() (float64, error) {
	if a.centre == 300 {
		return 0, errors.New("timeout")
	}
	return -a.centre / 100, nil
}

func TestRun(t *testing.T) {
	gen := &fakeGen{fail: map[float64]bool{200: true}}
	rec := &diag.Recorder{}
	clock := &instrumenttest.Clock{}

	results := Run(context.Background(), gen, &fakeAnalyzer{}, []float64{500, 100, 200, 300, 400}, DefaultSettle, clock.Poller(0, 0), rec)

	assert.Equal(t, []Result{{100, -1}, {400, -4}, {500, -5}}, results)
	assert.Equal(t, []float64{500, 100, 200, 300, 400}, gen.tuned)
	assert.Equal(t, 2, rec.Count(diag.Warning))
	// Every step that tuned both instruments settled once.
	assert.Equal(t, []time.Duration{DefaultSettle, DefaultSettle, DefaultSettle, DefaultSettle}, clock.Slept)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &fakeGen{}

	results := Run(ctx, gen, &fakeAnalyzer{}, []float64{100, 200}, 0, instrument.Poller{}, &diag.Recorder{})
	assert.Empty(t, results)
	assert.Empty(t, gen.tuned)
}

func TestCSVPath(t *testing.T) {
	assert.Equal(t, "out.csv", CSVPath("out"))
	assert.Equal(t, "OUT.CSV", CSVPath("OUT.CSV"))
}

func TestWriteAndReadCSV(t *testing.T) {
	name := filepath.Join(t.TempDir(), "sweep")
	path, err := WriteCSV(name, []Result{{100e6, -10.5}, {200e6, -12}})
	require.NoError(t, err)
	assert.Equal(t, name+".csv", path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Frequency (Hz),Power (dBm)\n100000000,-10.5\n200000000,-12\n", string(raw))

	got, err := ReadCSV(strings.NewReader(string(raw)))
	require.NoError(t, err)
	assert.Equal(t, []Result{{100e6, -10.5}, {200e6, -12}}, got)
}

func TestReadCSVSkipsComments(t *testing.T) {
	got, err := ReadCSV(strings.NewReader("# Frequency (Hz), Attenuation (dB)\n1e6, 3\nbogus\n2e6,4.5\n"))
	require.NoError(t, err)
	assert.Equal(t, []Result{{1e6, 3}, {2e6, 4.5}}, got)
}
