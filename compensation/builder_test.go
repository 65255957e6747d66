package compensation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hb9tf/benchlab/diag"
)

func TestMergeEvictsNearbyPoints(t *testing.T) {
	existing := []Point{{1e6, 1}, {1.05e6, 2}, {2e6, 3}, {10e6, 4}}
	got := Merge(existing, []Point{{1.1e6, 9}})

	assert.Equal(t, []Point{{1.1e6, 9}, {2e6, 3}, {10e6, 4}}, got)
}

func TestMergeBandIsInclusive(t *testing.T) {
	got := Merge([]Point{{0.9e6, 1}, {1.1e6, 2}, {1.2e6, 3}}, []Point{{1e6, 0}})
	assert.Equal(t, []Point{{1e6, 0}, {1.2e6, 3}}, got)
}

func TestMergeNewPointsNeverEvictEachOther(t *testing.T) {
	got := Merge(nil, []Point{{1e6, 1}, {1.01e6, 2}})
	assert.Equal(t, []Point{{1e6, 1}, {1.01e6, 2}}, got)
}

func TestMergeDoesNotModifyInput(t *testing.T) {
	existing := []Point{{1e6, 1}, {5e6, 2}}
	Merge(existing, []Point{{1e6, 7}})
	assert.Equal(t, []Point{{1e6, 1}, {5e6, 2}}, existing)
}

func TestMergeAndSaveIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comp.csv")
	p := Point{FrequencyHz: 100e6, AttenuationDB: 20.5}

	require.NoError(t, UpdateFile(path, []Point{p}, &diag.Recorder{}))
	require.NoError(t, UpdateFile(path, []Point{p}, &diag.Recorder{}))

	points, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []Point{p}, points)
}

func TestMergeAndSaveFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comp.csv")
	require.NoError(t, MergeAndSave([]Point{{5e6, 3.25}}, []Point{{1e6, 10}}, path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Frequency (Hz), Attenuation (dB)\n1e+06,10\n5e+06,3.25\n", string(b))
}

func TestReadFileSkipsHeaderAndComments(t *testing.T) {
	path := writeFile(t, "comp.csv", "# comment\nfrequency,attenuation\n1000000,1.5\n# another\n2000000,2.5\n")
	points, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []Point{{1e6, 1.5}, {2e6, 2.5}}, points)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.csv"))
	var missing *MissingResourceError
	assert.ErrorAs(t, err, &missing)
}

func TestGenerateSubRanges(t *testing.T) {
	assert.Equal(t, []Range{{1e6, 10e6}, {10e6, 50e6}}, GenerateSubRanges(1e6, 50e6))
	assert.Equal(t, []Range{{100e3, 1e6}, {1e6, 10e6}, {10e6, 100e6}, {100e6, 1e9}, {1e9, 10e9}, {10e9, 11e9}}, GenerateSubRanges(100e3, 11e9))
	assert.Equal(t, []Range{{2e6, 3e6}}, GenerateSubRanges(2e6, 3e6))
	assert.Empty(t, GenerateSubRanges(5e6, 5e6))
	assert.Empty(t, GenerateSubRanges(5e6, 1e6))
	assert.Empty(t, GenerateSubRanges(0, 1e6))
}

func TestGenerateSubRangesCoversRange(t *testing.T) {
	ranges := GenerateSubRanges(123e3, 7.7e9)
	require.NotEmpty(t, ranges)
	assert.Equal(t, 123e3, ranges[0].Start)
	assert.Equal(t, 7.7e9, ranges[len(ranges)-1].End)
	for i, r := range ranges {
		assert.LessOrEqual(t, r.End/r.Start, 10.0+1e-9)
		if i > 0 {
			assert.Equal(t, ranges[i-1].End, r.Start)
		}
	}
}

func TestTraceToPoints(t *testing.T) {
	points, err := TraceToPoints(1e6, 3e6, "8000\r7000\r6500\r\n")
	require.NoError(t, err)
	assert.Equal(t, []Point{{1e6, 0}, {2e6, 10}, {3e6, 15}}, points)

	_, err = TraceToPoints(1e6, 3e6, "8000\rxx\r")
	assert.Error(t, err)
	_, err = TraceToPoints(1e6, 3e6, "\r\n")
	assert.Error(t, err)
}

func TestExtremes(t *testing.T) {
	lo, hi, ok := Extremes([]Point{{1e6, 3}, {2e6, -1}, {3e6, 7}})
	require.True(t, ok)
	assert.Equal(t, Point{2e6, -1}, lo)
	assert.Equal(t, Point{3e6, 7}, hi)

	_, _, ok = Extremes(nil)
	assert.False(t, ok)
}
