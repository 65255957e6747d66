package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hb9tf/benchlab/compensation"
	"github.com/hb9tf/benchlab/diag"
	"github.com/hb9tf/benchlab/peak"
)

const header = "measurement_index,timestamp,peak_type,frequency_hz,measured_power_dbm,compensation_db,corrected_power_dbm\n"

func newLog(t *testing.T, content string) (*CSV, *diag.Recorder) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "peak_report.csv")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	rec := &diag.Recorder{}
	return &CSV{Path: path, Diag: rec}, rec
}

func TestNextIndexAbsentLog(t *testing.T) {
	log, rec := newLog(t, "")
	assert.Equal(t, uint64(0), log.NextIndex())
	assert.Empty(t, rec.Events())
}

func TestNextIndexEmptyLog(t *testing.T) {
	log, _ := newLog(t, "")
	require.NoError(t, os.WriteFile(log.Path, nil, 0o644))
	assert.Equal(t, uint64(0), log.NextIndex())
}

func TestNextIndexHeaderOnly(t *testing.T) {
	log, _ := newLog(t, header)
	assert.Equal(t, uint64(0), log.NextIndex())
}

func TestNextIndexSkipsMalformedRows(t *testing.T) {
	log, rec := newLog(t, header+
		"0,ts,carrier,1,2,3,4\n"+
		"2,ts,spurious,1,2,3,4\n"+
		"oops,ts,spurious,1,2,3,4\n"+
		"\n"+
		"5,ts,spurious,1,2,3,4\n")
	assert.Equal(t, uint64(6), log.NextIndex())
	assert.Equal(t, 0, rec.Count(diag.Warning))
}

func TestNextIndexFindsColumnAnywhere(t *testing.T) {
	log, _ := newLog(t, "timestamp,measurement_index\nts,4\nts\n")
	assert.Equal(t, uint64(5), log.NextIndex())
}

func TestNextIndexMissingColumn(t *testing.T) {
	log, rec := newLog(t, "a,b,c\n1,2,3\n")
	assert.Equal(t, uint64(0), log.NextIndex())
	assert.Equal(t, 1, rec.Count(diag.Warning))
}

func TestAppendCreatesLogWithHeader(t *testing.T) {
	log, rec := newLog(t, "")
	table := compensation.NewTable([]compensation.Point{{FrequencyHz: 1e6, AttenuationDB: -3}, {FrequencyHz: 2e6, AttenuationDB: -5}})
	carrier := []peak.Peak{{FrequencyHz: 1.5e6, PowerDBm: 10}}
	spurious := []peak.Peak{{FrequencyHz: 3e6, PowerDBm: -40}}

	records, err := log.Append(context.Background(), carrier, spurious, table, AppendOptions{Timestamp: "2024-01-01T00:00:00.000000"})
	require.NoError(t, err)
	require.Len(t, records, 2)

	b, err := os.ReadFile(log.Path)
	require.NoError(t, err)
	assert.Equal(t, header+
		"0,2024-01-01T00:00:00.000000,carrier,1500000,10,-4,14\n"+
		"0,2024-01-01T00:00:00.000000,spurious,3000000,-40,-5,-35\n", string(b))
	assert.Equal(t, 1, rec.Count(diag.Info))
}

func TestAppendIncrementsIndexAndWritesHeaderOnce(t *testing.T) {
	log, _ := newLog(t, "")
	peaks := []peak.Peak{{FrequencyHz: 100e6, PowerDBm: 0}}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		records, err := log.Append(ctx, peaks, nil, nil, AppendOptions{})
		require.NoError(t, err)
		assert.Equal(t, uint64(i), records[0].Index)
	}
	assert.Equal(t, uint64(3), log.NextIndex())

	b, err := os.ReadFile(log.Path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(b), "measurement_index"))
	assert.Len(t, strings.Split(strings.TrimSpace(string(b)), "\n"), 4)
}

func TestAppendExplicitIndex(t *testing.T) {
	log, _ := newLog(t, header+"3,ts,carrier,1,2,3,4\n")
	idx := uint64(42)
	records, err := log.Append(context.Background(), nil, []peak.Peak{{FrequencyHz: 1e9}}, nil, AppendOptions{Index: &idx, Note: "after filter change"})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), records[0].Index)
	assert.Equal(t, "after filter change", records[0].Note)
	assert.Equal(t, uint64(43), log.NextIndex())
}

func TestAppendNothingDoesNotTouchFile(t *testing.T) {
	log, rec := newLog(t, "")
	records, err := log.Append(context.Background(), nil, nil, nil, AppendOptions{})
	require.NoError(t, err)
	assert.Nil(t, records)
	_, err = os.Stat(log.Path)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, rec.Events())
}

func TestAppendReportsIOFailure(t *testing.T) {
	rec := &diag.Recorder{}
	log := &CSV{Path: filepath.Join(t.TempDir(), "missing-dir", "log.csv"), Diag: rec}
	_, err := log.Append(context.Background(), []peak.Peak{{FrequencyHz: 1e6}}, nil, nil, AppendOptions{})
	assert.Error(t, err)
	assert.Equal(t, 1, rec.Count(diag.Error))
}
