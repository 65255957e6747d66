package main

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hb9tf/benchlab/chart"
	"github.com/hb9tf/benchlab/export"
	"github.com/hb9tf/benchlab/measurement"
)

func TestFromCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.csv")
	require.NoError(t, os.WriteFile(path, []byte("Frequency (Hz),Power (dBm)\n1000000,-10\n2000000,-12.5\n"), 0o644))

	points, err := fromCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []chart.Point{{FrequencyHz: 1e6, Level: -10}, {FrequencyHz: 2e6, Level: -12.5}}, points)

	_, err = fromCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestFromSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bench.db")
	db, err := export.OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, (&export.SQLite{DB: db}).Write(ctx, export.Records([]measurement.Record{
		{Index: 0, Timestamp: "ts", Type: measurement.Carrier, FrequencyHz: 1e6, CorrectedPowerDBm: 1},
		{Index: 1, Timestamp: "ts", Type: measurement.Carrier, FrequencyHz: 3e6, CorrectedPowerDBm: 3},
		{Index: 1, Timestamp: "ts", Type: measurement.Spurious, FrequencyHz: 6e6, CorrectedPowerDBm: -40},
	})))
	require.NoError(t, db.Close())

	latest, err := fromSQLite(ctx, path, -1)
	require.NoError(t, err)
	assert.Equal(t, []chart.Point{{FrequencyHz: 3e6, Level: 3}, {FrequencyHz: 6e6, Level: -40}}, latest)

	first, err := fromSQLite(ctx, path, 0)
	require.NoError(t, err)
	assert.Equal(t, []chart.Point{{FrequencyHz: 1e6, Level: 1}}, first)

	_, err = fromSQLite(ctx, filepath.Join(t.TempDir(), "missing.db"), -1)
	assert.Error(t, err)
}

func TestWriteImage(t *testing.T) {
	img := chart.Render([]chart.Point{{FrequencyHz: 1e6, Level: -10}, {FrequencyHz: 2e6, Level: -20}}, chart.Options{Width: 200, Height: 100}).Image
	dir := t.TempDir()

	path := filepath.Join(dir, "out.png")
	require.NoError(t, writeImage(path, img))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 200, 100), decoded.Bounds())

	assert.Error(t, writeImage(filepath.Join(dir, "out.gif"), img))
	assert.Error(t, writeImage(filepath.Join(dir, "missing", "out.png"), img))
}
