package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hb9tf/benchlab/export"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Bus.Port)
	assert.Equal(t, 1, cfg.Bus.LowAddress)
	assert.Equal(t, 30, cfg.Bus.HighAddress)
	assert.Equal(t, 600*time.Second, cfg.Measurement.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Measurement.PollInterval)
	assert.Equal(t, "ext_att_compensation.csv", cfg.Files.Compensation)
	assert.Equal(t, "peak_report.csv", cfg.Files.Log)
	_, err = uuid.Parse(cfg.Identifier)
	assert.NoError(t, err, "default identifier should be a UUID")
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
identifier: bench-1
bus:
  port: /dev/ttyACM0
  highaddress: 20
measurement:
  timeout: 30s
files:
  log: lab.csv
`), 0o644))
	t.Setenv("BENCHLAB_FILES_LOG", "override.csv")
	t.Setenv("BENCHLAB_MEASUREMENT_POLLINTERVAL", "500ms")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bench-1", cfg.Identifier)
	assert.Equal(t, "/dev/ttyACM0", cfg.Bus.Port)
	assert.Equal(t, 20, cfg.Bus.HighAddress)
	assert.Equal(t, 30*time.Second, cfg.Measurement.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Measurement.PollInterval)
	assert.Equal(t, "override.csv", cfg.Files.Log)

	p := cfg.Poller()
	assert.Equal(t, 30*time.Second, p.Timeout)
	assert.Equal(t, 500*time.Millisecond, p.Interval)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsEmptyAddressRange(t *testing.T) {
	t.Setenv("BENCHLAB_BUS_LOWADDRESS", "10")
	t.Setenv("BENCHLAB_BUS_HIGHADDRESS", "5")
	_, err := Load("")
	assert.Error(t, err)
}

func TestExporters(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	exporters, closeAll, err := cfg.Exporters()
	require.NoError(t, err)
	assert.Empty(t, exporters)
	closeAll()

	cfg.Export.SQLiteFile = filepath.Join(t.TempDir(), "bench.db")
	cfg.Export.PostgresURL = "postgres://bench@127.0.0.1:1/benchlab?sslmode=disable"
	cfg.Export.ServerURL = "http://localhost:8443"
	exporters, closeAll, err = cfg.Exporters()
	require.NoError(t, err)
	defer closeAll()
	require.Len(t, exporters, 3)
	assert.IsType(t, &export.SQLite{}, exporters[0])
	assert.IsType(t, &export.Postgres{}, exporters[1])
	assert.Equal(t, &export.Server{Server: "http://localhost:8443"}, exporters[2])
}

func TestExportersMySQLPasswordMissing(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Export.MySQLServer = "localhost:3306"
	cfg.Export.MySQLPasswordFile = filepath.Join(t.TempDir(), "missing")

	_, _, err = cfg.Exporters()
	assert.Error(t, err)
}
