// Package config loads the bench configuration from an optional config file
// and BENCHLAB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/hb9tf/benchlab/compensation"
	"github.com/hb9tf/benchlab/export"
	"github.com/hb9tf/benchlab/instrument"
)

const envPrefix = "BENCHLAB"

type Config struct {
	// Identifier names this bench in exported records. A random UUID is
	// used when unset.
	Identifier  string
	Bus         BusConfig
	Measurement MeasurementConfig
	Files       FilesConfig
	Export      ExportConfig
}

type BusConfig struct {
	// Port is the serial device of the Prologix controller.
	Port        string
	LowAddress  int
	HighAddress int
}

type MeasurementConfig struct {
	Timeout      time.Duration
	PollInterval time.Duration
}

type FilesConfig struct {
	Compensation string
	Log          string
}

type ExportConfig struct {
	SQLiteFile        string
	MySQLServer       string
	MySQLUser         string
	MySQLPasswordFile string
	MySQLDB           string
	PostgresURL       string
	// ServerURL is the base URL of a collection server.
	ServerURL         string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("identifier", "")
	v.SetDefault("bus.port", "/dev/ttyUSB0")
	v.SetDefault("bus.lowaddress", 1)
	v.SetDefault("bus.highaddress", 30)
	v.SetDefault("measurement.timeout", instrument.DefaultTimeout)
	v.SetDefault("measurement.pollinterval", instrument.DefaultPollInterval)
	v.SetDefault("files.compensation", compensation.DefaultFile)
	v.SetDefault("files.log", export.DefaultLogFile)
	v.SetDefault("export.sqlitefile", "")
	v.SetDefault("export.mysqlserver", "")
	v.SetDefault("export.mysqluser", "benchlab")
	v.SetDefault("export.mysqlpasswordfile", "")
	v.SetDefault("export.mysqldb", "benchlab")
	v.SetDefault("export.postgresurl", "")
	v.SetDefault("export.serverurl", "")
}

// Load reads the configuration. An explicit path must exist; without one,
// benchlab.{yaml,json,toml} in the working directory is used when present.
// Environment variables override the file, e.g. BENCHLAB_BUS_PORT.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("benchlab")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("unable to read config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Identifier: v.GetString("identifier"),
		Bus: BusConfig{
			Port:        v.GetString("bus.port"),
			LowAddress:  v.GetInt("bus.lowaddress"),
			HighAddress: v.GetInt("bus.highaddress"),
		},
		Measurement: MeasurementConfig{
			Timeout:      v.GetDuration("measurement.timeout"),
			PollInterval: v.GetDuration("measurement.pollinterval"),
		},
		Files: FilesConfig{
			Compensation: v.GetString("files.compensation"),
			Log:          v.GetString("files.log"),
		},
		Export: ExportConfig{
			SQLiteFile:        v.GetString("export.sqlitefile"),
			MySQLServer:       v.GetString("export.mysqlserver"),
			MySQLUser:         v.GetString("export.mysqluser"),
			MySQLPasswordFile: v.GetString("export.mysqlpasswordfile"),
			MySQLDB:           v.GetString("export.mysqldb"),
			PostgresURL:       v.GetString("export.postgresurl"),
			ServerURL:         v.GetString("export.serverurl"),
		},
	}
	if cfg.Identifier == "" {
		cfg.Identifier = uuid.NewString()
	}
	if cfg.Bus.LowAddress > cfg.Bus.HighAddress {
		return nil, fmt.Errorf("bus address range %d..%d is empty", cfg.Bus.LowAddress, cfg.Bus.HighAddress)
	}
	return cfg, nil
}

// Poller returns the poller bounding instrument waits.
func (c *Config) Poller() instrument.Poller {
	return instrument.Poller{Timeout: c.Measurement.Timeout, Interval: c.Measurement.PollInterval}
}

// Exporters returns the optional exporters configured in addition to the
// CSV log. The returned closer releases their database handles.
func (c *Config) Exporters() ([]export.Exporter, func(), error) {
	var (
		exporters []export.Exporter
		closers   []func() error
	)
	closeAll := func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}
	if c.Export.SQLiteFile != "" {
		db, err := export.OpenSQLite(c.Export.SQLiteFile)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, db.Close)
		exporters = append(exporters, &export.SQLite{DB: db})
	}
	if c.Export.MySQLServer != "" {
		db, err := export.OpenMySQL(export.MySQLOptions{
			Server:       c.Export.MySQLServer,
			User:         c.Export.MySQLUser,
			PasswordFile: c.Export.MySQLPasswordFile,
			DBName:       c.Export.MySQLDB,
		})
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, db.Close)
		exporters = append(exporters, &export.MySQL{DB: db})
	}
	if c.Export.PostgresURL != "" {
		db, err := export.OpenPostgres(c.Export.PostgresURL)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, db.Close)
		exporters = append(exporters, &export.Postgres{DB: db})
	}
	if c.Export.ServerURL != "" {
		exporters = append(exporters, &export.Server{Server: c.Export.ServerURL})
	}
	return exporters, closeAll, nil
}
