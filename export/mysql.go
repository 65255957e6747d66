package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/hb9tf/benchlab/measurement"
)

const (
	mysqlCreateTableTmpl = "CREATE TABLE IF NOT EXISTS measurements (" +
		"`ID`                BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
		"`MeasurementIndex`  BIGINT UNSIGNED NOT NULL," +
		"`Identifier`        VARCHAR(64) NOT NULL," +
		"`Note`              TEXT," +
		"`MeasuredAt`        VARCHAR(32) NOT NULL," +
		"`PeakType`          VARCHAR(16) NOT NULL," +
		"`FrequencyHz`       DOUBLE," +
		"`MeasuredPowerDBm`  DOUBLE," +
		"`CompensationDB`    DOUBLE," +
		"`CorrectedPowerDBm` DOUBLE" +
		");"
)

type MySQL struct {
	DB *sql.DB
}

type MySQLOptions struct {
	// Server is the TCP endpoint (IP/DNS and port).
	Server       string
	User         string
	PasswordFile string
	DBName       string
}

// OpenMySQL connects to a MySQL server, reading the password from a file.
func OpenMySQL(opts MySQLOptions) (*sql.DB, error) {
	pass, err := os.ReadFile(opts.PasswordFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read MySQL password file %q: %w", opts.PasswordFile, err)
	}
	cfg := mysql.NewConfig()
	cfg.User = opts.User
	cfg.Passwd = strings.TrimSpace(string(pass))
	cfg.Net = "tcp"
	cfg.Addr = opts.Server
	cfg.DBName = opts.DBName
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("unable to open MySQL DB %q: %w", opts.Server, err)
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	return db, nil
}

func (m *MySQL) Write(ctx context.Context, records <-chan measurement.Record) error {
	return writeSQL(ctx, m.DB, mysqlCreateTableTmpl, insertRecordTmpl, "mysql", records)
}
