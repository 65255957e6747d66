package export

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golang/glog"

	"github.com/hb9tf/benchlab/measurement"

	// Blind import support for sqlite3.
	_ "github.com/mattn/go-sqlite3"
)

const (
	sqlRecordCountInfo = 1000

	sqliteCreateTableTmpl = `CREATE TABLE IF NOT EXISTS measurements (
		"ID"                INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
		"MeasurementIndex"  INTEGER NOT NULL,
		"Identifier"        TEXT NOT NULL,
		"Note"              TEXT,
		"MeasuredAt"        TEXT NOT NULL,
		"PeakType"          TEXT NOT NULL,
		"FrequencyHz"       REAL,
		"MeasuredPowerDBm"  REAL,
		"CompensationDB"    REAL,
		"CorrectedPowerDBm" REAL
	);`
	insertRecordTmpl = `INSERT INTO measurements (
		MeasurementIndex,
		Identifier,
		Note,
		MeasuredAt,
		PeakType,
		FrequencyHz,
		MeasuredPowerDBm,
		CompensationDB,
		CorrectedPowerDBm
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`
	latestIndexTmpl       = `SELECT MAX(MeasurementIndex) FROM measurements;`
	selectMeasurementTmpl = `SELECT
		MeasurementIndex,
		Identifier,
		Note,
		MeasuredAt,
		PeakType,
		FrequencyHz,
		MeasuredPowerDBm,
		CompensationDB,
		CorrectedPowerDBm
	FROM
		measurements
	WHERE
		MeasurementIndex = ?
	ORDER BY
		FrequencyHz ASC;`
)

type SQLite struct {
	DB *sql.DB
}

// OpenSQLite opens (and creates if needed) the sqlite DB file at path.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite DB %q: %w", path, err)
	}
	return db, nil
}

func (s *SQLite) Write(ctx context.Context, records <-chan measurement.Record) error {
	return writeSQL(ctx, s.DB, sqliteCreateTableTmpl, insertRecordTmpl, "sqlite", records)
}

// LatestIndex returns the highest measurement index stored. ok is false for
// an empty DB.
func (s *SQLite) LatestIndex(ctx context.Context) (index uint64, ok bool, err error) {
	var idx sql.NullInt64
	if err := s.DB.QueryRowContext(ctx, latestIndexTmpl).Scan(&idx); err != nil {
		return 0, false, fmt.Errorf("unable to query latest measurement: %w", err)
	}
	if !idx.Valid {
		return 0, false, nil
	}
	return uint64(idx.Int64), true, nil
}

// Measurement returns all records of one measurement ordered by frequency.
func (s *SQLite) Measurement(ctx context.Context, index uint64) ([]measurement.Record, error) {
	rows, err := s.DB.QueryContext(ctx, selectMeasurementTmpl, int64(index))
	if err != nil {
		return nil, fmt.Errorf("unable to query measurement %d: %w", index, err)
	}
	defer rows.Close()

	var records []measurement.Record
	for rows.Next() {
		var (
			r        measurement.Record
			idx      int64
			note     sql.NullString
			peakType string
		)
		if err := rows.Scan(&idx, &r.Identifier, &note, &r.Timestamp, &peakType, &r.FrequencyHz, &r.MeasuredPowerDBm, &r.CompensationDB, &r.CorrectedPowerDBm); err != nil {
			glog.Warningf("unable to get record from DB: %s\n", err)
			continue
		}
		r.Index = uint64(idx)
		r.Note = note.String
		r.Type = measurement.PeakType(peakType)
		records = append(records, r)
	}
	return records, rows.Err()
}

// writeSQL is shared by the SQL backends which only differ in their DDL and
// placeholder syntax.
func writeSQL(ctx context.Context, db *sql.DB, createTmpl, insertTmpl, backend string, records <-chan measurement.Record) error {
	if _, err := db.ExecContext(ctx, createTmpl); err != nil {
		return fmt.Errorf("unable to create table: %w", err)
	}
	statement, err := db.PrepareContext(ctx, insertTmpl)
	if err != nil {
		return fmt.Errorf("unable to prepare insert: %w", err)
	}
	defer statement.Close()

	counts := map[string]int{
		"error":   0,
		"success": 0,
		"total":   0,
	}
	for r := range records {
		counts["total"] += 1
		if _, err := statement.ExecContext(ctx, int64(r.Index), r.Identifier, r.Note, r.Timestamp, string(r.Type), r.FrequencyHz, r.MeasuredPowerDBm, r.CompensationDB, r.CorrectedPowerDBm); err != nil {
			counts["error"] += 1
			glog.Warningf("error storing in %s DB: %s\n", backend, err)
			continue
		}
		counts["success"] += 1
		if counts["total"]%sqlRecordCountInfo == 0 {
			glog.Infof("Record export counts: %+v\n", counts)
		}
	}
	glog.V(1).Infof("%s export done: %+v", backend, counts)

	return nil
}
