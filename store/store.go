// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// package store archives readings and deltas in an SQLite database.
// The package is configured as the 'store' section of the main config file:
//
//	store:
//	  path: /var/lib/dialmeter/readings.db
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/aamcrae/DialMeter/dial"
	"github.com/aamcrae/DialMeter/series"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 2

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrNoRun is returned when rows are added before a run is started.
var ErrNoRun = errors.New("no run started")

type StoreConfig struct {
	Path string
}

// Store is an archive of readings and deltas. Rows are tagged with the
// id of the run (one invocation of a command) that added them.
type Store struct {
	Trace bool
	db    *sql.DB
	path  string
	run   string
}

// Open initializes or connects to the database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	s := &Store{db: db, path: path}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}
	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: %s has version %d, expected %d", ErrSchemaMismatch, s.path, version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// StartRun records a new run, and returns its id.
func (s *Store) StartRun(ctx context.Context, command string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, "INSERT INTO runs (id, command, started_at) VALUES (?, ?, ?)",
		id, command, time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}
	s.run = id
	if s.Trace {
		log.Printf("Store %s: run %s (%s)", s.path, id, command)
	}
	return id, nil
}

// AddReading archives a reading under the current run.
func (s *Store) AddReading(ctx context.Context, r *dial.Reading) error {
	if len(s.run) == 0 {
		return ErrNoRun
	}
	test := make(map[string]float64)
	for f, v := range r.Calibration {
		test[dial.FactorKey(f)] = v
	}
	tj, err := json.Marshal(test)
	if err != nil {
		return err
	}
	missing := r.Missing
	if missing == nil {
		missing = []float64{}
	}
	mj, err := json.Marshal(missing)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO readings (run_id, source, taken_at, approx, reading, partial, test_json, missing_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.run, r.Source, r.Timestamp.UnixNano(), r.Approx, r.Precise, r.Partial, string(tj), string(mj))
	if err != nil {
		return fmt.Errorf("add reading %s: %w", r.Source, err)
	}
	return nil
}

// AddDelta archives a delta record under the current run.
func (s *Store) AddDelta(ctx context.Context, d *series.DeltaRecord) error {
	if len(s.run) == 0 {
		return ErrNoRun
	}
	// The reading context is NULL when the record has none.
	var rd, drd sql.NullFloat64
	if d.HasReading {
		rd = sql.NullFloat64{Float64: d.Reading, Valid: true}
		drd = sql.NullFloat64{Float64: d.DeltaReading, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deltas (run_id, counter, val, delta, delta_time, rate, taken_at, reading, delta_reading)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.run, d.Counter, d.Value, d.Delta, d.DeltaTime, d.Rate, d.Time.UnixNano(), rd, drd)
	if err != nil {
		return fmt.Errorf("add delta %s: %w", d.Counter, err)
	}
	return nil
}

// Deltas returns the archived records of the counter in time order.
func (s *Store) Deltas(ctx context.Context, counter string) ([]*series.DeltaRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT val, delta, delta_time, rate, taken_at, reading, delta_reading
		 FROM deltas WHERE counter = ? ORDER BY taken_at, id`, counter)
	if err != nil {
		return nil, fmt.Errorf("query deltas: %w", err)
	}
	defer rows.Close()
	var list []*series.DeltaRecord
	for rows.Next() {
		d := series.DeltaRecord{Counter: counter}
		var taken int64
		var rd, drd sql.NullFloat64
		if err := rows.Scan(&d.Value, &d.Delta, &d.DeltaTime, &d.Rate, &taken, &rd, &drd); err != nil {
			return nil, fmt.Errorf("scan delta: %w", err)
		}
		d.Time = time.Unix(0, taken)
		if rd.Valid && drd.Valid {
			d.Reading, d.DeltaReading, d.HasReading = rd.Float64, drd.Float64, true
		}
		list = append(list, &d)
	}
	return list, rows.Err()
}

// Readings returns the archived readings taken in [from, to), in time order.
// A zero time leaves that end of the range open.
func (s *Store) Readings(ctx context.Context, from, to time.Time) ([]*dial.Reading, error) {
	q := "SELECT source, taken_at, approx, reading, partial, test_json, missing_json FROM readings WHERE 1=1"
	var args []interface{}
	if !from.IsZero() {
		q += " AND taken_at >= ?"
		args = append(args, from.UnixNano())
	}
	if !to.IsZero() {
		q += " AND taken_at < ?"
		args = append(args, to.UnixNano())
	}
	q += " ORDER BY taken_at, id"
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()
	var list []*dial.Reading
	for rows.Next() {
		var (
			r      dial.Reading
			taken  int64
			tj, mj string
		)
		if err := rows.Scan(&r.Source, &taken, &r.Approx, &r.Precise, &r.Partial, &tj, &mj); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		r.Timestamp = time.Unix(0, taken)
		test := make(map[string]float64)
		if err := json.Unmarshal([]byte(tj), &test); err != nil {
			return nil, fmt.Errorf("reading %s: test values: %w", r.Source, err)
		}
		r.Calibration = make(map[float64]float64)
		for k, v := range test {
			f, err := strconv.ParseFloat(k, 64)
			if err != nil {
				return nil, fmt.Errorf("reading %s: test dial %q: %w", r.Source, k, err)
			}
			r.Calibration[f] = v
		}
		if err := json.Unmarshal([]byte(mj), &r.Missing); err != nil {
			return nil, fmt.Errorf("reading %s: missing dials: %w", r.Source, err)
		}
		if len(r.Missing) == 0 {
			r.Missing = nil
		}
		list = append(list, &r)
	}
	return list, rows.Err()
}

// DeltaCount returns the number of archived deltas for the counter.
func (s *Store) DeltaCount(ctx context.Context, counter string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM deltas WHERE counter = ?", counter).Scan(&n)
	return n, err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
