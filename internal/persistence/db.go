// Package persistence records finished exploration runs in SQLite and
// archives simulation events as compressed JSONL.
package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/antnest/internal/engine"
)

// DB wraps a SQLite connection holding the run ledger.
type DB struct {
	conn *sqlx.DB
}

// runRow is the stored form of engine.RunRecord. Times are unix milliseconds.
type runRow struct {
	RunID       string `db:"run_id"`
	Seed        int64  `db:"seed"`
	Regions     int    `db:"regions"`
	Rooms       int    `db:"rooms"`
	Tunnels     int    `db:"tunnels"`
	Agents      int    `db:"agents"`
	Ticks       int64  `db:"ticks"`
	DurationMs  int64  `db:"duration_ms"`
	StartedAt   int64  `db:"started_at"`
	CompletedAt int64  `db:"completed_at"`
}

func toRow(r engine.RunRecord) runRow {
	return runRow{
		RunID:       r.RunID,
		Seed:        r.Seed,
		Regions:     r.Regions,
		Rooms:       r.Rooms,
		Tunnels:     r.Tunnels,
		Agents:      r.Agents,
		Ticks:       int64(r.Ticks),
		DurationMs:  r.Duration.Milliseconds(),
		StartedAt:   r.StartedAt.UnixMilli(),
		CompletedAt: r.CompletedAt.UnixMilli(),
	}
}

func (r runRow) record() engine.RunRecord {
	return engine.RunRecord{
		RunID:       r.RunID,
		Seed:        r.Seed,
		Regions:     r.Regions,
		Rooms:       r.Rooms,
		Tunnels:     r.Tunnels,
		Agents:      r.Agents,
		Ticks:       uint64(r.Ticks),
		Duration:    time.Duration(r.DurationMs) * time.Millisecond,
		StartedAt:   time.UnixMilli(r.StartedAt).UTC(),
		CompletedAt: time.UnixMilli(r.CompletedAt).UTC(),
	}
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		regions INTEGER NOT NULL,
		rooms INTEGER NOT NULL,
		tunnels INTEGER NOT NULL,
		agents INTEGER NOT NULL,
		ticks INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		completed_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_completed ON runs(completed_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// RecordRun stores a completed run. Recording the same run twice keeps the first.
func (db *DB) RecordRun(r engine.RunRecord) error {
	_, err := db.conn.NamedExec(`INSERT OR IGNORE INTO runs
		(run_id, seed, regions, rooms, tunnels, agents, ticks, duration_ms, started_at, completed_at)
		VALUES (:run_id, :seed, :regions, :rooms, :tunnels, :agents, :ticks, :duration_ms, :started_at, :completed_at)`,
		toRow(r))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.RunID, err)
	}
	return nil
}

// RecentRuns returns the most recently completed runs, newest first.
func (db *DB) RecentRuns(limit int) ([]engine.RunRecord, error) {
	var rows []runRow
	err := db.conn.Select(&rows,
		"SELECT * FROM runs ORDER BY completed_at DESC, run_id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	return records(rows), nil
}

// FastestRuns returns the quickest completions, fastest first.
func (db *DB) FastestRuns(limit int) ([]engine.RunRecord, error) {
	var rows []runRow
	err := db.conn.Select(&rows,
		"SELECT * FROM runs ORDER BY duration_ms ASC, run_id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	return records(rows), nil
}

// CountRuns returns the number of recorded runs.
func (db *DB) CountRuns() (int, error) {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM runs"); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}

func records(rows []runRow) []engine.RunRecord {
	out := make([]engine.RunRecord, len(rows))
	for i, r := range rows {
		out[i] = r.record()
	}
	return out
}
