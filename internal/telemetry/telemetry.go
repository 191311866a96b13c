// Package telemetry implements an optional SQL sink for cache and
// profiler events: cache hits/misses, tier promotions, and
// deoptimizations, recorded for later analysis via whatever
// database/sql-compatible store the operator points it at.
package telemetry

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	qerrors "quicksilver/internal/errors"
)

// driverNames maps the user-facing scheme names this package accepts to
// the database/sql driver name registered by each blank import above.
var driverNames = map[string]string{
	"sqlite":   "sqlite",
	"sqlite3":  "sqlite",
	"postgres": "postgres",
	"postgresql": "postgres",
	"mysql":    "mysql",
	"sqlserver": "sqlserver",
	"mssql":    "sqlserver",
}

// Sink writes telemetry events to a SQL database. It owns the connection
// pool it opens and is safe for concurrent use via the underlying
// *sql.DB's own locking.
type Sink struct {
	db *sql.DB
}

// Open connects to dbType/dsn and ensures the telemetry schema exists.
// dbType is one of sqlite, postgres, mysql, or sqlserver (aliases
// sqlite3/postgresql/mssql accepted).
func Open(dbType, dsn string) (*Sink, error) {
	driver, ok := driverNames[dbType]
	if !ok {
		return nil, qerrors.IO(nil, "telemetry: unsupported database type %q", dbType)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, qerrors.IO(err, "telemetry: failed to open %s connection", dbType)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, qerrors.IO(err, "telemetry: failed to ping %s database", dbType)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Sink{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Sink) Close() error {
	return s.db.Close()
}

func (s *Sink) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS cache_events (
			id INTEGER PRIMARY KEY,
			recorded_at INTEGER NOT NULL,
			fingerprint TEXT NOT NULL,
			hit INTEGER NOT NULL
		)
	`)
	if err != nil {
		return qerrors.IO(err, "telemetry: failed to create cache_events table")
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tier_events (
			id INTEGER PRIMARY KEY,
			recorded_at INTEGER NOT NULL,
			chunk_id INTEGER NOT NULL,
			tier TEXT NOT NULL
		)
	`)
	if err != nil {
		return qerrors.IO(err, "telemetry: failed to create tier_events table")
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS deopt_events (
			id INTEGER PRIMARY KEY,
			recorded_at INTEGER NOT NULL,
			chunk_id INTEGER NOT NULL,
			reason TEXT NOT NULL
		)
	`)
	if err != nil {
		return qerrors.IO(err, "telemetry: failed to create deopt_events table")
	}
	return nil
}

// RecordCacheEvent logs a bytecode cache lookup result.
func (s *Sink) RecordCacheEvent(fingerprint string, hit bool) error {
	_, err := s.db.Exec(
		`INSERT INTO cache_events (recorded_at, fingerprint, hit) VALUES (?, ?, ?)`,
		time.Now().Unix(), fingerprint, boolToInt(hit),
	)
	if err != nil {
		return qerrors.IO(err, "telemetry: failed to record cache event")
	}
	return nil
}

// RecordTierChange logs a chunk's promotion to a new compilation tier.
func (s *Sink) RecordTierChange(chunkID uint64, tier fmt.Stringer) error {
	_, err := s.db.Exec(
		`INSERT INTO tier_events (recorded_at, chunk_id, tier) VALUES (?, ?, ?)`,
		time.Now().Unix(), chunkID, tier.String(),
	)
	if err != nil {
		return qerrors.IO(err, "telemetry: failed to record tier event")
	}
	return nil
}

// RecordDeopt logs a deoptimization event for chunkID.
func (s *Sink) RecordDeopt(chunkID uint64, reason string) error {
	_, err := s.db.Exec(
		`INSERT INTO deopt_events (recorded_at, chunk_id, reason) VALUES (?, ?, ?)`,
		time.Now().Unix(), chunkID, reason,
	)
	if err != nil {
		return qerrors.IO(err, "telemetry: failed to record deopt event")
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
