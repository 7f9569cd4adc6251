// Package statestore implements the State Store (spec §4.G): durable,
// crash-safe persistence of each service's Monitor value and restart-budget
// history across daemon restarts. Local storage is a pure-Go sqlite
// database (modernc.org/sqlite avoids a cgo dependency, matching the
// teacher's embedded-device database layer); each record's payload is
// msgpack-encoded for a compact, schema-free on-disk representation.
package statestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"github.com/asydsolutions/sentinel/internal/depgraph"
	"github.com/asydsolutions/sentinel/internal/service"
)

// record is the msgpack-encoded payload stored per service. It holds
// exactly what must survive a restart: the enablement state and the
// restart-budget ring buffer (oldest entry first).
type record struct {
	Monitor       service.Monitor `msgpack:"monitor"`
	BudgetHistory []bool          `msgpack:"budget_history"`
}

// Config configures the local sqlite store and its optional remote mirror.
type Config struct {
	// Path is the sqlite database file. A sibling -wal/-shm pair is
	// created alongside it (WAL journal mode).
	Path string

	// Mirror, when non-nil, uploads a copy of Path to S3-compatible
	// remote storage after every successful local rewrite. A mirror
	// failure is logged and otherwise ignored: the local file remains
	// authoritative for this daemon's own restarts.
	Mirror *MirrorConfig
}

// Store is the State Store's local handle. It is safe for one daemon
// process; concurrent writers to the same file are not supported (sqlite's
// busy_timeout absorbs brief lock overlap, such as sentinelctl reading the
// file for status, nothing more).
type Store struct {
	db     *sql.DB
	path   string
	mirror *Mirror
	log    zerolog.Logger
}

// Open creates the schema if absent and returns a ready Store.
func Open(ctx context.Context, cfg Config, log zerolog.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("statestore: empty path")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("statestore: create directory: %w", err)
		}
	}

	connStr := cfg.Path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(FULL)" +
		"&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("statestore: open %s: %w", cfg.Path, err)
	}
	db.SetMaxOpenConns(1) // one writer; avoids sqlite lock contention entirely

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("statestore: ping %s: %w", cfg.Path, err)
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS service_state (
		name       TEXT PRIMARY KEY,
		payload    BLOB NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("statestore: create schema: %w", err)
	}

	s := &Store{
		db:   db,
		path: cfg.Path,
		log:  log.With().Str("component", "statestore").Logger(),
	}

	if cfg.Mirror != nil {
		m, err := newMirror(*cfg.Mirror, s.log)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("statestore: mirror: %w", err)
		}
		s.mirror = m
	}

	return s, nil
}

// Close releases the underlying sqlite connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save rewrites the whole table inside a single transaction: every
// service's current Monitor value and restart-budget history replace
// whatever was there before. A full rewrite (rather than per-row upserts)
// keeps the file's content always exactly equal to in-memory state, which
// is what makes a crash between cycles safe to recover from.
func (s *Store) Save(ctx context.Context, table *depgraph.Table) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("statestore: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM service_state`); err != nil {
		return fmt.Errorf("statestore: clear: %w", err)
	}

	now := time.Now()
	for _, svc := range table.All() {
		rec := record{Monitor: svc.Monitor, BudgetHistory: svc.Budget.Snapshot()}
		payload, err := msgpack.Marshal(rec)
		if err != nil {
			return fmt.Errorf("statestore: encode %s: %w", svc.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO service_state (name, payload, updated_at) VALUES (?, ?, ?)`,
			svc.Name, payload, now,
		); err != nil {
			return fmt.Errorf("statestore: insert %s: %w", svc.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("statestore: commit: %w", err)
	}

	if s.mirror != nil {
		if err := s.mirror.Upload(ctx, s.path); err != nil {
			s.log.Warn().Err(err).Msg("remote mirror upload failed, local state is still durable")
		}
	}

	return nil
}

// Load reloads persisted state on top of table, best-effort: a service
// present on disk but no longer configured is silently dropped, and a
// configured service absent from disk keeps the Monitor value it was built
// with (MonitorInit, as config.LoadServices builds it). A row that fails to decode
// is treated as corruption and aborts the whole load, since a partially
// applied restore is worse than none.
func (s *Store) Load(ctx context.Context, table *depgraph.Table) error {
	rows, err := s.db.QueryContext(ctx, `SELECT name, payload FROM service_state`)
	if err != nil {
		return fmt.Errorf("statestore: query: %w", err)
	}
	defer rows.Close()

	type loaded struct {
		name string
		rec  record
	}
	var all []loaded

	for rows.Next() {
		var name string
		var payload []byte
		if err := rows.Scan(&name, &payload); err != nil {
			return fmt.Errorf("statestore: scan: %w", err)
		}
		var rec record
		if err := msgpack.Unmarshal(payload, &rec); err != nil {
			return fmt.Errorf("statestore: corrupt record for %s: %w", name, err)
		}
		all = append(all, loaded{name: name, rec: rec})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("statestore: rows: %w", err)
	}

	for _, l := range all {
		svc, ok := table.Get(l.name)
		if !ok {
			s.log.Debug().Str("service", l.name).Msg("dropping persisted state for service no longer configured")
			continue
		}
		svc.Monitor = l.rec.Monitor
		svc.Budget.Restore(l.rec.BudgetHistory)
	}

	return nil
}
