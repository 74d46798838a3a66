// Package persistence implements C10: the run-state checkpoint store.
// Postgres via jmoiron/sqlx + lib/pq when a DSN is configured,
// falling back to a local modernc.org/sqlite file otherwise, so a
// single-machine deployment never needs a running Postgres to produce
// a report. Grounded on the teacher's
// internal/infrastructure/db.Manager (sqlx.Open, connection-pool
// tuning, PingContext health check) and
// internal/persistence/postgres.regimeRepo (context-timeout-wrapped
// upsert-by-primary-key with a JSON payload column).
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/sawpanic/screener/internal/config"
	"github.com/sawpanic/screener/internal/domain"
)

const defaultQueryTimeout = 10 * time.Second

// Store persists domain.RunState checkpoints keyed by run ID.
type Store struct {
	db      *sqlx.DB
	driver  string
	timeout time.Duration
}

// Open connects to Postgres when cfg.PostgresDSN is set, otherwise
// opens (creating if needed) a SQLite file under cfg.RunsPath.
func Open(cfg config.PersistenceConfig) (*Store, error) {
	if cfg.PostgresDSN != "" {
		db, err := sqlx.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), defaultQueryTimeout)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}

		store := &Store{db: db, driver: "postgres", timeout: defaultQueryTimeout}
		if err := store.ensureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return store, nil
	}

	if err := os.MkdirAll(cfg.RunsPath, 0o755); err != nil {
		return nil, fmt.Errorf("create runs path: %w", err)
	}
	path := filepath.Join(cfg.RunsPath, "runs.db")
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers

	ctx, cancel := context.WithTimeout(context.Background(), defaultQueryTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	store := &Store{db: db, driver: "sqlite", timeout: defaultQueryTimeout}
	if err := store.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS run_states (
	run_id      TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	payload     TEXT NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("ensure run_states schema: %w", err)
	}
	return nil
}

// SaveRunState upserts one run's full checkpoint, satisfying
// orchestrator.RunStore.
func (s *Store) SaveRunState(ctx context.Context, state domain.RunState) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal run state: %w", err)
	}

	var query string
	switch s.driver {
	case "postgres":
		query = `
INSERT INTO run_states (run_id, status, started_at, finished_at, payload)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (run_id) DO UPDATE SET
	status = EXCLUDED.status,
	finished_at = EXCLUDED.finished_at,
	payload = EXCLUDED.payload`
	default:
		query = `
INSERT INTO run_states (run_id, status, started_at, finished_at, payload)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (run_id) DO UPDATE SET
	status = excluded.status,
	finished_at = excluded.finished_at,
	payload = excluded.payload`
	}

	_, err = s.db.ExecContext(ctx, query, state.RunID, string(state.Status), state.StartedAt, state.FinishedAt, payload)
	if err != nil {
		return fmt.Errorf("save run state %s: %w", state.RunID, err)
	}
	return nil
}

// Latest returns the most recently started run, or nil if none exist
// yet — used by internal/httpapi's /healthz handler.
func (s *Store) Latest(ctx context.Context) (*domain.RunState, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM run_states ORDER BY started_at DESC LIMIT 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run state: %w", err)
	}

	var state domain.RunState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, fmt.Errorf("unmarshal run state: %w", err)
	}
	return &state, nil
}
