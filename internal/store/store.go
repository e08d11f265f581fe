package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/herbert256/swarmgen/internal/config"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(cfg config.StoreConfig) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Enable WAL mode for concurrent read/write access and set a busy
	// timeout so writers retry instead of immediately returning SQLITE_BUSY.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("exec %s: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS agents (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			provider    TEXT NOT NULL,
			model       TEXT,
			endpoint_id TEXT,
			params_id   TEXT,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS swarms (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			agent_ids   TEXT NOT NULL,
			params_id   TEXT,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS reports (
			id           TEXT PRIMARY KEY,
			title        TEXT NOT NULL,
			prompt       TEXT NOT NULL,
			rapport_text TEXT,
			created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
			completed_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS report_agents (
			report_id         TEXT NOT NULL REFERENCES reports(id),
			agent_id          TEXT NOT NULL,
			agent_name        TEXT NOT NULL,
			provider          TEXT NOT NULL,
			model             TEXT NOT NULL,
			status            TEXT NOT NULL DEFAULT 'pending',
			response_body     TEXT,
			error_message     TEXT,
			http_status       INTEGER,
			response_headers  TEXT,
			input_tokens      INTEGER,
			output_tokens     INTEGER,
			total_tokens      INTEGER,
			api_cost          REAL,
			cost              REAL,
			citations         TEXT,
			search_results    TEXT,
			related_questions TEXT,
			duration_ms       INTEGER,
			updated_at        DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (report_id, agent_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_report_agents_status ON report_agents(report_id, status)`,
		`CREATE TABLE IF NOT EXISTS usage_stats (
			provider      TEXT NOT NULL,
			model         TEXT NOT NULL,
			input_tokens  INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			total_tokens  INTEGER NOT NULL DEFAULT 0,
			cost          REAL NOT NULL DEFAULT 0,
			invocations   INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (provider, model)
		)`,
		`CREATE TABLE IF NOT EXISTS secrets (
			name       TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			nonce      BLOB NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS scheduled_reports (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			schedule    TEXT NOT NULL,
			title       TEXT NOT NULL,
			prompt      TEXT NOT NULL,
			agent_ids   TEXT,
			swarm_ids   TEXT,
			model_specs TEXT,
			params_id   TEXT,
			status      TEXT DEFAULT 'active',
			next_run_at DATETIME,
			last_run_at DATETIME,
			last_status TEXT,
			last_error  TEXT,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scheduled_next_run ON scheduled_reports(status, next_run_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}

	return nil
}
