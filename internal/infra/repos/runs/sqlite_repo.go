package runs

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mmrzaf/tablefill/internal/domain"
)

// SQLiteRepository is the local history database. Besides runs it owns the
// saved target profiles and their check history, which share the same file.
type SQLiteRepository struct {
	dbPath string
	db     *sql.DB
}

func NewSQLiteRepository(dbPath string) *SQLiteRepository {
	return &SQLiteRepository{dbPath: dbPath}
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		table_name TEXT NOT NULL,
		schema_source TEXT NOT NULL,
		schema_hash TEXT NOT NULL,
		config_hash TEXT NOT NULL DEFAULT '',
		target_id TEXT NOT NULL,
		target_name TEXT NOT NULL,
		target_kind TEXT NOT NULL,
		seed INTEGER NOT NULL,
		locale TEXT NOT NULL,
		rows_requested INTEGER NOT NULL,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		stats TEXT,
		error TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs (started_at)`,
	`CREATE TABLE IF NOT EXISTS targets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		dsn TEXT NOT NULL,
		database TEXT,
		schema TEXT,
		options_json TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS target_checks (
		id TEXT PRIMARY KEY,
		target_id TEXT NOT NULL,
		checked_at TIMESTAMP NOT NULL,
		ok INTEGER NOT NULL,
		latency_ms INTEGER NOT NULL,
		server_version TEXT,
		error TEXT
	)`,
}

// Init opens the database file, creating its directory, and applies the
// schema.
func (r *SQLiteRepository) Init() error {
	if dir := filepath.Dir(r.dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create runs db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", r.dbPath)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			db.Close()
			return fmt.Errorf("failed to migrate runs db: %w", err)
		}
	}
	r.db = db
	return nil
}

// DB exposes the handle so the target store can share the file.
func (r *SQLiteRepository) DB() *sql.DB {
	return r.db
}

func (r *SQLiteRepository) Create(run *domain.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	query := `
		INSERT INTO runs (
			id, table_name, schema_source, schema_hash, config_hash,
			target_id, target_name, target_kind,
			seed, locale, rows_requested, status, started_at, completed_at, stats, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		run.ID, run.Table, run.SchemaSource, run.SchemaHash, run.ConfigHash,
		run.TargetID, run.TargetName, run.TargetKind,
		run.Seed, run.Locale, run.RowsRequested, run.Status,
		run.StartedAt.UTC().Format(time.RFC3339), formatTime(run.CompletedAt),
		nullIfEmpty(string(run.Stats)), nullIfEmpty(run.Error),
	)
	return err
}

func (r *SQLiteRepository) Update(run *domain.Run) error {
	query := `
		UPDATE runs SET
			status = ?, completed_at = ?, stats = ?, error = ?
		WHERE id = ?
	`

	res, err := r.db.Exec(query, run.Status, formatTime(run.CompletedAt),
		nullIfEmpty(string(run.Stats)), nullIfEmpty(run.Error), run.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const selectRuns = `
	SELECT id, table_name, schema_source, schema_hash, config_hash,
	       target_id, target_name, target_kind,
	       seed, locale, rows_requested, status, started_at, completed_at, stats, error
	FROM runs`

func (r *SQLiteRepository) Get(id string) (*domain.Run, error) {
	row := r.db.QueryRow(selectRuns+` WHERE id = ?`, id)
	return scanRun(row)
}

// List returns the newest runs first. A zero limit means no limit; an empty
// status matches every run.
func (r *SQLiteRepository) List(limit int, status string) ([]*domain.Run, error) {
	query := selectRuns
	args := make([]interface{}, 0)
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY started_at DESC, id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*domain.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*domain.Run, error) {
	var run domain.Run
	var startedAtStr string
	var completedAtStr sql.NullString
	var statsStr sql.NullString
	var errorStr sql.NullString

	err := s.Scan(
		&run.ID, &run.Table, &run.SchemaSource, &run.SchemaHash, &run.ConfigHash,
		&run.TargetID, &run.TargetName, &run.TargetKind,
		&run.Seed, &run.Locale, &run.RowsRequested, &run.Status,
		&startedAtStr, &completedAtStr, &statsStr, &errorStr,
	)
	if err != nil {
		return nil, err
	}

	run.StartedAt, _ = time.Parse(time.RFC3339, startedAtStr)
	if completedAtStr.Valid {
		t, _ := time.Parse(time.RFC3339, completedAtStr.String)
		run.CompletedAt = &t
	}
	if statsStr.Valid {
		run.Stats = json.RawMessage(statsStr.String)
	}
	if errorStr.Valid {
		run.Error = errorStr.String
	}
	return &run, nil
}

func formatTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
