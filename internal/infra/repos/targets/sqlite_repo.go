package targets

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmrzaf/tablefill/internal/domain"
)

// SQLiteRepository keeps saved targets and their check history in the runs
// database. The tables are created by runs.SQLiteRepository.Init.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectTargets = `
	SELECT id, name, kind, dsn, database, schema, options_json
	FROM targets`

func (r *SQLiteRepository) List() ([]*domain.TargetConfig, error) {
	rows, err := r.db.Query(selectTargets + ` ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.TargetConfig, 0)
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Get matches the id exactly or the name case-insensitively.
func (r *SQLiteRepository) Get(id string) (*domain.TargetConfig, error) {
	t, err := scanTarget(r.db.QueryRow(selectTargets+` WHERE id = ? OR lower(name) = lower(?)`, id, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("target not found: %s", id)
	}
	return t, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTarget(s rowScanner) (*domain.TargetConfig, error) {
	var t domain.TargetConfig
	var database sql.NullString
	var schema sql.NullString
	var opt sql.NullString
	if err := s.Scan(&t.ID, &t.Name, &t.Kind, &t.DSN, &database, &schema, &opt); err != nil {
		return nil, err
	}
	t.Database = database.String
	t.Schema = schema.String
	if opt.Valid && opt.String != "" {
		if err := json.Unmarshal([]byte(opt.String), &t.Options); err != nil {
			return nil, fmt.Errorf("target %s: corrupt options: %w", t.ID, err)
		}
	}
	return &t, nil
}

func (r *SQLiteRepository) Create(t *domain.TargetConfig) error {
	if t == nil {
		return errors.New("nil target")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	opt, err := encodeOptions(t.Options)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	_, err = r.db.Exec(`
		INSERT INTO targets (id, name, kind, dsn, database, schema, options_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, strings.ToLower(t.Kind), t.DSN, nullIfEmpty(t.Database), nullIfEmpty(t.Schema), nullIfEmpty(opt), now, now)
	return err
}

func (r *SQLiteRepository) Update(t *domain.TargetConfig) error {
	if t == nil {
		return errors.New("nil target")
	}
	if t.ID == "" {
		return errors.New("missing target id")
	}
	opt, err := encodeOptions(t.Options)
	if err != nil {
		return err
	}

	res, err := r.db.Exec(`
		UPDATE targets
		SET name = ?, kind = ?, dsn = ?, database = ?, schema = ?, options_json = ?, updated_at = ?
		WHERE id = ?`,
		t.Name, strings.ToLower(t.Kind), t.DSN, nullIfEmpty(t.Database), nullIfEmpty(t.Schema), nullIfEmpty(opt), time.Now().UTC(), t.ID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *SQLiteRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM targets WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	_, err = r.db.Exec(`DELETE FROM target_checks WHERE target_id = ?`, id)
	return err
}

func (r *SQLiteRepository) RecordCheck(c *domain.TargetCheck) error {
	if c == nil {
		return errors.New("nil check")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	_, err := r.db.Exec(`
		INSERT INTO target_checks (id, target_id, checked_at, ok, latency_ms, server_version, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TargetID, c.CheckedAt.UTC(), boolToInt(c.OK), c.LatencyMS, nullIfEmpty(c.ServerVer), nullIfEmpty(c.Error))
	return err
}

// ListChecks returns the newest checks of a target first.
func (r *SQLiteRepository) ListChecks(targetID string, limit int) ([]*domain.TargetCheck, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`
		SELECT id, target_id, checked_at, ok, latency_ms, server_version, error
		FROM target_checks
		WHERE target_id = ?
		ORDER BY checked_at DESC
		LIMIT ?`, targetID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.TargetCheck, 0)
	for rows.Next() {
		var c domain.TargetCheck
		var okInt int
		var server sql.NullString
		var errStr sql.NullString
		if err := rows.Scan(&c.ID, &c.TargetID, &c.CheckedAt, &okInt, &c.LatencyMS, &server, &errStr); err != nil {
			return nil, err
		}
		c.OK = okInt == 1
		c.ServerVer = server.String
		c.Error = errStr.String
		out = append(out, &c)
	}
	return out, rows.Err()
}

func encodeOptions(opts map[string]string) (string, error) {
	if len(opts) == 0 {
		return "", nil
	}
	b, err := json.Marshal(opts)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
