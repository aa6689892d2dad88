package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/mmrzaf/tablefill/internal/infra/targets/sqlutil"
	"github.com/mmrzaf/tablefill/internal/schema"
)

type SQLiteTarget struct {
	path string
	db   *sql.DB
}

func NewSQLiteTarget(path string) *SQLiteTarget {
	return &SQLiteTarget{path: path}
}

func (t *SQLiteTarget) Connect(ctx context.Context) error {
	db, err := sql.Open("sqlite3", t.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return err
	}
	t.db = db
	return nil
}

func (t *SQLiteTarget) Close() error {
	if t.db != nil {
		return t.db.Close()
	}
	return nil
}

func (t *SQLiteTarget) Ping(ctx context.Context) error {
	if t.db == nil {
		return errNotConnected
	}
	return t.db.PingContext(ctx)
}

func (t *SQLiteTarget) ServerVersion(ctx context.Context) (string, error) {
	if t.db == nil {
		return "", errNotConnected
	}
	var v string
	err := t.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&v)
	return v, err
}

var autoincrementRe = regexp.MustCompile(`(?i)\bAUTOINCREMENT\b`)

// DescribeTable reads PRAGMA table_info plus the single-column unique
// indexes. INTEGER PRIMARY KEY columns alias the rowid and come back as
// identity.
func (t *SQLiteTarget) DescribeTable(ctx context.Context, table string) (*domain.TableSchema, error) {
	if t.db == nil {
		return nil, errNotConnected
	}
	_, name := sqlutil.SplitTable(table, "")

	var ddl sql.NullString
	err := t.db.QueryRowContext(ctx, `SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&ddl)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("table %s not found", name)
	}
	if err != nil {
		return nil, err
	}

	unique, err := t.uniqueColumns(ctx, name)
	if err != nil {
		return nil, err
	}

	rows, err := t.db.QueryContext(ctx, "PRAGMA table_info("+sqlutil.SQLite.QuoteIdent(name)+")")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []schema.CatalogColumn
	for rows.Next() {
		var (
			cid     int
			colName string
			colType string
			notNull int
			def     sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &def, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, schema.CatalogColumn{
			Name:       colName,
			DataType:   colType,
			Nullable:   notNull == 0,
			Default:    sqlutil.StringPtr(def),
			PrimaryKey: pk > 0,
			Unique:     unique[strings.ToLower(colName)],
			Ordinal:    cid + 1,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if ddl.Valid && autoincrementRe.MatchString(ddl.String) {
		for i := range cols {
			if cols[i].PrimaryKey {
				cols[i].Identity = true
			}
		}
	}

	out := schema.FromCatalog(name, cols, schema.ParseOptions{Dialect: domain.TargetKindSQLite})
	out.Source = "catalog:sqlite"
	return out, nil
}

// uniqueColumns lists columns covered by a single-column unique index.
func (t *SQLiteTarget) uniqueColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := t.db.QueryContext(ctx, "PRAGMA index_list("+sqlutil.SQLite.QuoteIdent(table)+")")
	if err != nil {
		return nil, err
	}
	var indexes []string
	for rows.Next() {
		var (
			seq     int
			name    string
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			rows.Close()
			return nil, err
		}
		// "pk" indexes are reported through table_info already.
		if unique == 1 && origin != "pk" {
			indexes = append(indexes, name)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]bool)
	for _, idx := range indexes {
		cols, err := t.indexColumns(ctx, idx)
		if err != nil {
			return nil, err
		}
		if len(cols) == 1 {
			out[strings.ToLower(cols[0])] = true
		}
	}
	return out, nil
}

func (t *SQLiteTarget) indexColumns(ctx context.Context, index string) ([]string, error) {
	rows, err := t.db.QueryContext(ctx, "PRAGMA index_info("+sqlutil.SQLite.QuoteIdent(index)+")")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			seqno int
			cid   int
			name  sql.NullString
		)
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		cols = append(cols, name.String)
	}
	return cols, rows.Err()
}

func (t *SQLiteTarget) TruncateTable(ctx context.Context, table string) error {
	if t.db == nil {
		return errNotConnected
	}
	_, name := sqlutil.SplitTable(table, "")
	_, err := t.db.ExecContext(ctx, "DELETE FROM "+sqlutil.SQLite.QuoteIdent(name))
	return err
}

// InsertBatch ignores any schema qualifier: a SQLite file has one namespace.
func (t *SQLiteTarget) InsertBatch(ctx context.Context, table string, columns []string, rows [][]interface{}) error {
	_, name := sqlutil.SplitTable(table, "")
	return sqlutil.InsertBatch(ctx, t.db, sqlutil.SQLite, name, columns, rows, convertValue)
}

func (t *SQLiteTarget) IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// convertValue stores times as text and booleans as 0/1, the forms SQLite's
// date functions and CHECK constraints expect.
func convertValue(v interface{}) interface{} {
	switch val := v.(type) {
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format("2006-01-02")
		}
		return val.Format("2006-01-02 15:04:05")
	case bool:
		if val {
			return 1
		}
		return 0
	case decimal.Decimal:
		return val.String()
	default:
		return v
	}
}

var errNotConnected = errors.New("sqlite target is not connected")
