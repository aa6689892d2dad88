// Package sqlutil holds the pieces the database/sql targets share: identifier
// quoting, parameter-limited chunking and squirrel-built multi-row inserts.
package sqlutil

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Dialect describes how one datastore spells identifiers and placeholders and
// how many bound parameters a single statement may carry.
type Dialect struct {
	Name        string
	Placeholder sq.PlaceholderFormat
	// MaxParams bounds the bound parameters of one statement.
	MaxParams int
	// MaxRows bounds the rows of one VALUES list. Zero means no limit.
	MaxRows    int
	OpenQuote  string
	CloseQuote string
}

var (
	Postgres = Dialect{Name: "postgres", Placeholder: sq.Dollar, MaxParams: 65535, OpenQuote: `"`, CloseQuote: `"`}
	SQLite   = Dialect{Name: "sqlite", Placeholder: sq.Question, MaxParams: 999, OpenQuote: `"`, CloseQuote: `"`}
	MySQL    = Dialect{Name: "mysql", Placeholder: sq.Question, MaxParams: 65535, OpenQuote: "`", CloseQuote: "`"}
	// SQL Server caps a request at 2100 parameters and a VALUES list at 1000
	// rows. One parameter is kept spare for the driver.
	SQLServer = Dialect{Name: "sqlserver", Placeholder: sq.AtP, MaxParams: 2099, MaxRows: 1000, OpenQuote: "[", CloseQuote: "]"}
)

// QuoteIdent quotes a single identifier, doubling any embedded closing quote.
func (d Dialect) QuoteIdent(name string) string {
	name = strings.TrimSpace(name)
	return d.OpenQuote + strings.ReplaceAll(name, d.CloseQuote, d.CloseQuote+d.CloseQuote) + d.CloseQuote
}

// QuoteTable quotes each part of a possibly schema-qualified table name.
func (d Dialect) QuoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdent(p)
	}
	return strings.Join(parts, ".")
}

// QuoteColumns quotes every column of an insert column list.
func (d Dialect) QuoteColumns(columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = d.QuoteIdent(c)
	}
	return out
}

// RowsPerStatement is how many rows of width columns fit one statement.
func (d Dialect) RowsPerStatement(columns int) int {
	if columns <= 0 {
		return 1
	}
	n := d.MaxParams / columns
	if d.MaxRows > 0 && n > d.MaxRows {
		n = d.MaxRows
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Chunk splits rows into groups that respect the dialect's limits.
func (d Dialect) Chunk(columns int, rows [][]interface{}) [][][]interface{} {
	size := d.RowsPerStatement(columns)
	chunks := make([][][]interface{}, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[start:end])
	}
	return chunks
}

// InsertSQL builds one multi-row INSERT statement.
func (d Dialect) InsertSQL(table string, columns []string, rows [][]interface{}) (string, []interface{}, error) {
	if len(rows) == 0 {
		return "", nil, fmt.Errorf("no rows to insert")
	}
	b := sq.Insert(d.QuoteTable(table)).
		Columns(d.QuoteColumns(columns)...).
		PlaceholderFormat(d.Placeholder)
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, fmt.Errorf("row %d has %d values for %d columns", i, len(row), len(columns))
		}
		b = b.Values(row...)
	}
	return b.ToSql()
}

// ValueConverter adapts a synthesized value to what a driver accepts.
type ValueConverter func(v interface{}) interface{}

// InsertBatch writes rows inside one transaction, split into as many
// statements as the dialect's limits require. Either every row lands or none.
func InsertBatch(ctx context.Context, db *sql.DB, d Dialect, table string, columns []string, rows [][]interface{}, convert ValueConverter) error {
	if len(rows) == 0 {
		return nil
	}
	if db == nil {
		return fmt.Errorf("%s target is not connected", d.Name)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, chunk := range d.Chunk(len(columns), rows) {
		if convert != nil {
			chunk = convertRows(chunk, convert)
		}
		query, args, err := d.InsertSQL(table, columns, chunk)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func convertRows(rows [][]interface{}, convert ValueConverter) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		conv := make([]interface{}, len(row))
		for j, v := range row {
			conv[j] = convert(v)
		}
		out[i] = conv
	}
	return out
}

// Int64Ptr and StringPtr turn nullable catalog columns into the pointer form
// schema.CatalogColumn expects.
func Int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func StringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// SplitTable splits "schema.table" using fallback when no schema is given.
func SplitTable(name, fallback string) (string, string) {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[:idx], name[idx+1:]
	}
	return fallback, name
}
