package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/mmrzaf/tablefill/internal/infra/targets/sqlutil"
	"github.com/mmrzaf/tablefill/internal/schema"
)

type PostgresTarget struct {
	dsn    string
	schema string
	db     *sql.DB
}

func NewPostgresTarget(dsn, schema string) *PostgresTarget {
	if schema == "" {
		schema = "public"
	}
	return &PostgresTarget{
		dsn:    dsn,
		schema: schema,
	}
}

func (t *PostgresTarget) Connect(ctx context.Context) error {
	db, err := sql.Open("postgres", t.dsn)
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

func (t *PostgresTarget) Close() error {
	if t.db != nil {
		return t.db.Close()
	}
	return nil
}

func (t *PostgresTarget) Ping(ctx context.Context) error {
	if t.db == nil {
		return errNotConnected
	}
	return t.db.PingContext(ctx)
}

func (t *PostgresTarget) ServerVersion(ctx context.Context) (string, error) {
	if t.db == nil {
		return "", errNotConnected
	}
	var v string
	err := t.db.QueryRowContext(ctx, "SHOW server_version").Scan(&v)
	return v, err
}

const describeQuery = `
SELECT c.column_name,
       c.udt_name,
       c.character_maximum_length,
       c.numeric_precision,
       c.numeric_scale,
       c.is_nullable = 'YES',
       c.column_default,
       c.is_identity = 'YES' OR c.is_generated = 'ALWAYS',
       EXISTS (
         SELECT 1 FROM information_schema.table_constraints tc
         JOIN information_schema.key_column_usage k
           ON k.constraint_name = tc.constraint_name AND k.table_schema = tc.table_schema
         WHERE tc.constraint_type = 'PRIMARY KEY'
           AND tc.table_schema = c.table_schema AND tc.table_name = c.table_name
           AND k.column_name = c.column_name
       ),
       EXISTS (
         SELECT 1 FROM information_schema.table_constraints tc
         JOIN information_schema.key_column_usage k
           ON k.constraint_name = tc.constraint_name AND k.table_schema = tc.table_schema
         WHERE tc.constraint_type = 'UNIQUE'
           AND tc.table_schema = c.table_schema AND tc.table_name = c.table_name
           AND k.column_name = c.column_name
           AND (SELECT count(*) FROM information_schema.key_column_usage k2
                WHERE k2.constraint_name = tc.constraint_name AND k2.table_schema = tc.table_schema) = 1
       ),
       c.ordinal_position
FROM information_schema.columns c
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position`

// DescribeTable reads the column catalog of table. A name without a schema is
// looked up in the target's schema.
func (t *PostgresTarget) DescribeTable(ctx context.Context, table string) (*domain.TableSchema, error) {
	if t.db == nil {
		return nil, errNotConnected
	}
	schemaName, name := sqlutil.SplitTable(table, t.schema)

	rows, err := t.db.QueryContext(ctx, describeQuery, schemaName, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []schema.CatalogColumn
	for rows.Next() {
		var c schema.CatalogColumn
		var maxLen, prec, scale sql.NullInt64
		var def sql.NullString
		if err := rows.Scan(&c.Name, &c.DataType, &maxLen, &prec, &scale, &c.Nullable, &def,
			&c.Identity, &c.PrimaryKey, &c.Unique, &c.Ordinal); err != nil {
			return nil, err
		}
		c.CharMaxLength = sqlutil.Int64Ptr(maxLen)
		c.NumericPrecision = sqlutil.Int64Ptr(prec)
		c.NumericScale = sqlutil.Int64Ptr(scale)
		c.Default = sqlutil.StringPtr(def)
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s.%s not found", schemaName, name)
	}

	out := schema.FromCatalog(schemaName+"."+name, cols, schema.ParseOptions{Dialect: domain.TargetKindPostgres})
	out.Source = "catalog:postgres"
	return out, nil
}

func (t *PostgresTarget) TruncateTable(ctx context.Context, table string) error {
	if t.db == nil {
		return errNotConnected
	}
	_, err := t.db.ExecContext(ctx, "TRUNCATE TABLE "+sqlutil.Postgres.QuoteTable(t.qualify(table)))
	return err
}

func (t *PostgresTarget) InsertBatch(ctx context.Context, table string, columns []string, rows [][]interface{}) error {
	return sqlutil.InsertBatch(ctx, t.db, sqlutil.Postgres, t.qualify(table), columns, rows, nil)
}

// IsUniqueViolation matches SQLSTATE 23505.
func (t *PostgresTarget) IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func (t *PostgresTarget) qualify(table string) string {
	s, n := sqlutil.SplitTable(table, t.schema)
	return s + "." + n
}

var errNotConnected = errors.New("postgres target is not connected")
