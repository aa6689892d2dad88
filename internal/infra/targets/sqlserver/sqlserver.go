package sqlserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/mmrzaf/tablefill/internal/infra/targets/sqlutil"
	"github.com/mmrzaf/tablefill/internal/schema"
)

// Error numbers for duplicate keys: 2627 is a PRIMARY KEY or UNIQUE
// constraint, 2601 a unique index.
const (
	errUniqueConstraint = 2627
	errUniqueIndex      = 2601
)

type SQLServerTarget struct {
	dsn    string
	schema string
	db     *sql.DB
}

func NewSQLServerTarget(dsn, schema string) *SQLServerTarget {
	if schema == "" {
		schema = "dbo"
	}
	return &SQLServerTarget{dsn: dsn, schema: schema}
}

func (t *SQLServerTarget) Connect(ctx context.Context) error {
	db, err := sql.Open("sqlserver", t.dsn)
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

func (t *SQLServerTarget) Close() error {
	if t.db != nil {
		return t.db.Close()
	}
	return nil
}

func (t *SQLServerTarget) Ping(ctx context.Context) error {
	if t.db == nil {
		return errNotConnected
	}
	return t.db.PingContext(ctx)
}

func (t *SQLServerTarget) ServerVersion(ctx context.Context) (string, error) {
	if t.db == nil {
		return "", errNotConnected
	}
	var v string
	err := t.db.QueryRowContext(ctx, "SELECT CAST(SERVERPROPERTY('ProductVersion') AS NVARCHAR(128))").Scan(&v)
	return v, err
}

const describeQuery = `
SELECT c.COLUMN_NAME,
       c.DATA_TYPE,
       c.CHARACTER_MAXIMUM_LENGTH,
       c.NUMERIC_PRECISION,
       c.NUMERIC_SCALE,
       CASE WHEN c.IS_NULLABLE = 'YES' THEN 1 ELSE 0 END,
       c.COLUMN_DEFAULT,
       CASE WHEN COLUMNPROPERTY(OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + '.' + QUOTENAME(c.TABLE_NAME)), c.COLUMN_NAME, 'IsIdentity') = 1
              OR COLUMNPROPERTY(OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + '.' + QUOTENAME(c.TABLE_NAME)), c.COLUMN_NAME, 'IsComputed') = 1
            THEN 1 ELSE 0 END,
       CASE WHEN EXISTS (
         SELECT 1 FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
         JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE k
           ON k.CONSTRAINT_NAME = tc.CONSTRAINT_NAME AND k.TABLE_SCHEMA = tc.TABLE_SCHEMA
         WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
           AND tc.TABLE_SCHEMA = c.TABLE_SCHEMA AND tc.TABLE_NAME = c.TABLE_NAME
           AND k.COLUMN_NAME = c.COLUMN_NAME) THEN 1 ELSE 0 END,
       CASE WHEN EXISTS (
         SELECT 1 FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
         JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE k
           ON k.CONSTRAINT_NAME = tc.CONSTRAINT_NAME AND k.TABLE_SCHEMA = tc.TABLE_SCHEMA
         WHERE tc.CONSTRAINT_TYPE = 'UNIQUE'
           AND tc.TABLE_SCHEMA = c.TABLE_SCHEMA AND tc.TABLE_NAME = c.TABLE_NAME
           AND k.COLUMN_NAME = c.COLUMN_NAME
           AND (SELECT COUNT(*) FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE k2
                WHERE k2.CONSTRAINT_NAME = tc.CONSTRAINT_NAME AND k2.TABLE_SCHEMA = tc.TABLE_SCHEMA) = 1) THEN 1 ELSE 0 END,
       c.ORDINAL_POSITION
FROM INFORMATION_SCHEMA.COLUMNS c
WHERE c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
ORDER BY c.ORDINAL_POSITION`

// DescribeTable reads INFORMATION_SCHEMA.COLUMNS. Identity and computed
// columns come from COLUMNPROPERTY; both are left to the server.
func (t *SQLServerTarget) DescribeTable(ctx context.Context, table string) (*domain.TableSchema, error) {
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

	out := schema.FromCatalog(schemaName+"."+name, cols, schema.ParseOptions{Dialect: domain.TargetKindSQLServer})
	out.Source = "catalog:sqlserver"
	return out, nil
}

// TruncateTable uses DELETE: TRUNCATE is refused on tables referenced by a
// foreign key.
func (t *SQLServerTarget) TruncateTable(ctx context.Context, table string) error {
	if t.db == nil {
		return errNotConnected
	}
	_, err := t.db.ExecContext(ctx, "DELETE FROM "+sqlutil.SQLServer.QuoteTable(t.qualify(table)))
	return err
}

func (t *SQLServerTarget) InsertBatch(ctx context.Context, table string, columns []string, rows [][]interface{}) error {
	return sqlutil.InsertBatch(ctx, t.db, sqlutil.SQLServer, t.qualify(table), columns, rows, convertValue)
}

func (t *SQLServerTarget) IsUniqueViolation(err error) bool {
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return isDuplicateNumber(msErr.Number)
	}
	var msErrPtr *mssql.Error
	if errors.As(err, &msErrPtr) {
		return isDuplicateNumber(msErrPtr.Number)
	}
	return false
}

func isDuplicateNumber(n int32) bool {
	return n == errUniqueConstraint || n == errUniqueIndex
}

func (t *SQLServerTarget) qualify(table string) string {
	s, n := sqlutil.SplitTable(table, t.schema)
	return s + "." + n
}

// convertValue sends booleans as 0/1 so they bind to BIT columns the same way
// in every compatibility level.
func convertValue(v interface{}) interface{} {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

var errNotConnected = errors.New("sqlserver target is not connected")
