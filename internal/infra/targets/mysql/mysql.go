package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/mmrzaf/tablefill/internal/infra/targets/sqlutil"
	"github.com/mmrzaf/tablefill/internal/schema"
)

const errDupEntry = 1062

type MySQLTarget struct {
	dsn      string
	database string
	db       *sql.DB
}

// NewMySQLTarget opens dsn, a go-sql-driver DSN. database overrides the DSN's
// default database for catalog lookups of unqualified tables.
func NewMySQLTarget(dsn, database string) *MySQLTarget {
	return &MySQLTarget{dsn: dsn, database: database}
}

func (t *MySQLTarget) Connect(ctx context.Context) error {
	cfg, err := mysql.ParseDSN(t.dsn)
	if err != nil {
		return fmt.Errorf("invalid mysql dsn: %w", err)
	}
	if t.database != "" {
		cfg.DBName = t.database
	} else {
		t.database = cfg.DBName
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return err
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return err
	}
	t.db = db
	return nil
}

func (t *MySQLTarget) Close() error {
	if t.db != nil {
		return t.db.Close()
	}
	return nil
}

func (t *MySQLTarget) Ping(ctx context.Context) error {
	if t.db == nil {
		return errNotConnected
	}
	return t.db.PingContext(ctx)
}

func (t *MySQLTarget) ServerVersion(ctx context.Context) (string, error) {
	if t.db == nil {
		return "", errNotConnected
	}
	var v string
	err := t.db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&v)
	return v, err
}

const describeQuery = `
SELECT c.COLUMN_NAME,
       c.COLUMN_TYPE,
       c.IS_NULLABLE = 'YES',
       c.COLUMN_DEFAULT,
       c.EXTRA,
       c.COLUMN_KEY,
       c.ORDINAL_POSITION
FROM information_schema.COLUMNS c
WHERE c.TABLE_SCHEMA = ? AND c.TABLE_NAME = ?
ORDER BY c.ORDINAL_POSITION`

// DescribeTable reads information_schema.COLUMNS. COLUMN_TYPE carries the
// length, precision and UNSIGNED flag in one string.
func (t *MySQLTarget) DescribeTable(ctx context.Context, table string) (*domain.TableSchema, error) {
	if t.db == nil {
		return nil, errNotConnected
	}
	database, name := sqlutil.SplitTable(table, t.database)

	rows, err := t.db.QueryContext(ctx, describeQuery, database, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []schema.CatalogColumn
	for rows.Next() {
		var c schema.CatalogColumn
		var def sql.NullString
		var extra, key string
		if err := rows.Scan(&c.Name, &c.DataType, &c.Nullable, &def, &extra, &key, &c.Ordinal); err != nil {
			return nil, err
		}
		c.Default = sqlutil.StringPtr(def)
		extra = strings.ToLower(extra)
		c.Identity = strings.Contains(extra, "auto_increment")
		// Generated columns and ON UPDATE timestamps are filled by the server.
		if strings.Contains(extra, "generated") && c.Default == nil {
			expr := "generated"
			c.Default = &expr
		}
		c.PrimaryKey = key == "PRI"
		// UNI marks single-column unique indexes only.
		c.Unique = key == "UNI"
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s.%s not found", database, name)
	}

	out := schema.FromCatalog(database+"."+name, cols, schema.ParseOptions{Dialect: domain.TargetKindMySQL})
	out.Source = "catalog:mysql"
	return out, nil
}

func (t *MySQLTarget) TruncateTable(ctx context.Context, table string) error {
	if t.db == nil {
		return errNotConnected
	}
	_, err := t.db.ExecContext(ctx, "TRUNCATE TABLE "+sqlutil.MySQL.QuoteTable(t.qualify(table)))
	return err
}

func (t *MySQLTarget) InsertBatch(ctx context.Context, table string, columns []string, rows [][]interface{}) error {
	return sqlutil.InsertBatch(ctx, t.db, sqlutil.MySQL, t.qualify(table), columns, rows, convertValue)
}

func (t *MySQLTarget) IsUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == errDupEntry
	}
	return false
}

func (t *MySQLTarget) qualify(table string) string {
	database, name := sqlutil.SplitTable(table, t.database)
	if database == "" {
		return name
	}
	return database + "." + name
}

// convertValue drops the zone from times: DATETIME columns store wall clock
// values and the driver would otherwise send them in UTC.
func convertValue(v interface{}) interface{} {
	if ts, ok := v.(time.Time); ok {
		return ts.Format("2006-01-02 15:04:05")
	}
	return v
}

var errNotConnected = errors.New("mysql target is not connected")
