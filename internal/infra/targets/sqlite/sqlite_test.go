package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/mmrzaf/tablefill/internal/exec"
	"github.com/mmrzaf/tablefill/internal/synth"
)

const addressesDDL = `
CREATE TABLE Addresses (
    AddressID INTEGER PRIMARY KEY AUTOINCREMENT,
    Email VARCHAR(120) NOT NULL UNIQUE,
    Street NVARCHAR(100) NOT NULL,
    PostalCode VARCHAR(4) NOT NULL,
    Price DECIMAL(10,2),
    Active BIT NOT NULL,
    CreatedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

func setupTarget(t *testing.T) (*SQLiteTarget, *sql.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "target.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(addressesDDL)
	require.NoError(t, err)

	target := NewSQLiteTarget(path)
	require.NoError(t, target.Connect(context.Background()))
	t.Cleanup(func() { target.Close() })
	return target, db
}

func TestDescribeTable(t *testing.T) {
	target, _ := setupTarget(t)

	table, err := target.DescribeTable(context.Background(), "Addresses")
	require.NoError(t, err)
	assert.Equal(t, "Addresses", table.Name)
	require.Len(t, table.Columns, 7)

	id, _ := table.Find("AddressID")
	assert.True(t, id.Identity)
	assert.True(t, id.PrimaryKey)

	email, _ := table.Find("Email")
	assert.True(t, email.Unique)
	assert.False(t, email.Nullable)
	require.NotNil(t, email.MaxLength)
	assert.Equal(t, 120, *email.MaxLength)

	pc, _ := table.Find("PostalCode")
	assert.Equal(t, domain.SQLTypeVarchar, pc.Type)
	require.NotNil(t, pc.MaxLength)
	assert.Equal(t, 4, *pc.MaxLength)

	price, _ := table.Find("Price")
	assert.Equal(t, domain.SQLTypeDecimal, price.Type)
	assert.True(t, price.Nullable)

	created, _ := table.Find("CreatedAt")
	assert.True(t, created.HasDefault)

	_, err = target.DescribeTable(context.Background(), "Missing")
	assert.Error(t, err)
}

func TestPopulateIntoSQLite(t *testing.T) {
	target, db := setupTarget(t)
	ctx := context.Background()

	table, err := target.DescribeTable(ctx, "Addresses")
	require.NoError(t, err)

	ex := exec.NewExecutor(synth.New(synth.WithSeed(11)), nil)
	stats, err := ex.Populate(ctx, table, target, exec.PopulateOptions{Rows: 120, BatchSize: 50})
	require.NoError(t, err)
	assert.EqualValues(t, 120, stats.RowsInserted)
	assert.Equal(t, []string{"AddressID", "CreatedAt"}, stats.SkippedColumns)

	var count, distinctEmails int
	require.NoError(t, db.QueryRow(`SELECT count(*), count(DISTINCT lower(Email)) FROM Addresses`).Scan(&count, &distinctEmails))
	assert.Equal(t, 120, count)
	assert.Equal(t, 120, distinctEmails)

	var badPostcodes, badPrices, missingCreated int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM Addresses WHERE length(PostalCode) <> 4`).Scan(&badPostcodes))
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM Addresses WHERE Price < 10 OR Price > 1000`).Scan(&badPrices))
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM Addresses WHERE CreatedAt IS NULL`).Scan(&missingCreated))
	assert.Zero(t, badPostcodes)
	assert.Zero(t, badPrices)
	assert.Zero(t, missingCreated)

	require.NoError(t, target.TruncateTable(ctx, "Addresses"))
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM Addresses`).Scan(&count))
	assert.Zero(t, count)
}

func TestInsertBatchIsAtomicAndReportsUniqueViolation(t *testing.T) {
	target, db := setupTarget(t)
	ctx := context.Background()
	columns := []string{"Email", "Street", "PostalCode", "Price", "Active"}

	err := target.InsertBatch(ctx, "main.Addresses", columns, [][]interface{}{
		{"a@ex.au", "1 King St", "3000", decimal.RequireFromString("12.50"), true},
		{"A@ex.au", "2 King St", "3000", nil, false},
	})
	// Email has no NOCASE collation, so this pair is distinct to SQLite.
	require.NoError(t, err)

	err = target.InsertBatch(ctx, "Addresses", columns, [][]interface{}{
		{"b@ex.au", "3 King St", "2000", nil, true},
		{"a@ex.au", "4 King St", "2000", nil, true},
	})
	require.Error(t, err)
	assert.True(t, target.IsUniqueViolation(err))
	assert.False(t, target.IsUniqueViolation(assert.AnError))

	var count int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM Addresses`).Scan(&count))
	assert.Equal(t, 2, count)

	var active int
	var price string
	require.NoError(t, db.QueryRow(`SELECT Active, Price FROM Addresses WHERE Email = 'a@ex.au'`).Scan(&active, &price))
	assert.Equal(t, 1, active)
	assert.Equal(t, "12.5", price)
}

func TestServerVersionAndPing(t *testing.T) {
	target, _ := setupTarget(t)
	ctx := context.Background()

	require.NoError(t, target.Ping(ctx))
	v, err := target.ServerVersion(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, v)

	disconnected := NewSQLiteTarget(filepath.Join(t.TempDir(), "x.db"))
	assert.Error(t, disconnected.Ping(ctx))
	assert.Error(t, disconnected.InsertBatch(ctx, "Addresses", []string{"Email"}, [][]interface{}{{"x"}}))
}

func TestConvertValue(t *testing.T) {
	assert.Equal(t, "2024-06-15", convertValue(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-06-15 10:30:05", convertValue(time.Date(2024, 6, 15, 10, 30, 5, 0, time.UTC)))
	assert.Equal(t, 1, convertValue(true))
	assert.Equal(t, "19.99", convertValue(decimal.RequireFromString("19.99")))
	assert.Equal(t, int64(4), convertValue(int64(4)))
}
