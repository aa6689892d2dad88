package schemas

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/mmrzaf/tablefill/internal/schema"
)

const addressesDDL = `
CREATE TABLE [dbo].[Addresses] (
    [AddressID] INT IDENTITY(1,1) PRIMARY KEY,
    [PostalCode] NVARCHAR(4) NOT NULL,
    [CreatedAt] DATETIME2 NOT NULL DEFAULT GETDATE()
);
GO
`

const twoTablesDDL = `
CREATE TABLE customers (id INTEGER PRIMARY KEY, email VARCHAR(120) UNIQUE);
CREATE TABLE orders (id INTEGER PRIMARY KEY, total DECIMAL(10,2));
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestIsSchemaFile(t *testing.T) {
	assert.True(t, IsSchemaFile("create_table_addresses.sql"))
	assert.True(t, IsSchemaFile("CREATE_TABLE.SQL"))
	assert.True(t, IsSchemaFile("/tmp/x/orders_table.sql"))
	assert.False(t, IsSchemaFile("addresses.sql"))
	assert.False(t, IsSchemaFile("create_table_addresses.txt"))
}

func TestListDiscoversScripts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "create_table_addresses.sql", addressesDDL)
	writeFile(t, dir, "shop_table.sql", twoTablesDDL)
	writeFile(t, dir, "notes.sql", addressesDDL)
	writeFile(t, dir, "create_table_empty.sql", "SELECT 1;")

	repo := NewFileRepository(dir, nil)
	files, err := repo.List()
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, filepath.Join(dir, "create_table_addresses.sql"), files[0].Path)
	assert.Equal(t, []string{"dbo.Addresses"}, files[0].Tables)
	assert.Equal(t, []string{"customers", "orders"}, files[1].Tables)
}

func TestListMissingDir(t *testing.T) {
	repo := NewFileRepository(filepath.Join(t.TempDir(), "nope"), nil)
	files, err := repo.List()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestFindByBareName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "create_table_addresses.sql", addressesDDL)
	writeFile(t, dir, "shop_table.sql", twoTablesDDL)
	repo := NewFileRepository(dir, nil)

	tbl, err := repo.Find("addresses", schema.ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Addresses", tbl.Name)
	assert.Equal(t, filepath.Join(dir, "create_table_addresses.sql"), tbl.Source)

	col, ok := tbl.Find("AddressID")
	require.True(t, ok)
	assert.True(t, col.Identity)

	tbl, err = repo.Find("orders", schema.ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, "orders", tbl.Name)

	_, err = repo.Find("public.addresses", schema.ParseOptions{})
	assert.Error(t, err)
	_, err = repo.Find("suppliers", schema.ParseOptions{})
	assert.Error(t, err)
}

func TestLoadSelectsTable(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "anything.sql", twoTablesDDL)
	repo := NewFileRepository(t.TempDir(), nil)

	_, err := repo.Load(path, "", schema.ParseOptions{})
	assert.ErrorContains(t, err, "customers, orders")

	tbl, err := repo.Load(path, "CUSTOMERS", schema.ParseOptions{})
	require.NoError(t, err)
	email, ok := tbl.Find("email")
	require.True(t, ok)
	assert.True(t, email.IsKey())

	tbl, err = repo.Load(path, "customers", schema.ParseOptions{Dialect: domain.TargetKindSQLite})
	require.NoError(t, err)
	id, _ := tbl.Find("id")
	assert.True(t, id.Identity)

	_, err = repo.Load(filepath.Join(dir, "missing.sql"), "", schema.ParseOptions{})
	assert.Error(t, err)
}
