package sqlserver

import (
	"context"
	"fmt"
	"testing"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	target := NewSQLServerTarget("sqlserver://sa:pw@localhost:1433?database=Shop", "")

	assert.True(t, target.IsUniqueViolation(mssql.Error{Number: 2627, Message: "Violation of UNIQUE KEY constraint"}))
	assert.True(t, target.IsUniqueViolation(fmt.Errorf("batch: %w", mssql.Error{Number: 2601})))
	assert.True(t, target.IsUniqueViolation(&mssql.Error{Number: 2627}))
	assert.False(t, target.IsUniqueViolation(mssql.Error{Number: 547}))
	assert.False(t, target.IsUniqueViolation(assert.AnError))
}

func TestQualifyDefaultsToDbo(t *testing.T) {
	target := NewSQLServerTarget("", "")
	assert.Equal(t, "dbo.Addresses", target.qualify("Addresses"))
	assert.Equal(t, "sales.Orders", target.qualify("sales.Orders"))

	custom := NewSQLServerTarget("", "crm")
	assert.Equal(t, "crm.Addresses", custom.qualify("Addresses"))
}

func TestDisconnectedTarget(t *testing.T) {
	target := NewSQLServerTarget("", "")
	ctx := context.Background()
	assert.ErrorContains(t, target.Ping(ctx), "not connected")
	_, err := target.DescribeTable(ctx, "Addresses")
	assert.Error(t, err)
	assert.NoError(t, target.Close())
}

func TestConvertValue(t *testing.T) {
	assert.Equal(t, 1, convertValue(true))
	assert.Equal(t, 0, convertValue(false))
	assert.Equal(t, "x", convertValue("x"))
}
