package synth

import (
	"errors"
	"strconv"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/mmrzaf/tablefill/internal/locale"
	"github.com/mmrzaf/tablefill/internal/schema"
)

var fixedNow = time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

func newTestSynth(opts ...Option) *Synthesizer {
	base := []Option{WithSeed(42), WithClock(func() time.Time { return fixedNow })}
	return New(append(base, opts...)...)
}

func intPtr(v int) *int { return &v }

func TestPostalCodeScenario(t *testing.T) {
	s := newTestSynth()
	col := domain.ColumnDescriptor{Name: "PostalCode", Type: domain.SQLTypeVarchar, MaxLength: intPtr(4)}

	assert.Equal(t, Decision{Tier: TierPattern, Rule: "postcode"}, s.Decide(col))

	vals, err := s.GenerateColumn(col, 3)
	require.NoError(t, err)
	require.Len(t, vals, 3)
	for _, v := range vals {
		assert.False(t, v.Skipped())
		pc, ok := v.Data.(string)
		require.True(t, ok)
		assert.Len(t, pc, 4)
		assert.Regexp(t, s.Locale().PostcodePattern(), pc)
	}
}

func TestIdentityScenario(t *testing.T) {
	s := newTestSynth()
	col := domain.ColumnDescriptor{Name: "AddressID", Type: domain.SQLTypeInt, Identity: true, PrimaryKey: true}

	vals, err := s.GenerateColumn(col, 25)
	require.NoError(t, err)
	require.Len(t, vals, 25)
	for _, v := range vals {
		assert.Equal(t, domain.SkipIdentity, v.Skip)
		assert.Nil(t, v.Data)
	}
}

func TestDefaultScenario(t *testing.T) {
	s := newTestSynth()
	col := domain.ColumnDescriptor{Name: "CreatedAt", Type: domain.SQLTypeDateTime, HasDefault: true, Default: "SYSDATETIME()"}

	for _, n := range []int{1, 10, 1000} {
		vals, err := s.GenerateColumn(col, n)
		require.NoError(t, err)
		require.Len(t, vals, n)
		for _, v := range vals {
			assert.Equal(t, domain.SkipDefault, v.Skip)
		}
	}
}

func TestPriceScenario(t *testing.T) {
	s := newTestSynth()
	col := domain.ColumnDescriptor{Name: "Price", Type: domain.SQLTypeDecimal, Precision: intPtr(10), Scale: intPtr(2)}

	for i := 0; i < 200; i++ {
		v, err := s.Value(col)
		require.NoError(t, err)
		d, ok := v.Data.(decimal.Decimal)
		require.True(t, ok)
		assert.Equal(t, int32(-2), d.Exponent())
		assert.True(t, d.GreaterThanOrEqual(decimal.RequireFromString("10.00")), d.String())
		assert.True(t, d.LessThanOrEqual(decimal.RequireFromString("1000.00")), d.String())
	}
}

func TestSkipNeverEmitsValue(t *testing.T) {
	s := newTestSynth(WithNullRate(0.5))
	table := &domain.TableSchema{Name: "t", Columns: []domain.ColumnDescriptor{
		{Name: "ID", Type: domain.SQLTypeInt, Identity: true},
		{Name: "Email", Type: domain.SQLTypeVarchar, MaxLength: intPtr(100), HasDefault: true},
		{Name: "Notes", Type: domain.SQLTypeVarchar, Nullable: true},
	}}

	rows, err := s.GenerateRows(table, 50)
	require.NoError(t, err)
	for _, r := range rows {
		assert.Equal(t, []string{"Notes"}, r.Columns)
		assert.NotContains(t, r.Columns, "ID")
		assert.NotContains(t, r.Columns, "Email")
	}
}

func TestMaxLengthBound(t *testing.T) {
	s := newTestSynth()
	names := []string{"Email", "Phone", "CompanyName", "StreetAddress", "City", "State", "PostalCode",
		"Country", "FirstName", "LastName", "FullName", "Description", "Code"}
	for _, name := range names {
		for _, max := range []int{1, 3, 5, 12, 40} {
			col := domain.ColumnDescriptor{Name: name, Type: domain.SQLTypeVarchar, MaxLength: intPtr(max)}
			vals, err := s.GenerateColumn(col, 20)
			require.NoError(t, err, "%s(%d)", name, max)
			for _, v := range vals {
				str, ok := v.Data.(string)
				require.True(t, ok)
				assert.LessOrEqual(t, utf8.RuneCountInString(str), max, "%s(%d): %q", name, max, str)
			}
		}
	}
}

func TestRuleFormatContracts(t *testing.T) {
	s := newTestSynth()
	au := s.Locale()
	states := map[string]bool{}
	for _, st := range au.States() {
		states[st] = true
	}

	gen := func(col domain.ColumnDescriptor) []domain.Value {
		vals, err := s.GenerateColumn(col, 100)
		require.NoError(t, err, col.Name)
		return vals
	}

	for _, v := range gen(domain.ColumnDescriptor{Name: "ContactEmail", Type: domain.SQLTypeVarchar, MaxLength: intPtr(255)}) {
		assert.Regexp(t, `^[^@\s]+@[^@\s]+\.[A-Za-z]{2,}$`, v.Data)
	}
	for _, v := range gen(domain.ColumnDescriptor{Name: "MobilePhone", Type: domain.SQLTypeVarchar, MaxLength: intPtr(30)}) {
		assert.Regexp(t, au.PhonePattern(), v.Data)
	}
	for _, v := range gen(domain.ColumnDescriptor{Name: "State", Type: domain.SQLTypeVarchar, MaxLength: intPtr(3)}) {
		assert.True(t, states[v.Data.(string)], v.Data)
	}
	for _, v := range gen(domain.ColumnDescriptor{Name: "Country", Type: domain.SQLTypeVarchar, MaxLength: intPtr(50)}) {
		assert.Equal(t, "Australia", v.Data)
	}
	for _, v := range gen(domain.ColumnDescriptor{Name: "Age", Type: domain.SQLTypeInt}) {
		n := v.Data.(int64)
		assert.True(t, n >= 18 && n <= 80, n)
	}
	for _, v := range gen(domain.ColumnDescriptor{Name: "BuildYear", Type: domain.SQLTypeInt}) {
		n := v.Data.(int64)
		assert.True(t, n >= 1950 && n <= 2024, n)
	}
	for _, v := range gen(domain.ColumnDescriptor{Name: "ZipCode", Type: domain.SQLTypeInt}) {
		n := v.Data.(int64)
		assert.True(t, (n >= 800 && n <= 899) || (n >= 2000 && n <= 7799), n)
	}
	for _, v := range gen(domain.ColumnDescriptor{Name: "DateOfBirth", Type: domain.SQLTypeDate}) {
		d := v.Data.(time.Time)
		assert.True(t, !d.Before(fixedNow.AddDate(-81, 0, 0)) && !d.After(fixedNow.AddDate(-18, 0, 0)), d)
		assert.Equal(t, 0, d.Hour())
	}
	for _, v := range gen(domain.ColumnDescriptor{Name: "UpdatedAt", Type: domain.SQLTypeDateTime}) {
		d := v.Data.(time.Time)
		assert.True(t, !d.Before(fixedNow.AddDate(0, 0, -90)) && !d.After(fixedNow), d)
	}
	for _, v := range gen(domain.ColumnDescriptor{Name: "IsActive", Type: domain.SQLTypeBit}) {
		_, ok := v.Data.(bool)
		assert.True(t, ok)
	}
}

func TestRulePrecedence(t *testing.T) {
	s := newTestSynth()
	cases := map[string]struct {
		col  domain.ColumnDescriptor
		rule string
	}{
		"email beats address": {domain.ColumnDescriptor{Name: "EmailAddress", Type: domain.SQLTypeVarchar}, "email"},
		"company name":        {domain.ColumnDescriptor{Name: "CompanyName", Type: domain.SQLTypeVarchar}, "company"},
		"company address":     {domain.ColumnDescriptor{Name: "CompanyAddress", Type: domain.SQLTypeVarchar}, "address"},
		"employer address":    {domain.ColumnDescriptor{Name: "EmployerAddress", Type: domain.SQLTypeVarchar}, "address"},
		"contact name":        {domain.ColumnDescriptor{Name: "ContactName", Type: domain.SQLTypeVarchar}, "name"},
		"street before city":  {domain.ColumnDescriptor{Name: "CityStreet", Type: domain.SQLTypeVarchar}, "address"},
		"agent is not age":    {domain.ColumnDescriptor{Name: "AgentID", Type: domain.SQLTypeInt}, string(domain.SQLTypeInt)},
		"manager is not age":  {domain.ColumnDescriptor{Name: "ManagerID", Type: domain.SQLTypeInt}, string(domain.SQLTypeInt)},
		"agency is not age":   {domain.ColumnDescriptor{Name: "AgencyID", Type: domain.SQLTypeInt}, string(domain.SQLTypeInt)},
		"language is not age": {domain.ColumnDescriptor{Name: "LanguageID", Type: domain.SQLTypeInt}, string(domain.SQLTypeInt)},
		"customer age":        {domain.ColumnDescriptor{Name: "CustomerAge", Type: domain.SQLTypeInt}, "age"},
		"snake case age":      {domain.ColumnDescriptor{Name: "customer_age", Type: domain.SQLTypeInt}, "age"},
		"age prefix":          {domain.ColumnDescriptor{Name: "age_years", Type: domain.SQLTypeInt}, "age"},
		"upper case age":      {domain.ColumnDescriptor{Name: "AGE", Type: domain.SQLTypeInt}, "age"},
		"first name":          {domain.ColumnDescriptor{Name: "first_name", Type: domain.SQLTypeVarchar}, "first_name"},
		"surname":             {domain.ColumnDescriptor{Name: "Surname", Type: domain.SQLTypeVarchar}, "last_name"},
		"postal address":      {domain.ColumnDescriptor{Name: "PostalAddress", Type: domain.SQLTypeVarchar}, "address"},
		"status is not state": {domain.ColumnDescriptor{Name: "Status", Type: domain.SQLTypeVarchar}, string(domain.SQLTypeVarchar)},
		"page is not age":     {domain.ColumnDescriptor{Name: "PageCount", Type: domain.SQLTypeInt}, string(domain.SQLTypeInt)},
		"age needs int":       {domain.ColumnDescriptor{Name: "Age", Type: domain.SQLTypeVarchar}, string(domain.SQLTypeVarchar)},
		"price needs decimal": {domain.ColumnDescriptor{Name: "Price", Type: domain.SQLTypeInt}, string(domain.SQLTypeInt)},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.rule, s.Decide(tc.col).Rule)
		})
	}
}

func TestNameTokens(t *testing.T) {
	cases := map[string][]string{
		"CustomerAge":   {"customer", "age"},
		"customer_age":  {"customer", "age"},
		"AgentID":       {"agent", "id"},
		"HTMLAge":       {"html", "age"},
		"Address2Line":  {"address", "2", "line"},
		"ship to state": {"ship", "to", "state"},
		"AGE":           {"age"},
	}
	for name, want := range cases {
		assert.Equal(t, want, nameTokens(name), name)
	}
}

func TestFallbackDecimalPrecisionEdges(t *testing.T) {
	s := newTestSynth()
	shapes := []struct{ p, s int }{
		{10, 0}, {38, 0}, {12, 2}, {38, 2}, {20, 10}, {38, 10},
		{20, 17}, {38, 17}, {19, 18}, {38, 18}, {3, 2}, {5, 5},
	}
	for _, sh := range shapes {
		col := domain.ColumnDescriptor{Name: "Rate", Type: domain.SQLTypeDecimal, Precision: intPtr(sh.p), Scale: intPtr(sh.s)}
		require.Equal(t, TierFallback, s.Decide(col).Tier)
		limit := decimalMax(sh.p, int32(sh.s))
		vals, err := s.GenerateColumn(col, 200)
		require.NoError(t, err, "DECIMAL(%d,%d)", sh.p, sh.s)
		for _, v := range vals {
			d, ok := v.Data.(decimal.Decimal)
			require.True(t, ok)
			assert.Equal(t, int32(-sh.s), d.Exponent(), "DECIMAL(%d,%d): %s", sh.p, sh.s, d)
			assert.True(t, d.Abs().LessThanOrEqual(limit), "DECIMAL(%d,%d): %s", sh.p, sh.s, d)
		}
	}
}

func TestWideScaleDecimalTable(t *testing.T) {
	for _, ddl := range []string{
		"CREATE TABLE T (Rate DECIMAL(38, 18) NOT NULL)",
		"CREATE TABLE T (Rate NUMERIC(20, 17) NOT NULL)",
	} {
		table, err := schema.ParseCreateTable(ddl, schema.ParseOptions{})
		require.NoError(t, err, ddl)
		rows, err := newTestSynth().GenerateRows(table, 50)
		require.NoError(t, err, ddl)
		require.Len(t, rows, 50)
		for _, r := range rows {
			d := r.Values[0].(decimal.Decimal)
			assert.True(t, d.GreaterThanOrEqual(decimal.NewFromInt(1)) && d.LessThanOrEqual(decimal.NewFromInt(100)), d.String())
		}
	}
}

func TestDecisionIsIdempotent(t *testing.T) {
	a := newTestSynth()
	b := New(WithSeed(7))
	cols := []domain.ColumnDescriptor{
		{Name: "AddressID", Type: domain.SQLTypeInt, Identity: true, HasDefault: true},
		{Name: "CreatedAt", Type: domain.SQLTypeDateTime, HasDefault: true},
		{Name: "City", Type: domain.SQLTypeVarchar},
		{Name: "Quantity", Type: domain.SQLTypeInt},
	}
	want := []Tier{TierSkip, TierSkip, TierPattern, TierFallback}
	for i, col := range cols {
		first := a.Decide(col)
		assert.Equal(t, want[i], first.Tier)
		for j := 0; j < 5; j++ {
			assert.Equal(t, first, a.Decide(col))
			assert.Equal(t, first, b.Decide(col))
		}
	}
	assert.Equal(t, domain.SkipIdentity, a.Decide(cols[0]).Skip)
}

func TestKeyUniqueness(t *testing.T) {
	s := newTestSynth()
	table := &domain.TableSchema{Name: "Codes", Columns: []domain.ColumnDescriptor{
		{Name: "CodeID", Type: domain.SQLTypeInt, PrimaryKey: true},
		{Name: "Code", Type: domain.SQLTypeVarchar, MaxLength: intPtr(6), Unique: true},
		{Name: "Email", Type: domain.SQLTypeVarchar, MaxLength: intPtr(120), Unique: true},
	}}

	const n = 800
	rows, err := s.GenerateRows(table, n)
	require.NoError(t, err)
	require.Len(t, rows, n)

	for i, col := range []string{"CodeID", "Code", "Email"} {
		seen := map[string]bool{}
		for _, r := range rows {
			require.Equal(t, col, r.Columns[i])
			v := r.Values[i]
			key := uniqueKey(v)
			assert.False(t, seen[key], "%s duplicated %v", col, v)
			seen[key] = true
		}
	}
}

func TestUniqueExhaustion(t *testing.T) {
	s := newTestSynth(WithMaxUniqueAttempts(16))
	col := domain.ColumnDescriptor{Name: "Flag", Type: domain.SQLTypeVarchar, MaxLength: intPtr(1), Unique: true}

	_, err := s.GenerateColumn(col, 100)
	require.Error(t, err)

	var rowErr *RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, "Flag", rowErr.Column)

	var exhausted *UniqueExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 16, exhausted.Attempts)
}

func TestFailedRowDoesNotBlockSiblings(t *testing.T) {
	s := newTestSynth(WithMaxUniqueAttempts(8))
	table := &domain.TableSchema{Name: "Flags", Columns: []domain.ColumnDescriptor{
		{Name: "Flag", Type: domain.SQLTypeVarchar, MaxLength: intPtr(1), Unique: true},
	}}
	plan, err := s.Plan(table)
	require.NoError(t, err)

	ok, failed := 0, 0
	for i := 0; i < 100; i++ {
		row, err := plan.NextRow()
		if err != nil {
			failed++
			assert.Empty(t, row.Columns)
			continue
		}
		ok++
	}
	assert.LessOrEqual(t, ok, 36)
	assert.Greater(t, ok, 0)
	assert.Equal(t, 100, ok+failed)
}

func TestFallbackCoversEveryType(t *testing.T) {
	fb := fallbackProducers()
	for _, typ := range domain.AllSQLTypes() {
		_, ok := fb[typ]
		assert.True(t, ok, typ)
	}

	s := newTestSynth()
	cases := []domain.ColumnDescriptor{
		{Name: "Quantity", Type: domain.SQLTypeInt},
		{Name: "BigCounter", Type: domain.SQLTypeBigInt},
		{Name: "Ratio", Type: domain.SQLTypeDecimal, Precision: intPtr(5), Scale: intPtr(3)},
		{Name: "Weight", Type: domain.SQLTypeDecimal},
		{Name: "Description", Type: domain.SQLTypeVarchar},
		{Name: "ShippedOn", Type: domain.SQLTypeDate},
		{Name: "ShippedAt", Type: domain.SQLTypeDateTime},
		{Name: "Flag", Type: domain.SQLTypeBit},
		{Name: "Token", Type: domain.SQLTypeUUID},
		{Name: "Payload", Type: domain.SQLTypeOther},
	}
	for _, col := range cases {
		v, err := s.Value(col)
		require.NoError(t, err, col.Name)
		require.NotNil(t, v.Data, col.Name)

		switch col.Type {
		case domain.SQLTypeInt, domain.SQLTypeBigInt:
			n := v.Data.(int64)
			assert.True(t, n >= 1 && n <= 1000, n)
		case domain.SQLTypeDecimal:
			d := v.Data.(decimal.Decimal)
			assert.True(t, d.GreaterThanOrEqual(decimal.NewFromInt(1)) && d.LessThanOrEqual(decimal.NewFromInt(100)), d.String())
			if col.Scale != nil {
				assert.Equal(t, int32(-3), d.Exponent())
			} else {
				assert.Equal(t, int32(-2), d.Exponent())
			}
		case domain.SQLTypeVarchar:
			assert.LessOrEqual(t, utf8.RuneCountInString(v.Data.(string)), 50)
		case domain.SQLTypeDate, domain.SQLTypeDateTime:
			d := v.Data.(time.Time)
			assert.True(t, !d.Before(fixedNow.AddDate(-1, 0, -1)) && !d.After(fixedNow), d)
		case domain.SQLTypeUUID:
			assert.Regexp(t, `^[0-9a-f-]{36}$`, v.Data)
		}
	}
}

func TestUnsupportedType(t *testing.T) {
	s := newTestSynth()
	col := domain.ColumnDescriptor{Name: "Shape", Type: domain.SQLType("geometry")}

	_, err := s.Value(col)
	var unsupported *UnsupportedTypeError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "Shape", unsupported.Column)

	_, err = s.Plan(&domain.TableSchema{Name: "shapes", Columns: []domain.ColumnDescriptor{col}})
	assert.True(t, errors.As(err, &unsupported))
}

func TestClamping(t *testing.T) {
	tiny := domain.ColumnDescriptor{Name: "Level", Type: domain.SQLTypeInt, DeclaredType: "TINYINT"}
	assert.Equal(t, int64(255), fit(tiny, int64(1000)))

	small := domain.ColumnDescriptor{Name: "Rate", Type: domain.SQLTypeDecimal, Precision: intPtr(3), Scale: intPtr(1)}
	assert.Equal(t, "99.9", fit(small, decimal.RequireFromString("123.456")).(decimal.Decimal).String())
	assert.Equal(t, "12.3", fit(small, decimal.RequireFromString("12.345")).(decimal.Decimal).String())

	text := domain.ColumnDescriptor{Name: "Code", Type: domain.SQLTypeVarchar, MaxLength: intPtr(3)}
	assert.Equal(t, "Zür", fit(text, "Zürich"))
	assert.Equal(t, "123", fit(text, int64(12345)))

	bit := domain.ColumnDescriptor{Name: "Flag", Type: domain.SQLTypeBit}
	assert.Equal(t, true, fit(bit, int64(1)))
}

func TestKeyIntegerRangeWidens(t *testing.T) {
	s := newTestSynth()
	col := domain.ColumnDescriptor{Name: "OrderID", Type: domain.SQLTypeInt, PrimaryKey: true}

	vals, err := s.GenerateColumn(col, 5000)
	require.NoError(t, err)
	var max int64
	for _, v := range vals {
		if n := v.Data.(int64); n > max {
			max = n
		}
	}
	assert.Greater(t, max, int64(1000))
	assert.LessOrEqual(t, max, int64(50000))
}

func TestSeedReproducesRngDrivenValues(t *testing.T) {
	table := &domain.TableSchema{Name: "Addresses", Columns: []domain.ColumnDescriptor{
		{Name: "StreetAddress", Type: domain.SQLTypeVarchar, MaxLength: intPtr(100)},
		{Name: "City", Type: domain.SQLTypeVarchar, MaxLength: intPtr(50)},
		{Name: "State", Type: domain.SQLTypeVarchar, MaxLength: intPtr(3)},
		{Name: "PostalCode", Type: domain.SQLTypeVarchar, MaxLength: intPtr(4)},
		{Name: "Quantity", Type: domain.SQLTypeInt},
		{Name: "Token", Type: domain.SQLTypeUUID},
	}}
	a, err := newTestSynth().GenerateRows(table, 20)
	require.NoError(t, err)
	b, err := newTestSynth().GenerateRows(table, 20)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNullRate(t *testing.T) {
	s := newTestSynth(WithNullRate(1))
	nullable := domain.ColumnDescriptor{Name: "Notes", Type: domain.SQLTypeVarchar, Nullable: true}
	key := domain.ColumnDescriptor{Name: "Code", Type: domain.SQLTypeVarchar, Nullable: true, Unique: true}

	v, err := s.Value(nullable)
	require.NoError(t, err)
	assert.Nil(t, v.Data)
	assert.False(t, v.Skipped())

	v, err = s.Value(key)
	require.NoError(t, err)
	assert.NotNil(t, v.Data)

	v, err = newTestSynth().Value(nullable)
	require.NoError(t, err)
	assert.NotNil(t, v.Data)
}

func TestLocaleSubstitution(t *testing.T) {
	s := newTestSynth(WithLocale(locale.NewUnitedStates()))
	col := domain.ColumnDescriptor{Name: "ZIP", Type: domain.SQLTypeVarchar, MaxLength: intPtr(10)}
	vals, err := s.GenerateColumn(col, 20)
	require.NoError(t, err)
	for _, v := range vals {
		assert.Len(t, v.Data, 5)
		_, err := strconv.Atoi(v.Data.(string))
		assert.NoError(t, err)
	}
	assert.Equal(t, "postcode", s.Decide(col).Rule)
}

func TestPlanColumns(t *testing.T) {
	s := newTestSynth()
	table := &domain.TableSchema{Name: "Addresses", Columns: []domain.ColumnDescriptor{
		{Name: "AddressID", Type: domain.SQLTypeInt, Identity: true, PrimaryKey: true},
		{Name: "StreetAddress", Type: domain.SQLTypeVarchar, MaxLength: intPtr(100)},
		{Name: "PostalCode", Type: domain.SQLTypeVarchar, MaxLength: intPtr(4)},
		{Name: "CreatedAt", Type: domain.SQLTypeDateTime, HasDefault: true},
	}}
	plan, err := s.Plan(table)
	require.NoError(t, err)
	assert.Equal(t, []string{"StreetAddress", "PostalCode"}, plan.Columns())
	assert.Equal(t, []string{"AddressID", "CreatedAt"}, plan.Skipped())
	assert.Equal(t, TierPattern, plan.Decisions()["StreetAddress"].Tier)

	row, err := plan.NextRow()
	require.NoError(t, err)
	assert.Equal(t, plan.Columns(), row.Columns)
	assert.Len(t, row.Values, 2)
}

func TestInvalidWindow(t *testing.T) {
	s := newTestSynth(WithDateWindow("whenever"))
	_, err := s.Plan(&domain.TableSchema{Name: "t", Columns: []domain.ColumnDescriptor{{Name: "d", Type: domain.SQLTypeDate}}})
	assert.Error(t, err)
}
