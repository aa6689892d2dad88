package generators

import (
	"math/rand"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmrzaf/tablefill/internal/domain"
)

func spec(typ string, params map[string]interface{}) domain.GeneratorSpec {
	return domain.GeneratorSpec{Type: typ, Params: params}
}

func TestUniformIntInclusive(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	seen := map[int64]bool{}
	for i := 0; i < 500; i++ {
		v, err := UniformInt(rng, 1, 3)
		require.NoError(t, err)
		assert.True(t, v >= 1 && v <= 3)
		seen[v] = true
	}
	assert.Len(t, seen, 3)

	_, err := UniformInt(rng, 5, 4)
	assert.Error(t, err)

	v, err := UniformInt(rng, 7, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)
}

func TestUniformDecimalKeepsScale(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	lo, hi := decimal.RequireFromString("10.00"), decimal.RequireFromString("1000.00")
	for i := 0; i < 500; i++ {
		d, err := UniformDecimal(rng, lo, hi, 2)
		require.NoError(t, err)
		assert.Equal(t, int32(-2), d.Exponent())
		assert.True(t, d.GreaterThanOrEqual(lo) && d.LessThanOrEqual(hi), d.String())
	}

	_, err := UniformDecimal(rng, decimal.RequireFromString("0.1"), decimal.RequireFromString("0.2"), 0)
	assert.Error(t, err)
}

func TestUniformDecimalWideGrid(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	lo, hi := decimal.NewFromInt(1), decimal.NewFromInt(100)
	for _, scale := range []int32{17, 18, 30} {
		seen := map[string]bool{}
		for i := 0; i < 200; i++ {
			d, err := UniformDecimal(rng, lo, hi, scale)
			require.NoError(t, err, "scale %d", scale)
			assert.Equal(t, -scale, d.Exponent())
			assert.True(t, d.GreaterThanOrEqual(lo) && d.LessThanOrEqual(hi), d.String())
			seen[d.String()] = true
		}
		assert.Greater(t, len(seen), 190, "scale %d", scale)
	}
}

func TestGeneratorValidation(t *testing.T) {
	cases := []struct {
		name    string
		gen     Generator
		spec    domain.GeneratorSpec
		colType domain.SQLType
		ok      bool
	}{
		{"const ok", &ConstGenerator{}, spec("const", map[string]interface{}{"value": "x"}), domain.SQLTypeVarchar, true},
		{"const missing", &ConstGenerator{}, spec("const", nil), domain.SQLTypeVarchar, false},
		{"int ok", &UniformIntGenerator{}, spec("uniform_int", map[string]interface{}{"min": 1, "max": 9}), domain.SQLTypeInt, true},
		{"int reversed", &UniformIntGenerator{}, spec("uniform_int", map[string]interface{}{"min": 9, "max": 1}), domain.SQLTypeInt, false},
		{"int on date", &UniformIntGenerator{}, spec("uniform_int", map[string]interface{}{"min": 1, "max": 9}), domain.SQLTypeDate, false},
		{"float ok", &UniformFloatGenerator{}, spec("uniform_float", map[string]interface{}{"min": 1.5, "max": 9}), domain.SQLTypeDecimal, true},
		{"float bad scale", &UniformFloatGenerator{}, spec("uniform_float", map[string]interface{}{"min": 1, "max": 9, "scale": -1}), domain.SQLTypeDecimal, false},
		{"normal ok", &NormalGenerator{}, spec("normal", map[string]interface{}{"mean": 50, "std": 5}), domain.SQLTypeInt, true},
		{"normal negative std", &NormalGenerator{}, spec("normal", map[string]interface{}{"mean": 50, "std": -5}), domain.SQLTypeInt, false},
		{"choice ok", &ChoiceGenerator{}, spec("choice", map[string]interface{}{"values": []interface{}{"a", "b"}, "weights": []interface{}{1, 3}}), domain.SQLTypeVarchar, true},
		{"choice weights mismatch", &ChoiceGenerator{}, spec("choice", map[string]interface{}{"values": []interface{}{"a"}, "weights": []interface{}{1, 3}}), domain.SQLTypeVarchar, false},
		{"choice text on int", &ChoiceGenerator{}, spec("choice", map[string]interface{}{"values": []interface{}{"a", "b"}}), domain.SQLTypeInt, false},
		{"choice whole numbers on int", &ChoiceGenerator{}, spec("choice", map[string]interface{}{"values": []interface{}{1, 2.0}}), domain.SQLTypeInt, true},
		{"const fraction on int", &ConstGenerator{}, spec("const", map[string]interface{}{"value": 1.5}), domain.SQLTypeInt, false},
		{"const flag on bit", &ConstGenerator{}, spec("const", map[string]interface{}{"value": true}), domain.SQLTypeBit, true},
		{"choice zero weights", &ChoiceGenerator{}, spec("choice", map[string]interface{}{"values": []interface{}{"a"}, "weights": []interface{}{0}}), domain.SQLTypeVarchar, false},
		{"pattern ok", &PatternGenerator{}, spec("pattern", map[string]interface{}{"format": "SKU-####"}), domain.SQLTypeVarchar, true},
		{"pattern empty", &PatternGenerator{}, spec("pattern", map[string]interface{}{"format": ""}), domain.SQLTypeVarchar, false},
		{"pattern on int", &PatternGenerator{}, spec("pattern", map[string]interface{}{"format": "##"}), domain.SQLTypeInt, false},
		{"uuid on uuid", &UUID4Generator{}, spec("uuid4", nil), domain.SQLTypeUUID, true},
		{"uuid on bit", &UUID4Generator{}, spec("uuid4", nil), domain.SQLTypeBit, false},
		{"series ok", &TimeSeriesGenerator{}, spec("time_series", map[string]interface{}{"start": "-30d", "step": "1h"}), domain.SQLTypeDateTime, true},
		{"series bad step", &TimeSeriesGenerator{}, spec("time_series", map[string]interface{}{"start": "-30d", "step": "soon"}), domain.SQLTypeDateTime, false},
		{"faker name part", &FakerNameGenerator{}, spec("faker_name", map[string]interface{}{"part": "middle"}), domain.SQLTypeVarchar, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.gen.Validate(tc.spec, tc.colType)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestPatternGenerator(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	re := regexp.MustCompile(`^SKU-\d{4}-[A-Z]{2}#$`)
	for i := 0; i < 100; i++ {
		v, err := (&PatternGenerator{}).Generate(rng, GeneratorContext{Params: map[string]interface{}{"format": `SKU-####-??\#`}})
		require.NoError(t, err)
		assert.Regexp(t, re, v)
	}
}

func TestChoiceWeights(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	ctx := GeneratorContext{Params: map[string]interface{}{
		"values":  []interface{}{"never", "always"},
		"weights": []interface{}{0, 1},
	}}
	for i := 0; i < 100; i++ {
		v, err := (&ChoiceGenerator{}).Generate(rng, ctx)
		require.NoError(t, err)
		assert.Equal(t, "always", v)
	}
}

func TestTimeSeriesSpacing(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	gen := &TimeSeriesGenerator{Now: func() time.Time { return now }}
	rng := rand.New(rand.NewSource(1))

	params := map[string]interface{}{"start": "-10d", "step": "1d"}
	col := domain.ColumnDescriptor{Name: "ReadingDate", Type: domain.SQLTypeDate}

	v0, err := gen.Generate(rng, GeneratorContext{RowIndex: 0, Column: col, Params: params})
	require.NoError(t, err)
	v3, err := gen.Generate(rng, GeneratorContext{RowIndex: 3, Column: col, Params: params})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 5, 22, 0, 0, 0, 0, time.UTC), v0)
	assert.Equal(t, time.Date(2024, 5, 25, 0, 0, 0, 0, time.UTC), v3)
}

func TestNormalRoundsToColumn(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	params := map[string]interface{}{"mean": 40, "std": 10, "min": 18, "max": 80}

	v, err := (&NormalGenerator{}).Generate(rng, GeneratorContext{Column: domain.ColumnDescriptor{Type: domain.SQLTypeInt}, Params: params})
	require.NoError(t, err)
	n, ok := v.(int64)
	require.True(t, ok)
	assert.True(t, n >= 18 && n <= 80)

	scale := 1
	v, err = (&NormalGenerator{}).Generate(rng, GeneratorContext{Column: domain.ColumnDescriptor{Type: domain.SQLTypeDecimal, Scale: &scale}, Params: params})
	require.NoError(t, err)
	d, ok := v.(decimal.Decimal)
	require.True(t, ok)
	assert.True(t, d.Exponent() >= -1)
}

func TestUUID4Deterministic(t *testing.T) {
	a, err := (&UUID4Generator{}).Generate(rand.New(rand.NewSource(42)), GeneratorContext{})
	require.NoError(t, err)
	b, err := (&UUID4Generator{}).Generate(rand.New(rand.NewSource(42)), GeneratorContext{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`, a)
}
