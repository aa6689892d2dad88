package synth

import (
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-faker/faker/v4"
	"github.com/shopspring/decimal"

	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/mmrzaf/tablefill/internal/generators"
	"github.com/mmrzaf/tablefill/internal/timeutil"
)

const (
	defaultTextLength = 50
	shortTextLength   = 8
	defaultScale      = 2
)

var (
	fallbackDecimalMin = decimal.NewFromInt(1)
	fallbackDecimalMax = decimal.NewFromInt(100)
)

// fallbackProducers covers every domain.SQLType.
func fallbackProducers() map[domain.SQLType]Producer {
	uuidGen := &generators.UUID4Generator{}
	return map[domain.SQLType]Producer{
		domain.SQLTypeInt:     fallbackInt,
		domain.SQLTypeBigInt:  fallbackInt,
		domain.SQLTypeDecimal: fallbackDecimal,
		domain.SQLTypeVarchar: fallbackText,
		domain.SQLTypeDate: func(env *Env, col domain.ColumnDescriptor) (any, error) {
			return instantIn(env.Rand, env.Dates, domain.SQLTypeDate), nil
		},
		domain.SQLTypeDateTime: func(env *Env, col domain.ColumnDescriptor) (any, error) {
			return instantIn(env.Rand, env.Dates, domain.SQLTypeDateTime), nil
		},
		domain.SQLTypeBit: func(env *Env, _ domain.ColumnDescriptor) (any, error) {
			return env.Rand.Intn(2) == 1, nil
		},
		domain.SQLTypeUUID: func(env *Env, col domain.ColumnDescriptor) (any, error) {
			return uuidGen.Generate(env.Rand, generators.GeneratorContext{RowIndex: env.RowIndex, Column: col})
		},
		domain.SQLTypeOther: func(*Env, domain.ColumnDescriptor) (any, error) {
			return faker.Word(), nil
		},
	}
}

// fallbackInt draws from [1, 1000]. Key columns widen the range to ten times
// the planned row count so distinct values stay easy to find.
func fallbackInt(env *Env, col domain.ColumnDescriptor) (any, error) {
	lo, hi := int64(1), int64(1000)
	if col.IsKey() && env.Rows*10 > hi {
		hi = env.Rows * 10
	}
	min, max := col.IntegerBounds()
	if hi > max {
		hi = max
	}
	if lo < min {
		lo = min
	}
	if lo > hi {
		lo = min
	}
	return generators.UniformInt(env.Rand, lo, hi)
}

func fallbackDecimal(env *Env, col domain.ColumnDescriptor) (any, error) {
	scale := int32(defaultScale)
	if col.Scale != nil {
		scale = int32(*col.Scale)
	}
	lo, hi := decimalBounds(col, fallbackDecimalMin, fallbackDecimalMax)
	return generators.UniformDecimal(env.Rand, lo, hi, scale)
}

func fallbackText(env *Env, col domain.ColumnDescriptor) (any, error) {
	limit := defaultTextLength
	if col.MaxLength != nil {
		limit = *col.MaxLength
	}
	if limit < shortTextLength {
		return randomAlnum(env.Rand, limit), nil
	}
	s := faker.Sentence()
	for utf8.RuneCountInString(s) < limit/2 {
		s += " " + faker.Sentence()
	}
	return strings.TrimSpace(truncateRunes(s, limit)), nil
}

// decimalBounds narrows [lo, hi] to what DECIMAL(p, s) can hold.
func decimalBounds(col domain.ColumnDescriptor, lo, hi decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if col.Precision == nil {
		return lo, hi
	}
	scale := int32(0)
	if col.Scale != nil {
		scale = int32(*col.Scale)
	}
	max := decimalMax(*col.Precision, scale)
	if hi.GreaterThan(max) {
		hi = max
	}
	if lo.GreaterThan(hi) {
		lo = decimal.New(1, -scale)
		if lo.GreaterThan(hi) {
			lo = decimal.Zero
		}
	}
	return lo, hi
}

// decimalMax is the largest value DECIMAL(p, s) can hold: 10^(p-s) - 10^-s.
func decimalMax(precision int, scale int32) decimal.Decimal {
	return decimal.New(1, int32(precision)-scale).Sub(decimal.New(1, -scale))
}

// instantIn picks a point in w; date columns get midnight of that day.
func instantIn(rng *rand.Rand, w timeutil.Window, t domain.SQLType) time.Time {
	at := w.Start
	if span := w.Span(); span > 0 {
		at = w.Start.Add(time.Duration(rng.Int63n(int64(span))))
	}
	if t == domain.SQLTypeDate {
		return timeutil.TruncateDay(at)
	}
	return at.Truncate(time.Second)
}

const alnum = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomAlnum(rng *rand.Rand, n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = alnum[rng.Intn(len(alnum))]
	}
	return string(b)
}

func truncateRunes(s string, n int) string {
	if n < 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
