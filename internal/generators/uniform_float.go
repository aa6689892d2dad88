package generators

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/shopspring/decimal"
)

// UniformFloatGenerator yields decimals in [min, max] with a fixed number of
// fractional digits: the "scale" param, else the column scale, else 2.
type UniformFloatGenerator struct{}

func (g *UniformFloatGenerator) Generate(rng *rand.Rand, ctx GeneratorContext) (interface{}, error) {
	minVal, ok := ctx.Params["min"]
	if !ok {
		return nil, errors.New("missing 'min' param")
	}
	maxVal, ok := ctx.Params["max"]
	if !ok {
		return nil, errors.New("missing 'max' param")
	}

	scale := int32(2)
	if ctx.Column.Scale != nil {
		scale = int32(*ctx.Column.Scale)
	}
	if s, ok := ctx.Params["scale"]; ok {
		scale = int32(toInt64(s))
	}

	return UniformDecimal(rng,
		decimal.NewFromFloat(toFloat64(minVal)),
		decimal.NewFromFloat(toFloat64(maxVal)),
		scale)
}

func (g *UniformFloatGenerator) Validate(spec domain.GeneratorSpec, columnType domain.SQLType) error {
	if !requireParams(spec, "min", "max") {
		return errors.New("uniform_float requires 'min' and 'max' params")
	}
	if !isNumber(spec.Params["min"]) || !isNumber(spec.Params["max"]) {
		return errors.New("'min' and 'max' must be numbers")
	}
	if toFloat64(spec.Params["max"]) < toFloat64(spec.Params["min"]) {
		return errors.New("'max' must not be less than 'min'")
	}
	if s, ok := spec.Params["scale"]; ok && (!isNumber(s) || toInt64(s) < 0 || toInt64(s) > 18) {
		return errors.New("'scale' must be an integer between 0 and 18")
	}
	if columnType != domain.SQLTypeDecimal && columnType != domain.SQLTypeVarchar {
		return fmt.Errorf("uniform_float cannot fill %s columns", columnType)
	}
	return nil
}

// UniformDecimal draws a value on the 10^-scale grid inside [min, max]. The
// result always carries exactly scale fractional digits. Grids wider than an
// int64 draw their leading digits first and fill the rest digit by digit.
func UniformDecimal(rng *rand.Rand, min, max decimal.Decimal, scale int32) (decimal.Decimal, error) {
	if max.LessThan(min) {
		return decimal.Decimal{}, fmt.Errorf("max (%s) must not be less than min (%s)", max, min)
	}
	unit := decimal.New(1, -scale)
	lo := min.Div(unit).Ceil()
	hi := max.Div(unit).Floor()
	if hi.LessThan(lo) {
		return decimal.Decimal{}, fmt.Errorf("no value with %d fractional digits in [%s, %s]", scale, min, max)
	}

	span := hi.Sub(lo)
	var offset decimal.Decimal
	if span.LessThanOrEqual(maxGridSpan) {
		n, err := UniformInt(rng, 0, span.IntPart())
		if err != nil {
			return decimal.Decimal{}, err
		}
		offset = decimal.NewFromInt(n)
	} else {
		coarse, dropped := span, int32(0)
		for coarse.GreaterThan(maxGridSpan) {
			coarse = coarse.Shift(-1).Floor()
			dropped++
		}
		lead := decimal.NewFromInt(rng.Int63n(coarse.IntPart())).Shift(dropped)
		offset = lead.Add(randomDigits(rng, dropped))
	}
	return decimal.NewFromBigInt(lo.Add(offset).BigInt(), -scale), nil
}

var maxGridSpan = decimal.NewFromInt(math.MaxInt64 / 2)

// randomDigits returns a uniform integer in [0, 10^n).
func randomDigits(rng *rand.Rand, n int32) decimal.Decimal {
	out := decimal.Zero
	for n > 0 {
		chunk := n
		if chunk > 18 {
			chunk = 18
		}
		out = out.Shift(chunk).Add(decimal.NewFromInt(rng.Int63n(int64(math.Pow10(int(chunk))))))
		n -= chunk
	}
	return out
}
