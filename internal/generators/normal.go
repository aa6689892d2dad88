package generators

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/shopspring/decimal"
)

// NormalGenerator draws from N(mean, std), optionally clipped to [min, max],
// and rounds to the column scale (2 when unknown). Integer columns get whole
// numbers.
type NormalGenerator struct{}

func (g *NormalGenerator) Generate(rng *rand.Rand, ctx GeneratorContext) (interface{}, error) {
	meanVal, ok := ctx.Params["mean"]
	if !ok {
		return nil, errors.New("missing 'mean' param")
	}
	stdVal, ok := ctx.Params["std"]
	if !ok {
		return nil, errors.New("missing 'std' param")
	}

	v := rng.NormFloat64()*toFloat64(stdVal) + toFloat64(meanVal)
	if min, ok := ctx.Params["min"]; ok && v < toFloat64(min) {
		v = toFloat64(min)
	}
	if max, ok := ctx.Params["max"]; ok && v > toFloat64(max) {
		v = toFloat64(max)
	}

	if ctx.Column.Type.IsInteger() {
		return decimal.NewFromFloat(v).Round(0).IntPart(), nil
	}
	scale := int32(2)
	if ctx.Column.Scale != nil {
		scale = int32(*ctx.Column.Scale)
	}
	return decimal.NewFromFloat(v).Round(scale), nil
}

func (g *NormalGenerator) Validate(spec domain.GeneratorSpec, columnType domain.SQLType) error {
	if !requireParams(spec, "mean", "std") {
		return errors.New("normal requires 'mean' and 'std' params")
	}
	if !isNumber(spec.Params["mean"]) || !isNumber(spec.Params["std"]) {
		return errors.New("'mean' and 'std' must be numbers")
	}
	if toFloat64(spec.Params["std"]) < 0 {
		return errors.New("'std' must not be negative")
	}
	if !columnType.IsInteger() && columnType != domain.SQLTypeDecimal {
		return fmt.Errorf("normal cannot fill %s columns", columnType)
	}
	return nil
}
