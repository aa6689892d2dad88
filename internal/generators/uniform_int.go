package generators

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/mmrzaf/tablefill/internal/domain"
)

// UniformIntGenerator draws from the closed range [min, max].
type UniformIntGenerator struct{}

func (g *UniformIntGenerator) Generate(rng *rand.Rand, ctx GeneratorContext) (interface{}, error) {
	minVal, ok := ctx.Params["min"]
	if !ok {
		return nil, errors.New("missing 'min' param")
	}
	maxVal, ok := ctx.Params["max"]
	if !ok {
		return nil, errors.New("missing 'max' param")
	}
	return UniformInt(rng, toInt64(minVal), toInt64(maxVal))
}

func (g *UniformIntGenerator) Validate(spec domain.GeneratorSpec, columnType domain.SQLType) error {
	if !requireParams(spec, "min", "max") {
		return errors.New("uniform_int requires 'min' and 'max' params")
	}
	if !isNumber(spec.Params["min"]) || !isNumber(spec.Params["max"]) {
		return errors.New("'min' and 'max' must be numbers")
	}
	if toInt64(spec.Params["max"]) < toInt64(spec.Params["min"]) {
		return errors.New("'max' must not be less than 'min'")
	}
	if !columnType.IsInteger() && columnType != domain.SQLTypeDecimal && columnType != domain.SQLTypeVarchar {
		return fmt.Errorf("uniform_int cannot fill %s columns", columnType)
	}
	return nil
}

func UniformInt(rng *rand.Rand, min, max int64) (int64, error) {
	if max < min {
		return 0, fmt.Errorf("max (%d) must not be less than min (%d)", max, min)
	}
	span := uint64(max - min)
	if span == 1<<64-1 {
		return int64(rng.Uint64()), nil
	}
	if span < 1<<63-1 {
		return min + rng.Int63n(int64(span)+1), nil
	}
	for {
		if v := rng.Uint64(); v <= span {
			return min + int64(v), nil
		}
	}
}
