package generators

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/mmrzaf/tablefill/internal/domain"
)

// ChoiceGenerator picks one of params.values, weighted by params.weights
// when given.
type ChoiceGenerator struct{}

func (g *ChoiceGenerator) Generate(rng *rand.Rand, ctx GeneratorContext) (interface{}, error) {
	values, weights, err := choiceParams(ctx.Params)
	if err != nil {
		return nil, err
	}
	if weights == nil {
		return values[rng.Intn(len(values))], nil
	}

	var total float64
	for _, w := range weights {
		total += w
	}
	r := rng.Float64() * total
	for i, w := range weights {
		if r < w {
			return values[i], nil
		}
		r -= w
	}
	return values[len(values)-1], nil
}

func (g *ChoiceGenerator) Validate(spec domain.GeneratorSpec, columnType domain.SQLType) error {
	values, _, err := choiceParams(spec.Params)
	if err != nil {
		return fmt.Errorf("choice: %w", err)
	}
	for _, v := range values {
		if !fitsColumnType(v, columnType) {
			return fmt.Errorf("choice value %v cannot fill a %s column", v, columnType)
		}
	}
	return nil
}

// choiceParams returns nil weights when none are given.
func choiceParams(params map[string]interface{}) ([]interface{}, []float64, error) {
	values, ok := params["values"].([]interface{})
	if !ok {
		return nil, nil, errors.New("'values' must be a list")
	}
	if len(values) == 0 {
		return nil, nil, errors.New("'values' cannot be empty")
	}

	raw, ok := params["weights"]
	if !ok {
		return values, nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, nil, errors.New("'weights' must be a list")
	}
	if len(list) != len(values) {
		return nil, nil, errors.New("'weights' and 'values' must have the same length")
	}

	weights := make([]float64, len(list))
	var total float64
	for i, w := range list {
		if !isNumber(w) || toFloat64(w) < 0 {
			return nil, nil, fmt.Errorf("invalid weight: %v", w)
		}
		weights[i] = toFloat64(w)
		total += weights[i]
	}
	if total == 0 {
		return nil, nil, errors.New("total weight is zero")
	}
	return values, weights, nil
}
