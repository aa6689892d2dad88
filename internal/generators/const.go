package generators

import (
	"fmt"
	"math/rand"

	"github.com/mmrzaf/tablefill/internal/domain"
)

// ConstGenerator repeats params.value on every row.
type ConstGenerator struct{}

func (g *ConstGenerator) Generate(_ *rand.Rand, ctx GeneratorContext) (interface{}, error) {
	v, ok := ctx.Params["value"]
	if !ok {
		return nil, fmt.Errorf("column %s: missing 'value' param", ctx.Column.Name)
	}
	return v, nil
}

func (g *ConstGenerator) Validate(spec domain.GeneratorSpec, columnType domain.SQLType) error {
	v, ok := spec.Params["value"]
	if !ok {
		return fmt.Errorf("const generator requires 'value' param")
	}
	if !fitsColumnType(v, columnType) {
		return fmt.Errorf("const value %v cannot fill a %s column", v, columnType)
	}
	return nil
}
