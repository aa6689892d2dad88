package generators

import (
	"math/rand"

	"github.com/mmrzaf/tablefill/internal/domain"
)

// Generator produces one value per call. Params come from the rule that bound
// the generator to a column and were checked by Validate beforehand.
type Generator interface {
	Generate(rng *rand.Rand, ctx GeneratorContext) (interface{}, error)
	Validate(spec domain.GeneratorSpec, columnType domain.SQLType) error
}

type GeneratorContext struct {
	RowIndex int64
	Column   domain.ColumnDescriptor
	Params   map[string]interface{}
}

func toFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	default:
		return 0.0
	}
}

func toInt64(v interface{}) int64 {
	switch val := v.(type) {
	case int:
		return int64(val)
	case int64:
		return val
	case float64:
		return int64(val)
	default:
		return 0
	}
}

func isNumber(v interface{}) bool {
	switch v.(type) {
	case int, int64, float32, float64:
		return true
	default:
		return false
	}
}

func requireParams(spec domain.GeneratorSpec, names ...string) bool {
	if spec.Params == nil {
		return false
	}
	for _, n := range names {
		if _, ok := spec.Params[n]; !ok {
			return false
		}
	}
	return true
}

// fitsColumnType reports whether a literal from a rules file can be written
// to a column of type t. Text columns take numbers too.
func fitsColumnType(v interface{}, t domain.SQLType) bool {
	switch t {
	case domain.SQLTypeInt, domain.SQLTypeBigInt:
		return isNumber(v) && toFloat64(v) == float64(toInt64(v))
	case domain.SQLTypeDecimal:
		return isNumber(v)
	case domain.SQLTypeBit:
		if _, ok := v.(bool); ok {
			return true
		}
		return isNumber(v) && (toFloat64(v) == 0 || toFloat64(v) == 1)
	case domain.SQLTypeVarchar:
		_, ok := v.(string)
		return ok || isNumber(v)
	case domain.SQLTypeDate, domain.SQLTypeDateTime, domain.SQLTypeUUID:
		_, ok := v.(string)
		return ok
	default:
		return v != nil
	}
}
