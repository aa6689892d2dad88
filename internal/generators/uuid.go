package generators

import (
	"encoding/binary"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/mmrzaf/tablefill/internal/domain"
)

// UUID4Generator draws the random bits from rng so seeded runs repeat.
type UUID4Generator struct{}

func (g *UUID4Generator) Generate(rng *rand.Rand, ctx GeneratorContext) (interface{}, error) {
	uuidBytes := make([]byte, 16)
	binary.LittleEndian.PutUint64(uuidBytes[:8], rng.Uint64())
	binary.LittleEndian.PutUint64(uuidBytes[8:], rng.Uint64())
	uuidBytes[6] = (uuidBytes[6] & 0x0f) | 0x40
	uuidBytes[8] = (uuidBytes[8] & 0x3f) | 0x80
	u, err := uuid.FromBytes(uuidBytes)
	if err != nil {
		return nil, err
	}
	return u.String(), nil
}

func (g *UUID4Generator) Validate(spec domain.GeneratorSpec, columnType domain.SQLType) error {
	switch columnType {
	case domain.SQLTypeUUID, domain.SQLTypeVarchar, domain.SQLTypeOther:
		return nil
	default:
		return fmt.Errorf("uuid4 cannot fill %s columns", columnType)
	}
}
