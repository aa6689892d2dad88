package generators

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/mmrzaf/tablefill/internal/domain"
)

// PatternGenerator fills a template: '#' becomes a digit, '?' an upper-case
// letter, '*' a digit or letter. A backslash escapes the next character.
type PatternGenerator struct{}

const (
	patternLetters  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	patternAlphaNum = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

func (g *PatternGenerator) Generate(rng *rand.Rand, ctx GeneratorContext) (interface{}, error) {
	format, ok := ctx.Params["format"].(string)
	if !ok {
		return nil, errors.New("missing 'format' param")
	}
	return FillPattern(rng, format), nil
}

func (g *PatternGenerator) Validate(spec domain.GeneratorSpec, columnType domain.SQLType) error {
	format, ok := spec.Params["format"].(string)
	if !ok || format == "" {
		return errors.New("pattern requires a non-empty 'format' param")
	}
	if strings.HasSuffix(format, `\`) && !strings.HasSuffix(format, `\\`) {
		return errors.New("'format' ends with a dangling escape")
	}
	return textColumn("pattern", columnType)
}

func FillPattern(rng *rand.Rand, format string) string {
	var b strings.Builder
	b.Grow(len(format))
	escaped := false
	for _, ch := range format {
		if escaped {
			b.WriteRune(ch)
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			escaped = true
		case '#':
			b.WriteByte(byte('0' + rng.Intn(10)))
		case '?':
			b.WriteByte(patternLetters[rng.Intn(len(patternLetters))])
		case '*':
			b.WriteByte(patternAlphaNum[rng.Intn(len(patternAlphaNum))])
		default:
			b.WriteRune(ch)
		}
	}
	return b.String()
}

func textColumn(name string, columnType domain.SQLType) error {
	switch columnType {
	case domain.SQLTypeVarchar, domain.SQLTypeOther:
		return nil
	default:
		return fmt.Errorf("%s cannot fill %s columns", name, columnType)
	}
}

func errInvalidParam(name string, got interface{}, want string) error {
	return fmt.Errorf("invalid '%s' param %v: want %s", name, got, want)
}
