package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/mmrzaf/tablefill/internal/generators"
)

type GeneratorRegistry struct {
	mu         sync.RWMutex
	generators map[string]generators.Generator
}

func NewGeneratorRegistry() *GeneratorRegistry {
	return &GeneratorRegistry{
		generators: make(map[string]generators.Generator),
	}
}

func (r *GeneratorRegistry) Register(name string, gen generators.Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[name] = gen
}

func (r *GeneratorRegistry) Get(name string) (generators.Generator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gen, ok := r.generators[name]
	if !ok {
		return nil, fmt.Errorf("generator not found: %s", name)
	}
	return gen, nil
}

// List returns the registered names in sorted order.
func (r *GeneratorRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve looks up the generator named by spec and validates its params
// against every column type it may be bound to.
func (r *GeneratorRegistry) Resolve(spec domain.GeneratorSpec, columnTypes []domain.SQLType) (generators.Generator, error) {
	gen, err := r.Get(spec.Type)
	if err != nil {
		return nil, err
	}
	for _, ct := range columnTypes {
		if err := gen.Validate(spec, ct); err != nil {
			return nil, fmt.Errorf("generator %s: %w", spec.Type, err)
		}
	}
	return gen, nil
}

func DefaultGeneratorRegistry() *GeneratorRegistry {
	r := NewGeneratorRegistry()
	r.Register("const", &generators.ConstGenerator{})
	r.Register("uuid4", &generators.UUID4Generator{})
	r.Register("uniform_int", &generators.UniformIntGenerator{})
	r.Register("uniform_float", &generators.UniformFloatGenerator{})
	r.Register("normal", &generators.NormalGenerator{})
	r.Register("choice", &generators.ChoiceGenerator{})
	r.Register("pattern", &generators.PatternGenerator{})
	r.Register("faker_name", &generators.FakerNameGenerator{})
	r.Register("faker_word", &generators.FakerWordGenerator{})
	r.Register("faker_sentence", &generators.FakerSentenceGenerator{})
	r.Register("faker_email", &generators.FakerEmailGenerator{})
	r.Register("time_series", &generators.TimeSeriesGenerator{})
	return r
}
