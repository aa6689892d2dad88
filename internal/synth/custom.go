package synth

import (
	"fmt"

	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/mmrzaf/tablefill/internal/generators"
	"github.com/mmrzaf/tablefill/internal/registry"
)

// CustomRules binds each rule of a rules file to its registered generator.
// A rule without explicit types applies to every type its generator accepts.
func CustomRules(set *domain.RuleSet, reg *registry.GeneratorRegistry) ([]Rule, error) {
	if set == nil {
		return nil, nil
	}
	if reg == nil {
		reg = registry.DefaultGeneratorRegistry()
	}

	rules := make([]Rule, 0, len(set.Rules))
	for _, spec := range set.Rules {
		r, err := customRule(spec, reg)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", spec.Name, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func customRule(spec domain.RuleSpec, reg *registry.GeneratorRegistry) (Rule, error) {
	types := make([]domain.SQLType, 0, len(spec.Types))
	for _, t := range spec.Types {
		st, ok := domain.ParseSQLType(t)
		if !ok {
			return Rule{}, fmt.Errorf("unknown column type %q", t)
		}
		types = append(types, st)
	}

	var gen generators.Generator
	if len(types) > 0 {
		g, err := reg.Resolve(spec.Generator, types)
		if err != nil {
			return Rule{}, err
		}
		gen = g
	} else {
		g, err := reg.Get(spec.Generator.Type)
		if err != nil {
			return Rule{}, err
		}
		for _, t := range domain.AllSQLTypes() {
			if g.Validate(spec.Generator, t) == nil {
				types = append(types, t)
			}
		}
		if len(types) == 0 {
			if err := g.Validate(spec.Generator, domain.SQLTypeOther); err != nil {
				return Rule{}, fmt.Errorf("generator %s: %w", spec.Generator.Type, err)
			}
			return Rule{}, fmt.Errorf("generator %s fits no column type", spec.Generator.Type)
		}
		gen = g
	}

	params := spec.Generator.Params
	return Rule{
		Name:     spec.Name,
		Types:    types,
		Patterns: spec.Match,
		Exclude:  spec.Exclude,
		Produce: func(env *Env, col domain.ColumnDescriptor) (any, error) {
			return gen.Generate(env.Rand, generators.GeneratorContext{
				RowIndex: env.RowIndex,
				Column:   col,
				Params:   params,
			})
		},
	}, nil
}
