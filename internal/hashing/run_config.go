package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/mmrzaf/tablefill/internal/domain"
)

// RunSettings are the knobs besides schema and target that change what a run
// writes.
type RunSettings struct {
	Rows      int64
	Seed      int64
	Locale    string
	NullRate  float64
	BatchSize int
	Rules     *domain.RuleSet
}

type ruleHashPayload struct {
	Name      string                 `json:"name"`
	Match     []string               `json:"match"`
	Exclude   []string               `json:"exclude,omitempty"`
	Types     []string               `json:"types,omitempty"`
	Generator map[string]interface{} `json:"generator"`
}

type runConfigHashPayload struct {
	SchemaHash   string            `json:"schema_hash"`
	TargetKind   string            `json:"target_kind"`
	TargetSchema string            `json:"target_schema,omitempty"`
	TargetDSN    string            `json:"target_dsn"`
	Rows         int64             `json:"rows"`
	Seed         int64             `json:"seed"`
	Locale       string            `json:"locale"`
	NullRate     float64           `json:"null_rate"`
	BatchSize    int               `json:"batch_size"`
	Rules        []ruleHashPayload `json:"rules,omitempty"`
}

// HashRunConfig identifies a run's inputs, so two runs with equal hashes
// asked for the same data. Rule order is significant: the first match wins.
func HashRunConfig(table *domain.TableSchema, target *domain.TargetConfig, s RunSettings) (string, error) {
	sh, err := HashTableSchema(table)
	if err != nil {
		return "", err
	}

	p := runConfigHashPayload{
		SchemaHash: sh,
		Rows:       s.Rows,
		Seed:       s.Seed,
		Locale:     s.Locale,
		NullRate:   s.NullRate,
		BatchSize:  s.BatchSize,
	}
	if target != nil {
		p.TargetKind = target.Kind
		p.TargetSchema = target.Schema
		p.TargetDSN = target.DSN
	}
	if s.Rules != nil {
		for _, r := range s.Rules.Rules {
			p.Rules = append(p.Rules, ruleHashPayload{
				Name:      r.Name,
				Match:     r.Match,
				Exclude:   r.Exclude,
				Types:     r.Types,
				Generator: canonicalizeGeneratorSpec(r.Generator),
			})
		}
	}

	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
