package synth

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmrzaf/tablefill/internal/domain"
)

type planStep struct {
	col      domain.ColumnDescriptor
	decision Decision
	rule     *Rule
}

// Plan holds the per-column decisions for one table and the values already
// issued to key columns. Key values are distinct across every row a plan
// emits, and never beyond it.
type Plan struct {
	s       *Synthesizer
	table   *domain.TableSchema
	steps   []planStep
	columns []string
	skipped []string

	mu   sync.Mutex
	env  *Env
	row  int64
	seen map[string]map[string]struct{}
}

type PlanOption func(*planConfig)

type planConfig struct {
	rows int64
}

// ExpectedRows tells the plan how many rows it will emit, which widens the
// fallback range of integer keys.
func ExpectedRows(n int64) PlanOption {
	return func(c *planConfig) { c.rows = n }
}

// Plan decides every column once. A column whose type has no producer fails
// the whole plan with *UnsupportedTypeError.
func (s *Synthesizer) Plan(table *domain.TableSchema, opts ...PlanOption) (*Plan, error) {
	if table == nil {
		return nil, fmt.Errorf("nil table")
	}
	cfg := planConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	env, err := s.newEnv(cfg.rows)
	if err != nil {
		return nil, err
	}

	p := &Plan{
		s:     s,
		table: table,
		env:   env,
		seen:  make(map[string]map[string]struct{}),
	}
	for _, col := range table.Columns {
		d := s.Decide(col)
		step := planStep{col: col, decision: d}
		switch d.Tier {
		case TierSkip:
			p.skipped = append(p.skipped, col.Name)
		case TierPattern:
			step.rule = s.match(col)
		case TierFallback:
			if _, ok := s.fallback[col.Type]; !ok {
				return nil, &UnsupportedTypeError{Column: col.Name, Type: col.Type}
			}
		}
		if d.Tier != TierSkip {
			p.columns = append(p.columns, col.Name)
			if col.IsKey() {
				p.seen[col.Name] = make(map[string]struct{})
			}
		}
		p.steps = append(p.steps, step)

		s.logger.Debugw("synth.column_planned", map[string]any{
			"table": table.Name, "column": col.Name, "tier": d.Tier.String(),
			"rule": d.Rule, "skip": d.Skip.String(),
		})
	}
	return p, nil
}

func (p *Plan) Table() *domain.TableSchema {
	return p.table
}

// Columns lists the generated columns in declaration order, i.e. the insert
// column list.
func (p *Plan) Columns() []string {
	out := make([]string, len(p.columns))
	copy(out, p.columns)
	return out
}

// Skipped lists the identity and defaulted columns left to the datastore.
func (p *Plan) Skipped() []string {
	out := make([]string, len(p.skipped))
	copy(out, p.skipped)
	return out
}

func (p *Plan) Decisions() map[string]Decision {
	out := make(map[string]Decision, len(p.steps))
	for _, st := range p.steps {
		out[st.col.Name] = st.decision
	}
	return out
}

// NextRow generates one row. On error no key value of the failed row stays
// reserved and the error is a *RowError.
func (p *Plan) NextRow() (domain.Row, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	index := p.row
	p.row++
	p.env.RowIndex = index

	row := domain.Row{
		Columns: make([]string, 0, len(p.columns)),
		Values:  make([]any, 0, len(p.columns)),
	}
	reserved := make(map[string]string)

	for _, st := range p.steps {
		if st.decision.Tier == TierSkip {
			continue
		}
		v, err := p.nextValue(st, reserved)
		if err != nil {
			for col, key := range reserved {
				delete(p.seen[col], key)
			}
			return domain.Row{}, &RowError{Row: index, Column: st.col.Name, Err: err}
		}
		row.Columns = append(row.Columns, st.col.Name)
		row.Values = append(row.Values, v)
	}
	return row, nil
}

func (p *Plan) nextValue(st planStep, reserved map[string]string) (any, error) {
	seen, isKey := p.seen[st.col.Name]
	if !isKey {
		return p.s.produce(p.env, st.col, st.rule)
	}

	for attempt := 0; attempt < p.s.maxUniqueAttempts; attempt++ {
		v, err := p.s.produce(p.env, st.col, st.rule)
		if err != nil {
			return nil, err
		}
		key := uniqueKey(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		reserved[st.col.Name] = key
		return v, nil
	}
	return nil, &UniqueExhaustedError{Column: st.col.Name, Attempts: p.s.maxUniqueAttempts, Issued: len(seen)}
}

// uniqueKey compares strings case-insensitively, matching the default
// collation of most targets.
func uniqueKey(v any) string {
	switch val := v.(type) {
	case string:
		return strings.ToLower(val)
	case decimal.Decimal:
		return val.String()
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(val)
	}
}

// fit coerces v to the column's Go representation and clamps it to the
// declared size: strings are cut to MaxLength runes, integers to the type's
// range, decimals to the declared precision and scale.
func fit(col domain.ColumnDescriptor, v any) any {
	if v == nil {
		return nil
	}
	switch col.Type {
	case domain.SQLTypeVarchar, domain.SQLTypeOther:
		s := toText(v)
		if col.MaxLength != nil {
			s = truncateRunes(s, *col.MaxLength)
		}
		return s
	case domain.SQLTypeInt, domain.SQLTypeBigInt:
		n, ok := toInt64(v)
		if !ok {
			return v
		}
		min, max := col.IntegerBounds()
		if n < min {
			n = min
		}
		if n > max {
			n = max
		}
		return n
	case domain.SQLTypeDecimal:
		d, ok := toDecimal(v)
		if !ok {
			return v
		}
		if col.Scale != nil {
			d = d.Round(int32(*col.Scale))
		}
		if col.Precision != nil {
			scale := int32(0)
			if col.Scale != nil {
				scale = int32(*col.Scale)
			}
			max := decimalMax(*col.Precision, scale)
			if d.GreaterThan(max) {
				d = max
			}
			if d.LessThan(max.Neg()) {
				d = max.Neg()
			}
		}
		return d
	case domain.SQLTypeBit:
		switch val := v.(type) {
		case bool:
			return val
		default:
			n, ok := toInt64(v)
			if ok {
				return n != 0
			}
		}
		return v
	case domain.SQLTypeUUID:
		return toText(v)
	default:
		return v
	}
}

func toText(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case decimal.Decimal:
		return val.String()
	case time.Time:
		return val.Format("2006-01-02 15:04:05")
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func toInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case float64:
		return int64(val), true
	case decimal.Decimal:
		return val.IntPart(), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case decimal.Decimal:
		return val, true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	case float64:
		return decimal.NewFromFloat(val), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}
