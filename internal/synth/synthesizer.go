// Package synth decides, per column, whether a value is generated at all and
// which producer makes it: skip for identity and defaulted columns, then the
// ordered naming rules, then a producer per SQL type.
package synth

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/mmrzaf/tablefill/internal/locale"
	"github.com/mmrzaf/tablefill/internal/logging"
	"github.com/mmrzaf/tablefill/internal/timeutil"
)

const (
	DefaultMaxUniqueAttempts = 64
	DefaultDateWindow        = "-1y"
	DefaultRecentWindow      = "-90d"

	formatAttempts = 8
)

type Tier int

const (
	TierSkip Tier = iota
	TierPattern
	TierFallback
)

func (t Tier) String() string {
	switch t {
	case TierSkip:
		return "skip"
	case TierPattern:
		return "pattern"
	default:
		return "fallback"
	}
}

// Decision is the outcome of the decision procedure for one column. Rule
// names the matching rule, or the type for the fallback tier.
type Decision struct {
	Tier Tier
	Skip domain.SkipReason
	Rule string
}

type Synthesizer struct {
	rng               *rand.Rand
	pack              locale.Pack
	custom            []Rule
	rules             []Rule
	fallback          map[domain.SQLType]Producer
	nullRate          float64
	clock             func() time.Time
	dateWindow        string
	recentWindow      string
	maxUniqueAttempts int
	logger            *logging.Logger
}

type Option func(*Synthesizer)

func WithLocale(pack locale.Pack) Option {
	return func(s *Synthesizer) {
		if pack != nil {
			s.pack = pack
		}
	}
}

// WithSeed makes every rng-driven producer repeatable. Faker-backed producers
// (names, emails, free text) use faker's own source and are not affected.
func WithSeed(seed int64) Option {
	return func(s *Synthesizer) { s.rng = newLockedRand(seed) }
}

// WithRules adds rules evaluated before the built-in catalog, in order.
func WithRules(rules []Rule) Option {
	return func(s *Synthesizer) { s.custom = append(s.custom, rules...) }
}

// WithNullRate sets the chance that a nullable, non-key column gets NULL.
func WithNullRate(rate float64) Option {
	return func(s *Synthesizer) {
		switch {
		case rate < 0:
			s.nullRate = 0
		case rate > 1:
			s.nullRate = 1
		default:
			s.nullRate = rate
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Synthesizer) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithDateWindow sets where fallback date values start, e.g. "-2y" or
// "2020-01-01". The window ends now.
func WithDateWindow(start string) Option {
	return func(s *Synthesizer) {
		if start != "" {
			s.dateWindow = start
		}
	}
}

// WithRecentWindow sets the window used for created/updated columns.
func WithRecentWindow(start string) Option {
	return func(s *Synthesizer) {
		if start != "" {
			s.recentWindow = start
		}
	}
}

func WithLogger(logger *logging.Logger) Option {
	return func(s *Synthesizer) { s.logger = logger }
}

func WithMaxUniqueAttempts(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.maxUniqueAttempts = n
		}
	}
}

func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{
		pack:              locale.Default(),
		fallback:          fallbackProducers(),
		clock:             time.Now,
		dateWindow:        DefaultDateWindow,
		recentWindow:      DefaultRecentWindow,
		maxUniqueAttempts: DefaultMaxUniqueAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = newLockedRand(time.Now().UnixNano())
	}
	s.logger = logging.OrDiscard(s.logger).WithComponent("synth")

	s.rules = make([]Rule, 0, len(s.custom)+20)
	s.rules = append(s.rules, s.custom...)
	s.rules = append(s.rules, BuiltinRules(s.pack, s.clock())...)
	return s
}

func (s *Synthesizer) Locale() locale.Pack {
	return s.pack
}

// Rules returns the effective catalog, custom rules first.
func (s *Synthesizer) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Decide runs the decision procedure. It depends only on the descriptor and
// the rule catalog, never on random state.
func (s *Synthesizer) Decide(col domain.ColumnDescriptor) Decision {
	if col.Identity {
		return Decision{Tier: TierSkip, Skip: domain.SkipIdentity}
	}
	if col.HasDefault {
		return Decision{Tier: TierSkip, Skip: domain.SkipDefault}
	}
	if r := s.match(col); r != nil {
		return Decision{Tier: TierPattern, Rule: r.Name}
	}
	return Decision{Tier: TierFallback, Rule: string(col.Type)}
}

func (s *Synthesizer) match(col domain.ColumnDescriptor) *Rule {
	for i := range s.rules {
		if s.rules[i].Matches(col) {
			return &s.rules[i]
		}
	}
	return nil
}

// Value produces one value for col with no uniqueness tracking.
func (s *Synthesizer) Value(col domain.ColumnDescriptor) (domain.Value, error) {
	vals, err := s.GenerateColumn(col, 1)
	if err != nil {
		return domain.Value{}, err
	}
	return vals[0], nil
}

// GenerateColumn produces n values for col. Values of a non-identity key
// column are distinct.
func (s *Synthesizer) GenerateColumn(col domain.ColumnDescriptor, n int) ([]domain.Value, error) {
	if n < 0 {
		return nil, fmt.Errorf("row count must not be negative: %d", n)
	}
	col.Position = 1
	p, err := s.Plan(&domain.TableSchema{Name: col.Name, Columns: []domain.ColumnDescriptor{col}}, ExpectedRows(int64(n)))
	if err != nil {
		return nil, err
	}

	out := make([]domain.Value, 0, n)
	step := p.steps[0]
	for i := 0; i < n; i++ {
		if step.decision.Tier == TierSkip {
			out = append(out, domain.Value{Skip: step.decision.Skip})
			continue
		}
		row, err := p.NextRow()
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Value{Data: row.Values[0]})
	}
	return out, nil
}

// GenerateRows produces n rows for table within one uniqueness scope.
func (s *Synthesizer) GenerateRows(table *domain.TableSchema, n int) ([]domain.Row, error) {
	if n < 0 {
		return nil, fmt.Errorf("row count must not be negative: %d", n)
	}
	p, err := s.Plan(table, ExpectedRows(int64(n)))
	if err != nil {
		return nil, err
	}
	rows := make([]domain.Row, 0, n)
	for i := 0; i < n; i++ {
		row, err := p.NextRow()
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Synthesizer) newEnv(rows int64) (*Env, error) {
	now := s.clock()
	dates, err := timeutil.ParseWindow(s.dateWindow, now)
	if err != nil {
		return nil, fmt.Errorf("date window: %w", err)
	}
	recent, err := timeutil.ParseWindow(s.recentWindow, now)
	if err != nil {
		return nil, fmt.Errorf("recent window: %w", err)
	}
	return &Env{
		Rand:   s.rng,
		Locale: s.pack,
		Now:    now,
		Dates:  dates,
		Recent: recent,
		Rows:   rows,
	}, nil
}

// produce draws one raw value and fits it to the column.
func (s *Synthesizer) produce(env *Env, col domain.ColumnDescriptor, rule *Rule) (any, error) {
	if s.nullRate > 0 && col.Nullable && !col.IsKey() && env.Rand.Float64() < s.nullRate {
		return nil, nil
	}

	if rule == nil {
		p, ok := s.fallback[col.Type]
		if !ok {
			return nil, &UnsupportedTypeError{Column: col.Name, Type: col.Type}
		}
		v, err := p(env, col)
		if err != nil {
			return nil, err
		}
		return fit(col, v), nil
	}

	for attempt := 0; attempt < formatAttempts; attempt++ {
		v, err := rule.Produce(env, col)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.Name, err)
		}
		if rule.Format == nil || rule.Format(v) {
			return fit(col, v), nil
		}
	}
	return nil, fmt.Errorf("rule %s: no well-formed value after %d attempts", rule.Name, formatAttempts)
}
