package synth

import (
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/IGLOU-EU/go-wildcard/v2"
	"github.com/go-faker/faker/v4"
	"github.com/shopspring/decimal"

	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/mmrzaf/tablefill/internal/generators"
	"github.com/mmrzaf/tablefill/internal/locale"
	"github.com/mmrzaf/tablefill/internal/timeutil"
)

// Env is what a producer may draw on. One Env belongs to one plan.
type Env struct {
	Rand     *rand.Rand
	Locale   locale.Pack
	Now      time.Time
	Dates    timeutil.Window
	Recent   timeutil.Window
	RowIndex int64
	// Rows is the planned row count, 0 when unknown.
	Rows int64
}

type Producer func(env *Env, col domain.ColumnDescriptor) (any, error)

// Rule maps column names to a producer. Patterns are case-insensitive
// substrings, or wildcards when they contain '*' or '?'. An empty Types list
// accepts every type; a rule with neither Patterns nor Tokens accepts every
// name.
type Rule struct {
	Name     string
	Types    []domain.SQLType
	Patterns []string
	Exclude  []string
	// Tokens match whole words of the name, split at underscores, spaces,
	// digits and camel-case humps, so "CustomerAge" matches "age" and
	// "AgentID" does not.
	Tokens  []string
	Produce Producer
	// Format, when set, is the contract every produced value satisfies.
	Format func(any) bool
}

// Matches reports whether the rule applies to col.
func (r Rule) Matches(col domain.ColumnDescriptor) bool {
	if len(r.Types) > 0 && !containsType(r.Types, col.Type) {
		return false
	}
	name := strings.ToLower(col.Name)
	for _, ex := range r.Exclude {
		if matchName(ex, name) {
			return false
		}
	}
	if len(r.Patterns) == 0 && len(r.Tokens) == 0 {
		return true
	}
	for _, p := range r.Patterns {
		if matchName(p, name) {
			return true
		}
	}
	if len(r.Tokens) > 0 {
		for _, tok := range nameTokens(col.Name) {
			for _, want := range r.Tokens {
				if tok == strings.ToLower(want) {
					return true
				}
			}
		}
	}
	return false
}

// nameTokens splits a column name into lowercase words.
func nameTokens(name string) []string {
	runes := []rune(name)
	var tokens []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if len(cur) > 0 {
			prev := cur[len(cur)-1]
			switch {
			case unicode.IsDigit(r) != unicode.IsDigit(prev):
				flush()
			case unicode.IsUpper(r) && unicode.IsLower(prev):
				flush()
			case unicode.IsUpper(r) && unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return tokens
}

func matchName(pattern, name string) bool {
	pattern = strings.ToLower(pattern)
	if strings.ContainsAny(pattern, "*?") {
		if !strings.HasPrefix(pattern, "*") {
			pattern = "*" + pattern
		}
		if !strings.HasSuffix(pattern, "*") {
			pattern += "*"
		}
		return wildcard.Match(pattern, name)
	}
	return strings.Contains(name, pattern)
}

func containsType(types []domain.SQLType, t domain.SQLType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

var (
	text     = []domain.SQLType{domain.SQLTypeVarchar}
	integers = []domain.SQLType{domain.SQLTypeInt, domain.SQLTypeBigInt}
	temporal = []domain.SQLType{domain.SQLTypeDate, domain.SQLTypeDateTime}

	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[A-Za-z]{2,}$`)

	moneyMin = decimal.New(1000, -2)
	moneyMax = decimal.New(100000, -2)
)

// BuiltinRules returns the ordered naming catalog for a locale. Earlier rules
// win. Email leads so EmailAddress is not read as a street address; the rest
// run address first, then person names, then contact details. The generic
// name rule leaves company names to the company rule.
func BuiltinRules(pack locale.Pack, now time.Time) []Rule {
	states := make(map[string]bool)
	for _, s := range pack.States() {
		states[s] = true
	}

	return []Rule{
		{
			Name:     "email",
			Types:    text,
			Patterns: []string{"*email*", "*e_mail*"},
			Produce:  produceEmail,
			Format:   func(v any) bool { s, ok := v.(string); return ok && emailRe.MatchString(s) },
		},
		{
			Name:     "address",
			Types:    text,
			Patterns: []string{"address", "street"},
			Produce:  func(env *Env, _ domain.ColumnDescriptor) (any, error) { return env.Locale.StreetAddress(env.Rand), nil },
		},
		{
			Name:     "city",
			Types:    text,
			Patterns: []string{"city", "suburb", "town"},
			Produce:  func(env *Env, _ domain.ColumnDescriptor) (any, error) { return env.Locale.City(env.Rand), nil },
		},
		{
			Name:     "state",
			Types:    text,
			Patterns: []string{"state"},
			Exclude:  []string{"statement", "status"},
			Produce:  func(env *Env, _ domain.ColumnDescriptor) (any, error) { return env.Locale.StateAbbr(env.Rand), nil },
			Format:   func(v any) bool { s, ok := v.(string); return ok && states[s] },
		},
		{
			Name:     "postcode",
			Types:    []domain.SQLType{domain.SQLTypeVarchar, domain.SQLTypeInt, domain.SQLTypeBigInt},
			Patterns: []string{"postal", "postcode", "zip"},
			Produce:  producePostcode,
			Format: func(v any) bool {
				switch val := v.(type) {
				case string:
					return pack.PostcodePattern().MatchString(val)
				case int64:
					return val >= 0
				}
				return false
			},
		},
		{
			Name:     "country",
			Types:    text,
			Patterns: []string{"country"},
			Produce:  func(env *Env, _ domain.ColumnDescriptor) (any, error) { return env.Locale.Country(), nil },
		},
		{
			Name:     "first_name",
			Types:    text,
			Patterns: []string{"first*name", "given*name", "forename"},
			Produce:  func(*Env, domain.ColumnDescriptor) (any, error) { return faker.FirstName(), nil },
		},
		{
			Name:     "last_name",
			Types:    text,
			Patterns: []string{"last*name", "surname", "family*name"},
			Produce:  func(*Env, domain.ColumnDescriptor) (any, error) { return faker.LastName(), nil },
		},
		{
			Name:     "name",
			Types:    text,
			Patterns: []string{"name"},
			Exclude:  []string{"company", "organisation", "organization", "employer"},
			Produce:  func(*Env, domain.ColumnDescriptor) (any, error) { return faker.FirstName() + " " + faker.LastName(), nil },
		},
		{
			Name:     "phone",
			Types:    text,
			Patterns: []string{"phone", "mobile", "fax"},
			Produce:  func(env *Env, _ domain.ColumnDescriptor) (any, error) { return env.Locale.Phone(env.Rand), nil },
			Format:   matchesPattern(pack.PhonePattern()),
		},
		{
			Name:     "company",
			Types:    text,
			Patterns: []string{"company", "organisation", "organization", "employer"},
			Produce:  func(env *Env, _ domain.ColumnDescriptor) (any, error) { return env.Locale.Company(env.Rand), nil },
		},
		{
			Name:     "age",
			Types:    integers,
			Tokens:   []string{"age"},
			Produce:  intRange(18, 80),
			Format:   inIntRange(18, 80),
		},
		{
			Name:     "year",
			Types:    integers,
			Patterns: []string{"year"},
			Produce: func(env *Env, col domain.ColumnDescriptor) (any, error) {
				return generators.UniformInt(env.Rand, 1950, int64(env.Now.Year()))
			},
			Format: inIntRange(1950, int64(now.Year())),
		},
		{
			Name:     "money",
			Types:    []domain.SQLType{domain.SQLTypeDecimal},
			Patterns: []string{"price", "cost", "amount"},
			Produce:  produceMoney,
			// Narrow DECIMAL(p, s) columns pull the range below moneyMin.
			Format: func(v any) bool {
				d, ok := v.(decimal.Decimal)
				return ok && !d.IsNegative() && !d.GreaterThan(moneyMax) && d.Exponent() >= -2
			},
		},
		{
			Name:     "birth_date",
			Types:    temporal,
			Patterns: []string{"birth", "dob"},
			Produce: func(env *Env, col domain.ColumnDescriptor) (any, error) {
				w := timeutil.Window{Start: env.Now.AddDate(-80, 0, 0), End: env.Now.AddDate(-18, 0, 0)}
				return instantIn(env.Rand, w, col.Type), nil
			},
		},
		{
			Name:     "recent",
			Types:    temporal,
			Patterns: []string{"created", "updated", "modified"},
			Produce: func(env *Env, col domain.ColumnDescriptor) (any, error) {
				return instantIn(env.Rand, env.Recent, col.Type), nil
			},
		},
		{
			Name:    "boolean",
			Types:   []domain.SQLType{domain.SQLTypeBit},
			Produce: func(env *Env, _ domain.ColumnDescriptor) (any, error) { return env.Rand.Intn(2) == 1, nil },
			Format:  func(v any) bool { _, ok := v.(bool); return ok },
		},
	}
}

func produceEmail(env *Env, col domain.ColumnDescriptor) (any, error) {
	for i := 0; i < 3; i++ {
		e := faker.Email()
		if col.MaxLength == nil || len(e) <= *col.MaxLength {
			return e, nil
		}
	}
	// Narrow columns get a short local part on a short domain.
	domainPart := "@ex.au"
	local := 8
	if col.MaxLength != nil {
		local = *col.MaxLength - len(domainPart)
	}
	if local < 1 {
		local = 1
	}
	return strings.ToLower(randomAlnum(env.Rand, local)) + domainPart, nil
}

func producePostcode(env *Env, col domain.ColumnDescriptor) (any, error) {
	pc := env.Locale.Postcode(env.Rand)
	if col.Type.IsInteger() {
		n, err := strconv.ParseInt(pc, 10, 64)
		if err != nil {
			return nil, err
		}
		return n, nil
	}
	return pc, nil
}

func produceMoney(env *Env, col domain.ColumnDescriptor) (any, error) {
	scale := int32(2)
	if col.Scale != nil && *col.Scale < 2 {
		scale = int32(*col.Scale)
	}
	lo, hi := decimalBounds(col, moneyMin, moneyMax)
	return generators.UniformDecimal(env.Rand, lo, hi, scale)
}

func intRange(lo, hi int64) Producer {
	return func(env *Env, _ domain.ColumnDescriptor) (any, error) {
		return generators.UniformInt(env.Rand, lo, hi)
	}
}

func inIntRange(lo, hi int64) func(any) bool {
	return func(v any) bool {
		n, ok := v.(int64)
		return ok && n >= lo && n <= hi
	}
}

func matchesPattern(re *regexp.Regexp) func(any) bool {
	return func(v any) bool {
		s, ok := v.(string)
		return ok && re.MatchString(s)
	}
}
