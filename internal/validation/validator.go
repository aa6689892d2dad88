package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/mmrzaf/tablefill/internal/locale"
	"github.com/mmrzaf/tablefill/internal/registry"
	"github.com/mmrzaf/tablefill/internal/timeutil"
)

type Validator struct {
	genRegistry *registry.GeneratorRegistry
}

func NewValidator(genRegistry *registry.GeneratorRegistry) *Validator {
	if genRegistry == nil {
		genRegistry = registry.DefaultGeneratorRegistry()
	}
	return &Validator{genRegistry: genRegistry}
}

// identifier validation: allow simple SQL identifiers only (prevents injection via profile fields).
var (
	identRe       = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	reservedWords = map[string]struct{}{
		"add": {}, "all": {}, "alter": {}, "and": {}, "any": {}, "as": {},
		"asc": {}, "between": {}, "by": {}, "case": {}, "check": {},
		"column": {}, "constraint": {}, "create": {}, "cross": {}, "current_date": {},
		"current_time": {}, "current_timestamp": {}, "database": {}, "default": {}, "delete": {},
		"desc": {}, "distinct": {}, "do": {}, "drop": {}, "else": {},
		"end": {}, "except": {}, "exists": {}, "false": {}, "for": {},
		"foreign": {}, "from": {}, "full": {}, "grant": {}, "group": {},
		"having": {}, "in": {}, "index": {}, "inner": {}, "insert": {},
		"intersect": {}, "into": {}, "is": {}, "join": {}, "key": {},
		"left": {}, "like": {}, "limit": {}, "natural": {}, "not": {},
		"null": {}, "offset": {}, "on": {}, "or": {}, "order": {},
		"outer": {}, "primary": {}, "references": {}, "returning": {}, "revoke": {},
		"right": {}, "schema": {}, "select": {}, "set": {}, "table": {},
		"then": {}, "to": {}, "true": {}, "truncate": {}, "union": {},
		"unique": {}, "update": {}, "user": {}, "using": {}, "values": {},
		"view": {}, "when": {}, "where": {}, "with": {},
	}
)

func IsValidIdentifier(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if !identRe.MatchString(s) {
		return false
	}
	if _, ok := reservedWords[strings.ToLower(s)]; ok {
		return false
	}
	return true
}

// IsValidTableName accepts "table" or "schema.table". Reserved words are
// allowed because targets quote every identifier.
func IsValidTableName(s string) bool {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) > 2 {
		return false
	}
	for _, p := range parts {
		if !identRe.MatchString(p) {
			return false
		}
	}
	return true
}

func IsValidKind(kind string) bool {
	switch kind {
	case domain.TargetKindPostgres, domain.TargetKindSQLite, domain.TargetKindMySQL, domain.TargetKindSQLServer:
		return true
	default:
		return false
	}
}

// sqlServerOptions are the profile keys a SQL Server DSN can be assembled
// from.
var sqlServerOptions = map[string]struct{}{
	"server": {}, "port": {}, "instance": {}, "database": {}, "username": {}, "password": {},
	"encrypt": {}, "trust_server_certificate": {}, "connection_timeout": {}, "driver": {},
}

func (v *Validator) ValidateTarget(t *domain.TargetConfig) error {
	if t == nil {
		return errors.New("target is required")
	}
	if t.Name == "" {
		return errors.New("target name is required")
	}
	if t.Kind == "" {
		return errors.New("target kind is required")
	}
	if !IsValidKind(t.Kind) {
		return fmt.Errorf("unsupported target kind: %s", t.Kind)
	}
	if t.Database != "" && !IsValidIdentifier(t.Database) {
		return fmt.Errorf("invalid target database identifier: %s", t.Database)
	}
	if t.Schema != "" && !IsValidIdentifier(t.Schema) {
		return fmt.Errorf("invalid target schema identifier: %s", t.Schema)
	}

	switch t.Kind {
	case domain.TargetKindSQLite:
		if t.DSN == "" {
			return errors.New("target dsn is required")
		}
		if t.Schema != "" || t.Database != "" {
			return errors.New("sqlite targets must not set schema or database")
		}
	case domain.TargetKindPostgres:
		if t.DSN == "" {
			return errors.New("target dsn is required")
		}
	case domain.TargetKindMySQL:
		if t.DSN == "" {
			return errors.New("target dsn is required")
		}
		if _, err := mysql.ParseDSN(t.DSN); err != nil {
			return fmt.Errorf("invalid mysql dsn: %w", err)
		}
		if t.Schema != "" {
			return errors.New("mysql targets use database, not schema")
		}
	case domain.TargetKindSQLServer:
		for k := range t.Options {
			if _, ok := sqlServerOptions[strings.ToLower(k)]; !ok {
				return fmt.Errorf("unknown sqlserver option: %s", k)
			}
		}
		if t.DSN == "" && strings.TrimSpace(t.Options["server"]) == "" {
			return errors.New("sqlserver targets need a dsn or a server option")
		}
	}

	return nil
}

func (v *Validator) ValidatePopulateRequest(req *domain.PopulateRequest) error {
	if req == nil {
		return errors.New("request is required")
	}
	if req.SchemaPath == "" && req.Table == "" {
		return errors.New("either schema_path or table must be provided")
	}
	if req.Table != "" && !IsValidTableName(req.Table) {
		return fmt.Errorf("invalid table name: %s", req.Table)
	}
	if req.TargetID != "" && req.Target != nil {
		return errors.New("only one of target_id or target must be provided")
	}
	if req.Rows <= 0 {
		return fmt.Errorf("rows must be > 0, got %d", req.Rows)
	}
	if req.BatchSize < 0 {
		return fmt.Errorf("batch_size must be >= 0, got %d", req.BatchSize)
	}
	if req.Locale != "" {
		if _, err := locale.Lookup(req.Locale); err != nil {
			return err
		}
	}
	if req.Target != nil {
		if err := v.ValidateTarget(req.Target); err != nil {
			return fmt.Errorf("target validation failed: %w", err)
		}
	}
	return nil
}

// ValidateRuleSet checks a custom rules file before any rule is compiled.
func (v *Validator) ValidateRuleSet(set *domain.RuleSet) error {
	if set == nil {
		return nil
	}
	names := make(map[string]bool)
	for i, r := range set.Rules {
		label := r.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		}
		if err := v.validateRule(r, names); err != nil {
			return fmt.Errorf("rule %s: %w", label, err)
		}
	}
	return nil
}

func (v *Validator) validateRule(r domain.RuleSpec, names map[string]bool) error {
	if r.Name == "" {
		return errors.New("rule name is required")
	}
	key := strings.ToLower(r.Name)
	if names[key] {
		return fmt.Errorf("duplicate rule name: %s", r.Name)
	}
	names[key] = true

	if len(r.Match) == 0 {
		return errors.New("rule needs at least one match pattern")
	}
	for _, p := range append(append([]string{}, r.Match...), r.Exclude...) {
		if strings.TrimSpace(p) == "" {
			return errors.New("empty pattern")
		}
	}

	if r.Generator.Type == "" {
		return errors.New("generator type is required")
	}
	gen, err := v.genRegistry.Get(r.Generator.Type)
	if err != nil {
		return fmt.Errorf("generator not found: %s", r.Generator.Type)
	}

	for _, name := range r.Types {
		t, ok := domain.ParseSQLType(name)
		if !ok {
			return fmt.Errorf("invalid column type: %s", name)
		}
		if err := gen.Validate(r.Generator, t); err != nil {
			return fmt.Errorf("generator validation failed: %w", err)
		}
	}
	return nil
}

// ValidateWindow checks a window start such as "-90d" or "2024-01-01".
func ValidateWindow(start string) error {
	if _, err := timeutil.ParseRelativeTime(start, time.Now()); err != nil {
		return fmt.Errorf("invalid window %q: %w", start, err)
	}
	return nil
}
