package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/mmrzaf/tablefill/internal/logging"
)

type ParseOptions struct {
	// Dialect enables dialect-specific identity rules. Only "sqlite" changes
	// behavior today (INTEGER PRIMARY KEY aliases the rowid).
	Dialect string
	// InferIdentity treats a lone integer primary key without a default as an
	// identity column when the table declares no identity explicitly.
	InferIdentity bool
	Logger        *logging.Logger
}

var (
	commentRe        = regexp.MustCompile(`(?s)--[^\n]*|/\*.*?\*/`)
	goSeparatorRe    = regexp.MustCompile(`(?im)^\s*GO\s*$`)
	createTableRe    = regexp.MustCompile(`(?is)\bCREATE\s+(?:(?:GLOBAL\s+|LOCAL\s+)?(?:TEMP|TEMPORARY)\s+)?TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?((?:[\[\]"` + "`" + `\w#]+\.)*[\[\]"` + "`" + `\w#]+)\s*\(`)
	stringLiteralRe  = regexp.MustCompile(`'(?:[^']|'')*'`)
	identityRe       = regexp.MustCompile(`(?i)\bIDENTITY\b|\bAUTO_INCREMENT\b|\bAUTOINCREMENT\b|\bGENERATED\s+(?:ALWAYS|BY\s+DEFAULT)\s+AS\s+IDENTITY\b`)
	computedRe       = regexp.MustCompile(`(?i)\bGENERATED\s+ALWAYS\s+AS\s*\(`)
	notNullRe        = regexp.MustCompile(`(?i)\bNOT\s+NULL\b`)
	primaryKeyRe     = regexp.MustCompile(`(?i)\bPRIMARY\s+KEY\b`)
	uniqueRe         = regexp.MustCompile(`(?i)\bUNIQUE\b`)
	defaultKeywordRe = regexp.MustCompile(`(?i)\bDEFAULT\b`)
	constraintListRe = regexp.MustCompile(`(?is)^(?:CONSTRAINT\s+\S+\s+)?(PRIMARY\s+KEY|UNIQUE)(?:\s+(?:CLUSTERED|NONCLUSTERED|KEY|INDEX))?(?:\s+\S+)?\s*\(([^)]*)\)`)
)

var tableConstraintPrefixes = []string{
	"PRIMARY KEY", "FOREIGN KEY", "UNIQUE", "CHECK", "CONSTRAINT",
	"INDEX", "KEY", "FULLTEXT", "SPATIAL", "EXCLUDE", "PERIOD FOR",
}

// ParseCreateTable parses the first CREATE TABLE statement of a script.
func ParseCreateTable(sql string, opts ParseOptions) (*domain.TableSchema, error) {
	tables, err := ParseScript(sql, opts)
	if err != nil {
		return nil, err
	}
	return tables[0], nil
}

// ParseScript parses every CREATE TABLE statement of a script, keeping the
// order they appear in.
func ParseScript(sql string, opts ParseOptions) ([]*domain.TableSchema, error) {
	cleaned := commentRe.ReplaceAllString(sql, "")
	cleaned = goSeparatorRe.ReplaceAllString(cleaned, ";")

	tables := make([]*domain.TableSchema, 0)
	for _, stmt := range splitStatements(cleaned) {
		m := createTableRe.FindStringSubmatchIndex(stmt)
		if m == nil {
			continue
		}
		table, err := parseCreateTableStatement(stmt, stmt[m[2]:m[3]], m[1]-1, opts)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	if len(tables) == 0 {
		return nil, ErrNoCreateTable
	}
	return tables, nil
}

func parseCreateTableStatement(stmt, rawName string, openParen int, opts ParseOptions) (*domain.TableSchema, error) {
	logger := logging.OrDiscard(opts.Logger)

	schemaName, tableName := splitQualifiedName(rawName)
	closeParen := matchingParen(stmt, openParen)
	if closeParen < 0 {
		return nil, fmt.Errorf("table %s: unbalanced parentheses in CREATE TABLE", tableName)
	}

	table := &domain.TableSchema{
		Name:    tableName,
		Schema:  schemaName,
		Columns: make([]domain.ColumnDescriptor, 0),
	}

	var constraints []string
	for _, def := range splitTopLevel(stmt[openParen+1 : closeParen]) {
		def = strings.TrimSpace(def)
		if def == "" {
			continue
		}
		if isTableConstraint(def) {
			constraints = append(constraints, def)
			continue
		}

		col, perr := parseColumnDefinition(def)
		if perr != nil {
			perr.Table = tableName
			logger.Warnw("schema.type_unmapped", map[string]any{
				"table": tableName, "column": perr.Column, "declared_type": perr.DeclaredType,
			})
			table.Warnings = append(table.Warnings, perr.Error())
		}
		col.Position = len(table.Columns) + 1
		table.Columns = append(table.Columns, col)
	}

	if len(table.Columns) == 0 {
		return nil, &SchemaParseError{Table: tableName, Reason: "no column definitions"}
	}

	for _, c := range constraints {
		applyTableConstraint(table, c)
	}

	if strings.EqualFold(opts.Dialect, domain.TargetKindSQLite) {
		applySQLiteRowID(table)
	}
	if opts.InferIdentity {
		inferIdentity(table, logger)
	}
	return table, nil
}

// parseColumnDefinition never returns a nil column; a non-nil error with a
// DeclaredType means the type degraded to SQLTypeOther.
func parseColumnDefinition(def string) (domain.ColumnDescriptor, *SchemaParseError) {
	name, rest := splitFirstToken(def)
	col := domain.ColumnDescriptor{Name: unquoteIdent(name), Nullable: true}
	if rest == "" {
		col.Type = domain.SQLTypeOther
		return col, &SchemaParseError{Column: col.Name, Reason: "column has no type"}
	}

	// SQL Server computed column: Total AS (Qty * Price)
	if kw, _ := splitFirstToken(rest); strings.EqualFold(kw, "AS") {
		col.Type = domain.SQLTypeOther
		col.HasDefault = true
		col.Default = strings.TrimSpace(rest)
		return col, nil
	}

	declared, constraints := splitDeclaredType(rest)
	col.DeclaredType = declared

	// Keyword checks must not see string literals such as DEFAULT 'NOT NULL'.
	// Blanking keeps offsets aligned with constraints.
	bare := blankOut(stringLiteralRe, constraints)

	var perr *SchemaParseError
	info, err := ResolveType(declared)
	if err != nil {
		perr = &SchemaParseError{Column: col.Name, DeclaredType: declared, Reason: "degraded to generic producer"}
	}
	col.Type = info.Type
	col.MaxLength = info.MaxLength
	col.Precision = info.Precision
	col.Scale = info.Scale

	upperDeclared := strings.ToUpper(declared)
	if strings.HasPrefix(upperDeclared, "SERIAL") || strings.HasPrefix(upperDeclared, "BIGSERIAL") || strings.HasPrefix(upperDeclared, "SMALLSERIAL") {
		col.Identity = true
	}
	if identityRe.MatchString(bare) {
		col.Identity = true
	}
	if notNullRe.MatchString(bare) {
		col.Nullable = false
	}
	if primaryKeyRe.MatchString(bare) {
		col.PrimaryKey = true
		col.Nullable = false
	}
	if uniqueRe.MatchString(bare) {
		col.Unique = true
	}
	if loc := defaultKeywordRe.FindStringIndex(blankOut(identityRe, bare)); loc != nil {
		expr := readDefaultExpr(constraints, loc[1])
		switch {
		case strings.HasPrefix(strings.ToLower(expr), "nextval("):
			col.Identity = true
		case strings.EqualFold(expr, "NULL"), expr == "":
		default:
			col.HasDefault = true
			col.Default = expr
		}
	}
	if computedRe.MatchString(bare) {
		col.HasDefault = true
		if col.Default == "" {
			col.Default = "generated"
		}
	}
	return col, perr
}

// blankOut replaces every match with spaces of the same byte length.
func blankOut(re *regexp.Regexp, s string) string {
	return re.ReplaceAllStringFunc(s, func(m string) string {
		return strings.Repeat(" ", len(m))
	})
}

// splitDeclaredType separates "DECIMAL(10, 2) NOT NULL" into the type and the
// trailing constraint text.
func splitDeclaredType(rest string) (string, string) {
	upper := strings.ToUpper(rest)
	for _, mw := range multiWordTypes {
		if strings.HasPrefix(upper, mw) {
			end := len(mw)
			if tail := strings.TrimLeft(rest[end:], " \t"); strings.HasPrefix(tail, "(") {
				skip := len(rest[end:]) - len(tail)
				if cp := matchingParen(rest, end+skip); cp > 0 {
					end = cp + 1
				}
			}
			return strings.TrimSpace(rest[:end]), strings.TrimSpace(rest[end:])
		}
	}

	depth := 0
	for i, ch := range rest {
		switch {
		case ch == '(':
			depth++
		case ch == ')':
			depth--
			if depth == 0 {
				// Keep "TIMESTAMP(3) WITH TIME ZONE" together.
				tail := rest[i+1:]
				if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(tail)), "WITH") {
					for _, suffix := range []string{"WITH TIME ZONE", "WITHOUT TIME ZONE"} {
						trimmed := strings.TrimSpace(tail)
						if strings.HasPrefix(strings.ToUpper(trimmed), suffix) {
							cut := len(rest) - len(trimmed) + len(suffix)
							return strings.TrimSpace(rest[:cut]), strings.TrimSpace(rest[cut:])
						}
					}
				}
				return strings.TrimSpace(rest[:i+1]), strings.TrimSpace(rest[i+1:])
			}
		case depth == 0 && (ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'):
			// "UNSIGNED" belongs to the type in MySQL.
			tail := strings.TrimSpace(rest[i:])
			if strings.HasPrefix(strings.ToUpper(tail), "UNSIGNED") {
				cut := len(rest) - len(tail) + len("UNSIGNED")
				return strings.TrimSpace(rest[:cut]), strings.TrimSpace(rest[cut:])
			}
			if !strings.HasPrefix(tail, "(") {
				return strings.TrimSpace(rest[:i]), tail
			}
		}
	}
	return strings.TrimSpace(rest), ""
}

// readDefaultExpr returns the expression after DEFAULT: a string literal, a
// parenthesised expression, or a token with an optional call suffix.
func readDefaultExpr(s string, from int) string {
	rest := strings.TrimLeft(s[from:], " \t\r\n")
	if rest == "" {
		return ""
	}
	switch rest[0] {
	case '\'':
		if loc := stringLiteralRe.FindStringIndex(rest); loc != nil && loc[0] == 0 {
			return rest[:loc[1]]
		}
		return rest
	case '(':
		if cp := matchingParen(rest, 0); cp > 0 {
			return rest[:cp+1]
		}
		return rest
	}

	end := len(rest)
	for i, ch := range rest {
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' {
			end = i
			break
		}
		if ch == '(' {
			if cp := matchingParen(rest, i); cp > 0 {
				end = cp + 1
			}
			break
		}
	}
	return rest[:end]
}

func isTableConstraint(def string) bool {
	upper := strings.ToUpper(strings.Join(strings.Fields(def), " "))
	for _, prefix := range tableConstraintPrefixes {
		if strings.HasPrefix(upper, prefix+" ") || strings.HasPrefix(upper, prefix+"(") {
			return true
		}
	}
	return false
}

func applyTableConstraint(table *domain.TableSchema, def string) {
	m := constraintListRe.FindStringSubmatch(strings.TrimSpace(def))
	if m == nil {
		return
	}
	isPrimary := strings.HasPrefix(strings.ToUpper(m[1]), "PRIMARY")

	names := make([]string, 0)
	for _, part := range strings.Split(m[2], ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		names = append(names, unquoteIdent(fields[0]))
	}

	for _, name := range names {
		for i := range table.Columns {
			if !strings.EqualFold(table.Columns[i].Name, name) {
				continue
			}
			switch {
			case isPrimary:
				table.Columns[i].PrimaryKey = true
				table.Columns[i].Nullable = false
				table.Columns[i].CompositeKey = len(names) > 1
			case len(names) == 1:
				table.Columns[i].Unique = true
			}
		}
	}
}

// applySQLiteRowID marks "INTEGER PRIMARY KEY" as identity: SQLite assigns it.
func applySQLiteRowID(table *domain.TableSchema) {
	for i := range table.Columns {
		c := &table.Columns[i]
		if c.PrimaryKey && !c.CompositeKey && strings.EqualFold(strings.TrimSpace(c.DeclaredType), "INTEGER") {
			c.Identity = true
		}
	}
}

// inferIdentity is the heuristic fallback; explicit markers always win, so it
// does nothing when any column is already an identity.
func inferIdentity(table *domain.TableSchema, logger *logging.Logger) {
	candidate := -1
	for i, c := range table.Columns {
		if c.Identity {
			return
		}
		if c.PrimaryKey && !c.CompositeKey && c.Type.IsInteger() && !c.HasDefault {
			if candidate >= 0 {
				return
			}
			candidate = i
		}
	}
	if candidate < 0 {
		return
	}
	table.Columns[candidate].Identity = true
	logger.Debugw("schema.identity_inferred", map[string]any{
		"table": table.Name, "column": table.Columns[candidate].Name,
	})
}

func splitStatements(sql string) []string {
	parts := splitOutside(sql, ';', false)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitTopLevel(defs string) []string {
	return splitOutside(defs, ',', true)
}

// splitOutside splits on sep when it is outside quotes and, if nested is set,
// outside parentheses.
func splitOutside(s string, sep rune, nested bool) []string {
	var result []string
	var current strings.Builder
	depth := 0
	var quote rune

	for _, ch := range s {
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"' || ch == '`':
			quote = ch
		case ch == '[':
			quote = ']'
		case ch == '(':
			depth++
		case ch == ')':
			depth--
		case ch == sep && (!nested || depth == 0):
			result = append(result, current.String())
			current.Reset()
			continue
		}
		current.WriteRune(ch)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

// matchingParen returns the index of the parenthesis closing the one at open,
// skipping quoted text, or -1.
func matchingParen(s string, open int) int {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"' || ch == '`':
			quote = ch
		case ch == '(':
			depth++
		case ch == ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func splitFirstToken(s string) (string, string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	if s[0] == '[' || s[0] == '"' || s[0] == '`' {
		closer := byte(']')
		if s[0] != '[' {
			closer = s[0]
		}
		if end := strings.IndexByte(s[1:], closer); end >= 0 {
			return s[:end+2], strings.TrimSpace(s[end+2:])
		}
	}
	idx := strings.IndexAny(s, " \t\r\n")
	if idx < 0 {
		return s, ""
	}
	return s[:idx], strings.TrimSpace(s[idx+1:])
}

func splitQualifiedName(raw string) (string, string) {
	parts := splitOutside(raw, '.', false)
	for i := range parts {
		parts[i] = unquoteIdent(parts[i])
	}
	if len(parts) == 1 {
		return "", parts[0]
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}

func unquoteIdent(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ",")
	if len(s) >= 2 {
		switch {
		case s[0] == '[' && s[len(s)-1] == ']',
			s[0] == '"' && s[len(s)-1] == '"',
			s[0] == '`' && s[len(s)-1] == '`':
			return s[1 : len(s)-1]
		}
	}
	return s
}
