package schema

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mmrzaf/tablefill/internal/domain"
)

// ErrNoCreateTable is returned when a script holds no CREATE TABLE statement.
var ErrNoCreateTable = errors.New("no CREATE TABLE statement found")

// SchemaParseError reports a column whose declared type has no category. It
// is not fatal: the column degrades to domain.SQLTypeOther.
type SchemaParseError struct {
	Table        string
	Column       string
	DeclaredType string
	Reason       string
}

func (e *SchemaParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("table %s: %s", e.Table, e.Reason)
	}
	if e.DeclaredType == "" {
		return fmt.Sprintf("table %s, column %s: %s", e.Table, e.Column, e.Reason)
	}
	return fmt.Sprintf("table %s, column %s: unrecognized type %q: %s", e.Table, e.Column, e.DeclaredType, e.Reason)
}

// TypeInfo is the resolved category of a declared SQL type plus its size
// arguments.
type TypeInfo struct {
	Type      domain.SQLType
	MaxLength *int
	Precision *int
	Scale     *int
}

var baseTypes = map[string]domain.SQLType{
	"INT": domain.SQLTypeInt, "INTEGER": domain.SQLTypeInt, "SMALLINT": domain.SQLTypeInt,
	"TINYINT": domain.SQLTypeInt, "MEDIUMINT": domain.SQLTypeInt, "SERIAL": domain.SQLTypeInt,
	"SMALLSERIAL": domain.SQLTypeInt, "INT2": domain.SQLTypeInt, "INT4": domain.SQLTypeInt,

	"BIGINT": domain.SQLTypeBigInt, "BIGSERIAL": domain.SQLTypeBigInt, "INT8": domain.SQLTypeBigInt,

	"DECIMAL": domain.SQLTypeDecimal, "NUMERIC": domain.SQLTypeDecimal, "DEC": domain.SQLTypeDecimal,
	"MONEY": domain.SQLTypeDecimal, "SMALLMONEY": domain.SQLTypeDecimal, "FLOAT": domain.SQLTypeDecimal,
	"REAL": domain.SQLTypeDecimal, "DOUBLE": domain.SQLTypeDecimal, "DOUBLE PRECISION": domain.SQLTypeDecimal,
	"FLOAT4": domain.SQLTypeDecimal, "FLOAT8": domain.SQLTypeDecimal,

	"VARCHAR": domain.SQLTypeVarchar, "NVARCHAR": domain.SQLTypeVarchar, "CHAR": domain.SQLTypeVarchar,
	"NCHAR": domain.SQLTypeVarchar, "CHARACTER": domain.SQLTypeVarchar, "CHARACTER VARYING": domain.SQLTypeVarchar,
	"VARCHAR2": domain.SQLTypeVarchar, "NVARCHAR2": domain.SQLTypeVarchar, "TEXT": domain.SQLTypeVarchar,
	"NTEXT": domain.SQLTypeVarchar, "TINYTEXT": domain.SQLTypeVarchar, "MEDIUMTEXT": domain.SQLTypeVarchar,
	"LONGTEXT": domain.SQLTypeVarchar, "CLOB": domain.SQLTypeVarchar, "STRING": domain.SQLTypeVarchar,
	"CITEXT": domain.SQLTypeVarchar, "BPCHAR": domain.SQLTypeVarchar,

	"DATE": domain.SQLTypeDate,

	"DATETIME": domain.SQLTypeDateTime, "DATETIME2": domain.SQLTypeDateTime, "SMALLDATETIME": domain.SQLTypeDateTime,
	"DATETIMEOFFSET": domain.SQLTypeDateTime, "TIMESTAMP": domain.SQLTypeDateTime, "TIMESTAMPTZ": domain.SQLTypeDateTime,
	"TIMESTAMP WITH TIME ZONE": domain.SQLTypeDateTime, "TIMESTAMP WITHOUT TIME ZONE": domain.SQLTypeDateTime,

	"BIT": domain.SQLTypeBit, "BOOL": domain.SQLTypeBit, "BOOLEAN": domain.SQLTypeBit,

	"UUID": domain.SQLTypeUUID, "UNIQUEIDENTIFIER": domain.SQLTypeUUID,

	// Known types without a dedicated category.
	"JSON": domain.SQLTypeOther, "JSONB": domain.SQLTypeOther, "XML": domain.SQLTypeOther,
	"BLOB": domain.SQLTypeOther, "BYTEA": domain.SQLTypeOther, "VARBINARY": domain.SQLTypeOther,
	"BINARY": domain.SQLTypeOther, "IMAGE": domain.SQLTypeOther, "TIME": domain.SQLTypeOther,
	"INTERVAL": domain.SQLTypeOther, "GEOGRAPHY": domain.SQLTypeOther, "GEOMETRY": domain.SQLTypeOther,
	"HIERARCHYID": domain.SQLTypeOther, "SQL_VARIANT": domain.SQLTypeOther, "ROWVERSION": domain.SQLTypeOther,
	"INET": domain.SQLTypeOther, "CIDR": domain.SQLTypeOther, "ENUM": domain.SQLTypeOther,
}

// multiWordTypes are matched before splitting on whitespace.
var multiWordTypes = []string{
	"TIMESTAMP WITHOUT TIME ZONE",
	"TIMESTAMP WITH TIME ZONE",
	"DOUBLE PRECISION",
	"CHARACTER VARYING",
}

// ResolveType maps a declared type such as "NVARCHAR(100)" or
// "DECIMAL(10, 2)" onto a category. Unknown types return a
// *SchemaParseError together with a usable TypeInfo of SQLTypeOther.
func ResolveType(declared string) (TypeInfo, error) {
	norm := strings.ToUpper(strings.Join(strings.Fields(declared), " "))
	if strings.HasSuffix(norm, "[]") {
		return TypeInfo{Type: domain.SQLTypeOther}, nil
	}
	norm = strings.NewReplacer("[", "", "]", "", `"`, "").Replace(norm)
	norm = strings.TrimSuffix(norm, " UNSIGNED")
	if norm == "" {
		return TypeInfo{Type: domain.SQLTypeOther}, &SchemaParseError{DeclaredType: declared, Reason: "empty type"}
	}

	base, args := splitTypeArgs(norm)
	category, ok := baseTypes[base]
	if !ok {
		return TypeInfo{Type: domain.SQLTypeOther}, &SchemaParseError{DeclaredType: declared, Reason: "no matching type category"}
	}

	info := TypeInfo{Type: category}
	switch category {
	case domain.SQLTypeVarchar:
		switch {
		case len(args) > 0 && args[0] == "MAX":
		case len(args) > 0:
			if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
				info.MaxLength = &n
			}
		case base == "CHAR" || base == "NCHAR" || base == "CHARACTER":
			one := 1
			info.MaxLength = &one
		}
	case domain.SQLTypeDecimal:
		if base == "DECIMAL" || base == "NUMERIC" || base == "DEC" {
			if len(args) > 0 {
				if p, err := strconv.Atoi(args[0]); err == nil {
					info.Precision = &p
					s := 0
					if len(args) > 1 {
						if v, err := strconv.Atoi(args[1]); err == nil {
							s = v
						}
					}
					info.Scale = &s
				}
			}
		}
	}
	return info, nil
}

func splitTypeArgs(norm string) (string, []string) {
	for _, mw := range multiWordTypes {
		if strings.HasPrefix(norm, mw) {
			rest := strings.TrimSpace(norm[len(mw):])
			return mw, parseArgs(rest)
		}
	}

	base := norm
	rest := ""
	if idx := strings.Index(norm, "("); idx >= 0 {
		base = strings.TrimSpace(norm[:idx])
		rest = norm[idx:]
	}
	// "TIMESTAMP(3) WITH TIME ZONE" and similar trailing qualifiers.
	if fields := strings.Fields(base); len(fields) > 1 {
		base = fields[0]
	}
	return base, parseArgs(rest)
}

func parseArgs(s string) []string {
	start := strings.Index(s, "(")
	end := strings.Index(s, ")")
	if start < 0 || end < start {
		return nil
	}
	parts := strings.Split(s[start+1:end], ",")
	args := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			args = append(args, p)
		}
	}
	return args
}
