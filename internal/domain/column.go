package domain

import (
	"math"
	"strings"
)

type SQLType string

const (
	SQLTypeInt      SQLType = "int"
	SQLTypeBigInt   SQLType = "bigint"
	SQLTypeDecimal  SQLType = "decimal"
	SQLTypeVarchar  SQLType = "varchar"
	SQLTypeDate     SQLType = "date"
	SQLTypeDateTime SQLType = "datetime"
	SQLTypeBit      SQLType = "bit"
	SQLTypeUUID     SQLType = "uuid"
	SQLTypeOther    SQLType = "other"
)

// AllSQLTypes lists every type category the introspector can resolve to.
func AllSQLTypes() []SQLType {
	return []SQLType{
		SQLTypeInt, SQLTypeBigInt, SQLTypeDecimal, SQLTypeVarchar,
		SQLTypeDate, SQLTypeDateTime, SQLTypeBit, SQLTypeUUID, SQLTypeOther,
	}
}

func ParseSQLType(s string) (SQLType, bool) {
	t := SQLType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllSQLTypes() {
		if t == known {
			return t, true
		}
	}
	return "", false
}

func (t SQLType) IsInteger() bool {
	return t == SQLTypeInt || t == SQLTypeBigInt
}

func (t SQLType) IsTemporal() bool {
	return t == SQLTypeDate || t == SQLTypeDateTime
}

// ColumnDescriptor is the normalized view of one table column. Values are
// treated as immutable once the introspector has produced them.
type ColumnDescriptor struct {
	Name         string  `json:"name" yaml:"name"`
	Type         SQLType `json:"type" yaml:"type"`
	DeclaredType string  `json:"declared_type,omitempty" yaml:"declared_type,omitempty"`
	MaxLength    *int    `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	Precision    *int    `json:"precision,omitempty" yaml:"precision,omitempty"`
	Scale        *int    `json:"scale,omitempty" yaml:"scale,omitempty"`
	Nullable     bool    `json:"nullable" yaml:"nullable"`
	Identity     bool    `json:"identity,omitempty" yaml:"identity,omitempty"`
	HasDefault   bool    `json:"has_default,omitempty" yaml:"has_default,omitempty"`
	Default      string  `json:"default,omitempty" yaml:"default,omitempty"`
	PrimaryKey   bool    `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	CompositeKey bool    `json:"composite_key,omitempty" yaml:"composite_key,omitempty"`
	Unique       bool    `json:"unique,omitempty" yaml:"unique,omitempty"`
	Position     int     `json:"position" yaml:"position"`
}

// IsKey reports whether generated values must be distinct within a batch.
// Members of a multi-column primary key are only unique as a tuple.
func (c ColumnDescriptor) IsKey() bool {
	return (c.PrimaryKey && !c.CompositeKey) || c.Unique
}

// IntegerBounds returns the representable range of an integer column, read
// from the declared type where it narrows the category default.
func (c ColumnDescriptor) IntegerBounds() (int64, int64) {
	declared := strings.ToUpper(strings.TrimSpace(c.DeclaredType))
	switch {
	case strings.HasPrefix(declared, "TINYINT"):
		if strings.Contains(declared, "UNSIGNED") || !strings.Contains(declared, "(") {
			return 0, 255
		}
		return -128, 127
	case strings.HasPrefix(declared, "SMALLINT"), strings.HasPrefix(declared, "SMALLSERIAL"), strings.HasPrefix(declared, "INT2"):
		return -32768, 32767
	case strings.HasPrefix(declared, "MEDIUMINT"):
		return -8388608, 8388607
	}
	if c.Type == SQLTypeBigInt {
		return math.MinInt64, math.MaxInt64
	}
	return math.MinInt32, math.MaxInt32
}

type TableSchema struct {
	Name     string             `json:"name" yaml:"name"`
	Schema   string             `json:"schema,omitempty" yaml:"schema,omitempty"`
	Columns  []ColumnDescriptor `json:"columns" yaml:"columns"`
	Source   string             `json:"source,omitempty" yaml:"source,omitempty"`
	Warnings []string           `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func (t *TableSchema) Qualified() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

func (t *TableSchema) Find(name string) (ColumnDescriptor, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ColumnDescriptor{}, false
}

type SkipReason int

const (
	SkipNone SkipReason = iota
	SkipIdentity
	SkipDefault
)

func (r SkipReason) String() string {
	switch r {
	case SkipIdentity:
		return "identity"
	case SkipDefault:
		return "default"
	default:
		return "none"
	}
}

// Value is one synthesized cell. A skipped value carries no data: the
// datastore supplies it.
type Value struct {
	Data any
	Skip SkipReason
}

func (v Value) Skipped() bool {
	return v.Skip != SkipNone
}

// Row holds the non-skipped columns of one generated row in column order.
type Row struct {
	Columns []string
	Values  []any
}

