package schema

import (
	"strconv"
	"strings"

	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/mmrzaf/tablefill/internal/logging"
)

// CatalogColumn is one row of a datastore's column catalog, as read by the
// targets from information_schema, PRAGMA table_info and similar views.
type CatalogColumn struct {
	Name             string
	DataType         string
	CharMaxLength    *int64
	NumericPrecision *int64
	NumericScale     *int64
	Nullable         bool
	Default          *string
	Identity         bool
	PrimaryKey       bool
	Unique           bool
	Ordinal          int
}

// FromCatalog normalizes catalog rows into a TableSchema. Columns are kept in
// the order given; callers read them sorted by ordinal position.
func FromCatalog(table string, cols []CatalogColumn, opts ParseOptions) *domain.TableSchema {
	logger := logging.OrDiscard(opts.Logger)

	schemaName, tableName := splitQualifiedName(table)
	out := &domain.TableSchema{
		Name:    tableName,
		Schema:  schemaName,
		Columns: make([]domain.ColumnDescriptor, 0, len(cols)),
	}

	pkCount := 0
	for _, c := range cols {
		if c.PrimaryKey {
			pkCount++
		}
	}

	for i, c := range cols {
		declared := catalogDeclaredType(c)
		info, err := ResolveType(declared)
		if err != nil {
			perr := &SchemaParseError{Table: tableName, Column: c.Name, DeclaredType: declared, Reason: "degraded to generic producer"}
			logger.Warnw("schema.type_unmapped", map[string]any{
				"table": tableName, "column": c.Name, "declared_type": declared,
			})
			out.Warnings = append(out.Warnings, perr.Error())
		}

		col := domain.ColumnDescriptor{
			Name:         c.Name,
			Type:         info.Type,
			DeclaredType: declared,
			MaxLength:    info.MaxLength,
			Precision:    info.Precision,
			Scale:        info.Scale,
			Nullable:     c.Nullable && !c.PrimaryKey,
			Identity:     c.Identity,
			PrimaryKey:   c.PrimaryKey,
			CompositeKey: c.PrimaryKey && pkCount > 1,
			Unique:       c.Unique,
			Position:     i + 1,
		}

		if c.Default != nil && strings.TrimSpace(*c.Default) != "" {
			def := strings.TrimSpace(*c.Default)
			if strings.HasPrefix(strings.ToLower(def), "nextval(") {
				col.Identity = true
			} else if !strings.EqualFold(def, "NULL") {
				col.HasDefault = true
				col.Default = def
			}
		}
		upper := strings.ToUpper(declared)
		if strings.HasPrefix(upper, "SERIAL") || strings.HasPrefix(upper, "BIGSERIAL") || strings.HasPrefix(upper, "SMALLSERIAL") {
			col.Identity = true
		}

		out.Columns = append(out.Columns, col)
	}

	if strings.EqualFold(opts.Dialect, domain.TargetKindSQLite) {
		applySQLiteRowID(out)
	}
	if opts.InferIdentity {
		inferIdentity(out, logger)
	}
	return out
}

// catalogDeclaredType rebuilds "NVARCHAR(100)" style text from the separate
// catalog fields. A length of -1 is SQL Server's MAX.
func catalogDeclaredType(c CatalogColumn) string {
	dt := strings.TrimSpace(c.DataType)
	if strings.Contains(dt, "(") {
		return dt
	}

	info, _ := ResolveType(dt)
	switch info.Type {
	case domain.SQLTypeVarchar:
		if c.CharMaxLength != nil {
			if *c.CharMaxLength < 0 {
				return dt + "(MAX)"
			}
			if *c.CharMaxLength > 0 {
				return dt + "(" + strconv.FormatInt(*c.CharMaxLength, 10) + ")"
			}
		}
	case domain.SQLTypeDecimal:
		base, _ := splitTypeArgs(strings.ToUpper(dt))
		if (base == "DECIMAL" || base == "NUMERIC") && c.NumericPrecision != nil {
			scale := int64(0)
			if c.NumericScale != nil {
				scale = *c.NumericScale
			}
			return dt + "(" + strconv.FormatInt(*c.NumericPrecision, 10) + "," + strconv.FormatInt(scale, 10) + ")"
		}
	}
	return dt
}
