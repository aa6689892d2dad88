package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/mmrzaf/tablefill/internal/domain"
)

// HashTableSchema fingerprints the parts of a table that drive synthesis:
// column order, names, categories, sizes and the skip and key flags. Source,
// warnings and declared-type spelling do not change the hash.
func HashTableSchema(table *domain.TableSchema) (string, error) {
	canonical := canonicalizeTable(table)
	data, err := json.Marshal(canonical)
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

func canonicalizeTable(table *domain.TableSchema) map[string]interface{} {
	columns := make([]map[string]interface{}, len(table.Columns))
	for i, col := range table.Columns {
		colMap := map[string]interface{}{
			"name":     strings.ToLower(col.Name),
			"type":     col.Type,
			"nullable": col.Nullable,
			"identity": col.Identity,
			"default":  col.HasDefault,
			"pk":       col.PrimaryKey,
			"unique":   col.IsKey(),
		}
		if col.MaxLength != nil {
			colMap["max_length"] = *col.MaxLength
		}
		if col.Precision != nil {
			colMap["precision"] = *col.Precision
		}
		if col.Scale != nil {
			colMap["scale"] = *col.Scale
		}
		columns[i] = colMap
	}

	return map[string]interface{}{
		"name":    strings.ToLower(table.Name),
		"columns": columns,
	}
}

func canonicalizeGeneratorSpec(spec domain.GeneratorSpec) map[string]interface{} {
	result := map[string]interface{}{
		"type": spec.Type,
	}
	if len(spec.Params) > 0 {
		result["params"] = spec.Params
	}
	return result
}
