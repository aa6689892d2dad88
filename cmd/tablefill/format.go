package main

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmrzaf/tablefill/internal/domain"
)

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case decimal.Decimal:
		return val.String()
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format("2006-01-02")
		}
		return val.Format("2006-01-02 15:04:05")
	case bool:
		if val {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(val)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func keyLabel(c domain.ColumnDescriptor) string {
	switch {
	case c.PrimaryKey && c.CompositeKey:
		return "pk*"
	case c.PrimaryKey:
		return "pk"
	case c.Unique:
		return "unique"
	default:
		return ""
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
