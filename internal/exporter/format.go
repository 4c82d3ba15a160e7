package exporter

import (
	"strconv"
)

// formatCell renders one table cell as text. Null renders as an empty string.
func formatCell(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return formatFloat(v)
	case int64:
		return formatInt(v)
	default:
		return ""
	}
}

// formatFloat uses the shortest representation that round-trips
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}
