package model

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// datetimePatterns lists the textual date and time shapes recognized as datetime.
var datetimePatterns = []struct {
	pattern *regexp.Regexp
	formats []string
}{
	// RFC 3339 with offset
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`),
		[]string{time.RFC3339, time.RFC3339Nano},
	},
	// ISO 8601 local time
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?$`),
		[]string{"2006-01-02T15:04:05", "2006-01-02T15:04:05.000"},
	},
	// space separated date time
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(\.\d+)?$`),
		[]string{"2006-01-02 15:04:05", "2006-01-02 15:04:05.000"},
	},
	// date
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
		[]string{"2006-01-02"},
	},
	// month/day/year
	{
		regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4} \d{1,2}:\d{2}:\d{2}( (AM|PM))?$`),
		[]string{"1/2/2006 15:04:05", "1/2/2006 3:04:05 PM", "01/02/2006 15:04:05"},
	},
	{
		regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`),
		[]string{"1/2/2006", "01/02/2006"},
	},
	// day.month.year
	{
		regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4} \d{1,2}:\d{2}:\d{2}$`),
		[]string{"2.1.2006 15:04:05", "02.01.2006 15:04:05"},
	},
	{
		regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}$`),
		[]string{"2.1.2006", "02.01.2006"},
	},
	// clock time
	{
		regexp.MustCompile(`^\d{1,2}:\d{2}:\d{2}(\.\d+)?$`),
		[]string{"15:04:05", "15:04:05.000", "3:04:05"},
	},
	{
		regexp.MustCompile(`^\d{1,2}:\d{2}$`),
		[]string{"15:04", "3:04"},
	},
}

// isDatetime reports whether value matches one of datetimePatterns.
func isDatetime(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	for _, dp := range datetimePatterns {
		if !dp.pattern.MatchString(value) {
			continue
		}
		for _, format := range dp.formats {
			if _, err := time.Parse(format, value); err == nil {
				return true
			}
		}
	}
	return false
}

func parseBool(value string) (bool, bool) {
	switch strings.ToLower(value) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

// InferColumnType infers the SQL column type from a slice of string cells.
// Empty cells are ignored. Priority: TEXT > DATETIME > REAL > INTEGER, and
// BOOLEAN only when every non-empty cell is true or false.
func InferColumnType(values []string) ColumnType {
	var hasDatetime, hasReal, hasInteger, hasBool bool
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if isDatetime(value) {
			hasDatetime = true
			continue
		}
		if _, err := strconv.ParseInt(value, 10, 64); err == nil {
			hasInteger = true
			continue
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			hasReal = true
			continue
		}
		if _, ok := parseBool(value); ok {
			hasBool = true
			continue
		}
		return ColumnTypeText
	}

	switch {
	case hasBool && (hasDatetime || hasReal || hasInteger):
		return ColumnTypeText
	case hasBool:
		return ColumnTypeBoolean
	case hasDatetime && (hasReal || hasInteger):
		return ColumnTypeText
	case hasDatetime:
		return ColumnTypeDatetime
	case hasReal:
		return ColumnTypeReal
	case hasInteger:
		return ColumnTypeInteger
	default:
		return ColumnTypeText
	}
}

// ColumnFromStrings builds a typed column from raw string cells. Empty cells become null.
func ColumnFromStrings(name string, cells []string) Column {
	typ := InferColumnType(cells)
	values := make([]any, len(cells))
	for i, cell := range cells {
		trimmed := strings.TrimSpace(cell)
		if trimmed == "" {
			continue
		}
		switch typ {
		case ColumnTypeInteger:
			v, _ := strconv.ParseInt(trimmed, 10, 64)
			values[i] = v
		case ColumnTypeReal:
			v, _ := strconv.ParseFloat(trimmed, 64)
			values[i] = v
		case ColumnTypeBoolean:
			v, _ := parseBool(trimmed)
			values[i] = v
		case ColumnTypeDatetime:
			values[i] = trimmed
		default:
			values[i] = cell
		}
	}
	return Column{Name: name, Type: typ, Values: values}
}

// ColumnFromValues builds a typed column from already decoded scalars such as
// JSON or spreadsheet values. Integers and floats mixed together become REAL,
// any other mixture becomes TEXT. Nested values are rendered as JSON text.
func ColumnFromValues(name string, raw []any) Column {
	var hasInt, hasReal, hasBool, hasText bool
	values := make([]any, len(raw))
	for i, v := range raw {
		v = normalizeScalar(v)
		values[i] = v
		switch v.(type) {
		case nil:
		case int64:
			hasInt = true
		case float64:
			hasReal = true
		case bool:
			hasBool = true
		default:
			hasText = true
		}
	}

	typ := ColumnTypeText
	switch {
	case hasText || (hasBool && (hasInt || hasReal)):
		typ = ColumnTypeText
	case hasBool:
		typ = ColumnTypeBoolean
	case hasReal:
		typ = ColumnTypeReal
	case hasInt:
		typ = ColumnTypeInteger
	}

	for i, v := range values {
		if v == nil {
			continue
		}
		switch typ {
		case ColumnTypeReal:
			if n, ok := v.(int64); ok {
				values[i] = float64(n)
			}
		case ColumnTypeText:
			values[i] = stringify(v)
		}
	}
	return Column{Name: name, Type: typ, Values: values}
}

func normalizeScalar(v any) any {
	switch x := v.(type) {
	case nil, bool, int64, string:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return normalizeScalar(float64(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return normalizeScalar(f)
		}
		return x.String()
	case time.Time:
		return x.Format(time.RFC3339)
	case []any, map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
