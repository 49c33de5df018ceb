package model

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Column is a named, homogeneously typed sequence of scalar values.
// A nil element is a null.
type Column struct {
	Name   string
	Type   ColumnType
	Values []any
}

// Len returns the number of values in the column.
func (c Column) Len() int {
	return len(c.Values)
}

// Table is an in-memory tabular value: ordered named columns of equal length.
type Table struct {
	columns []Column
}

// NewTable create new Table. Column names are normalized and made unique.
func NewTable(columns ...Column) (*Table, error) {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	names = NormalizeColumnNames(names)
	for i := range columns {
		columns[i].Name = names[i]
	}

	t := &Table{columns: columns}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Columns returns the table columns.
func (t *Table) Columns() []Column {
	return t.columns
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// RowCount returns the number of rows.
func (t *Table) RowCount() int {
	if len(t.columns) == 0 {
		return 0
	}
	return t.columns[0].Len()
}

// Row returns the values of row i in column order.
func (t *Table) Row(i int) []any {
	row := make([]any, len(t.columns))
	for j, c := range t.columns {
		row[j] = c.Values[i]
	}
	return row
}

// Validate checks that all columns have equal length and unique names.
func (t *Table) Validate() error {
	if len(t.columns) == 0 {
		return E("model.Validate", KindUnsupportedStructure, ErrNoColumns)
	}
	seen := make(map[string]struct{}, len(t.columns))
	want := t.columns[0].Len()
	for _, c := range t.columns {
		key := strings.ToLower(c.Name)
		if _, ok := seen[key]; ok {
			return E("model.Validate", KindUnsupportedStructure, fmt.Errorf("%w: %s", ErrDuplicateColumnName, c.Name))
		}
		seen[key] = struct{}{}
		if c.Len() != want {
			return E("model.Validate", KindUnsupportedStructure,
				fmt.Errorf("%w: column %q has %d values, want %d", ErrColumnLength, c.Name, c.Len(), want))
		}
	}
	return nil
}

// NormalizeColumnName trims a column name and replaces spaces and hyphens with underscores.
func NormalizeColumnName(name string) string {
	name = strings.TrimSpace(name)
	return strings.NewReplacer(" ", "_", "-", "_").Replace(name)
}

// NormalizeColumnNames normalizes every name, names blank headers column_<n>
// (1-based) and suffixes repeated names with _1, _2, ... Names that differ
// only in case count as repeats since SQL identifiers are case-insensitive.
func NormalizeColumnNames(names []string) []string {
	out := make([]string, len(names))
	used := make(map[string]struct{}, len(names))
	for i, n := range names {
		n = NormalizeColumnName(n)
		if n == "" {
			n = "column_" + strconv.Itoa(i+1)
		}
		candidate := n
		for k := 1; ; k++ {
			if _, ok := used[strings.ToLower(candidate)]; !ok {
				break
			}
			candidate = n + "_" + strconv.Itoa(k)
		}
		used[strings.ToLower(candidate)] = struct{}{}
		out[i] = candidate
	}
	return out
}

// SanitizeTableName rewrites name into a valid, lowercase identifier:
// characters outside [A-Za-z0-9_] become underscores and the result is
// prefixed with "table_" unless it starts with a letter or underscore.
// The function is idempotent.
func SanitizeTableName(name string) string {
	var b strings.Builder
	b.Grow(len(name) + len("table_"))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if s == "" {
		return "table"
	}
	if c := s[0]; !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_') {
		s = "table_" + s
	}
	return strings.ToLower(s)
}

// TableNameFromFileName derives the table name from an uploaded file name:
// the base name without compression and format extensions, sanitized.
func TableNameFromFileName(fileName string) string {
	base := filepath.Base(fileName)
	for _, ext := range []string{ExtGZ, ExtBZ2, ExtXZ, ExtZSTD} {
		if strings.HasSuffix(strings.ToLower(base), ext) {
			base = base[:len(base)-len(ext)]
			break
		}
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return SanitizeTableName(base)
}
