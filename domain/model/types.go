// Package model provides the domain model for dataexplorer: tabular values,
// table identity, file type detection and the error taxonomy shared by the
// ingestion, storage and HTTP layers.
package model

// ColumnType represents the SQL column type of a normalized column.
type ColumnType int

const (
	// ColumnTypeText represents TEXT column type
	ColumnTypeText ColumnType = iota
	// ColumnTypeInteger represents INTEGER column type
	ColumnTypeInteger
	// ColumnTypeReal represents REAL column type
	ColumnTypeReal
	// ColumnTypeBoolean represents BOOLEAN column type
	ColumnTypeBoolean
	// ColumnTypeDatetime represents datetime stored as TEXT in ISO8601 format
	ColumnTypeDatetime
)

const (
	sqlTypeText    = "TEXT"
	sqlTypeInteger = "INTEGER"
	sqlTypeReal    = "REAL"
	sqlTypeBoolean = "BOOLEAN"
)

// String returns the SQL column type string
func (ct ColumnType) String() string {
	switch ct {
	case ColumnTypeInteger:
		return sqlTypeInteger
	case ColumnTypeReal:
		return sqlTypeReal
	case ColumnTypeBoolean:
		return sqlTypeBoolean
	default:
		return sqlTypeText // datetime is stored as ISO8601 text
	}
}

// ColumnInfo is a column name paired with its SQL type as reported by the engine.
type ColumnInfo struct {
	Name string `json:"name" msgpack:"name" yaml:"name"`
	Type string `json:"type" msgpack:"type" yaml:"type"`
}

// Record is a single row keyed by column name.
type Record map[string]any

// Descriptor is a read-only view of a stored table. It is recomputed on every request.
type Descriptor struct {
	Columns    []ColumnInfo `json:"columns" msgpack:"columns"`
	RowCount   int64        `json:"row_count" msgpack:"row_count"`
	SampleData []Record     `json:"sample_data" msgpack:"sample_data"`
}

// ColumnNames returns the column names of the descriptor in order.
func (d Descriptor) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// TableSummary pairs a stored table name with its descriptor.
type TableSummary struct {
	Name       string     `json:"name" msgpack:"name"`
	Descriptor Descriptor `json:"info" msgpack:"info"`
}

// QueryResult is the outcome of an ad-hoc statement. Exactly one of the
// row-set fields or AffectedRows is meaningful, selected by HasRows.
type QueryResult struct {
	HasRows      bool     `json:"-" msgpack:"-"`
	Rows         []Record `json:"data,omitempty" msgpack:"data,omitempty"`
	Columns      []string `json:"columns,omitempty" msgpack:"columns,omitempty"`
	RowCount     int      `json:"row_count" msgpack:"row_count"`
	AffectedRows int64    `json:"affected_rows,omitempty" msgpack:"affected_rows,omitempty"`
}

// Page is a bounded window over a stored table.
type Page struct {
	Rows       []Record `json:"data" msgpack:"data"`
	Columns    []string `json:"columns" msgpack:"columns"`
	TotalCount int64    `json:"total_count" msgpack:"total_count"`
	Limit      int      `json:"limit" msgpack:"limit"`
	Offset     int      `json:"offset" msgpack:"offset"`
	HasMore    bool     `json:"has_more" msgpack:"has_more"`
}

// HasMore reports whether rows remain after the window [offset, offset+limit).
// Negative arguments count as zero and the window end saturates instead of
// overflowing.
func HasMore(offset, limit int, total int64) bool {
	o, l := max(int64(offset), 0), max(int64(limit), 0)
	if o >= total {
		return false
	}
	return l < total-o
}

// CreateResult is returned after a table has been created or replaced.
type CreateResult struct {
	TableName   string     `json:"table_name" msgpack:"table_name"`
	RowCount    int        `json:"row_count" msgpack:"row_count"`
	ColumnCount int        `json:"column_count" msgpack:"column_count"`
	Descriptor  Descriptor `json:"table_info" msgpack:"table_info"`
}
