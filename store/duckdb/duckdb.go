// Package duckdb provides the DuckDB dialect of the table store.
package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"math/big"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/marcboeker/go-duckdb"
	"github.com/shopspring/decimal"

	"github.com/nao1215/dataexplorer/domain/model"
	"github.com/nao1215/dataexplorer/store"
)

// Pragmas applied to every new connection.
var defaultPragmas = []string{
	"PRAGMA memory_limit='1GB'",
	"PRAGMA threads=4",
	"PRAGMA enable_progress_bar=false",
}

// Open opens a DuckDB backed store at path. An empty path opens an in-memory database.
func Open(ctx context.Context, path string) (*store.Store, error) {
	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		for _, pragma := range defaultPragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return fmt.Errorf("failed to apply %q: %w", pragma, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, model.E("duckdb.Open", model.KindEngineError, fmt.Errorf("failed to create DuckDB connector: %w", err))
	}

	s := store.New(sql.OpenDB(connector), Dialect{})
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Dialect is the DuckDB store.Dialect.
type Dialect struct{}

// Name returns "duckdb".
func (Dialect) Name() string { return "duckdb" }

// SQLType returns the DuckDB column type.
func (Dialect) SQLType(ct model.ColumnType) string {
	switch ct {
	case model.ColumnTypeInteger:
		return "BIGINT"
	case model.ColumnTypeReal:
		return "DOUBLE"
	case model.ColumnTypeBoolean:
		return "BOOLEAN"
	default:
		return "VARCHAR"
	}
}

// Columns runs DESCRIBE for an existing table.
func (Dialect) Columns(ctx context.Context, db *sql.DB, table string) ([]model.ColumnInfo, error) {
	const exists = "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?"
	var n int
	if err := db.QueryRowContext(ctx, exists, table).Scan(&n); err != nil {
		return nil, model.E("", model.KindEngineError, err).WithTable(table).WithStatement(exists)
	}
	if n == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`DESCRIBE "%s"`, table)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, model.E("", model.KindEngineError, err).WithTable(table).WithStatement(query)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, model.E("", model.KindEngineError, err).WithTable(table).WithStatement(query)
	}

	var out []model.ColumnInfo
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, model.E("", model.KindEngineError, err).WithTable(table).WithStatement(query)
		}
		// column_name, column_type, null, key, default, extra
		out = append(out, model.ColumnInfo{Name: fmt.Sprint(vals[0]), Type: fmt.Sprint(vals[1])})
	}
	if err := rows.Err(); err != nil {
		return nil, model.E("", model.KindEngineError, err).WithTable(table).WithStatement(query)
	}
	return out, nil
}

// Tables runs SHOW TABLES.
func (Dialect) Tables(ctx context.Context, db *sql.DB) ([]string, error) {
	return store.QueryStrings(ctx, db, "SHOW TABLES")
}

// Value converts DuckDB specific scalars.
func (Dialect) Value(v any) any {
	switch x := v.(type) {
	case duckdb.Decimal:
		if x.Value == nil {
			return nil
		}
		return decimal.NewFromBigInt(x.Value, -int32(x.Scale)).InexactFloat64()
	case *big.Int:
		if x.IsInt64() {
			return x.Int64()
		}
		return x.String()
	case duckdb.UUID:
		return uuid.UUID(x).String()
	case duckdb.Interval:
		return fmt.Sprintf("%d months %d days %d micros", x.Months, x.Days, x.Micros)
	case []any, map[string]any, duckdb.Map:
		b, err := json.Marshal(jsonable(x))
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return v
	}
}

// jsonable converts DuckDB maps, whose keys may be any type, into string keyed maps.
func jsonable(v any) any {
	switch x := v.(type) {
	case duckdb.Map:
		m := make(map[string]any, len(x))
		for k, val := range x {
			m[fmt.Sprint(k)] = jsonable(val)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, val := range x {
			m[k] = jsonable(val)
		}
		return m
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = jsonable(val)
		}
		return out
	default:
		return Dialect{}.Value(v)
	}
}
