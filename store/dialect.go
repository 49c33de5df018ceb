package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/nao1215/dataexplorer/domain/model"
)

// Dialect captures the engine-specific parts of the table store.
type Dialect interface {
	// Name returns the engine name, e.g. "sqlite".
	Name() string
	// SQLType maps a model column type to a column type of the engine.
	SQLType(model.ColumnType) string
	// Columns returns the schema of table, or an empty slice if it does not exist.
	Columns(ctx context.Context, db *sql.DB, table string) ([]model.ColumnInfo, error)
	// Tables returns the names of all user tables.
	Tables(ctx context.Context, db *sql.DB) ([]string, error)
	// Value converts an engine-specific scalar into a plain Go scalar.
	Value(v any) any
}

// SQLite is the Dialect of the pure Go SQLite engine.
type SQLite struct{}

// Name returns "sqlite".
func (SQLite) Name() string { return "sqlite" }

// SQLType returns the SQLite column type.
func (SQLite) SQLType(ct model.ColumnType) string {
	return ct.String()
}

// Columns reads the schema with PRAGMA table_info.
func (SQLite) Columns(ctx context.Context, db *sql.DB, table string) ([]model.ColumnInfo, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, model.E(opDescribe, model.KindEngineError, err).WithStatement(query)
	}
	defer rows.Close()

	var columns []model.ColumnInfo
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, model.E(opDescribe, model.KindEngineError, err).WithStatement(query)
		}
		columns = append(columns, model.ColumnInfo{Name: name, Type: typ})
	}
	if err := rows.Err(); err != nil {
		return nil, model.E(opDescribe, model.KindEngineError, err).WithStatement(query)
	}
	return columns, nil
}

// Tables lists user tables from sqlite_master.
func (SQLite) Tables(ctx context.Context, db *sql.DB) ([]string, error) {
	const query = "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
	return QueryStrings(ctx, db, query)
}

// Value returns v unchanged; generic normalization covers SQLite scalars.
func (SQLite) Value(v any) any { return v }

// OpenSQLite opens a SQLite backed store. An empty dsn opens a private
// in-memory database.
func OpenSQLite(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, model.E("store.Open", model.KindEngineError, err)
	}
	s := New(db, SQLite{})
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, model.E("store.Open", model.KindEngineError, err)
	}
	return s, nil
}

// QueryStrings runs a query returning a single text column and collects the values.
func QueryStrings(ctx context.Context, db *sql.DB, query string) ([]string, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, model.E(opListTables, model.KindEngineError, err).WithStatement(query)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, model.E(opListTables, model.KindEngineError, err).WithStatement(query)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, model.E(opListTables, model.KindEngineError, err).WithStatement(query)
	}
	return out, nil
}
