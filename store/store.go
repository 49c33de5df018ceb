// Package store persists normalized tables in an embedded SQL engine and
// serves describe, list, paginate, delete and ad-hoc SQL over them.
//
// Every table name accepted from a caller is passed through
// model.SanitizeTableName so that the same logical table is always addressed
// by the same physical key. Operations are synchronous and the store holds a
// single connection; callers that mutate the same table concurrently must
// serialize themselves.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nao1215/dataexplorer/domain/model"
)

// SampleSize is the number of leading rows included in a Descriptor.
const SampleSize = 5

const (
	opCreate     = "store.CreateOrReplace"
	opExecute    = "store.Execute"
	opDescribe   = "store.Describe"
	opListTables = "store.ListTables"
	opDelete     = "store.Delete"
	opPaginate   = "store.Paginate"
	opExport     = "store.Export"
)

// Store is the table store. Create it with New or OpenSQLite and release it with Close.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps an open database handle. The pool is limited to one connection
// so in-memory databases stay visible across calls.
func New(db *sql.DB, dialect Dialect) *Store {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)
	return &Store{db: db, dialect: dialect}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Engine returns the dialect name.
func (s *Store) Engine() string {
	return s.dialect.Name()
}

// Ping checks that the engine is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return model.E("store.Ping", model.KindEngineError, err)
	}
	return nil
}

// quoteIdent quotes an identifier for use in SQL text.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// CreateOrReplace stores tbl under the sanitized form of name, replacing any
// existing table of that name.
func (s *Store) CreateOrReplace(ctx context.Context, name string, tbl *model.Table) (*model.CreateResult, error) {
	table := model.SanitizeTableName(name)
	if tbl == nil {
		return nil, model.ES(opCreate, model.KindInvalidArgument, "table value is nil").WithTable(table)
	}
	if err := tbl.Validate(); err != nil {
		return nil, err
	}

	logger := zerolog.Ctx(ctx).With().Str("table", table).Logger()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, model.E(opCreate, model.KindEngineError, err).WithTable(table)
	}
	if err := s.createTable(ctx, tx, table, tbl); err != nil {
		return nil, errors.Join(err, tx.Rollback())
	}
	if err := tx.Commit(); err != nil {
		return nil, model.E(opCreate, model.KindEngineError, err).WithTable(table)
	}

	desc, err := s.describe(ctx, table)
	if err != nil {
		return nil, err
	}
	logger.Info().Int("rows", tbl.RowCount()).Int("columns", len(tbl.Columns())).Msg("table stored")

	return &model.CreateResult{
		TableName:   table,
		RowCount:    tbl.RowCount(),
		ColumnCount: len(tbl.Columns()),
		Descriptor:  *desc,
	}, nil
}

func (s *Store) createTable(ctx context.Context, tx *sql.Tx, table string, tbl *model.Table) error {
	drop := "DROP TABLE IF EXISTS " + quoteIdent(table)
	if _, err := tx.ExecContext(ctx, drop); err != nil {
		return model.E(opCreate, model.KindEngineError, err).WithTable(table).WithStatement(drop)
	}

	defs := make([]string, len(tbl.Columns()))
	placeholders := make([]string, len(tbl.Columns()))
	for i, col := range tbl.Columns() {
		defs[i] = fmt.Sprintf("%s %s", quoteIdent(col.Name), s.dialect.SQLType(col.Type))
		placeholders[i] = "?"
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return model.E(opCreate, model.KindEngineError, err).WithTable(table).WithStatement(create)
	}
	if tbl.RowCount() == 0 {
		return nil
	}

	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(table), strings.Join(placeholders, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return model.E(opCreate, model.KindEngineError, err).WithTable(table).WithStatement(insert)
	}
	defer stmt.Close()

	for i := range tbl.RowCount() {
		if _, err := stmt.ExecContext(ctx, tbl.Row(i)...); err != nil {
			return model.E(opCreate, model.KindEngineError, fmt.Errorf("failed to insert row %d: %w", i, err)).
				WithTable(table).WithStatement(insert)
		}
	}
	return nil
}

// Describe returns the schema, row count and up to SampleSize leading rows of a table.
func (s *Store) Describe(ctx context.Context, name string) (*model.Descriptor, error) {
	return s.describe(ctx, model.SanitizeTableName(name))
}

func (s *Store) describe(ctx context.Context, table string) (*model.Descriptor, error) {
	columns, err := s.columns(ctx, table, opDescribe)
	if err != nil {
		return nil, err
	}
	count, err := s.count(ctx, table, opDescribe)
	if err != nil {
		return nil, err
	}
	sample := fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(table), SampleSize)
	res, err := s.query(ctx, sample)
	if err != nil {
		return nil, withOp(err, opDescribe, table)
	}
	return &model.Descriptor{Columns: columns, RowCount: count, SampleData: res.Rows}, nil
}

func (s *Store) columns(ctx context.Context, table, op string) ([]model.ColumnInfo, error) {
	columns, err := s.dialect.Columns(ctx, s.db, table)
	if err != nil {
		return nil, withOp(err, op, table)
	}
	if len(columns) == 0 {
		return nil, model.ES(op, model.KindNotFound, "table %q does not exist", table).WithTable(table)
	}
	return columns, nil
}

func (s *Store) count(ctx context.Context, table, op string) (int64, error) {
	query := "SELECT COUNT(*) FROM " + quoteIdent(table)
	var n int64
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, model.E(op, model.KindEngineError, err).WithTable(table).WithStatement(query)
	}
	return n, nil
}

// Exists reports whether a table of the sanitized name exists.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	table := model.SanitizeTableName(name)
	columns, err := s.dialect.Columns(ctx, s.db, table)
	if err != nil {
		return false, withOp(err, "store.Exists", table)
	}
	return len(columns) > 0, nil
}

// ListTables returns every stored table with a freshly computed descriptor,
// ordered by name.
func (s *Store) ListTables(ctx context.Context) ([]model.TableSummary, error) {
	names, err := s.dialect.Tables(ctx, s.db)
	if err != nil {
		return nil, withOp(err, opListTables, "")
	}
	sort.Strings(names)

	out := make([]model.TableSummary, 0, len(names))
	for _, name := range names {
		desc, err := s.describe(ctx, name)
		if err != nil {
			return nil, withOp(err, opListTables, name)
		}
		out = append(out, model.TableSummary{Name: name, Descriptor: *desc})
	}
	return out, nil
}

// Delete drops a table. Dropping an absent table is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	table := model.SanitizeTableName(name)
	stmt := "DROP TABLE IF EXISTS " + quoteIdent(table)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return model.E(opDelete, model.KindEngineError, err).WithTable(table).WithStatement(stmt)
	}
	zerolog.Ctx(ctx).Info().Str("table", table).Msg("table deleted")
	return nil
}

// Paginate returns rows [offset, offset+limit) of a table together with the
// total row count. HasMore is true exactly when offset+limit < total.
func (s *Store) Paginate(ctx context.Context, name string, limit, offset int) (*model.Page, error) {
	table := model.SanitizeTableName(name)
	if limit < 0 || offset < 0 {
		return nil, model.ES(opPaginate, model.KindInvalidArgument, "limit and offset must not be negative (limit=%d, offset=%d)", limit, offset).
			WithTable(table)
	}

	columns, err := s.columns(ctx, table, opPaginate)
	if err != nil {
		return nil, err
	}
	total, err := s.count(ctx, table, opPaginate)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d OFFSET %d", quoteIdent(table), limit, offset)
	res, err := s.query(ctx, query)
	if err != nil {
		return nil, withOp(err, opPaginate, table)
	}

	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return &model.Page{
		Rows:       res.Rows,
		Columns:    names,
		TotalCount: total,
		Limit:      limit,
		Offset:     offset,
		HasMore:    model.HasMore(offset, limit, total),
	}, nil
}

// withOp fills in the operation and table of a typed error when they are unset.
func withOp(err error, op, table string) error {
	var e *model.Error
	if !errors.As(err, &e) {
		return model.E(op, model.KindEngineError, err).WithTable(table)
	}
	if e.Op == "" {
		e.Op = op
	}
	if e.Table == "" {
		e.Table = table
	}
	return err
}
