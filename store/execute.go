package store

import (
	"context"
	"database/sql"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/nao1215/dataexplorer/domain/model"
)

// rowKeywords start statements that produce a row set.
var rowKeywords = []string{
	"SELECT", "WITH", "VALUES", "TABLE", "FROM", "PRAGMA", "EXPLAIN",
	"SHOW", "DESCRIBE", "DESC", "SUMMARIZE", "CALL", "PIVOT", "UNPIVOT",
}

// dmlKeywords start statements whose affected row count is meaningful.
var dmlKeywords = []string{"INSERT", "UPDATE", "DELETE", "REPLACE", "MERGE", "UPSERT"}

// leadingKeyword returns the first keyword of stmt in upper case, skipping
// whitespace, comments and opening parentheses.
func leadingKeyword(stmt string) string {
	s := stmt
	for {
		s = strings.TrimLeftFunc(s, func(r rune) bool { return unicode.IsSpace(r) || r == '(' })
		switch {
		case strings.HasPrefix(s, "--"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return ""
			}
			s = s[i+1:]
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s, "*/")
			if i < 0 {
				return ""
			}
			s = s[i+2:]
		default:
			end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) && r != '_' })
			if end < 0 {
				end = len(s)
			}
			return strings.ToUpper(s[:end])
		}
	}
}

// returnsRows reports whether stmt is expected to produce a row set.
func returnsRows(stmt string) bool {
	if lo.Contains(rowKeywords, leadingKeyword(stmt)) {
		return true
	}
	return containsWord(strings.ToUpper(stripQuotedAndComments(stmt)), "RETURNING")
}

// stripQuotedAndComments blanks out string literals, quoted identifiers and
// comments so keyword scans only see SQL tokens. Doubled quotes inside a
// literal are treated as escapes.
func stripQuotedAndComments(stmt string) string {
	var b strings.Builder
	b.Grow(len(stmt))
	for i := 0; i < len(stmt); {
		switch {
		case stmt[i] == '\'' || stmt[i] == '"' || stmt[i] == '`':
			quote := stmt[i]
			i++
			for i < len(stmt) {
				if stmt[i] == quote {
					if i+1 < len(stmt) && stmt[i+1] == quote {
						i += 2
						continue
					}
					break
				}
				i++
			}
			i++
			b.WriteByte(' ')
		case strings.HasPrefix(stmt[i:], "--"):
			j := strings.IndexByte(stmt[i:], '\n')
			if j < 0 {
				i = len(stmt)
			} else {
				i += j
			}
			b.WriteByte(' ')
		case strings.HasPrefix(stmt[i:], "/*"):
			j := strings.Index(stmt[i+2:], "*/")
			if j < 0 {
				i = len(stmt)
			} else {
				i += j + 4
			}
			b.WriteByte(' ')
		default:
			b.WriteByte(stmt[i])
			i++
		}
	}
	return b.String()
}

func containsWord(s, word string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], word)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(word)
		before := start == 0 || !isIdentChar(rune(s[start-1]))
		after := end == len(s) || !isIdentChar(rune(s[end]))
		if before && after {
			return true
		}
		i = end
	}
}

func isIdentChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// Execute runs an arbitrary statement. Row-producing statements are fully
// materialized; other statements report the number of affected rows, which
// is zero for anything that is not INSERT, UPDATE, DELETE, REPLACE or MERGE.
// Engine failures carry the statement text.
func (s *Store) Execute(ctx context.Context, stmt string) (*model.QueryResult, error) {
	if strings.TrimSpace(stmt) == "" {
		return nil, model.ES(opExecute, model.KindInvalidArgument, "empty SQL statement")
	}
	zerolog.Ctx(ctx).Debug().Str("statement", stmt).Msg("execute")

	if returnsRows(stmt) {
		res, err := s.query(ctx, stmt)
		if err != nil {
			return nil, withOp(err, opExecute, "")
		}
		return res, nil
	}

	result, err := s.db.ExecContext(ctx, stmt)
	if err != nil {
		return nil, model.E(opExecute, model.KindEngineError, err).WithStatement(stmt)
	}
	var affected int64
	if lo.Contains(dmlKeywords, leadingKeyword(stmt)) {
		if affected, err = result.RowsAffected(); err != nil {
			return nil, model.E(opExecute, model.KindEngineError, err).WithStatement(stmt)
		}
	}
	return &model.QueryResult{AffectedRows: affected}, nil
}

// query runs stmt and materializes every row keyed by column name.
func (s *Store) query(ctx context.Context, stmt string) (*model.QueryResult, error) {
	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, model.E("", model.KindEngineError, err).WithStatement(stmt)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, model.E("", model.KindEngineError, err).WithStatement(stmt)
	}

	records := []model.Record{}
	for rows.Next() {
		values, err := s.scanRow(rows, len(columns))
		if err != nil {
			return nil, model.E("", model.KindEngineError, err).WithStatement(stmt)
		}
		rec := make(model.Record, len(columns))
		for i, c := range columns {
			rec[c] = values[i]
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, model.E("", model.KindEngineError, err).WithStatement(stmt)
	}
	return &model.QueryResult{
		HasRows:  true,
		Rows:     records,
		Columns:  columns,
		RowCount: len(records),
	}, nil
}

// scanRow scans the current row into normalized scalars.
func (s *Store) scanRow(rows *sql.Rows, n int) ([]any, error) {
	values := make([]any, n)
	ptrs := make([]any, n)
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	for i, v := range values {
		values[i] = normalizeValue(s.dialect.Value(v))
	}
	return values, nil
}

// normalizeValue maps driver scalars onto JSON friendly values: text for
// bytes and times, null for non-finite floats.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case float32:
		return normalizeValue(float64(x))
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case int8:
		return int64(x)
	case uint32:
		return int64(x)
	case uint16:
		return int64(x)
	case uint8:
		return int64(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return x
	}
}
