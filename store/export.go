package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/xuri/excelize/v2"

	"github.com/nao1215/dataexplorer/domain/model"
	"github.com/nao1215/dataexplorer/internal/compression"
)

// Export writes every row of a table to w in the requested format and compression.
func (s *Store) Export(ctx context.Context, name string, w io.Writer, opts model.ExportOptions) (err error) {
	table := model.SanitizeTableName(name)
	if _, err := s.columns(ctx, table, opExport); err != nil {
		return err
	}
	res, err := s.query(ctx, "SELECT * FROM "+quoteIdent(table))
	if err != nil {
		return withOp(err, opExport, table)
	}

	cw, closeCodec, err := compression.New(opts.Compression).NewWriter(w)
	if err != nil {
		return model.E(opExport, model.KindInvalidArgument, err).WithTable(table)
	}
	defer func() {
		if cerr := closeCodec(); cerr != nil {
			err = errors.Join(err, model.E(opExport, model.KindOther, cerr).WithTable(table))
		}
	}()

	switch opts.Format {
	case model.ExportCSV:
		err = writeDelimited(cw, ',', res)
	case model.ExportTSV:
		err = writeDelimited(cw, '\t', res)
	case model.ExportLTSV:
		err = writeLTSV(cw, res)
	case model.ExportXLSX:
		err = writeXLSX(cw, table, res)
	case model.ExportParquet:
		err = writeParquet(cw, res)
	default:
		return model.ES(opExport, model.KindInvalidArgument, "unsupported export format %v", opts.Format).WithTable(table)
	}
	if err != nil {
		return model.E(opExport, model.KindOther, err).WithTable(table)
	}
	return nil
}

// formatCell renders a scalar as export text. Null becomes the empty string.
func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
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

func writeDelimited(w io.Writer, delimiter rune, res *model.QueryResult) error {
	cw := csv.NewWriter(w)
	cw.Comma = delimiter
	if err := cw.Write(res.Columns); err != nil {
		return err
	}
	record := make([]string, len(res.Columns))
	for _, row := range res.Rows {
		for i, c := range res.Columns {
			record[i] = formatCell(row[c])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var ltsvEscaper = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")

func writeLTSV(w io.Writer, res *model.QueryResult) error {
	var b strings.Builder
	for _, row := range res.Rows {
		b.Reset()
		for i, c := range res.Columns {
			if i > 0 {
				b.WriteByte('\t')
			}
			b.WriteString(ltsvEscaper.Replace(c))
			b.WriteByte(':')
			b.WriteString(ltsvEscaper.Replace(formatCell(row[c])))
		}
		b.WriteByte('\n')
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
	}
	return nil
}

func writeXLSX(w io.Writer, table string, res *model.QueryResult) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	sheet := table
	if len(sheet) > 31 {
		sheet = sheet[:31]
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	header := make([]any, len(res.Columns))
	for i, c := range res.Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for r, row := range res.Rows {
		cells := make([]any, len(res.Columns))
		for i, c := range res.Columns {
			cells[i] = row[c]
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return f.Write(w)
}

// arrowTypeOf picks the narrowest Arrow type that holds every value of a column.
func arrowTypeOf(rows []model.Record, column string) arrow.DataType {
	var hasInt, hasFloat, hasBool, hasOther bool
	for _, row := range rows {
		switch row[column].(type) {
		case nil:
		case int64:
			hasInt = true
		case float64:
			hasFloat = true
		case bool:
			hasBool = true
		default:
			hasOther = true
		}
	}
	switch {
	case hasOther, hasBool && (hasInt || hasFloat):
		return arrow.BinaryTypes.String
	case hasBool:
		return arrow.FixedWidthTypes.Boolean
	case hasFloat:
		return arrow.PrimitiveTypes.Float64
	case hasInt:
		return arrow.PrimitiveTypes.Int64
	default:
		return arrow.BinaryTypes.String
	}
}

// writerOnly hides Close so the parquet writer leaves the sink open.
type writerOnly struct {
	io.Writer
}

func writeParquet(w io.Writer, res *model.QueryResult) error {
	fields := make([]arrow.Field, len(res.Columns))
	for i, c := range res.Columns {
		fields[i] = arrow.Field{Name: c, Type: arrowTypeOf(res.Rows, c), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()
	for i, c := range res.Columns {
		fb := b.Field(i)
		for _, row := range res.Rows {
			appendArrow(fb, row[c])
		}
	}
	rec := b.NewRecord()
	defer rec.Release()

	pw, err := pqarrow.NewFileWriter(schema, writerOnly{w}, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps())
	if err != nil {
		return err
	}
	if err := pw.Write(rec); err != nil {
		return errors.Join(err, pw.Close())
	}
	return pw.Close()
}

func appendArrow(b array.Builder, v any) {
	if v == nil {
		b.AppendNull()
		return
	}
	switch fb := b.(type) {
	case *array.Int64Builder:
		fb.Append(v.(int64))
	case *array.Float64Builder:
		switch x := v.(type) {
		case int64:
			fb.Append(float64(x))
		default:
			fb.Append(x.(float64))
		}
	case *array.BooleanBuilder:
		fb.Append(v.(bool))
	case *array.StringBuilder:
		fb.Append(formatCell(v))
	default:
		b.AppendNull()
	}
}
