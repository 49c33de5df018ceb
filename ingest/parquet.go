package ingest

import (
	"bytes"
	"context"
	"math"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	pqfile "github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"

	"github.com/nao1215/dataexplorer/domain/model"
)

func parseParquet(ctx context.Context, data []byte) (*model.Table, error) {
	if len(data) == 0 {
		return nil, model.ES("", model.KindDecodeError, "empty parquet file")
	}
	pqReader, err := pqfile.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, model.E("", model.KindDecodeError, err)
	}
	defer pqReader.Close()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, model.E("", model.KindDecodeError, err)
	}
	table, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return nil, model.E("", model.KindDecodeError, err)
	}
	defer table.Release()

	columns := make([]model.Column, table.NumCols())
	for i := range columns {
		col := table.Column(i)
		raw := make([]any, 0, table.NumRows())
		for _, chunk := range col.Data().Chunks() {
			for j := 0; j < chunk.Len(); j++ {
				raw = append(raw, arrowValue(chunk, j))
			}
		}
		columns[i] = model.ColumnFromValues(col.Name(), raw)
	}
	return model.NewTable(columns...)
}

// arrowValue extracts element i of arr as a scalar understood by model.ColumnFromValues.
func arrowValue(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(i)
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	case *array.Uint8:
		return int64(a.Value(i))
	case *array.Uint16:
		return int64(a.Value(i))
	case *array.Uint32:
		return int64(a.Value(i))
	case *array.Uint64:
		if v := a.Value(i); v <= math.MaxInt64 {
			return int64(v)
		}
		return float64(a.Value(i))
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Binary:
		return string(a.Value(i))
	case *array.Date32:
		return a.Value(i).ToTime().Format(time.DateOnly)
	case *array.Date64:
		return a.Value(i).ToTime().Format(time.DateOnly)
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit).UTC().Format(time.RFC3339Nano)
	default:
		return arr.ValueStr(i)
	}
}
