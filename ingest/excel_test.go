package ingest

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/nao1215/dataexplorer/domain/model"
)

func xlsxBytes(t *testing.T, build func(f *excelize.File)) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	build(f)
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestProcessXLSXSingleSheet(t *testing.T) {
	t.Parallel()

	data := xlsxBytes(t, func(f *excelize.File) {
		require.NoError(t, f.SetCellValue("Sheet1", "A1", "Product Name"))
		require.NoError(t, f.SetCellValue("Sheet1", "B1", "price"))
		require.NoError(t, f.SetCellValue("Sheet1", "A2", "pen"))
		require.NoError(t, f.SetCellValue("Sheet1", "B2", 1.25))
		require.NoError(t, f.SetCellValue("Sheet1", "A3", "ink"))
		require.NoError(t, f.SetCellValue("Sheet1", "B3", 7))
	})
	path := writeFile(t, "x", data)

	tbl, err := New().Process(context.Background(), path, "catalog.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []string{"Product_Name", "price"}, tbl.ColumnNames())
	assert.Equal(t, 2, tbl.RowCount())
	assert.Equal(t, model.ColumnTypeReal, tbl.Columns()[1].Type)
}

func TestProcessXLSXFirstNonEmptySheet(t *testing.T) {
	t.Parallel()

	data := xlsxBytes(t, func(f *excelize.File) {
		require.NoError(t, f.SetCellValue("Sheet1", "A1", "header only"))
		_, err := f.NewSheet("Empty")
		require.NoError(t, err)
		_, err = f.NewSheet("Data")
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue("Data", "A1", "x"))
		require.NoError(t, f.SetCellValue("Data", "A2", 1))
		_, err = f.NewSheet("Later")
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue("Later", "A1", "y"))
		require.NoError(t, f.SetCellValue("Later", "A2", 2))
	})
	path := writeFile(t, "x", data)

	tbl, err := New().Process(context.Background(), path, "book.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, tbl.ColumnNames())
}

func TestProcessXLSXAllSheetsEmpty(t *testing.T) {
	t.Parallel()

	data := xlsxBytes(t, func(f *excelize.File) {
		_, err := f.NewSheet("Second")
		require.NoError(t, err)
	})
	path := writeFile(t, "x", data)

	_, err := New().Process(context.Background(), path, "blank.xlsx")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNoNonEmptySheet)
}

func TestProcessXLSInvalid(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "x", []byte("not an ole2 document"))
	_, err := New().Process(context.Background(), path, "legacy.xls")
	require.Error(t, err)
	var e *model.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "legacy.xls", e.File)
}

func TestPickSheet(t *testing.T) {
	t.Parallel()

	_, err := pickSheet(nil, nil)
	assert.ErrorIs(t, err, model.ErrNoNonEmptySheet)

	tbl, err := pickSheet([]sheet{{name: "only", rows: [][]string{{"a"}}}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.RowCount())
}
