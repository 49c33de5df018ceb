package ingest

import (
	"io"

	"github.com/extrame/xls"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/nao1215/dataexplorer/domain/model"
)

// sheet is the raw content of one worksheet: rows of cells, first row is the header.
type sheet struct {
	name string
	rows [][]string
}

func (s sheet) hasData() bool {
	for _, r := range s.rows[min(1, len(s.rows)):] {
		if !isBlankRecord(r) {
			return true
		}
	}
	return false
}

// pickSheet loads a workbook's only sheet as is. With several sheets it loads
// the first one holding at least one data row below the header.
func pickSheet(sheets []sheet, logger *zerolog.Logger) (*model.Table, error) {
	switch len(sheets) {
	case 0:
		return nil, model.ES("", model.KindNoNonEmptySheet, "workbook has no sheets")
	case 1:
		return sheetToTable(sheets[0])
	}
	for _, s := range sheets {
		if s.hasData() {
			logger.Info().Str("sheet", s.name).Msg("using sheet")
			return sheetToTable(s)
		}
	}
	return nil, model.ES("", model.KindNoNonEmptySheet, "no non-empty sheets found in workbook")
}

func sheetToTable(s sheet) (*model.Table, error) {
	if len(s.rows) == 0 {
		return nil, model.ES("", model.KindNoNonEmptySheet, "sheet %q is empty", s.name)
	}
	var records [][]string
	for _, r := range s.rows[1:] {
		if !isBlankRecord(r) {
			records = append(records, r)
		}
	}
	return newTable(s.rows[0], records)
}

func parseXLSX(r io.Reader, logger *zerolog.Logger) (*model.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, model.E("", model.KindDecodeError, err)
	}
	defer func() {
		_ = f.Close()
	}()

	var sheets []sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, model.E("", model.KindDecodeError, err)
		}
		sheets = append(sheets, sheet{name: name, rows: rows})
	}
	return pickSheet(sheets, logger)
}

func parseXLS(r io.ReadSeeker, logger *zerolog.Logger) (*model.Table, error) {
	wb, err := xls.OpenReader(r, "utf-8")
	if err != nil {
		return nil, model.E("", model.KindDecodeError, err)
	}

	var sheets []sheet
	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		s := sheet{name: ws.Name}
		for j := 0; j <= int(ws.MaxRow); j++ {
			row := ws.Row(j)
			if row == nil {
				s.rows = append(s.rows, nil)
				continue
			}
			cells := make([]string, row.LastCol())
			for c := row.FirstCol(); c < row.LastCol(); c++ {
				cells[c] = row.Col(c)
			}
			s.rows = append(s.rows, cells)
		}
		s.rows = trimTrailingBlank(s.rows)
		sheets = append(sheets, s)
	}
	return pickSheet(sheets, logger)
}

func trimTrailingBlank(rows [][]string) [][]string {
	for len(rows) > 0 && isBlankRecord(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	return rows
}
