package ingest

import (
	"context"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"github.com/nao1215/dataexplorer/domain/model"
)

// PDFPage is the content extracted from one page.
type PDFPage struct {
	Text   string
	Width  float64
	Height float64
	// Tables holds detected tables, each a header row followed by data rows.
	Tables [][][]string
}

// PDFDocument gives page-wise access to a parsed PDF. Pages are numbered from 1.
type PDFDocument interface {
	NumPages() int
	Page(n int) (PDFPage, error)
}

// PDFOpener parses a PDF held in r.
type PDFOpener func(r io.ReaderAt, size int64) (PDFDocument, error)

// Column names of the text fallback.
const (
	colPageNumber    = "page_number"
	colExtractedText = "extracted_text"
	colPageWidth     = "page_width"
	colPageHeight    = "page_height"
	colPage          = "page"
	colTableNum      = "table_num"
)

// parsePDF returns the first detected table that has a header and at least
// one data row, with page and table_num columns appended. Later pages and any
// text seen so far are ignored once a table is found. Without tables it
// returns one row per page that has text.
func (p *Processor) parsePDF(ctx context.Context, r io.ReaderAt, size int64) (*model.Table, error) {
	logger := zerolog.Ctx(ctx)

	doc, err := p.openPDF(r, size)
	if err != nil {
		return nil, model.E("", model.KindDecodeError, err)
	}

	var (
		pageNums []any
		texts    []any
		widths   []any
		heights  []any
	)
	for n := 1; n <= doc.NumPages(); n++ {
		page, err := doc.Page(n)
		if err != nil {
			return nil, model.E("", model.KindDecodeError, err)
		}

		if text := strings.TrimSpace(page.Text); text != "" {
			pageNums = append(pageNums, int64(n))
			texts = append(texts, text)
			widths = append(widths, page.Width)
			heights = append(heights, page.Height)
		}

		for i, tbl := range page.Tables {
			if len(tbl) < 2 {
				continue
			}
			logger.Info().Int("page", n).Int("table", i+1).Msg("using first table found in PDF")
			return pdfTable(tbl, n, i+1)
		}
	}

	if len(texts) == 0 {
		return nil, model.ES("", model.KindNoExtractableContent, "no extractable content found in PDF")
	}
	return model.NewTable(
		model.Column{Name: colPageNumber, Type: model.ColumnTypeInteger, Values: pageNums},
		model.Column{Name: colExtractedText, Type: model.ColumnTypeText, Values: texts},
		model.Column{Name: colPageWidth, Type: model.ColumnTypeReal, Values: widths},
		model.Column{Name: colPageHeight, Type: model.ColumnTypeReal, Values: heights},
	)
}

func pdfTable(rows [][]string, page, tableNum int) (*model.Table, error) {
	header := append([]string{}, rows[0]...)
	header = append(header, colPage, colTableNum)
	data := make([][]string, 0, len(rows)-1)
	for _, r := range rows[1:] {
		rec := make([]string, len(rows[0]), len(header))
		copy(rec, r)
		rec = append(rec, strconv.Itoa(page), strconv.Itoa(tableNum))
		data = append(data, rec)
	}
	return newTable(header, data)
}

// OpenPDF is the default PDFOpener backed by github.com/ledongthuc/pdf.
func OpenPDF(r io.ReaderAt, size int64) (PDFDocument, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	return &pdfDocument{reader: reader}, nil
}

type pdfDocument struct {
	reader *pdf.Reader
}

func (d *pdfDocument) NumPages() int {
	return d.reader.NumPage()
}

func (d *pdfDocument) Page(n int) (PDFPage, error) {
	p := d.reader.Page(n)
	if p.V.IsNull() {
		return PDFPage{}, nil
	}
	out := PDFPage{}
	out.Width, out.Height = mediaBox(p.V)

	text, err := p.GetPlainText(nil)
	if err != nil {
		return PDFPage{}, err
	}
	out.Text = text

	rows, err := p.GetTextByRow()
	if err != nil {
		return PDFPage{}, err
	}
	lines := make([][]textRun, 0, len(rows))
	for _, row := range rows {
		runs := make([]textRun, 0, len(row.Content))
		for _, t := range row.Content {
			runs = append(runs, textRun{X: t.X, W: t.W, S: t.S, FontSize: t.FontSize})
		}
		lines = append(lines, runs)
	}
	out.Tables = detectTables(lines)
	return out, nil
}

// mediaBox returns the page size, following the Parent chain for inherited boxes.
func mediaBox(v pdf.Value) (float64, float64) {
	for depth := 0; depth < 16 && !v.IsNull(); depth++ {
		box := v.Key("MediaBox")
		if box.Len() == 4 {
			w := box.Index(2).Float64() - box.Index(0).Float64()
			h := box.Index(3).Float64() - box.Index(1).Float64()
			return math.Abs(w), math.Abs(h)
		}
		v = v.Key("Parent")
	}
	return 0, 0
}

// textRun is a positioned piece of text on one line.
type textRun struct {
	X, W     float64
	S        string
	FontSize float64
}

// cellGap is the horizontal distance, in multiples of the font size, that
// separates two cells on a line.
const cellGap = 1.5

// splitCells groups the runs of a line into cells separated by wide gaps.
func splitCells(runs []textRun) []string {
	if len(runs) == 0 {
		return nil
	}
	sorted := append([]textRun(nil), runs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	var (
		cells []string
		cur   strings.Builder
		end   = sorted[0].X
	)
	for i, r := range sorted {
		size := r.FontSize
		if size <= 0 {
			size = 10
		}
		if i > 0 && r.X-end > cellGap*size {
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
		cur.WriteString(r.S)
		if e := r.X + r.W; e > end {
			end = e
		}
	}
	cells = append(cells, strings.TrimSpace(cur.String()))
	return cells
}

// detectTables finds runs of two or more consecutive lines that split into
// the same number (at least two) of cells.
func detectTables(lines [][]textRun) [][][]string {
	var (
		tables  [][][]string
		current [][]string
	)
	flush := func() {
		if len(current) >= 2 {
			tables = append(tables, current)
		}
		current = nil
	}
	for _, line := range lines {
		cells := splitCells(line)
		if len(cells) < 2 {
			flush()
			continue
		}
		if len(current) > 0 && len(current[0]) != len(cells) {
			flush()
		}
		current = append(current, cells)
	}
	flush()
	return tables
}
