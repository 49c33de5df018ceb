// Package ingest detects the format of an uploaded file and parses it into a
// normalized model.Table.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/nao1215/dataexplorer/domain/model"
	"github.com/nao1215/dataexplorer/internal/compression"
)

// Processor turns files into tables. The zero value is not usable; call New.
type Processor struct {
	encodings []Encoding
	openPDF   PDFOpener
}

// Option configures a Processor.
type Option func(*Processor)

// WithEncodings overrides the ordered list of encodings tried for delimited text.
func WithEncodings(encodings ...Encoding) Option {
	return func(p *Processor) {
		p.encodings = encodings
	}
}

// WithPDFOpener replaces the PDF backend.
func WithPDFOpener(open PDFOpener) Option {
	return func(p *Processor) {
		p.openPDF = open
	}
}

// New creates a Processor.
func New(opts ...Option) *Processor {
	p := &Processor{
		encodings: DefaultEncodings(),
		openPDF:   OpenPDF,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process parses the file at path. fileName is the name the file was uploaded
// under and selects the parser by its lowercased extension.
func (p *Processor) Process(ctx context.Context, path, fileName string) (*model.Table, error) {
	info := model.DetectFile(fileName)
	if !info.Supported() {
		return nil, unsupported(fileName)
	}

	r, closeFn, err := compression.OpenFile(path, info.Compression)
	if err != nil {
		return nil, model.E(opProcess, model.KindDecodeError, err).WithFile(fileName)
	}
	defer func() {
		if cerr := closeFn(); cerr != nil {
			zerolog.Ctx(ctx).Warn().Err(cerr).Str("file", fileName).Msg("failed to close upload")
		}
	}()
	return p.parse(ctx, r, info)
}

// ProcessReader parses an uncompressed or compressed stream named fileName.
func (p *Processor) ProcessReader(ctx context.Context, r io.Reader, fileName string) (*model.Table, error) {
	info := model.DetectFile(fileName)
	if !info.Supported() {
		return nil, unsupported(fileName)
	}

	dr, closeFn, err := compression.New(info.Compression).NewReader(r)
	if err != nil {
		return nil, model.E(opProcess, model.KindDecodeError, err).WithFile(fileName)
	}
	defer func() { _ = closeFn() }()
	return p.parse(ctx, dr, info)
}

const opProcess = "ingest.Process"

func unsupported(fileName string) error {
	return model.ES(opProcess, model.KindUnsupportedFormat, "unsupported file format: %q", fileName).WithFile(fileName)
}

func (p *Processor) parse(ctx context.Context, r io.Reader, info model.FileInfo) (tbl *model.Table, err error) {
	logger := zerolog.Ctx(ctx).With().Str("file", info.Name).Str("format", info.Type.String()).Logger()

	// Third-party parsers may panic on malformed input.
	defer func() {
		if rec := recover(); rec != nil {
			tbl = nil
			err = model.ES(opProcess, model.KindUnsupportedStructure, "parser panic: %v", rec).WithFile(info.Name)
		}
	}()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, model.E(opProcess, model.KindDecodeError, err).WithFile(info.Name)
	}

	switch info.Type {
	case model.FileTypeCSV:
		tbl, err = parseDelimited(data, ',', p.encodings, &logger)
	case model.FileTypeTSV:
		tbl, err = parseDelimited(data, '\t', p.encodings, &logger)
	case model.FileTypeJSON:
		tbl, err = parseJSON(data)
	case model.FileTypePDF:
		tbl, err = p.parsePDF(ctx, bytes.NewReader(data), int64(len(data)))
	case model.FileTypeXLSX:
		tbl, err = parseXLSX(bytes.NewReader(data), &logger)
	case model.FileTypeXLS:
		tbl, err = parseXLS(bytes.NewReader(data), &logger)
	case model.FileTypeParquet:
		tbl, err = parseParquet(ctx, data)
	default:
		return nil, unsupported(info.Name)
	}
	if err != nil {
		return nil, asIngestError(err, info.Name)
	}

	logger.Info().Int("rows", tbl.RowCount()).Int("columns", len(tbl.Columns())).Msg("file processed")
	return tbl, nil
}

// asIngestError attaches the file name to typed errors and classifies anything else.
func asIngestError(err error, fileName string) error {
	if e, ok := err.(*model.Error); ok { //nolint:errorlint // parsers return *model.Error unwrapped
		if e.Op == "" {
			e.Op = opProcess
		}
		return e.WithFile(fileName)
	}
	return model.E(opProcess, model.KindUnsupportedStructure, fmt.Errorf("failed to parse file: %w", err)).WithFile(fileName)
}

// newTable builds a table from a header row and string records, inferring
// column types. Records are padded with empty cells or truncated to the
// header width.
func newTable(header []string, records [][]string) (*model.Table, error) {
	if len(header) == 0 {
		return nil, model.E("", model.KindUnsupportedStructure, model.ErrNoColumns)
	}
	columns := make([]model.Column, len(header))
	for i, name := range header {
		cells := make([]string, len(records))
		for j, rec := range records {
			if i < len(rec) {
				cells[j] = rec[i]
			}
		}
		columns[i] = model.ColumnFromStrings(name, cells)
	}
	return model.NewTable(columns...)
}
