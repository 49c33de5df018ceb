package dataexplorer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/nao1215/dataexplorer/domain/model"
)

const opDump = "dataexplorer.Dump"

// TableExporter lists and exports stored tables.
type TableExporter interface {
	ListTables(ctx context.Context) ([]model.TableSummary, error)
	Export(ctx context.Context, name string, w io.Writer, opts model.ExportOptions) error
}

// Dump writes every stored table to outputDir as <table><ext>[<compression ext>].
// The default options export CSV without compression.
//
//	// Export as TSV files with gzip compression
//	opts := model.NewExportOptions().
//		WithFormat(model.ExportTSV).
//		WithCompression(model.CompressionGZ)
//	err := dataexplorer.Dump(ctx, st, "./output", opts)
func Dump(ctx context.Context, st TableExporter, outputDir string, opts ...model.ExportOptions) ([]string, error) {
	options := model.NewExportOptions()
	if len(opts) > 0 {
		options = opts[0]
	}
	if outputDir == "" {
		return nil, model.ES(opDump, model.KindInvalidArgument, "output directory must not be empty")
	}
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return nil, model.E(opDump, model.KindOther, fmt.Errorf("failed to create output directory: %w", err))
	}

	tables, err := st.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	written := make([]string, 0, len(tables))
	for _, t := range tables {
		path := filepath.Join(outputDir, options.FileName(t.Name))
		if err := dumpTable(ctx, st, t.Name, path, options); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	zerolog.Ctx(ctx).Info().Str("dir", outputDir).Int("tables", len(written)).Msg("tables dumped")
	return written, nil
}

func dumpTable(ctx context.Context, st TableExporter, table, path string, opts model.ExportOptions) (err error) {
	f, err := os.Create(path) //nolint:gosec // path is built from a sanitized table name
	if err != nil {
		return model.E(opDump, model.KindOther, fmt.Errorf("failed to create output file: %w", err)).WithTable(table)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, model.E(opDump, model.KindOther, cerr).WithTable(table))
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	return st.Export(ctx, table, f, opts)
}
