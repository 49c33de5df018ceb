package explorer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/nao1215/dataexplorer/domain/model"
)

const opUpload = "explorer.Upload"

// Artifact references something produced alongside an upload.
type Artifact struct {
	Kind   string `json:"kind" msgpack:"kind"`
	Format string `json:"format" msgpack:"format"`
	URL    string `json:"url" msgpack:"url"`
}

// UploadResponse is the outcome of an upload.
type UploadResponse struct {
	Envelope
	TableName string     `json:"table_name" msgpack:"table_name"`
	RowCount  int        `json:"row_count" msgpack:"row_count"`
	Columns   []string   `json:"columns" msgpack:"columns"`
	Message   string     `json:"message" msgpack:"message"`
	Artifacts []Artifact `json:"artifacts,omitempty" msgpack:"artifacts,omitempty"`
}

var exportFormats = []model.ExportFormat{
	model.ExportCSV,
	model.ExportTSV,
	model.ExportLTSV,
	model.ExportXLSX,
	model.ExportParquet,
}

func exportArtifacts(table string) []Artifact {
	return lo.Map(exportFormats, func(f model.ExportFormat, _ int) Artifact {
		return Artifact{
			Kind:   "export",
			Format: f.String(),
			URL:    "/tables/" + url.PathEscape(table) + "/export?format=" + f.String(),
		}
	})
}

// Upload stores the body of an uploaded file as a table named after the
// sanitized file name stem. The body is written to a scratch file that is
// removed on every exit path.
func (e *Explorer) Upload(ctx context.Context, fileName string, body io.Reader) (*UploadResponse, error) {
	fail := func(err error) (*UploadResponse, error) {
		return &UploadResponse{Envelope: failed(err), Columns: []string{}}, err
	}

	base := filepath.Base(fileName)
	if strings.TrimSpace(fileName) == "" || base == "." || base == string(filepath.Separator) {
		return fail(model.ES(opUpload, model.KindInvalidArgument, "file name is required"))
	}
	if !model.IsSupportedFile(base) {
		return fail(model.ES(opUpload, model.KindUnsupportedFormat,
			"unsupported file type, supported extensions: %s", strings.Join(model.SupportedExtensions(), ", ")).WithFile(base))
	}

	logger := zerolog.Ctx(ctx).With().Str("file", base).Logger()

	path, err := e.writeScratch(base, body)
	if err != nil {
		return fail(model.E(opUpload, model.KindOther, err).WithFile(base))
	}
	defer func() {
		if rerr := os.Remove(path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			logger.Warn().Err(rerr).Str("path", path).Msg("failed to remove scratch file")
		}
	}()

	tbl, err := e.processor.Process(ctx, path, base)
	if err != nil {
		return fail(err)
	}
	if tbl.RowCount() == 0 {
		return fail(model.ES(opUpload, model.KindUnsupportedStructure, "file contains no data rows").WithFile(base))
	}

	res, err := e.store.CreateOrReplace(ctx, model.TableNameFromFileName(base), tbl)
	if err != nil {
		return fail(err)
	}

	logger.Info().Str("table", res.TableName).Int("rows", res.RowCount).Msg("upload stored")
	return &UploadResponse{
		Envelope:  ok(),
		TableName: res.TableName,
		RowCount:  res.RowCount,
		Columns:   tbl.ColumnNames(),
		Message:   fmt.Sprintf("Successfully uploaded %s with %d rows", base, res.RowCount),
		Artifacts: exportArtifacts(res.TableName),
	}, nil
}

// writeScratch copies body to <uploadDir>/<uuid><ext> and returns the path.
func (e *Explorer) writeScratch(fileName string, body io.Reader) (string, error) {
	dir := e.uploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	path := filepath.Join(dir, uuid.NewString()+strings.ToLower(filepath.Ext(fileName)))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600) //nolint:gosec // path is built from a random id
	if err != nil {
		return "", fmt.Errorf("failed to create scratch file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		return "", errors.Join(fmt.Errorf("failed to write scratch file: %w", err), f.Close(), os.Remove(path))
	}
	if err := f.Close(); err != nil {
		return "", errors.Join(err, os.Remove(path))
	}
	return path, nil
}
