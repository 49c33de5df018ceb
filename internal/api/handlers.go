package api

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/nao1215/dataexplorer/domain/model"
	"github.com/nao1215/dataexplorer/explorer"
	"github.com/nao1215/dataexplorer/summary"
)

// Handler serves the dashboard API.
type Handler struct {
	explorer *explorer.Explorer
	version  string
}

// NewHandler creates a handler over ex.
func NewHandler(ex *explorer.Explorer, version string) *Handler {
	return &Handler{explorer: ex, version: version}
}

// HandleRoot returns the service banner.
func (h *Handler) HandleRoot(c echo.Context) error {
	return respond(c, http.StatusOK, map[string]any{
		"message": "Data Explorer and LLM Summary Dashboard API",
		"version": h.version,
		"endpoints": []string{
			"POST /upload", "POST /query", "POST /summarize",
			"GET /tables", "GET /tables/:name", "DELETE /tables/:name",
			"GET /tables/:name/data", "GET /tables/:name/export",
			"POST /public-data", "GET /summary/providers", "GET /health",
		},
	})
}

// HandleHealth reports whether the store answers.
func (h *Handler) HandleHealth(c echo.Context) error {
	resp, err := h.explorer.Health(c.Request().Context())
	if err != nil {
		return respond(c, http.StatusServiceUnavailable, resp)
	}
	return respond(c, http.StatusOK, resp)
}

// HandleUpload stores the multipart field "file" as a table.
func (h *Handler) HandleUpload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return NewValidationError("file")
	}
	src, err := fh.Open()
	if err != nil {
		return NewBadRequestError("failed to read uploaded file", err)
	}
	defer src.Close()

	resp, err := h.explorer.Upload(c.Request().Context(), fh.Filename, src)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, resp)
}

type queryRequest struct {
	SQL string `json:"sql"`
	// Query is accepted as an alias of SQL.
	Query string `json:"query"`
}

// HandleQuery runs an ad-hoc statement.
func (h *Handler) HandleQuery(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	stmt := req.SQL
	if stmt == "" {
		stmt = req.Query
	}
	if stmt == "" {
		return NewValidationError("sql")
	}

	resp, err := h.explorer.Query(c.Request().Context(), stmt)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, resp)
}

type summarizeRequest struct {
	TableName   string `json:"table_name"`
	SummaryType string `json:"summary_type"`
	SampleSize  int    `json:"sample_size"`
}

// HandleSummarize generates a summary of a table.
func (h *Handler) HandleSummarize(c echo.Context) error {
	var req summarizeRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.TableName == "" {
		return NewValidationError("table_name")
	}

	resp, err := h.explorer.Summarize(c.Request().Context(), req.TableName, req.SummaryType, req.SampleSize)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, resp)
}

// HandleProviders lists the configurable summary providers.
func (h *Handler) HandleProviders(c echo.Context) error {
	return respond(c, http.StatusOK, map[string]any{"providers": summary.Providers()})
}

// HandleListTables lists stored tables.
func (h *Handler) HandleListTables(c echo.Context) error {
	resp, err := h.explorer.ListTables(c.Request().Context())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, resp)
}

// HandleDescribeTable returns a table descriptor.
func (h *Handler) HandleDescribeTable(c echo.Context) error {
	resp, err := h.explorer.Describe(c.Request().Context(), c.Param("name"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, resp)
}

// HandleDeleteTable drops a table.
func (h *Handler) HandleDeleteTable(c echo.Context) error {
	resp, err := h.explorer.Delete(c.Request().Context(), c.Param("name"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, resp)
}

// queryInt parses an optional integer query parameter.
func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, NewValidationError(name)
	}
	return n, nil
}

// HandleTableData returns a window of rows.
func (h *Handler) HandleTableData(c echo.Context) error {
	limit, err := queryInt(c, "limit", explorer.DefaultLimit)
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset", explorer.DefaultOffset)
	if err != nil {
		return err
	}

	resp, err := h.explorer.Paginate(c.Request().Context(), c.Param("name"), limit, offset)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, resp)
}

// HandleExportTable downloads a table as a file.
func (h *Handler) HandleExportTable(c echo.Context) error {
	format, err := model.ParseExportFormat(c.QueryParam("format"))
	if err != nil {
		return err
	}
	compression, err := model.ParseCompression(c.QueryParam("compression"))
	if err != nil {
		return err
	}
	opts := model.NewExportOptions().WithFormat(format).WithCompression(compression)
	table := model.SanitizeTableName(c.Param("name"))

	var buf bytes.Buffer
	if err := h.explorer.Export(c.Request().Context(), c.Param("name"), &buf, opts); err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+opts.FileName(table)+`"`)
	c.Response().Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	return c.Blob(http.StatusOK, opts.ContentType(), buf.Bytes())
}

type publicDataRequest struct {
	Source string `json:"source"`
	// DataType is accepted as an alias of Source.
	DataType string `json:"data_type"`
}

// HandlePublicData loads a public data set into a table.
func (h *Handler) HandlePublicData(c echo.Context) error {
	var req publicDataRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	source := req.Source
	if source == "" {
		source = req.DataType
	}
	if source == "" {
		return NewValidationError("source")
	}

	resp, err := h.explorer.LoadPublicData(c.Request().Context(), source)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, resp)
}
