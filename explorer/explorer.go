// Package explorer is the façade consumed by the HTTP boundary. It validates
// requests, forwards them to the table store and reshapes every outcome into
// a response carrying a success flag and an error message.
package explorer

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nao1215/dataexplorer/domain/model"
	"github.com/nao1215/dataexplorer/ingest"
	"github.com/nao1215/dataexplorer/summary"
)

// Defaults applied when a caller leaves a window or sample size unset.
const (
	DefaultLimit      = 100
	DefaultOffset     = 0
	DefaultSampleSize = 100
)

// Store is the table store used by the façade.
type Store interface {
	CreateOrReplace(ctx context.Context, name string, tbl *model.Table) (*model.CreateResult, error)
	Execute(ctx context.Context, stmt string) (*model.QueryResult, error)
	Describe(ctx context.Context, name string) (*model.Descriptor, error)
	ListTables(ctx context.Context) ([]model.TableSummary, error)
	Delete(ctx context.Context, name string) error
	Paginate(ctx context.Context, name string, limit, offset int) (*model.Page, error)
	Export(ctx context.Context, name string, w io.Writer, opts model.ExportOptions) error
	Exists(ctx context.Context, name string) (bool, error)
	Engine() string
	Ping(ctx context.Context) error
}

// Explorer wires the detector, the store and the summarizer together.
type Explorer struct {
	store      Store
	processor  *ingest.Processor
	summarizer summary.Summarizer
	uploadDir  string
	httpClient *http.Client
	covidURL   string
}

// Option configures an Explorer.
type Option func(*Explorer)

// WithProcessor replaces the default file processor.
func WithProcessor(p *ingest.Processor) Option {
	return func(e *Explorer) { e.processor = p }
}

// WithSummarizer replaces the default template summarizer.
func WithSummarizer(s summary.Summarizer) Option {
	return func(e *Explorer) { e.summarizer = s }
}

// WithUploadDir sets the scratch directory for uploads. The default is the OS temp dir.
func WithUploadDir(dir string) Option {
	return func(e *Explorer) { e.uploadDir = dir }
}

// WithHTTPClient sets the client used for public data sources.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Explorer) { e.httpClient = c }
}

// WithCovidURL overrides the COVID-19 data endpoint.
func WithCovidURL(url string) Option {
	return func(e *Explorer) { e.covidURL = url }
}

// New creates an Explorer over store.
func New(store Store, opts ...Option) *Explorer {
	e := &Explorer{
		store:      store,
		processor:  ingest.New(),
		summarizer: summary.NewTemplate(0),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		covidURL:   defaultCovidURL,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the underlying table store.
func (e *Explorer) Store() Store {
	return e.store
}

// Envelope is the outcome part shared by every response.
type Envelope struct {
	Success bool   `json:"success" msgpack:"success"`
	Error   string `json:"error,omitempty" msgpack:"error,omitempty"`
}

func ok() Envelope { return Envelope{Success: true} }

func failed(err error) Envelope {
	return Envelope{Error: err.Error()}
}

func requireName(op, name string) error {
	if strings.TrimSpace(name) == "" {
		return model.ES(op, model.KindInvalidArgument, "table_name is required")
	}
	return nil
}

// QueryResponse is the outcome of an ad-hoc statement.
type QueryResponse struct {
	Envelope
	Data         []model.Record `json:"data" msgpack:"data"`
	Columns      []string       `json:"columns" msgpack:"columns"`
	RowCount     int            `json:"row_count" msgpack:"row_count"`
	AffectedRows int64          `json:"affected_rows" msgpack:"affected_rows"`
	Message      string         `json:"message,omitempty" msgpack:"message,omitempty"`
}

// Query runs a statement against all stored tables.
func (e *Explorer) Query(ctx context.Context, stmt string) (*QueryResponse, error) {
	if strings.TrimSpace(stmt) == "" {
		err := model.ES("explorer.Query", model.KindInvalidArgument, "sql is required")
		return &QueryResponse{Envelope: failed(err), Data: []model.Record{}, Columns: []string{}}, err
	}
	res, err := e.store.Execute(ctx, stmt)
	if err != nil {
		return &QueryResponse{Envelope: failed(err), Data: []model.Record{}, Columns: []string{}}, err
	}
	resp := &QueryResponse{
		Envelope:     ok(),
		Data:         res.Rows,
		Columns:      res.Columns,
		RowCount:     res.RowCount,
		AffectedRows: res.AffectedRows,
	}
	if resp.Data == nil {
		resp.Data = []model.Record{}
	}
	if resp.Columns == nil {
		resp.Columns = []string{}
	}
	if !res.HasRows {
		resp.Message = "Query executed successfully"
	}
	return resp, nil
}

// DescribeResponse carries a table descriptor.
type DescribeResponse struct {
	Envelope
	TableName string            `json:"table_name" msgpack:"table_name"`
	Info      *model.Descriptor `json:"info,omitempty" msgpack:"info,omitempty"`
}

// Describe returns the descriptor of a table.
func (e *Explorer) Describe(ctx context.Context, name string) (*DescribeResponse, error) {
	table := model.SanitizeTableName(name)
	if err := requireName("explorer.Describe", name); err != nil {
		return &DescribeResponse{Envelope: failed(err)}, err
	}
	desc, err := e.store.Describe(ctx, name)
	if err != nil {
		return &DescribeResponse{Envelope: failed(err), TableName: table}, err
	}
	return &DescribeResponse{Envelope: ok(), TableName: table, Info: desc}, nil
}

// TableEntry is one row of a table listing.
type TableEntry struct {
	Name     string   `json:"name" msgpack:"name"`
	RowCount int64    `json:"row_count" msgpack:"row_count"`
	Columns  []string `json:"columns" msgpack:"columns"`
}

// TablesResponse lists stored tables.
type TablesResponse struct {
	Envelope
	Tables []TableEntry `json:"tables" msgpack:"tables"`
	Count  int          `json:"count" msgpack:"count"`
}

// ListTables lists every stored table with its row count and columns.
func (e *Explorer) ListTables(ctx context.Context) (*TablesResponse, error) {
	tables, err := e.store.ListTables(ctx)
	if err != nil {
		return &TablesResponse{Envelope: failed(err), Tables: []TableEntry{}}, err
	}
	entries := make([]TableEntry, 0, len(tables))
	for _, t := range tables {
		entries = append(entries, TableEntry{
			Name:     t.Name,
			RowCount: t.Descriptor.RowCount,
			Columns:  t.Descriptor.ColumnNames(),
		})
	}
	return &TablesResponse{Envelope: ok(), Tables: entries, Count: len(entries)}, nil
}

// DeleteResponse reports a dropped table.
type DeleteResponse struct {
	Envelope
	Message string `json:"message,omitempty" msgpack:"message,omitempty"`
}

// Delete drops a table. Deleting an absent table succeeds.
func (e *Explorer) Delete(ctx context.Context, name string) (*DeleteResponse, error) {
	if err := requireName("explorer.Delete", name); err != nil {
		return &DeleteResponse{Envelope: failed(err)}, err
	}
	if err := e.store.Delete(ctx, name); err != nil {
		return &DeleteResponse{Envelope: failed(err)}, err
	}
	return &DeleteResponse{
		Envelope: ok(),
		Message:  "Table " + model.SanitizeTableName(name) + " deleted successfully",
	}, nil
}

// PageResponse is a window over a table.
type PageResponse struct {
	Envelope
	TableName string `json:"table_name" msgpack:"table_name"`
	*model.Page
}

// Paginate returns a window of rows. A non-positive limit becomes
// DefaultLimit and a negative offset becomes DefaultOffset.
func (e *Explorer) Paginate(ctx context.Context, name string, limit, offset int) (*PageResponse, error) {
	table := model.SanitizeTableName(name)
	if err := requireName("explorer.Paginate", name); err != nil {
		return &PageResponse{Envelope: failed(err)}, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = DefaultOffset
	}
	page, err := e.store.Paginate(ctx, name, limit, offset)
	if err != nil {
		return &PageResponse{Envelope: failed(err), TableName: table}, err
	}
	return &PageResponse{Envelope: ok(), TableName: table, Page: page}, nil
}

// Export writes a table to w in the requested format.
func (e *Explorer) Export(ctx context.Context, name string, w io.Writer, opts model.ExportOptions) error {
	if err := requireName("explorer.Export", name); err != nil {
		return err
	}
	return e.store.Export(ctx, name, w, opts)
}

// HealthResponse reports liveness of the store.
type HealthResponse struct {
	Status    string    `json:"status" msgpack:"status"`
	Engine    string    `json:"engine" msgpack:"engine"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
}

// Health pings the store.
func (e *Explorer) Health(ctx context.Context) (*HealthResponse, error) {
	resp := &HealthResponse{Status: "healthy", Engine: e.store.Engine(), Timestamp: time.Now()}
	if err := e.store.Ping(ctx); err != nil {
		resp.Status = "unhealthy"
		return resp, err
	}
	return resp, nil
}
