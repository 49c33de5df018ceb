package explorer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/dataexplorer/domain/model"
	"github.com/nao1215/dataexplorer/store"
)

const myDataCSV = "Order ID,customer-name, Amount \n1,Alice,10.5\n2,Bob,20\n3,Carol,7.25\n4,Dave,\n5,Eve,3\n"

func newTestExplorer(t *testing.T, opts ...Option) (*Explorer, string) {
	t.Helper()
	s, err := store.OpenSQLite(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, s.Close())
	})
	dir := t.TempDir()
	return New(s, append([]Option{WithUploadDir(dir)}, opts...)...), dir
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch files left behind")
}

func TestUpload(t *testing.T) {
	t.Parallel()

	t.Run("sanitizes the table name and cleans columns", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		e, dir := newTestExplorer(t)

		resp, err := e.Upload(ctx, "My Data!.csv", strings.NewReader(myDataCSV))
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, "my_data_", resp.TableName)
		assert.Equal(t, 5, resp.RowCount)
		assert.Equal(t, []string{"Order_ID", "customer_name", "Amount"}, resp.Columns)
		assert.Equal(t, "Successfully uploaded My Data!.csv with 5 rows", resp.Message)
		require.Len(t, resp.Artifacts, 5)
		assert.Equal(t, "/tables/my_data_/export?format=csv", resp.Artifacts[0].URL)
		assertDirEmpty(t, dir)

		desc, err := e.Describe(ctx, "My Data!")
		require.NoError(t, err)
		assert.Equal(t, int64(5), desc.Info.RowCount)
		assert.Equal(t, []string{"Order_ID", "customer_name", "Amount"}, desc.Info.ColumnNames())
	})

	t.Run("json longest list", func(t *testing.T) {
		t.Parallel()
		e, dir := newTestExplorer(t)

		resp, err := e.Upload(context.Background(), "items.json",
			strings.NewReader(`{"meta": "x", "items": [{"a":1},{"a":2},{"a":3}]}`))
		require.NoError(t, err)
		assert.Equal(t, "items", resp.TableName)
		assert.Equal(t, 3, resp.RowCount)
		assert.Equal(t, []string{"a"}, resp.Columns)
		assertDirEmpty(t, dir)
	})

	t.Run("scratch file is removed on failure", func(t *testing.T) {
		t.Parallel()
		e, dir := newTestExplorer(t)

		resp, err := e.Upload(context.Background(), "broken.json", strings.NewReader(`[1, 2, 3]`))
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrUnsupportedStructure))
		assert.False(t, resp.Success)
		assert.NotEmpty(t, resp.Error)
		assertDirEmpty(t, dir)
	})

	t.Run("rejects unsupported extension before writing", func(t *testing.T) {
		t.Parallel()
		e, dir := newTestExplorer(t)

		resp, err := e.Upload(context.Background(), "notes.txt", strings.NewReader("hello"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrUnsupportedFormat))
		assert.False(t, resp.Success)
		assertDirEmpty(t, dir)
	})

	t.Run("header only file", func(t *testing.T) {
		t.Parallel()
		e, _ := newTestExplorer(t)

		_, err := e.Upload(context.Background(), "empty.csv", strings.NewReader("a,b\n"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrUnsupportedStructure))
	})

	t.Run("missing file name", func(t *testing.T) {
		t.Parallel()
		e, _ := newTestExplorer(t)

		_, err := e.Upload(context.Background(), "", strings.NewReader("a\n1\n"))
		assert.True(t, errors.Is(err, model.ErrInvalidArgument))
	})
}

func TestQuery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, _ := newTestExplorer(t)

	_, err := e.Upload(ctx, "sales.csv", strings.NewReader(myDataCSV))
	require.NoError(t, err)

	t.Run("select", func(t *testing.T) {
		resp, err := e.Query(ctx, "SELECT customer_name FROM sales WHERE Amount > 5 ORDER BY Order_ID")
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, []string{"customer_name"}, resp.Columns)
		assert.Equal(t, 3, resp.RowCount)
		assert.Equal(t, "Alice", resp.Data[0]["customer_name"])
	})

	t.Run("drop missing table", func(t *testing.T) {
		resp, err := e.Query(ctx, "DROP TABLE IF EXISTS nonexistent")
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, int64(0), resp.AffectedRows)
		assert.Empty(t, resp.Data)
	})

	t.Run("engine error carries statement", func(t *testing.T) {
		resp, err := e.Query(ctx, "SELECT * FROM missing_table")
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrEngine))
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Error, "SELECT * FROM missing_table")
	})

	t.Run("empty statement", func(t *testing.T) {
		_, err := e.Query(ctx, "  ")
		assert.True(t, errors.Is(err, model.ErrInvalidArgument))
	})
}

func TestPaginate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, _ := newTestExplorer(t)

	var b strings.Builder
	b.WriteString("n\n")
	for i := range 150 {
		fmt.Fprintf(&b, "%d\n", i)
	}
	_, err := e.Upload(ctx, "numbers.csv", strings.NewReader(b.String()))
	require.NoError(t, err)

	tests := []struct {
		name          string
		limit, offset int
		wantLimit     int
		wantOffset    int
		wantRows      int
		wantMore      bool
	}{
		{name: "defaults", limit: 0, offset: -1, wantLimit: 100, wantOffset: 0, wantRows: 100, wantMore: true},
		{name: "last window", limit: 100, offset: 100, wantLimit: 100, wantOffset: 100, wantRows: 50, wantMore: false},
		{name: "exact end", limit: 50, offset: 100, wantLimit: 50, wantOffset: 100, wantRows: 50, wantMore: false},
		{name: "past end", limit: 10, offset: 200, wantLimit: 10, wantOffset: 200, wantRows: 0, wantMore: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := e.Paginate(ctx, "numbers", tt.limit, tt.offset)
			require.NoError(t, err)
			assert.True(t, resp.Success)
			assert.Equal(t, tt.wantLimit, resp.Limit)
			assert.Equal(t, tt.wantOffset, resp.Offset)
			assert.Len(t, resp.Rows, tt.wantRows)
			assert.Equal(t, int64(150), resp.TotalCount)
			assert.Equal(t, tt.wantMore, resp.HasMore)
		})
	}

	t.Run("missing table", func(t *testing.T) {
		resp, err := e.Paginate(ctx, "nope", 10, 0)
		assert.True(t, errors.Is(err, model.ErrNotFound))
		assert.False(t, resp.Success)
	})

	t.Run("blank name", func(t *testing.T) {
		_, err := e.Paginate(ctx, "", 10, 0)
		assert.True(t, errors.Is(err, model.ErrInvalidArgument))
	})
}

func TestListAndDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, _ := newTestExplorer(t)

	for _, name := range []string{"b.csv", "a.csv"} {
		_, err := e.Upload(ctx, name, strings.NewReader("x,y\n1,2\n3,4\n"))
		require.NoError(t, err)
	}

	list, err := e.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, []TableEntry{
		{Name: "a", RowCount: 2, Columns: []string{"x", "y"}},
		{Name: "b", RowCount: 2, Columns: []string{"x", "y"}},
	}, list.Tables)

	del, err := e.Delete(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "Table a deleted successfully", del.Message)

	_, err = e.Delete(ctx, "a")
	require.NoError(t, err, "deleting an absent table is idempotent")

	list, err = e.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Count)

	_, err = e.Describe(ctx, "a")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, _ := newTestExplorer(t)

	_, err := e.Upload(ctx, "sales.csv", strings.NewReader(myDataCSV))
	require.NoError(t, err)

	resp, err := e.Summarize(ctx, "sales", "general", 0)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "overview", string(resp.SummaryType))
	assert.Equal(t, "enhanced_mock", resp.Provider)
	assert.Contains(t, resp.Summary, "5 records")

	_, err = e.Summarize(ctx, "missing", "overview", 10)
	assert.True(t, errors.Is(err, model.ErrNotFound))

	_, err = e.Query(ctx, "CREATE TABLE hollow (a INTEGER)")
	require.NoError(t, err)
	_, err = e.Summarize(ctx, "hollow", "overview", 10)
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))
}

func TestLoadPublicData(t *testing.T) {
	t.Parallel()

	t.Run("built-in samples", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		e, _ := newTestExplorer(t)

		for _, source := range []string{SourceWeather, "Stocks"} {
			resp, err := e.LoadPublicData(ctx, source)
			require.NoError(t, err)
			assert.True(t, resp.Success)
			assert.Equal(t, 5, resp.RowCount)
		}

		page, err := e.Paginate(ctx, "public_stocks", 1, 0)
		require.NoError(t, err)
		assert.Equal(t, "AAPL", page.Rows[0]["symbol"])
		assert.InDelta(t, 150.25, page.Rows[0]["price"], 1e-9)
	})

	t.Run("covid keeps the top countries by cases", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			var parts []string
			for i := range 12 {
				parts = append(parts, fmt.Sprintf(`{"country":"c%02d","cases":%d,"deaths":1,"recovered":2,"active":3,"population":9}`, i, i*100))
			}
			_, _ = w.Write([]byte("[" + strings.Join(parts, ",") + "]"))
		}))
		defer srv.Close()

		ctx := context.Background()
		e, _ := newTestExplorer(t, WithCovidURL(srv.URL))
		resp, err := e.LoadPublicData(ctx, SourceCovid)
		require.NoError(t, err)
		assert.Equal(t, "public_covid", resp.TableName)
		assert.Equal(t, 10, resp.RowCount)
		assert.Equal(t, []string{"country", "cases", "deaths", "recovered", "active"}, resp.Columns)

		q, err := e.Query(ctx, "SELECT country FROM public_covid ORDER BY cases DESC LIMIT 1")
		require.NoError(t, err)
		assert.Equal(t, "c11", q.Data[0]["country"])
	})

	t.Run("covid upstream failure", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		e, _ := newTestExplorer(t, WithCovidURL(srv.URL))
		resp, err := e.LoadPublicData(context.Background(), SourceCovid)
		require.Error(t, err)
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Error, "status code: 404")
	})

	t.Run("unknown source", func(t *testing.T) {
		t.Parallel()
		e, _ := newTestExplorer(t)
		_, err := e.LoadPublicData(context.Background(), "lottery")
		assert.True(t, errors.Is(err, model.ErrInvalidArgument))
	})
}
