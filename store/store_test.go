package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/kylelemons/godebug/pretty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nao1215/dataexplorer/domain/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, s.Close())
	})
	return s
}

func sampleTable(t *testing.T, rows int) *model.Table {
	t.Helper()
	ids := make([]any, rows)
	names := make([]any, rows)
	scores := make([]any, rows)
	for i := range rows {
		ids[i] = int64(i + 1)
		names[i] = fmt.Sprintf("name-%02d", i+1)
		if i%3 == 0 {
			scores[i] = nil
		} else {
			scores[i] = float64(i) / 2
		}
	}
	tbl, err := model.NewTable(
		model.Column{Name: "id", Type: model.ColumnTypeInteger, Values: ids},
		model.Column{Name: "name", Type: model.ColumnTypeText, Values: names},
		model.Column{Name: "score", Type: model.ColumnTypeReal, Values: scores},
	)
	require.NoError(t, err)
	return tbl
}

func TestCreateOrReplaceThenDescribe(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	res, err := s.CreateOrReplace(ctx, "My Data!", sampleTable(t, 5))
	require.NoError(t, err)
	assert.Equal(t, "my_data_", res.TableName)
	assert.Equal(t, 5, res.RowCount)
	assert.Equal(t, 3, res.ColumnCount)

	desc, err := s.Describe(ctx, "My Data!")
	require.NoError(t, err)
	assert.Equal(t, int64(5), desc.RowCount)
	assert.Len(t, desc.SampleData, SampleSize)

	want := []model.ColumnInfo{
		{Name: "id", Type: "INTEGER"},
		{Name: "name", Type: "TEXT"},
		{Name: "score", Type: "REAL"},
	}
	if diff := pretty.Compare(want, desc.Columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, model.Record{"id": int64(1), "name": "name-01", "score": nil}, desc.SampleData[0])
}

func TestCreateOrReplaceReplaces(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateOrReplace(ctx, "report", sampleTable(t, 10))
	require.NoError(t, err)

	// "Report" sanitizes to the same key, last write wins.
	_, err = s.CreateOrReplace(ctx, "Report", sampleTable(t, 2))
	require.NoError(t, err)

	desc, err := s.Describe(ctx, "report")
	require.NoError(t, err)
	assert.Equal(t, int64(2), desc.RowCount)
}

func TestCreateOrReplaceColumnsDifferingInCase(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	tbl, err := model.NewTable(
		model.ColumnFromStrings("Total", []string{"1", "2"}),
		model.ColumnFromStrings("total", []string{"3", "4"}),
	)
	require.NoError(t, err)

	res, err := s.CreateOrReplace(ctx, "totals", tbl)
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowCount)
	assert.Equal(t, []string{"Total", "total_1"}, res.Descriptor.ColumnNames())

	page, err := s.Paginate(ctx, "totals", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, model.Record{"Total": int64(1), "total_1": int64(3)}, page.Rows[0])
}

func TestCreateOrReplaceEmptyTable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	res, err := s.CreateOrReplace(ctx, "empty", sampleTable(t, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, res.RowCount)
	assert.Empty(t, res.Descriptor.SampleData)
}

func TestDescribeMissingTable(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.Describe(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestListTables(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	tables, err := s.ListTables(ctx)
	require.NoError(t, err)
	assert.Empty(t, tables)

	_, err = s.CreateOrReplace(ctx, "b", sampleTable(t, 3))
	require.NoError(t, err)
	_, err = s.CreateOrReplace(ctx, "a", sampleTable(t, 1))
	require.NoError(t, err)

	tables, err = s.ListTables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "a", tables[0].Name)
	assert.Equal(t, int64(1), tables[0].Descriptor.RowCount)
	assert.Equal(t, "b", tables[1].Name)
	assert.Equal(t, int64(3), tables[1].Descriptor.RowCount)
}

func TestDeleteIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateOrReplace(ctx, "gone", sampleTable(t, 1))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "Gone"))
	require.NoError(t, s.Delete(ctx, "Gone"))

	ok, err := s.Exists(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPaginate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateOrReplace(ctx, "pages", sampleTable(t, 25))
	require.NoError(t, err)

	first, err := s.Paginate(ctx, "pages", 10, 0)
	require.NoError(t, err)
	second, err := s.Paginate(ctx, "pages", 10, 10)
	require.NoError(t, err)
	both, err := s.Paginate(ctx, "pages", 20, 0)
	require.NoError(t, err)

	assert.Len(t, first.Rows, 10)
	assert.Len(t, second.Rows, 10)
	assert.Equal(t, both.Rows, append(append([]model.Record{}, first.Rows...), second.Rows...))
	for _, a := range first.Rows {
		for _, b := range second.Rows {
			assert.NotEqual(t, a["id"], b["id"])
		}
	}
	assert.Equal(t, []string{"id", "name", "score"}, first.Columns)
	assert.Equal(t, int64(25), first.TotalCount)
}

func TestPaginateHasMore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateOrReplace(ctx, "t", sampleTable(t, 20))
	require.NoError(t, err)

	tests := []struct {
		limit, offset int
		wantRows      int
		wantMore      bool
	}{
		{10, 0, 10, true},
		{10, 10, 10, false},
		{19, 0, 19, true},
		{20, 0, 20, false},
		{100, 0, 20, false},
		{5, 30, 0, false},
		{0, 0, 0, true},
	}
	for _, tt := range tests {
		page, err := s.Paginate(ctx, "t", tt.limit, tt.offset)
		require.NoError(t, err)
		assert.Len(t, page.Rows, tt.wantRows, "limit=%d offset=%d", tt.limit, tt.offset)
		assert.Equal(t, tt.wantMore, page.HasMore, "limit=%d offset=%d", tt.limit, tt.offset)
		assert.Equal(t, int64(tt.offset+tt.limit) < page.TotalCount, page.HasMore)
	}
}

func TestPaginateErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Paginate(ctx, "missing", 10, 0)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = s.Paginate(ctx, "missing", -1, 0)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}
