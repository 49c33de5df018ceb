package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/nao1215/dataexplorer/domain/model"
	"github.com/nao1215/dataexplorer/explorer"
	"github.com/nao1215/dataexplorer/internal/config"
	"github.com/nao1215/dataexplorer/store"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	s, err := store.OpenSQLite(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, s.Close())
	})
	ex := explorer.New(s, explorer.WithUploadDir(t.TempDir()))
	return NewServer(config.DefaultConfig().Server, NewHandler(ex, "test"), zerolog.Nop())
}

func do(t *testing.T, e *echo.Echo, method, target string, body io.Reader, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, e, method, target, strings.NewReader(body), map[string]string{echo.HeaderContentType: echo.MIMEApplicationJSON})
}

func upload(t *testing.T, e *echo.Echo, fileName, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return do(t, e, http.MethodPost, "/upload", &buf, map[string]string{echo.HeaderContentType: mw.FormDataContentType()})
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const salesCSV = "id,region,amount\n1,north,10\n2,south,20\n3,north,30\n"

func TestRootAndHealth(t *testing.T) {
	t.Parallel()
	e := newTestServer(t)

	rec := do(t, e, http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", decode(t, rec)["version"])

	rec = do(t, e, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "sqlite", body["engine"])
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = do(t, e, http.MethodGet, "/summary/providers", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"gemini"`)
}

func TestUploadAndBrowse(t *testing.T) {
	t.Parallel()
	e := newTestServer(t)

	rec := upload(t, e, "Q1 Sales.csv", salesCSV)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "q1_sales", body["table_name"])
	assert.InDelta(t, 3, body["row_count"], 0)

	rec = do(t, e, http.MethodGet, "/tables", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 1, decode(t, rec)["count"], 0)

	rec = do(t, e, http.MethodGet, "/tables/q1_sales", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode(t, rec)["info"].(map[string]any)
	assert.InDelta(t, 3, info["row_count"], 0)

	rec = do(t, e, http.MethodGet, "/tables/q1_sales/data?limit=2&offset=0", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode(t, rec)
	assert.Len(t, page["data"], 2)
	assert.Equal(t, true, page["has_more"])
	assert.InDelta(t, 3, page["total_count"], 0)

	rec = do(t, e, http.MethodGet, "/tables/q1_sales/data?limit=abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, rec)["code"])

	rec = do(t, e, http.MethodGet, "/tables/q1_sales/export?format=tsv", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "id\tregion\tamount\n1\tnorth\t10\n2\tsouth\t20\n3\tnorth\t30\n", rec.Body.String())
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), `filename="q1_sales.tsv"`)

	rec = do(t, e, http.MethodGet, "/tables/q1_sales/export?format=yaml", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, e, http.MethodDelete, "/tables/q1_sales", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, e, http.MethodGet, "/tables/q1_sales", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestUploadErrors(t *testing.T) {
	t.Parallel()
	e := newTestServer(t)

	tests := []struct {
		name     string
		fileName string
		content  string
		wantCode string
	}{
		{name: "unsupported extension", fileName: "notes.txt", content: "x", wantCode: "UNSUPPORTED_FORMAT"},
		{name: "json scalar", fileName: "x.json", content: "42", wantCode: "UNSUPPORTED_STRUCTURE"},
		{name: "invalid json", fileName: "x.json", content: "{", wantCode: "DECODE_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := upload(t, e, tt.fileName, tt.content)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantCode, decode(t, rec)["code"])
		})
	}

	rec := do(t, e, http.MethodPost, "/upload", strings.NewReader(""), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, rec)["code"])
}

func TestQuery(t *testing.T) {
	t.Parallel()
	e := newTestServer(t)
	require.Equal(t, http.StatusOK, upload(t, e, "sales.csv", salesCSV).Code)

	rec := doJSON(t, e, http.MethodPost, "/query", `{"sql":"SELECT region, SUM(amount) AS total FROM sales GROUP BY region ORDER BY region"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, []any{"region", "total"}, body["columns"])
	assert.InDelta(t, 2, body["row_count"], 0)

	rec = doJSON(t, e, http.MethodPost, "/query", `{"query":"DROP TABLE IF EXISTS nonexistent"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 0, decode(t, rec)["affected_rows"], 0)

	rec = doJSON(t, e, http.MethodPost, "/query", `{"sql":"SELECT * FROM nowhere"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "ENGINE_ERROR", body["code"])
	assert.Contains(t, body["error"], "SELECT * FROM nowhere")

	rec = doJSON(t, e, http.MethodPost, "/query", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, e, http.MethodPost, "/query", `{"sql":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "HTTP_ERROR", decode(t, rec)["code"])
}

func TestSummarizeAndPublicData(t *testing.T) {
	t.Parallel()
	e := newTestServer(t)

	rec := doJSON(t, e, http.MethodPost, "/public-data", `{"source":"weather"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "public_weather", decode(t, rec)["table_name"])

	rec = doJSON(t, e, http.MethodPost, "/public-data", `{"data_type":"stocks"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, e, http.MethodPost, "/public-data", `{"source":"lottery"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, e, http.MethodPost, "/summarize", `{"table_name":"public_weather","summary_type":"business"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "business", body["summary_type"])
	assert.Equal(t, "enhanced_mock", body["provider"])
	assert.NotEmpty(t, body["summary"])

	rec = doJSON(t, e, http.MethodPost, "/summarize", `{"table_name":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, e, http.MethodPost, "/summarize", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMsgpackResponses(t *testing.T) {
	t.Parallel()
	e := newTestServer(t)
	require.Equal(t, http.StatusOK, upload(t, e, "sales.csv", salesCSV).Code)

	rec := do(t, e, http.MethodGet, "/tables/sales/data?limit=1", nil, map[string]string{echo.HeaderAccept: MIMEApplicationMsgpack})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MIMEApplicationMsgpack, rec.Header().Get(echo.HeaderContentType))

	var page struct {
		Success    bool             `msgpack:"success"`
		TotalCount int64            `msgpack:"total_count"`
		Data       []map[string]any `msgpack:"data"`
	}
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &page))
	assert.True(t, page.Success)
	assert.Equal(t, int64(3), page.TotalCount)
	assert.Len(t, page.Data, 1)

	rec = do(t, e, http.MethodGet, "/tables/none", nil, map[string]string{echo.HeaderAccept: MIMEApplicationMsgpack})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var apiErr APIError
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
}

func TestFromError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", model.ES("op", model.KindNotFound, "gone"), http.StatusNotFound, "NOT_FOUND"},
		{"no sheet", model.ES("op", model.KindNoNonEmptySheet, "empty"), http.StatusBadRequest, "NO_NON_EMPTY_SHEET"},
		{"no content", model.ES("op", model.KindNoExtractableContent, "blank"), http.StatusBadRequest, "NO_EXTRACTABLE_CONTENT"},
		{"user statement", model.ES("op", model.KindEngineError, "syntax").WithStatement("SELEC 1"), http.StatusBadRequest, "ENGINE_ERROR"},
		{"internal engine", model.ES("op", model.KindEngineError, "disk"), http.StatusInternalServerError, "ENGINE_ERROR"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"api error", NewValidationError("x"), http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := FromError(tt.err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.False(t, got.Success)
		})
	}
}
