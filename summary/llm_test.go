package summary

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		provider string
		isLLM    bool
	}{
		{"", false},
		{ProviderMock, false},
		{"unknown", false},
		{ProviderOpenAI, true},
		{"OpenAI", true},
		{ProviderLocal, true},
		{ProviderOllama, true},
		{ProviderGemini, true},
	}
	for _, tt := range tests {
		_, ok := New(Config{Provider: tt.provider}).(*LLM)
		assert.Equal(t, tt.isLLM, ok, "provider %q", tt.provider)
	}
}

func TestLLMOpenAI(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		assert.Equal(t, 1000, req.MaxTokens)
		assert.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "customers")

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Looks good."}}],"usage":{"total_tokens":42}}`))
	}))
	defer srv.Close()

	s := New(Config{Provider: ProviderOpenAI, APIKey: "secret", BaseURL: srv.URL + "/v1", Model: "gpt-test"})
	res, err := s.Summarize(context.Background(), sampleInfo(), KindOverview)
	require.NoError(t, err)
	assert.Equal(t, "Looks good.", res.Summary)
	assert.Equal(t, ProviderOpenAI, res.Provider)
	assert.Equal(t, "gpt-test", res.Model)
	assert.Equal(t, 42, res.TokensUsed)
}

func TestLLMOllama(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req ollamaRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		_, _ = w.Write([]byte(`{"response":"Local summary.","prompt_eval_count":10,"eval_count":5}`))
	}))
	defer srv.Close()

	res, err := New(Config{Provider: ProviderOllama, BaseURL: srv.URL, Model: "llama2"}).
		Summarize(context.Background(), sampleInfo(), KindInsights)
	require.NoError(t, err)
	assert.Equal(t, "Local summary.", res.Summary)
	assert.Equal(t, 15, res.TokensUsed)
}

func TestLLMGemini(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-pro:generateContent"))
		assert.Equal(t, "gkey", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Part one. "},{"text":"Part two."}]}}],"usageMetadata":{"totalTokenCount":7}}`))
	}))
	defer srv.Close()

	res, err := New(Config{Provider: ProviderGemini, GeminiAPIKey: "gkey", BaseURL: srv.URL, Model: "gemini-pro"}).
		Summarize(context.Background(), sampleInfo(), KindBusiness)
	require.NoError(t, err)
	assert.Equal(t, "Part one. Part two.", res.Summary)
	assert.Equal(t, 7, res.TokensUsed)
}

func TestLLMFallback(t *testing.T) {
	t.Parallel()

	t.Run("client error is not retried", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			http.Error(w, "bad key", http.StatusUnauthorized)
		}))
		defer srv.Close()

		res, err := New(Config{Provider: ProviderOpenAI, APIKey: "x", BaseURL: srv.URL, MaxRetries: 3}).
			Summarize(context.Background(), sampleInfo(), KindOverview)
		require.NoError(t, err)
		assert.Equal(t, "openai (fallback)", res.Provider)
		assert.NotEmpty(t, res.Summary)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("server error is retried", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) < 3 {
				http.Error(w, "busy", http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"response":"Third time."}`))
		}))
		defer srv.Close()

		res, err := New(Config{Provider: ProviderOllama, BaseURL: srv.URL, MaxRetries: 3}).
			Summarize(context.Background(), sampleInfo(), KindOverview)
		require.NoError(t, err)
		assert.Equal(t, "Third time.", res.Summary)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("missing key skips the request", func(t *testing.T) {
		t.Parallel()
		res, err := New(Config{Provider: ProviderGemini, Timeout: time.Second}).
			Summarize(context.Background(), sampleInfo(), KindOverview)
		require.NoError(t, err)
		assert.Equal(t, "gemini (fallback)", res.Provider)
	})

	t.Run("empty completion", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}))
		defer srv.Close()

		res, err := New(Config{Provider: ProviderLocal, BaseURL: srv.URL}).
			Summarize(context.Background(), sampleInfo(), KindStatistical)
		require.NoError(t, err)
		assert.Equal(t, "local (fallback)", res.Provider)
		assert.Equal(t, KindStatistical, res.SummaryType)
	})
}

func TestRedact(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "https://example.com/models/m:generateContent", redact("https://example.com/models/m:generateContent?key=secret"))
}
