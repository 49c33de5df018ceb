package summary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Provider names.
const (
	ProviderMock   = "mock"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// Default endpoints.
const (
	defaultOpenAIURL = "https://api.openai.com/v1"
	defaultOllamaURL = "http://localhost:11434"
	defaultGeminiURL = "https://generativelanguage.googleapis.com/v1beta"
)

// Config selects and configures a provider.
type Config struct {
	Provider     string
	APIKey       string
	BaseURL      string
	Model        string
	GeminiAPIKey string
	Timeout      time.Duration
	MaxRetries   uint64
	// Seed fixes template phrase selection; zero derives it from the data.
	Seed uint64
}

// completer sends a prompt to a completion API.
type completer interface {
	name() string
	complete(ctx context.Context, c *client, model, prompt string) (text string, tokens int, err error)
}

// LLM summarizes through a completion API and falls back to templates on failure.
type LLM struct {
	provider completer
	model    string
	client   *client
	fallback *Template
	now      func() time.Time
}

// New returns the Summarizer for cfg. Unknown providers and "mock" use templates.
func New(cfg Config) Summarizer {
	tmpl := NewTemplate(cfg.Seed)
	var p completer
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		p = &openAI{provider: ProviderOpenAI, endpoint: orDefault(cfg.BaseURL, defaultOpenAIURL) + "/chat/completions", apiKey: cfg.APIKey}
	case ProviderLocal:
		p = &openAI{provider: ProviderLocal, endpoint: orDefault(cfg.BaseURL, defaultOllamaURL) + "/v1/chat/completions", apiKey: cfg.APIKey}
	case ProviderOllama:
		p = &ollama{baseURL: orDefault(cfg.BaseURL, defaultOllamaURL)}
	case ProviderGemini:
		p = &gemini{baseURL: orDefault(cfg.BaseURL, defaultGeminiURL), apiKey: orDefault(cfg.GeminiAPIKey, cfg.APIKey)}
	default:
		return tmpl
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LLM{
		provider: p,
		model:    cfg.Model,
		client:   &client{http: &http.Client{Timeout: timeout}, maxRetries: cfg.MaxRetries},
		fallback: tmpl,
		now:      time.Now,
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return strings.TrimRight(v, "/")
}

// Summarize implements Summarizer.
func (l *LLM) Summarize(ctx context.Context, info DataInfo, kind Kind) (Result, error) {
	logger := zerolog.Ctx(ctx).With().Str("provider", l.provider.name()).Str("model", l.model).Logger()
	start := l.now()

	text, tokens, err := l.provider.complete(ctx, l.client, l.model, BuildPrompt(info, kind))
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty completion")
	}
	if err != nil {
		logger.Warn().Err(err).Msg("completion failed, using template summary")
		res, ferr := l.fallback.Summarize(ctx, info, kind)
		res.Provider = l.provider.name() + " (fallback)"
		return res, ferr
	}

	return Result{
		Summary:        text,
		SummaryType:    kind,
		Provider:       l.provider.name(),
		Model:          l.model,
		TokensUsed:     tokens,
		ProcessingTime: l.now().Sub(start).Seconds(),
	}, nil
}

// client posts JSON with bounded exponential retry on transport errors,
// 429 and 5xx responses.
type client struct {
	http       *http.Client
	maxRetries uint64
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

func (c *client) postJSON(ctx context.Context, endpoint string, headers map[string]string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return backoff.Permanent(err)
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			serr := &statusError{code: resp.StatusCode, body: truncate(string(data), 200)}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return serr
			}
			return backoff.Permanent(serr)
		}
		if err := json.Unmarshal(data, out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 0
	var policy backoff.BackOff = backoff.WithMaxRetries(b, c.maxRetries)
	policy = backoff.WithContext(policy, ctx)

	return backoff.RetryNotify(op, policy, func(err error, d time.Duration) {
		zerolog.Ctx(ctx).Debug().Err(err).Dur("wait", d).Str("endpoint", redact(endpoint)).Msg("retrying request")
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// redact drops the query string, which may carry an API key.
func redact(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	return u.String()
}

// openAI speaks the chat completions API, also used for local OpenAI compatible servers.
type openAI struct {
	provider string
	endpoint string
	apiKey   string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (o *openAI) name() string { return o.provider }

func (o *openAI) complete(ctx context.Context, c *client, model, prompt string) (string, int, error) {
	if o.provider == ProviderOpenAI && o.apiKey == "" {
		return "", 0, errors.New("missing API key")
	}
	headers := map[string]string{}
	if o.apiKey != "" {
		headers["Authorization"] = "Bearer " + o.apiKey
	}
	req := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are an expert data analyst."},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   1000,
		Temperature: 0.3,
	}
	var resp chatResponse
	if err := c.postJSON(ctx, o.endpoint, headers, req, &resp); err != nil {
		return "", 0, err
	}
	if len(resp.Choices) == 0 {
		return "", 0, errors.New("no choices in response")
	}
	return resp.Choices[0].Message.Content, resp.Usage.TotalTokens, nil
}

// ollama speaks the Ollama generate API.
type ollama struct {
	baseURL string
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (o *ollama) name() string { return ProviderOllama }

func (o *ollama) complete(ctx context.Context, c *client, model, prompt string) (string, int, error) {
	req := ollamaRequest{
		Model:   model,
		Prompt:  prompt,
		Options: map[string]any{"temperature": 0.3, "num_predict": 1000},
	}
	var resp ollamaResponse
	if err := c.postJSON(ctx, o.baseURL+"/api/generate", nil, req, &resp); err != nil {
		return "", 0, err
	}
	return resp.Response, resp.PromptEvalCount + resp.EvalCount, nil
}

// gemini speaks the Gemini generateContent API.
type gemini struct {
	baseURL string
	apiKey  string
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (g *gemini) name() string { return ProviderGemini }

func (g *gemini) complete(ctx context.Context, c *client, model, prompt string) (string, int, error) {
	if g.apiKey == "" {
		return "", 0, errors.New("missing API key")
	}
	req := geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}}
	req.GenerationConfig.Temperature = 0.3
	req.GenerationConfig.MaxOutputTokens = 1000

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, url.PathEscape(model), url.QueryEscape(g.apiKey))
	var resp geminiResponse
	if err := c.postJSON(ctx, endpoint, nil, req, &resp); err != nil {
		return "", 0, err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", 0, errors.New("no candidates in response")
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String(), resp.UsageMetadata.TotalTokenCount, nil
}
