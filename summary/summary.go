// Package summary turns the shape of a stored table into a natural-language
// summary, either from templates or from an LLM completion API.
package summary

import (
	"context"
	"strings"

	"github.com/nao1215/dataexplorer/domain/model"
)

// Kind selects the focus of a summary.
type Kind string

// Summary kinds.
const (
	KindOverview    Kind = "overview"
	KindStatistical Kind = "statistical"
	KindInsights    Kind = "insights"
	KindBusiness    Kind = "business"
	KindGeneral     Kind = "general"
)

// ParseKind normalizes a requested summary type. "general" and the empty
// string select an overview; unknown types produce a general summary.
func ParseKind(s string) Kind {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", KindGeneral:
		return KindOverview
	case KindOverview, KindStatistical, KindInsights, KindBusiness:
		return k
	default:
		return KindGeneral
	}
}

// DataInfo describes the table being summarized.
type DataInfo struct {
	TableName   string            `json:"table_name,omitempty"`
	RowCount    int64             `json:"row_count"`
	ColumnCount int               `json:"column_count"`
	Columns     []string          `json:"columns"`
	DataTypes   map[string]string `json:"data_types"`
	SampleRows  []model.Record    `json:"sample_data"`
}

// Result is a generated summary.
type Result struct {
	Summary        string  `json:"summary" msgpack:"summary"`
	SummaryType    Kind    `json:"summary_type" msgpack:"summary_type"`
	Provider       string  `json:"provider" msgpack:"provider"`
	Model          string  `json:"model" msgpack:"model"`
	TokensUsed     int     `json:"tokens_used" msgpack:"tokens_used"`
	ProcessingTime float64 `json:"processing_time" msgpack:"processing_time"`
}

// Summarizer produces summaries.
type Summarizer interface {
	Summarize(ctx context.Context, info DataInfo, kind Kind) (Result, error)
}

// ProviderInfo describes a configurable provider.
type ProviderInfo struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	RequiresAPIKey bool   `json:"requires_api_key"`
}

// Providers lists the providers that can be configured.
func Providers() []ProviderInfo {
	return []ProviderInfo{
		{Name: ProviderMock, Description: "template generator, no external calls"},
		{Name: ProviderOpenAI, Description: "OpenAI chat completions", RequiresAPIKey: true},
		{Name: ProviderLocal, Description: "OpenAI compatible server at LLM_BASE_URL"},
		{Name: ProviderOllama, Description: "Ollama generate API"},
		{Name: ProviderGemini, Description: "Google Gemini generateContent", RequiresAPIKey: true},
	}
}
