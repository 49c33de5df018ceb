package explorer

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/nao1215/dataexplorer/domain/model"
	"github.com/nao1215/dataexplorer/summary"
)

const opSummarize = "explorer.Summarize"

// SummaryResponse carries a generated summary.
type SummaryResponse struct {
	Envelope
	summary.Result
}

// Summarize describes a table, samples up to sampleSize leading rows and
// asks the summarizer for a summary of the requested type. A non-positive
// sample size becomes DefaultSampleSize.
func (e *Explorer) Summarize(ctx context.Context, name, summaryType string, sampleSize int) (*SummaryResponse, error) {
	kind := summary.ParseKind(summaryType)
	fail := func(err error) (*SummaryResponse, error) {
		return &SummaryResponse{Envelope: failed(err), Result: summary.Result{SummaryType: kind}}, err
	}
	if err := requireName(opSummarize, name); err != nil {
		return fail(err)
	}
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}

	info, err := e.dataInfo(ctx, name, sampleSize)
	if err != nil {
		return fail(err)
	}
	if len(info.SampleRows) == 0 {
		return fail(model.ES(opSummarize, model.KindInvalidArgument, "no data available for summarization").WithTable(info.TableName))
	}

	res, err := e.summarizer.Summarize(ctx, info, kind)
	if err != nil {
		return fail(model.E(opSummarize, model.KindOther, err).WithTable(info.TableName))
	}
	zerolog.Ctx(ctx).Info().
		Str("table", info.TableName).
		Str("provider", res.Provider).
		Str("summary_type", string(res.SummaryType)).
		Msg("summary generated")
	return &SummaryResponse{Envelope: ok(), Result: res}, nil
}

// dataInfo builds the summarizer input from a descriptor and a leading page.
func (e *Explorer) dataInfo(ctx context.Context, name string, sampleSize int) (summary.DataInfo, error) {
	desc, err := e.store.Describe(ctx, name)
	if err != nil {
		return summary.DataInfo{}, err
	}
	page, err := e.store.Paginate(ctx, name, sampleSize, 0)
	if err != nil {
		return summary.DataInfo{}, err
	}

	types := make(map[string]string, len(desc.Columns))
	for _, c := range desc.Columns {
		types[c.Name] = c.Type
	}
	return summary.DataInfo{
		TableName:   model.SanitizeTableName(name),
		RowCount:    desc.RowCount,
		ColumnCount: len(desc.Columns),
		Columns:     desc.ColumnNames(),
		DataTypes:   types,
		SampleRows:  page.Rows,
	}, nil
}
