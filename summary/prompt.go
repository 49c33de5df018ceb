package summary

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// promptSampleRows caps the sample rows sent to a provider.
const promptSampleRows = 10

var focus = map[Kind][]string{
	KindOverview: {
		"what the dataset contains and how it is structured",
		"data quality and readiness for analysis",
		"likely use cases",
		"recommendations for using the data",
	},
	KindStatistical: {
		"the statistical profile and distributions",
		"completeness and quality metrics",
		"variance and notable patterns",
		"suitable statistical models",
	},
	KindInsights: {
		"notable patterns and relationships between columns",
		"possible anomalies and trends",
		"opportunities for predictive modeling",
	},
	KindBusiness: {
		"business value of the data",
		"operational improvements it could support",
		"a short implementation plan with success metrics",
	},
}

// BuildPrompt renders the completion prompt for info.
func BuildPrompt(info DataInfo, kind Kind) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a data analyst. Write a %s summary of the following dataset.\n\n", kind)
	if info.TableName != "" {
		fmt.Fprintf(&b, "Table: %s\n", info.TableName)
	}
	fmt.Fprintf(&b, "Records: %d\n", info.RowCount)
	fmt.Fprintf(&b, "Columns (%d): %s\n", info.ColumnCount, strings.Join(info.Columns, ", "))

	if len(info.DataTypes) > 0 {
		parts := make([]string, 0, len(info.Columns))
		for _, c := range info.Columns {
			if t, ok := info.DataTypes[c]; ok {
				parts = append(parts, c+" "+t)
			}
		}
		fmt.Fprintf(&b, "Types: %s\n", strings.Join(parts, ", "))
	}

	if len(info.SampleRows) > 0 {
		rows := info.SampleRows
		if len(rows) > promptSampleRows {
			rows = rows[:promptSampleRows]
		}
		sample, err := json.Marshal(rows)
		if err == nil {
			fmt.Fprintf(&b, "Sample rows: %s\n", sample)
		}
	}

	points, ok := focus[kind]
	if !ok {
		points = focus[KindOverview]
	}
	b.WriteString("\nCover:\n")
	for _, p := range points {
		b.WriteString("- " + p + "\n")
	}
	return b.String()
}
