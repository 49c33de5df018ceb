package summary

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strings"
	"time"
	"unicode"

	"github.com/samber/lo"
)

// Name and model reported by the template generator.
const (
	templateProvider = "enhanced_mock"
	templateModel    = "template-v1"
)

var (
	openers = []string{
		"A look at this dataset shows a few clear patterns.",
		"Here is what stands out after examining the data.",
		"The structure of this table suggests the following.",
		"Reviewing the columns and sample rows gives this picture.",
		"Several characteristics of this data are worth calling out.",
	}
	hedges = []string{
		"judging by the schema",
		"from the sample rows",
		"on the available evidence",
		"as far as the structure shows",
		"based on the column types",
	}
	connectors = []string{
		"In addition,",
		"Beyond that,",
		"Notably,",
		"It is also worth noting that",
		"On top of this,",
	}
	suggestions = []string{
		"start with",
		"consider",
		"look next at",
		"prioritize",
		"follow up with",
	}
)

// Column name groups used to recognize common kinds of data.
var (
	identifierCols = []string{"id", "customer_id", "user_id", "order_id", "uuid"}
	temporalCols   = []string{"date", "time", "created", "updated", "timestamp", "year", "month"}
	personalCols   = []string{"name", "email", "phone", "address", "contact"}
	geoCols        = []string{"country", "city", "location", "region", "state", "latitude", "longitude"}
	customerCols   = []string{"customer", "user", "client", "account"}
	businessCols   = []string{"company", "business", "organization", "revenue", "price", "sales"}
)

// Template generates summaries from fixed templates. Phrase selection is
// driven by a seeded generator, so equal inputs give equal text.
type Template struct {
	// Seed fixes phrase selection. Zero derives the seed from the data shape.
	Seed uint64
	now  func() time.Time
}

// NewTemplate creates a template generator.
func NewTemplate(seed uint64) *Template {
	return &Template{Seed: seed, now: time.Now}
}

// Summarize implements Summarizer.
func (t *Template) Summarize(_ context.Context, info DataInfo, kind Kind) (Result, error) {
	now := t.now
	if now == nil {
		now = time.Now
	}
	start := now()
	seed := t.Seed
	if seed == 0 {
		seed = shapeSeed(info)
	}
	text := Generate(seed, info, kind)
	return Result{
		Summary:        text,
		SummaryType:    kind,
		Provider:       templateProvider,
		Model:          templateModel,
		TokensUsed:     len(strings.Fields(text)),
		ProcessingTime: now().Sub(start).Seconds(),
	}, nil
}

// shapeSeed hashes the table shape into a seed.
func shapeSeed(info DataInfo) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%d|%s", info.TableName, info.RowCount, info.ColumnCount, strings.Join(info.Columns, ","))
	return h.Sum64()
}

// SizeCategory classifies a row count as small, medium or large.
func SizeCategory(rows int64) string {
	switch {
	case rows < 100:
		return "small"
	case rows < 10000:
		return "medium"
	default:
		return "large"
	}
}

// Generate renders a summary of the given kind. It is a pure function of its arguments.
func Generate(seed uint64, info DataInfo, kind Kind) string {
	g := &generator{
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		info: info,
		size: SizeCategory(info.RowCount),
		cols: lo.Map(info.Columns, func(c string, _ int) string { return strings.ToLower(c) }),
	}
	switch kind {
	case KindOverview:
		return g.overview()
	case KindStatistical:
		return g.statistical()
	case KindInsights:
		return g.insights()
	case KindBusiness:
		return g.business()
	default:
		return g.general()
	}
}

type generator struct {
	rng  *rand.Rand
	info DataInfo
	size string
	cols []string
}

func (g *generator) pick(phrases []string) string {
	return phrases[g.rng.IntN(len(phrases))]
}

func (g *generator) has(group []string) bool {
	return lo.SomeBy(g.cols, func(c string) bool { return lo.Contains(group, c) })
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func (g *generator) overview() string {
	var b strings.Builder
	b.WriteString(g.pick(openers) + "\n\n")

	sizeText := map[string]string{
		"small":  "a compact dataset of %d records, well suited to close inspection",
		"medium": "a mid-sized dataset of %d records with room for meaningful aggregation",
		"large":  "a large dataset of %d records that supports broad statistical analysis",
	}[g.size]
	fmt.Fprintf(&b, "**Structure**: This is "+sizeText+" across %d columns.\n\n", g.info.RowCount, g.info.ColumnCount)

	if len(g.info.Columns) > 0 {
		var notes []string
		if g.has(identifierCols) {
			notes = append(notes, "Identifier columns allow tracking individual entities.")
		}
		if g.has(temporalCols) {
			notes = append(notes, "Date or time columns make trend analysis possible.")
		}
		if g.has(personalCols) {
			notes = append(notes, "Contact fields suggest customer or user records.")
		}
		if g.has(geoCols) {
			notes = append(notes, "Geographic fields open up regional breakdowns.")
		}
		if len(notes) > 0 {
			b.WriteString("**Composition**: " + strings.Join(notes, " ") + "\n\n")
		}
		b.WriteString("**Key columns**: " + strings.Join(lo.Slice(g.info.Columns, 0, 5), ", "))
		if extra := len(g.info.Columns) - 5; extra > 0 {
			fmt.Fprintf(&b, " (plus %d more)", extra)
		}
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "**Outlook**: %s, the table is ready for exploration, charting and modeling.", capitalize(g.pick(hedges)))
	return b.String()
}

// completeness returns the share of non-null cells in the sample, or -1 without a sample.
func (g *generator) completeness() float64 {
	var cells, filled int
	for _, row := range g.info.SampleRows {
		for _, c := range g.info.Columns {
			cells++
			if v, ok := row[c]; ok && v != nil && v != "" {
				filled++
			}
		}
	}
	if cells == 0 {
		return -1
	}
	return float64(filled) / float64(cells) * 100
}

func isNumericType(t string) bool {
	t = strings.ToUpper(t)
	for _, n := range []string{"INT", "REAL", "DOUBLE", "FLOAT", "DECIMAL", "NUMERIC"} {
		if strings.Contains(t, n) {
			return true
		}
	}
	return false
}

func (g *generator) statistical() string {
	var b strings.Builder
	b.WriteString(g.pick(openers) + "\n\n")

	power := "adequate"
	if g.info.RowCount > 1000 {
		power = "robust"
	}
	dims := "manageable"
	if g.info.ColumnCount > 20 {
		dims = "high-dimensional"
	}
	b.WriteString("**Statistical profile**:\n")
	fmt.Fprintf(&b, "- Sample size: %d observations give %s statistical power\n", g.info.RowCount, power)
	fmt.Fprintf(&b, "- Dimensionality: %d variables form a %s feature space\n\n", g.info.ColumnCount, dims)

	if len(g.info.DataTypes) > 0 {
		numeric := lo.CountBy(lo.Values(g.info.DataTypes), isNumericType)
		text := len(g.info.DataTypes) - numeric
		b.WriteString("**Types**:\n")
		if numeric > 0 {
			fmt.Fprintf(&b, "- %d numeric columns support quantitative modeling\n", numeric)
		}
		if text > 0 {
			fmt.Fprintf(&b, "- %d text or categorical columns support grouping and segmentation\n", text)
		}
		b.WriteString("\n")
	}

	if c := g.completeness(); c >= 0 {
		fmt.Fprintf(&b, "**Quality**: %.0f%% of sampled cells are populated. %s the sample follows a consistent format.\n\n",
			c, g.pick(connectors))
	}

	fmt.Fprintf(&b, "**Next steps**: %s, %s correlation analysis, distribution checks and outlier detection.",
		capitalize(g.pick(hedges)), g.pick(suggestions))
	return b.String()
}

func (g *generator) insights() string {
	var b strings.Builder
	b.WriteString(g.pick(openers) + "\n\n")
	b.WriteString("**Insights**:\n\n")

	var items []string
	if g.has(temporalCols) {
		items = append(items, "**Time**: date columns allow trend and seasonality analysis")
	}
	if g.has(geoCols) {
		items = append(items, "**Geography**: location data supports regional segmentation")
	}
	if g.has(customerCols) {
		items = append(items, "**Customers**: customer columns enable behavioral analysis")
	}
	if g.has(personalCols) {
		items = append(items, "**Contact**: contact fields support engagement analysis")
	}
	if g.has(businessCols) {
		items = append(items, "**Business**: commercial fields enable revenue and account analysis")
	}
	if len(items) == 0 {
		items = []string{
			"**Structure**: the table is regular enough for several kinds of analysis",
			"**Relationships**: pairs of columns are worth testing for correlation",
			"**Readiness**: the data can be queried without further preparation",
		}
	}
	for i, item := range lo.Slice(items, 0, 4) {
		fmt.Fprintf(&b, "%d. %s\n\n", i+1, item)
	}

	fmt.Fprintf(&b, "%s %s exploratory queries to confirm these observations.", g.pick(connectors), g.pick(suggestions))
	return b.String()
}

func (g *generator) business() string {
	var b strings.Builder
	b.WriteString(g.pick(openers) + "\n\n")
	b.WriteString("**Business view**:\n\n")

	var uses []string
	if g.has(customerCols) {
		uses = append(uses, "customer relationship management")
	}
	if g.has(temporalCols) {
		uses = append(uses, "lifecycle analysis")
	}
	if g.has(geoCols) {
		uses = append(uses, "market planning")
	}
	if g.has(businessCols) {
		uses = append(uses, "commercial reporting")
	}
	useText := "general business analysis"
	if len(uses) > 0 {
		useText = strings.Join(uses, ", ")
	}
	fmt.Fprintf(&b, "**Value**: The data supports %s with %d records.\n\n", useText, g.info.RowCount)

	scale := map[string]string{
		"small":  "targeted operational decisions",
		"medium": "team level planning",
		"large":  "organization wide reporting",
	}[g.size]
	fmt.Fprintf(&b, "**Scale**: The volume is appropriate for %s.\n\n", scale)

	b.WriteString("**Recommendations**:\n")
	b.WriteString("1. Build a dashboard over the key columns\n")
	b.WriteString("2. Segment records by the main categorical fields\n")
	b.WriteString("3. Track changes over time where dates are available\n")
	b.WriteString("4. Monitor data quality as new uploads arrive\n\n")

	fmt.Fprintf(&b, "%s, the dataset can be used as is.", capitalize(g.pick(hedges)))
	return b.String()
}

func (g *generator) general() string {
	var b strings.Builder
	b.WriteString(g.pick(openers) + "\n\n")
	fmt.Fprintf(&b, "This is a %s dataset with %d records across %d columns. ", g.size, g.info.RowCount, g.info.ColumnCount)
	fmt.Fprintf(&b, "%s, it is well suited to exploration. ", capitalize(g.pick(hedges)))
	fmt.Fprintf(&b, "%s the columns offer several angles for analysis.", g.pick(connectors))
	return b.String()
}
