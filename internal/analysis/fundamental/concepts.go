// Package fundamental turns XBRL company facts into normalized quarterly
// series and assembles them into a KPI panel with margins and growth rates.
package fundamental

// Panel column labels for the default concepts.
const (
	LabelRevenue         = "Revenue"
	LabelGrossProfit     = "Gross Profit"
	LabelOperatingIncome = "Operating Income"
	LabelNetIncome       = "Net Income"
	LabelEPSDiluted      = "EPS Diluted"

	LabelGrossMargin     = "Gross Margin"
	LabelOperatingMargin = "Operating Margin"
	LabelNetMargin       = "Net Margin"
)

// ConceptDef names one XBRL concept to extract and the units it may be reported in.
type ConceptDef struct {
	Label    string   // panel column name
	Taxonomy string   // e.g. "us-gaap"
	Tag      string   // e.g. "Revenues"
	Units    []string // preference order
}

// Reference returns the "taxonomy:tag" form shown in the audit.
func (d ConceptDef) Reference() string {
	return d.Taxonomy + ":" + d.Tag
}

// DefaultConcepts is the fixed set of income statement concepts tracked per company.
var DefaultConcepts = []ConceptDef{
	{Label: LabelRevenue, Taxonomy: "us-gaap", Tag: "Revenues", Units: []string{"USD"}},
	{Label: LabelGrossProfit, Taxonomy: "us-gaap", Tag: "GrossProfit", Units: []string{"USD"}},
	{Label: LabelOperatingIncome, Taxonomy: "us-gaap", Tag: "OperatingIncomeLoss", Units: []string{"USD"}},
	{Label: LabelNetIncome, Taxonomy: "us-gaap", Tag: "NetIncomeLoss", Units: []string{"USD"}},
}

// ExtendedConcepts adds diluted EPS to the defaults.
var ExtendedConcepts = append(append([]ConceptDef(nil), DefaultConcepts...), ConceptDef{
	Label:    LabelEPSDiluted,
	Taxonomy: "us-gaap",
	Tag:      "EarningsPerShareDiluted",
	Units:    []string{"USD/shares", "USD / shares", "USD"},
})

// Concepts returns the concept set to build a panel from.
func Concepts(extended bool) []ConceptDef {
	if extended {
		return ExtendedConcepts
	}
	return DefaultConcepts
}

// margins are derived as numerator / Revenue when both columns exist.
var margins = []struct {
	label     string
	numerator string
}{
	{LabelGrossMargin, LabelGrossProfit},
	{LabelOperatingMargin, LabelOperatingIncome},
	{LabelNetMargin, LabelNetIncome},
}

// growthLabels get QoQ and YoY change columns when present.
var growthLabels = []string{LabelRevenue, LabelGrossProfit, LabelOperatingIncome, LabelNetIncome}

const (
	qoqLag = 1
	yoyLag = 4
)

// QoQColumn and YoYColumn name the change columns derived from label.
func QoQColumn(label string) string { return label + " QoQ %" }
func YoYColumn(label string) string { return label + " YoY %" }

// ColumnKind classifies a panel column for display.
type ColumnKind int

const (
	KindValue  ColumnKind = iota // a reported concept value in its unit
	KindMargin                   // a ratio to Revenue
	KindChange                   // a fractional period-over-period change
)

// KindOf returns the kind of a panel column.
func KindOf(column string) ColumnKind {
	for _, m := range margins {
		if column == m.label {
			return KindMargin
		}
	}
	for _, label := range growthLabels {
		if column == QoQColumn(label) || column == YoYColumn(label) {
			return KindChange
		}
	}
	return KindValue
}
