package fundamental

import (
	"sort"

	"github.com/seenimoa/edgarkpi/internal/edgar"
	"github.com/seenimoa/edgarkpi/pkg/models"
)

type rowKey struct {
	label string
	end   int64
	form  string
	filed int64
}

// BuildPanel normalizes every concept in defs and joins the resulting series
// into one panel, one row per distinct (period label, period end, form, filed
// date). Rows are ordered by period end before the derived columns are added:
// margins over Revenue, then quarter-over-quarter (1 row back) and
// year-over-year (4 rows back) changes. The audit has one entry per
// definition, in order. When nothing resolves the panel is empty.
func BuildPanel(facts *edgar.CompanyFacts, defs []ConceptDef) (*models.KPIPanel, []models.AuditEntry) {
	panel := &models.KPIPanel{}
	audit := make([]models.AuditEntry, 0, len(defs))

	rows := make(map[rowKey]*models.PanelRow)
	for _, def := range defs {
		series := NormalizeConcept(facts, def)
		entry := models.AuditEntry{
			Concept:   def.Label,
			Status:    models.StatusMissing,
			Reference: series.Reference,
		}
		if series.Empty() {
			audit = append(audit, entry)
			continue
		}
		entry.Status = models.StatusResolved
		entry.Unit = series.Unit
		audit = append(audit, entry)

		if !panel.HasColumn(def.Label) {
			panel.Columns = append(panel.Columns, def.Label)
		}
		for _, p := range series.Points {
			k := rowKey{label: p.PeriodLabel, end: p.PeriodEnd.Unix(), form: p.FormType, filed: p.FiledDate.Unix()}
			row, ok := rows[k]
			if !ok {
				row = &models.PanelRow{
					PeriodLabel: p.PeriodLabel,
					PeriodEnd:   p.PeriodEnd,
					FormType:    p.FormType,
					FiledDate:   p.FiledDate,
					Values:      make(map[string]float64),
				}
				rows[k] = row
			}
			if p.Value != nil {
				row.Values[def.Label] = *p.Value
			}
		}
	}
	if len(rows) == 0 {
		return panel, audit
	}

	panel.Rows = make([]models.PanelRow, 0, len(rows))
	for _, r := range rows {
		panel.Rows = append(panel.Rows, *r)
	}
	sort.Slice(panel.Rows, func(i, j int) bool {
		a, b := panel.Rows[i], panel.Rows[j]
		if !a.PeriodEnd.Equal(b.PeriodEnd) {
			return a.PeriodEnd.Before(b.PeriodEnd)
		}
		if !a.FiledDate.Equal(b.FiledDate) {
			return a.FiledDate.Before(b.FiledDate)
		}
		if a.FormType != b.FormType {
			return a.FormType < b.FormType
		}
		return a.PeriodLabel < b.PeriodLabel
	})

	addMargins(panel)
	addGrowth(panel)
	return panel, audit
}

// BuildPanelFromPayload builds a panel straight from a company facts payload.
// A payload that cannot be decoded is treated as having no concepts.
func BuildPanelFromPayload(payload []byte, defs []ConceptDef) (*models.KPIPanel, []models.AuditEntry) {
	facts, err := edgar.ParseCompanyFacts(payload)
	if err != nil {
		facts = nil
	}
	return BuildPanel(facts, defs)
}

func addMargins(panel *models.KPIPanel) {
	if !panel.HasColumn(LabelRevenue) {
		return
	}
	for _, m := range margins {
		if !panel.HasColumn(m.numerator) {
			continue
		}
		panel.Columns = append(panel.Columns, m.label)
		for _, row := range panel.Rows {
			num, numOK := row.Value(m.numerator)
			rev, revOK := row.Value(LabelRevenue)
			if v, ok := ratio(num, rev, numOK, revOK); ok {
				row.Values[m.label] = v
			}
		}
	}
}

func addGrowth(panel *models.KPIPanel) {
	for _, label := range growthLabels {
		if !panel.HasColumn(label) {
			continue
		}
		addChange(panel, label, QoQColumn(label), qoqLag)
		addChange(panel, label, YoYColumn(label), yoyLag)
	}
}

// addChange compares each row with the row lag positions earlier. Gaps in
// the quarterly cadence are not corrected for.
func addChange(panel *models.KPIPanel, source, column string, lag int) {
	panel.Columns = append(panel.Columns, column)
	for i := lag; i < len(panel.Rows); i++ {
		prev, prevOK := panel.Rows[i-lag].Value(source)
		cur, curOK := panel.Rows[i].Value(source)
		if v, ok := pctChange(prev, cur, prevOK, curOK); ok {
			panel.Rows[i].Values[column] = v
		}
	}
}
