package models

import "time"

// SeriesPoint is one normalized value of a financial concept for one period.
type SeriesPoint struct {
	PeriodLabel string    `json:"period_label"` // e.g. "CY2024Q2" or "2024Q2"
	PeriodEnd   time.Time `json:"period_end"`
	FormType    string    `json:"form_type"`
	FiledDate   time.Time `json:"filed_date"`
	Value       *float64  `json:"value"` // nil when the reported value was not numeric
}

// NormalizedSeries is a deduplicated, chronologically ordered series for one concept.
// It holds at most one point per PeriodEnd, ascending by PeriodEnd.
type NormalizedSeries struct {
	Label     string        `json:"label"`     // e.g. "Revenue"
	Reference string        `json:"reference"` // e.g. "us-gaap:Revenues"
	Unit      string        `json:"unit,omitempty"`
	Points    []SeriesPoint `json:"points"`
}

// Empty reports whether the series resolved no periods.
func (s NormalizedSeries) Empty() bool { return len(s.Points) == 0 }

// PanelRow is one period of the KPI panel. A column missing from Values is an empty cell.
type PanelRow struct {
	PeriodLabel string             `json:"period_label"`
	PeriodEnd   time.Time          `json:"period_end"`
	FormType    string             `json:"form_type"`
	FiledDate   time.Time          `json:"filed_date"`
	Values      map[string]float64 `json:"values"`
}

// Value returns the cell for column and whether it is present.
func (r PanelRow) Value(column string) (float64, bool) {
	v, ok := r.Values[column]
	return v, ok
}

// KPIPanel is the wide, period-aligned table of concept values and derived ratios.
type KPIPanel struct {
	Columns []string   `json:"columns"` // value columns in insertion order
	Rows    []PanelRow `json:"rows"`    // ascending by PeriodEnd
}

// Empty reports whether the panel has no rows.
func (p *KPIPanel) Empty() bool { return p == nil || len(p.Rows) == 0 }

// HasColumn reports whether column is part of the panel.
func (p *KPIPanel) HasColumn(column string) bool {
	if p == nil {
		return false
	}
	for _, c := range p.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// Tail returns a panel holding only the last n rows. n <= 0 returns the panel unchanged.
func (p *KPIPanel) Tail(n int) *KPIPanel {
	if p == nil || n <= 0 || len(p.Rows) <= n {
		return p
	}
	return &KPIPanel{
		Columns: p.Columns,
		Rows:    p.Rows[len(p.Rows)-n:],
	}
}

// ResolutionStatus tells whether a requested concept produced a series.
type ResolutionStatus string

const (
	StatusResolved ResolutionStatus = "Resolved"
	StatusMissing  ResolutionStatus = "Missing"
)

// AuditEntry records how one requested concept resolved.
type AuditEntry struct {
	Concept   string           `json:"concept"`
	Status    ResolutionStatus `json:"status"`
	Reference string           `json:"reference"` // taxonomy:tag
	Unit      string           `json:"unit,omitempty"`
}

// Column returns the cells of column in row order; nil entries are empty cells.
func (p *KPIPanel) Column(column string) []*float64 {
	if p == nil {
		return nil
	}
	out := make([]*float64, len(p.Rows))
	for i, r := range p.Rows {
		if v, ok := r.Values[column]; ok {
			out[i] = &v
		}
	}
	return out
}

// Latest returns the most recent row with a value in column.
func (p *KPIPanel) Latest(column string) (PanelRow, float64, bool) {
	if p == nil {
		return PanelRow{}, 0, false
	}
	for i := len(p.Rows) - 1; i >= 0; i-- {
		if v, ok := p.Rows[i].Values[column]; ok {
			return p.Rows[i], v, true
		}
	}
	return PanelRow{}, 0, false
}
