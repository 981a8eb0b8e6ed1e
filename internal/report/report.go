package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/seenimoa/edgarkpi/internal/analysis/fundamental"
	"github.com/seenimoa/edgarkpi/internal/edgar"
	"github.com/seenimoa/edgarkpi/pkg/models"
	"github.com/seenimoa/edgarkpi/pkg/utils"
	"github.com/seenimoa/edgarkpi/web"
)

// ════════════════════════════════════════════════════════════════════
// Report Generator: chart + template rendering
// ════════════════════════════════════════════════════════════════════

// ReportFormat specifies the output format.
type ReportFormat string

const (
	FormatHTML ReportFormat = "html"
	FormatText ReportFormat = "text"
	FormatCSV  ReportFormat = "csv"
)

// ReportConfig controls report generation behaviour.
type ReportConfig struct {
	Title      string      // custom report title (optional)
	Author     string      // footer attribution (default: "edgarkpi")
	MaxFilings int         // filings listed; <= 0 lists all
	CSVURL     string      // dashboard link to the CSV export (optional)
	ChartsURL  string      // dashboard link to the interactive charts (optional)
	ChartCfg   ChartConfig // chart rendering config
}

// DefaultReportConfig returns sensible defaults.
func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		Author:     "edgarkpi",
		MaxFilings: 25,
		ChartCfg:   DefaultChartConfig(),
	}
}

// ════════════════════════════════════════════════════════════════════
// Report Data: flattened for template rendering
// ════════════════════════════════════════════════════════════════════

// ReportData is the template model passed to the dashboard template.
type ReportData struct {
	// Header
	Title       string
	Ticker      string
	CompanyName string
	CIK         string
	Author      string
	GeneratedAt string
	CycleID     string
	CSVURL      string
	ChartsURL   string
	Warnings    []string

	Highlights []Highlight
	Filings    []FilingRow
	Audit      []AuditRow

	// KPI table
	HasPanel bool
	Columns  []string
	Rows     []TableRow

	// Charts (embedded SVG strings)
	ValueChart  template.HTML
	MarginChart template.HTML
}

// Highlight is the latest value of one concept.
type Highlight struct {
	Label       string
	Period      string
	Value       string
	Change      string // QoQ change, when available
	ChangeClass string // CSS class: positive, negative
}

// FilingRow is a filing flattened for display.
type FilingRow struct {
	FilingDate string
	ReportDate string
	Form       string
	Accession  string
	Document   string
	URL        string
}

// AuditRow is an audit entry flattened for display.
type AuditRow struct {
	Concept     string
	Status      string
	StatusClass string // CSS class: resolved, missing
	Reference   string
	Unit        string
}

// TableRow is one KPI panel row with formatted cells.
type TableRow struct {
	Period    string
	PeriodEnd string
	Form      string
	Filed     string
	Cells     []Cell
}

// Cell is one formatted panel cell. Empty cells have empty Text.
type Cell struct {
	Text  string
	Class string
}

// ════════════════════════════════════════════════════════════════════
// Generate Report
// ════════════════════════════════════════════════════════════════════

// GenerateHTML renders the company dashboard for a snapshot.
func GenerateHTML(snap *models.CompanySnapshot, cfg ReportConfig) (string, error) {
	var buf bytes.Buffer
	if err := WriteHTML(&buf, snap, cfg); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteHTML renders the company dashboard for a snapshot to w.
func WriteHTML(w io.Writer, snap *models.CompanySnapshot, cfg ReportConfig) error {
	if snap == nil {
		return fmt.Errorf("snapshot is nil")
	}
	data := BuildReportData(snap, cfg)
	if err := web.Dashboard().Execute(w, data); err != nil {
		return fmt.Errorf("executing template: %w", err)
	}
	return nil
}

// GenerateText generates plain-text tables (terminal / CLI friendly).
func GenerateText(snap *models.CompanySnapshot, cfg ReportConfig) (string, error) {
	if snap == nil {
		return "", fmt.Errorf("snapshot is nil")
	}
	return renderTextReport(BuildReportData(snap, cfg)), nil
}

// ════════════════════════════════════════════════════════════════════
// Internal: build template data
// ════════════════════════════════════════════════════════════════════

// BuildReportData flattens a snapshot for rendering.
func BuildReportData(snap *models.CompanySnapshot, cfg ReportConfig) ReportData {
	if cfg.Author == "" {
		cfg.Author = "edgarkpi"
	}
	generated := snap.FetchedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	data := ReportData{
		Title:       cfg.Title,
		Ticker:      snap.Company.Ticker,
		CompanyName: snap.Company.Name,
		CIK:         edgar.PadCIK(snap.Company.CIK),
		Author:      cfg.Author,
		GeneratedAt: ReportTimestamp(generated),
		CycleID:     snap.CycleID,
		CSVURL:      cfg.CSVURL,
		ChartsURL:   cfg.ChartsURL,
		Warnings:    snap.Warnings,
		HasPanel:    !snap.Panel.Empty(),
	}
	if data.Title == "" {
		data.Title = fmt.Sprintf("%s · SEC Filings + KPI Tracker", snap.Company.Ticker)
	}

	data.Filings = FilingRows(snap.Filings, cfg.MaxFilings)
	data.Audit = AuditRows(snap.Audit)

	if data.HasPanel {
		data.Columns = snap.Panel.Columns
		data.Rows = buildTableRows(snap)
		data.Highlights = buildHighlights(snap)

		chartCfg := cfg.ChartCfg
		chartCfg.Title = "Reported values"
		data.ValueChart = template.HTML(PanelChart(snap.Panel,
			[]string{fundamental.LabelRevenue, fundamental.LabelOperatingIncome, fundamental.LabelNetIncome},
			compactAxis, chartCfg))
		chartCfg.Title = "Margins"
		data.MarginChart = template.HTML(PanelChart(snap.Panel,
			[]string{fundamental.LabelGrossMargin, fundamental.LabelOperatingMargin, fundamental.LabelNetMargin},
			ratioAxis, chartCfg))
	}
	return data
}

// FormatCell formats a panel value for display according to its column.
func FormatCell(column string, v float64, unit string) string {
	switch fundamental.KindOf(column) {
	case fundamental.KindMargin:
		return utils.FormatRatio(v)
	case fundamental.KindChange:
		return utils.FormatPct(v)
	default:
		return utils.FormatUnitValue(v, unit)
	}
}

func signClass(v float64) string {
	switch {
	case v > 0:
		return "positive"
	case v < 0:
		return "negative"
	default:
		return ""
	}
}

func buildTableRows(snap *models.CompanySnapshot) []TableRow {
	panel := snap.Panel
	units := make(map[string]string, len(panel.Columns))
	for _, col := range panel.Columns {
		units[col] = snap.Unit(col)
	}

	rows := make([]TableRow, len(panel.Rows))
	for i, r := range panel.Rows {
		row := TableRow{
			Period:    r.PeriodLabel,
			PeriodEnd: utils.FormatDate(r.PeriodEnd),
			Form:      r.FormType,
			Filed:     utils.FormatDate(r.FiledDate),
			Cells:     make([]Cell, len(panel.Columns)),
		}
		for j, col := range panel.Columns {
			v, ok := r.Value(col)
			if !ok {
				continue
			}
			row.Cells[j].Text = FormatCell(col, v, units[col])
			if fundamental.KindOf(col) == fundamental.KindChange {
				row.Cells[j].Class = signClass(v)
			}
		}
		rows[i] = row
	}
	return rows
}

func buildHighlights(snap *models.CompanySnapshot) []Highlight {
	var out []Highlight
	for _, a := range snap.Audit {
		if a.Status != models.StatusResolved {
			continue
		}
		row, v, ok := snap.Panel.Latest(a.Concept)
		if !ok {
			continue
		}
		h := Highlight{
			Label:  a.Concept,
			Period: row.PeriodLabel,
			Value:  FormatCell(a.Concept, v, a.Unit),
		}
		if chg, ok := row.Value(fundamental.QoQColumn(a.Concept)); ok {
			h.Change = utils.FormatPct(chg)
			h.ChangeClass = signClass(chg)
		}
		out = append(out, h)
	}
	return out
}

// FilingRows flattens the first limit filings for display; limit <= 0 keeps all.
func FilingRows(filings []models.FilingRecord, limit int) []FilingRow {
	if limit > 0 && len(filings) > limit {
		filings = filings[:limit]
	}
	rows := make([]FilingRow, len(filings))
	for i, f := range filings {
		rows[i] = FilingRow{
			FilingDate: utils.FormatDate(f.FilingDate),
			ReportDate: utils.FormatDate(f.ReportDate),
			Form:       f.FormType,
			Accession:  f.AccessionNumber,
			Document:   f.PrimaryDocument,
			URL:        f.ArchiveURL,
		}
	}
	return rows
}

// AuditRows flattens audit entries for display.
func AuditRows(audit []models.AuditEntry) []AuditRow {
	rows := make([]AuditRow, len(audit))
	for i, a := range audit {
		rows[i] = AuditRow{
			Concept:     a.Concept,
			Status:      string(a.Status),
			StatusClass: strings.ToLower(string(a.Status)),
			Reference:   a.Reference,
			Unit:        a.Unit,
		}
	}
	return rows
}

// ════════════════════════════════════════════════════════════════════
// Plain-text renderer
// ════════════════════════════════════════════════════════════════════

func renderTextReport(d ReportData) string {
	var sb strings.Builder
	line := strings.Repeat("═", 72)
	thinLine := strings.Repeat("─", 72)

	sb.WriteString("\n" + line + "\n")
	fmt.Fprintf(&sb, "  %s\n", d.Title)
	fmt.Fprintf(&sb, "  %s (%s) · CIK %s · %s\n", d.CompanyName, d.Ticker, d.CIK, d.GeneratedAt)
	sb.WriteString(line + "\n")

	for _, w := range d.Warnings {
		fmt.Fprintf(&sb, "  ! %s\n", w)
	}

	if len(d.Highlights) > 0 {
		sb.WriteString("\n  ■ LATEST\n")
		for _, h := range d.Highlights {
			change := ""
			if h.Change != "" {
				change = fmt.Sprintf("  (%s QoQ)", h.Change)
			}
			fmt.Fprintf(&sb, "    %-20s %-10s %s%s\n", h.Label, h.Period, h.Value, change)
		}
		sb.WriteString(thinLine + "\n")
	}

	sb.WriteString("\n  ■ LATEST FILINGS\n")
	sb.WriteString(FilingsTable(d.Filings))
	sb.WriteString(thinLine + "\n")

	sb.WriteString("\n  ■ KPI TABLE\n")
	if d.HasPanel {
		sb.WriteString(KPITable(d.Columns, d.Rows))
	} else {
		sb.WriteString("    No KPI facts found (or tags missing).\n")
	}
	sb.WriteString(thinLine + "\n")

	sb.WriteString("\n  ■ CONCEPT COVERAGE\n")
	sb.WriteString(AuditTable(d.Audit))
	sb.WriteString(line + "\n")

	return sb.String()
}

// FilingsTable renders filing rows as an aligned text table.
func FilingsTable(rows []FilingRow) string {
	if len(rows) == 0 {
		return "    No recent filings found.\n"
	}
	t := [][]string{{"Filed", "Form", "Report Date", "Accession", "Document"}}
	for _, r := range rows {
		t = append(t, []string{r.FilingDate, r.Form, r.ReportDate, r.Accession, r.Document})
	}
	return alignTable(t, nil)
}

// KPITable renders panel rows as an aligned text table.
func KPITable(columns []string, rows []TableRow) string {
	header := append([]string{"Period", "Period End", "Form", "Filed"}, columns...)
	t := [][]string{header}
	for _, r := range rows {
		line := []string{r.Period, r.PeriodEnd, r.Form, r.Filed}
		for _, c := range r.Cells {
			line = append(line, c.Text)
		}
		t = append(t, line)
	}
	right := make([]bool, len(header))
	for i := 4; i < len(header); i++ {
		right[i] = true
	}
	return alignTable(t, right)
}

// AuditTable renders audit rows as an aligned text table.
func AuditTable(rows []AuditRow) string {
	t := [][]string{{"Concept", "Status", "Reference", "Unit"}}
	for _, r := range rows {
		t = append(t, []string{r.Concept, r.Status, r.Reference, r.Unit})
	}
	return alignTable(t, nil)
}

// alignTable pads each column to its widest cell. right marks columns to
// right-align.
func alignTable(rows [][]string, right []bool) string {
	widths := make([]int, len(rows[0]))
	for _, r := range rows {
		for i, c := range r {
			widths[i] = max(widths[i], len([]rune(c)))
		}
	}
	var sb strings.Builder
	for ri, r := range rows {
		sb.WriteString("    ")
		for i, c := range r {
			pad := strings.Repeat(" ", widths[i]-len([]rune(c)))
			if i < len(right) && right[i] && ri > 0 {
				sb.WriteString(pad + c)
			} else {
				sb.WriteString(c + pad)
			}
			if i < len(r)-1 {
				sb.WriteString("  ")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// ════════════════════════════════════════════════════════════════════
// Utility: Timestamp
// ════════════════════════════════════════════════════════════════════

// ReportTimestamp formats t in UTC for report headers.
func ReportTimestamp(t time.Time) string {
	return t.UTC().Format("02 Jan 2006, 15:04 UTC")
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}
