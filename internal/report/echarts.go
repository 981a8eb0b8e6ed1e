package report

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/seenimoa/edgarkpi/internal/analysis/fundamental"
	"github.com/seenimoa/edgarkpi/pkg/models"
)

const (
	chartWidth  = "900px"
	chartHeight = "380px"
	// echarts draws "-" as a gap
	gapValue = "-"
)

// TrendPage builds an interactive page of KPI trend charts for a snapshot:
// reported values, margins, growth rates and, when resolved, diluted EPS.
func TrendPage(snap *models.CompanySnapshot) *components.Page {
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("%s KPI trends", snap.Company.Ticker)
	page.SetLayout(components.PageFlexLayout)

	panel := snap.Panel
	if panel.Empty() {
		return page
	}
	labels := make([]string, len(panel.Rows))
	for i, r := range panel.Rows {
		labels[i] = r.PeriodLabel
	}
	title := fmt.Sprintf("%s - %s", snap.Company.Ticker, snap.Company.Name)

	values := []string{fundamental.LabelRevenue, fundamental.LabelGrossProfit, fundamental.LabelOperatingIncome, fundamental.LabelNetIncome}
	if c := lineChart(title, "Reported values", "USD millions", labels, panel, values, 1e-6); c != nil {
		page.AddCharts(c)
	}
	margins := []string{fundamental.LabelGrossMargin, fundamental.LabelOperatingMargin, fundamental.LabelNetMargin}
	if c := lineChart(title, "Margins", "% of revenue", labels, panel, margins, 100); c != nil {
		page.AddCharts(c)
	}
	if c := growthChart(title, labels, panel); c != nil {
		page.AddCharts(c)
	}
	if c := lineChart(title, "Diluted EPS", snap.Unit(fundamental.LabelEPSDiluted), labels, panel, []string{fundamental.LabelEPSDiluted}, 1); c != nil {
		page.AddCharts(c)
	}
	return page
}

// RenderCharts writes the trend page as a standalone HTML document.
func RenderCharts(w io.Writer, snap *models.CompanySnapshot) error {
	if err := TrendPage(snap).Render(w); err != nil {
		return fmt.Errorf("render charts: %w", err)
	}
	return nil
}

func lineChart(title, subtitle, yName string, labels []string, panel *models.KPIPanel, columns []string, scale float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Orient: "horizontal", Left: "center", Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Period", Type: "category", Data: labels}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName, Type: "value"}),
	)
	line.SetXAxis(labels)

	added := 0
	for _, col := range columns {
		if !panel.HasColumn(col) {
			continue
		}
		data := make([]opts.LineData, len(panel.Rows))
		for i, cell := range panel.Column(col) {
			data[i] = opts.LineData{Name: labels[i], Value: scaled(cell, scale)}
		}
		line.AddSeries(col, data)
		added++
	}
	if added == 0 {
		return nil
	}
	return line
}

func growthChart(title string, labels []string, panel *models.KPIPanel) *charts.Bar {
	qoq := fundamental.QoQColumn(fundamental.LabelRevenue)
	yoy := fundamental.YoYColumn(fundamental.LabelRevenue)
	if !panel.HasColumn(qoq) {
		return nil
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: "Revenue growth"}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Orient: "horizontal", Left: "center", Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Period", Type: "category", Data: labels}),
		charts.WithYAxisOpts(opts.YAxis{Name: "%", Type: "value"}),
	)
	bar.SetXAxis(labels)
	for _, col := range []string{qoq, yoy} {
		data := make([]opts.BarData, len(panel.Rows))
		for i, cell := range panel.Column(col) {
			data[i] = opts.BarData{Name: labels[i], Value: scaled(cell, 100)}
		}
		bar.AddSeries(col, data)
	}
	return bar
}

// scaled multiplies a cell for display, rounding to 2 decimals, or returns
// the gap marker for an empty cell.
func scaled(cell *float64, scale float64) any {
	if cell == nil {
		return gapValue
	}
	return math.Round(*cell*scale*100) / 100
}
