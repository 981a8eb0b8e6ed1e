package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/seenimoa/edgarkpi/internal/config"
	"github.com/seenimoa/edgarkpi/internal/edgar"
	"github.com/seenimoa/edgarkpi/internal/report"
	"github.com/seenimoa/edgarkpi/pkg/models"
	"github.com/seenimoa/edgarkpi/pkg/utils"
)

func init() {
	tickersCmd.Flags().Int("limit", 20, "maximum matches shown")
	filingsCmd.Flags().Int("limit", 0, "filings shown (default: kpi.filings_limit)")
	kpiCmd.Flags().Bool("extended", false, "include EPS Diluted")
	kpiCmd.Flags().Int("tail", 0, "most recent quarters shown (default: kpi.panel_tail)")
	auditCmd.Flags().Bool("extended", false, "include EPS Diluted")
	auditCmd.Flags().Bool("tags", false, "list every reported XBRL tag when a concept is missing")
	exportCmd.Flags().StringP("output", "o", "", "CSV output path (default: TICKER_kpis.csv)")
	exportCmd.Flags().Bool("extended", false, "include EPS Diluted")
	chartsCmd.Flags().StringP("output", "o", "", "HTML output path (default: TICKER_charts.html)")
	reportCmd.Flags().StringP("output", "o", "", "HTML output path (default: TICKER_report.html)")
	reportCmd.Flags().Bool("extended", false, "include EPS Diluted")
	feedCmd.Flags().String("form", "", "only entries of this form type (e.g. 10-Q)")
	docCmd.Flags().Int("max-chars", 4000, "truncate the printed text; 0 prints all")
}

// --- Identity ---

var tickersCmd = &cobra.Command{
	Use:   "tickers [query]",
	Short: "Search the SEC ticker listing",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		limit, _ := cmd.Flags().GetInt("limit")
		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		ids, err := a.svc.Search(a.ctx, query, limit)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("No matching companies.")
			return nil
		}
		for _, id := range ids {
			fmt.Printf("  %-8s %s  %s\n", id.Ticker, edgar.PadCIK(id.CIK), id.Name)
		}
		return nil
	},
}

var filingsCmd = &cobra.Command{
	Use:   "filings TICKER",
	Short: "List a company's recent filings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 {
			limit = cfg.KPI.FilingsLimit
		}
		id, filings, err := a.svc.Filings(a.ctx, args[0], limit)
		if err != nil {
			return err
		}
		fmt.Printf("\n  %s (%s) · CIK %s\n\n", id.Name, id.Ticker, edgar.PadCIK(id.CIK))
		fmt.Print(report.FilingsTable(report.FilingRows(filings, limit)))
		return nil
	},
}

// --- KPIs ---

var kpiCmd = &cobra.Command{
	Use:   "kpi TICKER",
	Short: "Print the quarterly KPI panel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		extended, _ := cmd.Flags().GetBool("extended")
		snap, err := a.svc.Snapshot(a.ctx, args[0], extended)
		if err != nil {
			return err
		}
		if tail, _ := cmd.Flags().GetInt("tail"); tail > 0 {
			snap.Panel = snap.Panel.Tail(tail)
		}

		start := time.Now()
		out, err := report.GenerateText(snap, report.DefaultReportConfig())
		if err != nil {
			return err
		}
		fmt.Print(out)
		a.logger.Debug().Str("took", report.FormatDuration(time.Since(start))).Msg("report rendered")
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit TICKER",
	Short: "Show which XBRL tag served each KPI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		extended, _ := cmd.Flags().GetBool("extended")
		snap, err := a.svc.Snapshot(a.ctx, args[0], extended)
		if err != nil {
			return err
		}
		fmt.Printf("\n  %s (%s) concept coverage\n\n", snap.Company.Name, snap.Company.Ticker)
		fmt.Print(report.AuditTable(report.AuditRows(snap.Audit)))
		for _, w := range snap.Warnings {
			fmt.Printf("  ⚠ %s\n", w)
		}

		missing := false
		for _, e := range snap.Audit {
			missing = missing || e.Status == models.StatusMissing
		}
		if !missing || len(snap.Warnings) > 0 {
			return nil
		}
		tags, err := a.svc.FactTags(a.ctx, snap.Company.Ticker)
		if err != nil {
			return err
		}
		listAll, _ := cmd.Flags().GetBool("tags")
		fmt.Println("\n  Reported taxonomies:")
		for _, tax := range sortedKeys(tags) {
			fmt.Printf("    %-10s %d tags\n", tax, len(tags[tax]))
			if listAll {
				for _, tag := range tags[tax] {
					fmt.Printf("      %s:%s\n", tax, tag)
				}
			}
		}
		if !listAll {
			fmt.Println("  Run with --tags to list them.")
		}
		return nil
	},
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var exportCmd = &cobra.Command{
	Use:   "export TICKER",
	Short: "Write the KPI panel as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		extended, _ := cmd.Flags().GetBool("extended")
		snap, err := a.svc.Snapshot(a.ctx, args[0], extended)
		if err != nil {
			return err
		}
		path, _ := cmd.Flags().GetString("output")
		if path == "" {
			path = report.CSVFilename(snap.Company.Ticker)
		}
		if err := writeFile(path, func(f *os.File) error { return report.WriteCSV(f, snap.Panel) }); err != nil {
			return err
		}
		rows := 0
		if !snap.Panel.Empty() {
			rows = len(snap.Panel.Rows)
		}
		fmt.Printf("✅ Wrote %d quarters to %s\n", rows, path)
		return nil
	},
}

var chartsCmd = &cobra.Command{
	Use:   "charts TICKER",
	Short: "Write interactive KPI trend charts as HTML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		snap, err := a.svc.Snapshot(a.ctx, args[0], false)
		if err != nil {
			return err
		}
		path, _ := cmd.Flags().GetString("output")
		if path == "" {
			path = snap.Company.Ticker + "_charts.html"
		}
		if err := writeFile(path, func(f *os.File) error { return report.RenderCharts(f, snap) }); err != nil {
			return err
		}
		fmt.Printf("✅ Charts written to %s\n", path)
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report TICKER",
	Short: "Write the static HTML dashboard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		extended, _ := cmd.Flags().GetBool("extended")
		snap, err := a.svc.Snapshot(a.ctx, args[0], extended)
		if err != nil {
			return err
		}
		path, _ := cmd.Flags().GetString("output")
		if path == "" {
			path = snap.Company.Ticker + "_report.html"
		}
		rcfg := report.DefaultReportConfig()
		rcfg.MaxFilings = cfg.KPI.FilingsLimit
		if err := writeFile(path, func(f *os.File) error { return report.WriteHTML(f, snap, rcfg) }); err != nil {
			return err
		}
		fmt.Printf("✅ Report written to %s\n", path)
		return nil
	},
}

// --- Documents ---

var feedCmd = &cobra.Command{
	Use:   "feed TICKER",
	Short: "Show the latest entries of the company's EDGAR Atom feed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		form, _ := cmd.Flags().GetString("form")
		entries, err := a.svc.Feed(a.ctx, args[0], form)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No feed entries.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("  %s  %-6s %s\n", utils.FormatDate(e.Updated), e.FormType, e.Title)
			if e.Link != "" {
				fmt.Printf("      %s\n", e.Link)
			}
		}
		return nil
	},
}

var docCmd = &cobra.Command{
	Use:   "doc URL",
	Short: "Print the readable text of an archived filing document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		doc, err := a.svc.Document(a.ctx, args[0])
		if err != nil {
			return err
		}
		text := doc.Text
		if n, _ := cmd.Flags().GetInt("max-chars"); n > 0 && len([]rune(text)) > n {
			text = string([]rune(text)[:n]) + "…"
		}
		if doc.Title != "" {
			fmt.Printf("%s\n%s\n\n", doc.Title, strings.Repeat("─", 60))
		}
		fmt.Println(text)
		return nil
	},
}

// --- Status / Maintenance ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, credentials and upstream reachability",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════════")
		fmt.Println("  edgarkpi Status")
		fmt.Println("═══════════════════════════════════════════")
		fmt.Printf("  Version:     %s\n", version)
		fmt.Printf("  API Server:  %s\n", cfg.API.Addr())
		fmt.Printf("  Cache:       %s\n", cfg.Cache.Backend)
		fmt.Printf("  Throttle:    %s\n", cfg.SEC.Throttle())
		fmt.Printf("  Retries:     %d (backoff %.2f)\n", cfg.SEC.MaxRetries, cfg.SEC.BackoffFactor)
		if cfg.Data.OfflineDir != "" {
			fmt.Printf("  Offline dir: %s\n", cfg.Data.OfflineDir)
		}
		fmt.Printf("  Extended:    %v\n", cfg.KPI.Extended)
		fmt.Println()

		fmt.Println("  Credentials:")
		for _, c := range config.CheckCredentials(cfg) {
			if c.IsSet {
				fmt.Printf("    ✅ %-20s %s (%s)\n", c.Name, c.Masked, c.Source)
			} else {
				fmt.Printf("    ❌ %s\n", c.Name)
			}
		}
		fmt.Println()

		a, err := newApp(cmd)
		if err != nil {
			fmt.Printf("  Providers:   unavailable (%v)\n", err)
			fmt.Println("═══════════════════════════════════════════")
			return nil
		}
		defer a.close()

		fmt.Println("  Providers:")
		for _, st := range a.svc.Status(a.ctx) {
			if st.OK {
				fmt.Printf("    ✅ %-10s %s\n", st.Name, report.FormatDuration(st.Latency))
			} else {
				fmt.Printf("    ❌ %-10s %s\n", st.Name, st.Error)
			}
		}
		fmt.Println("═══════════════════════════════════════════")
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Flush cached EDGAR payloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.svc.Refresh(a.ctx); err != nil {
			return err
		}
		if cfg.Cache.Backend == "redis" {
			fmt.Println("✅ Redis cache flushed")
		} else {
			fmt.Println("Memory cache is per-process; nothing persisted to flush.")
		}
		return nil
	},
}

// writeFile creates path and hands it to write, closing it afterwards.
func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
