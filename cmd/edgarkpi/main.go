// edgarkpi: SEC EDGAR filings + KPI tracker.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/seenimoa/edgarkpi/api"
	"github.com/seenimoa/edgarkpi/internal/config"
	"github.com/seenimoa/edgarkpi/internal/infra"
	"github.com/seenimoa/edgarkpi/internal/provider"
	"github.com/seenimoa/edgarkpi/internal/providers"
	"github.com/seenimoa/edgarkpi/internal/providers/sec"
	"github.com/seenimoa/edgarkpi/internal/tracker"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if hint := sec.Remediation(err); hint != "" {
			fmt.Fprintln(os.Stderr, "Hint: ", hint)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "edgarkpi",
	Short: "edgarkpi: SEC EDGAR filings + KPI tracker",
	Long: `edgarkpi pulls a company's filing history and XBRL company facts from
SEC EDGAR, normalizes a small set of US-GAAP concepts into quarterly series
and derives margins and QoQ/YoY growth.

SEC requires a descriptive User-Agent with contact details: set
sec.user_agent or sec.email (EDGARKPI_SEC_USER_AGENT / EDGARKPI_SEC_EMAIL),
or point data.offline_dir at a local mirror of the EDGAR JSON files.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		if dir, _ := cmd.Flags().GetString("offline"); dir != "" {
			cfg.Data.OfflineDir = dir
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("offline", "", "serve EDGAR JSON from this directory before the network")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(tickersCmd)
	rootCmd.AddCommand(filingsCmd)
	rootCmd.AddCommand(kpiCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(chartsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(docCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(refreshCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("edgarkpi %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Wiring ---

// app bundles the collaborators every data command needs.
type app struct {
	ctx    context.Context
	logger zerolog.Logger
	cache  infra.Cache
	reg    *provider.Registry
	svc    *tracker.Service
	close  func()
}

// newApp wires config → logger → cache → providers → tracker.
func newApp(cmd *cobra.Command) (*app, error) {
	logger := infra.NewLogger(os.Stderr, infra.LogOptions{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	ctx := logger.WithContext(cmd.Context())

	cache, closeCache, err := openCache(ctx)
	if err != nil {
		return nil, err
	}

	reg := provider.NewRegistry()
	err = providers.RegisterAllTo(reg, providers.Options{
		SEC: sec.Options{
			UserAgent:     cfg.SEC.UserAgentString(),
			Throttle:      cfg.SEC.Throttle(),
			Timeout:       cfg.SEC.Timeout(),
			MaxRetries:    cfg.SEC.MaxRetries,
			BackoffFactor: cfg.SEC.BackoffFactor,
		},
		Cache: cache,
		TTLs: sec.TTLs{
			Tickers:     config.TTL(cfg.Cache.TickerTTL),
			Submissions: config.TTL(cfg.Cache.SubmissionsTTL),
			Facts:       config.TTL(cfg.Cache.FactsTTL),
			Feed:        config.TTL(cfg.Cache.FeedTTL),
			Document:    config.TTL(cfg.Cache.DocumentTTL),
		},
		OfflineDir: cfg.Data.OfflineDir,
	})
	if err != nil {
		closeCache()
		return nil, err
	}

	svc := tracker.New(reg, cache, tracker.Options{
		Extended:     cfg.KPI.Extended,
		FilingsLimit: cfg.KPI.FilingsLimit,
		PanelTail:    cfg.KPI.PanelTail,
		ListingTTL:   config.TTL(cfg.Cache.TickerTTL),
	})
	return &app{ctx: ctx, logger: logger, cache: cache, reg: reg, svc: svc, close: closeCache}, nil
}

// openCache returns the configured fetch cache and its release func.
func openCache(ctx context.Context) (infra.Cache, func(), error) {
	switch cfg.Cache.Backend {
	case "redis":
		rc, err := infra.NewRedisCache(ctx, infra.RedisOptions{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		return rc, func() { _ = rc.Close() }, nil
	case "", "memory":
		mc := infra.NewMemoryCache()
		cleanupCtx, cancel := context.WithCancel(ctx)
		go mc.RunCleanup(cleanupCtx, 10*time.Minute)
		return mc, cancel, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q (want memory or redis)", cfg.Cache.Backend)
	}
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server and dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		addr := cfg.API.Addr()
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			addr = fmt.Sprintf("%s:%d", cfg.API.Host, port)
		}
		fmt.Printf("🌐 edgarkpi API server on %s (dashboard: /dashboard/{ticker})\n", addr)
		return api.NewServer(cfg, a.svc, a.logger, version).ListenAndServe(a.ctx, addr)
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (overrides api.port)")
}
