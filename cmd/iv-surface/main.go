package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/contactkeval/iv-surface/internal/config"
	"github.com/contactkeval/iv-surface/internal/data"
	"github.com/contactkeval/iv-surface/internal/engine"
	"github.com/contactkeval/iv-surface/internal/logger"
	"github.com/contactkeval/iv-surface/internal/report"
	"github.com/contactkeval/iv-surface/internal/server"
)

var rootCmd = &cobra.Command{
	Use:           "iv-surface",
	Short:         "Implied volatility surface from an option chain",
	Long:          `iv-surface loads an option chain, solves the Black-Scholes implied volatility of every quote and reports the surface as tables, CSV and JSON.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Compute the surface once and write the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runAnalyze(ctx, cfg, cmd.OutOrStdout())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the surface over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return server.New(cfg, providerFor).ListenAndServe(ctx, cfg.Port)
	},
}

func init() {
	addRootFlags(rootCmd.PersistentFlags())
	addAnalyzeFlags(analyzeCmd.Flags())
	serveCmd.Flags().String("port", "", "listen address, e.g. :8080")

	rootCmd.AddCommand(analyzeCmd, serveCmd)
}

func addRootFlags(pf *pflag.FlagSet) {
	pf.String("config", "", "optional YAML config file; flags override its values")
	pf.String("env-file", ".env", "optional .env file with MASSIVE_API_KEY / POLYGON_API_KEY")
	pf.StringP("ticker", "t", "", "underlying ticker, e.g. AAPL")
	pf.Float64P("rate", "r", 0, "annualised continuously compounded risk-free rate (0..1)")
	pf.String("type", "", "option type the views are built from: call or put")
	pf.Int("max-exp", 0, "number of nearest expirations to load (1..10)")
	pf.String("provider", "", "market data provider: synthetic, massive, polygon or csv")
	pf.String("data-dir", "", "input directory for the csv provider")
	pf.Int("workers", 0, "concurrent solver workers (0 or 1 = sequential)")
	pf.Float64("failure-threshold", 0, "failure rate at which the batch is reported as degraded")
	pf.IntP("verbosity", "v", 0, "0=errors, 1=info, 2=debug, 3=trace")
	pf.Int64("seed", 0, "synthetic provider seed")
}

func addAnalyzeFlags(af *pflag.FlagSet) {
	af.StringP("out", "o", "", "report output directory")
	af.String("filter", "", `row filter, e.g. "moneyness > 0.8 && moneyness < 1.2"`)
	af.String("views", "", "comma separated views: smile,term,heatmap,box,moneyness,scatter (default all)")
	af.String("heatmap-exp", "", "heatmap expiration (YYYY-MM-DD)")
	af.String("heatmap-match", "", "how --heatmap-exp picks a listed expiration: nearest, exact, higher or lower")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Errorf("event=run_failed err=%v", err)
		os.Exit(1)
	}
}

// loadConfig layers defaults, the optional YAML file and explicitly set flags.
func loadConfig(flags *pflag.FlagSet) (config.Config, error) {
	envFile, _ := flags.GetString("env-file")
	if err := config.LoadEnv(envFile); err != nil {
		return config.Config{}, err
	}

	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	if err := applyFlags(flags, &cfg); err != nil {
		return config.Config{}, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	logger.SetVerbosity(cfg.Verbosity)
	return cfg, nil
}

// applyFlags copies every flag the user set onto cfg.
func applyFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	var err error
	set := func(name string, apply func() error) {
		if err == nil && flags.Lookup(name) != nil && flags.Changed(name) {
			err = apply()
		}
	}

	set("ticker", func() (e error) { cfg.Ticker, e = flags.GetString("ticker"); return })
	set("rate", func() (e error) { cfg.RiskFreeRate, e = flags.GetFloat64("rate"); return })
	set("type", func() (e error) { cfg.OptionType, e = flags.GetString("type"); return })
	set("max-exp", func() (e error) { cfg.MaxExpirations, e = flags.GetInt("max-exp"); return })
	set("provider", func() (e error) { cfg.Provider, e = flags.GetString("provider"); return })
	set("data-dir", func() (e error) { cfg.DataDir, e = flags.GetString("data-dir"); return })
	set("workers", func() (e error) { cfg.Workers, e = flags.GetInt("workers"); return })
	set("failure-threshold", func() (e error) { cfg.FailureThreshold, e = flags.GetFloat64("failure-threshold"); return })
	set("verbosity", func() (e error) { cfg.Verbosity, e = flags.GetInt("verbosity"); return })
	set("seed", func() (e error) { cfg.Seed, e = flags.GetInt64("seed"); return })
	set("out", func() (e error) { cfg.ReportDir, e = flags.GetString("out"); return })
	set("filter", func() (e error) { cfg.Filter, e = flags.GetString("filter"); return })
	set("views", func() (e error) { cfg.Views, e = flags.GetString("views"); return })
	set("heatmap-exp", func() (e error) { cfg.HeatmapExpiry, e = flags.GetString("heatmap-exp"); return })
	set("heatmap-match", func() (e error) { cfg.HeatmapMatch, e = flags.GetString("heatmap-match"); return })
	set("port", func() (e error) { cfg.Port, e = flags.GetString("port"); return })

	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	return nil
}

func providerFor(cfg config.Config) (data.Provider, error) {
	s := data.SettingsFromEnv(cfg.Provider, cfg.DataDir)
	s.Seed = cfg.Seed
	s.Rate = cfg.RiskFreeRate
	return data.NewProvider(s)
}

func runAnalyze(ctx context.Context, cfg config.Config, w io.Writer) error {
	start := time.Now()

	prov, err := providerFor(cfg)
	if err != nil {
		return err
	}

	res, err := engine.NewEngine(&cfg, prov).Run(ctx)
	if err != nil {
		return err
	}

	doc := report.NewDocument(res.Ticker, res.Batch, res.Views)
	csvPath, jsonPath, err := report.WriteFiles(doc, cfg.ReportDir)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	report.RenderSummary(w, res.Ticker, res.Batch)
	report.RenderViews(w, res.Views, res.Batch.Spot)

	logger.Infof("event=done ticker=%s rows=%d selected=%d csv=%s json=%s elapsed=%v",
		res.Ticker, res.Batch.Summary.Total, len(res.Selected), csvPath, jsonPath, time.Since(start))
	return nil
}
