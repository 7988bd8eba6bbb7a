package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/smacross/internal/backtest"
	"github.com/newthinker/smacross/internal/config"
	"github.com/newthinker/smacross/internal/metrics"
	"github.com/newthinker/smacross/internal/report"
	"github.com/newthinker/smacross/internal/storage/archive"
	"github.com/newthinker/smacross/internal/strategy"
	"github.com/newthinker/smacross/internal/strategy/ma_crossover"
)

var (
	backtestSymbols  []string
	backtestFrom     string
	backtestTo       string
	backtestStrategy string
	backtestShort    int
	backtestLong     int
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a crossover backtest",
	Long: `Run the configured strategy against historical closes for every symbol,
print a ranked summary and export signals, equity, trades and metrics.`,
	Args: cobra.NoArgs,
	RunE: runBacktest,
}

func init() {
	backtestCmd.Flags().StringSliceVarP(&backtestSymbols, "symbol", "s", nil, "symbols to backtest (overrides config)")
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "start date YYYY-MM-DD (overrides config)")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "end date YYYY-MM-DD (overrides config)")
	backtestCmd.Flags().StringVar(&backtestStrategy, "strategy", "", "strategy name (overrides config)")
	backtestCmd.Flags().IntVar(&backtestShort, "short", 0, "short window (overrides config)")
	backtestCmd.Flags().IntVar(&backtestLong, "long", 0, "long window (overrides config)")

	rootCmd.AddCommand(backtestCmd)
}

// applyBacktestFlags overlays explicitly set flags on cfg
func applyBacktestFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("symbol") {
		cfg.Symbols = backtestSymbols
	}
	if flags.Changed("from") {
		cfg.Data.From = backtestFrom
	}
	if flags.Changed("to") {
		cfg.Data.To = backtestTo
	}
	if flags.Changed("strategy") {
		cfg.Strategy.Name = backtestStrategy
	}
	if flags.Changed("short") {
		cfg.Strategy.ShortWindow = backtestShort
	}
	if flags.Changed("long") {
		cfg.Strategy.LongWindow = backtestLong
	}
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyBacktestFlags(cmd, cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
	}

	src, err := buildSource(cfg, reg, log)
	if err != nil {
		return err
	}

	strategies := strategy.NewRegistry()
	ma_crossover.Register(strategies)
	strat, err := strategies.Build(cfg.Strategy.Name, cfg.StrategyParams())
	if err != nil {
		return fmt.Errorf("building strategy (available: %v): %w", strategies.Names(), err)
	}

	opts := []backtest.Option{backtest.WithLogger(log)}
	if reg != nil {
		opts = append(opts, backtest.WithRecorder(reg))
	}
	bt, err := backtest.New(src, cfg.RunConfig(), opts...)
	if err != nil {
		return err
	}

	from, to, _ := cfg.DateRange()
	log.Info("running backtest",
		zap.String("strategy", strat.Name()),
		zap.Strings("symbols", cfg.Symbols),
		zap.String("source", src.Name()),
		zap.String("from", cfg.Data.From),
		zap.String("to", cfg.Data.To),
	)

	outcomes := bt.RunBatch(ctx, strat, cfg.Symbols, from, to)

	ranked, err := backtest.RankOutcomes(outcomes, cfg.Backtest.Objective)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "=== SMACROSS Backtest: %s (%d/%d), ranked by %s ===\n",
		strat.Name(), cfg.Strategy.ShortWindow, cfg.Strategy.LongWindow, cfg.Backtest.Objective)
	if err := report.WriteSummary(out, ranked); err != nil {
		return err
	}

	if cfg.Output.Type != "" {
		if err := exportResults(ctx, cfg, outcomes, log); err != nil {
			return err
		}
	}

	if reg != nil && cfg.Metrics.Textfile != "" {
		if err := reg.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.Warn("writing metrics textfile", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
		}
	}

	return backtest.BatchError(outcomes)
}

func exportResults(ctx context.Context, cfg *config.Config, outcomes []backtest.Outcome, log *zap.Logger) error {
	store, err := archive.Open(cfg.ArchiveConfig())
	if err != nil {
		return fmt.Errorf("opening output store: %w", err)
	}
	exporter, err := report.NewExporter(store, cfg.Output.Formats)
	if err != nil {
		return err
	}

	for _, o := range outcomes {
		if o.Err != nil {
			continue
		}
		keys, err := exporter.Export(ctx, o.Result)
		if err != nil {
			return fmt.Errorf("exporting %s: %w", o.Symbol, err)
		}
		log.Info("exported results",
			zap.String("symbol", o.Symbol),
			zap.String("run_id", o.Result.RunID),
			zap.Int("files", len(keys)),
		)
	}
	return nil
}
