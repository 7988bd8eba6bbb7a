package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/smacross/internal/collector/csvfile"
)

var (
	fetchSymbols []string
	fetchFrom    string
	fetchTo      string
	fetchDir     string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download daily closes from Yahoo Finance",
	Long:  "Download daily closes and save them as <dir>/<SYMBOL>_data.csv for the csv source.",
	Args:  cobra.NoArgs,
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().StringSliceVarP(&fetchSymbols, "symbol", "s", nil, "symbols to fetch (overrides config)")
	fetchCmd.Flags().StringVar(&fetchFrom, "from", "", "start date YYYY-MM-DD (overrides config)")
	fetchCmd.Flags().StringVar(&fetchTo, "to", "", "end date YYYY-MM-DD (overrides config)")
	fetchCmd.Flags().StringVar(&fetchDir, "dir", "", "output directory (overrides config)")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("symbol") {
		cfg.Symbols = fetchSymbols
	}
	if flags.Changed("from") {
		cfg.Data.From = fetchFrom
	}
	if flags.Changed("to") {
		cfg.Data.To = fetchTo
	}
	if flags.Changed("dir") {
		cfg.Data.Dir = fetchDir
	}
	// fetch always writes csv files, whatever the backtest source is
	cfg.Data.Source = "csv"

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	from, to, _ := cfg.DateRange()
	src := newYahoo(nil, log)
	dst := csvfile.New(cfg.Data.Dir)

	var failed int
	for _, symbol := range cfg.Symbols {
		series, err := src.FetchSeries(cmd.Context(), symbol, from, to)
		if err != nil {
			failed++
			log.Error("fetch failed", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		path, err := dst.Save(series)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d bars (%s to %s) -> %s\n",
			symbol, series.Len(), series.Start().Format("2006-01-02"), series.End().Format("2006-01-02"), path)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d symbols failed", failed, len(cfg.Symbols))
	}
	return nil
}
