package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/smacross/internal/config"
	"github.com/newthinker/smacross/internal/logger"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "smacross",
	Short: "SMACROSS - moving average crossover backtester",
	Long: `SMACROSS backtests long-only moving average crossover strategies
against daily close prices and reports return and risk metrics.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file, or defaults plus environment when none is given
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	opts := logger.Options{
		Development: cfg.Log.Development || debug,
		Level:       cfg.Log.Level,
	}
	if debug {
		opts.Level = "debug"
	}
	return logger.New(opts)
}
