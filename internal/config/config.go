package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/newthinker/smacross/internal/backtest"
	"github.com/newthinker/smacross/internal/core"
	"github.com/newthinker/smacross/internal/report"
	"github.com/newthinker/smacross/internal/storage/archive"
	"github.com/newthinker/smacross/internal/strategy"
)

// EnvPrefix prefixes environment overrides, e.g. SMACROSS_BACKTEST_COMMISSION
const EnvPrefix = "SMACROSS"

type Config struct {
	Strategy StrategyConfig `mapstructure:"strategy"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Data     DataConfig     `mapstructure:"data"`
	Symbols  []string       `mapstructure:"symbols"`
	Output   OutputConfig   `mapstructure:"output"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

type StrategyConfig struct {
	Name        string `mapstructure:"name"`
	ShortWindow int    `mapstructure:"short_window"`
	LongWindow  int    `mapstructure:"long_window"`
}

type BacktestConfig struct {
	InitialCapital     float64 `mapstructure:"initial_capital"`
	Commission         float64 `mapstructure:"commission"`
	Slippage           float64 `mapstructure:"slippage"`
	RiskFreeRate       float64 `mapstructure:"risk_free_rate"`
	TradingDaysPerYear int     `mapstructure:"trading_days_per_year"`
	Execution          string  `mapstructure:"execution"` // "same_bar" or "next_bar"
	Objective          string  `mapstructure:"objective"` // metric used to rank symbols
}

type DataConfig struct {
	Source   string `mapstructure:"source"` // "csv" or "yahoo"
	Dir      string `mapstructure:"dir"`
	Cache    bool   `mapstructure:"cache"`
	CacheDir string `mapstructure:"cache_dir"`
	From     string `mapstructure:"from"` // YYYY-MM-DD, empty for unbounded
	To       string `mapstructure:"to"`
}

type OutputConfig struct {
	Type    string   `mapstructure:"type"` // "localfs", "s3" or "" to skip export
	Path    string   `mapstructure:"path"` // For localfs
	Formats []string `mapstructure:"formats"`
	S3      S3Config `mapstructure:"s3"` // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Textfile string `mapstructure:"textfile"` // node-exporter textfile path, empty to skip
}

type LogConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Strategy: StrategyConfig{
			Name:        "sma_crossover",
			ShortWindow: 50,
			LongWindow:  200,
		},
		Backtest: BacktestConfig{
			InitialCapital:     100000,
			RiskFreeRate:       0.01,
			TradingDaysPerYear: backtest.DefaultTradingDays,
			Execution:          string(backtest.ExecutionSameBar),
			Objective:          "sharpe_ratio",
		},
		Data: DataConfig{
			Source:   "csv",
			Dir:      "data",
			CacheDir: "data/cache",
		},
		Symbols: []string{"AAPL"},
		Output: OutputConfig{
			Type:    "localfs",
			Path:    "results",
			Formats: slices.Clone(report.DefaultFormats),
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from file over Defaults. An empty path loads
// defaults and environment overrides only. A .env file in the working
// directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, Defaults())

	// Support environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val, ok := v.Get(key).(string)
		if ok && strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every default so env overrides apply to keys absent
// from the file
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("strategy.name", d.Strategy.Name)
	v.SetDefault("strategy.short_window", d.Strategy.ShortWindow)
	v.SetDefault("strategy.long_window", d.Strategy.LongWindow)

	v.SetDefault("backtest.initial_capital", d.Backtest.InitialCapital)
	v.SetDefault("backtest.commission", d.Backtest.Commission)
	v.SetDefault("backtest.slippage", d.Backtest.Slippage)
	v.SetDefault("backtest.risk_free_rate", d.Backtest.RiskFreeRate)
	v.SetDefault("backtest.trading_days_per_year", d.Backtest.TradingDaysPerYear)
	v.SetDefault("backtest.execution", d.Backtest.Execution)
	v.SetDefault("backtest.objective", d.Backtest.Objective)

	v.SetDefault("data.source", d.Data.Source)
	v.SetDefault("data.dir", d.Data.Dir)
	v.SetDefault("data.cache", d.Data.Cache)
	v.SetDefault("data.cache_dir", d.Data.CacheDir)
	v.SetDefault("data.from", d.Data.From)
	v.SetDefault("data.to", d.Data.To)

	v.SetDefault("symbols", d.Symbols)

	v.SetDefault("output.type", d.Output.Type)
	v.SetDefault("output.path", d.Output.Path)
	v.SetDefault("output.formats", d.Output.Formats)
	v.SetDefault("output.s3.bucket", d.Output.S3.Bucket)
	v.SetDefault("output.s3.endpoint", d.Output.S3.Endpoint)
	v.SetDefault("output.s3.region", d.Output.S3.Region)
	v.SetDefault("output.s3.access_key", d.Output.S3.AccessKey)
	v.SetDefault("output.s3.secret_key", d.Output.S3.SecretKey)
	v.SetDefault("output.s3.prefix", d.Output.S3.Prefix)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.textfile", d.Metrics.Textfile)

	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("log.level", d.Log.Level)
}

// Validate checks the configuration for errors. It never substitutes defaults.
func (c *Config) Validate() error {
	if c.Strategy.Name == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("strategy.name is required"))
	}
	if c.Strategy.ShortWindow <= 0 || c.Strategy.LongWindow <= 0 {
		return core.WrapError(core.ErrInvalidWindow,
			fmt.Errorf("windows must be positive, got %d/%d", c.Strategy.ShortWindow, c.Strategy.LongWindow))
	}
	if c.Strategy.ShortWindow >= c.Strategy.LongWindow {
		return core.WrapError(core.ErrInvalidWindow,
			fmt.Errorf("short_window %d must be less than long_window %d", c.Strategy.ShortWindow, c.Strategy.LongWindow))
	}

	if err := c.RunConfig().Validate(); err != nil {
		return err
	}
	if math.IsNaN(c.Backtest.RiskFreeRate) || math.IsInf(c.Backtest.RiskFreeRate, 0) {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("risk_free_rate must be finite"))
	}
	if !slices.Contains(backtest.ObjectiveNames(), c.Backtest.Objective) {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("objective must be one of %v, got %q", backtest.ObjectiveNames(), c.Backtest.Objective))
	}

	switch c.Data.Source {
	case "csv":
		if c.Data.Dir == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("data.dir required when source is csv"))
		}
	case "yahoo":
	default:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown data source %q", c.Data.Source))
	}
	if c.Data.Cache && c.Data.CacheDir == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("data.cache_dir required when cache is enabled"))
	}
	if _, _, err := c.DateRange(); err != nil {
		return err
	}

	if len(c.Symbols) == 0 {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("at least one symbol is required"))
	}

	switch c.Output.Type {
	case "":
	case "localfs":
		if c.Output.Path == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("output.path required when type is localfs"))
		}
	case "s3":
		if c.Output.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("output.s3.bucket required when type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown output type %q", c.Output.Type))
	}
	for _, f := range c.Output.Formats {
		if !slices.Contains([]string{report.FormatCSV, report.FormatJSON, report.FormatArrow}, f) {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown output format %q", f))
		}
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}

	return nil
}

// DateRange parses data.from and data.to. Empty values are returned as zero times.
func (c *Config) DateRange() (from, to time.Time, err error) {
	if from, err = parseDate("data.from", c.Data.From); err != nil {
		return
	}
	if to, err = parseDate("data.to", c.Data.To); err != nil {
		return
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		err = core.WrapError(core.ErrConfigInvalid, fmt.Errorf("data.to %s is before data.from %s", c.Data.To, c.Data.From))
	}
	return
}

func parseDate(key, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(core.DateLayout, s)
	if err != nil {
		return time.Time{}, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("%s must be YYYY-MM-DD, got %q", key, s))
	}
	return t, nil
}

// StrategyParams returns the strategy construction parameters
func (c *Config) StrategyParams() strategy.Params {
	return strategy.Params{
		ShortWindow: c.Strategy.ShortWindow,
		LongWindow:  c.Strategy.LongWindow,
	}
}

// RunConfig returns the backtester configuration
func (c *Config) RunConfig() backtest.Config {
	return backtest.Config{
		Sim: backtest.SimConfig{
			InitialCapital: c.Backtest.InitialCapital,
			CommissionRate: c.Backtest.Commission,
			SlippageRate:   c.Backtest.Slippage,
			Execution:      backtest.Execution(c.Backtest.Execution),
		},
		RiskFreeRate: c.Backtest.RiskFreeRate,
		TradingDays:  c.Backtest.TradingDaysPerYear,
	}
}

// ArchiveConfig returns the export store configuration
func (c *Config) ArchiveConfig() archive.Config {
	return archive.Config{
		Type: c.Output.Type,
		Path: c.Output.Path,
		S3: archive.S3Config{
			Bucket:    c.Output.S3.Bucket,
			Endpoint:  c.Output.S3.Endpoint,
			Region:    c.Output.S3.Region,
			AccessKey: c.Output.S3.AccessKey,
			SecretKey: c.Output.S3.SecretKey,
			Prefix:    c.Output.S3.Prefix,
		},
	}
}
