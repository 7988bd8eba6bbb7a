package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	lop "github.com/samber/lo/parallel"
	"go.uber.org/zap"

	"github.com/newthinker/smacross/internal/core"
	"github.com/newthinker/smacross/internal/strategy"
)

// SeriesProvider supplies validated daily close series
type SeriesProvider interface {
	FetchSeries(ctx context.Context, symbol string, start, end time.Time) (core.PriceSeries, error)
}

// Recorder receives run-level measurements. *metrics.Registry implements it.
type Recorder interface {
	RecordBacktest(status string, duration float64)
	RecordTrades(outcome string, count int)
	RecordBars(count int)
}

// Config holds everything a run needs besides the strategy
type Config struct {
	Sim          SimConfig
	RiskFreeRate float64
	TradingDays  int
}

// Validate checks the run configuration
func (c Config) Validate() error {
	if err := c.Sim.Validate(); err != nil {
		return err
	}
	if c.TradingDays <= 0 {
		return core.Errorf(core.ErrConfigInvalid, "trading_days_per_year must be positive, got %d", c.TradingDays)
	}
	return nil
}

// Outcome is the per-symbol result of a batch. Exactly one of Result and Err is set.
type Outcome struct {
	Symbol string
	Result *Result
	Err    error
}

// Backtester runs strategy backtests against historical data
type Backtester struct {
	provider SeriesProvider
	cfg      Config
	logger   *zap.Logger
	recorder Recorder
}

// Option configures a Backtester
type Option func(*Backtester)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(b *Backtester) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(b *Backtester) {
		if r != nil {
			b.recorder = r
		}
	}
}

// New creates a new Backtester with the given series provider
func New(provider SeriesProvider, cfg Config, opts ...Option) (*Backtester, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Backtester{
		provider: provider,
		cfg:      cfg,
		logger:   zap.NewNop(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Run executes a backtest for the given strategy and symbol over the specified time range
func (b *Backtester) Run(ctx context.Context, strat strategy.Strategy, symbol string, start, end time.Time) (*Result, error) {
	return b.run(ctx, uuid.NewString(), strat, symbol, start, end)
}

// RunBatch backtests every symbol concurrently under one run ID. A failure
// is reported in that symbol's Outcome and does not affect the others.
// Cancellation is honored before a symbol starts, never part way through.
func (b *Backtester) RunBatch(ctx context.Context, strat strategy.Strategy, symbols []string, start, end time.Time) []Outcome {
	runID := uuid.NewString()
	b.logger.Info("starting batch",
		zap.String("run_id", runID),
		zap.String("strategy", strat.Name()),
		zap.Int("symbols", len(symbols)),
	)

	return lop.Map(symbols, func(symbol string, _ int) Outcome {
		if err := ctx.Err(); err != nil {
			return Outcome{Symbol: symbol, Err: err}
		}
		res, err := b.run(ctx, runID, strat, symbol, start, end)
		return Outcome{Symbol: symbol, Result: res, Err: err}
	})
}

func (b *Backtester) run(ctx context.Context, runID string, strat strategy.Strategy, symbol string, start, end time.Time) (*Result, error) {
	began := time.Now()
	log := b.logger.With(zap.String("run_id", runID), zap.String("symbol", symbol))

	res, err := b.execute(ctx, runID, strat, symbol, start, end)
	elapsed := time.Since(began).Seconds()
	if err != nil {
		b.recorder.RecordBacktest("failed", elapsed)
		log.Warn("backtest failed", zap.Error(err))
		return nil, fmt.Errorf("backtest %s: %w", symbol, err)
	}

	b.recorder.RecordBacktest("success", elapsed)
	b.recorder.RecordBars(len(res.Equity))
	b.recorder.RecordTrades("win", res.Metrics.WinningTrades)
	b.recorder.RecordTrades("loss", res.Metrics.LosingTrades)
	b.recorder.RecordTrades("open", res.Metrics.TotalTrades-res.Metrics.ClosedTrades)

	log.Info("backtest complete",
		zap.Int("bars", len(res.Equity)),
		zap.Int("trades", res.Metrics.TotalTrades),
		zap.Float64("total_return", res.Metrics.TotalReturn),
		zap.Float64("sharpe_ratio", res.Metrics.SharpeRatio),
		zap.Duration("elapsed", time.Since(began)),
	)
	return res, nil
}

func (b *Backtester) execute(ctx context.Context, runID string, strat strategy.Strategy, symbol string, start, end time.Time) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	series, err := b.provider.FetchSeries(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	signals, err := strat.Generate(series)
	if err != nil {
		return nil, err
	}

	equity, trades, err := Simulate(series, signals, b.cfg.Sim)
	if err != nil {
		return nil, err
	}

	stats, err := ComputeMetrics(equity, trades, b.cfg.RiskFreeRate, b.cfg.TradingDays)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:     runID,
		Strategy:  strat.Name(),
		Symbol:    symbol,
		StartDate: series.Start(),
		EndDate:   series.End(),
		Signals:   signals,
		Equity:    equity,
		Trades:    trades,
		Metrics:   stats,
	}
	if w, ok := strat.(windowed); ok {
		res.ShortWindow, res.LongWindow = w.Windows()
	}
	return res, nil
}

type windowed interface {
	Windows() (short, long int)
}

// RankOutcomes orders successful outcomes best-first by the named metric and
// appends failed ones in their original order. Drawdown and volatility rank
// lower-is-better.
func RankOutcomes(outcomes []Outcome, objective string) ([]Outcome, error) {
	if _, err := (Metrics{}).Objective(objective); err != nil {
		return nil, err
	}
	ascending := objective == "max_drawdown" || objective == "volatility"

	var ok, failed []Outcome
	for _, o := range outcomes {
		if o.Err != nil || o.Result == nil {
			failed = append(failed, o)
			continue
		}
		ok = append(ok, o)
	}

	sort.SliceStable(ok, func(i, j int) bool {
		vi, _ := ok[i].Result.Metrics.Objective(objective)
		vj, _ := ok[j].Result.Metrics.Objective(objective)
		if ascending {
			return vi < vj
		}
		return vi > vj
	})

	return append(ok, failed...), nil
}

// BatchError joins the failures of a batch, nil when every symbol succeeded
func BatchError(outcomes []Outcome) error {
	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

type nopRecorder struct{}

func (nopRecorder) RecordBacktest(string, float64) {}
func (nopRecorder) RecordTrades(string, int)       {}
func (nopRecorder) RecordBars(int)                 {}
