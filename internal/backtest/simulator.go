package backtest

import (
	"math"

	"github.com/newthinker/smacross/internal/core"
)

// SimConfig holds the cost model and sizing inputs of one simulation run
type SimConfig struct {
	InitialCapital float64
	CommissionRate float64 // fraction of traded notional, charged on both legs
	SlippageRate   float64 // fraction of close added on buys, removed on sells
	Execution      Execution
}

// Validate checks the simulation parameters
func (c SimConfig) Validate() error {
	if c.InitialCapital <= 0 || math.IsNaN(c.InitialCapital) || math.IsInf(c.InitialCapital, 0) {
		return core.Errorf(core.ErrInsufficientCapital, "initial capital %v", c.InitialCapital)
	}
	if c.CommissionRate < 0 || math.IsNaN(c.CommissionRate) {
		return core.Errorf(core.ErrConfigInvalid, "commission cannot be negative, got %v", c.CommissionRate)
	}
	if c.SlippageRate < 0 || c.SlippageRate >= 1 || math.IsNaN(c.SlippageRate) {
		return core.Errorf(core.ErrConfigInvalid, "slippage must be in [0, 1), got %v", c.SlippageRate)
	}
	switch c.Execution {
	case "", ExecutionSameBar, ExecutionNextBar:
	default:
		return core.Errorf(core.ErrConfigInvalid, "unknown execution %q", c.Execution)
	}
	return nil
}

// Simulate walks the series bar by bar and applies each position change.
// A bar only ever sees its own close and earlier state, so fills cannot
// use future prices. A position still open on the last bar is marked to
// market and returned as an Open trade rather than closed.
func Simulate(series core.PriceSeries, signals []core.SignalRecord, cfg SimConfig) ([]EquityPoint, []Trade, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if series.Len() == 0 {
		return nil, nil, core.Errorf(core.ErrInsufficientData, "%s: empty price series", series.Symbol())
	}
	if err := checkAlignment(series, signals); err != nil {
		return nil, nil, err
	}

	l := &ledger{
		symbol:     series.Symbol(),
		cash:       cfg.InitialCapital,
		initial:    cfg.InitialCapital,
		commission: cfg.CommissionRate,
		slippage:   cfg.SlippageRate,
		trades:     []Trade{},
	}

	equity := make([]EquityPoint, 0, series.Len())
	var pending core.SignalRecord

	for i := 0; i < series.Len(); i++ {
		bar := series.At(i)

		step := signals[i]
		if cfg.Execution == ExecutionNextBar {
			step, pending = pending, step
		}

		switch {
		case step.IsEntry() && l.open == nil:
			l.enter(bar)
		case step.IsExit() && l.open != nil:
			l.exit(bar)
		}

		equity = append(equity, l.mark(bar))
	}

	trades := l.trades
	if l.open != nil {
		last := series.At(series.Len() - 1)
		open := *l.open
		open.ExitPrice = last.Close
		trades = append(trades, open)
	}

	return equity, trades, nil
}

func checkAlignment(series core.PriceSeries, signals []core.SignalRecord) error {
	if len(signals) != series.Len() {
		return core.Errorf(core.ErrSignalMismatch, "%d signals for %d bars", len(signals), series.Len())
	}
	for i, sig := range signals {
		if !sig.Date.Equal(series.At(i).Date) {
			return core.Errorf(core.ErrSignalMismatch, "signal %d dated %s, bar dated %s",
				i, sig.Date.Format(core.DateLayout), series.At(i).Date.Format(core.DateLayout))
		}
		if sig.PositionDelta < core.DeltaExit || sig.PositionDelta > core.DeltaEnter {
			return core.Errorf(core.ErrSignalMismatch, "signal %d has position delta %d", i, sig.PositionDelta)
		}
	}
	return nil
}

// ledger is the whole mutable state carried between bars
type ledger struct {
	symbol     string
	cash       float64
	quantity   float64
	initial    float64
	commission float64
	slippage   float64
	open       *Trade
	trades     []Trade
}

// enter spends all cash on the position. Commission is carved out of the
// cash first so the account never goes negative.
func (l *ledger) enter(bar core.PricePoint) {
	price := bar.Close * (1 + l.slippage)
	notional := l.cash / (1 + l.commission)
	fee := l.cash - notional
	qty := notional / price

	l.cash = 0
	l.quantity = qty
	l.open = &Trade{
		Symbol:         l.symbol,
		Direction:      DirectionLong,
		EntryDate:      bar.Date,
		EntryPrice:     price,
		Quantity:       qty,
		CommissionPaid: fee,
		SlippageCost:   (price - bar.Close) * qty,
		Open:           true,
	}
}

func (l *ledger) exit(bar core.PricePoint) {
	t := l.open
	price := bar.Close * (1 - l.slippage)
	gross := price * t.Quantity
	fee := gross * l.commission

	l.cash += gross - fee
	l.quantity = 0

	t.ExitDate = bar.Date
	t.ExitPrice = price
	t.CommissionPaid += fee
	t.SlippageCost += (bar.Close - price) * t.Quantity
	t.RealizedPnL = (t.ExitPrice-t.EntryPrice)*t.Quantity - t.CommissionPaid
	t.Open = false

	l.trades = append(l.trades, *t)
	l.open = nil
}

func (l *ledger) mark(bar core.PricePoint) EquityPoint {
	value := l.quantity * bar.Close
	total := l.cash + value
	return EquityPoint{
		Date:             bar.Date,
		Cash:             l.cash,
		PositionQuantity: l.quantity,
		MarketValue:      value,
		TotalEquity:      total,
		CumulativeReturn: total/l.initial - 1,
	}
}
