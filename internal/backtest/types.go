package backtest

import (
	"time"

	"github.com/newthinker/smacross/internal/core"
)

// Execution controls which bar's close fills a position change
type Execution string

const (
	// ExecutionSameBar fills at the close of the bar that produced the signal
	ExecutionSameBar Execution = "same_bar"
	// ExecutionNextBar fills at the close of the following bar
	ExecutionNextBar Execution = "next_bar"
)

// Direction of a trade. Only long trades are simulated.
type Direction string

const DirectionLong Direction = "long"

// Result holds the complete backtest output
type Result struct {
	RunID     string
	Strategy  string
	Symbol    string
	StartDate time.Time
	EndDate   time.Time
	Signals   []core.SignalRecord
	Equity    []EquityPoint
	Trades    []Trade
	Metrics   Metrics

	// Moving average periods, zero when the strategy does not expose them
	ShortWindow int
	LongWindow  int
}

// Trade represents a simulated round trip from entry to exit.
// Prices are execution prices, slippage included.
type Trade struct {
	Symbol         string
	Direction      Direction
	EntryDate      time.Time
	ExitDate       time.Time // zero while Open
	EntryPrice     float64
	ExitPrice      float64 // last mark while Open
	Quantity       float64
	CommissionPaid float64
	SlippageCost   float64
	RealizedPnL    float64 // zero while Open
	Open           bool
}

// EquityPoint is the portfolio state after processing one bar
type EquityPoint struct {
	Date             time.Time
	Cash             float64
	PositionQuantity float64
	MarketValue      float64
	TotalEquity      float64
	CumulativeReturn float64
}

// Metrics holds performance statistics. Ratios are fractions, not percentages.
type Metrics struct {
	TotalReturn      float64
	AnnualizedReturn float64
	SharpeRatio      float64
	SortinoRatio     float64
	MaxDrawdown      float64
	WinRate          float64
	ProfitFactor     float64 // +Inf when there are wins and no losses
	CalmarRatio      float64

	Volatility    float64 // annualized stdev of period returns
	FinalEquity   float64
	TotalTrades   int
	ClosedTrades  int
	WinningTrades int
	LosingTrades  int
}

// IsWin returns true if the trade was closed at a profit
func (t Trade) IsWin() bool {
	return t.IsClosed() && t.RealizedPnL > 0
}

// IsClosed returns true if the trade has an exit
func (t Trade) IsClosed() bool {
	return !t.Open
}

// Return is the realized PnL relative to the entry notional
func (t Trade) Return() float64 {
	cost := t.EntryPrice * t.Quantity
	if cost == 0 || t.Open {
		return 0
	}
	return t.RealizedPnL / cost
}

// HoldingDays is the calendar length of a closed trade
func (t Trade) HoldingDays() int {
	if t.Open {
		return 0
	}
	return int(t.ExitDate.Sub(t.EntryDate).Hours() / 24)
}
