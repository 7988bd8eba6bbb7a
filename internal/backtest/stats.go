package backtest

import (
	"math"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"

	"github.com/newthinker/smacross/internal/core"
)

// DefaultTradingDays is the number of trading sessions per year
const DefaultTradingDays = 252

// ComputeMetrics derives performance statistics from an equity curve and
// its trade log. Degenerate inputs resolve to fixed values instead of NaN:
// zero variance gives a Sharpe of 0, fewer than two losing periods give a
// Sortino of 0, no drawdown gives a Calmar of 0, no closed trades give a win
// rate and profit factor of 0, and wins without losses give a profit factor
// of +Inf.
func ComputeMetrics(equity []EquityPoint, trades []Trade, riskFreeRate float64, tradingDays int) (Metrics, error) {
	if len(equity) == 0 {
		return Metrics{}, core.Errorf(core.ErrInsufficientData, "empty equity curve")
	}
	if tradingDays <= 0 {
		return Metrics{}, core.Errorf(core.ErrConfigInvalid, "trading_days_per_year must be positive, got %d", tradingDays)
	}

	values := lo.Map(equity, func(p EquityPoint, _ int) float64 { return p.TotalEquity })
	returns := periodReturns(values)
	annualFactor := math.Sqrt(float64(tradingDays))

	m := Metrics{
		FinalEquity: values[len(values)-1],
		MaxDrawdown: calculateMaxDrawdown(values),
	}

	if values[0] > 0 {
		m.TotalReturn = values[len(values)-1]/values[0] - 1
	}
	m.AnnualizedReturn = annualize(m.TotalReturn, len(returns), tradingDays)

	dailyRiskFree := riskFreeRate / float64(tradingDays)
	m.SharpeRatio = calculateSharpeRatio(returns, dailyRiskFree, annualFactor)
	m.SortinoRatio = calculateSortinoRatio(returns, dailyRiskFree, annualFactor)
	if len(returns) >= 2 {
		m.Volatility = stat.StdDev(returns, nil) * annualFactor
	}

	if m.MaxDrawdown > 0 {
		m.CalmarRatio = m.AnnualizedReturn / m.MaxDrawdown
	}

	fillTradeStats(&m, trades)
	return m, nil
}

// Objective returns the metric with the given snake_case name
func (m Metrics) Objective(name string) (float64, error) {
	switch name {
	case "total_return":
		return m.TotalReturn, nil
	case "annualized_return":
		return m.AnnualizedReturn, nil
	case "sharpe_ratio":
		return m.SharpeRatio, nil
	case "sortino_ratio":
		return m.SortinoRatio, nil
	case "max_drawdown":
		return m.MaxDrawdown, nil
	case "win_rate":
		return m.WinRate, nil
	case "profit_factor":
		return m.ProfitFactor, nil
	case "calmar_ratio":
		return m.CalmarRatio, nil
	case "volatility":
		return m.Volatility, nil
	}
	return 0, core.Errorf(core.ErrConfigInvalid, "unknown objective %q", name)
}

// ObjectiveNames lists the names accepted by Metrics.Objective
func ObjectiveNames() []string {
	return []string{
		"total_return", "annualized_return", "sharpe_ratio", "sortino_ratio",
		"max_drawdown", "win_rate", "profit_factor", "calmar_ratio", "volatility",
	}
}

func periodReturns(values []float64) []float64 {
	if len(values) < 2 {
		return []float64{}
	}
	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, values[i]/values[i-1]-1)
	}
	return returns
}

func annualize(totalReturn float64, periods, tradingDays int) float64 {
	if periods == 0 {
		return 0
	}
	growth := 1 + totalReturn
	if growth <= 0 {
		return -1
	}
	return math.Pow(growth, float64(tradingDays)/float64(periods)) - 1
}

// calculateMaxDrawdown finds the largest peak-to-trough decline as a fraction of the peak
func calculateMaxDrawdown(values []float64) float64 {
	var maxDD float64
	var peak float64

	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD
}

// calculateSharpeRatio computes the annualized excess return per unit of
// total volatility. Sample standard deviation.
func calculateSharpeRatio(returns []float64, dailyRiskFree, annualFactor float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	mean, stdDev := stat.MeanStdDev(returns, nil)
	if stdDev == 0 || math.IsNaN(stdDev) {
		return 0
	}

	return (mean - dailyRiskFree) / stdDev * annualFactor
}

// calculateSortinoRatio uses the sample standard deviation of the negative
// returns only. Fewer than two losing periods leave it undefined, reported as 0.
func calculateSortinoRatio(returns []float64, dailyRiskFree, annualFactor float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	downside := lo.Filter(returns, func(r float64, _ int) bool { return r < 0 })
	if len(downside) < 2 {
		return 0
	}

	downDev := stat.StdDev(downside, nil)
	if downDev == 0 || math.IsNaN(downDev) {
		return 0
	}

	return (stat.Mean(returns, nil) - dailyRiskFree) / downDev * annualFactor
}

func fillTradeStats(m *Metrics, trades []Trade) {
	m.TotalTrades = len(trades)

	var grossWin, grossLoss float64
	for _, t := range trades {
		if !t.IsClosed() {
			continue
		}
		m.ClosedTrades++
		switch {
		case t.RealizedPnL > 0:
			m.WinningTrades++
			grossWin += t.RealizedPnL
		case t.RealizedPnL < 0:
			m.LosingTrades++
			grossLoss -= t.RealizedPnL
		}
	}

	if m.ClosedTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.ClosedTrades)
	}

	switch {
	case grossLoss > 0:
		m.ProfitFactor = grossWin / grossLoss
	case grossWin > 0:
		m.ProfitFactor = math.Inf(1)
	}
}
