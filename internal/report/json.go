package report

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/newthinker/smacross/internal/backtest"
	"github.com/newthinker/smacross/internal/core"
)

// ratio marshals infinities as "inf"/"-inf" and NaN as null
type ratio float64

func (r ratio) MarshalJSON() ([]byte, error) {
	f := float64(r)
	switch {
	case math.IsInf(f, 1):
		return []byte(`"inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-inf"`), nil
	case math.IsNaN(f):
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

type metricsDoc struct {
	RunID     string `json:"run_id"`
	Strategy  string `json:"strategy"`
	Symbol    string `json:"symbol"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`

	TotalReturn      ratio `json:"total_return"`
	AnnualizedReturn ratio `json:"annualized_return"`
	SharpeRatio      ratio `json:"sharpe_ratio"`
	SortinoRatio     ratio `json:"sortino_ratio"`
	MaxDrawdown      ratio `json:"max_drawdown"`
	WinRate          ratio `json:"win_rate"`
	ProfitFactor     ratio `json:"profit_factor"`
	CalmarRatio      ratio `json:"calmar_ratio"`
	Volatility       ratio `json:"volatility"`
	FinalEquity      ratio `json:"final_equity"`

	TotalTrades   int `json:"total_trades"`
	ClosedTrades  int `json:"closed_trades"`
	WinningTrades int `json:"winning_trades"`
	LosingTrades  int `json:"losing_trades"`
}

func writeMetricsJSON(buf *bytes.Buffer, res *backtest.Result) error {
	m := res.Metrics
	doc := metricsDoc{
		RunID:            res.RunID,
		Strategy:         res.Strategy,
		Symbol:           res.Symbol,
		StartDate:        res.StartDate.Format(core.DateLayout),
		EndDate:          res.EndDate.Format(core.DateLayout),
		TotalReturn:      ratio(m.TotalReturn),
		AnnualizedReturn: ratio(m.AnnualizedReturn),
		SharpeRatio:      ratio(m.SharpeRatio),
		SortinoRatio:     ratio(m.SortinoRatio),
		MaxDrawdown:      ratio(m.MaxDrawdown),
		WinRate:          ratio(m.WinRate),
		ProfitFactor:     ratio(m.ProfitFactor),
		CalmarRatio:      ratio(m.CalmarRatio),
		Volatility:       ratio(m.Volatility),
		FinalEquity:      ratio(m.FinalEquity),
		TotalTrades:      m.TotalTrades,
		ClosedTrades:     m.ClosedTrades,
		WinningTrades:    m.WinningTrades,
		LosingTrades:     m.LosingTrades,
	}

	enc := json.NewEncoder(buf)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
