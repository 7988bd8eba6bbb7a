package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/newthinker/smacross/internal/backtest"
	"github.com/newthinker/smacross/internal/core"
)

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// maColumns names the two average columns, e.g. SMA_50 and SMA_200
func maColumns(res *backtest.Result) (string, string) {
	if res.ShortWindow == 0 || res.LongWindow == 0 {
		return "short_ma", "long_ma"
	}
	prefix, _, _ := strings.Cut(res.Strategy, "_")
	prefix = strings.ToUpper(prefix)
	return fmt.Sprintf("%s_%d", prefix, res.ShortWindow), fmt.Sprintf("%s_%d", prefix, res.LongWindow)
}

func writeSignalsCSV(buf *bytes.Buffer, res *backtest.Result) error {
	short, long := maColumns(res)
	w := csv.NewWriter(buf)
	if err := w.Write([]string{"Date", "price", short, long, "signal_raw", "positions"}); err != nil {
		return err
	}
	for _, s := range res.Signals {
		if err := w.Write([]string{
			s.Date.Format(core.DateLayout),
			formatF(s.Price), formatF(s.ShortMA), formatF(s.LongMA),
			strconv.Itoa(s.RawSignal), strconv.Itoa(s.PositionDelta),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeEquityCSV(buf *bytes.Buffer, res *backtest.Result) error {
	w := csv.NewWriter(buf)
	if err := w.Write([]string{"Date", "Cash", "Shares", "MarketValue", "TotalValue", "CumulativeReturn"}); err != nil {
		return err
	}
	for _, p := range res.Equity {
		if err := w.Write([]string{
			p.Date.Format(core.DateLayout),
			formatF(p.Cash), formatF(p.PositionQuantity), formatF(p.MarketValue),
			formatF(p.TotalEquity), formatF(p.CumulativeReturn),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeTradesCSV(buf *bytes.Buffer, res *backtest.Result) error {
	w := csv.NewWriter(buf)
	if err := w.Write([]string{
		"symbol", "direction", "entry_date", "exit_date", "entry", "exit", "qty",
		"commission", "slippage", "pnl", "return_pct", "open",
	}); err != nil {
		return err
	}
	for _, t := range res.Trades {
		exit := ""
		if !t.Open {
			exit = t.ExitDate.Format(core.DateLayout)
		}
		if err := w.Write([]string{
			t.Symbol, string(t.Direction), t.EntryDate.Format(core.DateLayout), exit,
			formatF(t.EntryPrice), formatF(t.ExitPrice), formatF(t.Quantity),
			formatF(t.CommissionPaid), formatF(t.SlippageCost), formatF(t.RealizedPnL),
			formatF(t.Return() * 100), strconv.FormatBool(t.Open),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
