package report

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/newthinker/smacross/internal/backtest"
)

// WriteSummary prints one row per outcome in the given order
func WriteSummary(w io.Writer, outcomes []backtest.Outcome) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tTOTAL RETURN\tANNUALIZED\tSHARPE\tSORTINO\tMAX DD\tWIN RATE\tPROFIT FACTOR\tTRADES\tFINAL EQUITY")

	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(tw, "%s\tERROR: %v\t\t\t\t\t\t\t\t\n", o.Symbol, o.Err)
			continue
		}
		m := o.Result.Metrics
		fmt.Fprintf(tw, "%s\t%.2f%%\t%.2f%%\t%.2f\t%.2f\t%.2f%%\t%.1f%%\t%s\t%d\t%.2f\n",
			o.Symbol,
			m.TotalReturn*100, m.AnnualizedReturn*100,
			m.SharpeRatio, m.SortinoRatio,
			m.MaxDrawdown*100, m.WinRate*100,
			formatProfitFactor(m.ProfitFactor),
			m.TotalTrades, m.FinalEquity,
		)
	}
	return tw.Flush()
}

func formatProfitFactor(pf float64) string {
	if math.IsInf(pf, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", pf)
}
