package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/smacross/internal/backtest"
	"github.com/newthinker/smacross/internal/core"
	"github.com/newthinker/smacross/internal/storage/archive"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func sampleResult() *backtest.Result {
	return &backtest.Result{
		RunID:       "run-1",
		Strategy:    "sma_crossover",
		Symbol:      "AAPL",
		StartDate:   day0,
		EndDate:     day0.AddDate(0, 0, 2),
		ShortWindow: 2,
		LongWindow:  3,
		Signals: []core.SignalRecord{
			{Date: day0, Price: 10, ShortMA: 10, LongMA: 10, RawSignal: 0, PositionDelta: 0},
			{Date: day0.AddDate(0, 0, 1), Price: 12, ShortMA: 11, LongMA: 10.5, RawSignal: 1, PositionDelta: 1},
			{Date: day0.AddDate(0, 0, 2), Price: 8, ShortMA: 10, LongMA: 10, RawSignal: 0, PositionDelta: -1},
		},
		Equity: []backtest.EquityPoint{
			{Date: day0, Cash: 1000, TotalEquity: 1000},
			{Date: day0.AddDate(0, 0, 1), PositionQuantity: 83.3, MarketValue: 1000, TotalEquity: 1000},
			{Date: day0.AddDate(0, 0, 2), Cash: 666.4, TotalEquity: 666.4, CumulativeReturn: -0.3336},
		},
		Trades: []backtest.Trade{{
			Symbol: "AAPL", Direction: backtest.DirectionLong,
			EntryDate: day0.AddDate(0, 0, 1), ExitDate: day0.AddDate(0, 0, 2),
			EntryPrice: 12, ExitPrice: 8, Quantity: 83.3, RealizedPnL: -333.6,
		}},
		Metrics: backtest.Metrics{
			TotalReturn:  -0.3336,
			MaxDrawdown:  0.3336,
			ProfitFactor: math.Inf(1),
			TotalTrades:  1,
			ClosedTrades: 1,
			LosingTrades: 1,
			FinalEquity:  666.4,
		},
	}
}

func TestNewExporter_Formats(t *testing.T) {
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)

	e, err := NewExporter(store, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{FormatCSV, FormatJSON}, e.formats)

	e, err = NewExporter(store, []string{"json", "csv", "json"})
	require.NoError(t, err)
	assert.Equal(t, []string{FormatCSV, FormatJSON}, e.formats)

	_, err = NewExporter(store, []string{"xlsx"})
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}

func TestExport_AllFormats(t *testing.T) {
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	e, err := NewExporter(store, []string{FormatCSV, FormatJSON, FormatArrow})
	require.NoError(t, err)

	ctx := context.Background()
	keys, err := e.Export(ctx, sampleResult())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"run-1/AAPL/signals.csv",
		"run-1/AAPL/equity.csv",
		"run-1/AAPL/trades.csv",
		"run-1/AAPL/metrics.json",
		"run-1/AAPL/signals.arrow",
		"run-1/AAPL/equity.arrow",
		"run-1/AAPL/trades.arrow",
	}, keys)

	listed, err := store.List(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, listed, 7)
}

func TestExport_OnlyJSON(t *testing.T) {
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	e, err := NewExporter(store, []string{FormatJSON})
	require.NoError(t, err)

	keys, err := e.Export(context.Background(), sampleResult())
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1/AAPL/metrics.json"}, keys)
}

func TestExport_NilResult(t *testing.T) {
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	e, err := NewExporter(store, nil)
	require.NoError(t, err)

	_, err = e.Export(context.Background(), nil)
	assert.True(t, errors.Is(err, core.ErrExportFailed))
}

func TestSignalsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSignalsCSV(&buf, sampleResult()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Date,price,SMA_2,SMA_3,signal_raw,positions", lines[0])
	assert.Equal(t, "2024-01-03,12,11,10.5,1,1", lines[2])
	assert.Equal(t, "2024-01-04,8,10,10,0,-1", lines[3])
}

func TestMAColumns(t *testing.T) {
	res := sampleResult()
	res.Strategy = "ema_crossover"
	short, long := maColumns(res)
	assert.Equal(t, "EMA_2", short)
	assert.Equal(t, "EMA_3", long)

	res.ShortWindow = 0
	short, long = maColumns(res)
	assert.Equal(t, "short_ma", short)
	assert.Equal(t, "long_ma", long)
}

func TestEquityCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeEquityCSV(&buf, sampleResult()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Date,Cash,Shares,MarketValue,TotalValue,CumulativeReturn", lines[0])
	assert.Equal(t, "2024-01-02,1000,0,0,1000,0", lines[1])
}

func TestTradesCSV_OpenTradeHasNoExitDate(t *testing.T) {
	res := sampleResult()
	res.Trades[0].Open = true
	res.Trades[0].ExitDate = time.Time{}

	var buf bytes.Buffer
	require.NoError(t, writeTradesCSV(&buf, res))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	fields := strings.Split(lines[1], ",")
	assert.Equal(t, "", fields[3])
	assert.Equal(t, "true", fields[len(fields)-1])
}

func TestMetricsJSON_InfiniteProfitFactor(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeMetricsJSON(&buf, sampleResult()))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "inf", doc["profit_factor"])
	assert.Equal(t, "AAPL", doc["symbol"])
	assert.Equal(t, "2024-01-02", doc["start_date"])
	assert.InDelta(t, -0.3336, doc["total_return"], 1e-12)
	assert.EqualValues(t, 1, doc["losing_trades"])
}

func TestRatio_MarshalJSON(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1.5, "1.5"},
		{0, "0"},
		{math.Inf(1), `"inf"`},
		{math.Inf(-1), `"-inf"`},
		{math.NaN(), "null"},
	}
	for _, tt := range tests {
		got, err := ratio(tt.in).MarshalJSON()
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(got))
	}
}

func TestEquityArrow_ReadBack(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeEquityArrow(&buf, sampleResult()))

	r, err := ipc.NewReader(&buf)
	require.NoError(t, err)
	defer r.Release()

	assert.True(t, r.Schema().Equal(equitySchema))
	require.True(t, r.Next())
	rec := r.Record()
	assert.Equal(t, int64(3), rec.NumRows())

	total := rec.Column(4).(*array.Float64)
	assert.Equal(t, 666.4, total.Value(2))
	dates := rec.Column(0).(*array.Date32)
	assert.Equal(t, day0, dates.Value(0).ToTime())
	assert.False(t, r.Next())
}

func TestSignalsArrow_ReadBack(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSignalsArrow(&buf, sampleResult()))

	r, err := ipc.NewReader(&buf)
	require.NoError(t, err)
	defer r.Release()

	require.True(t, r.Next())
	rec := r.Record()
	assert.Equal(t, int64(3), rec.NumRows())
	positions := rec.Column(5).(*array.Int8)
	assert.Equal(t, []int8{0, 1, -1}, positions.Int8Values())
}

func TestTradesArrow_ReadBack(t *testing.T) {
	res := sampleResult()
	res.Trades = append(res.Trades, backtest.Trade{
		Symbol: "AAPL", Direction: backtest.DirectionLong,
		EntryDate: day0.AddDate(0, 0, 3), EntryPrice: 9, ExitPrice: 9.5, Quantity: 74, Open: true,
	})

	var buf bytes.Buffer
	require.NoError(t, writeTradesArrow(&buf, res))

	r, err := ipc.NewReader(&buf)
	require.NoError(t, err)
	defer r.Release()

	assert.True(t, r.Schema().Equal(tradesSchema))
	require.True(t, r.Next())
	rec := r.Record()
	assert.Equal(t, int64(2), rec.NumRows())

	symbols := rec.Column(0).(*array.String)
	assert.Equal(t, "AAPL", symbols.Value(0))
	exits := rec.Column(3).(*array.Date32)
	assert.Equal(t, day0.AddDate(0, 0, 2), exits.Value(0).ToTime())
	assert.True(t, exits.IsNull(1))
	pnl := rec.Column(9).(*array.Float64)
	assert.Equal(t, -333.6, pnl.Value(0))
	open := rec.Column(10).(*array.Boolean)
	assert.False(t, open.Value(0))
	assert.True(t, open.Value(1))
}

func TestWriteSummary(t *testing.T) {
	outcomes := []backtest.Outcome{
		{Symbol: "AAPL", Result: sampleResult()},
		{Symbol: "BAD", Err: core.ErrNoData},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, outcomes))
	out := buf.String()

	assert.Contains(t, out, "SYMBOL")
	assert.Contains(t, out, "-33.36%")
	assert.Contains(t, out, "inf")
	assert.Contains(t, out, "BAD")
	assert.Contains(t, out, "no data available")
}
