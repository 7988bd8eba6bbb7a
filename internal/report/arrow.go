package report

import (
	"bytes"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"github.com/newthinker/smacross/internal/backtest"
)

var signalSchema = arrow.NewSchema([]arrow.Field{
	{Name: "date", Type: arrow.FixedWidthTypes.Date32},
	{Name: "price", Type: arrow.PrimitiveTypes.Float64},
	{Name: "short_ma", Type: arrow.PrimitiveTypes.Float64},
	{Name: "long_ma", Type: arrow.PrimitiveTypes.Float64},
	{Name: "signal_raw", Type: arrow.PrimitiveTypes.Int8},
	{Name: "positions", Type: arrow.PrimitiveTypes.Int8},
}, nil)

var equitySchema = arrow.NewSchema([]arrow.Field{
	{Name: "date", Type: arrow.FixedWidthTypes.Date32},
	{Name: "cash", Type: arrow.PrimitiveTypes.Float64},
	{Name: "shares", Type: arrow.PrimitiveTypes.Float64},
	{Name: "market_value", Type: arrow.PrimitiveTypes.Float64},
	{Name: "total_value", Type: arrow.PrimitiveTypes.Float64},
	{Name: "cumulative_return", Type: arrow.PrimitiveTypes.Float64},
}, nil)

var tradesSchema = arrow.NewSchema([]arrow.Field{
	{Name: "symbol", Type: arrow.BinaryTypes.String},
	{Name: "direction", Type: arrow.BinaryTypes.String},
	{Name: "entry_date", Type: arrow.FixedWidthTypes.Date32},
	{Name: "exit_date", Type: arrow.FixedWidthTypes.Date32, Nullable: true},
	{Name: "entry_price", Type: arrow.PrimitiveTypes.Float64},
	{Name: "exit_price", Type: arrow.PrimitiveTypes.Float64},
	{Name: "quantity", Type: arrow.PrimitiveTypes.Float64},
	{Name: "commission", Type: arrow.PrimitiveTypes.Float64},
	{Name: "slippage", Type: arrow.PrimitiveTypes.Float64},
	{Name: "pnl", Type: arrow.PrimitiveTypes.Float64},
	{Name: "open", Type: arrow.FixedWidthTypes.Boolean},
}, nil)

func writeSignalsArrow(buf *bytes.Buffer, res *backtest.Result) error {
	b := array.NewRecordBuilder(memory.NewGoAllocator(), signalSchema)
	defer b.Release()

	for _, s := range res.Signals {
		b.Field(0).(*array.Date32Builder).Append(arrow.Date32FromTime(s.Date))
		b.Field(1).(*array.Float64Builder).Append(s.Price)
		b.Field(2).(*array.Float64Builder).Append(s.ShortMA)
		b.Field(3).(*array.Float64Builder).Append(s.LongMA)
		b.Field(4).(*array.Int8Builder).Append(int8(s.RawSignal))
		b.Field(5).(*array.Int8Builder).Append(int8(s.PositionDelta))
	}
	return writeRecord(buf, signalSchema, b)
}

func writeEquityArrow(buf *bytes.Buffer, res *backtest.Result) error {
	b := array.NewRecordBuilder(memory.NewGoAllocator(), equitySchema)
	defer b.Release()

	for _, p := range res.Equity {
		b.Field(0).(*array.Date32Builder).Append(arrow.Date32FromTime(p.Date))
		b.Field(1).(*array.Float64Builder).Append(p.Cash)
		b.Field(2).(*array.Float64Builder).Append(p.PositionQuantity)
		b.Field(3).(*array.Float64Builder).Append(p.MarketValue)
		b.Field(4).(*array.Float64Builder).Append(p.TotalEquity)
		b.Field(5).(*array.Float64Builder).Append(p.CumulativeReturn)
	}
	return writeRecord(buf, equitySchema, b)
}

func writeTradesArrow(buf *bytes.Buffer, res *backtest.Result) error {
	b := array.NewRecordBuilder(memory.NewGoAllocator(), tradesSchema)
	defer b.Release()

	for _, tr := range res.Trades {
		b.Field(0).(*array.StringBuilder).Append(tr.Symbol)
		b.Field(1).(*array.StringBuilder).Append(string(tr.Direction))
		b.Field(2).(*array.Date32Builder).Append(arrow.Date32FromTime(tr.EntryDate))
		if tr.Open {
			b.Field(3).(*array.Date32Builder).AppendNull()
		} else {
			b.Field(3).(*array.Date32Builder).Append(arrow.Date32FromTime(tr.ExitDate))
		}
		b.Field(4).(*array.Float64Builder).Append(tr.EntryPrice)
		b.Field(5).(*array.Float64Builder).Append(tr.ExitPrice)
		b.Field(6).(*array.Float64Builder).Append(tr.Quantity)
		b.Field(7).(*array.Float64Builder).Append(tr.CommissionPaid)
		b.Field(8).(*array.Float64Builder).Append(tr.SlippageCost)
		b.Field(9).(*array.Float64Builder).Append(tr.RealizedPnL)
		b.Field(10).(*array.BooleanBuilder).Append(tr.Open)
	}
	return writeRecord(buf, tradesSchema, b)
}

// writeRecord serializes the builder's contents as a single-batch IPC stream
func writeRecord(buf *bytes.Buffer, schema *arrow.Schema, b *array.RecordBuilder) error {
	record := b.NewRecord()
	defer record.Release()

	w := ipc.NewWriter(buf, ipc.WithSchema(schema))
	if err := w.Write(record); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
