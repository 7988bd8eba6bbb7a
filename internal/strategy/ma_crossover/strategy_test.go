package ma_crossover

import (
	"errors"
	"testing"
	"time"

	"github.com/newthinker/smacross/internal/core"
	"github.com/newthinker/smacross/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(t *testing.T, prices ...float64) core.PriceSeries {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]core.PricePoint, len(prices))
	for i, p := range prices {
		points[i] = core.PricePoint{Date: base.AddDate(0, 0, i), Close: p}
	}
	s, err := core.NewPriceSeries("TEST", points)
	require.NoError(t, err)
	return s
}

func mustNew(t *testing.T, short, long int) *MACrossover {
	t.Helper()
	s, err := New(short, long, KindSMA)
	require.NoError(t, err)
	return s
}

func TestMACrossover_ImplementsStrategy(t *testing.T) {
	var _ strategy.Strategy = (*MACrossover)(nil)
}

func TestMACrossover_Name(t *testing.T) {
	assert.Equal(t, "sma_crossover", mustNew(t, 5, 10).Name())

	ema, err := New(5, 10, KindEMA)
	require.NoError(t, err)
	assert.Equal(t, "ema_crossover", ema.Name())
	assert.Equal(t, "EMA Crossover (5/10)", ema.Description())
}

func TestNew_InvalidWindows(t *testing.T) {
	tests := []struct {
		name        string
		short, long int
	}{
		{"equal", 4, 4},
		{"short above long", 10, 5},
		{"zero short", 0, 5},
		{"negative long", 2, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.short, tt.long, KindSMA)
			assert.True(t, errors.Is(err, core.ErrInvalidWindow), "got %v", err)
		})
	}
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(2, 4, MAKind("wma"))
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}

func TestGenerate_EmptySeries(t *testing.T) {
	_, err := mustNew(t, 2, 4).Generate(core.PriceSeries{})
	assert.True(t, errors.Is(err, core.ErrInsufficientData))
}

func TestGenerate_UpThenDown(t *testing.T) {
	// SMA2 vs SMA4 (expanding until full):
	// t=3: 11 vs 10.5 -> raw 1 (buy)
	// t=6: 10 vs 11   -> raw 0 (sell)
	s := series(t, 10, 10, 10, 12, 12, 12, 8, 8, 8)
	recs, err := mustNew(t, 2, 4).Generate(s)
	require.NoError(t, err)
	require.Len(t, recs, 9)

	wantRaw := []int{0, 0, 0, 1, 1, 1, 0, 0, 0}
	wantDelta := []int{0, 0, 0, 1, 0, 0, -1, 0, 0}
	for i, r := range recs {
		assert.Equal(t, wantRaw[i], r.RawSignal, "raw[%d]", i)
		assert.Equal(t, wantDelta[i], r.PositionDelta, "delta[%d]", i)
		assert.Equal(t, s.At(i).Date, r.Date)
		assert.Equal(t, s.At(i).Close, r.Price)
	}

	assert.InDelta(t, 11.0, recs[3].ShortMA, 1e-12)
	assert.InDelta(t, 10.5, recs[3].LongMA, 1e-12)
	assert.InDelta(t, 10.0, recs[6].ShortMA, 1e-12)
	assert.InDelta(t, 11.0, recs[6].LongMA, 1e-12)
}

func TestGenerate_FirstBarHasNoDelta(t *testing.T) {
	recs, err := mustNew(t, 1, 3).Generate(series(t, 50, 60))
	require.NoError(t, err)

	assert.Equal(t, 0, recs[0].PositionDelta)
	// t=1: SMA1=60 > SMA3=55
	assert.Equal(t, 1, recs[1].PositionDelta)
}

func TestGenerate_MonotonicSeriesNeverCrosses(t *testing.T) {
	prices := make([]float64, 40)
	for i := range prices {
		prices[i] = 100 - float64(i)
	}
	recs, err := mustNew(t, 3, 10).Generate(series(t, prices...))
	require.NoError(t, err)

	for i, r := range recs {
		assert.Equal(t, 0, r.PositionDelta, "delta[%d]", i)
	}
}

func TestGenerate_ConstantSeriesNeverCrosses(t *testing.T) {
	for _, v := range []float64{1.1, 0.1} {
		prices := make([]float64, 300)
		for i := range prices {
			prices[i] = v
		}
		recs, err := mustNew(t, 3, 7).Generate(series(t, prices...))
		require.NoError(t, err)
		for i, r := range recs {
			require.Equal(t, 0, r.RawSignal, "price %v bar %d: short=%v long=%v", v, i, r.ShortMA, r.LongMA)
			require.Equal(t, core.DeltaHold, r.PositionDelta)
		}
	}
}

func TestGenerate_NoCrossoverOnFlatStretchAfterSpike(t *testing.T) {
	prices := []float64{0.1, 0.2, 0.3, 1e6, 0.7}
	for i := 0; i < 40; i++ {
		prices = append(prices, 0.3)
	}
	recs, err := mustNew(t, 3, 7).Generate(series(t, prices...))
	require.NoError(t, err)

	for i := 11; i < len(recs); i++ {
		assert.Equal(t, recs[i].ShortMA, recs[i].LongMA, "bar %d", i)
		assert.Equal(t, 0, recs[i].RawSignal, "bar %d", i)
		assert.Equal(t, core.DeltaHold, recs[i].PositionDelta, "bar %d", i)
	}
}

func TestGenerate_Ranges(t *testing.T) {
	prices := []float64{5, 7, 6, 9, 4, 8, 3, 10, 2, 11, 6, 6, 7, 1, 9}
	for _, kind := range []MAKind{KindSMA, KindEMA} {
		s, err := New(2, 5, kind)
		require.NoError(t, err)

		recs, err := s.Generate(series(t, prices...))
		require.NoError(t, err)
		require.Len(t, recs, len(prices))

		for _, r := range recs {
			assert.Contains(t, []int{0, 1}, r.RawSignal)
			assert.Contains(t, []int{-1, 0, 1}, r.PositionDelta)
		}
	}
}

func TestGenerate_NoLookAhead(t *testing.T) {
	prices := []float64{5, 7, 6, 9, 4, 8, 3, 10, 2, 11}
	gen := mustNew(t, 2, 4)

	full, err := gen.Generate(series(t, prices...))
	require.NoError(t, err)

	prefix, err := gen.Generate(series(t, prices[:6]...))
	require.NoError(t, err)

	assert.Equal(t, full[:6], prefix)
}

func TestRegister(t *testing.T) {
	reg := strategy.NewRegistry()
	Register(reg)

	assert.Equal(t, []string{"ema_crossover", "sma_crossover"}, reg.Names())

	s, err := reg.Build("sma_crossover", strategy.Params{ShortWindow: 2, LongWindow: 4})
	require.NoError(t, err)
	assert.Equal(t, "sma_crossover", s.Name())

	_, err = reg.Build("ema_crossover", strategy.Params{ShortWindow: 4, LongWindow: 4})
	assert.True(t, errors.Is(err, core.ErrInvalidWindow))
}
