package ma_crossover

import (
	"fmt"

	"github.com/newthinker/smacross/internal/core"
	"github.com/newthinker/smacross/internal/indicator"
	"github.com/newthinker/smacross/internal/strategy"
)

// MAKind selects the moving average used for both legs
type MAKind string

const (
	KindSMA MAKind = "sma"
	KindEMA MAKind = "ema"
)

// MACrossover implements a moving average crossover strategy
type MACrossover struct {
	shortPeriod int
	longPeriod  int
	kind        MAKind
}

// New creates a new MA Crossover strategy
func New(shortPeriod, longPeriod int, kind MAKind) (*MACrossover, error) {
	if shortPeriod <= 0 || longPeriod <= 0 {
		return nil, core.Errorf(core.ErrInvalidWindow,
			"windows must be positive, got short=%d long=%d", shortPeriod, longPeriod)
	}
	if shortPeriod >= longPeriod {
		return nil, core.Errorf(core.ErrInvalidWindow,
			"short window %d must be less than long window %d", shortPeriod, longPeriod)
	}
	switch kind {
	case KindSMA, KindEMA:
	default:
		return nil, core.Errorf(core.ErrConfigInvalid, "unknown moving average kind %q", kind)
	}

	return &MACrossover{
		shortPeriod: shortPeriod,
		longPeriod:  longPeriod,
		kind:        kind,
	}, nil
}

// Register adds the sma_crossover and ema_crossover factories to reg
func Register(reg *strategy.Registry) {
	for _, kind := range []MAKind{KindSMA, KindEMA} {
		kind := kind
		reg.Register(string(kind)+"_crossover", func(p strategy.Params) (strategy.Strategy, error) {
			return New(p.ShortWindow, p.LongWindow, kind)
		})
	}
}

func (m *MACrossover) Name() string {
	return string(m.kind) + "_crossover"
}

func (m *MACrossover) Description() string {
	return fmt.Sprintf("%s Crossover (%d/%d)", m.label(), m.shortPeriod, m.longPeriod)
}

// Windows returns the short and long periods
func (m *MACrossover) Windows() (short, long int) {
	return m.shortPeriod, m.longPeriod
}

// Generate computes both averages and the crossover signal for every bar.
// The first bar never carries a position change.
func (m *MACrossover) Generate(series core.PriceSeries) ([]core.SignalRecord, error) {
	if series.Len() == 0 {
		return nil, core.Errorf(core.ErrInsufficientData, "%s: empty price series", series.Symbol())
	}

	prices := series.Closes()
	shortMA := m.average(prices, m.shortPeriod)
	longMA := m.average(prices, m.longPeriod)

	records := make([]core.SignalRecord, len(prices))
	prevRaw := 0
	for i := range prices {
		raw := 0
		if shortMA[i] > longMA[i] {
			raw = 1
		}

		delta := core.DeltaHold
		if i > 0 {
			delta = raw - prevRaw
		}

		records[i] = core.SignalRecord{
			Date:          series.At(i).Date,
			Price:         prices[i],
			ShortMA:       shortMA[i],
			LongMA:        longMA[i],
			RawSignal:     raw,
			PositionDelta: delta,
		}
		prevRaw = raw
	}

	return records, nil
}

func (m *MACrossover) average(prices []float64, period int) []float64 {
	if m.kind == KindEMA {
		return indicator.ExpandingEMA(prices, period)
	}
	return indicator.RollingMean(prices, period)
}

func (m *MACrossover) label() string {
	if m.kind == KindEMA {
		return "EMA"
	}
	return "SMA"
}
