package strategy

import (
	"github.com/newthinker/smacross/internal/core"
)

// Params holds the window configuration a signal generator is built from
type Params struct {
	ShortWindow int
	LongWindow  int
}

// Strategy turns a price series into one signal record per bar.
// Implementations must be pure: record t may only depend on bars 0..t.
type Strategy interface {
	Name() string
	Generate(series core.PriceSeries) ([]core.SignalRecord, error)
}

// Factory builds a configured strategy
type Factory func(p Params) (Strategy, error)
