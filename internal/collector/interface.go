package collector

import (
	"context"
	"time"

	"github.com/newthinker/smacross/internal/core"
)

// Source loads daily close series. Implementations reject malformed rows
// rather than passing them on; the returned series is already validated.
type Source interface {
	Name() string

	// FetchSeries returns closes for symbol within [start, end].
	// Zero bounds leave that side open.
	FetchSeries(ctx context.Context, symbol string, start, end time.Time) (core.PriceSeries, error)
}

// NormalizeDate strips the time of day, keeping the calendar date of t
// in its own location, and returns it at UTC midnight
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
