package core

import (
	"fmt"
	"math"
	"time"
)

// DateLayout is the calendar date format used across inputs and exports.
const DateLayout = "2006-01-02"

// PricePoint is a single daily close
type PricePoint struct {
	Date  time.Time
	Close float64
}

// PriceSeries is a validated, strictly date-ordered close series for one symbol.
// The zero value is an empty series.
type PriceSeries struct {
	symbol string
	points []PricePoint
}

// NewPriceSeries validates points and returns an immutable series.
// Dates must be strictly increasing and prices finite and positive.
func NewPriceSeries(symbol string, points []PricePoint) (PriceSeries, error) {
	for i, p := range points {
		if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) || p.Close <= 0 {
			return PriceSeries{}, Errorf(ErrInvalidPriceSeries,
				"%s: price at %s must be positive, got %v", symbol, p.Date.Format(DateLayout), p.Close)
		}
		if i > 0 && !p.Date.After(points[i-1].Date) {
			return PriceSeries{}, Errorf(ErrInvalidPriceSeries,
				"%s: date %s does not follow %s", symbol, p.Date.Format(DateLayout), points[i-1].Date.Format(DateLayout))
		}
	}

	owned := make([]PricePoint, len(points))
	copy(owned, points)
	return PriceSeries{symbol: symbol, points: owned}, nil
}

// Symbol returns the series symbol
func (s PriceSeries) Symbol() string {
	return s.symbol
}

// Len returns the number of bars
func (s PriceSeries) Len() int {
	return len(s.points)
}

// At returns the bar at index i
func (s PriceSeries) At(i int) PricePoint {
	return s.points[i]
}

// Points returns a copy of the bars
func (s PriceSeries) Points() []PricePoint {
	out := make([]PricePoint, len(s.points))
	copy(out, s.points)
	return out
}

// Closes returns the close prices in date order
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Close
	}
	return out
}

// Start returns the first date, or the zero time for an empty series
func (s PriceSeries) Start() time.Time {
	if len(s.points) == 0 {
		return time.Time{}
	}
	return s.points[0].Date
}

// End returns the last date, or the zero time for an empty series
func (s PriceSeries) End() time.Time {
	if len(s.points) == 0 {
		return time.Time{}
	}
	return s.points[len(s.points)-1].Date
}

// Between returns the sub-series with dates in [from, to].
// A zero bound leaves that side open.
func (s PriceSeries) Between(from, to time.Time) PriceSeries {
	out := make([]PricePoint, 0, len(s.points))
	for _, p := range s.points {
		if !from.IsZero() && p.Date.Before(from) {
			continue
		}
		if !to.IsZero() && p.Date.After(to) {
			continue
		}
		out = append(out, p)
	}
	return PriceSeries{symbol: s.symbol, points: out}
}

func (s PriceSeries) String() string {
	if len(s.points) == 0 {
		return fmt.Sprintf("%s[empty]", s.symbol)
	}
	return fmt.Sprintf("%s[%s..%s, %d bars]", s.symbol,
		s.Start().Format(DateLayout), s.End().Format(DateLayout), len(s.points))
}

// Position deltas
const (
	DeltaExit  = -1
	DeltaHold  = 0
	DeltaEnter = 1
)

// SignalRecord is the per-bar output of a signal generator
type SignalRecord struct {
	Date          time.Time
	Price         float64
	ShortMA       float64
	LongMA        float64
	RawSignal     int // 1 when the short average is above the long one
	PositionDelta int // RawSignal[t] - RawSignal[t-1]; 0 on the first bar
}

// IsEntry reports a flat-to-long transition
func (r SignalRecord) IsEntry() bool {
	return r.PositionDelta == DeltaEnter
}

// IsExit reports a long-to-flat transition
func (r SignalRecord) IsExit() bool {
	return r.PositionDelta == DeltaExit
}
