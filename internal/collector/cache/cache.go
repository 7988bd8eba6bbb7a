// Package cache wraps a price source with an archive-backed read-through cache.
package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/smacross/internal/collector"
	"github.com/newthinker/smacross/internal/collector/csvfile"
	"github.com/newthinker/smacross/internal/core"
	"github.com/newthinker/smacross/internal/storage/archive"
)

// Cached serves series from store when present and falls back to inner,
// saving what inner returns. Entries are keyed by source, symbol and range
// and never expire, so only closed ranges ending before today are cached.
// Requests with an open or current end bound always go to inner, and empty
// series are never stored.
type Cached struct {
	inner  collector.Source
	store  archive.Store
	logger *zap.Logger
	now    func() time.Time
}

// New wraps inner. A nil logger disables logging.
func New(inner collector.Source, store archive.Store, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{inner: inner, store: store, logger: logger, now: time.Now}
}

// Name reports the wrapped source's name
func (c *Cached) Name() string {
	return c.inner.Name()
}

// Key returns the archive key for a request
func Key(source, symbol string, start, end time.Time) string {
	return fmt.Sprintf("prices/%s/%s_%s_%s.csv", source, symbol, bound(start), bound(end))
}

func bound(t time.Time) string {
	if t.IsZero() {
		return "open"
	}
	return t.Format("20060102")
}

// cacheable reports whether a range can no longer gain bars
func (c *Cached) cacheable(end time.Time) bool {
	if end.IsZero() {
		return false
	}
	return end.Before(collector.NormalizeDate(c.now()))
}

func (c *Cached) FetchSeries(ctx context.Context, symbol string, start, end time.Time) (core.PriceSeries, error) {
	if !c.cacheable(end) {
		c.logger.Debug("price cache bypassed for open range", zap.String("symbol", symbol))
		return c.inner.FetchSeries(ctx, symbol, start, end)
	}

	key := Key(c.inner.Name(), symbol, start, end)

	data, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		series, perr := csvfile.ReadSeries(bytes.NewReader(data), symbol)
		if perr == nil {
			c.logger.Debug("price cache hit", zap.String("symbol", symbol), zap.String("key", key))
			return series, nil
		}
		c.logger.Warn("discarding unreadable cache entry", zap.String("key", key), zap.Error(perr))
	case !errors.Is(err, archive.ErrNotFound):
		c.logger.Warn("price cache read failed", zap.String("key", key), zap.Error(err))
	}

	series, err := c.inner.FetchSeries(ctx, symbol, start, end)
	if err != nil {
		return core.PriceSeries{}, err
	}
	if series.Len() == 0 {
		return series, nil
	}

	var buf bytes.Buffer
	if err := csvfile.WriteSeries(&buf, series); err != nil {
		c.logger.Warn("encoding cache entry", zap.String("key", key), zap.Error(err))
		return series, nil
	}
	if err := c.store.Put(ctx, key, buf.Bytes()); err != nil {
		c.logger.Warn("price cache write failed", zap.String("key", key), zap.Error(err))
	}
	return series, nil
}
