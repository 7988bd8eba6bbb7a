package main

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/smacross/internal/collector"
	"github.com/newthinker/smacross/internal/collector/cache"
	"github.com/newthinker/smacross/internal/collector/csvfile"
	"github.com/newthinker/smacross/internal/collector/yahoo"
	"github.com/newthinker/smacross/internal/config"
	"github.com/newthinker/smacross/internal/metrics"
	"github.com/newthinker/smacross/internal/storage/archive"
)

// newYahoo builds the Yahoo source, instrumenting its client when reg is set
func newYahoo(reg *metrics.Registry, log *zap.Logger) *yahoo.Yahoo {
	client := &http.Client{Timeout: 30 * time.Second}
	if reg != nil {
		client.Transport = metrics.Transport(reg, log, nil)
	}
	return yahoo.New(yahoo.WithHTTPClient(client))
}

// buildSource resolves the configured source and wraps it in the price cache
// when enabled
func buildSource(cfg *config.Config, reg *metrics.Registry, log *zap.Logger) (collector.Source, error) {
	sources := collector.NewRegistry()
	sources.Register(csvfile.New(cfg.Data.Dir))
	sources.Register(newYahoo(reg, log))

	src, ok := sources.Get(cfg.Data.Source)
	if !ok {
		return nil, fmt.Errorf("unknown data source %q (available: %v)", cfg.Data.Source, sources.Names())
	}

	if !cfg.Data.Cache {
		return src, nil
	}
	store, err := archive.NewLocalFS(cfg.Data.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("opening price cache: %w", err)
	}
	log.Debug("price cache enabled", zap.String("dir", cfg.Data.CacheDir))
	return cache.New(src, store, log.Named("cache")), nil
}
