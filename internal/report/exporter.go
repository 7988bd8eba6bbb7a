// Package report writes backtest results to an archive store and renders
// console summaries.
package report

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"slices"

	"github.com/newthinker/smacross/internal/backtest"
	"github.com/newthinker/smacross/internal/core"
	"github.com/newthinker/smacross/internal/storage/archive"
)

// Export formats
const (
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatArrow = "arrow"
)

// DefaultFormats is used when no formats are configured
var DefaultFormats = []string{FormatCSV, FormatJSON}

// Exporter persists results under <run_id>/<symbol>/
type Exporter struct {
	store   archive.Store
	formats []string
}

// NewExporter creates an exporter writing the given formats to store
func NewExporter(store archive.Store, formats []string) (*Exporter, error) {
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	for _, f := range formats {
		if !slices.Contains([]string{FormatCSV, FormatJSON, FormatArrow}, f) {
			return nil, core.Errorf(core.ErrConfigInvalid, "unknown output format %q", f)
		}
	}
	return &Exporter{store: store, formats: slices.Compact(slices.Sorted(slices.Values(formats)))}, nil
}

type artifact struct {
	name   string
	format string
	encode func(*bytes.Buffer, *backtest.Result) error
}

var artifacts = []artifact{
	{"signals.csv", FormatCSV, writeSignalsCSV},
	{"equity.csv", FormatCSV, writeEquityCSV},
	{"trades.csv", FormatCSV, writeTradesCSV},
	{"metrics.json", FormatJSON, writeMetricsJSON},
	{"signals.arrow", FormatArrow, writeSignalsArrow},
	{"equity.arrow", FormatArrow, writeEquityArrow},
	{"trades.arrow", FormatArrow, writeTradesArrow},
}

// Export writes every enabled artifact for res and returns the keys written
func (e *Exporter) Export(ctx context.Context, res *backtest.Result) ([]string, error) {
	if res == nil {
		return nil, core.Errorf(core.ErrExportFailed, "nil result")
	}
	dir := path.Join(res.RunID, res.Symbol)

	var keys []string
	for _, a := range artifacts {
		if !slices.Contains(e.formats, a.format) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return keys, err
		}

		var buf bytes.Buffer
		if err := a.encode(&buf, res); err != nil {
			return keys, core.WrapError(core.ErrExportFailed, fmt.Errorf("encoding %s: %w", a.name, err))
		}

		key := path.Join(dir, a.name)
		if err := e.store.Put(ctx, key, buf.Bytes()); err != nil {
			return keys, core.WrapError(core.ErrExportFailed, fmt.Errorf("writing %s: %w", key, err))
		}
		keys = append(keys, key)
	}
	return keys, nil
}
