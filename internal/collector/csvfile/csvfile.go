// Package csvfile reads and writes daily close series in the
// <SYMBOL>_data.csv layout produced by the fetch command and by yfinance.
package csvfile

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/smacross/internal/collector"
	"github.com/newthinker/smacross/internal/core"
)

var dateLayouts = []string{
	core.DateLayout,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Source loads series from a directory of CSV files
type Source struct {
	dir string
}

// New creates a Source rooted at dir
func New(dir string) *Source {
	return &Source{dir: dir}
}

func (s *Source) Name() string {
	return "csv"
}

// Path returns the file a symbol is read from and written to
func (s *Source) Path(symbol string) string {
	return filepath.Join(s.dir, FileName(symbol))
}

// FileName is the base name used for a symbol's data file
func FileName(symbol string) string {
	return symbol + "_data.csv"
}

// FetchSeries reads the symbol's file and trims it to [start, end]
func (s *Source) FetchSeries(ctx context.Context, symbol string, start, end time.Time) (core.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return core.PriceSeries{}, err
	}

	f, err := os.Open(s.Path(symbol))
	if errors.Is(err, fs.ErrNotExist) {
		return core.PriceSeries{}, core.Errorf(core.ErrSymbolNotFound, "no data file %s", s.Path(symbol))
	}
	if err != nil {
		return core.PriceSeries{}, core.WrapError(core.ErrCollectorFailed, err)
	}
	defer f.Close()

	series, err := ReadSeries(f, symbol)
	if err != nil {
		return core.PriceSeries{}, err
	}
	return series.Between(start, end), nil
}

// Save writes series to the symbol's file, creating the directory
func (s *Source) Save(series core.PriceSeries) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating data dir: %w", err)
	}

	var buf bytes.Buffer
	if err := WriteSeries(&buf, series); err != nil {
		return "", err
	}

	path := s.Path(series.Symbol())
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// ReadSeries parses a CSV with a header row containing a Close column.
// Dates come from the Date column, or the first column when no header is
// named Date. Rows before the first data row whose date cell is blank or a
// label (yfinance's Ticker/Date rows) are skipped; any later unparsable row
// is an error.
func ReadSeries(r io.Reader, symbol string) (core.PriceSeries, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return core.NewPriceSeries(symbol, nil)
	}
	if err != nil {
		return core.PriceSeries{}, core.WrapError(core.ErrCollectorFailed, err)
	}

	dateCol, closeCol := columns(header)
	if closeCol < 0 {
		return core.PriceSeries{}, core.Errorf(core.ErrCollectorFailed, "%s: no Close column in header %v", symbol, header)
	}

	var points []core.PricePoint
	line := 1
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return core.PriceSeries{}, core.WrapError(core.ErrCollectorFailed, err)
		}
		if dateCol >= len(rec) || closeCol >= len(rec) {
			return core.PriceSeries{}, core.Errorf(core.ErrCollectorFailed, "%s line %d: expected %d columns, got %d",
				symbol, line, max(dateCol, closeCol)+1, len(rec))
		}

		cell := strings.TrimSpace(rec[dateCol])
		date, ok := parseDate(cell)
		if !ok {
			if len(points) == 0 && isLabel(cell) {
				continue
			}
			return core.PriceSeries{}, core.Errorf(core.ErrCollectorFailed, "%s line %d: bad date %q", symbol, line, cell)
		}

		price, err := strconv.ParseFloat(strings.TrimSpace(rec[closeCol]), 64)
		if err != nil {
			return core.PriceSeries{}, core.Errorf(core.ErrCollectorFailed, "%s line %d: bad close %q", symbol, line, rec[closeCol])
		}

		points = append(points, core.PricePoint{Date: collector.NormalizeDate(date), Close: price})
	}

	return core.NewPriceSeries(symbol, points)
}

// WriteSeries writes a Date,Close CSV
func WriteSeries(w io.Writer, series core.PriceSeries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "Close"}); err != nil {
		return err
	}
	for _, p := range series.Points() {
		if err := cw.Write([]string{
			p.Date.Format(core.DateLayout),
			strconv.FormatFloat(p.Close, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func columns(header []string) (dateCol, closeCol int) {
	dateCol, closeCol = 0, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date":
			dateCol = i
		case "close":
			closeCol = i
		}
	}
	return dateCol, closeCol
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func isLabel(cell string) bool {
	switch strings.ToLower(cell) {
	case "", "ticker", "date", "price":
		return true
	}
	return false
}
