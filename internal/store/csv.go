package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

// CSVLoader reads a price archive laid out as one directory per sector:
//
//	nse_data/
//	├── Nifty IT/
//	│   ├── INFY.csv
//	│   └── TCS.csv
//	├── Nifty Bank/
//	│   └── HDFCBANK.csv
//	├── NIFTY 50.csv        (optional benchmark, top level)
//	└── fundamentals.csv    (optional overrides, top level)
//
// Two CSV shapes are accepted: a plain Date,Open,High,Low,Close,Volume
// header, and the yfinance export where row 0 carries the column names
// (first column "Price"), row 1 repeats the ticker and row 2 is a stray
// "Date" row before the data.
type CSVLoader struct {
	dir       string
	benchmark string
	log       *logger.Logger
}

// NewCSVLoader creates a loader rooted at dir. benchmark names the
// top-level benchmark file stem (e.g. "NIFTY 50"); empty disables it.
func NewCSVLoader(dir, benchmark string, log *logger.Logger) *CSVLoader {
	return &CSVLoader{dir: dir, benchmark: benchmark, log: log}
}

// Load scans the archive and builds a fully populated Store, including
// synthesized sector indices.
func (l *CSVLoader) Load(ctx context.Context) (*Store, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir %s: %w", l.dir, err)
	}

	st := New(l.log)
	loaded, skipped := 0, 0

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}
		sector := entry.Name()

		files, err := filepath.Glob(filepath.Join(l.dir, sector, "*.csv"))
		if err != nil {
			return nil, fmt.Errorf("scan sector %s: %w", sector, err)
		}
		sort.Strings(files)

		for _, file := range files {
			symbol := strings.TrimSuffix(filepath.Base(file), ".csv")
			series, err := l.loadSeries(file, symbol)
			if err != nil {
				skipped++
				l.log.WithError(err).WithField("symbol", symbol).Warn("Skipping unreadable price file")
				continue
			}
			if series.Empty() {
				skipped++
				continue
			}
			st.PutStockSeries(series)
			st.PutFundamentals(defaultFundamentals(symbol, sector))
			loaded++
		}
	}

	if loaded == 0 {
		return nil, fmt.Errorf("%w: no stock series under %s", contracts.ErrNoUsableData, l.dir)
	}

	if err := l.loadFundamentalOverrides(st); err != nil {
		return nil, err
	}

	if benchmark := l.loadBenchmark(); benchmark != nil {
		st.SetBenchmark(benchmark)
	}

	st.BuildSectorIndices()

	l.log.WithFields(map[string]interface{}{
		"stocks":  loaded,
		"skipped": skipped,
		"sectors": len(st.Sectors()),
	}).Info("CSV archive loaded")

	return st, nil
}

// loadSeries parses one price file into a sorted series
func (l *CSVLoader) loadSeries(path, symbol string) (*contracts.PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols, skipRows := mapColumns(header)
	if cols == nil {
		return nil, fmt.Errorf("unrecognized header in %s", filepath.Base(path))
	}
	for i := 0; i < skipRows; i++ {
		if _, err := r.Read(); err != nil {
			return nil, fmt.Errorf("short file: %w", err)
		}
	}

	series := &contracts.PriceSeries{Symbol: symbol}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		point, ok := parseRow(record, cols)
		if !ok {
			continue
		}
		series.Points = append(series.Points, point)
	}

	sort.Slice(series.Points, func(i, j int) bool {
		return series.Points[i].Date.Before(series.Points[j].Date)
	})

	if issues := series.Validate(); len(issues) > 0 {
		l.log.WithFields(map[string]interface{}{
			"symbol": symbol,
			"issues": strings.Join(issues, "; "),
		}).Warn("Price series has quality issues")
	}

	return series, nil
}

// columnIndex maps logical fields to CSV column positions
type columnIndex struct {
	date, open, high, low, closePx, volume int
}

// mapColumns recognizes the header row and reports how many junk rows
// follow it before data starts (2 for yfinance exports, 0 for plain files).
func mapColumns(header []string) (*columnIndex, int) {
	idx := &columnIndex{date: -1, open: -1, high: -1, low: -1, closePx: -1, volume: -1}
	yfinance := false

	for i, raw := range header {
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "date":
			idx.date = i
		case "price":
			// yfinance puts the dates under a column literally named "Price"
			idx.date = i
			yfinance = true
		case "open":
			idx.open = i
		case "high":
			idx.high = i
		case "low":
			idx.low = i
		case "close":
			idx.closePx = i
		case "volume":
			idx.volume = i
		}
	}

	if idx.date < 0 || idx.open < 0 || idx.high < 0 || idx.low < 0 || idx.closePx < 0 || idx.volume < 0 {
		return nil, 0
	}
	if yfinance {
		return idx, 2
	}
	return idx, 0
}

var dateFormats = []string{
	"2006-01-02",
	"02-01-2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func parseRow(record []string, cols *columnIndex) (contracts.PricePoint, bool) {
	need := cols.volume
	for _, c := range []int{cols.date, cols.open, cols.high, cols.low, cols.closePx} {
		if c > need {
			need = c
		}
	}
	if len(record) <= need {
		return contracts.PricePoint{}, false
	}

	date, ok := parseDate(record[cols.date])
	if !ok {
		return contracts.PricePoint{}, false
	}

	parse := func(i int) (float64, bool) {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
		return v, err == nil
	}

	open, ok1 := parse(cols.open)
	high, ok2 := parse(cols.high)
	low, ok3 := parse(cols.low)
	closePx, ok4 := parse(cols.closePx)
	volume, ok5 := parse(cols.volume)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 || closePx <= 0 {
		return contracts.PricePoint{}, false
	}

	return contracts.PricePoint{
		Date:   date,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePx,
		Volume: int64(volume),
	}, true
}

// defaultFundamentals fills in neutral fundamentals for symbols the
// archive has no override row for. The values sit near Indian large-cap
// medians so the fundamental score neither rewards nor punishes them.
func defaultFundamentals(symbol, sector string) contracts.Fundamentals {
	return contracts.Fundamentals{
		Symbol:       symbol,
		Name:         symbol,
		Sector:       sector,
		MarketCap:    10_000_000_000,
		PERatio:      20.0,
		PBRatio:      3.0,
		ROE:          15.0,
		DebtToEquity: 0.5,
		CurrentRatio: 1.5,
		EPSGrowth:    10.0,
	}
}

// loadFundamentalOverrides merges rows from an optional top-level
// fundamentals.csv over the defaults.
func (l *CSVLoader) loadFundamentalOverrides(st *Store) error {
	path := filepath.Join(l.dir, "fundamentals.csv")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open fundamentals: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read fundamentals header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	symCol, ok := col["symbol"]
	if !ok {
		return fmt.Errorf("fundamentals.csv: missing symbol column")
	}

	applied := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		symbol := strings.TrimSpace(record[symCol])
		fund, ok := st.FundamentalsFor(symbol)
		if !ok {
			continue
		}
		get := func(name string, dst *float64) {
			i, ok := col[name]
			if !ok || i >= len(record) {
				return
			}
			if v, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64); err == nil {
				*dst = v
			}
		}
		if i, ok := col["name"]; ok && i < len(record) && strings.TrimSpace(record[i]) != "" {
			fund.Name = strings.TrimSpace(record[i])
		}
		get("market_cap", &fund.MarketCap)
		get("pe_ratio", &fund.PERatio)
		get("pb_ratio", &fund.PBRatio)
		get("roe", &fund.ROE)
		get("debt_to_equity", &fund.DebtToEquity)
		get("current_ratio", &fund.CurrentRatio)
		get("eps_growth", &fund.EPSGrowth)

		st.PutFundamentals(fund)
		applied++
	}

	if applied > 0 {
		l.log.WithField("rows", applied).Info("Fundamental overrides applied")
	}
	return nil
}

// loadBenchmark looks for a top-level CSV matching the configured
// benchmark name. Missing benchmark is not an error.
func (l *CSVLoader) loadBenchmark() *contracts.PriceSeries {
	if l.benchmark == "" {
		return nil
	}

	candidates := []string{
		filepath.Join(l.dir, l.benchmark+".csv"),
		filepath.Join(l.dir, strings.ReplaceAll(l.benchmark, " ", "_")+".csv"),
		filepath.Join(l.dir, "benchmark.csv"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		series, err := l.loadSeries(path, l.benchmark)
		if err != nil {
			l.log.WithError(err).Warn("Benchmark file unreadable, continuing without it")
			return nil
		}
		return series
	}

	l.log.WithField("benchmark", l.benchmark).Warn("No benchmark file found, relative metrics will be skipped")
	return nil
}
