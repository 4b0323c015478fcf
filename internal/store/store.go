package store

import (
	"sort"
	"sync"
	"time"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

// Store is the in-memory market data set a backtest runs against. It is
// populated once (from CSV or PostgreSQL), then read concurrently.
type Store struct {
	mu           sync.RWMutex
	sectors      map[string]*contracts.PriceSeries
	stocks       map[string]*contracts.PriceSeries
	fundamentals map[string]contracts.Fundamentals
	benchmark    *contracts.PriceSeries

	log *logger.Logger
}

// New creates an empty Store
func New(log *logger.Logger) *Store {
	return &Store{
		sectors:      make(map[string]*contracts.PriceSeries),
		stocks:       make(map[string]*contracts.PriceSeries),
		fundamentals: make(map[string]contracts.Fundamentals),
		log:          log,
	}
}

// PutStockSeries registers a stock price series
func (s *Store) PutStockSeries(series *contracts.PriceSeries) {
	if series == nil || series.Empty() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stocks[series.Symbol] = series
}

// PutSectorSeries registers a sector index series
func (s *Store) PutSectorSeries(sector string, series *contracts.PriceSeries) {
	if series == nil || series.Empty() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sectors[sector] = series
}

// PutFundamentals registers fundamentals for a symbol
func (s *Store) PutFundamentals(f contracts.Fundamentals) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fundamentals[f.Symbol] = f
}

// SetBenchmark registers the benchmark series
func (s *Store) SetBenchmark(series *contracts.PriceSeries) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.benchmark = series
}

// Sectors returns all sector names, sorted
func (s *Store) Sectors() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.sectors))
	for name := range s.sectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Symbols returns all stock symbols, sorted
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	syms := make([]string, 0, len(s.stocks))
	for sym := range s.stocks {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

// StockSeries returns the full series for one symbol
func (s *Store) StockSeries(symbol string) (*contracts.PriceSeries, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	series, ok := s.stocks[symbol]
	return series, ok
}

// BenchmarkSeries returns the benchmark, or nil when none was loaded
func (s *Store) BenchmarkSeries() *contracts.PriceSeries {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.benchmark
}

// FundamentalsFor returns the registered fundamentals for one symbol
func (s *Store) FundamentalsFor(symbol string) (contracts.Fundamentals, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.fundamentals[symbol]
	return f, ok
}

// Snapshot returns a view of the market with every series cut off at
// asOf. Signal code only ever sees these views, which is what keeps
// look-ahead out of the system.
func (s *Store) Snapshot(asOf time.Time) *contracts.MarketSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &contracts.MarketSnapshot{
		AsOf:         asOf,
		Sectors:      make(map[string]*contracts.PriceSeries, len(s.sectors)),
		Stocks:       make(map[string]*contracts.PriceSeries, len(s.stocks)),
		Fundamentals: make(map[string]contracts.Fundamentals, len(s.fundamentals)),
	}

	for name, series := range s.sectors {
		if view := series.SliceThrough(asOf); !view.Empty() {
			snap.Sectors[name] = view
		}
	}
	for sym, series := range s.stocks {
		if view := series.SliceThrough(asOf); !view.Empty() {
			snap.Stocks[sym] = view
		}
	}
	for sym, f := range s.fundamentals {
		snap.Fundamentals[sym] = f
	}
	if s.benchmark != nil {
		if view := s.benchmark.SliceThrough(asOf); !view.Empty() {
			snap.Benchmark = view
		}
	}

	return snap
}

// BuildSectorIndices synthesizes an equal-weighted index series per
// sector from the member stock closes. For each date the index close is
// the mean close of the members that traded that day. Open/high/low are
// approximated around the close and volume is a placeholder, since only
// closes feed the momentum signals.
func (s *Store) BuildSectorIndices() {
	s.mu.Lock()
	defer s.mu.Unlock()

	members := make(map[string][]*contracts.PriceSeries)
	for sym, series := range s.stocks {
		f, ok := s.fundamentals[sym]
		if !ok || f.Sector == "" {
			continue
		}
		members[f.Sector] = append(members[f.Sector], series)
	}

	for sector, seriesList := range members {
		index := buildEqualWeightIndex(sector, seriesList)
		if index != nil && !index.Empty() {
			s.sectors[sector] = index
		}
	}

	if s.log != nil {
		s.log.WithFields(map[string]interface{}{
			"sectors": len(s.sectors),
			"stocks":  len(s.stocks),
		}).Info("Sector indices built")
	}
}

func buildEqualWeightIndex(sector string, members []*contracts.PriceSeries) *contracts.PriceSeries {
	if len(members) == 0 {
		return nil
	}

	sums := make(map[time.Time]float64)
	counts := make(map[time.Time]int)
	for _, series := range members {
		for _, p := range series.Points {
			sums[p.Date] += p.Close
			counts[p.Date]++
		}
	}

	dates := make([]time.Time, 0, len(sums))
	for d := range sums {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	index := &contracts.PriceSeries{Symbol: sector}
	for _, d := range dates {
		mean := sums[d] / float64(counts[d])
		index.Points = append(index.Points, contracts.PricePoint{
			Date:   d,
			Open:   mean * 0.998,
			High:   mean * 1.005,
			Low:    mean * 0.995,
			Close:  mean,
			Volume: 1_000_000,
		})
	}
	return index
}

// TradingDays returns the sorted union of bar dates across every loaded
// series. This is the reference calendar the backtest walks: a day counts
// as a trading day if anything traded on it.
func (s *Store) TradingDays() []time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[time.Time]struct{})
	collect := func(series *contracts.PriceSeries) {
		if series == nil {
			return
		}
		for _, p := range series.Points {
			seen[p.Date] = struct{}{}
		}
	}
	for _, series := range s.stocks {
		collect(series)
	}
	for _, series := range s.sectors {
		collect(series)
	}
	collect(s.benchmark)

	days := make([]time.Time, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// EarliestCommonDate returns the first date on which every stock and
// sector series (and the benchmark, when present) has data. Returns
// false when the store is empty.
func (s *Store) EarliestCommonDate() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest time.Time
	found := false
	consider := func(series *contracts.PriceSeries) {
		if series == nil || series.Empty() {
			return
		}
		first := series.First().Date
		if !found || first.After(latest) {
			latest = first
		}
		found = true
	}

	for _, series := range s.stocks {
		consider(series)
	}
	for _, series := range s.sectors {
		consider(series)
	}
	consider(s.benchmark)

	return latest, found
}

// Coverage summarizes what is loaded, for the data-check command.
type Coverage struct {
	Sectors    int                      `json:"sectors"`
	Stocks     int                      `json:"stocks"`
	Benchmark  bool                     `json:"benchmark"`
	FirstDate  time.Time                `json:"first_date"`
	LastDate   time.Time                `json:"last_date"`
	PerSector  map[string]int           `json:"per_sector"`
	Violations map[string][]string      `json:"violations,omitempty"`
}

// Coverage computes a coverage report including per-series validation
// findings. Violations are soft: they are reported, not fatal.
func (s *Store) Coverage() Coverage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cov := Coverage{
		Sectors:    len(s.sectors),
		Stocks:     len(s.stocks),
		Benchmark:  s.benchmark != nil,
		PerSector:  make(map[string]int),
		Violations: make(map[string][]string),
	}

	for sym, f := range s.fundamentals {
		if _, ok := s.stocks[sym]; ok && f.Sector != "" {
			cov.PerSector[f.Sector]++
		}
	}

	for sym, series := range s.stocks {
		if series.Empty() {
			continue
		}
		first, last := series.First().Date, series.Last().Date
		if cov.FirstDate.IsZero() || first.Before(cov.FirstDate) {
			cov.FirstDate = first
		}
		if last.After(cov.LastDate) {
			cov.LastDate = last
		}
		if issues := series.Validate(); len(issues) > 0 {
			cov.Violations[sym] = issues
		}
	}

	if len(cov.Violations) == 0 {
		cov.Violations = nil
	}
	return cov
}
