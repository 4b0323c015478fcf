package contracts

import (
	"sort"
	"time"
)

// PricePoint is one daily OHLCV bar.
type PricePoint struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceSeries is an ordered OHLCV history for one symbol or sector index.
// Points are sorted oldest to newest with strictly increasing dates.
type PriceSeries struct {
	Symbol string       `json:"symbol"`
	Points []PricePoint `json:"points"`
}

// Len returns the number of bars in the series.
func (s *PriceSeries) Len() int {
	return len(s.Points)
}

// Empty reports whether the series has no data.
func (s *PriceSeries) Empty() bool {
	return len(s.Points) == 0
}

// First returns the oldest bar.
func (s *PriceSeries) First() PricePoint {
	return s.Points[0]
}

// Last returns the most recent bar.
func (s *PriceSeries) Last() PricePoint {
	return s.Points[len(s.Points)-1]
}

// SliceThrough returns a view of the series restricted to bars dated on or
// before asOf. The returned series shares backing storage with the receiver;
// callers must treat it as read-only.
func (s *PriceSeries) SliceThrough(asOf time.Time) *PriceSeries {
	n := sort.Search(len(s.Points), func(i int) bool {
		return s.Points[i].Date.After(asOf)
	})
	return &PriceSeries{Symbol: s.Symbol, Points: s.Points[:n]}
}

// LatestOnOrBefore returns the most recent bar dated on or before asOf.
// The second return value is false when no such bar exists.
func (s *PriceSeries) LatestOnOrBefore(asOf time.Time) (PricePoint, bool) {
	n := sort.Search(len(s.Points), func(i int) bool {
		return s.Points[i].Date.After(asOf)
	})
	if n == 0 {
		return PricePoint{}, false
	}
	return s.Points[n-1], true
}

// TotalReturn computes the simple return over the trailing window of n bars,
// i.e. close[last] / close[last-n] - 1. Returns 0 when the series is too
// short or the reference close is not positive.
func (s *PriceSeries) TotalReturn(n int) float64 {
	if len(s.Points) <= n || n <= 0 {
		return 0
	}
	ref := s.Points[len(s.Points)-1-n].Close
	if ref <= 0 {
		return 0
	}
	return s.Points[len(s.Points)-1].Close/ref - 1
}

// AvgVolume returns the average traded volume over the trailing n bars
// (or all bars when fewer are available).
func (s *PriceSeries) AvgVolume(n int) float64 {
	if len(s.Points) == 0 || n <= 0 {
		return 0
	}
	start := len(s.Points) - n
	if start < 0 {
		start = 0
	}
	var sum float64
	for _, p := range s.Points[start:] {
		sum += p.Volume
	}
	return sum / float64(len(s.Points)-start)
}

// SMA returns the simple moving average of closes over the trailing n bars.
// Returns 0 when fewer than n bars are available.
func (s *PriceSeries) SMA(n int) float64 {
	if n <= 0 || len(s.Points) < n {
		return 0
	}
	var sum float64
	for _, p := range s.Points[len(s.Points)-n:] {
		sum += p.Close
	}
	return sum / float64(n)
}

// DailyReturns returns the day-over-day simple returns of the close series.
func (s *PriceSeries) DailyReturns() []float64 {
	if len(s.Points) < 2 {
		return nil
	}
	out := make([]float64, 0, len(s.Points)-1)
	for i := 1; i < len(s.Points); i++ {
		prev := s.Points[i-1].Close
		if prev <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, s.Points[i].Close/prev-1)
	}
	return out
}

// Validate checks the series invariants: strictly increasing dates, High
// covering Low, and Close inside the bar's range. Violations are returned as
// human-readable strings so callers can log them; they are not fatal.
func (s *PriceSeries) Validate() []string {
	var issues []string
	for i, p := range s.Points {
		if i > 0 && !s.Points[i-1].Date.Before(p.Date) {
			issues = append(issues, "non-increasing date at "+p.Date.Format("2006-01-02"))
		}
		if p.High < p.Low {
			issues = append(issues, "high below low at "+p.Date.Format("2006-01-02"))
		}
		if p.Close > p.High || p.Close < p.Low {
			issues = append(issues, "close outside range at "+p.Date.Format("2006-01-02"))
		}
	}
	return issues
}

// Fundamentals is a point-in-time snapshot of a stock's slowly varying
// attributes. Zero values mean "unknown"; consumers fall back to a neutral
// treatment rather than defaulting field by field at each use site.
type Fundamentals struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name,omitempty"`
	Sector       string  `json:"sector"`
	MarketCap    float64 `json:"market_cap"`     // rupees, 0 = unknown
	PERatio      float64 `json:"pe_ratio"`       // 0 = unknown
	PBRatio      float64 `json:"pb_ratio"`       // 0 = unknown
	ROE          float64 `json:"roe"`            // percent, 0 = unknown
	DebtToEquity float64 `json:"debt_to_equity"` // 0 = unknown or debt-free
	CurrentRatio float64 `json:"current_ratio"`  // 0 = unknown
	EPSGrowth    float64 `json:"eps_growth"`     // percent, 0 = unknown
}

// MarketSnapshot is the point-in-time view of all input data handed to the
// composer for one rebalance date. Every series inside it has already been
// sliced to bars dated on or before AsOf, so downstream scoring cannot see
// future data.
type MarketSnapshot struct {
	AsOf         time.Time
	Sectors      map[string]*PriceSeries
	Stocks       map[string]*PriceSeries
	Fundamentals map[string]Fundamentals
	Benchmark    *PriceSeries
}

// SectorOf returns the sector classification for a symbol, or "" when the
// symbol has no fundamentals record.
func (m *MarketSnapshot) SectorOf(symbol string) string {
	if f, ok := m.Fundamentals[symbol]; ok {
		return f.Sector
	}
	return ""
}

// SectorSymbols returns the symbols classified under the given sector.
func (m *MarketSnapshot) SectorSymbols(sector string) []string {
	var out []string
	for sym, f := range m.Fundamentals {
		if f.Sector == sector {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}
