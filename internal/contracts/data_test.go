package contracts

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testSeries(closes ...float64) *PriceSeries {
	s := &PriceSeries{Symbol: "TEST"}
	base := day(2024, 1, 1)
	for i, c := range closes {
		s.Points = append(s.Points, PricePoint{
			Date:   base.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1000,
		})
	}
	return s
}

func TestSliceThrough(t *testing.T) {
	s := testSeries(100, 101, 102, 103, 104)

	sliced := s.SliceThrough(day(2024, 1, 3))
	if sliced.Len() != 3 {
		t.Errorf("expected 3 bars through Jan 3, got %d", sliced.Len())
	}
	if last := sliced.Last(); last.Close != 102 {
		t.Errorf("expected last close 102, got %f", last.Close)
	}

	// Slicing before the first bar yields an empty view.
	if n := s.SliceThrough(day(2023, 12, 31)).Len(); n != 0 {
		t.Errorf("expected empty slice before series start, got %d bars", n)
	}

	// Slicing past the end returns everything.
	if n := s.SliceThrough(day(2025, 1, 1)).Len(); n != 5 {
		t.Errorf("expected full series, got %d bars", n)
	}
}

func TestLatestOnOrBefore(t *testing.T) {
	s := testSeries(100, 101, 102)

	// Exact hit.
	p, ok := s.LatestOnOrBefore(day(2024, 1, 2))
	if !ok || p.Close != 101 {
		t.Errorf("expected close 101 on exact date, got %v ok=%v", p.Close, ok)
	}

	// A non-trading date falls back to the prior bar.
	p, ok = s.LatestOnOrBefore(day(2024, 1, 2).Add(12 * time.Hour))
	if !ok || p.Close != 101 {
		t.Errorf("expected close 101 for intraday timestamp, got %v ok=%v", p.Close, ok)
	}

	// Before the series starts there is no price.
	if _, ok := s.LatestOnOrBefore(day(2023, 6, 1)); ok {
		t.Error("expected no price before series start")
	}
}

func TestTotalReturn(t *testing.T) {
	s := testSeries(100, 110, 121)

	if r := s.TotalReturn(2); r < 0.2099 || r > 0.2101 {
		t.Errorf("expected 21%% return over 2 bars, got %f", r)
	}
	if r := s.TotalReturn(10); r != 0 {
		t.Errorf("expected 0 for window longer than series, got %f", r)
	}
}

func TestSMA(t *testing.T) {
	s := testSeries(10, 20, 30, 40)

	if got := s.SMA(2); got != 35 {
		t.Errorf("expected SMA(2)=35, got %f", got)
	}
	if got := s.SMA(4); got != 25 {
		t.Errorf("expected SMA(4)=25, got %f", got)
	}
	if got := s.SMA(5); got != 0 {
		t.Errorf("expected SMA over short series to be 0, got %f", got)
	}
}

func TestValidate(t *testing.T) {
	s := testSeries(100, 101)
	if issues := s.Validate(); len(issues) != 0 {
		t.Errorf("expected clean series, got %v", issues)
	}

	// High below low is flagged but not fatal.
	bad := testSeries(100)
	bad.Points[0].High = 90
	bad.Points[0].Low = 95
	if issues := bad.Validate(); len(issues) == 0 {
		t.Error("expected validation issue for inverted high/low")
	}

	// Duplicate dates are flagged.
	dup := testSeries(100, 101)
	dup.Points[1].Date = dup.Points[0].Date
	if issues := dup.Validate(); len(issues) == 0 {
		t.Error("expected validation issue for duplicate dates")
	}
}

func TestMarketSnapshotSectorLookup(t *testing.T) {
	snap := &MarketSnapshot{
		AsOf: day(2024, 6, 1),
		Fundamentals: map[string]Fundamentals{
			"INFY":     {Symbol: "INFY", Sector: "Nifty IT"},
			"TCS":      {Symbol: "TCS", Sector: "Nifty IT"},
			"HDFCBANK": {Symbol: "HDFCBANK", Sector: "Nifty Bank"},
		},
	}

	if got := snap.SectorOf("INFY"); got != "Nifty IT" {
		t.Errorf("expected Nifty IT, got %s", got)
	}
	if got := snap.SectorOf("UNKNOWN"); got != "" {
		t.Errorf("expected empty sector for unknown symbol, got %s", got)
	}

	it := snap.SectorSymbols("Nifty IT")
	if len(it) != 2 || it[0] != "INFY" || it[1] != "TCS" {
		t.Errorf("expected sorted [INFY TCS], got %v", it)
	}
}
