package selection

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/internal/strategyconfig"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

func volumeSeries(symbol string, volume float64) *contracts.PriceSeries {
	s := &contracts.PriceSeries{Symbol: symbol}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		s.Points = append(s.Points, contracts.PricePoint{
			Date:   start.AddDate(0, 0, i),
			Open:   100,
			High:   100,
			Low:    100,
			Close:  100,
			Volume: volume,
		})
	}
	return s
}

func scoreTable(entries map[string]contracts.StockScore) contracts.ScoreTable {
	t := contracts.ScoreTable{}
	for sym, sc := range entries {
		sc.Symbol = sym
		t[sym] = sc
	}
	return t
}

func TestScreenFilterSequence(t *testing.T) {
	cfg := strategyconfig.Default()
	cfg.Selection.TopDecilePct = 0.75 // keep the top three quarters for a readable fixture

	scores := scoreTable(map[string]contracts.StockScore{
		"RELIANCE":  {Composite: 0.90, Sharpe: 1.0, TrendScore: 1.0},
		"TATASTEEL": {Composite: 0.80, Sharpe: 1.0, TrendScore: 1.0},
		"PAYTM":     {Composite: 0.85, Sharpe: 1.0, TrendScore: 1.0},
		"IDEA":      {Composite: 0.30, Sharpe: 1.0, TrendScore: 1.0},
		"SUZLON":    {Composite: 0.95, Sharpe: 0.0, TrendScore: 1.0},
		"YESBANK":   {Composite: 0.94, Sharpe: 1.0, TrendScore: 0.4},
	})

	snap := &contracts.MarketSnapshot{
		Stocks: map[string]*contracts.PriceSeries{
			"RELIANCE":  volumeSeries("RELIANCE", 2_000_000),
			"TATASTEEL": volumeSeries("TATASTEEL", 1_000),
			"PAYTM":     volumeSeries("PAYTM", 2_000_000),
			"IDEA":      volumeSeries("IDEA", 2_000_000),
			"SUZLON":    volumeSeries("SUZLON", 2_000_000),
			"YESBANK":   volumeSeries("YESBANK", 2_000_000),
		},
		Fundamentals: map[string]contracts.Fundamentals{
			"RELIANCE":  {Symbol: "RELIANCE", MarketCap: 2e9},
			"TATASTEEL": {Symbol: "TATASTEEL", MarketCap: 2e9},
			"PAYTM":     {Symbol: "PAYTM", MarketCap: 5e8},
			"IDEA":      {Symbol: "IDEA", MarketCap: 2e9},
			"SUZLON":    {Symbol: "SUZLON", MarketCap: 2e9},
			"YESBANK":   {Symbol: "YESBANK", MarketCap: 2e9},
		},
	}

	screener := NewScreener(cfg, logger.NewNop())
	eligible, filtered := screener.Screen(context.Background(), snap, scores)

	if len(eligible) != 1 || eligible[0] != "RELIANCE" {
		t.Fatalf("expected only RELIANCE to survive, got %v", eligible)
	}
	wantCounts := map[string]int{
		"sharpe":     1, // SUZLON at exactly zero
		"trend":      1, // YESBANK below 0.5
		"top_decile": 1, // IDEA below the cut
		"liquidity":  2, // TATASTEEL volume, PAYTM market cap
	}
	for name, want := range wantCounts {
		if filtered[name] != want {
			t.Errorf("filter %s: expected %d drops, got %d", name, want, filtered[name])
		}
	}
}

func TestScreenEmptyUniverse(t *testing.T) {
	screener := NewScreener(strategyconfig.Default(), logger.NewNop())

	eligible, filtered := screener.Screen(context.Background(), &contracts.MarketSnapshot{}, contracts.ScoreTable{})
	if len(eligible) != 0 {
		t.Errorf("expected no candidates, got %v", eligible)
	}
	if len(filtered) != 0 {
		t.Errorf("expected no filter counts, got %v", filtered)
	}
}

func TestQuantile(t *testing.T) {
	if got := quantile(nil, 0.5); got != 0 {
		t.Errorf("expected 0 for empty input, got %f", got)
	}
	if got := quantile([]float64{5}, 0.9); got != 5 {
		t.Errorf("expected single value, got %f", got)
	}
	vals := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := quantile(vals, 0.9); math.Abs(got-9.1) > 1e-9 {
		t.Errorf("expected interpolated 9.1, got %f", got)
	}
	if got := quantile(vals, 0); got != 1 {
		t.Errorf("expected minimum at q=0, got %f", got)
	}
	if got := quantile(vals, 1); got != 10 {
		t.Errorf("expected maximum at q=1, got %f", got)
	}
}
