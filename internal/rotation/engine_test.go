package rotation

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/internal/strategyconfig"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

type stubRanker struct {
	scores []contracts.SectorScore
	err    error
}

func (r *stubRanker) Rank(ctx context.Context, sectors map[string]*contracts.PriceSeries, asOf time.Time) ([]contracts.SectorScore, error) {
	return r.scores, r.err
}

func testSnapshot(symbolSectors map[string]string) *contracts.MarketSnapshot {
	snap := &contracts.MarketSnapshot{
		AsOf:         time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC),
		Fundamentals: map[string]contracts.Fundamentals{},
	}
	for sym, sector := range symbolSectors {
		snap.Fundamentals[sym] = contracts.Fundamentals{Symbol: sym, Sector: sector}
	}
	return snap
}

func testScores(composites map[string]float64) contracts.ScoreTable {
	table := contracts.ScoreTable{}
	for sym, c := range composites {
		table[sym] = contracts.StockScore{Symbol: sym, Composite: c}
	}
	return table
}

func TestBuildCoreSelectsTopSectors(t *testing.T) {
	cfg := strategyconfig.Default()
	cfg.Rotation.TopSectors = 2
	cfg.Rotation.StocksPerSector = 2

	ranker := &stubRanker{scores: []contracts.SectorScore{
		{Sector: "Nifty IT", Momentum: 0.30, TrendConfirmed: true},
		{Sector: "Nifty Bank", Momentum: 0.20, TrendConfirmed: true},
		{Sector: "Nifty FMCG", Momentum: 0.10, TrendConfirmed: true},
	}}
	eng := NewEngine(ranker, cfg, logger.NewNop())

	snap := testSnapshot(map[string]string{
		"INFY": "Nifty IT", "TCS": "Nifty IT", "WIPRO": "Nifty IT",
		"HDFCBANK": "Nifty Bank", "ICICIBANK": "Nifty Bank",
		"ITC": "Nifty FMCG",
	})
	scores := testScores(map[string]float64{
		"INFY": 0.9, "TCS": 0.8, "WIPRO": 0.7,
		"HDFCBANK": 0.6, "ICICIBANK": 0.5,
		"ITC": 0.95,
	})

	weights, sel, err := eng.BuildCore(context.Background(), snap, scores, []string{"Nifty Bank", "Nifty FMCG"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sel.Selected) != 2 || sel.Selected[0].Sector != "Nifty IT" || sel.Selected[1].Sector != "Nifty Bank" {
		t.Fatalf("unexpected sector selection: %+v", sel.Selected)
	}
	if math.Abs(sel.SectorWeight-0.30) > 1e-9 {
		t.Errorf("expected 0.30 per sector, got %f", sel.SectorWeight)
	}

	want := contracts.TargetWeights{
		"INFY": 0.15, "TCS": 0.15,
		"HDFCBANK": 0.15, "ICICIBANK": 0.15,
	}
	if len(weights) != len(want) {
		t.Fatalf("expected %d positions, got %d: %v", len(want), len(weights), weights)
	}
	for sym, w := range want {
		if math.Abs(weights[sym]-w) > 1e-9 {
			t.Errorf("%s: expected weight %f, got %f", sym, w, weights[sym])
		}
	}
	if math.Abs(weights.TotalWeight()-0.60) > 1e-9 {
		t.Errorf("expected core sleeve to sum to 0.60, got %f", weights.TotalWeight())
	}

	if !reflect.DeepEqual(sel.Entered, []string{"Nifty IT"}) {
		t.Errorf("unexpected entered: %v", sel.Entered)
	}
	if !reflect.DeepEqual(sel.Exited, []string{"Nifty FMCG"}) {
		t.Errorf("unexpected exited: %v", sel.Exited)
	}
	if !reflect.DeepEqual(sel.Held, []string{"Nifty Bank"}) {
		t.Errorf("unexpected held: %v", sel.Held)
	}
}

func TestBuildCoreTrendFilterDropsUnconfirmed(t *testing.T) {
	cfg := strategyconfig.Default()
	cfg.Rotation.TopSectors = 2
	cfg.Rotation.StocksPerSector = 1
	cfg.Rotation.TrendFilter.Enable = true

	ranker := &stubRanker{scores: []contracts.SectorScore{
		{Sector: "Nifty IT", Momentum: 0.30, TrendConfirmed: true},
		{Sector: "Nifty Bank", Momentum: 0.20, TrendConfirmed: false},
		{Sector: "Nifty FMCG", Momentum: 0.10, TrendConfirmed: true},
	}}
	eng := NewEngine(ranker, cfg, logger.NewNop())

	snap := testSnapshot(map[string]string{
		"INFY": "Nifty IT", "HDFCBANK": "Nifty Bank", "ITC": "Nifty FMCG",
	})
	scores := testScores(map[string]float64{"INFY": 0.9, "HDFCBANK": 0.8, "ITC": 0.7})

	weights, sel, err := eng.BuildCore(context.Background(), snap, scores, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sel.Selected) != 2 || sel.Selected[0].Sector != "Nifty IT" || sel.Selected[1].Sector != "Nifty FMCG" {
		t.Fatalf("expected unconfirmed sector replaced by next survivor, got %+v", sel.Selected)
	}
	if _, ok := weights["HDFCBANK"]; ok {
		t.Error("expected no weight in the unconfirmed sector")
	}
}

func TestBuildCoreAllSectorsFiltered(t *testing.T) {
	cfg := strategyconfig.Default()
	cfg.Rotation.TrendFilter.Enable = true

	ranker := &stubRanker{scores: []contracts.SectorScore{
		{Sector: "Nifty IT", Momentum: -0.10, TrendConfirmed: false},
		{Sector: "Nifty Bank", Momentum: -0.20, TrendConfirmed: false},
	}}
	eng := NewEngine(ranker, cfg, logger.NewNop())

	weights, sel, err := eng.BuildCore(context.Background(), testSnapshot(nil), contracts.ScoreTable{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sel.Selected) != 0 || sel.SectorWeight != 0 {
		t.Errorf("expected empty selection in a broad downtrend, got %+v", sel)
	}
	if weights.TotalWeight() != 0 {
		t.Errorf("expected core sleeve fully in cash, got %f", weights.TotalWeight())
	}
}

func TestBuildCoreToleratesFewerSectors(t *testing.T) {
	cfg := strategyconfig.Default()
	cfg.Rotation.TopSectors = 3
	cfg.Rotation.StocksPerSector = 1

	ranker := &stubRanker{scores: []contracts.SectorScore{
		{Sector: "Nifty IT", Momentum: 0.30, TrendConfirmed: true},
	}}
	eng := NewEngine(ranker, cfg, logger.NewNop())

	snap := testSnapshot(map[string]string{"INFY": "Nifty IT"})
	weights, sel, err := eng.BuildCore(context.Background(), snap, testScores(map[string]float64{"INFY": 0.9}), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sel.Selected) != 1 {
		t.Fatalf("expected the single ranked sector, got %d", len(sel.Selected))
	}
	if math.Abs(sel.SectorWeight-0.60) > 1e-9 {
		t.Errorf("expected the whole core allocation on one sector, got %f", sel.SectorWeight)
	}
	if math.Abs(weights["INFY"]-0.60) > 1e-9 {
		t.Errorf("expected INFY at 0.60, got %f", weights["INFY"])
	}
}

func TestBuildCoreSectorWithoutScoresStaysCash(t *testing.T) {
	cfg := strategyconfig.Default()
	cfg.Rotation.TopSectors = 2
	cfg.Rotation.StocksPerSector = 1

	ranker := &stubRanker{scores: []contracts.SectorScore{
		{Sector: "Nifty IT", Momentum: 0.30, TrendConfirmed: true},
		{Sector: "Nifty Media", Momentum: 0.20, TrendConfirmed: true},
	}}
	eng := NewEngine(ranker, cfg, logger.NewNop())

	snap := testSnapshot(map[string]string{"INFY": "Nifty IT", "ZEEL": "Nifty Media"})
	// ZEEL never made it into the score table.
	weights, sel, err := eng.BuildCore(context.Background(), snap, testScores(map[string]float64{"INFY": 0.9}), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sel.SectorStocks["Nifty Media"]) != 0 {
		t.Errorf("expected no picks for the unscored sector, got %v", sel.SectorStocks["Nifty Media"])
	}
	if math.Abs(weights.TotalWeight()-0.30) > 1e-9 {
		t.Errorf("expected only the scored sector allocated, got %f", weights.TotalWeight())
	}
}

func TestBuildCorePropagatesRankerError(t *testing.T) {
	wantErr := errors.New("ranking failed")
	eng := NewEngine(&stubRanker{err: wantErr}, strategyconfig.Default(), logger.NewNop())

	_, _, err := eng.BuildCore(context.Background(), testSnapshot(nil), contracts.ScoreTable{}, nil)
	if !errors.Is(err, wantErr) {
		t.Errorf("expected ranker error to propagate, got %v", err)
	}
}

func TestSelectSectorStocksTieBreak(t *testing.T) {
	cfg := strategyconfig.Default()
	cfg.Rotation.StocksPerSector = 2
	eng := NewEngine(&stubRanker{}, cfg, logger.NewNop())

	scores := testScores(map[string]float64{"BBB": 0.8, "AAA": 0.8, "CCC": 0.8})
	got := eng.SelectSectorStocks("Nifty IT", []string{"CCC", "BBB", "AAA", "GHOST"}, scores)
	want := []string{"AAA", "BBB"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected lexicographic tie break %v, got %v", want, got)
	}
}
