package audit

import (
	"math"
	"testing"
	"time"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

func sectorFixture(sym string) string {
	switch sym {
	case "INFY", "TCS":
		return "Nifty IT"
	case "SUNPHARMA":
		return "Nifty Pharma"
	}
	return ""
}

func TestAttributeSectorsExactDecomposition(t *testing.T) {
	day := date(2024, time.March, 1)
	result := &contracts.BacktestResult{
		RunID:          "attr-test",
		Success:        true,
		InitialCapital: 1000,
		FinalValue:     1080,
		Transactions: []contracts.Transaction{
			{Date: day, Symbol: "INFY", Action: contracts.OrderSideBuy, TotalCost: 400},
			{Date: day, Symbol: "SUNPHARMA", Action: contracts.OrderSideBuy, TotalCost: 300},
			{Date: day, Symbol: "SUNPHARMA", Action: contracts.OrderSideSell, TotalCost: 350},
			{Date: day, Symbol: "XYZ", Action: contracts.OrderSideBuy, TotalCost: 100},
			{Date: day, Symbol: "XYZ", Action: contracts.OrderSideSell, TotalCost: 90},
		},
		FinalState: &contracts.PortfolioState{
			Cash: 640,
			Positions: map[string]*contracts.Position{
				"INFY": {Symbol: "INFY", Quantity: 4, LastPrice: 110},
			},
		},
		Snapshots: []contracts.RebalanceSnapshot{
			{
				Date:           day,
				PortfolioValue: 1000,
				Positions: map[string]contracts.Position{
					"INFY": {Symbol: "INFY", Quantity: 4, LastPrice: 100, Sector: "Nifty IT"},
				},
			},
		},
	}

	a := NewAnalyzer(0.065, logger.NewNop())
	attrs, err := a.AttributeSectors(result, sectorFixture)
	if err != nil {
		t.Fatalf("AttributeSectors: %v", err)
	}

	if len(attrs) != 3 {
		t.Fatalf("sectors = %d, want 3", len(attrs))
	}

	// Sorted by contribution: Pharma +50, IT +40, Unclassified -10.
	wantOrder := []string{"Nifty Pharma", "Nifty IT", unclassifiedSector}
	for i, want := range wantOrder {
		if attrs[i].Sector != want {
			t.Errorf("attrs[%d].Sector = %q, want %q", i, attrs[i].Sector, want)
		}
	}
	almost(t, "Pharma PnL", attrs[0].PnL, 50, 1e-9)
	almost(t, "IT PnL", attrs[1].PnL, 40, 1e-9)
	almost(t, "Unclassified PnL", attrs[2].PnL, -10, 1e-9)
	if attrs[0].TradeCount != 2 || attrs[1].TradeCount != 1 || attrs[2].TradeCount != 2 {
		t.Errorf("trade counts = %d/%d/%d, want 2/1/2",
			attrs[0].TradeCount, attrs[1].TradeCount, attrs[2].TradeCount)
	}

	// Contributions sum exactly to the run's total return.
	var total float64
	for _, sa := range attrs {
		total += sa.Contribution
	}
	wantTotal := result.FinalValue/result.InitialCapital - 1
	if math.Abs(total-wantTotal) > 1e-12 {
		t.Errorf("contributions sum to %v, want %v", total, wantTotal)
	}

	almost(t, "IT AvgWeight", attrs[1].AvgWeight, 0.4, 1e-12)
	almost(t, "Pharma AvgWeight", attrs[0].AvgWeight, 0, 1e-12)
}

func TestAttributeSectorsWithoutClassifier(t *testing.T) {
	result := &contracts.BacktestResult{
		Success:        true,
		InitialCapital: 1000,
		FinalValue:     1010,
		Transactions: []contracts.Transaction{
			{Symbol: "AAA", Action: contracts.OrderSideBuy, TotalCost: 500},
			{Symbol: "AAA", Action: contracts.OrderSideSell, TotalCost: 510},
		},
	}

	a := NewAnalyzer(0.065, logger.NewNop())
	attrs, err := a.AttributeSectors(result, nil)
	if err != nil {
		t.Fatalf("AttributeSectors: %v", err)
	}
	if len(attrs) != 1 || attrs[0].Sector != unclassifiedSector {
		t.Fatalf("attrs = %+v, want single %s bucket", attrs, unclassifiedSector)
	}
	almost(t, "PnL", attrs[0].PnL, 10, 1e-9)
}

func TestAttributeSectorsRejectsFailedRun(t *testing.T) {
	a := NewAnalyzer(0.065, logger.NewNop())
	if _, err := a.AttributeSectors(&contracts.BacktestResult{Success: false}, nil); err == nil {
		t.Error("expected error for failed run")
	}
	bad := &contracts.BacktestResult{Success: true, InitialCapital: 0}
	if _, err := a.AttributeSectors(bad, nil); err == nil {
		t.Error("expected error for zero capital")
	}
}

func TestTopAndBottomContributors(t *testing.T) {
	attrs := []SectorAttribution{
		{Sector: "Nifty Pharma", Contribution: 0.05},
		{Sector: "Nifty IT", Contribution: 0.04},
		{Sector: unclassifiedSector, Contribution: -0.01},
	}

	top := TopContributors(attrs, 2)
	if len(top) != 2 || top[0].Sector != "Nifty Pharma" || top[1].Sector != "Nifty IT" {
		t.Errorf("TopContributors = %+v", top)
	}

	bottom := BottomContributors(attrs, 2)
	if len(bottom) != 2 || bottom[0].Sector != unclassifiedSector || bottom[1].Sector != "Nifty IT" {
		t.Errorf("BottomContributors = %+v", bottom)
	}

	// Asking for more than available clamps.
	if got := TopContributors(attrs, 10); len(got) != 3 {
		t.Errorf("TopContributors(10) length = %d, want 3", len(got))
	}
}
