package execution

import (
	"math"
	"testing"
	"time"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/internal/strategyconfig"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

var rebalDate = time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)

// frictionless keeps the materiality threshold but removes slippage,
// impact and costs so share counts and cash come out exact.
func frictionless() *strategyconfig.Config {
	cfg := strategyconfig.Default()
	cfg.Costs = strategyconfig.Costs{MinTradeValue: 100}
	return cfg
}

func newTrader(capital float64, cfg *strategyconfig.Config) *PaperTrader {
	return NewPaperTrader(capital, cfg, logger.NewNop())
}

func TestRebalanceBuysInDeterministicOrder(t *testing.T) {
	tr := newTrader(1_000_000, frictionless())

	targets := contracts.TargetWeights{"BBB": 0.3, "AAA": 0.3, "CCC": 0.2}
	prices := map[string]float64{"AAA": 100, "BBB": 100, "CCC": 100}

	report := tr.Rebalance(targets, prices, rebalDate)

	if len(report.Failed) != 0 || len(report.Skipped) != 0 {
		t.Fatalf("unexpected failures %d or skips %d", len(report.Failed), len(report.Skipped))
	}
	if got := len(report.Executed); got != 3 {
		t.Fatalf("executed = %d, want 3", got)
	}

	wantOrder := []string{"AAA", "BBB", "CCC"}
	wantQty := []float64{3000, 3000, 2000}
	for i, tx := range report.Executed {
		if tx.Symbol != wantOrder[i] {
			t.Errorf("execution %d symbol = %s, want %s", i, tx.Symbol, wantOrder[i])
		}
		if tx.Action != contracts.OrderSideBuy {
			t.Errorf("execution %d action = %s, want BUY", i, tx.Action)
		}
		if math.Abs(tx.Quantity-wantQty[i]) > 1e-9 {
			t.Errorf("execution %d quantity = %f, want %f", i, tx.Quantity, wantQty[i])
		}
	}

	if got := tr.Cash(); math.Abs(got-200_000) > 1e-6 {
		t.Errorf("cash = %f, want 200000", got)
	}
	if got := len(tr.Transactions()); got != 3 {
		t.Errorf("history length = %d, want 3", got)
	}
}

func TestRebalanceSellsExitsFirst(t *testing.T) {
	tr := newTrader(1_000_000, frictionless())

	tr.Rebalance(contracts.TargetWeights{"AAA": 0.5}, map[string]float64{"AAA": 100}, rebalDate)
	if got := tr.Cash(); math.Abs(got-500_000) > 1e-6 {
		t.Fatalf("cash after first rebalance = %f, want 500000", got)
	}

	prices := map[string]float64{"AAA": 100, "BBB": 50}
	report := tr.Rebalance(contracts.TargetWeights{"BBB": 0.5}, prices, rebalDate.AddDate(0, 1, 0))

	if got := len(report.Executed); got != 2 {
		t.Fatalf("executed = %d, want 2", got)
	}
	first, second := report.Executed[0], report.Executed[1]
	if first.Symbol != "AAA" || first.Action != contracts.OrderSideSell {
		t.Errorf("first execution = %s %s, want SELL AAA", first.Action, first.Symbol)
	}
	if second.Symbol != "BBB" || second.Action != contracts.OrderSideBuy {
		t.Errorf("second execution = %s %s, want BUY BBB", second.Action, second.Symbol)
	}
	if math.Abs(second.Quantity-10_000) > 1e-9 {
		t.Errorf("BBB quantity = %f, want 10000", second.Quantity)
	}

	holdings := tr.Holdings()
	if len(holdings) != 1 || holdings[0] != "BBB" {
		t.Errorf("holdings = %v, want [BBB]", holdings)
	}
	if got := tr.Cash(); math.Abs(got-500_000) > 1e-6 {
		t.Errorf("cash = %f, want 500000", got)
	}
}

func TestExecutionPriceModel(t *testing.T) {
	cfg := strategyconfig.Default()
	cfg.Costs = strategyconfig.Costs{
		TransactionCostPct: 0.001,
		SlippagePct:        0.0005,
		MarketImpact:       0.0002,
		MinTradeValue:      100,
	}
	tr := newTrader(1_000_000, cfg)

	buyReport := tr.Rebalance(contracts.TargetWeights{"INFY": 0.4}, map[string]float64{"INFY": 1500}, rebalDate)
	if len(buyReport.Executed) != 1 {
		t.Fatalf("buy executed = %d, want 1", len(buyReport.Executed))
	}
	buy := buyReport.Executed[0]

	// 400k/1500 shares, slippage up 5bp, impact up by 0.0002*qty/1000.
	if math.Abs(buy.Quantity-400_000.0/1500.0) > 1e-9 {
		t.Errorf("buy quantity = %f, want %f", buy.Quantity, 400_000.0/1500.0)
	}
	if buy.Price <= 1500 {
		t.Errorf("buy price = %f, want above quote 1500", buy.Price)
	}
	if math.Abs(buy.Price-1500.83004) > 1e-4 {
		t.Errorf("buy price = %f, want 1500.83004", buy.Price)
	}
	if math.Abs(buy.Cost-buy.GrossValue*0.001) > 1e-9 {
		t.Errorf("buy cost = %f, want gross*0.001 = %f", buy.Cost, buy.GrossValue*0.001)
	}
	if math.Abs(buy.TotalCost-(buy.GrossValue+buy.Cost)) > 1e-9 {
		t.Errorf("buy total = %f, want gross+cost", buy.TotalCost)
	}

	sellReport := tr.Rebalance(contracts.TargetWeights{}, map[string]float64{"INFY": 1500}, rebalDate.AddDate(0, 1, 0))
	if len(sellReport.Executed) != 1 {
		t.Fatalf("sell executed = %d, want 1", len(sellReport.Executed))
	}
	sell := sellReport.Executed[0]

	if sell.Action != contracts.OrderSideSell {
		t.Fatalf("sell action = %s, want SELL", sell.Action)
	}
	if sell.Price >= 1500 {
		t.Errorf("sell price = %f, want below quote 1500", sell.Price)
	}
	if math.Abs(sell.Price-1499.17004) > 1e-4 {
		t.Errorf("sell price = %f, want 1499.17004", sell.Price)
	}
	if math.Abs(sell.TotalCost-(sell.GrossValue-sell.Cost)) > 1e-9 {
		t.Errorf("sell total = %f, want gross-cost", sell.TotalCost)
	}

	wantCash := 1_000_000 - buy.TotalCost + sell.TotalCost
	if got := tr.Cash(); math.Abs(got-wantCash) > 1e-6 {
		t.Errorf("cash = %f, want %f", got, wantCash)
	}
	if got := tr.TotalCosts(); math.Abs(got-(buy.Cost+sell.Cost)) > 1e-9 {
		t.Errorf("total costs = %f, want %f", got, buy.Cost+sell.Cost)
	}
	if got := len(tr.Holdings()); got != 0 {
		t.Errorf("holdings after exit = %d, want 0", got)
	}
}

func TestRebalanceSkipsImmaterialDelta(t *testing.T) {
	tr := newTrader(1_000_000, frictionless())

	targets := contracts.TargetWeights{"AAA": 0.5}
	prices := map[string]float64{"AAA": 100}

	tr.Rebalance(targets, prices, rebalDate)
	report := tr.Rebalance(targets, prices, rebalDate.AddDate(0, 1, 0))

	if got := len(report.Executed); got != 0 {
		t.Errorf("executed = %d, want 0", got)
	}
	if len(report.Skipped) != 1 || report.Skipped[0] != "AAA" {
		t.Errorf("skipped = %v, want [AAA]", report.Skipped)
	}
	if got := len(tr.Transactions()); got != 1 {
		t.Errorf("history length = %d, want 1", got)
	}
	if got := tr.Cash(); math.Abs(got-500_000) > 1e-6 {
		t.Errorf("cash = %f, want 500000", got)
	}
}

func TestRebalanceRejectsUnfundableBuy(t *testing.T) {
	cfg := strategyconfig.Default()
	cfg.Costs = strategyconfig.Costs{TransactionCostPct: 0.1}
	tr := newTrader(1000, cfg)

	targets := contracts.TargetWeights{"AAA": 0.9995, "BBB": 0.0005}
	prices := map[string]float64{"AAA": 100, "BBB": 10}

	report := tr.Rebalance(targets, prices, rebalDate)

	if got := len(report.Failed); got != 1 {
		t.Fatalf("failed = %d, want 1", got)
	}
	failed := report.Failed[0]
	if failed.Symbol != "AAA" {
		t.Errorf("failed symbol = %s, want AAA", failed.Symbol)
	}
	if failed.Reason != "insufficient cash" {
		t.Errorf("failed reason = %q, want insufficient cash", failed.Reason)
	}
	if failed.Status != contracts.OrderStatusFailed {
		t.Errorf("failed status = %s, want FAILED", failed.Status)
	}
	if failed.Side != contracts.OrderSideBuy {
		t.Errorf("failed side = %s, want BUY", failed.Side)
	}
	if failed.ID == "" {
		t.Error("failed order has empty ID")
	}

	if got := len(report.Executed); got != 1 {
		t.Fatalf("executed = %d, want 1", got)
	}
	if report.Executed[0].Symbol != "BBB" {
		t.Errorf("executed symbol = %s, want BBB", report.Executed[0].Symbol)
	}

	// BBB: 0.05 shares at 10, gross 0.5, cost 0.05.
	if got := tr.Cash(); math.Abs(got-999.45) > 1e-9 {
		t.Errorf("cash = %f, want 999.45", got)
	}
	holdings := tr.Holdings()
	if len(holdings) != 1 || holdings[0] != "BBB" {
		t.Errorf("holdings = %v, want [BBB]", holdings)
	}
}

func TestRebalanceContinuesAfterRejection(t *testing.T) {
	cfg := frictionless()
	cfg.Costs.MinTradeValue = 0
	tr := newTrader(1000, cfg)

	tr.Rebalance(contracts.TargetWeights{"AAA": 1.0}, map[string]float64{"AAA": 100}, rebalDate)
	if got := tr.Cash(); math.Abs(got) > 1e-9 {
		t.Fatalf("cash after full allocation = %f, want 0", got)
	}

	// BBB is sized first (larger weight) and cannot be funded from zero
	// cash; trimming AAA afterwards must still go through.
	targets := contracts.TargetWeights{"AAA": 0.4, "BBB": 0.6}
	report := tr.Rebalance(targets, map[string]float64{"AAA": 100, "BBB": 100}, rebalDate.AddDate(0, 1, 0))

	if len(report.Failed) != 1 || report.Failed[0].Symbol != "BBB" {
		t.Fatalf("failed = %v, want BBB rejection", report.Failed)
	}
	if len(report.Executed) != 1 {
		t.Fatalf("executed = %d, want 1", len(report.Executed))
	}
	trim := report.Executed[0]
	if trim.Symbol != "AAA" || trim.Action != contracts.OrderSideSell {
		t.Errorf("execution = %s %s, want SELL AAA", trim.Action, trim.Symbol)
	}
	if math.Abs(trim.Quantity-6) > 1e-9 {
		t.Errorf("trim quantity = %f, want 6", trim.Quantity)
	}

	if got := tr.Cash(); math.Abs(got-600) > 1e-9 {
		t.Errorf("cash = %f, want 600", got)
	}
	snap := tr.Snapshot()
	if pos, ok := snap.Positions["AAA"]; !ok || math.Abs(pos.Quantity-4) > 1e-9 {
		t.Errorf("AAA position = %+v, want 4 shares", pos)
	}
	if _, ok := snap.Positions["BBB"]; ok {
		t.Error("BBB position exists after rejected buy")
	}
}

func TestExitKeepsUnpricedPosition(t *testing.T) {
	tr := newTrader(1_000_000, frictionless())

	tr.Rebalance(
		contracts.TargetWeights{"AAA": 0.4, "BBB": 0.4},
		map[string]float64{"AAA": 100, "BBB": 100},
		rebalDate,
	)

	// BBB has no quote this period: it cannot be exited, and it is valued
	// at its last known price when sizing CCC.
	prices := map[string]float64{"AAA": 100, "CCC": 100}
	report := tr.Rebalance(contracts.TargetWeights{"CCC": 0.5}, prices, rebalDate.AddDate(0, 1, 0))

	if got := len(report.Executed); got != 2 {
		t.Fatalf("executed = %d, want 2", got)
	}
	holdings := tr.Holdings()
	want := []string{"BBB", "CCC"}
	if len(holdings) != 2 || holdings[0] != want[0] || holdings[1] != want[1] {
		t.Errorf("holdings = %v, want %v", holdings, want)
	}
	if math.Abs(report.Executed[1].Quantity-5000) > 1e-9 {
		t.Errorf("CCC quantity = %f, want 5000", report.Executed[1].Quantity)
	}
	if got := tr.Cash(); math.Abs(got-100_000) > 1e-6 {
		t.Errorf("cash = %f, want 100000", got)
	}
}

func TestDustPositionRemoved(t *testing.T) {
	cfg := frictionless()
	cfg.Costs.MinTradeValue = 0
	tr := newTrader(1000, cfg)

	report := tr.Rebalance(contracts.TargetWeights{"AAA": 0.001}, map[string]float64{"AAA": 1_000_000}, rebalDate)

	if got := len(report.Executed); got != 1 {
		t.Fatalf("executed = %d, want 1", got)
	}
	if got := len(tr.Holdings()); got != 0 {
		t.Errorf("holdings = %d, want 0 after dust cleanup", got)
	}
	if got := tr.Cash(); math.Abs(got-999) > 1e-9 {
		t.Errorf("cash = %f, want 999", got)
	}
}

func TestTransactionsCopyIsIndependent(t *testing.T) {
	tr := newTrader(1_000_000, frictionless())
	tr.Rebalance(contracts.TargetWeights{"AAA": 0.5}, map[string]float64{"AAA": 100}, rebalDate)

	first := tr.Transactions()
	first[0].Symbol = "MUTATED"

	again := tr.Transactions()
	if again[0].Symbol != "AAA" {
		t.Errorf("history symbol = %s, want AAA after external mutation", again[0].Symbol)
	}
}

func TestResetRestoresInitialState(t *testing.T) {
	tr := newTrader(1_000_000, frictionless())
	tr.Rebalance(contracts.TargetWeights{"AAA": 0.5}, map[string]float64{"AAA": 100}, rebalDate)

	tr.Reset()

	if got := tr.Cash(); got != 1_000_000 {
		t.Errorf("cash = %f, want 1000000", got)
	}
	if got := len(tr.Holdings()); got != 0 {
		t.Errorf("holdings = %d, want 0", got)
	}
	if got := len(tr.Transactions()); got != 0 {
		t.Errorf("history = %d, want 0", got)
	}
	if got := tr.TotalCosts(); got != 0 {
		t.Errorf("total costs = %f, want 0", got)
	}
}
