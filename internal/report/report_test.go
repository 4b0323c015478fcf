package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/swagat2001/systematic-sector-rotation/internal/audit"
	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

// fixtureResult builds a two-month run with a benchmark, both drifting
// upward with a mid-series dip so the drawdown chart has shape.
func fixtureResult(t *testing.T) *contracts.BacktestResult {
	t.Helper()

	start := time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC)
	var days []time.Time
	for d := start; len(days) < 45; d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days = append(days, d)
		}
	}

	curve := make([]contracts.EquityPoint, len(days))
	bench := make([]contracts.EquityPoint, len(days))
	value, benchValue := 1_000_000.0, 1_000_000.0
	for i, d := range days {
		if i > 0 {
			r := 0.004
			if i%7 == 3 {
				r = -0.015
			}
			value *= 1 + r
			benchValue *= 1.001
		}
		curve[i] = contracts.EquityPoint{Date: d, Value: value}
		bench[i] = contracts.EquityPoint{Date: d, Value: benchValue}
	}

	return &contracts.BacktestResult{
		RunID:          "report-test",
		Success:        true,
		StartDate:      days[0],
		EndDate:        days[len(days)-1],
		InitialCapital: 1_000_000,
		FinalValue:     curve[len(curve)-1].Value,
		NumRebalances:  2,
		EquityCurve:    curve,
		Benchmark:      bench,
		Snapshots: []contracts.RebalanceSnapshot{
			{Date: days[0], NumTrades: 10},
			{Date: days[21], NumTrades: 6},
		},
	}
}

func fixtureMetrics(t *testing.T) (*contracts.BacktestResult, *audit.Metrics, []audit.MonthlyRow) {
	t.Helper()
	result := fixtureResult(t)
	a := audit.NewAnalyzer(0.065, logger.NewNop())
	m, err := a.Analyze(result)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	return result, m, a.MonthlyReturns(result.EquityCurve)
}

func TestTextReportSections(t *testing.T) {
	_, m, _ := fixtureMetrics(t)
	g := NewGenerator(logger.NewNop())

	text := g.Text(m)
	for _, want := range []string{
		"PERFORMANCE ANALYSIS",
		"ANALYSIS PERIOD",
		"RETURN METRICS",
		"RISK METRICS",
		"DRAWDOWN METRICS",
		"TRADING STATISTICS",
		"BENCHMARK COMPARISON",
		"Total Return:",
		"Sharpe Ratio:",
		"Monthly",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestTextReportOmitsBenchmarkSectionWithoutBenchmark(t *testing.T) {
	result := fixtureResult(t)
	result.Benchmark = nil
	a := audit.NewAnalyzer(0.065, logger.NewNop())
	m, err := a.Analyze(result)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	text := NewGenerator(logger.NewNop()).Text(m)
	if strings.Contains(text, "BENCHMARK COMPARISON") {
		t.Error("benchmark section should be absent without a benchmark")
	}
	if strings.Contains(text, "Beta:") {
		t.Error("beta row should be absent without a benchmark")
	}
}

func TestMonthlyTable(t *testing.T) {
	_, _, rows := fixtureMetrics(t)
	g := NewGenerator(logger.NewNop())

	table := g.MonthlyTable(rows)
	for _, want := range []string{"MONTHLY RETURNS", "2023", "2024", "Dec", "Jan"} {
		if !strings.Contains(table, want) {
			t.Errorf("table missing %q:\n%s", want, table)
		}
	}
	// Months before December 2023 have no data.
	if !strings.Contains(table, "-") {
		t.Error("expected dash placeholders for missing months")
	}

	if got := g.MonthlyTable(nil); got != "" {
		t.Errorf("empty rows should render empty table, got %q", got)
	}
}

func TestSectorTable(t *testing.T) {
	g := NewGenerator(logger.NewNop())
	attrs := []audit.SectorAttribution{
		{Sector: "Nifty IT", PnL: 52000, Contribution: 0.052, AvgWeight: 0.31, TradeCount: 14},
		{Sector: "Nifty Pharma", PnL: -8000, Contribution: -0.008, AvgWeight: 0.12, TradeCount: 6},
	}

	table := g.SectorTable(attrs)
	for _, want := range []string{"SECTOR ATTRIBUTION", "Nifty IT", "Nifty Pharma", "Trades"} {
		if !strings.Contains(table, want) {
			t.Errorf("table missing %q:\n%s", want, table)
		}
	}
}

func TestEquityChartRendersPNG(t *testing.T) {
	result, _, _ := fixtureMetrics(t)
	g := NewGenerator(logger.NewNop())

	img, err := g.EquityChart(result)
	if err != nil {
		t.Fatalf("EquityChart: %v", err)
	}
	if !bytes.HasPrefix(img, pngMagic) {
		t.Error("equity chart is not a PNG")
	}
}

func TestDrawdownChartRendersPNG(t *testing.T) {
	_, m, _ := fixtureMetrics(t)
	g := NewGenerator(logger.NewNop())

	img, err := g.DrawdownChart(m)
	if err != nil {
		t.Fatalf("DrawdownChart: %v", err)
	}
	if !bytes.HasPrefix(img, pngMagic) {
		t.Error("drawdown chart is not a PNG")
	}
}

func TestChartInputValidation(t *testing.T) {
	g := NewGenerator(logger.NewNop())

	if _, err := g.EquityChart(&contracts.BacktestResult{}); err == nil {
		t.Error("expected error for empty curve")
	}
	if _, err := g.DrawdownChart(&audit.Metrics{}); err == nil {
		t.Error("expected error for empty drawdown series")
	}
}

func TestWriteFiles(t *testing.T) {
	result, m, rows := fixtureMetrics(t)
	g := NewGenerator(logger.NewNop())
	dir := filepath.Join(t.TempDir(), "out")

	written, err := g.WriteFiles(dir, result, m, rows)
	if err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	if len(written) != 4 {
		t.Fatalf("written = %d files, want 4", len(written))
	}
	for _, path := range written {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("missing %s: %v", path, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", path)
		}
	}

	// The result JSON round-trips into an equivalent result.
	doc, err := os.ReadFile(filepath.Join(dir, "result.json"))
	if err != nil {
		t.Fatalf("read result.json: %v", err)
	}
	var restored contracts.BacktestResult
	if err := json.Unmarshal(doc, &restored); err != nil {
		t.Fatalf("unmarshal result.json: %v", err)
	}
	if restored.RunID != result.RunID {
		t.Errorf("restored RunID = %q, want %q", restored.RunID, result.RunID)
	}
	if len(restored.EquityCurve) != len(result.EquityCurve) {
		t.Errorf("restored curve has %d points, want %d",
			len(restored.EquityCurve), len(result.EquityCurve))
	}
}
