package audit

import (
	"math"
	"testing"
	"time"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// weekdays returns n consecutive Mon-Fri dates starting at or after start.
func weekdays(start time.Time, n int) []time.Time {
	days := make([]time.Time, 0, n)
	d := start
	for len(days) < n {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days = append(days, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return days
}

// curveOf places the given values on consecutive weekdays.
func curveOf(start time.Time, values []float64) []contracts.EquityPoint {
	days := weekdays(start, len(values))
	curve := make([]contracts.EquityPoint, len(values))
	for i, v := range values {
		curve[i] = contracts.EquityPoint{Date: days[i], Value: v, Return: v/values[0] - 1}
	}
	return curve
}

// compound grows start through the given returns, yielding len(returns)+1
// values.
func compound(start float64, returns []float64) []float64 {
	values := make([]float64, len(returns)+1)
	values[0] = start
	for i, r := range returns {
		values[i+1] = values[i] * (1 + r)
	}
	return values
}

// repeat cycles the pattern until n returns are produced.
func repeat(pattern []float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = pattern[i%len(pattern)]
	}
	return out
}

func successfulResult(capital float64, curve []contracts.EquityPoint) *contracts.BacktestResult {
	return &contracts.BacktestResult{
		RunID:          "run-under-test",
		Success:        true,
		StartDate:      curve[0].Date,
		EndDate:        curve[len(curve)-1].Date,
		InitialCapital: capital,
		FinalValue:     curve[len(curve)-1].Value,
		EquityCurve:    curve,
	}
}

func almost(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s = %v, want %v (tol %v)", name, got, want, tol)
	}
}

func TestAnalyzeTotalReturnAndCAGR(t *testing.T) {
	// Exactly two 252-day years of constant growth ending 21% up.
	const points = 504
	g := math.Pow(1.21, 1.0/float64(points-1)) - 1
	values := compound(1_000_000, repeat([]float64{g}, points-1))
	result := successfulResult(1_000_000, curveOf(date(2022, time.January, 3), values))

	a := NewAnalyzer(0.065, logger.NewNop())
	m, err := a.Analyze(result)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	almost(t, "Period.Years", m.Period.Years, 2.0, 1e-12)
	if m.Period.Days != points {
		t.Errorf("Period.Days = %d, want %d", m.Period.Days, points)
	}
	almost(t, "TotalReturn", m.Returns.TotalReturn, 0.21, 1e-9)
	almost(t, "CAGR", m.Returns.CAGR, 0.10, 1e-9)
	if m.RunID != result.RunID {
		t.Errorf("RunID = %q, want %q", m.RunID, result.RunID)
	}
	if m.Benchmark != nil {
		t.Error("expected no benchmark comparison without a benchmark curve")
	}
}

func TestAnalyzeReturnAndRiskStatistics(t *testing.T) {
	// Four returns alternating +2% and flat. With a zero risk-free rate
	// the Sharpe inputs are hand-checkable: mean 1%, sample std
	// 1%*sqrt(4/3).
	values := compound(100, repeat([]float64{0.02, 0}, 4))
	result := successfulResult(100, curveOf(date(2024, time.January, 1), values))

	a := NewAnalyzer(0, logger.NewNop())
	m, err := a.Analyze(result)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	mean := 0.01
	sd := 0.01 * math.Sqrt(4.0/3.0)
	annual := math.Sqrt(tradingDaysPerYear)

	almost(t, "DailyMean", m.Returns.DailyMean, mean, 1e-12)
	almost(t, "MonthlyMean", m.Returns.MonthlyMean, mean*21, 1e-12)
	almost(t, "AnnualMean", m.Returns.AnnualMean, mean*252, 1e-9)
	almost(t, "BestDay", m.Returns.BestDay, 0.02, 1e-12)
	almost(t, "WorstDay", m.Returns.WorstDay, 0, 1e-12)
	if m.Returns.PositiveDays != 2 || m.Returns.NegativeDays != 0 {
		t.Errorf("day counts = +%d/-%d, want +2/-0",
			m.Returns.PositiveDays, m.Returns.NegativeDays)
	}
	almost(t, "PositiveShare", m.Returns.PositiveShare, 0.5, 1e-12)

	almost(t, "Volatility", m.Risk.Volatility, sd*annual, 1e-9)
	almost(t, "Sharpe", m.Risk.Sharpe, mean/sd*annual, 1e-9)
	// No day fell below the zero risk-free rate, so there is no
	// downside sample.
	almost(t, "Sortino", m.Risk.Sortino, 0, 1e-12)
	almost(t, "DownsideDeviation", m.Risk.DownsideDeviation, 0, 1e-12)
}

func TestAnalyzeDrawdown(t *testing.T) {
	// Peak 110, trough 99 (-10%), partial recovery (-5%), full recovery.
	values := []float64{100, 110, 99, 104.5, 110, 121}
	curve := curveOf(date(2024, time.January, 1), values)
	result := successfulResult(100, curve)

	a := NewAnalyzer(0.065, logger.NewNop())
	m, err := a.Analyze(result)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	dd := m.Drawdown
	almost(t, "MaxDrawdown", dd.MaxDrawdown, -0.10, 1e-9)
	if !dd.MaxDrawdownDate.Equal(curve[2].Date) {
		t.Errorf("MaxDrawdownDate = %s, want %s",
			dd.MaxDrawdownDate.Format("2006-01-02"), curve[2].Date.Format("2006-01-02"))
	}
	almost(t, "AvgDrawdown", dd.AvgDrawdown, -0.075, 1e-9)
	// Underwater 2024-01-03 through recovery on 2024-01-05.
	if dd.LongestDays != 2 {
		t.Errorf("LongestDays = %d, want 2", dd.LongestDays)
	}
	almost(t, "AvgDurationDays", dd.AvgDurationDays, 2.0, 1e-12)
	if len(dd.Series) != len(values) {
		t.Errorf("Series length = %d, want %d", len(dd.Series), len(values))
	}
	almost(t, "Series[3]", dd.Series[3].Drawdown, -0.05, 1e-9)

	// Calmar uses the annualized mean over the max drawdown magnitude.
	wantCalmar := m.Returns.DailyMean * tradingDaysPerYear / 0.10
	almost(t, "Calmar", m.Risk.Calmar, wantCalmar, 1e-6)
}

func TestAnalyzeDrawdownStillOpenAtEnd(t *testing.T) {
	values := []float64{100, 110, 99, 98}
	curve := curveOf(date(2024, time.January, 1), values)
	result := successfulResult(100, curve)

	a := NewAnalyzer(0.065, logger.NewNop())
	m, err := a.Analyze(result)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	// The open drawdown closes at the last date: Jan 3 to Jan 4.
	if m.Drawdown.LongestDays != 1 {
		t.Errorf("LongestDays = %d, want 1", m.Drawdown.LongestDays)
	}
	almost(t, "MaxDrawdown", m.Drawdown.MaxDrawdown, 98.0/110.0-1, 1e-9)
}

func TestAnalyzeAgainstIdenticalBenchmark(t *testing.T) {
	// Benchmark is the strategy curve scaled by 2, so daily returns are
	// bit-identical: beta 1, perfect correlation, no tracking error.
	values := compound(100, repeat([]float64{0.02, 0}, 4))
	curve := curveOf(date(2024, time.January, 1), values)
	bench := make([]contracts.EquityPoint, len(curve))
	for i, p := range curve {
		bench[i] = contracts.EquityPoint{Date: p.Date, Value: p.Value * 2}
	}
	result := successfulResult(100, curve)
	result.Benchmark = bench

	a := NewAnalyzer(0, logger.NewNop())
	m, err := a.Analyze(result)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	almost(t, "Beta", m.Risk.Beta, 1.0, 1e-9)
	almost(t, "Alpha", m.Risk.Alpha, 0, 1e-9)
	almost(t, "TrackingError", m.Risk.TrackingError, 0, 1e-12)
	almost(t, "InformationRatio", m.Risk.InformationRatio, 0, 1e-12)

	if m.Benchmark == nil {
		t.Fatal("expected benchmark comparison")
	}
	almost(t, "StrategyReturn", m.Benchmark.StrategyReturn, 1.02*1.02-1, 1e-9)
	almost(t, "BenchmarkReturn", m.Benchmark.BenchmarkReturn, 1.02*1.02-1, 1e-9)
	almost(t, "Outperformance", m.Benchmark.Outperformance, 0, 1e-9)
	// Never strictly ahead of itself.
	almost(t, "DailyWinRate", m.Benchmark.DailyWinRate, 0, 1e-12)
	almost(t, "Correlation", m.Benchmark.Correlation, 1.0, 1e-9)
}

func TestAnalyzeAgainstUncorrelatedBenchmark(t *testing.T) {
	// Strategy deviations alternate daily, benchmark deviations flip
	// once mid-series: the dot product cancels exactly, so beta and
	// correlation are zero and alpha is the full annualized mean.
	strategy := compound(100, []float64{0.02, 0, 0.02, 0})
	benchmark := compound(200, []float64{0.01, 0.01, -0.01, -0.01})
	curve := curveOf(date(2024, time.January, 1), strategy)
	result := successfulResult(100, curve)
	result.Benchmark = curveOf(date(2024, time.January, 1), benchmark)

	a := NewAnalyzer(0, logger.NewNop())
	m, err := a.Analyze(result)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	almost(t, "Beta", m.Risk.Beta, 0, 1e-6)
	almost(t, "Alpha", m.Risk.Alpha, 0.01*tradingDaysPerYear, 1e-6)
	almost(t, "Correlation", m.Benchmark.Correlation, 0, 1e-6)

	// diffs {+0.01, -0.01, +0.03, +0.01}: mean 1%, sample var 8e-4/3.
	te := math.Sqrt(8e-4/3.0) * math.Sqrt(tradingDaysPerYear)
	almost(t, "TrackingError", m.Risk.TrackingError, te, 1e-6)
	almost(t, "InformationRatio", m.Risk.InformationRatio, 0.01*tradingDaysPerYear/te, 1e-6)

	// Strategy ahead on days 1, 3 and 4.
	almost(t, "DailyWinRate", m.Benchmark.DailyWinRate, 0.75, 1e-12)
}

func TestAnalyzeTradeStats(t *testing.T) {
	values := compound(100, repeat([]float64{0.01}, 4))
	curve := curveOf(date(2024, time.January, 1), values)
	result := successfulResult(100, curve)
	result.NumRebalances = 2
	result.Snapshots = []contracts.RebalanceSnapshot{
		{Date: curve[0].Date, NumTrades: 3},
		{Date: curve[2].Date, NumTrades: 5},
	}
	result.Transactions = []contracts.Transaction{
		{Symbol: "INFY", Action: contracts.OrderSideBuy, Cost: 12.5},
		{Symbol: "TCS", Action: contracts.OrderSideBuy, Cost: 7.5},
	}

	a := NewAnalyzer(0.065, logger.NewNop())
	m, err := a.Analyze(result)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if m.Trades.Rebalances != 2 || m.Trades.Trades != 8 {
		t.Errorf("trade counts = %d rebalances / %d trades, want 2/8",
			m.Trades.Rebalances, m.Trades.Trades)
	}
	almost(t, "AvgPerRebalance", m.Trades.AvgPerRebalance, 4.0, 1e-12)
	almost(t, "TotalCosts", m.Trades.TotalCosts, 20.0, 1e-12)
	if m.Trades.Frequency != "Monthly" {
		t.Errorf("Frequency = %q, want Monthly", m.Trades.Frequency)
	}
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	a := NewAnalyzer(0.065, logger.NewNop())

	if _, err := a.Analyze(nil); err == nil {
		t.Error("expected error for nil result")
	}
	if _, err := a.Analyze(&contracts.BacktestResult{Success: false}); err == nil {
		t.Error("expected error for failed run")
	}

	short := successfulResult(100, curveOf(date(2024, time.January, 1), []float64{100}))
	if _, err := a.Analyze(short); err == nil {
		t.Error("expected error for one-point curve")
	}
}

func TestMonthlyReturnsAcrossYearBoundary(t *testing.T) {
	// Dec 28-29 2023 then Jan 1-2 2024, +2% each day. The Dec 29 return
	// belongs to December; both January returns compound into January.
	values := compound(100, repeat([]float64{0.02}, 3))
	curve := curveOf(date(2023, time.December, 28), values)

	a := NewAnalyzer(0.065, logger.NewNop())
	rows := a.MonthlyReturns(curve)

	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Year != 2023 || rows[1].Year != 2024 {
		t.Fatalf("years = %d, %d, want 2023, 2024", rows[0].Year, rows[1].Year)
	}

	dec := rows[0].Months[11]
	if dec == nil {
		t.Fatal("December 2023 missing")
	}
	almost(t, "Dec 2023", *dec, 0.02, 1e-9)
	almost(t, "2023 total", rows[0].YearTotal, 0.02, 1e-9)
	for i := 0; i < 11; i++ {
		if rows[0].Months[i] != nil {
			t.Errorf("2023 month %d should be nil", i+1)
		}
	}

	jan := rows[1].Months[0]
	if jan == nil {
		t.Fatal("January 2024 missing")
	}
	almost(t, "Jan 2024", *jan, 1.02*1.02-1, 1e-9)
	almost(t, "2024 total", rows[1].YearTotal, 1.02*1.02-1, 1e-9)
}

func TestMonthlyReturnsEmptyCurve(t *testing.T) {
	a := NewAnalyzer(0.065, logger.NewNop())
	if rows := a.MonthlyReturns(nil); rows != nil {
		t.Errorf("expected nil rows, got %v", rows)
	}
}
