// Package audit analyzes completed backtest runs: return, risk and
// drawdown metrics, benchmark comparison, monthly return tables, sector
// attribution, and the portfolio risk report. All metrics are fractions
// (0.12 = 12%); formatting belongs to the presentation layer.
package audit

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

// tradingDaysPerYear annualizes daily statistics.
const tradingDaysPerYear = 252

// drawdownThreshold is how far under the running peak the curve must be
// to count as "in drawdown" for duration statistics.
const drawdownThreshold = 0.01

// Analyzer computes performance metrics from a backtest result. The
// risk-free rate is annual; the daily equivalent is derived by
// compounding.
type Analyzer struct {
	riskFree float64
	dailyRF  float64
	log      *logger.Logger
}

// NewAnalyzer creates an analyzer with the given annual risk-free rate.
func NewAnalyzer(annualRiskFree float64, log *logger.Logger) *Analyzer {
	return &Analyzer{
		riskFree: annualRiskFree,
		dailyRF:  math.Pow(1+annualRiskFree, 1.0/tradingDaysPerYear) - 1,
		log:      log,
	}
}

// Metrics is the full performance analysis of one run.
type Metrics struct {
	RunID     string               `json:"run_id"`
	Period    Period               `json:"period"`
	Returns   ReturnMetrics        `json:"returns"`
	Risk      RiskMetrics          `json:"risk"`
	Drawdown  DrawdownMetrics      `json:"drawdown"`
	Trades    TradeStats           `json:"trades"`
	Benchmark *BenchmarkComparison `json:"benchmark,omitempty"`
}

// Period describes the analyzed window.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Days  int       `json:"trading_days"`
	Years float64   `json:"years"`
}

// ReturnMetrics are the return-side statistics.
type ReturnMetrics struct {
	TotalReturn   float64 `json:"total_return"`
	CAGR          float64 `json:"cagr"`
	DailyMean     float64 `json:"daily_mean"`
	MonthlyMean   float64 `json:"monthly_mean"` // daily mean scaled to 21 days
	AnnualMean    float64 `json:"annual_mean"`  // daily mean scaled to 252 days
	BestDay       float64 `json:"best_day"`
	WorstDay      float64 `json:"worst_day"`
	PositiveDays  int     `json:"positive_days"`
	NegativeDays  int     `json:"negative_days"`
	PositiveShare float64 `json:"positive_share"`
}

// RiskMetrics are the volatility-side statistics. The benchmark-relative
// fields are zero when no benchmark was loaded.
type RiskMetrics struct {
	Volatility        float64 `json:"volatility"`
	Sharpe            float64 `json:"sharpe"`
	Sortino           float64 `json:"sortino"`
	Calmar            float64 `json:"calmar"`
	DownsideDeviation float64 `json:"downside_deviation"`
	Beta              float64 `json:"beta,omitempty"`
	Alpha             float64 `json:"alpha,omitempty"`
	InformationRatio  float64 `json:"information_ratio,omitempty"`
	TrackingError     float64 `json:"tracking_error,omitempty"`
}

// DrawdownPoint is one day of the drawdown series (negative or zero).
type DrawdownPoint struct {
	Date     time.Time `json:"date"`
	Drawdown float64   `json:"drawdown"`
}

// DrawdownMetrics summarize the underwater profile of the equity curve.
// Durations are calendar days.
type DrawdownMetrics struct {
	MaxDrawdown     float64         `json:"max_drawdown"` // negative
	MaxDrawdownDate time.Time       `json:"max_drawdown_date"`
	AvgDrawdown     float64         `json:"avg_drawdown"` // mean of underwater days, negative
	LongestDays     int             `json:"longest_days"`
	AvgDurationDays float64         `json:"avg_duration_days"`
	Series          []DrawdownPoint `json:"series,omitempty"`
}

// TradeStats aggregate the execution log.
type TradeStats struct {
	Rebalances      int     `json:"total_rebalances"`
	Trades          int     `json:"total_trades"`
	AvgPerRebalance float64 `json:"avg_trades_per_rebalance"`
	TotalCosts      float64 `json:"total_costs"`
	Frequency       string  `json:"rebalancing_frequency"`
}

// BenchmarkComparison pits the strategy against the benchmark over their
// common dates.
type BenchmarkComparison struct {
	StrategyReturn  float64 `json:"strategy_return"`
	BenchmarkReturn float64 `json:"benchmark_return"`
	Outperformance  float64 `json:"outperformance"`
	DailyWinRate    float64 `json:"daily_win_rate"` // share of days strategy beat benchmark
	Correlation     float64 `json:"correlation"`
}

type datedReturn struct {
	date  time.Time
	value float64
}

// Analyze computes the full metric set for a successful run. The
// benchmark comparison and the benchmark-relative risk fields are filled
// only when the result carries a benchmark curve.
func (a *Analyzer) Analyze(result *contracts.BacktestResult) (*Metrics, error) {
	if result == nil || !result.Success {
		return nil, errors.New("cannot analyze a failed backtest")
	}
	curve := result.EquityCurve
	if len(curve) < 2 {
		return nil, fmt.Errorf("equity curve too short: %d points", len(curve))
	}

	strategy := curveReturns(curve)
	bench := curveReturns(result.Benchmark)

	m := &Metrics{
		RunID: result.RunID,
		Period: Period{
			Start: result.StartDate,
			End:   result.EndDate,
			Days:  len(curve),
			Years: float64(len(curve)) / tradingDaysPerYear,
		},
		Returns:  a.returnMetrics(result, strategy),
		Drawdown: a.drawdownMetrics(curve),
		Trades:   a.tradeStats(result),
	}
	m.Risk = a.riskMetrics(strategy, bench, m.Drawdown.MaxDrawdown)
	if len(bench) > 0 {
		m.Benchmark = a.compareBenchmark(strategy, bench)
	}

	a.log.WithFields(map[string]interface{}{
		"run_id":       result.RunID,
		"total_return": fmt.Sprintf("%.2f%%", m.Returns.TotalReturn*100),
		"cagr":         fmt.Sprintf("%.2f%%", m.Returns.CAGR*100),
		"sharpe":       fmt.Sprintf("%.2f", m.Risk.Sharpe),
		"max_drawdown": fmt.Sprintf("%.2f%%", m.Drawdown.MaxDrawdown*100),
	}).Info("Performance analysis completed")

	return m, nil
}

// curveReturns converts an equity curve into day-over-day returns keyed
// by the later date. Non-positive values are skipped defensively.
func curveReturns(curve []contracts.EquityPoint) []datedReturn {
	if len(curve) < 2 {
		return nil
	}
	out := make([]datedReturn, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Value
		if prev <= 0 {
			continue
		}
		out = append(out, datedReturn{date: curve[i].Date, value: curve[i].Value/prev - 1})
	}
	return out
}

func (a *Analyzer) returnMetrics(result *contracts.BacktestResult, returns []datedReturn) ReturnMetrics {
	m := ReturnMetrics{}
	if result.InitialCapital > 0 {
		m.TotalReturn = result.FinalValue/result.InitialCapital - 1
	}

	years := float64(len(result.EquityCurve)) / tradingDaysPerYear
	if years > 0 && result.InitialCapital > 0 && result.FinalValue > 0 {
		m.CAGR = math.Pow(result.FinalValue/result.InitialCapital, 1/years) - 1
	}

	if len(returns) == 0 {
		return m
	}

	best, worst := returns[0].value, returns[0].value
	var sum float64
	for _, r := range returns {
		sum += r.value
		if r.value > best {
			best = r.value
		}
		if r.value < worst {
			worst = r.value
		}
		switch {
		case r.value > 0:
			m.PositiveDays++
		case r.value < 0:
			m.NegativeDays++
		}
	}

	m.DailyMean = sum / float64(len(returns))
	m.MonthlyMean = m.DailyMean * 21
	m.AnnualMean = m.DailyMean * tradingDaysPerYear
	m.BestDay = best
	m.WorstDay = worst
	m.PositiveShare = float64(m.PositiveDays) / float64(len(returns))
	return m
}

func (a *Analyzer) riskMetrics(strategy, bench []datedReturn, maxDrawdown float64) RiskMetrics {
	m := RiskMetrics{}
	returns := values(strategy)
	if len(returns) < 2 {
		return m
	}

	m.Volatility = sampleStd(returns) * math.Sqrt(tradingDaysPerYear)

	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - a.dailyRF
	}
	meanExcess := mean(excess)
	if sd := sampleStd(excess); sd > 0 {
		m.Sharpe = meanExcess / sd * math.Sqrt(tradingDaysPerYear)
	}

	// Downside deviation over days that underperformed the daily
	// risk-free rate.
	var downside []float64
	for _, r := range returns {
		if r < a.dailyRF {
			downside = append(downside, r)
		}
	}
	if sd := sampleStd(downside); sd > 0 {
		m.Sortino = meanExcess / sd * math.Sqrt(tradingDaysPerYear)
		m.DownsideDeviation = sd * math.Sqrt(tradingDaysPerYear)
	}

	if maxDrawdown != 0 {
		m.Calmar = mean(returns) * tradingDaysPerYear / math.Abs(maxDrawdown)
	}

	s, b := alignReturns(strategy, bench)
	if len(s) < 2 {
		return m
	}

	meanS, meanB := mean(s), mean(b)
	var cov, varB float64
	for i := range s {
		cov += (s[i] - meanS) * (b[i] - meanB)
		varB += (b[i] - meanB) * (b[i] - meanB)
	}
	n := float64(len(s) - 1)
	cov /= n
	varB /= n
	if varB > 0 {
		m.Beta = cov / varB

		annualS := meanS * tradingDaysPerYear
		annualB := meanB * tradingDaysPerYear
		m.Alpha = (annualS - a.riskFree) - m.Beta*(annualB-a.riskFree)
	}

	diffs := make([]float64, len(s))
	for i := range s {
		diffs[i] = s[i] - b[i]
	}
	if te := sampleStd(diffs) * math.Sqrt(tradingDaysPerYear); te > 0 {
		m.TrackingError = te
		m.InformationRatio = (mean(s) - mean(b)) * tradingDaysPerYear / te
	}

	return m
}

func (a *Analyzer) drawdownMetrics(curve []contracts.EquityPoint) DrawdownMetrics {
	m := DrawdownMetrics{}
	if len(curve) == 0 {
		return m
	}

	peak := curve[0].Value
	m.MaxDrawdownDate = curve[0].Date
	m.Series = make([]DrawdownPoint, 0, len(curve))

	var underwaterSum float64
	var underwaterDays int
	var periods []int
	var start time.Time
	inDD := false

	for _, p := range curve {
		if p.Value > peak {
			peak = p.Value
		}
		dd := 0.0
		if peak > 0 {
			dd = (p.Value - peak) / peak
		}
		m.Series = append(m.Series, DrawdownPoint{Date: p.Date, Drawdown: dd})

		if dd < m.MaxDrawdown {
			m.MaxDrawdown = dd
			m.MaxDrawdownDate = p.Date
		}
		if dd < 0 {
			underwaterSum += dd
			underwaterDays++
		}

		if dd < -drawdownThreshold {
			if !inDD {
				inDD = true
				start = p.Date
			}
		} else if inDD {
			inDD = false
			periods = append(periods, int(p.Date.Sub(start).Hours()/24))
		}
	}
	if inDD {
		periods = append(periods, int(curve[len(curve)-1].Date.Sub(start).Hours()/24))
	}

	if underwaterDays > 0 {
		m.AvgDrawdown = underwaterSum / float64(underwaterDays)
	}
	if len(periods) > 0 {
		longest, total := 0, 0
		for _, d := range periods {
			total += d
			if d > longest {
				longest = d
			}
		}
		m.LongestDays = longest
		m.AvgDurationDays = float64(total) / float64(len(periods))
	}
	return m
}

func (a *Analyzer) tradeStats(result *contracts.BacktestResult) TradeStats {
	stats := TradeStats{
		Rebalances: result.NumRebalances,
		Frequency:  "Monthly",
	}
	for _, snap := range result.Snapshots {
		stats.Trades += snap.NumTrades
	}
	for _, tx := range result.Transactions {
		stats.TotalCosts += tx.Cost
	}
	if stats.Rebalances > 0 {
		stats.AvgPerRebalance = float64(stats.Trades) / float64(stats.Rebalances)
	}
	return stats
}

func (a *Analyzer) compareBenchmark(strategy, bench []datedReturn) *BenchmarkComparison {
	s, b := alignReturns(strategy, bench)
	if len(s) == 0 {
		return nil
	}

	cumS, cumB := 1.0, 1.0
	wins := 0
	for i := range s {
		cumS *= 1 + s[i]
		cumB *= 1 + b[i]
		if s[i] > b[i] {
			wins++
		}
	}

	return &BenchmarkComparison{
		StrategyReturn:  cumS - 1,
		BenchmarkReturn: cumB - 1,
		Outperformance:  cumS - cumB,
		DailyWinRate:    float64(wins) / float64(len(s)),
		Correlation:     correlation(s, b),
	}
}

// alignReturns pairs the two series on their common dates, preserving
// date order.
func alignReturns(strategy, bench []datedReturn) (s, b []float64) {
	if len(strategy) == 0 || len(bench) == 0 {
		return nil, nil
	}
	byDate := make(map[time.Time]float64, len(bench))
	for _, r := range bench {
		byDate[r.date] = r.value
	}
	for _, r := range strategy {
		if bv, ok := byDate[r.date]; ok {
			s = append(s, r.value)
			b = append(b, bv)
		}
	}
	return s, b
}

func values(returns []datedReturn) []float64 {
	out := make([]float64, len(returns))
	for i, r := range returns {
		out[i] = r.value
	}
	return out
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func sampleStd(vs []float64) float64 {
	if len(vs) < 2 {
		return 0
	}
	m := mean(vs)
	var ss float64
	for _, v := range vs {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vs)-1))
}

func correlation(a, b []float64) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return 0
	}
	ma, mb := mean(a), mean(b)
	var cov, va, vb float64
	for i := range a {
		cov += (a[i] - ma) * (b[i] - mb)
		va += (a[i] - ma) * (a[i] - ma)
		vb += (b[i] - mb) * (b[i] - mb)
	}
	if va == 0 || vb == 0 {
		return 0
	}
	return cov / math.Sqrt(va*vb)
}
