package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/internal/risk"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

// RiskReporter builds the portfolio risk view of a completed run:
// historical VaR/CVaR, an optional Monte Carlo simulation of the next
// holding period, and the limit check against default risk limits.
// Data assembly happens here; all calculation lives in internal/risk.
type RiskReporter struct {
	engine *risk.Engine
	limits risk.RiskLimits
	log    *logger.Logger
}

// NewRiskReporter creates a reporter checking against the default limits.
func NewRiskReporter(engine *risk.Engine, log *logger.Logger) *RiskReporter {
	return &RiskReporter{
		engine: engine,
		limits: risk.DefaultRiskLimits(),
		log:    log,
	}
}

// RiskReport is the full risk view of one run.
type RiskReport struct {
	ReportDate time.Time              `json:"report_date"`
	RunID      string                 `json:"run_id"`
	Portfolio  *PortfolioRiskSummary  `json:"portfolio"`
	MonteCarlo *risk.MonteCarloResult `json:"monte_carlo,omitempty"`
	Limits     *risk.LimitCheck       `json:"limits,omitempty"`
}

// PortfolioRiskSummary holds the realized risk statistics of the run's
// daily returns. VaR and CVaR are loss-positive fractions.
type PortfolioRiskSummary struct {
	SampleCount int     `json:"sample_count"`
	VaR95       float64 `json:"var_95"`
	VaR99       float64 `json:"var_99"`
	CVaR95      float64 `json:"cvar_95"`
	CVaR99      float64 `json:"cvar_99"`
	MeanReturn  float64 `json:"mean_return"`
	StdDev      float64 `json:"std_dev"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// GenerateReport builds the risk report from the run's equity curve. A
// nil mcConfig skips the Monte Carlo section; a simulation that fails
// for lack of data degrades to a warning rather than failing the report.
func (r *RiskReporter) GenerateReport(ctx context.Context, result *contracts.BacktestResult, mcConfig *risk.MonteCarloConfig) (*RiskReport, error) {
	if result == nil || !result.Success {
		return nil, errors.New("cannot build a risk report for a failed backtest")
	}
	returns := values(curveReturns(result.EquityCurve))
	if len(returns) == 0 {
		return nil, errors.New("equity curve has no returns")
	}

	report := &RiskReport{
		ReportDate: time.Now(),
		RunID:      result.RunID,
	}

	var95 := r.engine.VaR(returns, 0.95)
	var99 := r.engine.VaR(returns, 0.99)
	report.Portfolio = &PortfolioRiskSummary{
		SampleCount: len(returns),
		VaR95:       var95.VaR,
		VaR99:       var99.VaR,
		CVaR95:      var95.CVaR,
		CVaR99:      var99.CVaR,
		MeanReturn:  risk.Mean(returns),
		StdDev:      risk.StdDev(returns),
		MaxDrawdown: risk.MaxDrawdown(returns),
	}

	if mcConfig != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mc, err := r.engine.MonteCarlo(returns, *mcConfig)
		if err != nil {
			r.log.WithError(err).Warn("Monte Carlo simulation skipped")
		} else {
			mc.RunID = result.RunID
			report.MonteCarlo = mc
		}
	}

	report.Limits = r.engine.CheckLimits(returns, r.limits)

	r.log.WithFields(map[string]interface{}{
		"run_id":        result.RunID,
		"sample_count":  len(returns),
		"var_95":        fmt.Sprintf("%.4f", report.Portfolio.VaR95),
		"limits_passed": report.Limits.Passed,
	}).Info("Risk report generated")

	return report, nil
}

// ToJSON renders the report as indented JSON.
func (report *RiskReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(report, "", "  ")
}

// ToSummary renders the report as a human-readable block for the CLI.
func (report *RiskReport) ToSummary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== Risk Report (%s) ===\n", report.ReportDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "Run ID: %s\n\n", report.RunID)

	if p := report.Portfolio; p != nil {
		b.WriteString("📊 Portfolio Risk\n")
		fmt.Fprintf(&b, "  Samples: %d\n", p.SampleCount)
		fmt.Fprintf(&b, "  VaR 95%%: %.2f%%\n", p.VaR95*100)
		fmt.Fprintf(&b, "  VaR 99%%: %.2f%%\n", p.VaR99*100)
		fmt.Fprintf(&b, "  CVaR 95%%: %.2f%%\n", p.CVaR95*100)
		fmt.Fprintf(&b, "  CVaR 99%%: %.2f%%\n", p.CVaR99*100)
		fmt.Fprintf(&b, "  Max Drawdown: %.2f%%\n\n", p.MaxDrawdown*100)
	}

	if mc := report.MonteCarlo; mc != nil {
		b.WriteString("🎲 Monte Carlo Simulation\n")
		fmt.Fprintf(&b, "  Simulations: %d\n", mc.Config.NumSimulations)
		fmt.Fprintf(&b, "  Holding Period: %d days\n", mc.Config.HoldingPeriod)
		fmt.Fprintf(&b, "  Mean Return: %.2f%%\n", mc.MeanReturn*100)
		fmt.Fprintf(&b, "  Std Dev: %.2f%%\n", mc.StdDev*100)
		fmt.Fprintf(&b, "  MC VaR 95%%: %.2f%%\n", mc.VaR95*100)
		fmt.Fprintf(&b, "  MC CVaR 95%%: %.2f%%\n\n", mc.CVaR95*100)
	}

	if lc := report.Limits; lc != nil {
		if lc.Passed {
			b.WriteString("✅ Risk limits: all within bounds\n")
		} else {
			b.WriteString("⚠️ Risk limit violations\n")
			for _, v := range lc.Violations {
				fmt.Fprintf(&b, "  - %s\n", v)
			}
		}
	}

	return b.String()
}
