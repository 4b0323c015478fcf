// Package report renders completed analyses for humans: the sectioned
// text report, the monthly return table, and PNG charts.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/swagat2001/systematic-sector-rotation/internal/audit"
	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

const lineWidth = 60

// Generator renders reports from analyzer output.
type Generator struct {
	log *logger.Logger
}

// NewGenerator creates a report generator.
func NewGenerator(log *logger.Logger) *Generator {
	return &Generator{log: log}
}

// Text renders the sectioned performance report.
func (g *Generator) Text(m *audit.Metrics) string {
	var b strings.Builder
	heavy := strings.Repeat("=", lineWidth)

	fmt.Fprintf(&b, "%s\n", heavy)
	fmt.Fprintf(&b, " PERFORMANCE ANALYSIS\n")
	fmt.Fprintf(&b, "%s\n\n", heavy)

	section(&b, "ANALYSIS PERIOD")
	row(&b, "Start Date:", m.Period.Start.Format("2006-01-02"))
	row(&b, "End Date:", m.Period.End.Format("2006-01-02"))
	row(&b, "Trading Days:", fmt.Sprintf("%d", m.Period.Days))
	row(&b, "Years:", fmt.Sprintf("%.2f", m.Period.Years))
	b.WriteByte('\n')

	section(&b, "RETURN METRICS")
	row(&b, "Total Return:", pct(m.Returns.TotalReturn))
	row(&b, "CAGR:", pct(m.Returns.CAGR))
	row(&b, "Best Day:", pct(m.Returns.BestDay))
	row(&b, "Worst Day:", pct(m.Returns.WorstDay))
	row(&b, "Positive Days:", fmt.Sprintf("%d (%s)", m.Returns.PositiveDays, pct(m.Returns.PositiveShare)))
	b.WriteByte('\n')

	section(&b, "RISK METRICS")
	row(&b, "Volatility (ann.):", pct(m.Risk.Volatility))
	row(&b, "Sharpe Ratio:", fmt.Sprintf("%.2f", m.Risk.Sharpe))
	row(&b, "Sortino Ratio:", fmt.Sprintf("%.2f", m.Risk.Sortino))
	row(&b, "Calmar Ratio:", fmt.Sprintf("%.2f", m.Risk.Calmar))
	if m.Benchmark != nil {
		row(&b, "Beta:", fmt.Sprintf("%.2f", m.Risk.Beta))
		row(&b, "Alpha (ann.):", pct(m.Risk.Alpha))
		row(&b, "Information Ratio:", fmt.Sprintf("%.2f", m.Risk.InformationRatio))
		row(&b, "Tracking Error:", pct(m.Risk.TrackingError))
	}
	b.WriteByte('\n')

	section(&b, "DRAWDOWN METRICS")
	row(&b, "Max Drawdown:", fmt.Sprintf("%s (%s)", pct(m.Drawdown.MaxDrawdown), m.Drawdown.MaxDrawdownDate.Format("2006-01-02")))
	row(&b, "Avg Drawdown:", pct(m.Drawdown.AvgDrawdown))
	row(&b, "Longest Drawdown:", fmt.Sprintf("%d days", m.Drawdown.LongestDays))
	row(&b, "Avg Duration:", fmt.Sprintf("%.1f days", m.Drawdown.AvgDurationDays))
	b.WriteByte('\n')

	section(&b, "TRADING STATISTICS")
	row(&b, "Rebalances:", fmt.Sprintf("%d", m.Trades.Rebalances))
	row(&b, "Total Trades:", fmt.Sprintf("%d", m.Trades.Trades))
	row(&b, "Avg per Rebalance:", fmt.Sprintf("%.1f", m.Trades.AvgPerRebalance))
	row(&b, "Transaction Costs:", fmt.Sprintf("₹%.2f", m.Trades.TotalCosts))
	row(&b, "Frequency:", m.Trades.Frequency)

	if bc := m.Benchmark; bc != nil {
		b.WriteByte('\n')
		section(&b, "BENCHMARK COMPARISON")
		row(&b, "Strategy Return:", pct(bc.StrategyReturn))
		row(&b, "Benchmark Return:", pct(bc.BenchmarkReturn))
		row(&b, "Outperformance:", fmt.Sprintf("%.2f pp", bc.Outperformance*100))
		row(&b, "Daily Win Rate:", pct(bc.DailyWinRate))
		row(&b, "Correlation:", fmt.Sprintf("%.2f", bc.Correlation))
	}

	fmt.Fprintf(&b, "%s\n", heavy)
	return b.String()
}

// MonthlyTable renders the year-by-month return grid in percent.
func (g *Generator) MonthlyTable(rows []audit.MonthlyRow) string {
	if len(rows) == 0 {
		return ""
	}

	var b strings.Builder
	section(&b, "MONTHLY RETURNS (%)")
	b.WriteString("Year ")
	for _, name := range []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"} {
		fmt.Fprintf(&b, "%7s", name)
	}
	fmt.Fprintf(&b, "%9s\n", "Year")

	for _, r := range rows {
		fmt.Fprintf(&b, "%d ", r.Year)
		for _, m := range r.Months {
			if m == nil {
				fmt.Fprintf(&b, "%7s", "-")
			} else {
				fmt.Fprintf(&b, "%7.2f", *m*100)
			}
		}
		fmt.Fprintf(&b, "%9.2f\n", r.YearTotal*100)
	}
	return b.String()
}

// SectorTable renders the attribution rows.
func (g *Generator) SectorTable(attrs []audit.SectorAttribution) string {
	if len(attrs) == 0 {
		return ""
	}

	var b strings.Builder
	section(&b, "SECTOR ATTRIBUTION")
	fmt.Fprintf(&b, "%-20s %12s %14s %12s %8s\n", "Sector", "P&L", "Contribution", "Avg Weight", "Trades")
	for _, a := range attrs {
		fmt.Fprintf(&b, "%-20s %12.2f %13.2f%% %11.2f%% %8d\n",
			a.Sector, a.PnL, a.Contribution*100, a.AvgWeight*100, a.TradeCount)
	}
	return b.String()
}

// WriteFiles writes the text report, the raw result JSON, and charts
// into dir, creating it if needed, and returns the written paths. The
// result JSON is self-contained: `report generate --file` can rebuild
// the full analysis from it without a database.
func (g *Generator) WriteFiles(dir string, result *contracts.BacktestResult, m *audit.Metrics, rows []audit.MonthlyRow) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	var written []string
	text := g.Text(m)
	if table := g.MonthlyTable(rows); table != "" {
		text += "\n" + table
	}
	txtPath := filepath.Join(dir, "report.txt")
	if err := os.WriteFile(txtPath, []byte(text), 0o644); err != nil {
		return nil, fmt.Errorf("write text report: %w", err)
	}
	written = append(written, txtPath)

	doc, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return written, fmt.Errorf("marshal result: %w", err)
	}
	jsonPath := filepath.Join(dir, "result.json")
	if err := os.WriteFile(jsonPath, doc, 0o644); err != nil {
		return written, fmt.Errorf("write result json: %w", err)
	}
	written = append(written, jsonPath)

	equity, err := g.EquityChart(result)
	if err != nil {
		return written, fmt.Errorf("render equity chart: %w", err)
	}
	equityPath := filepath.Join(dir, "equity.png")
	if err := os.WriteFile(equityPath, equity, 0o644); err != nil {
		return written, fmt.Errorf("write equity chart: %w", err)
	}
	written = append(written, equityPath)

	drawdown, err := g.DrawdownChart(m)
	if err != nil {
		return written, fmt.Errorf("render drawdown chart: %w", err)
	}
	ddPath := filepath.Join(dir, "drawdown.png")
	if err := os.WriteFile(ddPath, drawdown, 0o644); err != nil {
		return written, fmt.Errorf("write drawdown chart: %w", err)
	}
	written = append(written, ddPath)

	g.log.WithFields(map[string]interface{}{
		"dir":   dir,
		"files": len(written),
	}).Info("Report files written")
	return written, nil
}

func section(b *strings.Builder, title string) {
	fmt.Fprintf(b, "%s\n%s\n", title, strings.Repeat("-", lineWidth))
}

func row(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "  %-22s%s\n", label, value)
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}
