package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/swagat2001/systematic-sector-rotation/internal/audit"
	"github.com/swagat2001/systematic-sector-rotation/internal/backtest"
	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/internal/report"
	"github.com/swagat2001/systematic-sector-rotation/internal/store"
	"github.com/swagat2001/systematic-sector-rotation/internal/strategyconfig"
	"github.com/swagat2001/systematic-sector-rotation/pkg/database"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Walk-forward backtesting",
	Long: `Simulates the strategy over the CSV price archive.

Every monthly rebalance re-ranks sectors and re-scores the universe
using only data up to that date, executes the target weights through
the paper trader, and records a portfolio snapshot. The result feeds
the performance analyzer and the report generator.

Example:
  go run ./cmd/quant backtest run
  go run ./cmd/quant backtest run --from 2021-01-01 --to 2023-12-31
  go run ./cmd/quant backtest run --capital 5000000 --daily`,
}

var (
	backtestRunCmd = &cobra.Command{
		Use:   "run",
		Short: "Run a backtest",
		Long: `Runs the walk-forward simulation over the archive.

Flags:
  --from      start date (YYYY-MM-DD, default: first date with enough history)
  --to        end date (YYYY-MM-DD, default: last archive date)
  --capital   initial capital in rupees (default: strategy config)
  --daily     mark-to-market the portfolio between rebalances
  --data-dir  CSV archive directory (default: DATA_DIR)
  --source    price source: csv or db (default: csv)
  --output    report directory (default: REPORT_DIR)

Example:
  go run ./cmd/quant backtest run --from 2021-01-01 --to 2023-12-31
  go run ./cmd/quant backtest run --daily --output reports/fy24
  go run ./cmd/quant backtest run --source db`,
		RunE: runBacktest,
	}

	// Flags
	backtestFrom    string
	backtestTo      string
	backtestCapital float64
	backtestDaily   bool
	backtestDataDir string
	backtestSource  string
	backtestOutput  string
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd)

	// Flags
	backtestRunCmd.Flags().StringVar(&backtestFrom, "from", "", "start date (YYYY-MM-DD)")
	backtestRunCmd.Flags().StringVar(&backtestTo, "to", "", "end date (YYYY-MM-DD)")
	backtestRunCmd.Flags().Float64Var(&backtestCapital, "capital", 0, "initial capital in rupees (0 = strategy config)")
	backtestRunCmd.Flags().BoolVar(&backtestDaily, "daily", false, "daily mark-to-market between rebalances")
	backtestRunCmd.Flags().StringVar(&backtestDataDir, "data-dir", "", "CSV archive directory override")
	backtestRunCmd.Flags().StringVar(&backtestSource, "source", "csv", "price source (csv, db)")
	backtestRunCmd.Flags().StringVar(&backtestOutput, "output", "", "report directory override")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Sector Rotation Backtest ===")

	// Parse dates
	var startDate, endDate time.Time
	var err error
	if backtestFrom != "" {
		startDate, err = time.Parse("2006-01-02", backtestFrom)
		if err != nil {
			return fmt.Errorf("invalid start date: %w", err)
		}
	}
	if backtestTo != "" {
		endDate, err = time.Parse("2006-01-02", backtestTo)
		if err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}
	}

	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if backtestDataDir != "" {
		cfg.DataDir = backtestDataDir
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Load strategy parameters
	strategy, _, err := strategyconfig.LoadOrDefault(cfg.StrategyFile)
	if err != nil {
		return fmt.Errorf("load strategy: %w", err)
	}

	capital := backtestCapital
	if capital <= 0 {
		capital = strategy.Backtest.InitialCapital
	}

	fmt.Printf("\n🎯 Strategy: %s (core %.0f%% / satellite %.0f%%)\n",
		strategy.Meta.StrategyID,
		strategy.Allocation.CorePct*100,
		strategy.Allocation.SatellitePct*100)
	fmt.Printf("💰 Initial Capital: %s\n", formatINR(capital))
	fmt.Printf("💸 Costs: %.2f%% fee + %.2f%% slippage + %.2f%% impact per side\n",
		strategy.Costs.TransactionCostPct*100,
		strategy.Costs.SlippagePct*100,
		strategy.Costs.MarketImpact*100)

	// 4. Load the price archive
	var st *store.Store
	switch backtestSource {
	case "csv":
		fmt.Printf("\n📂 Loading archive from %s ...\n", cfg.DataDir)
		st, err = store.NewCSVLoader(cfg.DataDir, strategy.Meta.Benchmark, log).Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("load archive: %w", err)
		}
	case "db":
		if !cfg.HasDatabase() {
			return fmt.Errorf("--source db requires DATABASE_URL")
		}
		fmt.Println("\n📂 Loading archive from Postgres ...")
		db, err := database.New(cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		st, err = store.NewPostgresRepository(db.Pool, log).LoadStore(cmd.Context(), strategy.Meta.Benchmark)
		if err != nil {
			return fmt.Errorf("load archive from Postgres (run 'data import' first): %w", err)
		}
	default:
		return fmt.Errorf("unknown source %q (csv, db)", backtestSource)
	}

	cov := st.Coverage()
	fmt.Printf("📊 Archive: %d stocks across %d sectors, %s ~ %s\n",
		cov.Stocks, cov.Sectors,
		cov.FirstDate.Format("2006-01-02"), cov.LastDate.Format("2006-01-02"))
	if !cov.Benchmark {
		fmt.Println("⚠️  No benchmark series: beta, alpha and comparison are skipped")
	}

	// 5. Wire the strategy stack and the engine
	composer, _ := buildComposer(strategy, log)
	engine := backtest.NewEngine(st, composer, strategy, log)

	fmt.Println("\n🚀 Starting backtest...")
	fmt.Println()

	// 6. Run
	result, err := engine.Run(cmd.Context(), backtest.Config{
		StartDate:      startDate,
		EndDate:        endDate,
		InitialCapital: capital,
		DailyValuation: backtestDaily,
	})
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("backtest failed: %s", result.Error)
	}

	// 7. Analyze
	analyzer := audit.NewAnalyzer(strategy.Backtest.RiskFreeRate, log)
	metrics, err := analyzer.Analyze(result)
	if err != nil {
		return fmt.Errorf("analyze result: %w", err)
	}

	printBacktestResult(result, metrics)

	// 8. Render tables and report files
	gen := report.NewGenerator(log)
	monthly := analyzer.MonthlyReturns(result.EquityCurve)
	if table := gen.MonthlyTable(monthly); table != "" {
		fmt.Println(table)
	}
	attrs, err := analyzer.AttributeSectors(result, audit.SectorIndex(result))
	if err == nil {
		if table := gen.SectorTable(attrs); table != "" {
			fmt.Println(table)
		}
	}

	outputDir := backtestOutput
	if outputDir == "" {
		outputDir = cfg.ReportDir
	}
	files, err := gen.WriteFiles(outputDir, result, metrics, monthly)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Println("📄 Report files:")
	for _, f := range files {
		fmt.Printf("   %s\n", f)
	}

	// 9. Persist the run when Postgres is configured
	if cfg.HasDatabase() {
		db, err := database.New(cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		repo := backtest.NewRepository(db.Pool, log)
		if err := repo.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("migrate run store: %w", err)
		}
		if err := repo.SaveResult(cmd.Context(), result); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		fmt.Printf("\n💾 Run %s saved to Postgres\n", result.RunID)
	}

	return nil
}

func printBacktestResult(result *contracts.BacktestResult, m *audit.Metrics) {
	fmt.Println("\n✅ Backtest Completed")
	fmt.Println("=" + strings.Repeat("=", 60))
	fmt.Println()

	// Summary
	fmt.Println("📊 Summary")
	fmt.Printf("Run ID: %s\n", result.RunID)
	fmt.Printf("Period: %s ~ %s (%d trading days, %.2f years)\n",
		m.Period.Start.Format("2006-01-02"),
		m.Period.End.Format("2006-01-02"),
		m.Period.Days, m.Period.Years)
	fmt.Printf("Rebalances: %d\n", result.NumRebalances)
	fmt.Printf("Duration: %.2f seconds\n", result.Duration.Seconds())
	fmt.Println()

	// Performance
	fmt.Println("💰 Performance")
	fmt.Printf("Initial Capital: %s\n", formatINR(result.InitialCapital))
	fmt.Printf("Final Value:     %s\n", formatINR(result.FinalValue))
	fmt.Printf("P&L:             %s (%+.2f%%)\n",
		formatINR(result.FinalValue-result.InitialCapital),
		m.Returns.TotalReturn*100)
	fmt.Println()

	fmt.Printf("CAGR:            %+.2f%%\n", m.Returns.CAGR*100)
	fmt.Printf("Volatility:      %.2f%%\n", m.Risk.Volatility*100)
	fmt.Printf("Best Day:        %+.2f%%\n", m.Returns.BestDay*100)
	fmt.Printf("Worst Day:       %+.2f%%\n", m.Returns.WorstDay*100)
	fmt.Println()

	// Risk Metrics
	fmt.Println("📉 Risk Metrics")
	fmt.Printf("Sharpe Ratio:    %.2f", m.Risk.Sharpe)
	if m.Risk.Sharpe > 2.0 {
		fmt.Print(" 🌟 (Excellent)")
	} else if m.Risk.Sharpe > 1.0 {
		fmt.Print(" ✅ (Good)")
	} else if m.Risk.Sharpe > 0.5 {
		fmt.Print(" ⚠️  (Fair)")
	} else {
		fmt.Print(" ❌ (Poor)")
	}
	fmt.Println()

	fmt.Printf("Sortino Ratio:   %.2f\n", m.Risk.Sortino)
	fmt.Printf("Calmar Ratio:    %.2f\n", m.Risk.Calmar)
	fmt.Printf("Max Drawdown:    %.2f%%", m.Drawdown.MaxDrawdown*100)
	if m.Drawdown.MaxDrawdown > -0.10 {
		fmt.Print(" 🌟 (Excellent)")
	} else if m.Drawdown.MaxDrawdown > -0.20 {
		fmt.Print(" ✅ (Good)")
	} else if m.Drawdown.MaxDrawdown > -0.30 {
		fmt.Print(" ⚠️  (Fair)")
	} else {
		fmt.Print(" ❌ (Deep)")
	}
	fmt.Println()
	if bc := m.Benchmark; bc != nil {
		fmt.Printf("Beta:            %.2f\n", m.Risk.Beta)
		fmt.Printf("Alpha (ann.):    %+.2f%%\n", m.Risk.Alpha*100)
	}
	fmt.Println()

	// Trading Metrics
	fmt.Println("💹 Trading Metrics")
	fmt.Printf("Total Trades:     %d (%.1f per rebalance)\n", m.Trades.Trades, m.Trades.AvgPerRebalance)
	fmt.Printf("Transaction Costs: %s\n", formatINR(m.Trades.TotalCosts))
	fmt.Printf("Positive Days:    %d (%.1f%%)\n", m.Returns.PositiveDays, m.Returns.PositiveShare*100)
	if bc := m.Benchmark; bc != nil {
		fmt.Printf("vs Benchmark:     %+.2f pp (win rate %.1f%%)\n",
			bc.Outperformance*100, bc.DailyWinRate*100)
	}
	fmt.Println()

	// Equity Curve (last 10 points)
	fmt.Println("📈 Equity Curve (last 10 points)")
	startIdx := len(result.EquityCurve) - 10
	if startIdx < 0 {
		startIdx = 0
	}
	for _, point := range result.EquityCurve[startIdx:] {
		fmt.Printf("%s: %s (%+.2f%%)\n",
			point.Date.Format("2006-01-02"),
			formatINR(point.Value),
			point.Return*100)
	}
	fmt.Println()

	// Recommendation
	fmt.Println("💡 Recommendation")
	if m.Risk.Sharpe > 1.5 && m.Drawdown.MaxDrawdown > -0.15 {
		fmt.Println("✅ Strong strategy - good risk-adjusted returns")
	} else if m.Risk.Sharpe > 1.0 && m.Drawdown.MaxDrawdown > -0.25 {
		fmt.Println("⚠️  Acceptable strategy - consider tuning the filters")
	} else {
		fmt.Println("❌ Weak strategy - revisit rotation and scoring parameters")
	}
	fmt.Println()
}
