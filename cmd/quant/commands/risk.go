package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/swagat2001/systematic-sector-rotation/internal/audit"
	"github.com/swagat2001/systematic-sector-rotation/internal/backtest"
	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/internal/risk"
	"github.com/swagat2001/systematic-sector-rotation/pkg/config"
	"github.com/swagat2001/systematic-sector-rotation/pkg/database"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Risk analysis over backtest runs",
	Long: `Risk analysis over the daily returns of a backtest run.

Subcommands:
  montecarlo  - simulate the next holding period's return distribution
  report      - full risk report: VaR/CVaR, simulation, limit checks

Both read the latest stored run by default; --run picks a specific run
and --file reads a result.json instead of the database.

Example:
  go run ./cmd/quant risk report
  go run ./cmd/quant risk montecarlo --simulations 50000 --seed 42
  go run ./cmd/quant risk report --file reports/result.json`,
}

var (
	riskMonteCarloCmd = &cobra.Command{
		Use:   "montecarlo",
		Short: "Monte Carlo simulation of the next holding period",
		Long: `Simulates the distribution of the next holding period's return from
the run's observed daily returns.

Methods:
- bootstrap: resample observed daily returns with replacement (default)
- normal: draw from a normal fit of the observed returns

Output:
- VaR (Value at Risk): largest loss at the stated confidence
- CVaR (Expected Shortfall): mean loss beyond VaR
- outcome percentiles

Example:
  go run ./cmd/quant risk montecarlo
  go run ./cmd/quant risk montecarlo --simulations 50000 --holding 5
  go run ./cmd/quant risk montecarlo --method normal --seed 42
  go run ./cmd/quant risk montecarlo --format json`,
		RunE: runRiskMonteCarlo,
	}

	riskReportCmd = &cobra.Command{
		Use:   "report",
		Short: "Full risk report for a run",
		Long: `Builds the full risk view of a run: historical VaR/CVaR over its
daily returns, a Monte Carlo simulation of the next rebalance interval,
and the check against default risk limits.

Example:
  go run ./cmd/quant risk report
  go run ./cmd/quant risk report --run 7f3a... --format json`,
		RunE: runRiskReport,
	}

	// Shared flags
	riskRunID string
	riskFile  string

	// montecarlo flags
	mcSimulations int
	mcHolding     int
	mcMethod      string
	mcSeed        int64
	mcFormat      string

	// report flags
	riskFormat string
)

func init() {
	rootCmd.AddCommand(riskCmd)
	riskCmd.AddCommand(riskMonteCarloCmd)
	riskCmd.AddCommand(riskReportCmd)

	riskCmd.PersistentFlags().StringVar(&riskRunID, "run", "", "run ID (default: latest)")
	riskCmd.PersistentFlags().StringVar(&riskFile, "file", "", "result.json to analyze instead of a stored run")

	// montecarlo flags
	riskMonteCarloCmd.Flags().IntVar(&mcSimulations, "simulations", 10000, "number of simulated paths")
	riskMonteCarloCmd.Flags().IntVar(&mcHolding, "holding", 21, "holding period in trading days")
	riskMonteCarloCmd.Flags().StringVar(&mcMethod, "method", "bootstrap", "simulation method (bootstrap, normal)")
	riskMonteCarloCmd.Flags().Int64Var(&mcSeed, "seed", 0, "rng seed for reproducibility (0 = random)")
	riskMonteCarloCmd.Flags().StringVar(&mcFormat, "format", "text", "output format (text, json)")

	// report flags
	riskReportCmd.Flags().StringVar(&riskFormat, "format", "text", "output format (text, json)")
}

func runRiskMonteCarlo(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Monte Carlo Simulation ===")

	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	method := risk.MonteCarloMethod(mcMethod)
	if method != risk.MethodBootstrap && method != risk.MethodNormal {
		return fmt.Errorf("unknown method %q (bootstrap, normal)", mcMethod)
	}

	mcConfig := risk.DefaultMonteCarloConfig()
	mcConfig.NumSimulations = mcSimulations
	mcConfig.HoldingPeriod = mcHolding
	mcConfig.Method = method
	mcConfig.Seed = mcSeed

	fmt.Printf("\n📊 Configuration:\n")
	fmt.Printf("  Simulations: %d\n", mcConfig.NumSimulations)
	fmt.Printf("  Holding Period: %d days\n", mcConfig.HoldingPeriod)
	fmt.Printf("  Method: %s\n", mcConfig.Method)
	if mcConfig.Seed != 0 {
		fmt.Printf("  Seed: %d\n", mcConfig.Seed)
	}
	fmt.Println()

	result, cleanup, err := loadRiskRun(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Printf("📅 Run %s: %s to %s\n\n",
		result.RunID,
		result.StartDate.Format("2006-01-02"),
		result.EndDate.Format("2006-01-02"))

	fmt.Println("🎲 Running Monte Carlo simulation...")
	reporter := audit.NewRiskReporter(risk.NewEngine(), log)
	rep, err := reporter.GenerateReport(ctx, result, &mcConfig)
	if err != nil {
		return fmt.Errorf("risk analysis failed: %w", err)
	}
	if rep.MonteCarlo == nil {
		return fmt.Errorf("simulation skipped: need at least %d daily returns, run has %d",
			mcConfig.MinSamples, rep.Portfolio.SampleCount)
	}

	if mcFormat == "json" {
		data, err := json.MarshalIndent(rep.MonteCarlo, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printMonteCarloResult(rep.MonteCarlo)
	return nil
}

func printMonteCarloResult(result *risk.MonteCarloResult) {
	fmt.Println("\n=== Monte Carlo Results ===")
	fmt.Printf("Run ID: %s\n", result.RunID)
	fmt.Printf("Run Date: %s\n", result.RunDate.Format("2006-01-02 15:04:05"))
	fmt.Printf("Input Samples: %d\n\n", result.InputSampleCount)

	fmt.Println("📊 Distribution")
	fmt.Printf("  Mean Return: %+.4f (%+.2f%%)\n", result.MeanReturn, result.MeanReturn*100)
	fmt.Printf("  Std Dev: %.4f (%.2f%%)\n", result.StdDev, result.StdDev*100)

	fmt.Println("\n📉 Risk Metrics (Loss as Positive)")
	fmt.Printf("  VaR 95%%: %.4f (%.2f%%)\n", result.VaR95, result.VaR95*100)
	fmt.Printf("  VaR 99%%: %.4f (%.2f%%)\n", result.VaR99, result.VaR99*100)
	fmt.Printf("  CVaR 95%%: %.4f (%.2f%%)\n", result.CVaR95, result.CVaR95*100)
	fmt.Printf("  CVaR 99%%: %.4f (%.2f%%)\n", result.CVaR99, result.CVaR99*100)

	fmt.Println("\n📊 Percentiles")
	for _, p := range []int{1, 5, 10, 25, 50, 75, 90, 95, 99} {
		if val, ok := result.Percentiles[p]; ok {
			fmt.Printf("  P%d: %+.4f\n", p, val)
		}
	}

	fmt.Println("\n💡 Interpretation")
	horizon := fmt.Sprintf("%d-day", result.Config.HoldingPeriod)
	switch {
	case result.VaR95 < 0.06:
		fmt.Printf("  ✅ Low risk: %s VaR95 under 6%%\n", horizon)
	case result.VaR95 < 0.12:
		fmt.Printf("  ⚠️ Moderate risk: %s VaR95 between 6%% and 12%%\n", horizon)
	default:
		fmt.Printf("  ❌ High risk: %s VaR95 above 12%%\n", horizon)
	}

	if result.Config.Seed != 0 {
		fmt.Printf("\n✅ Simulation completed (seed: %d)\n", result.Config.Seed)
	} else {
		fmt.Println("\n✅ Simulation completed")
	}
}

func runRiskReport(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Portfolio Risk Report ===")

	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	result, cleanup, err := loadRiskRun(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	reporter := audit.NewRiskReporter(risk.NewEngine(), log)
	mcConfig := risk.DefaultMonteCarloConfig()
	rep, err := reporter.GenerateReport(ctx, result, &mcConfig)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	if riskFormat == "json" {
		data, err := rep.ToJSON()
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Println(rep.ToSummary())
	return nil
}

// loadRiskRun resolves the run to analyze: a result file when --file is
// set, otherwise the requested (or latest) stored run. The returned
// cleanup closes the database connection when one was opened.
func loadRiskRun(ctx context.Context, cfg *config.Config, log *logger.Logger) (*contracts.BacktestResult, func(), error) {
	if riskFile != "" {
		result, err := loadResultFile(riskFile)
		if err != nil {
			return nil, nil, err
		}
		return result, func() {}, nil
	}

	if !cfg.HasDatabase() {
		return nil, nil, fmt.Errorf("DATABASE_URL is required for risk analysis over stored runs (or use --file)")
	}
	db, err := database.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	repo := backtest.NewRepository(db.Pool, log)
	var result *contracts.BacktestResult
	if riskRunID != "" {
		result, err = repo.GetResult(ctx, riskRunID)
	} else {
		result, err = repo.LatestResult(ctx)
	}
	switch {
	case errors.Is(err, backtest.ErrRunNotFound):
		db.Close()
		return nil, nil, fmt.Errorf("no stored run found (run a backtest first)")
	case err != nil:
		db.Close()
		return nil, nil, fmt.Errorf("load run: %w", err)
	}
	return result, db.Close, nil
}
