package commands

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/swagat2001/systematic-sector-rotation/internal/store"
	"github.com/swagat2001/systematic-sector-rotation/internal/strategyconfig"
	"github.com/swagat2001/systematic-sector-rotation/pkg/database"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

// dataCmd groups commands over the price archive
var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Price archive checks and imports",
	Long: `Commands over the price archive the strategy runs on.

Subcommands:
  check   - validate the CSV archive and its coverage
  import  - copy the CSV archive into Postgres

Example:
  go run ./cmd/quant data check
  go run ./cmd/quant data import`,
}

var dataCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the CSV price archive",
	Long: `Checks the CSV price archive the strategy runs on.

Checked:
- sector and stock counts
- the covered date range
- per-sector stock counts
- per-series validation findings (gaps, bad bars)
- whether the data supports the momentum lookbacks

Example:
  go run ./cmd/quant data check`,
	RunE: runDataCheck,
}

var dataImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the CSV archive into Postgres",
	Long: `Copies the CSV price archive into Postgres so backtests can run
against the database ('backtest run --source db').

Requires DATABASE_URL. Existing rows are upserted, so re-importing
after refreshing the CSV archive is safe.

Example:
  go run ./cmd/quant data import`,
	RunE: runDataImport,
}

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataCheckCmd)
	dataCmd.AddCommand(dataImportCmd)
}

func runDataCheck(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Price Archive Check ===")
	fmt.Println()

	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	// 2. Load strategy parameters (for the benchmark name and lookbacks)
	strategy, _, err := strategyconfig.LoadOrDefault(cfg.StrategyFile)
	if err != nil {
		return fmt.Errorf("load strategy: %w", err)
	}

	// 3. Load the archive
	fmt.Printf("📂 Archive: %s\n\n", cfg.DataDir)
	st, err := store.NewCSVLoader(cfg.DataDir, strategy.Meta.Benchmark, log).Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("load archive: %w", err)
	}

	cov := st.Coverage()

	fmt.Println("📋 Universe")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Sectors: %d\n", cov.Sectors)
	fmt.Printf("  Stocks: %d\n", cov.Stocks)
	if cov.Benchmark {
		fmt.Printf("  Benchmark: %s ✅\n", strategy.Meta.Benchmark)
	} else {
		fmt.Printf("  Benchmark: %s ⚠️  missing (beta/alpha disabled)\n", strategy.Meta.Benchmark)
	}
	fmt.Printf("  Period: %s ~ %s\n", cov.FirstDate.Format("2006-01-02"), cov.LastDate.Format("2006-01-02"))
	fmt.Println()

	fmt.Println("🏭 Stocks per Sector")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	sectors := make([]string, 0, len(cov.PerSector))
	for sector := range cov.PerSector {
		sectors = append(sectors, sector)
	}
	sort.Strings(sectors)
	for _, sector := range sectors {
		fmt.Printf("  %-24s %4d\n", sector, cov.PerSector[sector])
	}
	fmt.Println()

	if len(cov.Violations) > 0 {
		fmt.Println("⚠️  Validation Findings")
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		symbols := make([]string, 0, len(cov.Violations))
		for sym := range cov.Violations {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)
		for _, sym := range symbols {
			for _, v := range cov.Violations[sym] {
				fmt.Printf("  %-14s %s\n", sym, v)
			}
		}
		fmt.Println()
	} else {
		fmt.Println("✅ No validation findings")
		fmt.Println()
	}

	// Lookback requirements
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("📈 History Requirements")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	days := len(st.TradingDays())
	fmt.Printf("  Trading days loaded: %d\n", days)

	longest := 0
	for _, lb := range strategy.Rotation.Momentum.LookbackDays {
		if lb > longest {
			longest = lb
		}
	}
	checks := []struct {
		name string
		need int
	}{
		{"Sector momentum", longest},
		{"Trend filter", strategy.Rotation.TrendFilter.MASlow},
		{"Backtest warmup", strategy.Backtest.LookbackDays},
	}
	for _, c := range checks {
		status := "✅"
		if days < c.need {
			status = fmt.Sprintf("❌ need %d", c.need)
		}
		fmt.Printf("  %-18s: %s\n", c.name, status)
	}

	return nil
}

func runDataImport(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Price Archive Import ===")
	fmt.Println()

	ctx := cmd.Context()

	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	if !cfg.HasDatabase() {
		return fmt.Errorf("DATABASE_URL is required to import the archive")
	}

	// 2. Load strategy parameters (for the benchmark name)
	strategy, _, err := strategyconfig.LoadOrDefault(cfg.StrategyFile)
	if err != nil {
		return fmt.Errorf("load strategy: %w", err)
	}

	// 3. Load the archive from disk
	fmt.Printf("📂 Archive: %s\n", cfg.DataDir)
	st, err := store.NewCSVLoader(cfg.DataDir, strategy.Meta.Benchmark, log).Load(ctx)
	if err != nil {
		return fmt.Errorf("load archive: %w", err)
	}
	cov := st.Coverage()
	fmt.Printf("   %d stocks in %d sectors, %s ~ %s\n\n",
		cov.Stocks, cov.Sectors,
		cov.FirstDate.Format("2006-01-02"), cov.LastDate.Format("2006-01-02"))

	// 4. Import into Postgres
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	repo := store.NewPostgresRepository(db.Pool, log)
	if err := repo.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate price tables: %w", err)
	}

	fmt.Println("💾 Importing...")
	startedAt := time.Now()
	if err := repo.ImportStore(ctx, st); err != nil {
		return fmt.Errorf("import archive: %w", err)
	}
	fmt.Printf("   done in %s\n\n", time.Since(startedAt).Round(time.Millisecond))

	// 5. Read back to confirm the round trip
	fmt.Println("🔎 Verifying read-back...")
	restored, err := repo.LoadStore(ctx, strategy.Meta.Benchmark)
	if err != nil {
		return fmt.Errorf("verify import: %w", err)
	}
	rcov := restored.Coverage()
	if rcov.Stocks != cov.Stocks {
		return fmt.Errorf("verify import: read back %d stocks, imported %d", rcov.Stocks, cov.Stocks)
	}
	fmt.Printf("   %d stocks in %d sectors readable from Postgres\n", rcov.Stocks, rcov.Sectors)

	fmt.Println("\n✅ Import complete")
	return nil
}
