package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/swagat2001/systematic-sector-rotation/internal/backtest"
	"github.com/swagat2001/systematic-sector-rotation/pkg/database"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

// cleanupCmd represents the cleanup command
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Storage maintenance",
	Long: `Maintenance tasks against the Postgres stores.

Example:
  quant cleanup runs --keep 50`,
}

var cleanupRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Prune old backtest runs",
	Long: `Deletes all but the newest backtest runs.

Every completed run stores its full result document, so the table grows
by a few megabytes per run. The scheduler prunes weekly; this command
does the same on demand.

Example:
  quant cleanup runs
  quant cleanup runs --keep 10`,
	RunE: runCleanupRuns,
}

var cleanupKeep int

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.AddCommand(cleanupRunsCmd)

	cleanupRunsCmd.Flags().IntVar(&cleanupKeep, "keep", 50, "runs to keep")
}

func runCleanupRuns(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Backtest Run Cleanup ===")

	ctx := cmd.Context()

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	if !cfg.HasDatabase() {
		return fmt.Errorf("DATABASE_URL is required for cleanup")
	}

	// Create database connection
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	repo := backtest.NewRepository(db.Pool, log)

	fmt.Printf("🗑️ Pruning runs beyond the newest %d...\n", cleanupKeep)
	removed, err := repo.PruneRuns(ctx, cleanupKeep)
	if err != nil {
		return fmt.Errorf("prune runs: %w", err)
	}

	if removed == 0 {
		fmt.Println("✅ Nothing to clean up")
		return nil
	}

	fmt.Printf("✅ Deleted %d runs\n", removed)
	return nil
}
