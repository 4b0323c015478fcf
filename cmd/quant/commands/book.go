package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/swagat2001/systematic-sector-rotation/internal/execution"
	"github.com/swagat2001/systematic-sector-rotation/pkg/database"
)

// bookCmd represents the book command
var bookCmd = &cobra.Command{
	Use:   "book",
	Short: "Inspect the stored paper book",
	Long: `Shows the paper-trading portfolio the scheduler maintains.

The book lives in Postgres and is updated by every scheduled rebalance.

Subcommands:
  show     - current cash and positions
  history  - recent rebalances and transactions

Example:
  go run ./cmd/quant book show
  go run ./cmd/quant book history --months 6`,
}

var (
	bookShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Show the current paper portfolio",
		RunE:  runBookShow,
	}

	bookHistoryCmd = &cobra.Command{
		Use:   "history",
		Short: "Show recent rebalances and transactions",
		RunE:  runBookHistory,
	}

	// Flags
	bookName   string
	bookMonths int
)

func init() {
	rootCmd.AddCommand(bookCmd)
	bookCmd.AddCommand(bookShowCmd)
	bookCmd.AddCommand(bookHistoryCmd)

	// Flags
	bookCmd.PersistentFlags().StringVar(&bookName, "book", execution.DefaultBook, "book name")
	bookHistoryCmd.Flags().IntVar(&bookMonths, "months", 3, "months of transaction history")
}

func runBookShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	repo, db, err := initBookRepo()
	if err != nil {
		return err
	}
	defer db.Close()

	state, err := repo.LoadBook(ctx, bookName)
	if errors.Is(err, execution.ErrBookNotFound) {
		fmt.Printf("No stored book %q yet. The scheduler creates it on the first rebalance.\n", bookName)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load book: %w", err)
	}

	fmt.Printf("=== Paper Book: %s ===\n\n", bookName)
	fmt.Printf("💰 Cash: %s\n", formatINR(state.Cash))
	fmt.Printf("📦 Positions: %d\n\n", len(state.Positions))

	if len(state.Positions) > 0 {
		fmt.Printf("%-14s %10s %12s %14s %-16s\n", "Symbol", "Qty", "Last Price", "Value", "Sector")
		for _, sym := range state.Symbols() {
			pos := state.Positions[sym]
			fmt.Printf("%-14s %10.0f %12.2f %14s %-16s\n",
				pos.Symbol, pos.Quantity, pos.LastPrice,
				formatINR(pos.MarketValue(pos.LastPrice)), pos.Sector)
		}
		fmt.Printf("\n📈 Total (at last prices): %s\n", formatINR(state.Value(nil)))
	}

	return nil
}

func runBookHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	repo, db, err := initBookRepo()
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := repo.RebalanceHistory(ctx, bookName, 12)
	if err != nil {
		return fmt.Errorf("load rebalance history: %w", err)
	}

	fmt.Printf("=== Rebalance History: %s ===\n\n", bookName)
	if len(records) == 0 {
		fmt.Println("No rebalances recorded yet")
	} else {
		fmt.Printf("%-12s %14s %14s %9s %7s %8s\n",
			"Date", "Value", "Cash", "Executed", "Failed", "Skipped")
		for _, rec := range records {
			fmt.Printf("%-12s %14s %14s %9d %7d %8d\n",
				rec.Date.Format("2006-01-02"),
				formatINR(rec.PortfolioValue),
				formatINR(rec.Cash),
				rec.Executed, rec.Failed, rec.Skipped)
		}
	}

	to := time.Now()
	from := to.AddDate(0, -bookMonths, 0)
	txs, err := repo.Transactions(ctx, bookName, from, to)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}

	fmt.Printf("\n=== Transactions (last %d months: %d) ===\n\n", bookMonths, len(txs))
	for _, tx := range txs {
		fmt.Printf("%s  %-4s %-14s %8.0f @ %10.2f  fee %.2f\n",
			tx.Date.Format("2006-01-02"),
			tx.Action, tx.Symbol, tx.Quantity, tx.Price, tx.Cost)
	}

	return nil
}

func initBookRepo() (*execution.Repository, *database.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if !cfg.HasDatabase() {
		return nil, nil, fmt.Errorf("DATABASE_URL is required to inspect the paper book")
	}
	db, err := database.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	return execution.NewRepository(db.Pool), db, nil
}
