package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/swagat2001/systematic-sector-rotation/pkg/config"
)

var (
	// Global flags
	strategyFile string
	env          string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "Core-satellite sector rotation for the NSE",
	Long: `Systematic dual-engine equity strategy for the Indian market.

A 60% core rotates into the top momentum sectors while a 40% satellite
holds the highest multi-factor scores in the broad universe. The CLI
drives the whole loop: backtests over the CSV price archive, report
generation, the REST API, and the scheduled paper-trading rebalance.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant backtest run --from 2021-01-01 --to 2023-12-31
  go run ./cmd/quant api
  go run ./cmd/quant scheduler start
  go run ./cmd/quant report generate`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "strategy YAML file (default: STRATEGY_FILE env or built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "override ENV (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// loadConfig applies the global flags on top of the environment and
// returns the resolved configuration. Every command goes through here so
// --verbose and --env behave the same everywhere.
func loadConfig() (*config.Config, error) {
	if verbose {
		os.Setenv("LOG_LEVEL", "debug")
	}
	if env != "" {
		os.Setenv("ENV", env)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if strategyFile != "" {
		cfg.StrategyFile = strategyFile
	}
	return cfg, nil
}
