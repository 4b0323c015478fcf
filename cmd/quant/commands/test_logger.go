package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/swagat2001/systematic-sector-rotation/pkg/config"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

// testLoggerCmd represents the test-logger command
var testLoggerCmd = &cobra.Command{
	Use:   "test-logger",
	Short: "Test structured logging",
	Long: `Exercises the structured logging setup.

This command:
- JSON/Console format output
- log level filtering
- structured field logging
- error context logging

Example:
  go run ./cmd/quant test-logger`,
	RunE: runTestLogger,
}

func init() {
	rootCmd.AddCommand(testLoggerCmd)
}

func runTestLogger(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Logger Test ===")

	// Test 1: JSON Format (Production)
	fmt.Println("1. JSON Format (Production)")
	fmt.Println("--------------------------------")
	testJSONFormat()
	fmt.Println()

	// Test 2: Console Format (Development)
	fmt.Println("2. Console Format (Development)")
	fmt.Println("--------------------------------")
	testConsoleFormat()
	fmt.Println()

	// Test 3: Structured Logging
	fmt.Println("3. Structured Logging with Fields")
	fmt.Println("--------------------------------")
	testStructuredLogging()
	fmt.Println()

	// Test 4: Error Logging
	fmt.Println("4. Error Logging")
	fmt.Println("--------------------------------")
	testErrorLogging()
	fmt.Println()

	fmt.Println("✅ All logger tests completed!")
	return nil
}

func testJSONFormat() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	}

	log := logger.New(cfg)
	log.Info("Service started")
	log.Warn("Archive older than one trading day")
	log.Error("Failed to reach Redis, caching disabled")
}

func testConsoleFormat() {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "debug",
		LogFormat: "console",
	}

	log := logger.New(cfg)
	log.Debug("Scoring universe for rebalance date")
	log.Info("Rebalance targets composed")
	log.Warn("Benchmark series missing, comparison skipped")
}

func testStructuredLogging() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	}

	log := logger.New(cfg)

	// Single field
	runLog := log.WithField("run_id", "a0c3f2d4")
	runLog.Info("Backtest started")

	// Multiple fields
	tradeLog := log.WithFields(map[string]interface{}{
		"symbol":   "RELIANCE",
		"price":    2843.50,
		"quantity": 35,
		"action":   "BUY",
	})
	tradeLog.Info("Order executed")

	// Chained fields
	log.WithField("module", "rotation").
		WithField("sector", "NIFTY IT").
		Info("Sector selected for core sleeve")
}

func testErrorLogging() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "error",
		LogFormat: "json",
	}

	log := logger.New(cfg)

	// Simple error
	err := errors.New("connection timeout")
	log.WithError(err).Error("Failed to load stored book")

	// Error with context
	log.WithError(err).
		WithFields(map[string]interface{}{
			"retry_count": 3,
			"timeout_ms":  5000,
			"book":        "paper",
		}).
		Error("Connection failed after retries")
}
