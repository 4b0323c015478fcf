package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/swagat2001/systematic-sector-rotation/internal/api"
	"github.com/swagat2001/systematic-sector-rotation/internal/api/handlers"
	"github.com/swagat2001/systematic-sector-rotation/internal/audit"
	"github.com/swagat2001/systematic-sector-rotation/internal/backtest"
	"github.com/swagat2001/systematic-sector-rotation/internal/store"
	"github.com/swagat2001/systematic-sector-rotation/internal/strategyconfig"
	"github.com/swagat2001/systematic-sector-rotation/pkg/database"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
	"github.com/swagat2001/systematic-sector-rotation/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the REST API server",
	Long: `Starts the REST API server over the loaded price archive.

The server answers sector rankings and backtest queries, and can
trigger new runs. Postgres and Redis are both optional: without them
runs stay in memory and caching is disabled.

Endpoints:
  GET  /health                         - Health check
  GET  /api/rankings/sectors           - Sector momentum ranking
  GET  /api/backtest/latest            - Most recent run
  GET  /api/backtest/runs              - Stored run summaries
  GET  /api/backtest/runs/{id}         - One stored run
  GET  /api/backtest/runs/{id}/metrics - Stored analysis of a run
  POST /api/backtest/run               - Trigger a new run

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8089`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default: PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Sector Rotation API Server ===")

	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Override port if flag is set
	if apiPort != "" {
		cfg.Port = apiPort
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	// 3. Load strategy parameters
	strategy, _, err := strategyconfig.LoadOrDefault(cfg.StrategyFile)
	if err != nil {
		return fmt.Errorf("load strategy: %w", err)
	}

	// 4. Load the price archive
	st, err := store.NewCSVLoader(cfg.DataDir, strategy.Meta.Benchmark, log).Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("load archive: %w", err)
	}
	log.WithFields(map[string]interface{}{
		"stocks":  len(st.Symbols()),
		"sectors": len(st.Sectors()),
	}).Info("Price archive loaded")

	// 5. Wire the strategy stack and the engine
	composer, ranker := buildComposer(strategy, log)
	engine := backtest.NewEngine(st, composer, strategy, log)

	// 6. Connect to Postgres when configured
	var repo *backtest.Repository
	var auditRepo *audit.Repository
	if cfg.HasDatabase() {
		db, err := database.New(cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		repo = backtest.NewRepository(db.Pool, log)
		if err := repo.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("migrate run store: %w", err)
		}
		auditRepo = audit.NewRepository(db.Pool)
		if err := auditRepo.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("migrate audit store: %w", err)
		}
		log.Info("Connected to database")
	} else {
		log.Warn("DATABASE_URL not set: runs are kept in memory only")
	}

	// 7. Connect to Redis (no-op client when disabled)
	rdb, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer rdb.Close()
	cache := redis.NewCache(rdb, "quant")
	limiter := redis.NewRateLimiter(rdb, "quant")

	// 8. Create handlers
	backtestHandler := handlers.NewBacktestHandler(engine, repo, cache, limiter, log)
	analyzer := audit.NewAnalyzer(strategy.Backtest.RiskFreeRate, log)
	metricsHandler := handlers.NewMetricsHandler(repo, auditRepo, analyzer, log)
	rankingHandler := handlers.NewRankingHandler(st, ranker, cache, log)

	// 9. Create router
	router := api.NewRouter(backtestHandler, metricsHandler, rankingHandler, log, cfg.RateLimitRPS, cfg.RateLimitBurst)

	// 10. Create server
	server := api.New(cfg, log, router)

	// 11. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /api/rankings/sectors")
	fmt.Println("  GET  /api/backtest/latest")
	fmt.Println("  GET  /api/backtest/runs")
	fmt.Println("  GET  /api/backtest/runs/{id}")
	fmt.Println("  GET  /api/backtest/runs/{id}/metrics")
	fmt.Println("  POST /api/backtest/run")
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
