// Package handlers holds the HTTP handlers behind the API router.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/swagat2001/systematic-sector-rotation/internal/backtest"
	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
	"github.com/swagat2001/systematic-sector-rotation/pkg/redis"
)

const latestCacheTTL = 15 * time.Minute

// BacktestRunner runs one walk-forward simulation. Satisfied by
// backtest.Engine.
type BacktestRunner interface {
	Run(ctx context.Context, run backtest.Config) (*contracts.BacktestResult, error)
}

// BacktestHandler serves stored runs and triggers new ones. The run
// repository is optional: without Postgres the handler still serves the
// last in-memory run.
type BacktestHandler struct {
	runner  BacktestRunner
	repo    *backtest.Repository
	cache   *redis.Cache
	limiter *redis.RateLimiter
	log     *logger.Logger

	mu      sync.Mutex
	running bool
	last    *contracts.BacktestResult
}

// NewBacktestHandler creates a backtest handler. repo may be nil.
func NewBacktestHandler(runner BacktestRunner, repo *backtest.Repository, cache *redis.Cache, limiter *redis.RateLimiter, log *logger.Logger) *BacktestHandler {
	return &BacktestHandler{
		runner:  runner,
		repo:    repo,
		cache:   cache,
		limiter: limiter,
		log:     log,
	}
}

// Latest returns the most recent run: Redis cache first, then the
// repository, then the in-memory copy.
// GET /api/backtest/latest
func (h *BacktestHandler) Latest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cached contracts.BacktestResult
	if found, err := h.cache.Get(ctx, redis.BacktestResultKey("latest"), &cached); err == nil && found {
		respondJSON(w, http.StatusOK, &cached)
		return
	}

	if h.repo != nil {
		result, err := h.repo.LatestResult(ctx)
		switch {
		case errors.Is(err, backtest.ErrRunNotFound):
			// fall through to the in-memory copy
		case err != nil:
			h.log.WithError(err).Error("Failed to load latest run")
			respondError(w, http.StatusInternalServerError, "Failed to retrieve latest run")
			return
		default:
			h.cacheLatest(ctx, result)
			respondJSON(w, http.StatusOK, result)
			return
		}
	}

	h.mu.Lock()
	last := h.last
	h.mu.Unlock()
	if last == nil {
		respondError(w, http.StatusNotFound, "No backtest runs available")
		return
	}
	respondJSON(w, http.StatusOK, last)
}

// List returns recent run summaries.
// GET /api/backtest/runs?limit=20
func (h *BacktestHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		respondError(w, http.StatusServiceUnavailable, "Run storage is not configured")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	runs, err := h.repo.ListRuns(r.Context(), limit)
	if err != nil {
		h.log.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(runs),
		"runs":  runs,
	})
}

// Get returns one stored run in full.
// GET /api/backtest/runs/{id}
func (h *BacktestHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		respondError(w, http.StatusServiceUnavailable, "Run storage is not configured")
		return
	}

	runID := mux.Vars(r)["id"]
	result, err := h.repo.GetResult(r.Context(), runID)
	if errors.Is(err, backtest.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		h.log.WithError(err).Error("Failed to load run")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve run")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// RunRequest selects the simulation window. Zero values fall back to
// the engine defaults.
type RunRequest struct {
	StartDate      string  `json:"start_date"` // YYYY-MM-DD
	EndDate        string  `json:"end_date"`   // YYYY-MM-DD
	InitialCapital float64 `json:"initial_capital"`
	DailyValuation bool    `json:"daily_valuation"`
}

// RunSummary is the response to a run request; the full document is
// available under /api/backtest/runs/{id}.
type RunSummary struct {
	RunID         string  `json:"run_id"`
	Success       bool    `json:"success"`
	Error         string  `json:"error,omitempty"`
	FinalValue    float64 `json:"final_value"`
	TotalReturn   float64 `json:"total_return"`
	NumRebalances int     `json:"num_rebalances"`
	DurationMS    int64   `json:"duration_ms"`
}

// Run executes a backtest synchronously. Only one run is allowed at a
// time; concurrent requests get 409.
// POST /api/backtest/run
func (h *BacktestHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	run := backtest.Config{
		InitialCapital: req.InitialCapital,
		DailyValuation: req.DailyValuation,
	}
	var err error
	if run.StartDate, err = parseDate(req.StartDate); err != nil {
		respondError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}
	if run.EndDate, err = parseDate(req.EndDate); err != nil {
		respondError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
		return
	}

	// Cluster-wide cap on run launches. The per-process limiter in the
	// router only protects this instance.
	allowed, remaining, err := h.limiter.Allow(r.Context(), redis.BacktestRunLimit)
	if err != nil {
		h.log.WithError(err).Warn("Run rate limit check failed; allowing request")
	} else if !allowed {
		respondError(w, http.StatusTooManyRequests, "Too many backtest runs; try again in a minute")
		return
	} else {
		h.log.WithFields(map[string]interface{}{"remaining": remaining}).Debug("Run launch allowed")
	}

	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		respondError(w, http.StatusConflict, "A backtest is already running")
		return
	}
	h.running = true
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
	}()

	result, err := h.runner.Run(r.Context(), run)
	if err != nil {
		h.log.WithError(err).Error("Backtest run failed")
		status := http.StatusUnprocessableEntity
		msg := "Backtest failed"
		if result != nil && result.Error != "" {
			msg = result.Error
		}
		respondError(w, status, msg)
		return
	}

	h.mu.Lock()
	h.last = result
	h.mu.Unlock()

	ctx := r.Context()
	if h.repo != nil {
		if err := h.repo.SaveResult(ctx, result); err != nil {
			h.log.WithError(err).Warn("Failed to persist run")
		}
	}
	h.cacheLatest(ctx, result)

	respondJSON(w, http.StatusOK, RunSummary{
		RunID:         result.RunID,
		Success:       result.Success,
		Error:         result.Error,
		FinalValue:    result.FinalValue,
		TotalReturn:   result.TotalReturn(),
		NumRebalances: result.NumRebalances,
		DurationMS:    result.Duration.Milliseconds(),
	})
}

func (h *BacktestHandler) cacheLatest(ctx context.Context, result *contracts.BacktestResult) {
	if err := h.cache.Set(ctx, redis.BacktestResultKey("latest"), result, latestCacheTTL); err != nil {
		h.log.WithError(err).Warn("Failed to cache latest run")
	}
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", raw)
}
