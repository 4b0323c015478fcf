package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/swagat2001/systematic-sector-rotation/internal/audit"
	"github.com/swagat2001/systematic-sector-rotation/internal/backtest"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

// MetricsHandler serves performance analyses of stored runs. The first
// request for a run computes the analysis and stores it; later requests
// read the stored document instead of replaying the run.
type MetricsHandler struct {
	runs     *backtest.Repository
	analyses *audit.Repository
	analyzer *audit.Analyzer
	log      *logger.Logger
}

// NewMetricsHandler creates a metrics handler. Both repositories may be
// nil when Postgres is not configured; requests then get 503.
func NewMetricsHandler(runs *backtest.Repository, analyses *audit.Repository, analyzer *audit.Analyzer, log *logger.Logger) *MetricsHandler {
	return &MetricsHandler{
		runs:     runs,
		analyses: analyses,
		analyzer: analyzer,
		log:      log,
	}
}

// MetricsResponse pairs the analysis with its sector attribution.
type MetricsResponse struct {
	Metrics      *audit.Metrics            `json:"metrics"`
	Attributions []audit.SectorAttribution `json:"attributions,omitempty"`
}

// Get returns the analysis for one run.
// GET /api/backtest/runs/{id}/metrics
func (h *MetricsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil || h.analyses == nil {
		respondError(w, http.StatusServiceUnavailable, "Run storage is not configured")
		return
	}

	ctx := r.Context()
	runID := mux.Vars(r)["id"]

	// Stored analysis first
	metrics, err := h.analyses.GetMetrics(ctx, runID)
	if err == nil {
		attrs, aerr := h.analyses.GetAttributions(ctx, runID)
		if aerr != nil {
			h.log.WithError(aerr).Warn("Failed to load attributions")
		}
		respondJSON(w, http.StatusOK, MetricsResponse{Metrics: metrics, Attributions: attrs})
		return
	}
	if !errors.Is(err, audit.ErrMetricsNotFound) {
		h.log.WithError(err).Error("Failed to load metrics")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	// First request for this run: compute from the stored result
	result, err := h.runs.GetResult(ctx, runID)
	if errors.Is(err, backtest.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		h.log.WithError(err).Error("Failed to load run")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve run")
		return
	}

	metrics, err = h.analyzer.Analyze(result)
	if err != nil {
		h.log.WithError(err).Error("Failed to analyze run")
		respondError(w, http.StatusUnprocessableEntity, "Run cannot be analyzed")
		return
	}
	attrs, err := h.analyzer.AttributeSectors(result, audit.SectorIndex(result))
	if err != nil {
		h.log.WithError(err).Warn("Sector attribution unavailable")
		attrs = nil
	}

	h.persist(ctx, runID, metrics, attrs)
	respondJSON(w, http.StatusOK, MetricsResponse{Metrics: metrics, Attributions: attrs})
}

// persist stores the computed analysis; failures only warn, the
// response has already been assembled from memory.
func (h *MetricsHandler) persist(ctx context.Context, runID string, m *audit.Metrics, attrs []audit.SectorAttribution) {
	if err := h.analyses.SaveMetrics(ctx, m); err != nil {
		h.log.WithError(err).Warn("Failed to store metrics")
		return
	}
	if len(attrs) > 0 {
		if err := h.analyses.SaveAttributions(ctx, runID, attrs); err != nil {
			h.log.WithError(err).Warn("Failed to store attributions")
		}
	}
}
