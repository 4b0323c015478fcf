package handlers

import (
	"net/http"
	"time"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/internal/store"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
	"github.com/swagat2001/systematic-sector-rotation/pkg/redis"
)

const rankingCacheTTL = time.Hour

// RankingHandler serves sector momentum rankings computed on the loaded
// data.
type RankingHandler struct {
	store  *store.Store
	ranker contracts.SectorRanker
	cache  *redis.Cache
	log    *logger.Logger
}

// NewRankingHandler creates a ranking handler.
func NewRankingHandler(st *store.Store, ranker contracts.SectorRanker, cache *redis.Cache, log *logger.Logger) *RankingHandler {
	return &RankingHandler{
		store:  st,
		ranker: ranker,
		cache:  cache,
		log:    log,
	}
}

// SectorRankingResponse is the ranking payload.
type SectorRankingResponse struct {
	AsOf    string                  `json:"as_of"`
	Sectors []contracts.SectorScore `json:"sectors"`
}

// Sectors ranks all sector indices by momentum as of the requested date
// (default: last loaded trading day).
// GET /api/rankings/sectors?date=YYYY-MM-DD
func (h *RankingHandler) Sectors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	days := h.store.TradingDays()
	if len(days) == 0 {
		respondError(w, http.StatusServiceUnavailable, "No market data loaded")
		return
	}

	asOf := days[len(days)-1]
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		asOf = parsed
	}

	key := redis.SectorRankingKey(asOf.Format("2006-01-02"))
	var cached SectorRankingResponse
	if found, err := h.cache.Get(ctx, key, &cached); err == nil && found {
		respondJSON(w, http.StatusOK, &cached)
		return
	}

	snap := h.store.Snapshot(asOf)
	scores, err := h.ranker.Rank(ctx, snap.Sectors, asOf)
	if err != nil {
		h.log.WithError(err).Error("Sector ranking failed")
		respondError(w, http.StatusInternalServerError, "Failed to rank sectors")
		return
	}

	resp := SectorRankingResponse{
		AsOf:    asOf.Format("2006-01-02"),
		Sectors: scores,
	}
	if err := h.cache.Set(ctx, key, &resp, rankingCacheTTL); err != nil {
		h.log.WithError(err).Warn("Failed to cache sector ranking")
	}
	respondJSON(w, http.StatusOK, &resp)
}
