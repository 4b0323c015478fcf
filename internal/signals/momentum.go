package signals

import (
	"context"
	"sort"
	"time"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/internal/strategyconfig"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

// minRankHistory is the fewest bars a sector index needs before it is
// ranked at all; shorter histories are skipped rather than scored on noise.
const minRankHistory = 150

// SectorMomentum ranks sector indexes by a weighted blend of trailing
// total returns, with an optional dual moving-average trend check.
// It implements contracts.SectorRanker.
type SectorMomentum struct {
	rotation strategyconfig.Rotation
	log      *logger.Logger
}

// NewSectorMomentum creates a sector ranker from the rotation section of
// the strategy configuration.
func NewSectorMomentum(cfg *strategyconfig.Config, log *logger.Logger) *SectorMomentum {
	return &SectorMomentum{rotation: cfg.Rotation, log: log}
}

// Rank scores every sector with sufficient history and returns them in
// descending momentum order, ties broken by name. TrendConfirmed is
// always true when the trend filter is disabled; dropping unconfirmed
// sectors is the caller's policy, not the ranker's.
func (m *SectorMomentum) Rank(ctx context.Context, sectors map[string]*contracts.PriceSeries, asOf time.Time) ([]contracts.SectorScore, error) {
	minBars := m.rotation.TrendFilter.MASlow
	if minBars < minRankHistory {
		minBars = minRankHistory
	}

	scores := make([]contracts.SectorScore, 0, len(sectors))
	for name, series := range sectors {
		bars := 0
		if series != nil {
			bars = series.Len()
		}
		if bars < minBars {
			m.log.WithFields(map[string]interface{}{
				"sector": name,
				"bars":   bars,
				"need":   minBars,
			}).Warn("Skipping sector with insufficient history")
			continue
		}
		scores = append(scores, m.scoreSector(name, series))
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Momentum != scores[j].Momentum {
			return scores[i].Momentum > scores[j].Momentum
		}
		return scores[i].Sector < scores[j].Sector
	})

	if len(scores) > 0 {
		m.log.WithFields(map[string]interface{}{
			"as_of":      asOf.Format("2006-01-02"),
			"ranked":     len(scores),
			"top_sector": scores[0].Sector,
			"top_score":  scores[0].Momentum,
		}).Debug("Ranked sectors by momentum")
	}

	return scores, nil
}

func (m *SectorMomentum) scoreSector(name string, series *contracts.PriceSeries) contracts.SectorScore {
	score := contracts.SectorScore{Sector: name, TrendConfirmed: true}
	for i, days := range m.rotation.Momentum.LookbackDays {
		r := series.TotalReturn(days)
		score.Momentum += r * m.rotation.Momentum.Weights[i]
		switch i {
		case 0:
			score.Return1M = r
		case 1:
			score.Return3M = r
		case 2:
			score.Return6M = r
		}
	}
	if m.rotation.TrendFilter.Enable {
		score.TrendConfirmed, score.TrendStrength = m.trendConfirmation(series)
	}
	return score
}

// trendConfirmation checks the dual moving-average uptrend condition:
// price above the fast average, fast above slow, and price at least the
// configured distance above the slow average. Sectors with fewer bars
// than the slow window pass by default.
func (m *SectorMomentum) trendConfirmation(series *contracts.PriceSeries) (bool, float64) {
	tf := m.rotation.TrendFilter
	if series.Len() < tf.MASlow {
		return true, 0
	}
	price := series.Last().Close
	fast := series.SMA(tf.MAFast)
	slow := series.SMA(tf.MASlow)
	if slow <= 0 {
		return true, 0
	}
	strength := price/slow - 1
	confirmed := price > fast && fast > slow && strength >= tf.MinAboveSlowPct
	return confirmed, strength
}
