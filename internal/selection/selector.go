package selection

import (
	"context"
	"sort"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/internal/strategyconfig"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

// Selector builds the satellite sleeve from the screened candidates:
// hysteresis against the previous period, top-N by composite score, and
// score-over-volatility weighting normalized to the sleeve allocation.
type Selector struct {
	sel          strategyconfig.Selection
	satellitePct float64
	log          *logger.Logger
}

func NewSelector(cfg *strategyconfig.Config, log *logger.Logger) *Selector {
	return &Selector{
		sel:          cfg.Selection,
		satellitePct: cfg.Allocation.SatellitePct,
		log:          log,
	}
}

// Select returns the satellite target weights and the chosen symbols in
// rank order. An empty candidate set is valid: the sleeve stays in cash.
func (s *Selector) Select(ctx context.Context, candidates []string, scores contracts.ScoreTable, state contracts.ComposerState) (contracts.TargetWeights, []string) {
	adjusted := s.applyHysteresis(candidates, scores, state)

	ranked := make([]string, 0, len(adjusted))
	for _, sym := range adjusted {
		if _, ok := scores[sym]; ok {
			ranked = append(ranked, sym)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		si, sj := scores[ranked[i]].Composite, scores[ranked[j]].Composite
		if si != sj {
			return si > sj
		}
		return ranked[i] < ranked[j]
	})
	if len(ranked) > s.sel.TopStocks {
		ranked = ranked[:s.sel.TopStocks]
	}

	if len(ranked) == 0 {
		s.log.Info("No satellite candidates, sleeve stays in cash")
		return contracts.TargetWeights{}, nil
	}

	// Weight each pick by score over volatility, floored so a placid
	// stock cannot swallow the sleeve.
	raw := make(map[string]float64, len(ranked))
	var total float64
	for _, sym := range ranked {
		sc := scores[sym]
		vol := sc.VolatilityRatio
		if vol < s.sel.MinVolRatio {
			vol = s.sel.MinVolRatio
		}
		w := sc.Composite / vol
		raw[sym] = w
		total += w
	}

	weights := contracts.TargetWeights{}
	if total > 0 {
		for sym, w := range raw {
			weights[sym] = w / total * s.satellitePct
		}
	}

	s.log.WithFields(map[string]interface{}{
		"candidates": len(candidates),
		"selected":   len(ranked),
		"allocated":  weights.TotalWeight(),
	}).Info("Selected satellite stocks")

	return weights, ranked
}

// applyHysteresis widens the candidate set with previously held stocks
// that have not scored below the cross-sectional median for two
// consecutive periods. A one-period dip keeps the stock for another
// cycle; two in a row lets it go.
func (s *Selector) applyHysteresis(candidates []string, scores contracts.ScoreTable, state contracts.ComposerState) []string {
	if !s.sel.Hysteresis.Enable || len(state.PrevScores) == 0 || len(state.PrevHoldings) == 0 {
		return candidates
	}

	in := make(map[string]bool, len(candidates))
	for _, sym := range candidates {
		in[sym] = true
	}

	curMedian := scores.MedianComposite()
	prevMedian := state.PrevScores.MedianComposite()

	adjusted := append([]string(nil), candidates...)
	for _, sym := range state.PrevHoldings {
		if in[sym] {
			continue
		}
		cur, ok := scores[sym]
		if !ok {
			continue
		}
		belowNow := cur.Composite < curMedian
		prev, hadPrev := state.PrevScores[sym]
		belowPrev := hadPrev && prev.Composite < prevMedian
		if belowNow && belowPrev {
			s.log.WithFields(map[string]interface{}{
				"symbol": sym,
			}).Debug("Dropped holding after two periods below median")
			continue
		}
		adjusted = append(adjusted, sym)
	}
	return adjusted
}
