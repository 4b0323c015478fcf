package portfolio

import (
	"context"
	"fmt"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/internal/rotation"
	"github.com/swagat2001/systematic-sector-rotation/internal/selection"
	"github.com/swagat2001/systematic-sector-rotation/internal/strategyconfig"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

// UniverseScorer produces the full cross-sectional score table for one
// rebalance snapshot. Satisfied by the composite scorer.
type UniverseScorer interface {
	ScoreUniverse(ctx context.Context, snap *contracts.MarketSnapshot) contracts.ScoreTable
}

// Composer assembles the final target weights for one rebalance date:
// one scoring pass over the universe, the core sector sleeve, the
// satellite selection sleeve, a merge, and the risk caps. Implements
// contracts.Composer.
type Composer struct {
	scorer   UniverseScorer
	core     *rotation.Engine
	screener *selection.Screener
	selector *selection.Selector
	cons     strategyconfig.Constraints
	log      *logger.Logger
}

func NewComposer(scorer UniverseScorer, core *rotation.Engine, screener *selection.Screener, selector *selection.Selector, cfg *strategyconfig.Config, log *logger.Logger) *Composer {
	return &Composer{
		scorer:   scorer,
		core:     core,
		screener: screener,
		selector: selector,
		cons:     cfg.Constraints,
		log:      log,
	}
}

// Compose runs both sleeves off a single scoring pass and returns the
// capped target weights, the metadata for reporting, and the state the
// next rebalance will need. The incoming state is only read; the caller
// decides whether to adopt the returned one.
func (c *Composer) Compose(ctx context.Context, snap *contracts.MarketSnapshot, state contracts.ComposerState) (contracts.TargetWeights, *contracts.ComposerMeta, contracts.ComposerState, error) {
	scores := c.scorer.ScoreUniverse(ctx, snap)

	coreWeights, sel, err := c.core.BuildCore(ctx, snap, scores, state.PrevSectors)
	if err != nil {
		return nil, nil, state, fmt.Errorf("core sleeve: %w", err)
	}

	candidates, filterCounts := c.screener.Screen(ctx, snap, scores)
	satWeights, satPicks := c.selector.Select(ctx, candidates, scores, state)

	merged := mergeWeights(coreWeights, satWeights)
	capped, iterations, positionsCapped := c.applyPositionCap(merged)
	capped, sectorsCapped := c.applySectorCap(capped, snap)

	if err := capped.Validate(); err != nil {
		return nil, nil, state, fmt.Errorf("%w: %v", contracts.ErrInvalidTargetWeights, err)
	}

	meta := &contracts.ComposerMeta{
		Date:            snap.AsOf,
		SelectedSectors: sel.Selected,
		SectorStocks:    sel.SectorStocks,
		SatelliteStocks: satPicks,
		FilterCounts:    filterCounts,
		CoreWeight:      coreWeights.TotalWeight(),
		SatelliteWeight: satWeights.TotalWeight(),
		CapIterations:   iterations,
		SectorsCapped:   sectorsCapped,
		PositionsCapped: positionsCapped,
	}

	next := contracts.ComposerState{
		PrevScores:   scores,
		PrevHoldings: satPicks,
		PrevSectors:  make([]string, 0, len(sel.Selected)),
	}
	for _, s := range sel.Selected {
		next.PrevSectors = append(next.PrevSectors, s.Sector)
	}

	c.log.WithFields(map[string]interface{}{
		"as_of":            snap.AsOf.Format("2006-01-02"),
		"positions":        len(capped),
		"total_weight":     capped.TotalWeight(),
		"core_weight":      meta.CoreWeight,
		"satellite_weight": meta.SatelliteWeight,
		"cap_iterations":   iterations,
	}).Info("Composed target portfolio")

	return capped, meta, next, nil
}

// mergeWeights combines the two sleeves. A symbol picked by both
// accumulates weight rather than losing one sleeve's share.
func mergeWeights(core, satellite contracts.TargetWeights) contracts.TargetWeights {
	merged := make(contracts.TargetWeights, len(core)+len(satellite))
	for sym, w := range core {
		merged[sym] += w
	}
	for sym, w := range satellite {
		merged[sym] += w
	}
	return merged
}
