package commands

import (
	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/internal/portfolio"
	"github.com/swagat2001/systematic-sector-rotation/internal/rotation"
	"github.com/swagat2001/systematic-sector-rotation/internal/selection"
	"github.com/swagat2001/systematic-sector-rotation/internal/signals"
	"github.com/swagat2001/systematic-sector-rotation/internal/strategyconfig"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

// buildComposer wires the full strategy stack: one composite scorer feeds
// both sleeves, sector momentum drives the core rotation, screen+select
// drives the satellite. The ranker is returned separately because the API
// serves sector rankings on their own.
func buildComposer(strategy *strategyconfig.Config, log *logger.Logger) (contracts.Composer, contracts.SectorRanker) {
	scorer := signals.NewCompositeScorer(strategy, log)
	ranker := signals.NewSectorMomentum(strategy, log)
	core := rotation.NewEngine(ranker, strategy, log)
	screener := selection.NewScreener(strategy, log)
	selector := selection.NewSelector(strategy, log)
	return portfolio.NewComposer(scorer, core, screener, selector, strategy, log), ranker
}
