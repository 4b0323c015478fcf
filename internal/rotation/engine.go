package rotation

import (
	"context"
	"sort"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/internal/strategyconfig"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

// Selection is the outcome of one core-sleeve pass: the chosen sectors in
// rank order, the stocks picked inside each, and the rotation against the
// previous period.
type Selection struct {
	Selected     []contracts.SectorScore
	SectorStocks map[string][]string
	SectorWeight float64
	Entered      []string
	Exited       []string
	Held         []string
}

// Engine drives the core sleeve: momentum ranking across sector indices,
// optional trend confirmation, and top-stock picks inside the winners.
type Engine struct {
	ranker   contracts.SectorRanker
	rotation strategyconfig.Rotation
	corePct  float64
	log      *logger.Logger
}

func NewEngine(ranker contracts.SectorRanker, cfg *strategyconfig.Config, log *logger.Logger) *Engine {
	return &Engine{
		ranker:   ranker,
		rotation: cfg.Rotation,
		corePct:  cfg.Allocation.CorePct,
		log:      log,
	}
}

// BuildCore selects the top momentum sectors and assembles the core
// sleeve's target weights from the composite score table. Sectors that
// fail trend confirmation are dropped before the top cut, so in a broad
// downtrend the sleeve holds fewer sectors, or none, and the balance
// stays in cash.
func (e *Engine) BuildCore(ctx context.Context, snap *contracts.MarketSnapshot, scores contracts.ScoreTable, prevSectors []string) (contracts.TargetWeights, Selection, error) {
	ranked, err := e.ranker.Rank(ctx, snap.Sectors, snap.AsOf)
	if err != nil {
		return nil, Selection{}, err
	}

	survivors := ranked
	if e.rotation.TrendFilter.Enable {
		survivors = make([]contracts.SectorScore, 0, len(ranked))
		for _, s := range ranked {
			if s.TrendConfirmed {
				survivors = append(survivors, s)
				continue
			}
			e.log.WithFields(map[string]interface{}{
				"sector":   s.Sector,
				"strength": s.TrendStrength,
			}).Debug("Sector failed trend confirmation")
		}
	}

	top := survivors
	if len(top) > e.rotation.TopSectors {
		top = top[:e.rotation.TopSectors]
	}

	sel := Selection{
		Selected:     top,
		SectorStocks: make(map[string][]string, len(top)),
	}
	if len(top) > 0 {
		sel.SectorWeight = e.corePct / float64(len(top))
	}

	weights := contracts.TargetWeights{}
	for _, s := range top {
		picks := e.SelectSectorStocks(s.Sector, snap.SectorSymbols(s.Sector), scores)
		sel.SectorStocks[s.Sector] = picks
		if len(picks) == 0 {
			e.log.WithFields(map[string]interface{}{
				"sector": s.Sector,
			}).Warn("No scored stocks in selected sector, weight stays in cash")
			continue
		}
		w := sel.SectorWeight / float64(len(picks))
		for _, sym := range picks {
			weights[sym] += w
		}
	}

	sel.Entered, sel.Exited, sel.Held = diffSectors(prevSectors, top)
	e.log.WithFields(map[string]interface{}{
		"as_of":    snap.AsOf.Format("2006-01-02"),
		"selected": sectorNames(top),
		"entered":  sel.Entered,
		"exited":   sel.Exited,
		"held":     sel.Held,
	}).Info("Rotated core sectors")

	return weights, sel, nil
}

// SelectSectorStocks ranks a sector's symbols by composite score and
// returns the top stocks_per_sector. Symbols without a score are skipped.
func (e *Engine) SelectSectorStocks(sector string, symbols []string, scores contracts.ScoreTable) []string {
	type candidate struct {
		symbol string
		score  float64
	}
	cands := make([]candidate, 0, len(symbols))
	for _, sym := range symbols {
		sc, ok := scores[sym]
		if !ok {
			continue
		}
		cands = append(cands, candidate{symbol: sym, score: sc.Composite})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].symbol < cands[j].symbol
	})

	n := e.rotation.StocksPerSector
	if n > len(cands) {
		n = len(cands)
	}
	out := make([]string, 0, n)
	for _, c := range cands[:n] {
		out = append(out, c.symbol)
	}
	return out
}

func diffSectors(prev []string, selected []contracts.SectorScore) (entered, exited, held []string) {
	prevSet := make(map[string]bool, len(prev))
	for _, s := range prev {
		prevSet[s] = true
	}
	current := make(map[string]bool, len(selected))
	for _, s := range selected {
		current[s.Sector] = true
		if prevSet[s.Sector] {
			held = append(held, s.Sector)
		} else {
			entered = append(entered, s.Sector)
		}
	}
	for _, s := range prev {
		if !current[s] {
			exited = append(exited, s)
		}
	}
	sort.Strings(exited)
	return entered, exited, held
}

func sectorNames(scores []contracts.SectorScore) []string {
	out := make([]string, 0, len(scores))
	for _, s := range scores {
		out = append(out, s.Sector)
	}
	return out
}
