package portfolio

import (
	"sort"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
)

// Constraint enforcement for composed weights. Both caps free weight
// into cash: the position cap redistributes only to names still under
// it, and the sector cap scales the whole sector down.

// applyPositionCap clips overweight positions to the cap and hands the
// excess proportionally to the uncapped rest, repeating because the
// redistribution can push new positions over. After the iteration limit
// any straggler is force-clipped and the excess stays in cash.
func (c *Composer) applyPositionCap(weights contracts.TargetWeights) (contracts.TargetWeights, int, int) {
	maxPos := c.cons.MaxPositionPct
	if maxPos <= 0 || len(weights) == 0 {
		return weights, 0, 0
	}

	out := weights.Clone()
	capped := map[string]bool{}
	iterations := 0
	for iterations < c.cons.CapIterations {
		var over []string
		for sym, w := range out {
			if !capped[sym] && w > maxPos+contracts.WeightTolerance {
				over = append(over, sym)
			}
		}
		if len(over) == 0 {
			break
		}
		iterations++

		var excess float64
		for _, sym := range over {
			excess += out[sym] - maxPos
			out[sym] = maxPos
			capped[sym] = true
		}

		var uncappedTotal float64
		for sym, w := range out {
			if !capped[sym] {
				uncappedTotal += w
			}
		}
		if uncappedTotal <= 0 {
			break
		}
		for sym, w := range out {
			if !capped[sym] {
				out[sym] = w + excess*(w/uncappedTotal)
			}
		}
	}

	for sym, w := range out {
		if w > maxPos {
			out[sym] = maxPos
		}
	}
	return out, iterations, len(capped)
}

// applySectorCap scales down every position of an over-exposed sector
// so the sector lands on the cap. Freed weight stays in cash. Symbols
// without a sector classification are left alone.
func (c *Composer) applySectorCap(weights contracts.TargetWeights, snap *contracts.MarketSnapshot) (contracts.TargetWeights, []string) {
	maxSector := c.cons.MaxSectorPct
	if maxSector <= 0 || len(weights) == 0 {
		return weights, nil
	}

	totals := map[string]float64{}
	for sym, w := range weights {
		if sector := snap.SectorOf(sym); sector != "" {
			totals[sector] += w
		}
	}

	var cappedSectors []string
	out := weights
	for sector, total := range totals {
		if total <= maxSector+contracts.WeightTolerance {
			continue
		}
		if len(cappedSectors) == 0 {
			out = weights.Clone()
		}
		scale := maxSector / total
		for sym, w := range out {
			if snap.SectorOf(sym) == sector {
				out[sym] = w * scale
			}
		}
		cappedSectors = append(cappedSectors, sector)
		c.log.WithFields(map[string]interface{}{
			"sector": sector,
			"weight": total,
			"scale":  scale,
		}).Debug("Scaled sector to exposure cap")
	}
	sort.Strings(cappedSectors)
	return out, cappedSectors
}
