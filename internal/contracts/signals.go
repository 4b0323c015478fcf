package contracts

import "sort"

// SectorScore is one sector's momentum ranking entry for a rebalance date.
type SectorScore struct {
	Sector         string  `json:"sector"`
	Momentum       float64 `json:"momentum"` // weighted 1m/3m/6m blend
	Return1M       float64 `json:"return_1m"`
	Return3M       float64 `json:"return_3m"`
	Return6M       float64 `json:"return_6m"`
	TrendConfirmed bool    `json:"trend_confirmed"`
	TrendStrength  float64 `json:"trend_strength"` // price over slow MA, minus 1
}

// StockScore is the composite scoring output for one stock at one rebalance
// date. Composite blends the three sub-scores; the remaining fields are the
// eligibility inputs the satellite screener reads.
type StockScore struct {
	Symbol      string  `json:"symbol"`
	Sector      string  `json:"sector"`
	Composite   float64 `json:"composite"` // roughly 0..1
	Fundamental float64 `json:"fundamental"`
	Technical   float64 `json:"technical"`
	Statistical float64 `json:"statistical"`

	Sharpe          float64 `json:"sharpe"`           // annualized risk-adjusted return
	TrendScore      float64 `json:"trend_score"`      // 0..1 trend confirmation
	VolatilityRatio float64 `json:"volatility_ratio"` // stock vol / benchmark vol
	Beta            float64 `json:"beta"`
}

// ScoreTable maps symbol to its score for one rebalance date. The composer
// carries the previous period's table across calls to implement hysteresis.
type ScoreTable map[string]StockScore

// MedianComposite returns the cross-sectional median of composite scores.
// Returns 0 for an empty table.
func (t ScoreTable) MedianComposite() float64 {
	if len(t) == 0 {
		return 0
	}
	vals := make([]float64, 0, len(t))
	for _, s := range t {
		vals = append(vals, s.Composite)
	}
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid]
	}
	return (vals[mid-1] + vals[mid]) / 2
}

// Ranked returns the table's scores ordered by descending composite score,
// ties broken by symbol so the ordering is deterministic.
func (t ScoreTable) Ranked() []StockScore {
	out := make([]StockScore, 0, len(t))
	for _, s := range t {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Composite != out[j].Composite {
			return out[i].Composite > out[j].Composite
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Clone returns an independent copy of the table.
func (t ScoreTable) Clone() ScoreTable {
	out := make(ScoreTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}
