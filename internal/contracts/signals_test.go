package contracts

import (
	"math"
	"testing"
)

func TestMedianComposite(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   float64
	}{
		{"odd count", []float64{1, 3, 2}, 2},
		{"even count averages middle pair", []float64{1, 2, 3, 4}, 2.5},
		{"single", []float64{7}, 7},
		{"empty", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := ScoreTable{}
			for i, s := range tt.scores {
				sym := string(rune('A' + i))
				table[sym] = StockScore{Symbol: sym, Composite: s}
			}
			if got := table.MedianComposite(); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("MedianComposite() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestRanked(t *testing.T) {
	table := ScoreTable{
		"TCS":   {Symbol: "TCS", Composite: 1.5},
		"INFY":  {Symbol: "INFY", Composite: 2.0},
		"WIPRO": {Symbol: "WIPRO", Composite: 1.5},
	}

	ranked := table.Ranked()
	if len(ranked) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(ranked))
	}
	if ranked[0].Symbol != "INFY" {
		t.Errorf("expected INFY first, got %s", ranked[0].Symbol)
	}
	// Equal composites break ties by symbol.
	if ranked[1].Symbol != "TCS" || ranked[2].Symbol != "WIPRO" {
		t.Errorf("expected tie broken lexically: got %s, %s", ranked[1].Symbol, ranked[2].Symbol)
	}
}

func TestScoreTableClone(t *testing.T) {
	table := ScoreTable{"INFY": {Symbol: "INFY", Composite: 1}}
	c := table.Clone()
	c["INFY"] = StockScore{Symbol: "INFY", Composite: 9}
	c["TCS"] = StockScore{Symbol: "TCS"}

	if table["INFY"].Composite != 1 || len(table) != 1 {
		t.Errorf("clone mutated original: %v", table)
	}
}
