package strategyconfig

import "time"

// Config is the full strategy parameter set. Everything the composer,
// scorers and backtest engine tune on lives here, so a single hash of
// this struct pins down a run.
type Config struct {
	Meta        Meta        `yaml:"meta" json:"meta"`
	Allocation  Allocation  `yaml:"allocation" json:"allocation"`
	Rotation    Rotation    `yaml:"rotation" json:"rotation"`
	Selection   Selection   `yaml:"selection" json:"selection"`
	Scoring     Scoring     `yaml:"scoring" json:"scoring"`
	Constraints Constraints `yaml:"constraints" json:"constraints"`
	Costs       Costs       `yaml:"costs" json:"costs"`
	Backtest    Backtest    `yaml:"backtest" json:"backtest"`
}

// Meta identifies the strategy
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
	Timezone   string `yaml:"timezone" json:"timezone"`
	Benchmark  string `yaml:"benchmark" json:"benchmark"`
}

// Allocation splits capital between the two sleeves
type Allocation struct {
	CorePct      float64 `yaml:"core_pct" json:"core_pct"`           // sector rotation sleeve
	SatellitePct float64 `yaml:"satellite_pct" json:"satellite_pct"` // stock selection sleeve
}

// Rotation configures the core sector-rotation sleeve
type Rotation struct {
	TopSectors      int         `yaml:"top_sectors" json:"top_sectors"`
	StocksPerSector int         `yaml:"stocks_per_sector" json:"stocks_per_sector"`
	Momentum        Momentum    `yaml:"momentum" json:"momentum"`
	TrendFilter     TrendFilter `yaml:"trend_filter" json:"trend_filter"`
}

// Momentum blends total returns over several lookbacks into one score.
// Lookbacks and Weights are parallel arrays.
type Momentum struct {
	LookbackDays []int     `yaml:"lookback_days" json:"lookback_days"`
	Weights      []float64 `yaml:"weights" json:"weights"` // sum = 1.0
}

// TrendFilter optionally excludes sectors that are not in an uptrend
// (price above both moving averages, with a minimum distance above the
// slow one).
type TrendFilter struct {
	Enable          bool    `yaml:"enable" json:"enable"`
	MAFast          int     `yaml:"ma_fast" json:"ma_fast"`
	MASlow          int     `yaml:"ma_slow" json:"ma_slow"`
	MinAboveSlowPct float64 `yaml:"min_above_slow_pct" json:"min_above_slow_pct"`
}

// Selection configures the satellite stock-selection sleeve
type Selection struct {
	TopStocks     int        `yaml:"top_stocks" json:"top_stocks"`
	TopDecilePct  float64    `yaml:"top_decile_pct" json:"top_decile_pct"`
	MinSharpe     float64    `yaml:"min_sharpe" json:"min_sharpe"`
	MinTrendScore float64    `yaml:"min_trend_score" json:"min_trend_score"`
	MinAvgVolume  float64    `yaml:"min_avg_volume" json:"min_avg_volume"`   // 21-day average, shares
	MinMarketCap  float64    `yaml:"min_market_cap" json:"min_market_cap"`   // rupees
	MinVolRatio   float64    `yaml:"min_vol_ratio" json:"min_vol_ratio"`     // floor for inverse-vol weighting
	Hysteresis    Hysteresis `yaml:"hysteresis" json:"hysteresis"`
}

// Hysteresis delays dropping a held stock until it scores below the
// cross-sectional median for N consecutive rebalances.
type Hysteresis struct {
	Enable  bool `yaml:"enable" json:"enable"`
	Periods int  `yaml:"periods" json:"periods"`
}

// Scoring configures the multi-factor composite model
type Scoring struct {
	Weights     FactorWeights      `yaml:"weights" json:"weights"`
	Fundamental FundamentalWeights `yaml:"fundamental" json:"fundamental"`
	Technical   TechnicalParams    `yaml:"technical" json:"technical"`
	Statistical StatisticalParams  `yaml:"statistical" json:"statistical"`
}

// FactorWeights blends the three factor groups, sum = 1.0
type FactorWeights struct {
	Fundamental float64 `yaml:"fundamental" json:"fundamental"`
	Technical   float64 `yaml:"technical" json:"technical"`
	Statistical float64 `yaml:"statistical" json:"statistical"`
}

// Sum returns the sum of the factor group weights
func (w FactorWeights) Sum() float64 {
	return w.Fundamental + w.Technical + w.Statistical
}

// FundamentalWeights splits the fundamental score, sum = 1.0
type FundamentalWeights struct {
	PERatio      float64 `yaml:"pe_ratio" json:"pe_ratio"`
	ROE          float64 `yaml:"roe" json:"roe"`
	DebtToEquity float64 `yaml:"debt_to_equity" json:"debt_to_equity"`
	CurrentRatio float64 `yaml:"current_ratio" json:"current_ratio"`
}

// Sum returns the sum of the fundamental metric weights
func (w FundamentalWeights) Sum() float64 {
	return w.PERatio + w.ROE + w.DebtToEquity + w.CurrentRatio
}

// TechnicalParams holds indicator weights and periods
type TechnicalParams struct {
	RSIWeight       float64 `yaml:"rsi_weight" json:"rsi_weight"`
	MACDWeight      float64 `yaml:"macd_weight" json:"macd_weight"`
	BollingerWeight float64 `yaml:"bollinger_weight" json:"bollinger_weight"`
	MATrendWeight   float64 `yaml:"ma_trend_weight" json:"ma_trend_weight"`

	RSIPeriod       int `yaml:"rsi_period" json:"rsi_period"`
	MACDFast        int `yaml:"macd_fast" json:"macd_fast"`
	MACDSlow        int `yaml:"macd_slow" json:"macd_slow"`
	MACDSignal      int `yaml:"macd_signal" json:"macd_signal"`
	BollingerPeriod int `yaml:"bollinger_period" json:"bollinger_period"`
	MAFast          int `yaml:"ma_fast" json:"ma_fast"`
	MASlow          int `yaml:"ma_slow" json:"ma_slow"`
}

// WeightSum returns the sum of the technical indicator weights
func (p TechnicalParams) WeightSum() float64 {
	return p.RSIWeight + p.MACDWeight + p.BollingerWeight + p.MATrendWeight
}

// StatisticalParams holds risk-metric weights and lookbacks
type StatisticalParams struct {
	SharpeWeight     float64 `yaml:"sharpe_weight" json:"sharpe_weight"`
	VolatilityWeight float64 `yaml:"volatility_weight" json:"volatility_weight"`
	BetaWeight       float64 `yaml:"beta_weight" json:"beta_weight"`

	LookbackDays int     `yaml:"lookback_days" json:"lookback_days"`
	RiskFreeRate float64 `yaml:"risk_free_rate" json:"risk_free_rate"` // annual
}

// WeightSum returns the sum of the statistical metric weights
func (p StatisticalParams) WeightSum() float64 {
	return p.SharpeWeight + p.VolatilityWeight + p.BetaWeight
}

// Constraints are applied to the merged target portfolio
type Constraints struct {
	MaxPositionPct float64 `yaml:"max_position_pct" json:"max_position_pct"`
	MaxSectorPct   float64 `yaml:"max_sector_pct" json:"max_sector_pct"`
	CapIterations  int     `yaml:"cap_iterations" json:"cap_iterations"`
}

// Costs model paper-trading execution
type Costs struct {
	TransactionCostPct float64 `yaml:"transaction_cost_pct" json:"transaction_cost_pct"`
	SlippagePct        float64 `yaml:"slippage_pct" json:"slippage_pct"`
	MarketImpact       float64 `yaml:"market_impact" json:"market_impact"`
	MinTradeValue      float64 `yaml:"min_trade_value" json:"min_trade_value"` // rupees, skip smaller deltas
}

// Backtest configures the walk-forward simulation
type Backtest struct {
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital"`
	RebalanceDay   int     `yaml:"rebalance_day" json:"rebalance_day"` // day of month, 1..28
	LookbackDays   int     `yaml:"lookback_days" json:"lookback_days"` // trading days of history before first rebalance
	RiskFreeRate   float64 `yaml:"risk_free_rate" json:"risk_free_rate"` // annual, for performance metrics
}

// DecisionSnapshot pins a run to the exact configuration that produced it
type DecisionSnapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml"`
	StrategyID string    `json:"strategy_id"`
	GitCommit  string    `json:"git_commit"`
	CreatedAt  time.Time `json:"created_at"`
}

// Default returns the standard parameter set for the NSE dual-approach
// strategy. Load falls back to this when no YAML file is given.
func Default() *Config {
	return &Config{
		Meta: Meta{
			StrategyID: "sector-rotation-dual",
			Version:    "2.0.0",
			Timezone:   "Asia/Kolkata",
			Benchmark:  "NIFTY 50",
		},
		Allocation: Allocation{
			CorePct:      0.60,
			SatellitePct: 0.40,
		},
		Rotation: Rotation{
			TopSectors:      3,
			StocksPerSector: 5,
			Momentum: Momentum{
				LookbackDays: []int{21, 63, 126},
				Weights:      []float64{0.25, 0.35, 0.40},
			},
			TrendFilter: TrendFilter{
				Enable:          false,
				MAFast:          50,
				MASlow:          200,
				MinAboveSlowPct: 0.02,
			},
		},
		Selection: Selection{
			TopStocks:     15,
			TopDecilePct:  0.10,
			MinSharpe:     0.0,
			MinTrendScore: 0.5,
			MinAvgVolume:  1_000_000,
			MinMarketCap:  1_000_000_000,
			MinVolRatio:   0.5,
			Hysteresis: Hysteresis{
				Enable:  true,
				Periods: 2,
			},
		},
		Scoring: Scoring{
			Weights: FactorWeights{
				Fundamental: 0.45,
				Technical:   0.35,
				Statistical: 0.20,
			},
			Fundamental: FundamentalWeights{
				PERatio:      0.25,
				ROE:          0.30,
				DebtToEquity: 0.25,
				CurrentRatio: 0.20,
			},
			Technical: TechnicalParams{
				RSIWeight:       0.30,
				MACDWeight:      0.35,
				BollingerWeight: 0.20,
				MATrendWeight:   0.15,
				RSIPeriod:       14,
				MACDFast:        12,
				MACDSlow:        26,
				MACDSignal:      9,
				BollingerPeriod: 20,
				MAFast:          50,
				MASlow:          200,
			},
			Statistical: StatisticalParams{
				SharpeWeight:     0.40,
				VolatilityWeight: 0.30,
				BetaWeight:       0.30,
				LookbackDays:     252,
				RiskFreeRate:     0.06,
			},
		},
		Constraints: Constraints{
			MaxPositionPct: 0.10,
			MaxSectorPct:   0.30,
			CapIterations:  10,
		},
		Costs: Costs{
			TransactionCostPct: 0.001,
			SlippagePct:        0.0005,
			MarketImpact:       0.0002,
			MinTradeValue:      100,
		},
		Backtest: Backtest{
			InitialCapital: 1_000_000,
			RebalanceDay:   1,
			LookbackDays:   252,
			RiskFreeRate:   0.065,
		},
	}
}
