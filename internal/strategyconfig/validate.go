package strategyconfig

import (
	"errors"
	"fmt"
	"math"
)

// ValidationError is a fatal config violation
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning flags a questionable but non-fatal setting
type Warning struct {
	Code    string
	Message string
}

// Validate checks all hard constraints. Any error aborts the run.
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}

	// === Allocation ===
	if err := validatePctRange(cfg.Allocation.CorePct, "allocation.core_pct"); err != nil {
		return err
	}
	if err := validatePctRange(cfg.Allocation.SatellitePct, "allocation.satellite_pct"); err != nil {
		return err
	}
	if total := cfg.Allocation.CorePct + cfg.Allocation.SatellitePct; math.Abs(total-1.0) > 1e-6 {
		return ValidationError{"allocation", fmt.Sprintf("core_pct + satellite_pct must equal 1.0, got %.4f", total)}
	}

	// === Rotation ===
	if cfg.Rotation.TopSectors < 1 {
		return ValidationError{"rotation.top_sectors", "must be >= 1"}
	}
	if cfg.Rotation.StocksPerSector < 1 {
		return ValidationError{"rotation.stocks_per_sector", "must be >= 1"}
	}
	if len(cfg.Rotation.Momentum.LookbackDays) != len(cfg.Rotation.Momentum.Weights) {
		return ValidationError{"rotation.momentum", "lookback_days length must match weights length"}
	}
	for i, d := range cfg.Rotation.Momentum.LookbackDays {
		if d <= 0 {
			return ValidationError{fmt.Sprintf("rotation.momentum.lookback_days[%d]", i), "must be > 0"}
		}
	}
	if err := validateWeightsSum(cfg.Rotation.Momentum.Weights, 1.0, 1e-6); err != nil {
		return ValidationError{"rotation.momentum.weights", err.Error()}
	}
	if cfg.Rotation.TrendFilter.Enable {
		tf := cfg.Rotation.TrendFilter
		if tf.MAFast <= 0 || tf.MASlow <= 0 {
			return ValidationError{"rotation.trend_filter", "ma periods must be > 0"}
		}
		if tf.MAFast >= tf.MASlow {
			return ValidationError{"rotation.trend_filter", "ma_fast must be < ma_slow"}
		}
		if tf.MinAboveSlowPct < 0 || tf.MinAboveSlowPct >= 1 {
			return ValidationError{"rotation.trend_filter.min_above_slow_pct", "must be in [0, 1)"}
		}
	}

	// === Selection ===
	if cfg.Selection.TopStocks < 1 {
		return ValidationError{"selection.top_stocks", "must be >= 1"}
	}
	if cfg.Selection.TopDecilePct <= 0 || cfg.Selection.TopDecilePct > 1 {
		return ValidationError{"selection.top_decile_pct", "must be in (0, 1]"}
	}
	if cfg.Selection.MinAvgVolume < 0 {
		return ValidationError{"selection.min_avg_volume", "must be >= 0"}
	}
	if cfg.Selection.MinMarketCap < 0 {
		return ValidationError{"selection.min_market_cap", "must be >= 0"}
	}
	if cfg.Selection.MinVolRatio <= 0 {
		return ValidationError{"selection.min_vol_ratio", "must be > 0"}
	}
	if cfg.Selection.Hysteresis.Enable && cfg.Selection.Hysteresis.Periods < 1 {
		return ValidationError{"selection.hysteresis.periods", "must be >= 1"}
	}

	// === Scoring ===
	if math.Abs(cfg.Scoring.Weights.Sum()-1.0) > 1e-6 {
		return ValidationError{"scoring.weights", fmt.Sprintf("must sum to 1.0, got %.4f", cfg.Scoring.Weights.Sum())}
	}
	if math.Abs(cfg.Scoring.Fundamental.Sum()-1.0) > 1e-6 {
		return ValidationError{"scoring.fundamental", fmt.Sprintf("metric weights must sum to 1.0, got %.4f", cfg.Scoring.Fundamental.Sum())}
	}
	if math.Abs(cfg.Scoring.Technical.WeightSum()-1.0) > 1e-6 {
		return ValidationError{"scoring.technical", fmt.Sprintf("indicator weights must sum to 1.0, got %.4f", cfg.Scoring.Technical.WeightSum())}
	}
	if math.Abs(cfg.Scoring.Statistical.WeightSum()-1.0) > 1e-6 {
		return ValidationError{"scoring.statistical", fmt.Sprintf("metric weights must sum to 1.0, got %.4f", cfg.Scoring.Statistical.WeightSum())}
	}
	tech := cfg.Scoring.Technical
	if tech.RSIPeriod <= 0 || tech.MACDFast <= 0 || tech.MACDSlow <= 0 || tech.MACDSignal <= 0 || tech.BollingerPeriod <= 0 {
		return ValidationError{"scoring.technical", "indicator periods must be > 0"}
	}
	if tech.MACDFast >= tech.MACDSlow {
		return ValidationError{"scoring.technical", "macd_fast must be < macd_slow"}
	}
	if tech.MAFast <= 0 || tech.MASlow <= 0 || tech.MAFast >= tech.MASlow {
		return ValidationError{"scoring.technical", "must satisfy 0 < ma_fast < ma_slow"}
	}
	if cfg.Scoring.Statistical.LookbackDays <= 0 {
		return ValidationError{"scoring.statistical.lookback_days", "must be > 0"}
	}

	// === Constraints ===
	if cfg.Constraints.MaxPositionPct <= 0 || cfg.Constraints.MaxPositionPct > 1 {
		return ValidationError{"constraints.max_position_pct", "must be in (0, 1]"}
	}
	if cfg.Constraints.MaxSectorPct <= 0 || cfg.Constraints.MaxSectorPct > 1 {
		return ValidationError{"constraints.max_sector_pct", "must be in (0, 1]"}
	}
	if cfg.Constraints.MaxSectorPct < cfg.Constraints.MaxPositionPct {
		return ValidationError{"constraints", "max_sector_pct must be >= max_position_pct"}
	}
	if cfg.Constraints.CapIterations < 1 {
		return ValidationError{"constraints.cap_iterations", "must be >= 1"}
	}

	// === Costs ===
	if cfg.Costs.TransactionCostPct < 0 {
		return ValidationError{"costs.transaction_cost_pct", "must be >= 0"}
	}
	if cfg.Costs.SlippagePct < 0 {
		return ValidationError{"costs.slippage_pct", "must be >= 0"}
	}
	if cfg.Costs.MarketImpact < 0 {
		return ValidationError{"costs.market_impact", "must be >= 0"}
	}
	if cfg.Costs.MinTradeValue < 0 {
		return ValidationError{"costs.min_trade_value", "must be >= 0"}
	}

	// === Backtest ===
	if cfg.Backtest.InitialCapital <= 0 {
		return ValidationError{"backtest.initial_capital", "must be > 0"}
	}
	if cfg.Backtest.RebalanceDay < 1 || cfg.Backtest.RebalanceDay > 28 {
		return ValidationError{"backtest.rebalance_day", "must be in [1, 28]"}
	}
	if cfg.Backtest.LookbackDays < 1 {
		return ValidationError{"backtest.lookback_days", "must be >= 1"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if !cfg.Rotation.TrendFilter.Enable {
		warnings = append(warnings, Warning{
			Code:    "TREND_FILTER_OFF",
			Message: "trend filter disabled: momentum ranking can rotate into falling sectors",
		})
	}

	if maxLB := maxInt(cfg.Rotation.Momentum.LookbackDays); cfg.Backtest.LookbackDays < maxLB {
		warnings = append(warnings, Warning{
			Code:    "SHORT_LOOKBACK",
			Message: fmt.Sprintf("backtest.lookback_days=%d is shorter than the longest momentum window (%d): early rebalances will skip", cfg.Backtest.LookbackDays, maxLB),
		})
	}

	if cfg.Costs.TransactionCostPct > 0.005 {
		warnings = append(warnings, Warning{
			Code:    "HIGH_COSTS",
			Message: "transaction cost > 0.5% per trade: monthly turnover will drag performance heavily",
		})
	}

	if cfg.Selection.MinAvgVolume < 100_000 {
		warnings = append(warnings, Warning{
			Code:    "LOW_LIQUIDITY_FLOOR",
			Message: "min_avg_volume < 100k shares: fills at modeled slippage are optimistic for illiquid names",
		})
	}

	return warnings
}

func validateWeightsSum(weights []float64, target float64, epsilon float64) error {
	if len(weights) == 0 {
		return errors.New("must not be empty")
	}
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum-target) > epsilon {
		return fmt.Errorf("must sum to %.2f, got %.4f", target, sum)
	}
	return nil
}

func validatePctRange(pct float64, field string) error {
	if pct < 0 || pct > 1 {
		return ValidationError{field, "must be in range [0, 1]"}
	}
	return nil
}

func maxInt(xs []int) int {
	m := 0
	for _, x := range xs {
		if x > m {
			m = x
		}
	}
	return m
}
