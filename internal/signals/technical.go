package signals

import (
	"context"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
	"github.com/swagat2001/systematic-sector-rotation/internal/strategyconfig"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

// bollingerStdDevs is the band width in standard deviations.
const bollingerStdDevs = 2.0

// TechnicalSignals carries the technical sub-score together with the
// indicator values behind it.
type TechnicalSignals struct {
	Score        float64
	TrendScore   float64
	RSI          float64
	MACDLine     float64
	MACDHist     float64
	BollingerPos float64
}

// TechnicalCalculator scores price action from four indicators: RSI,
// MACD, Bollinger band position, and the fast/slow moving-average
// posture. Each indicator degrades to a neutral score when the series
// is too short for its window.
type TechnicalCalculator struct {
	params strategyconfig.TechnicalParams
	log    *logger.Logger
}

// NewTechnicalCalculator creates a technical calculator.
func NewTechnicalCalculator(params strategyconfig.TechnicalParams, log *logger.Logger) *TechnicalCalculator {
	return &TechnicalCalculator{params: params, log: log}
}

// Calculate returns the weighted technical score for a stock's price
// history. The trend sub-score is exposed separately because the
// satellite eligibility screen reads it on its own.
func (c *TechnicalCalculator) Calculate(ctx context.Context, symbol string, series *contracts.PriceSeries) TechnicalSignals {
	out := TechnicalSignals{Score: 0.5, TrendScore: 0.5, RSI: 50, BollingerPos: 0.5}
	if series == nil || series.Len() < 2 {
		return out
	}
	closes := closesOf(series)

	out.RSI = rsiOf(closes, c.params.RSIPeriod)
	rsiScore := scoreRSI(out.RSI)

	macdScore := 0.5
	if line, hist, ok := macdHistogram(closes, c.params.MACDFast, c.params.MACDSlow, c.params.MACDSignal); ok {
		out.MACDLine = line
		out.MACDHist = hist
		macdScore = scoreMACD(line, hist)
	}

	bollScore := 0.5
	if pos, ok := bollingerPosition(closes, c.params.BollingerPeriod, bollingerStdDevs); ok {
		out.BollingerPos = pos
		bollScore = scoreBollinger(pos)
	}

	out.TrendScore = c.maTrendScore(series)

	out.Score = clamp01(c.params.RSIWeight*rsiScore +
		c.params.MACDWeight*macdScore +
		c.params.BollingerWeight*bollScore +
		c.params.MATrendWeight*out.TrendScore)

	c.log.WithFields(map[string]interface{}{
		"symbol":    symbol,
		"rsi":       out.RSI,
		"macd_hist": out.MACDHist,
		"boll_pos":  out.BollingerPos,
		"trend":     out.TrendScore,
		"score":     out.Score,
	}).Debug("Calculated technical score")

	return out
}

// maTrendScore bands the price's posture against the fast and slow
// moving averages. A golden cross with price above the slow average
// scores highest; deep breaks below the slow average score zero.
// Series shorter than the slow window score neutral.
func (c *TechnicalCalculator) maTrendScore(series *contracts.PriceSeries) float64 {
	if series.Len() < c.params.MASlow {
		return 0.5
	}
	price := series.Last().Close
	fast := series.SMA(c.params.MAFast)
	slow := series.SMA(c.params.MASlow)
	if slow <= 0 {
		return 0.5
	}

	goldenCross := fast > slow
	priceAbove := price > slow
	priceDist := price/slow - 1

	switch {
	case goldenCross && priceAbove:
		return 1.0
	case priceAbove:
		if (fast-slow)/slow > -0.02 {
			return 0.8
		}
		return 0.7
	case goldenCross:
		if priceDist > -0.05 {
			return clamp01(0.5 + priceDist*2)
		}
		return 0.4
	case priceDist > -0.10:
		return 0.3
	case priceDist > -0.20:
		return 0.2
	default:
		return 0.0
	}
}

// scoreRSI bands the RSI reading. Mild bullish momentum scores best;
// overbought readings are marked down, deep oversold gets a modest
// rebound premium.
func scoreRSI(rsi float64) float64 {
	switch {
	case rsi > 70:
		return 0.3
	case rsi > 55:
		return 0.8
	case rsi > 45:
		return 0.5
	case rsi > 30:
		return 0.4
	default:
		return 0.6
	}
}

// scoreMACD bands the MACD line against its signal line.
func scoreMACD(line, hist float64) float64 {
	switch {
	case hist > 0 && line > 0:
		return 1.0
	case hist > 0:
		return 0.7
	case line > 0:
		return 0.4
	default:
		return 0.1
	}
}

// scoreBollinger bands the %B position. Strength in the upper half of
// the bands scores best; pressing the upper band reads as stretched.
func scoreBollinger(pos float64) float64 {
	switch {
	case pos > 0.95:
		return 0.6
	case pos >= 0.60:
		return 0.9
	case pos >= 0.40:
		return 0.6
	case pos >= 0.20:
		return 0.4
	default:
		return 0.3
	}
}

// rsiOf computes the simple-average RSI over the trailing period.
// Returns the neutral 50 when the series is too short.
func rsiOf(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50
	}
	var gains, losses float64
	for i := len(closes) - period; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	if losses == 0 {
		return 100
	}
	rs := gains / losses
	return 100 - 100/(1+rs)
}

// emaSeries returns the exponential moving average sequence seeded with
// the SMA of the first period values. Nil when the input is too short.
func emaSeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	out := make([]float64, 0, len(values)-period+1)
	var sum float64
	for _, v := range values[:period] {
		sum += v
	}
	ema := sum / float64(period)
	out = append(out, ema)

	k := 2.0 / (float64(period) + 1.0)
	for _, v := range values[period:] {
		ema = v*k + ema*(1-k)
		out = append(out, ema)
	}
	return out
}

// macdHistogram computes the latest MACD line value and its distance
// from the signal line. ok is false when the series cannot cover the
// slow window plus the signal window.
func macdHistogram(closes []float64, fast, slow, signal int) (line, hist float64, ok bool) {
	if len(closes) < slow+signal {
		return 0, 0, false
	}
	emaFast := emaSeries(closes, fast)
	emaSlow := emaSeries(closes, slow)
	n := len(emaSlow)
	macd := make([]float64, n)
	off := len(emaFast) - n
	for i := 0; i < n; i++ {
		macd[i] = emaFast[off+i] - emaSlow[i]
	}
	sig := emaSeries(macd, signal)
	if len(sig) == 0 {
		return 0, 0, false
	}
	line = macd[len(macd)-1]
	return line, line - sig[len(sig)-1], true
}

// bollingerPosition returns the %B position of the last close within
// the bands over the trailing period. ok is false when the series is
// too short or the band width is degenerate.
func bollingerPosition(closes []float64, period int, stdDevs float64) (float64, bool) {
	if period <= 0 || len(closes) < period {
		return 0.5, false
	}
	window := closes[len(closes)-period:]
	m := mean(window)
	sd := stdDev(window, m)
	if sd == 0 {
		return 0.5, false
	}
	lower := m - stdDevs*sd
	upper := m + stdDevs*sd
	pos := (closes[len(closes)-1] - lower) / (upper - lower)
	return clamp01(pos), true
}
