package signals

import (
	"math"
	"time"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
)

// tradingDaysPerYear annualizes daily return statistics.
const tradingDaysPerYear = 252

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev is the sample standard deviation around the supplied mean.
func stdDev(values []float64, m float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

// returnsOf converts a close series to day-over-day simple returns.
func returnsOf(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, closes[i]/closes[i-1]-1)
	}
	return out
}

// closesOf extracts the close column of a series.
func closesOf(s *contracts.PriceSeries) []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Close
	}
	return out
}

// tail returns at most the last n values.
func tail(values []float64, n int) []float64 {
	if n <= 0 || len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

// alignedCloses pairs stock and benchmark closes on their common dates,
// keeping at most the last maxBars pairs. Both series must be date-sorted.
func alignedCloses(stock, bench *contracts.PriceSeries, maxBars int) (s, b []float64) {
	if stock == nil || bench == nil {
		return nil, nil
	}
	benchByDate := make(map[time.Time]float64, bench.Len())
	for _, p := range bench.Points {
		benchByDate[p.Date] = p.Close
	}
	for _, p := range stock.Points {
		if bc, ok := benchByDate[p.Date]; ok {
			s = append(s, p.Close)
			b = append(b, bc)
		}
	}
	if maxBars > 0 && len(s) > maxBars {
		s = s[len(s)-maxBars:]
		b = b[len(b)-maxBars:]
	}
	return s, b
}

// sharpeRatio is the annualized ratio of mean to standard deviation of
// daily returns in excess of the risk-free rate. Zero when the window is
// too short or the returns have no variance.
func sharpeRatio(returns []float64, annualRiskFree float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	rf := annualRiskFree / tradingDaysPerYear
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - rf
	}
	m := mean(excess)
	sd := stdDev(excess, m)
	if sd == 0 {
		return 0
	}
	return math.Sqrt(tradingDaysPerYear) * m / sd
}

// annualizedVol is the sample standard deviation of daily returns scaled
// to a yearly horizon.
func annualizedVol(returns []float64) float64 {
	m := mean(returns)
	return stdDev(returns, m) * math.Sqrt(tradingDaysPerYear)
}

// betaOf regresses stock returns on benchmark returns. Falls back to the
// market beta of 1 when fewer than 10 paired observations exist or the
// benchmark shows no variance.
func betaOf(stockReturns, benchReturns []float64) float64 {
	n := len(stockReturns)
	if n != len(benchReturns) || n < 10 {
		return 1
	}
	ms := mean(stockReturns)
	mb := mean(benchReturns)
	var cov, benchVar float64
	for i := 0; i < n; i++ {
		cov += (stockReturns[i] - ms) * (benchReturns[i] - mb)
		benchVar += (benchReturns[i] - mb) * (benchReturns[i] - mb)
	}
	if benchVar == 0 {
		return 1
	}
	return cov / benchVar
}
