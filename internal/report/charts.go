package report

import (
	"errors"
	"fmt"

	"github.com/vicanso/go-charts/v2"

	"github.com/swagat2001/systematic-sector-rotation/internal/audit"
	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
)

const (
	chartWidth  = 1200
	chartHeight = 600
	xAxisSplits = 10
)

// EquityChart renders the equity curve as a PNG, with the benchmark
// overlaid when the run carries one. The engine already rebases the
// benchmark to initial capital, so both series share a scale.
func (g *Generator) EquityChart(result *contracts.BacktestResult) ([]byte, error) {
	curve := result.EquityCurve
	if len(curve) < 2 {
		return nil, errors.New("equity curve too short to chart")
	}

	labels := make([]string, len(curve))
	strategy := make([]float64, len(curve))
	for i, p := range curve {
		labels[i] = p.Date.Format("2006-01-02")
		strategy[i] = p.Value
	}

	values := [][]float64{strategy}
	names := []string{"Strategy"}
	if len(result.Benchmark) > 1 {
		values = append(values, alignedBenchmark(curve, result.Benchmark))
		names = append(names, "Benchmark")
	}

	seriesList := charts.NewSeriesListDataFromValues(values, charts.ChartTypeLine)
	for i := range seriesList {
		seriesList[i].Name = names[i]
	}

	subtitle := fmt.Sprintf("%s to %s", curve[0].Date.Format("2006-01-02"), curve[len(curve)-1].Date.Format("2006-01-02"))
	painter, err := charts.Render(charts.ChartOption{SeriesList: seriesList},
		charts.TitleTextOptionFunc("Equity Curve", subtitle),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        labels,
			BoundaryGap: charts.FalseFlag(),
			SplitNumber: xAxisSplits,
		}),
		charts.LegendOptionFunc(charts.LegendOption{Data: names}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(chartWidth),
		charts.HeightOptionFunc(chartHeight),
	)
	if err != nil {
		return nil, fmt.Errorf("render equity chart: %w", err)
	}
	return painter.Bytes()
}

// DrawdownChart renders the underwater curve in percent as a PNG.
func (g *Generator) DrawdownChart(m *audit.Metrics) ([]byte, error) {
	series := m.Drawdown.Series
	if len(series) < 2 {
		return nil, errors.New("drawdown series too short to chart")
	}

	labels := make([]string, len(series))
	dd := make([]float64, len(series))
	for i, p := range series {
		labels[i] = p.Date.Format("2006-01-02")
		dd[i] = p.Drawdown * 100
	}

	painter, err := charts.LineRender([][]float64{dd},
		charts.TitleTextOptionFunc("Drawdown (%)"),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        labels,
			BoundaryGap: charts.FalseFlag(),
			SplitNumber: xAxisSplits,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(chartWidth),
		charts.HeightOptionFunc(chartHeight),
	)
	if err != nil {
		return nil, fmt.Errorf("render drawdown chart: %w", err)
	}
	return painter.Bytes()
}

// alignedBenchmark maps the benchmark onto the strategy dates, carrying
// the last known value across gaps.
func alignedBenchmark(curve, benchmark []contracts.EquityPoint) []float64 {
	byDate := make(map[int64]float64, len(benchmark))
	for _, p := range benchmark {
		byDate[p.Date.Unix()] = p.Value
	}

	out := make([]float64, len(curve))
	last := benchmark[0].Value
	for i, p := range curve {
		if v, ok := byDate[p.Date.Unix()]; ok {
			last = v
		}
		out[i] = last
	}
	return out
}
