package audit

import (
	"sort"

	"github.com/swagat2001/systematic-sector-rotation/internal/contracts"
)

// MonthlyRow is one calendar year of compounded monthly returns. Months
// without data are nil; YearTotal compounds the year's daily returns.
type MonthlyRow struct {
	Year      int          `json:"year"`
	Months    [12]*float64 `json:"months"`
	YearTotal float64      `json:"year_total"`
}

// MonthlyReturns builds the year-by-month return table from an equity
// curve. Each daily return is attributed to the calendar month of its
// own date and compounded within that month.
func (a *Analyzer) MonthlyReturns(curve []contracts.EquityPoint) []MonthlyRow {
	returns := curveReturns(curve)
	if len(returns) == 0 {
		return nil
	}

	type ym struct {
		year  int
		month int
	}
	compounded := make(map[ym]float64)
	yearly := make(map[int]float64)
	for _, r := range returns {
		key := ym{r.date.Year(), int(r.date.Month())}
		if _, ok := compounded[key]; !ok {
			compounded[key] = 1.0
		}
		compounded[key] *= 1 + r.value
		if _, ok := yearly[key.year]; !ok {
			yearly[key.year] = 1.0
		}
		yearly[key.year] *= 1 + r.value
	}

	years := make([]int, 0, len(yearly))
	for y := range yearly {
		years = append(years, y)
	}
	sort.Ints(years)

	rows := make([]MonthlyRow, 0, len(years))
	for _, y := range years {
		row := MonthlyRow{Year: y, YearTotal: yearly[y] - 1}
		for m := 1; m <= 12; m++ {
			if c, ok := compounded[ym{y, m}]; ok {
				v := c - 1
				row.Months[m-1] = &v
			}
		}
		rows = append(rows, row)
	}
	return rows
}
