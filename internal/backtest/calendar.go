package backtest

import (
	"sort"
	"time"
)

// rebalanceDates returns the monthly decision dates: the start date, then
// one calendar month at a time while not after end. Dates are decision
// points whether or not they land on a trading day; price lookups
// downstream settle on the latest bar on or before each date.
func rebalanceDates(start, end time.Time) []time.Time {
	var out []time.Time
	for d := start; !d.After(end); d = addMonthClamped(d) {
		out = append(out, d)
	}
	return out
}

// addMonthClamped advances one calendar month, clamping the day when the
// next month is shorter (Jan 31 becomes Feb 29/28). Go's AddDate would
// roll the overflow into early March and drift the cadence.
func addMonthClamped(t time.Time) time.Time {
	firstOfNext := time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
	day := t.Day()
	if last := daysInMonth(firstOfNext); day > last {
		day = last
	}
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), day, 0, 0, 0, 0, t.Location())
}

func daysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// advanceTradingDays returns the calendar entry n trading days after the
// first entry at or after from. Reports false when the calendar is too
// short, which means there is not enough loaded history.
func advanceTradingDays(calendar []time.Time, from time.Time, n int) (time.Time, bool) {
	i := sort.Search(len(calendar), func(k int) bool { return !calendar[k].Before(from) })
	j := i + n
	if j >= len(calendar) {
		return time.Time{}, false
	}
	return calendar[j], true
}

// tradingDaysBetween returns the calendar entries strictly between after
// and before.
func tradingDaysBetween(calendar []time.Time, after, before time.Time) []time.Time {
	lo := sort.Search(len(calendar), func(k int) bool { return calendar[k].After(after) })
	var out []time.Time
	for _, d := range calendar[lo:] {
		if !d.Before(before) {
			break
		}
		out = append(out, d)
	}
	return out
}
