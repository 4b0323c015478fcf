package commands

import (
	"math"
	"strconv"
	"strings"
)

// formatINR renders a rupee amount with Indian digit grouping: the last
// three digits form one group, every two digits after that (₹1,00,00,000).
func formatINR(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}

	s := strconv.FormatInt(int64(math.Round(v)), 10)
	if len(s) > 3 {
		head, tail := s[:len(s)-3], s[len(s)-3:]
		var groups []string
		for len(head) > 2 {
			groups = append([]string{head[len(head)-2:]}, groups...)
			head = head[:len(head)-2]
		}
		groups = append([]string{head}, groups...)
		s = strings.Join(groups, ",") + "," + tail
	}

	if neg {
		return "-₹" + s
	}
	return "₹" + s
}
