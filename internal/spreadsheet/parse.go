package spreadsheet

import (
	"math"
	"strconv"
	"strings"
)

// summaryWords mark footer rows that aggregate the hourly rows above them.
var summaryWords = []string{"total", "average", "minimum", "maximum"}

// isSummary reports whether a time cell labels a summary row.
func isSummary(c Cell) bool {
	if c.Kind != CellText {
		return false
	}
	lower := strings.ToLower(c.Text)
	for _, w := range summaryWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// parseHour extracts the hour of day from a time cell. It returns false for
// cell types that carry no hour and for text it cannot read.
func parseHour(c Cell) (int, bool) {
	switch c.Kind {
	case CellTime:
		return c.Time.Hour(), true
	case CellNumber:
		if math.IsNaN(c.Number) || math.IsInf(c.Number, 0) {
			return 0, false
		}
		return int(c.Number), true
	case CellText:
		return parseHourText(c.Text)
	default:
		return 0, false
	}
}

// parseHourText reads the integer before the first colon, e.g. "08:00" or
// "2024-01-02 08:00". Only the last whitespace-separated token before the
// colon is considered.
func parseHourText(s string) (int, bool) {
	prefix, _, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		return 0, false
	}
	fields := strings.Fields(prefix)
	if len(fields) == 0 {
		return 0, false
	}
	token := fields[len(fields)-1]
	if i := strings.LastIndexByte(token, 'T'); i >= 0 {
		token = token[i+1:]
	}
	h, err := strconv.Atoi(token)
	if err != nil {
		return 0, false
	}
	return h, true
}

// parseCount reads a count cell. A cell contributes only if its string form,
// after stripping one leading sign and one decimal point, is all digits;
// everything else counts as zero.
func parseCount(c Cell) float64 {
	if c.Empty() {
		return 0
	}
	s := strings.TrimSpace(c.String())
	if !isPlainNumber(s) {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func isPlainNumber(s string) bool {
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	s = strings.Replace(s, ".", "", 1)
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
