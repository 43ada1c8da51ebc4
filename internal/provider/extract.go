package provider

import (
	"strconv"
	"strings"
)

// ParseNumber normalizes a table cell into a float64.
//
// Scraped cells come in several shapes: "1,204", "35.2", "35.2%", "+4.1",
// "--" for missing values. Returns ok=false when the cell carries no number.
func ParseNumber(cell string) (float64, bool) {
	if IsBlank(cell) {
		return 0, false
	}
	s := strings.TrimSpace(cell)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "+")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// IsBlank reports whether a cell marks a missing value: empty, "-" or "--".
func IsBlank(cell string) bool {
	switch strings.TrimSpace(cell) {
	case "", "-", "--":
		return true
	}
	return false
}

// CollapseSpace trims s and replaces inner whitespace runs with one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
