package importer

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// parseAmount parses a rand amount as typed into spreadsheets by South African
// treasurers. Examples: "R 1 234,50" -> 1234.5, "1,234.50" -> 1234.5, "1,500" -> 1500,
// "500" -> 500.
func parseAmount(s string) (float64, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\'':
			return -1
		}

		return r
	}, s)

	upper := strings.ToUpper(clean)
	switch {
	case strings.HasPrefix(upper, "ZAR"):
		clean = clean[3:]
	case strings.HasPrefix(upper, "R"):
		clean = clean[1:]
	}

	if clean == "" {
		return 0, fmt.Errorf("empty amount")
	}

	clean = normalizeSeparators(clean)

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	if !d.IsPositive() {
		return 0, fmt.Errorf("amount must be positive, got %q", s)
	}

	return d.Round(2).InexactFloat64(), nil
}

// normalizeSeparators rewrites s so that '.' is the only decimal separator and no
// grouping separators remain.
func normalizeSeparators(s string) string {
	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")

	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			return strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1)
		}

		return strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		// A lone comma with exactly three digits after it groups thousands.
		if strings.Count(s, ",") > 1 || len(s)-comma-1 == 3 {
			return strings.ReplaceAll(s, ",", "")
		}

		return strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	}

	return s
}
