// Package utils provides common helpers for ticker input, EDGAR dates and
// number formatting.
package utils

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var usPrinter = message.NewPrinter(language.AmericanEnglish)

// FormatUSD formats a number as US dollars with thousands grouping
// ($1,234,567.89).
func FormatUSD(amount float64) string {
	negative := amount < 0
	amount = math.Abs(amount)

	cents := int64(math.Round(amount * 100))
	formatted := groupThousands(cents/100) + fmt.Sprintf(".%02d", cents%100)

	if negative {
		return "-$" + formatted
	}
	return "$" + formatted
}

// FormatUSDCompact formats a number in compact notation.
// e.g., 1927345 → "$1.93M", 391040000000 → "$391.04B"
func FormatUSDCompact(amount float64) string {
	prefix := "$"
	if amount < 0 {
		prefix = "-$"
	}
	return prefix + compact(math.Abs(amount))
}

// FormatCompact is FormatUSDCompact without the currency sign, for share
// counts and other non-monetary units.
func FormatCompact(v float64) string {
	if v < 0 {
		return "-" + compact(-v)
	}
	return compact(v)
}

func compact(v float64) string {
	switch {
	case v >= 1e12:
		return trimDecimals(v/1e12) + "T"
	case v >= 1e9:
		return trimDecimals(v/1e9) + "B"
	case v >= 1e6:
		return trimDecimals(v/1e6) + "M"
	case v >= 1e3:
		return trimDecimals(v/1e3) + "K"
	default:
		return trimDecimals(v)
	}
}

// FormatPct formats a fraction as a signed percentage.
// e.g., 0.0245 → "+2.45%", -0.0123 → "-1.23%"
func FormatPct(frac float64) string {
	pct := frac * 100
	if pct >= 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}

// FormatRatio formats a fraction as an unsigned percentage, for margins.
// e.g., 0.4 → "40.00%"
func FormatRatio(frac float64) string {
	return fmt.Sprintf("%.2f%%", frac*100)
}

// FormatUnitValue formats v for display according to its XBRL unit.
func FormatUnitValue(v float64, unit string) string {
	switch {
	case unit == "USD":
		return FormatUSDCompact(v)
	case strings.HasPrefix(unit, "USD/") || strings.HasPrefix(unit, "USD / "):
		return FormatUSD(v)
	case unit == "":
		return trimDecimals(v)
	default:
		return FormatCompact(v)
	}
}

// groupThousands formats a non-negative integer with comma grouping.
func groupThousands(n int64) string {
	return usPrinter.Sprintf("%d", n)
}

// trimDecimals formats a number with up to 2 decimal places,
// removing trailing zeros.
func trimDecimals(n float64) string {
	s := fmt.Sprintf("%.2f", n)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}
