package utils

import (
	"strings"
)

// Share-class separators users commonly type that EDGAR lists with a dash.
var classSeparators = strings.NewReplacer(".", "-", "/", "-")

// NormalizeTicker normalizes user input to the symbol form used in the SEC
// ticker listing: trimmed, upper-cased, without a leading "$", and with share
// class separators rewritten to "-" (e.g. "brk.b" -> "BRK-B").
func NormalizeTicker(ticker string) string {
	ticker = strings.TrimSpace(ticker)
	ticker = strings.TrimPrefix(ticker, "$")
	ticker = strings.ToUpper(ticker)
	return classSeparators.Replace(ticker)
}

// IsNumeric reports whether s is a non-empty string of ASCII digits.
func IsNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}
