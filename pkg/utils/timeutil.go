package utils

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used throughout EDGAR JSON payloads.
const DateLayout = "2006-01-02"

// ParseDate parses an EDGAR date string. It accepts the plain date layout plus
// the timestamp variants seen in feeds, and returns the zero time when s is
// blank or unparsable.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		DateLayout,
		"2006-01-02T15:04:05.000Z",
		time.RFC3339,
		"01/02/2006",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// FormatDate formats t as "2006-01-02", or "" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// CalendarQuarter returns the calendar quarter (1-4) containing t.
func CalendarQuarter(t time.Time) int {
	return 1 + (int(t.Month())-1)/3
}

// QuarterLabel renders t's calendar quarter as "{year}Q{n}", e.g. "2024Q3".
func QuarterLabel(t time.Time) string {
	return fmt.Sprintf("%dQ%d", t.Year(), CalendarQuarter(t))
}
