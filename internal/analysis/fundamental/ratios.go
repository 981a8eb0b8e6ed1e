package fundamental

import "math"

// ratio divides num by den. Missing operands, a zero denominator and
// non-finite results all report false.
func ratio(num, den float64, numOK, denOK bool) (float64, bool) {
	if !numOK || !denOK || den == 0 {
		return 0, false
	}
	return finite(num / den)
}

// pctChange returns the fractional change from prev to cur (0.05 = +5%).
func pctChange(prev, cur float64, prevOK, curOK bool) (float64, bool) {
	if !prevOK || !curOK || prev == 0 {
		return 0, false
	}
	return finite((cur - prev) / prev)
}

func finite(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
