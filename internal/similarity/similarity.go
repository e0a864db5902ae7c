// Package similarity provides the pure scoring primitives used by the
// matching engine: normalized edit-distance similarity for descriptions and
// closeness checks for amounts and dates.
package similarity

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// String returns a case-insensitive similarity score in [0, 1] based on
// normalized Levenshtein distance. Two equal strings (including two empty
// strings) score 1; if exactly one string is empty the score is 0.
// The function is symmetric.
func String(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == b {
		return 1
	}

	if a == "" || b == "" {
		return 0
	}

	ra, rb := []rune(a), []rune(b)

	distance := levenshtein.DistanceForStrings(ra, rb, levenshtein.DefaultOptions)
	longest := max(len(ra), len(rb))

	return 1 - float64(distance)/float64(longest)
}

// Amount returns a closeness score in [0, 1] for two signed amounts:
// 1 − |a−b| / max(|a|, |b|). Two zero amounts score 1.
func Amount(a, b decimal.Decimal) float64 {
	if a.Equal(b) {
		return 1
	}

	diff := a.Sub(b).Abs()
	largest := decimal.Max(a.Abs(), b.Abs())

	if largest.IsZero() {
		return 1
	}

	score := 1 - diff.Div(largest).InexactFloat64()

	return math.Max(score, 0)
}

// AmountsClose reports whether two amounts differ by at most tolerance.
func AmountsClose(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// DaysBetween returns the absolute whole-day difference between two dates,
// ignoring the time-of-day component.
func DaysBetween(d1, d2 time.Time) int {
	t1 := time.Date(d1.Year(), d1.Month(), d1.Day(), 0, 0, 0, 0, time.UTC)
	t2 := time.Date(d2.Year(), d2.Month(), d2.Day(), 0, 0, 0, 0, time.UTC)

	days := int(t1.Sub(t2).Hours() / 24)
	if days < 0 {
		days = -days
	}

	return days
}

// DatesClose reports whether two dates fall within toleranceDays of each other.
func DatesClose(d1, d2 time.Time, toleranceDays int) bool {
	return DaysBetween(d1, d2) <= toleranceDays
}

// DateScore maps a day difference onto [0, 1] with a one-week horizon:
// same day scores 1, seven or more days apart scores 0.
func DateScore(d1, d2 time.Time) float64 {
	score := 1 - float64(DaysBetween(d1, d2))/7

	return math.Max(score, 0)
}
