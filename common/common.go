package common

import "time"

// NormaliseDate truncates a timestamp to its UTC calendar date. All
// simulated dates flow through this so date comparisons are exact
func NormaliseDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDate reports whether two timestamps fall on the same UTC calendar day
func SameDate(a, b time.Time) bool {
	return NormaliseDate(a).Equal(NormaliseDate(b))
}
