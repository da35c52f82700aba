package util

import "time"

// NowUTC exposes time.Now for deterministic testing.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// ExpiresWithin reports whether exp falls before now+window. A zero exp never expires.
func ExpiresWithin(exp time.Time, window time.Duration, now time.Time) bool {
	if exp.IsZero() {
		return false
	}
	return exp.Before(now.Add(window))
}
