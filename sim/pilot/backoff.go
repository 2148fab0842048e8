package pilot

import "math"

// MaxBackoffAttempts caps the missed-attempt exponent.
const MaxBackoffAttempts = 10

// BackoffShare returns the share of pilots dedicated to latency-critical
// traffic after missed failed attempts:
// min(base * 2^(missed-1), 1), with missed clamped to [0, MaxBackoffAttempts]
// and the exponent floored at 0.
func BackoffShare(base float64, missed int) float64 {
	missed = max(0, min(missed, MaxBackoffAttempts))
	exp := max(missed-1, 0)
	return math.Min(base*math.Pow(2, float64(exp)), 1)
}

// BackoffPilots returns how many of total pilots are dedicated after
// missed attempts. At least one pilot is dedicated whenever total > 0.
func BackoffPilots(base float64, missed, total int) int {
	if total <= 0 {
		return 0
	}
	return min(max(int(BackoffShare(base, missed)*float64(total)), 1), total)
}
