package retry

import "time"

// ExponentialBackoff returns delay based on attempt number.
// The delay doubles with each attempt: base * 2^attempt
func ExponentialBackoff(attempt int, base time.Duration) time.Duration {
	if attempt > 16 {
		attempt = 16
	}
	return base * (1 << attempt)
}

// CappedExponentialBackoff is ExponentialBackoff clamped to max.
func CappedExponentialBackoff(attempt int, base, max time.Duration) time.Duration {
	d := ExponentialBackoff(attempt, base)
	if d > max {
		return max
	}
	return d
}
