package ddns

import "time"

// NextDelay computes the wait before the next update cycle.
//
// A successful cycle resets the delay to min immediately, no matter how
// far it had climbed. A failed cycle grows the previous delay by one min
// increment, saturating at max. The function is pure; the caller owns the
// running delay.
func NextDelay(previous time.Duration, succeeded bool, min, max time.Duration) time.Duration {
	if succeeded {
		return min
	}
	next := previous + min
	if next > max {
		next = max
	}
	return next
}
