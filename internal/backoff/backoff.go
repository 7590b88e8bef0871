// Package backoff computes retry delays for transient failures.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// floor keeps delays from collapsing to zero on early attempts.
const floor = 50 * time.Millisecond

// Delay returns a full-jitter exponential delay for the given attempt:
// a uniform random duration in [floor, min(cap, base*2^attempt)].
func Delay(attempt int, base, cap time.Duration) time.Duration {
	if base <= 0 {
		base = floor
	}
	if cap < base {
		cap = base
	}
	ceil := float64(base) * math.Pow(2, float64(attempt))
	if ceil > float64(cap) || ceil <= 0 { // overflow guard
		ceil = float64(cap)
	}
	d := time.Duration(rand.Int64N(int64(ceil)))
	if d < floor {
		d = floor
	}
	return d
}
