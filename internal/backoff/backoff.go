// Package backoff computes the delay between retry attempts of the SDK.
package backoff

import "time"

// Policy is an exponential backoff with a hard cap.
// It is immutable and safe for concurrent use.
type Policy struct {
	// Base is the delay returned for attempt 0.
	Base time.Duration

	// Max caps the delay. Once the exponential term reaches it, Delay returns Max exactly.
	Max time.Duration

	// Factor is the growth multiplier between attempts. Values below 1 are treated as 1
	// so the sequence never decreases.
	Factor float64
}

// Default mirrors the server team's recommended client settings: 100ms, doubling, capped at 2s.
func Default() Policy {
	return Policy{
		Base:   100 * time.Millisecond,
		Max:    2 * time.Second,
		Factor: 2.0,
	}
}

// Delay returns min(Base * Factor^attempt, Max) for a zero-based attempt.
//
// The growth is applied iteratively and clamped as soon as it reaches Max, so
// large attempts neither overflow nor drift above the cap.
func (p Policy) Delay(attempt int) time.Duration {
	if p.Base <= 0 {
		return 0
	}
	if p.Max > 0 && p.Base >= p.Max {
		return p.Max
	}

	factor := p.Factor
	if factor < 1 {
		factor = 1
	}

	delay := float64(p.Base)
	limit := float64(p.Max)
	for i := 0; i < attempt; i++ {
		delay *= factor
		if p.Max > 0 && delay >= limit {
			return p.Max
		}
		// Without a cap, stop before time.Duration overflows.
		if delay >= float64(maxDuration) {
			return maxDuration
		}
	}

	return time.Duration(delay)
}

const maxDuration = time.Duration(1<<63 - 1)
