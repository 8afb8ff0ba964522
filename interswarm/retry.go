package interswarm

import (
	"math"
	"time"
)

// Backoff computes the delay before a retry attempt. Grounded in the
// teacher's ExponentialBackoff (agent/errors.go), re-expressed here as the
// interswarm package's own small helper rather than a shared dependency —
// transport retries are the only place in MAIL that ever waits and retries
// (§7: "transport errors ... never kill the local task"; local dispatch
// must stay deterministic and never retries).
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoff is used when a Router is constructed without an explicit
// Backoff: three attempts, starting at 200ms, capped at 2s.
var DefaultBackoff = Backoff{Initial: 200 * time.Millisecond, Max: 2 * time.Second, Multiplier: 2}

// NextDelay returns the delay before retry attempt n (0-indexed).
func (b Backoff) NextDelay(attempt int) time.Duration {
	d := time.Duration(float64(b.Initial) * math.Pow(b.Multiplier, float64(attempt)))
	if d > b.Max {
		d = b.Max
	}
	return d
}
