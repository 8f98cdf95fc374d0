// Package urgency derives a time-based severity band per order. Purely
// computed against a live clock, never persisted.
package urgency

import (
	"time"

	"github.com/grandbistro/kitchen-orders/internal/orders"
)

type Band int

const (
	BandOK Band = iota
	BandWarning
	BandCritical
)

func (b Band) String() string {
	switch b {
	case BandWarning:
		return "warning"
	case BandCritical:
		return "critical"
	default:
		return "ok"
	}
}

// DefaultTarget is the preparation time a kitchen is expected to hit.
const DefaultTarget = 15 * time.Minute

// warning kicks in at 70% of the target
const warningFraction = 0.7

// Classify bands an order by elapsed time since started_at (or created_at
// while still pending). Monotonic in elapsed for a fixed target.
func Classify(o orders.Order, now time.Time, target time.Duration) Band {
	if target <= 0 {
		target = DefaultTarget
	}
	ref := o.CreatedAt
	if o.StartedAt != nil {
		ref = *o.StartedAt
	}
	elapsed := now.Sub(ref)
	warn := time.Duration(float64(target) * warningFraction)
	switch {
	case elapsed >= target:
		return BandCritical
	case elapsed >= warn:
		return BandWarning
	default:
		return BandOK
	}
}
