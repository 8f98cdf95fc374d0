package syncx

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/grandbistro/kitchen-orders/internal/orders"
)

// OrderGetter reads one order from the store.
type OrderGetter interface {
	Get(ctx context.Context, id string) (orders.Order, error)
}

// NotifyGuard reports whether a notification for (order, status) may still go
// out. Backed by a Redis SETNX so duplicate delivery over poll and push still
// yields a single notification.
type NotifyGuard func(ctx context.Context, orderID string, status orders.Status) bool

// Tracker is the single-order variant of the reconciler, used by the guest
// tracking page. It fires the onChange callback at most once per status.
type Tracker struct {
	store    OrderGetter
	orderID  string
	interval time.Duration
	onChange func(orders.Order)
	guard    NotifyGuard

	kicks chan struct{}

	mu       sync.Mutex
	current  orders.Order
	primed   bool
	notified map[orders.Status]bool
}

func NewTracker(store OrderGetter, orderID string, interval time.Duration, onChange func(orders.Order)) *Tracker {
	return &Tracker{
		store:    store,
		orderID:  orderID,
		interval: interval,
		onChange: onChange,
		kicks:    make(chan struct{}, 1),
		notified: make(map[orders.Status]bool),
	}
}

// SetGuard installs a cross-channel dedup guard. Optional.
func (t *Tracker) SetGuard(g NotifyGuard) { t.guard = g }

// Kick requests an immediate refetch (push channel trigger).
func (t *Tracker) Kick() {
	select {
	case t.kicks <- struct{}{}:
	default:
	}
}

// Order returns the last observed state.
func (t *Tracker) Order() (orders.Order, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.primed
}

func (t *Tracker) Run(ctx context.Context) {
	t.Refresh(ctx)
	tick := time.NewTicker(t.interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		case <-t.kicks:
		}
		t.Refresh(ctx)

		t.mu.Lock()
		done := t.primed && orders.Terminal(t.current.Status)
		t.mu.Unlock()
		if done {
			return
		}
	}
}

func (t *Tracker) Refresh(ctx context.Context) {
	o, err := t.store.Get(ctx, t.orderID)
	if err != nil {
		log.Printf("refetch order %s: %v", t.orderID, err)
		return
	}
	t.apply(ctx, o)
}

// apply replaces the tracked order wholesale. The first observation primes
// the notified set without firing; after that each distinct new status fires
// exactly once per session, no matter how many times both channels see it.
func (t *Tracker) apply(ctx context.Context, o orders.Order) {
	t.mu.Lock()
	prev := t.current
	t.current = o
	if !t.primed {
		t.primed = true
		t.notified[o.Status] = true
		t.mu.Unlock()
		return
	}
	if o.Status == prev.Status || t.notified[o.Status] {
		t.mu.Unlock()
		return
	}
	t.notified[o.Status] = true
	t.mu.Unlock()

	if t.guard != nil && !t.guard(ctx, o.ID, o.Status) {
		return
	}
	if t.onChange != nil {
		t.onChange(o)
	}
}
