package syncx

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grandbistro/kitchen-orders/internal/orders"
)

// Fetcher is what the reconciler needs from the order store.
type Fetcher interface {
	ListActive(ctx context.Context) ([]orders.Order, error)
}

// Reconciler keeps the local view of active orders in sync with the store.
// Two producers feed it: a poll timer and Kick() calls from the push channel.
// Both collapse into the same refetch, and every refetch replaces the whole
// snapshot, so a stale delta can never be half-applied.
type Reconciler struct {
	fetcher Fetcher
	fast    time.Duration
	slow    time.Duration

	kicks      chan struct{}
	foreground atomic.Bool

	mu        sync.Mutex
	snapshot  []orders.Order
	watermark time.Time
	primed    bool
	subs      map[int]chan []orders.Order
	nextSub   int
	onNew     []func(orders.Order)
}

func NewReconciler(f Fetcher, fast, slow time.Duration) *Reconciler {
	return &Reconciler{
		fetcher: f,
		fast:    fast,
		slow:    slow,
		kicks:   make(chan struct{}, 1),
		subs:    make(map[int]chan []orders.Order),
	}
}

// Kick asks for a refetch. Called by the push channel on any change event;
// the event payload itself is never merged, it only triggers the fetch.
// Non-blocking: a kick while one is queued is folded into it.
func (r *Reconciler) Kick() {
	select {
	case r.kicks <- struct{}{}:
	default:
	}
}

// SetVisible switches the poll cadence between fast (a display is watching)
// and slow (backgrounded), and resyncs right away.
func (r *Reconciler) SetVisible(v bool) {
	r.foreground.Store(v)
	r.Kick()
}

// OnNewOrder registers a callback fired once per genuinely new arrival.
func (r *Reconciler) OnNewOrder(fn func(orders.Order)) {
	r.mu.Lock()
	r.onNew = append(r.onNew, fn)
	r.mu.Unlock()
}

// Subscribe returns a channel carrying each fresh snapshot. The channel holds
// only the latest value; a slow consumer just misses intermediate ones.
func (r *Reconciler) Subscribe() (<-chan []orders.Order, func()) {
	ch := make(chan []orders.Order, 1)
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	r.mu.Unlock()
	cancel := func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
	return ch, cancel
}

// Snapshot returns the current view.
func (r *Reconciler) Snapshot() []orders.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]orders.Order, len(r.snapshot))
	copy(out, r.snapshot)
	return out
}

// Run is the single consumer loop: poll tick or kick, then refetch. A failed
// fetch keeps the previous snapshot and waits for the next trigger; the loop
// itself never dies on store errors.
func (r *Reconciler) Run(ctx context.Context) {
	r.Refresh(ctx)
	t := time.NewTimer(r.interval())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		case <-r.kicks:
			if !t.Stop() {
				select {
				case <-t.C:
				default:
				}
			}
		}
		r.Refresh(ctx)
		t.Reset(r.interval())
	}
}

// Refresh fetches the active list once and applies it.
func (r *Reconciler) Refresh(ctx context.Context) {
	list, err := r.fetcher.ListActive(ctx)
	if err != nil {
		// transient: stale-but-consistent beats inconsistent
		log.Printf("refetch active orders: %v", err)
		return
	}
	r.apply(list)
}

func (r *Reconciler) interval() time.Duration {
	if r.foreground.Load() {
		return r.fast
	}
	return r.slow
}

// apply replaces the snapshot wholesale and advances the watermark. The first
// load primes the watermark silently so pre-existing orders never alert; after
// that only a strictly newer created_at fires, which makes re-applying the
// same state a no-op.
func (r *Reconciler) apply(list []orders.Order) {
	var newest time.Time
	var newestOrder orders.Order
	for _, o := range list {
		if o.CreatedAt.After(newest) {
			newest = o.CreatedAt
			newestOrder = o
		}
	}

	r.mu.Lock()
	r.snapshot = list
	var fresh *orders.Order
	if !r.primed {
		r.primed = true
		r.watermark = newest
	} else if !newest.IsZero() && newest.After(r.watermark) {
		r.watermark = newest
		fresh = &newestOrder
	}
	onNew := make([]func(orders.Order), len(r.onNew))
	copy(onNew, r.onNew)
	for _, ch := range r.subs {
		// latest wins: drop the unread one if the buffer is full
		select {
		case <-ch:
		default:
		}
		ch <- list
	}
	r.mu.Unlock()

	if fresh != nil {
		for _, fn := range onNew {
			fn(*fresh)
		}
	}
}
