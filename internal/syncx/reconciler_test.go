package syncx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grandbistro/kitchen-orders/internal/orders"
)

type fakeFetcher struct {
	mu   sync.Mutex
	list []orders.Order
	err  error
}

func (f *fakeFetcher) ListActive(ctx context.Context) ([]orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]orders.Order, len(f.list))
	copy(out, f.list)
	return out, nil
}

func (f *fakeFetcher) set(list []orders.Order, err error) {
	f.mu.Lock()
	f.list, f.err = list, err
	f.mu.Unlock()
}

func orderAt(id string, created time.Time) orders.Order {
	return orders.Order{ID: id, Status: orders.StatusPending, CreatedAt: created}
}

func TestFirstLoadPrimesWatermarkSilently(t *testing.T) {
	base := time.Now()
	f := &fakeFetcher{list: []orders.Order{
		orderAt("a", base.Add(-2*time.Minute)),
		orderAt("b", base.Add(-1*time.Minute)),
		orderAt("c", base.Add(-3*time.Minute)),
	}}
	r := NewReconciler(f, time.Second, time.Minute)

	var events []orders.Order
	r.OnNewOrder(func(o orders.Order) { events = append(events, o) })

	r.Refresh(context.Background())
	assert.Len(t, r.Snapshot(), 3)
	assert.Empty(t, events, "pre-existing orders must not alert on first load")
}

func TestSameSnapshotIsIdempotent(t *testing.T) {
	base := time.Now()
	f := &fakeFetcher{list: []orders.Order{orderAt("a", base)}}
	r := NewReconciler(f, time.Second, time.Minute)

	var events int
	r.OnNewOrder(func(orders.Order) { events++ })

	ctx := context.Background()
	r.Refresh(ctx)
	r.Refresh(ctx)
	r.Refresh(ctx)
	assert.Equal(t, 0, events)
}

func TestStrictlyNewerFiresExactlyOnce(t *testing.T) {
	base := time.Now()
	f := &fakeFetcher{list: []orders.Order{orderAt("a", base)}}
	r := NewReconciler(f, time.Second, time.Minute)

	var events []orders.Order
	r.OnNewOrder(func(o orders.Order) { events = append(events, o) })

	ctx := context.Background()
	r.Refresh(ctx) // prime

	f.set([]orders.Order{orderAt("a", base), orderAt("b", base.Add(time.Second))}, nil)
	r.Refresh(ctx)
	require.Len(t, events, 1)
	assert.Equal(t, "b", events[0].ID)

	// redundant refetch of the same state: no extra event
	r.Refresh(ctx)
	assert.Len(t, events, 1)

	// an equal-or-older arrival never fires
	f.set([]orders.Order{orderAt("a", base), orderAt("b", base.Add(time.Second)), orderAt("old", base.Add(-time.Hour))}, nil)
	r.Refresh(ctx)
	assert.Len(t, events, 1)
}

func TestEmptyFirstLoadThenArrival(t *testing.T) {
	f := &fakeFetcher{}
	r := NewReconciler(f, time.Second, time.Minute)

	var events int
	r.OnNewOrder(func(orders.Order) { events++ })

	ctx := context.Background()
	r.Refresh(ctx)
	assert.Equal(t, 0, events)

	f.set([]orders.Order{orderAt("first", time.Now())}, nil)
	r.Refresh(ctx)
	assert.Equal(t, 1, events, "arrival after an empty mount must fire")
}

func TestFetchErrorKeepsPreviousSnapshot(t *testing.T) {
	base := time.Now()
	f := &fakeFetcher{list: []orders.Order{orderAt("a", base)}}
	r := NewReconciler(f, time.Second, time.Minute)

	ctx := context.Background()
	r.Refresh(ctx)
	require.Len(t, r.Snapshot(), 1)

	f.set(nil, errors.New("store unavailable"))
	r.Refresh(ctx)
	assert.Len(t, r.Snapshot(), 1, "a failed fetch leaves the previous snapshot in place")

	f.set([]orders.Order{orderAt("a", base), orderAt("b", base.Add(time.Second))}, nil)
	r.Refresh(ctx)
	assert.Len(t, r.Snapshot(), 2)
}

func TestSnapshotIsReplacedWholesale(t *testing.T) {
	base := time.Now()
	f := &fakeFetcher{list: []orders.Order{orderAt("a", base), orderAt("b", base)}}
	r := NewReconciler(f, time.Second, time.Minute)

	ctx := context.Background()
	r.Refresh(ctx)
	require.Len(t, r.Snapshot(), 2)

	// "a" got started and left the pending bucket upstream
	f.set([]orders.Order{orderAt("b", base)}, nil)
	r.Refresh(ctx)
	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "b", snap[0].ID)
}

func TestSubscribeDeliversLatestSnapshot(t *testing.T) {
	base := time.Now()
	f := &fakeFetcher{list: []orders.Order{orderAt("a", base)}}
	r := NewReconciler(f, time.Second, time.Minute)

	ch, cancel := r.Subscribe()
	defer cancel()

	ctx := context.Background()
	r.Refresh(ctx)
	// two refetches without the consumer reading: latest wins, no blocking
	f.set([]orders.Order{orderAt("a", base), orderAt("b", base.Add(time.Second))}, nil)
	r.Refresh(ctx)

	select {
	case got := <-ch:
		assert.Len(t, got, 2)
	default:
		t.Fatal("expected a buffered snapshot")
	}
}

func TestKickTriggersRefetch(t *testing.T) {
	base := time.Now()
	f := &fakeFetcher{list: []orders.Order{orderAt("a", base)}}
	// slow cadences so only the kick can explain the refetch
	r := NewReconciler(f, time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	require.Eventually(t, func() bool { return len(r.Snapshot()) == 1 }, time.Second, 10*time.Millisecond)

	f.set([]orders.Order{orderAt("a", base), orderAt("b", base.Add(time.Second))}, nil)
	r.Kick()
	require.Eventually(t, func() bool { return len(r.Snapshot()) == 2 }, time.Second, 10*time.Millisecond)
}
