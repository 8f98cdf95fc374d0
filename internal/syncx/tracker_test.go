package syncx

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/grandbistro/kitchen-orders/internal/orders"
)

type fakeGetter struct {
	mu sync.Mutex
	o  orders.Order
}

func (g *fakeGetter) Get(ctx context.Context, id string) (orders.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.o, nil
}

func (g *fakeGetter) setStatus(s orders.Status) {
	g.mu.Lock()
	g.o.Status = s
	g.mu.Unlock()
}

func TestTrackerNotifiesEachStatusOnce(t *testing.T) {
	g := &fakeGetter{o: orders.Order{ID: "o1", Status: orders.StatusPending, CreatedAt: time.Now()}}

	var notified []orders.Status
	tr := NewTracker(g, "o1", time.Second, func(o orders.Order) {
		notified = append(notified, o.Status)
	})

	ctx := context.Background()
	tr.Refresh(ctx) // prime: no notification for the status we mounted on
	assert.Empty(t, notified)

	g.setStatus(orders.StatusPreparing)
	// both channels observe the same transition
	tr.Refresh(ctx)
	tr.Refresh(ctx)
	assert.Equal(t, []orders.Status{orders.StatusPreparing}, notified)

	g.setStatus(orders.StatusReady)
	tr.Refresh(ctx)
	tr.Refresh(ctx)
	tr.Refresh(ctx)
	assert.Equal(t, []orders.Status{orders.StatusPreparing, orders.StatusReady}, notified)

	g.setStatus(orders.StatusDelivered)
	tr.Refresh(ctx)
	assert.Equal(t, []orders.Status{orders.StatusPreparing, orders.StatusReady, orders.StatusDelivered}, notified)
}

func TestTrackerGuardSuppressesDuplicates(t *testing.T) {
	g := &fakeGetter{o: orders.Order{ID: "o1", Status: orders.StatusPending, CreatedAt: time.Now()}}

	var notified int
	tr := NewTracker(g, "o1", time.Second, func(orders.Order) { notified++ })
	// another session already announced this status
	tr.SetGuard(func(ctx context.Context, id string, st orders.Status) bool { return false })

	ctx := context.Background()
	tr.Refresh(ctx)
	g.setStatus(orders.StatusPreparing)
	tr.Refresh(ctx)
	assert.Equal(t, 0, notified)
}

func TestTrackerRunStopsOnTerminalStatus(t *testing.T) {
	g := &fakeGetter{o: orders.Order{ID: "o1", Status: orders.StatusDelivered, CreatedAt: time.Now()}}
	tr := NewTracker(g, "o1", 10*time.Millisecond, nil)

	done := make(chan struct{})
	go func() {
		tr.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after reaching a terminal status")
	}
}
