package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/grandbistro/kitchen-orders/internal/alert"
	"github.com/grandbistro/kitchen-orders/internal/orders"
	"github.com/grandbistro/kitchen-orders/internal/syncx"
)

type memStore struct {
	mu     sync.Mutex
	orders map[string]orders.Order
}

func (s *memStore) Get(ctx context.Context, id string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return o, nil
}

func (s *memStore) ApplyTransition(ctx context.Context, id string, from, to orders.Status, stampStarted, stampCompleted bool) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.orders[id]
	if o.Status != from {
		return orders.Order{}, orders.ErrInvalidTransition
	}
	o.Status = to
	now := time.Now()
	if stampStarted && o.StartedAt == nil {
		o.StartedAt = &now
	}
	if stampCompleted && o.CompletedAt == nil {
		o.CompletedAt = &now
	}
	s.orders[id] = o
	return o, nil
}

func (s *memStore) ListActive(ctx context.Context) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Order
	for _, o := range s.orders {
		if !orders.Terminal(o.Status) {
			out = append(out, o)
		}
	}
	return out, nil
}

func newTransitionRouter(store *memStore) http.Handler {
	h := &OrdersHandler{Machine: &orders.Machine{Store: store}}
	r := NewRouter()
	h.Register(r)
	return r
}

func TestTransitionEndpoints(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		from     orders.Status
		wantCode int
	}{
		{"start pending", "/orders/o1/start", orders.StatusPending, http.StatusOK},
		{"start preparing rejected", "/orders/o1/start", orders.StatusPreparing, http.StatusConflict},
		{"finish preparing", "/orders/o1/finish", orders.StatusPreparing, http.StatusOK},
		{"deliver ready", "/orders/o1/deliver", orders.StatusReady, http.StatusOK},
		{"deliver pending rejected", "/orders/o1/deliver", orders.StatusPending, http.StatusConflict},
		{"cancel ready", "/orders/o1/cancel", orders.StatusReady, http.StatusOK},
		{"cancel delivered rejected", "/orders/o1/cancel", orders.StatusDelivered, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{orders: map[string]orders.Order{
				"o1": {ID: "o1", Status: tt.from, CreatedAt: time.Now()},
			}}
			router := newTransitionRouter(store)

			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("POST %s from %s = %d, want %d (body %s)",
					tt.path, tt.from, w.Code, tt.wantCode, w.Body.String())
			}
		})
	}
}

func TestTransitionUnknownOrder(t *testing.T) {
	store := &memStore{orders: map[string]orders.Order{}}
	router := newTransitionRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/orders/nope/start", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("unknown order = %d, want 404", w.Code)
	}
}

func TestKitchenEndpoints(t *testing.T) {
	store := &memStore{orders: map[string]orders.Order{
		"o1": {ID: "o1", Status: orders.StatusPending, CreatedAt: time.Now()},
	}}
	rec := syncx.NewReconciler(store, time.Second, time.Minute)
	rec.Refresh(context.Background())

	session := alert.NewAudioSession(&alert.BellPlayer{W: &strings.Builder{}})
	engine := alert.NewEngine(session, time.Hour)
	defer engine.Acknowledge()

	h := &KitchenHandler{Rec: rec, Alerts: engine, Session: session, PrepTarget: 15 * time.Minute}
	r := NewRouter()
	h.Register(r)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /orders = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"urgency"`) {
		t.Errorf("snapshot view missing urgency band: %s", w.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/audio/unlock", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("POST /audio/unlock = %d, want 204", w.Code)
	}
	if !session.Unlocked() {
		t.Error("unlock endpoint did not unlock the audio session")
	}

	req = httptest.NewRequest(http.MethodPost, "/alerts", strings.NewReader(`{"enabled":false}`))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("POST /alerts = %d, want 200", w.Code)
	}
	if engine.Enabled() {
		t.Error("alerts toggle did not disable the engine")
	}
}
