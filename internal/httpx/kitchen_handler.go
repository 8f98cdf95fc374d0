package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/grandbistro/kitchen-orders/internal/alert"
	"github.com/grandbistro/kitchen-orders/internal/orders"
	"github.com/grandbistro/kitchen-orders/internal/syncx"
	"github.com/grandbistro/kitchen-orders/internal/urgency"
)

// KitchenHandler serves the display side: the live snapshot stream, the
// alert toggle, and the audio unlock endpoint (the display forwards the
// first user gesture here).
type KitchenHandler struct {
	Rec        *syncx.Reconciler
	Alerts     *alert.Engine
	Session    *alert.AudioSession
	PrepTarget time.Duration

	mu      sync.Mutex
	viewers int
}

type orderView struct {
	orders.Order
	Urgency string `json:"urgency"`
}

func (h *KitchenHandler) Register(r *chi.Mux) {
	r.Get("/stream", h.stream)
	r.Get("/orders", h.snapshot)
	r.Post("/alerts", h.setAlerts)
	r.Post("/audio/unlock", h.unlock)
}

func (h *KitchenHandler) decorate(list []orders.Order) []orderView {
	now := time.Now()
	out := make([]orderView, 0, len(list))
	for _, o := range list {
		out = append(out, orderView{Order: o, Urgency: urgency.Classify(o, now, h.PrepTarget).String()})
	}
	return out
}

func (h *KitchenHandler) snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.decorate(h.Rec.Snapshot()))
}

// stream pushes every snapshot to the display over SSE. While at least one
// display is connected the reconciler polls at its fast cadence.
func (h *KitchenHandler) stream(w http.ResponseWriter, r *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	h.addViewer(1)
	defer h.addViewer(-1)

	ch, cancel := h.Rec.Subscribe()
	defer cancel()

	send := func(list []orders.Order) {
		b, err := json.Marshal(h.decorate(list))
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", b)
		fl.Flush()
	}
	send(h.Rec.Snapshot())

	for {
		select {
		case <-r.Context().Done():
			return
		case list := <-ch:
			send(list)
		}
	}
}

func (h *KitchenHandler) addViewer(d int) {
	h.mu.Lock()
	h.viewers += d
	visible := h.viewers > 0
	h.mu.Unlock()
	h.Rec.SetVisible(visible)
}

func (h *KitchenHandler) setAlerts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	h.Alerts.SetEnabled(req.Enabled)
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

// unlock is wired to the first click/touch/key on the display page.
// Idempotent: repeated calls after unlock are no-ops.
func (h *KitchenHandler) unlock(w http.ResponseWriter, r *http.Request) {
	h.Session.Unlock()
	w.WriteHeader(http.StatusNoContent)
}
