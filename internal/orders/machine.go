package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/grandbistro/kitchen-orders/internal/kafka"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// Store is what the machine needs from the order store.
type Store interface {
	Get(ctx context.Context, id string) (Order, error)
	ApplyTransition(ctx context.Context, id string, from, to Status, stampStarted, stampCompleted bool) (Order, error)
}

// EventSink is satisfied by *kafkax.Producer.
type EventSink interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type CacheInvalidator interface {
	InvalidateOrder(ctx context.Context, orderID string)
}

// Acknowledger is how the machine tells the alert engine that staff touched
// the backlog. Any successful transition counts as acknowledgement.
type Acknowledger interface {
	Acknowledge()
}

// Machine is the single mutation surface for order status. Everything else
// (displays, trackers) only reads.
type Machine struct {
	Store   Store
	Events  EventSink
	Cache   CacheInvalidator
	Alerts  Acknowledger
	Service string
}

// Start moves pending -> preparing and stamps started_at.
func (m *Machine) Start(ctx context.Context, id string) (Order, error) {
	return m.transition(ctx, id, StatusPreparing)
}

// Finish moves preparing -> ready and stamps completed_at if unset.
func (m *Machine) Finish(ctx context.Context, id string) (Order, error) {
	return m.transition(ctx, id, StatusReady)
}

// Deliver moves ready -> delivered and stamps completed_at if unset.
func (m *Machine) Deliver(ctx context.Context, id string) (Order, error) {
	return m.transition(ctx, id, StatusDelivered)
}

// Cancel moves any non-terminal status -> cancelled.
func (m *Machine) Cancel(ctx context.Context, id string) (Order, error) {
	return m.transition(ctx, id, StatusCancelled)
}

func (m *Machine) transition(ctx context.Context, id string, to Status) (Order, error) {
	cur, err := m.Store.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !CanTransition(cur.Status, to) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, to)
	}

	stampStarted := to == StatusPreparing
	stampCompleted := to == StatusReady || to == StatusDelivered

	updated, err := m.Store.ApplyTransition(ctx, id, cur.Status, to, stampStarted, stampCompleted)
	if err != nil {
		// rejected writes are reported, never retried here
		return Order{}, err
	}

	if m.Cache != nil {
		m.Cache.InvalidateOrder(ctx, id)
	}
	if m.Events != nil {
		m.publishStatusChanged(cur.Status, updated)
	}
	if m.Alerts != nil {
		m.Alerts.Acknowledge()
	}
	return updated, nil
}

func (m *Machine) publishStatusChanged(from Status, o Order) {
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderStatusChanged,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      m.Service,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(StatusChangedPayload{
			OrderID: o.ID, From: from, To: o.Status,
		}),
	}
	m.Events.Publish(PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventOrderStatusChanged)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
