package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/grandbistro/kitchen-orders/internal/alert"
	"github.com/grandbistro/kitchen-orders/internal/config"
	kafkax "github.com/grandbistro/kitchen-orders/internal/kafka"
	"github.com/grandbistro/kitchen-orders/internal/orders"
	"github.com/grandbistro/kitchen-orders/internal/postgres"
	"github.com/grandbistro/kitchen-orders/internal/redisx"
	"github.com/grandbistro/kitchen-orders/internal/syncx"
)

func main() {
	_ = godotenv.Load()

	orderID := flag.String("order", os.Getenv("ORDER_ID"), "order id to track")
	flag.Parse()
	if *orderID == "" {
		log.Fatal("usage: tracker -order <id>")
	}

	cfg := config.Load()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// starting the tracker is the user gesture for this session
	session := alert.NewAudioSession(&alert.BellPlayer{})
	session.Unlock()
	chime, err := session.Load("sounds/chime.wav")
	if err != nil {
		log.Printf("load chime: %v", err)
	}

	repo := &orders.Repo{DB: db}
	t := syncx.NewTracker(repo, *orderID, cfg.TrackPoll, func(o orders.Order) {
		log.Printf("order #%d: %s", o.Number, guestMessage(o.Status))
		session.Play(chime)
	})
	t.SetGuard(func(ctx context.Context, id string, st orders.Status) bool {
		ok, err := redisx.MarkNotified(ctx, rdb, id, string(st))
		if err != nil {
			// redis down: the in-memory set still dedups this session
			return true
		}
		return ok
	})

	// push channel scoped to this one order: any status event for it just
	// kicks a refetch.
	group := "tracker-" + uuid.NewString()[:8]
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicStatusChanged, 1)
	go func() {
		err := cons.Start(ctx, func(ctx context.Context, m kafkago.Message) error {
			var env orders.Envelope
			if err := json.Unmarshal(m.Value, &env); err != nil {
				return nil // not ours to fix, poll covers it
			}
			if env.CorrelationID == *orderID {
				t.Kick()
			}
			return nil
		})
		if err != nil {
			log.Printf("consumer exit: %v", err)
		}
	}()

	t.Run(ctx)
	if o, ok := t.Order(); ok && orders.Terminal(o.Status) {
		log.Printf("order #%d reached %s, bye", o.Number, o.Status)
	}
}

func guestMessage(s orders.Status) string {
	switch s {
	case orders.StatusPreparing:
		return "the kitchen started preparing your order"
	case orders.StatusReady:
		return "your order is ready"
	case orders.StatusDelivered:
		return "your order has been delivered, enjoy"
	case orders.StatusCancelled:
		return "your order was cancelled"
	default:
		return "order received"
	}
}
