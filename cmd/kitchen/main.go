package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/grandbistro/kitchen-orders/internal/alert"
	"github.com/grandbistro/kitchen-orders/internal/config"
	"github.com/grandbistro/kitchen-orders/internal/httpx"
	kafkax "github.com/grandbistro/kitchen-orders/internal/kafka"
	"github.com/grandbistro/kitchen-orders/internal/orders"
	"github.com/grandbistro/kitchen-orders/internal/postgres"
	"github.com/grandbistro/kitchen-orders/internal/syncx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	repo := &orders.Repo{DB: db}
	rec := syncx.NewReconciler(repo, cfg.PollFast, cfg.PollSlow)

	session := alert.NewAudioSession(&alert.BellPlayer{})
	session.OnBlocked = func() {
		log.Printf("audio blocked: tap anywhere on the display to enable sound")
	}
	engine := alert.NewEngine(session, cfg.AlertCadence)

	rec.OnNewOrder(func(o orders.Order) {
		log.Printf("new order #%d (%s)", o.Number, o.Type)
		engine.NotifyNewOrder()
	})

	// level input: pending count per snapshot
	snaps, _ := rec.Subscribe()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case list := <-snaps:
				n := 0
				for _, o := range list {
					if o.Status == orders.StatusPending {
						n++
					}
				}
				engine.ObservePending(n)
			}
		}
	}()

	// push channel: change events only trigger a refetch, payloads are not
	// merged. A dropped subscription is tolerated, polling stays the
	// fallback of record.
	group := getenv("KITCHEN_GROUP", "kitchen-display")
	created := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrderCreated, 1)
	go func() {
		if err := created.Start(ctx, func(ctx context.Context, m kafkago.Message) error {
			rec.Kick()
			return nil
		}); err != nil {
			log.Printf("created consumer exit: %v", err)
		}
	}()
	status := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicStatusChanged, 1)
	go func() {
		if err := status.Start(ctx, func(ctx context.Context, m kafkago.Message) error {
			var env orders.Envelope
			if err := json.Unmarshal(m.Value, &env); err == nil {
				if p, err := kafkax.UnwrapPayload[orders.StatusChangedPayload](env.Payload); err == nil {
					log.Printf("order %s: %s -> %s", p.OrderID, p.From, p.To)
				}
			}
			// a staff transition also acknowledges the new-order loop
			engine.Acknowledge()
			rec.Kick()
			return nil
		}); err != nil {
			log.Printf("status consumer exit: %v", err)
		}
	}()

	go rec.Run(ctx)

	router := httpx.NewRouter()
	kh := &httpx.KitchenHandler{
		Rec:        rec,
		Alerts:     engine,
		Session:    session,
		PrepTarget: cfg.PrepTarget,
	}
	kh.Register(router)

	addr := getenv("KITCHEN_HTTP_ADDR", ":8082")
	srv := &http.Server{Addr: addr, Handler: router}
	go func() {
		log.Printf("kitchen display listening at %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")
	cancel()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	time.Sleep(500 * time.Millisecond)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
