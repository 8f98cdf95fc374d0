package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/grandbistro/kitchen-orders/internal/config"
	"github.com/grandbistro/kitchen-orders/internal/httpx"
	kafkax "github.com/grandbistro/kitchen-orders/internal/kafka"
	"github.com/grandbistro/kitchen-orders/internal/orders"
	"github.com/grandbistro/kitchen-orders/internal/postgres"
	"github.com/grandbistro/kitchen-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers: satu per topic
	prodCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	prodCreated.Start(ctx)
	prodStatus := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStatusChanged, 1024)
	prodStatus.Start(ctx)

	repo := &orders.Repo{DB: db}
	machine := &orders.Machine{
		Store:   repo,
		Events:  prodStatus,
		Cache:   redisx.Invalidator{RDB: rdb},
		Service: cfg.ServiceName,
	}

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Repo:     repo,
		Machine:  machine,
		Producer: prodCreated,
		Redis:    rdb,
		Service:  cfg.ServiceName,
	}
	oh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prodCreated.Close()
	prodStatus.Close()
	cancel()
	prodCreated.WaitClosed()
	prodStatus.WaitClosed()
}
