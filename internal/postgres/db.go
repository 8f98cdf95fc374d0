package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// EnsureSchema creates the order tables if they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE SEQUENCE IF NOT EXISTS order_numbers;

CREATE TABLE IF NOT EXISTS orders (
  id            text PRIMARY KEY,
  order_number  bigint NOT NULL DEFAULT nextval('order_numbers'),
  status        text NOT NULL,
  order_type    text NOT NULL,
  total_cents   bigint NOT NULL DEFAULT 0,
  notes         text NOT NULL DEFAULT '',
  customer_name text NOT NULL DEFAULT '',
  customer_phone text NOT NULL DEFAULT '',
  customer_addr text NOT NULL DEFAULT '',
  created_at    timestamptz NOT NULL DEFAULT now(),
  started_at    timestamptz,
  completed_at  timestamptz
);

CREATE TABLE IF NOT EXISTS order_items (
  id           bigserial PRIMARY KEY,
  order_id     text NOT NULL REFERENCES orders(id),
  product_name text NOT NULL,
  qty          int NOT NULL,
  price_cents  bigint NOT NULL,
  notes        text NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
`)
	return err
}
