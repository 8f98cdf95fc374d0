package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("order not found")

// Repo is the thin store client. It holds no business logic; status rules
// live in the machine.
type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `id, order_number, status, order_type, total_cents, notes,
       customer_name, customer_phone, customer_addr,
       created_at, started_at, completed_at`

// Create inserts the order plus its items in one tx. The order number comes
// from a sequence so it is assigned once and never reused. Total is computed
// here from item prices, not trusted from the client.
func (r *Repo) Create(ctx context.Context, in NewOrder) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var total int64
	for _, it := range in.Items {
		if it.Qty <= 0 {
			return Order{}, fmt.Errorf("invalid qty for %q", it.ProductName)
		}
		total += int64(it.Qty) * it.PriceCents
	}

	o := Order{
		ID:         uuid.NewString(),
		Status:     StatusPending,
		Type:       in.Type,
		TotalCents: total,
		Notes:      in.Notes,
		Customer:   in.Customer,
		Items:      in.Items,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders(id, status, order_type, total_cents, notes,
		                   customer_name, customer_phone, customer_addr)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING order_number, created_at`,
		o.ID, o.Status, o.Type, o.TotalCents, o.Notes,
		in.Customer.Name, in.Customer.Phone, in.Customer.Address,
	).Scan(&o.Number, &o.CreatedAt)
	if err != nil {
		return Order{}, err
	}

	for _, it := range in.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_name, qty, price_cents, notes)
			VALUES ($1,$2,$3,$4,$5)`,
			o.ID, it.ProductName, it.Qty, it.PriceCents, it.Notes,
		); err != nil {
			return Order{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	items, err := r.loadItems(ctx, []string{o.ID})
	if err != nil {
		return Order{}, err
	}
	o.Items = items[o.ID]
	return o, nil
}

// ListActive returns all non-terminal orders, newest first.
func (r *Repo) ListActive(ctx context.Context) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status IN ('pending','preparing','ready')
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	var ids []string
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

// ApplyTransition is the single conditional write: the status column only
// moves if it still equals the value the caller observed, and the lifecycle
// timestamps are stamped through COALESCE so they are written at most once.
func (r *Repo) ApplyTransition(ctx context.Context, id string, from, to Status, stampStarted, stampCompleted bool) (Order, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$2,
		  started_at   = CASE WHEN $3 THEN COALESCE(started_at,   now()) ELSE started_at   END,
		  completed_at = CASE WHEN $4 THEN COALESCE(completed_at, now()) ELSE completed_at END
		WHERE id=$1 AND status=$5`,
		id, to, stampStarted, stampCompleted, from)
	if err != nil {
		return Order{}, err
	}
	if ct.RowsAffected() == 0 {
		// either the order is gone or someone raced us
		if _, err := r.Get(ctx, id); errors.Is(err, ErrNotFound) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("%w: status moved away from %s", ErrInvalidTransition, from)
	}
	return r.Get(ctx, id)
}

func (r *Repo) loadItems(ctx context.Context, orderIDs []string) (map[string][]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT order_id, product_name, qty, price_cents, notes
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]OrderItem, len(orderIDs))
	for rows.Next() {
		var oid string
		var it OrderItem
		if err := rows.Scan(&oid, &it.ProductName, &it.Qty, &it.PriceCents, &it.Notes); err != nil {
			return nil, err
		}
		out[oid] = append(out[oid], it)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Number, &o.Status, &o.Type, &o.TotalCents, &o.Notes,
		&o.Customer.Name, &o.Customer.Phone, &o.Customer.Address,
		&o.CreatedAt, &o.StartedAt, &o.CompletedAt)
	return o, err
}
