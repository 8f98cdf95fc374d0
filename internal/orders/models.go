package orders

import "time"

type OrderType string

const (
	TypeDelivery OrderType = "delivery"
	TypeCounter  OrderType = "counter"
	TypeRoom     OrderType = "room"
)

type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address,omitempty"`
}

type OrderItem struct {
	ProductName string `json:"product_name"`
	Qty         int    `json:"qty"`
	PriceCents  int64  `json:"price_cents"`
	Notes       string `json:"notes,omitempty"`
}

type Order struct {
	ID          string      `json:"id"`
	Number      int64       `json:"order_number"`
	Status      Status      `json:"status"`
	Type        OrderType   `json:"order_type"`
	TotalCents  int64       `json:"total_cents"`
	Notes       string      `json:"notes,omitempty"`
	Customer    Customer    `json:"customer"`
	Items       []OrderItem `json:"items"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// NewOrder is the input shape for order creation (checkout hands us this).
type NewOrder struct {
	Type     OrderType   `json:"order_type"`
	Notes    string      `json:"notes"`
	Customer Customer    `json:"customer"`
	Items    []OrderItem `json:"items"`
}
