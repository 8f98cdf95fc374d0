package redisx

import "time"

const (
	// Cache status order: order_status:{order_id} -> order JSON
	KeyOrderStatus = "order_status:%s"

	// Dedup notifikasi guest: notify:{order_id}:{status} -> 1
	KeyNotify = "notify:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLNotify      = 12 * time.Hour
)
