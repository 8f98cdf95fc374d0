package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	r := redis.NewClient(&redis.Options{Addr: addr})
	_ = r.WithTimeout(2 * time.Second)
	return r
}

// Invalidator drops the cached status entry for an order so the next read
// goes back to the database.
type Invalidator struct {
	RDB *redis.Client
}

func (i Invalidator) InvalidateOrder(ctx context.Context, orderID string) {
	if i.RDB == nil {
		return
	}
	_ = i.RDB.Del(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Err()
}

// MarkNotified records that a guest notification for (order, status) went out.
// Returns true only for the first caller; duplicates from the second channel
// see false and stay quiet.
func MarkNotified(ctx context.Context, rdb *redis.Client, orderID, status string) (bool, error) {
	key := fmt.Sprintf(KeyNotify, orderID, status)
	return rdb.SetNX(ctx, key, "1", TTLNotify).Result()
}
