package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

// SetSlotLock takes a short fast-path lock on a slot during booking. The
// unique constraint on bookings.slot_id remains the authoritative guard.
func (c *Cache) SetSlotLock(ctx context.Context, slotID, consumerID string, ttl time.Duration) (bool, error) {
	res := c.client.SetNX(ctx, "slot:"+slotID, consumerID, ttl)
	return res.Val(), res.Err()
}

func (c *Cache) ReleaseSlotLock(ctx context.Context, slotID string) error {
	return c.client.Del(ctx, "slot:"+slotID).Err()
}
