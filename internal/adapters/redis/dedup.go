package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Dedup claims externally supplied event ids so at-least-once webhook
// delivery is processed once.
type Dedup struct {
	client *redis.Client
}

func NewDedup(client *redis.Client) *Dedup {
	return &Dedup{client: client}
}

// Claim returns true when the event id was not seen within the TTL window.
func (d *Dedup) Claim(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	res := d.client.SetNX(ctx, "evt:"+eventID, 1, ttl)
	return res.Val(), res.Err()
}

// Release frees a claim so a failed handler can be retried by redelivery.
func (d *Dedup) Release(ctx context.Context, eventID string) error {
	return d.client.Del(ctx, "evt:"+eventID).Err()
}
