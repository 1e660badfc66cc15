package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/redis/go-redis/v9"
)

// setIfNewer keeps the snapshot with the latest updated_at. Events of one
// order travel on different topics, so the projector may see them out of
// order.
var setIfNewer = redis.NewScript(`
local cur = tonumber(redis.call('HGET', KEYS[1], 'v') or '0')
if cur > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'snap', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

type StatusCache struct {
	rdb redis.Cmdable
	ttl int64
}

func NewStatusCache(rdb redis.Cmdable) *StatusCache {
	return &StatusCache{rdb: rdb, ttl: TTLStatusCache.Milliseconds()}
}

func (c *StatusCache) SetStatus(ctx context.Context, snap orders.StatusSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	key := fmt.Sprintf(KeyOrderStatus, snap.OrderID)
	if err := setIfNewer.Run(ctx, c.rdb, []string{key}, snap.UpdatedAt.UnixNano(), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("setIfNewer[%s]: %w", key, err)
	}
	return nil
}

func (c *StatusCache) GetStatus(ctx context.Context, orderID string) (orders.StatusSnapshot, bool, error) {
	var snap orders.StatusSnapshot

	key := fmt.Sprintf(KeyOrderStatus, orderID)
	raw, err := c.rdb.HGet(ctx, key, "snap").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return snap, false, nil
		}
		return snap, false, fmt.Errorf("hget[%s]: %w", key, err)
	}

	if err := json.Unmarshal(raw, &snap); err != nil {
		return snap, false, fmt.Errorf("json.Unmarshal: %w", err)
	}
	return snap, true, nil
}

// Deduper remembers processed event ids per consumer service.
type Deduper struct {
	rdb     redis.Cmdable
	service string
}

func NewDeduper(rdb redis.Cmdable, service string) *Deduper {
	return &Deduper{rdb: rdb, service: service}
}

func (d *Deduper) Seen(ctx context.Context, eventID string) (bool, error) {
	return Exists(ctx, d.rdb, fmt.Sprintf(KeyDedup, d.service, eventID))
}

// Mark is called only after the event was handled, so a failed attempt is
// retried on redelivery.
func (d *Deduper) Mark(ctx context.Context, eventID string) error {
	return d.rdb.Set(ctx, fmt.Sprintf(KeyDedup, d.service, eventID), "1", TTLDedup).Err()
}
