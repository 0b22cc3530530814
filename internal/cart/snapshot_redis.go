package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront/pkg/db/models"
	pkgredis "github.com/angelmondragon/storefront/pkg/redis"
)

type kvStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartSnapshotKey(buyerID string) string
}

type redisSnapshot struct {
	Items     []models.CartSnapshotItem `json:"items"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// RedisSnapshotStore keeps one JSON document per buyer, expiring after ttl.
type RedisSnapshotStore struct {
	kv  kvStore
	ttl time.Duration
	now func() time.Time
}

func NewRedisSnapshotStore(kv kvStore, ttl time.Duration) (*RedisSnapshotStore, error) {
	if kv == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &RedisSnapshotStore{kv: kv, ttl: ttl, now: time.Now}, nil
}

func (r *RedisSnapshotStore) Load(ctx context.Context, buyerID string) ([]models.CartSnapshotItem, error) {
	raw, err := r.kv.Get(ctx, r.kv.CartSnapshotKey(buyerID))
	if err != nil {
		if pkgredis.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load cart snapshot: %w", err)
	}
	var snap redisSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("decode cart snapshot: %w", err)
	}
	return snap.Items, nil
}

func (r *RedisSnapshotStore) Save(ctx context.Context, buyerID string, items []models.CartSnapshotItem) error {
	payload, err := json.Marshal(redisSnapshot{Items: items, UpdatedAt: r.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode cart snapshot: %w", err)
	}
	if err := r.kv.Set(ctx, r.kv.CartSnapshotKey(buyerID), string(payload), r.ttl); err != nil {
		return fmt.Errorf("save cart snapshot: %w", err)
	}
	return nil
}

func (r *RedisSnapshotStore) Delete(ctx context.Context, buyerID string) error {
	if err := r.kv.Del(ctx, r.kv.CartSnapshotKey(buyerID)); err != nil {
		return fmt.Errorf("delete cart snapshot: %w", err)
	}
	return nil
}
