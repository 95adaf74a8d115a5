package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "notif_snapshot:"

// Redis shares snapshots between server instances.
type Redis struct {
	rdb    *redis.Client
	maxAge time.Duration
}

func NewRedis(rdb *redis.Client, maxAge time.Duration) *Redis {
	return &Redis{rdb: rdb, maxAge: maxAge}
}

func (r *Redis) Get(ctx context.Context, key string) (*Snapshot, bool) {
	raw, err := r.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false
	}
	return &s, true
}

func (r *Redis) Set(ctx context.Context, key string, s Snapshot) error {
	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now()
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}
	return r.rdb.Set(ctx, redisKeyPrefix+key, raw, r.maxAge).Err()
}

func (r *Redis) Invalidate(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, redisKeyPrefix+key).Err()
}
