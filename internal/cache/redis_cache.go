package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/taxi-admin/internal/models"
)

// RedisCache keeps the customer profile map in a Redis hash so that
// several admin instances can share one warm copy.
type RedisCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisCache(addr, password, key string, ttl time.Duration) *RedisCache {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisCache{client: c, key: key, ttl: ttl}
}

func (r *RedisCache) GetAll(ctx context.Context) (map[string]models.CustomerProfile, bool) {
	raw, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	out := make(map[string]models.CustomerProfile, len(raw))
	for id, v := range raw {
		var p models.CustomerProfile
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			// one bad entry poisons the whole map; fall back to the store
			return nil, false
		}
		out[id] = p
	}
	return out, true
}

func (r *RedisCache) SetAll(ctx context.Context, profiles map[string]models.CustomerProfile) error {
	values := make(map[string]interface{}, len(profiles))
	for id, p := range profiles {
		b, err := json.Marshal(p)
		if err != nil {
			return err
		}
		values[id] = string(b)
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key)
	if len(values) > 0 {
		pipe.HSet(ctx, r.key, values)
		pipe.Expire(ctx, r.key, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisCache) Close() error { return r.client.Close() }
