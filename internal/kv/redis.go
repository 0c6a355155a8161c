package kv

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// keyPrefix namespaces cache entries inside a shared Redis database.
const keyPrefix = "appraisal:cache:"

// RedisBackend implements Backend on go-redis. Expiry rides Redis's
// native TTL, so DeleteExpired has nothing to do here.
type RedisBackend struct {
	client *redis.Client
}

// NewRedis connects and pings a Redis server.
func NewRedis(ctx context.Context, addr, password string, db int) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, eris.Wrap(err, "redis: ping")
	}
	return &RedisBackend{client: client}, nil
}

// NewRedisFromClient wraps an existing client (tests inject miniredis here).
func NewRedisFromClient(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (r *RedisBackend) Read(ctx context.Context, key string) (*Entry, error) {
	raw, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "redis: read entry")
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, eris.Wrap(err, "redis: unmarshal entry")
	}
	if e.Expired(time.Now()) {
		return nil, nil
	}

	hits, err := r.client.Get(ctx, keyPrefix+key+":hits").Int64()
	if err == nil {
		e.Hits = hits
	}
	return &e, nil
}

func (r *RedisBackend) Write(ctx context.Context, entry Entry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		// Already expired; nothing worth storing.
		return nil
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrap(err, "redis: marshal entry")
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, keyPrefix+entry.Key, raw, ttl)
	pipe.Set(ctx, keyPrefix+entry.Key+":hits", entry.Hits, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return eris.Wrap(err, "redis: write entry")
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	err := r.client.Del(ctx, keyPrefix+key, keyPrefix+key+":hits").Err()
	return eris.Wrap(err, "redis: delete entry")
}

func (r *RedisBackend) Touch(ctx context.Context, key string) error {
	err := r.client.Incr(ctx, keyPrefix+key+":hits").Err()
	return eris.Wrap(err, "redis: touch entry")
}

func (r *RedisBackend) DeleteMatching(ctx context.Context, source, substr string) (int, error) {
	var cursor uint64
	removed := 0
	for {
		keys, next, err := r.client.Scan(ctx, cursor, keyPrefix+"*", 200).Result()
		if err != nil {
			return removed, eris.Wrap(err, "redis: scan")
		}
		for _, full := range keys {
			if strings.HasSuffix(full, ":hits") {
				continue
			}
			key := strings.TrimPrefix(full, keyPrefix)
			if substr != "" && !strings.Contains(key, substr) {
				continue
			}
			if source != "" && !strings.HasPrefix(key, source+":") {
				continue
			}
			if err := r.client.Del(ctx, full, full+":hits").Err(); err != nil {
				return removed, eris.Wrap(err, "redis: delete matching")
			}
			removed++
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

// DeleteExpired is a no-op: Redis evicts on its own TTLs.
func (r *RedisBackend) DeleteExpired(context.Context) (int, error) {
	return 0, nil
}

func (r *RedisBackend) Migrate(context.Context) error { return nil }

func (r *RedisBackend) Close() error {
	return r.client.Close()
}
