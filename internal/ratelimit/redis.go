package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisConfig addresses the Redis counter backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisCounter keeps counters in Redis with INCR and a TTL.
type RedisCounter struct {
	rdb    goredis.UniversalClient
	prefix string
}

// NewRedisClient dials Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// NewRedisCounter uses rdb for counters under the "leadkit:rl:" key space.
func NewRedisCounter(rdb goredis.UniversalClient) *RedisCounter {
	return &RedisCounter{rdb: rdb, prefix: "leadkit:rl:"}
}

// Increment implements Counter. INCR and EXPIRE NX run in one MULTI/EXEC:
// the TTL is set by the first hit of a bucket and later hits leave it alone.
func (c *RedisCounter) Increment(ctx context.Context, keyID, bucket string, ttl time.Duration) (int64, error) {
	key := c.prefix + keyID + ":" + bucket
	var incr *goredis.IntCmd
	_, err := c.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	return incr.Val(), nil
}
