package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCache Redis缓存实现，所有键都带 config.Prefix
type redisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache 创建Redis缓存
func NewRedisCache(config RedisConfig) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return newRedisCacheWithClient(client, config.Prefix), nil
}

func newRedisCacheWithClient(client *redis.Client, prefix string) *redisCache {
	return &redisCache{client: client, prefix: prefix}
}

func (rc *redisCache) key(k string) string { return rc.prefix + k }

func (rc *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := rc.client.Get(ctx, rc.key(key)).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (rc *redisCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	if expiration < 0 {
		expiration = 0
	}
	return rc.client.Set(ctx, rc.key(key), value, expiration).Err()
}

func (rc *redisCache) Delete(ctx context.Context, key string) error {
	return rc.client.Del(ctx, rc.key(key)).Err()
}

func (rc *redisCache) Exists(ctx context.Context, key string) bool {
	return rc.client.Exists(ctx, rc.key(key)).Val() > 0
}

func (rc *redisCache) Keys(ctx context.Context) []string {
	var keys []string
	iter := rc.client.Scan(ctx, 0, rc.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), rc.prefix))
	}
	return keys
}

// Clear 只删除本前缀下的键，不做 FlushDB
func (rc *redisCache) Clear(ctx context.Context) error {
	iter := rc.client.Scan(ctx, 0, rc.prefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 100 {
			if err := rc.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if len(batch) > 0 {
		return rc.client.Del(ctx, batch...).Err()
	}
	return nil
}

func (rc *redisCache) Close() error {
	return rc.client.Close()
}
