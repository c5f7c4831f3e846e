package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// NewCache 创建缓存实例
func NewCache(config Config) (Cache, error) {
	switch strings.ToLower(config.Type) {
	case "", "local":
		return NewLocalCache(config.Local), nil
	case "gocache":
		return NewGoCache(config.Local), nil
	case "redis":
		return NewRedisCache(config.Redis)
	case "layered":
		return NewLayeredCache(config)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", config.Type)
	}
}

// NewLayeredCache 本地缓存 + Redis 两级
func NewLayeredCache(config Config) (Cache, error) {
	distributed, err := NewRedisCache(config.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis cache: %w", err)
	}
	return &layeredCache{local: NewLocalCache(config.Local), distributed: distributed}, nil
}

// layeredCache 读优先本地，写穿透到两层
type layeredCache struct {
	local       Cache
	distributed Cache
}

func (lc *layeredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if v, ok := lc.local.Get(ctx, key); ok {
		return v, true
	}
	v, ok := lc.distributed.Get(ctx, key)
	if ok {
		// 回填本地
		_ = lc.local.Set(ctx, key, v, 0)
	}
	return v, ok
}

func (lc *layeredCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	if err := lc.distributed.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	return lc.local.Set(ctx, key, value, expiration)
}

func (lc *layeredCache) Delete(ctx context.Context, key string) error {
	if err := lc.local.Delete(ctx, key); err != nil {
		return err
	}
	return lc.distributed.Delete(ctx, key)
}

func (lc *layeredCache) Exists(ctx context.Context, key string) bool {
	return lc.local.Exists(ctx, key) || lc.distributed.Exists(ctx, key)
}

func (lc *layeredCache) Keys(ctx context.Context) []string {
	return lc.distributed.Keys(ctx)
}

func (lc *layeredCache) Clear(ctx context.Context) error {
	if err := lc.local.Clear(ctx); err != nil {
		return err
	}
	return lc.distributed.Clear(ctx)
}

func (lc *layeredCache) Close() error {
	if err := lc.local.Close(); err != nil {
		return err
	}
	return lc.distributed.Close()
}
