package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// goCacheWrapper go-cache包装器，支持逐键过期
type goCacheWrapper struct {
	cache *gocache.Cache
}

// NewGoCache 创建基于go-cache的本地缓存
func NewGoCache(config LocalConfig) Cache {
	return &goCacheWrapper{
		cache: gocache.New(config.DefaultExpiration, config.CleanupInterval),
	}
}

func (gc *goCacheWrapper) Get(_ context.Context, key string) ([]byte, bool) {
	v, found := gc.cache.Get(key)
	if !found {
		return nil, false
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false
	}
	return clone(b), true
}

func (gc *goCacheWrapper) Set(_ context.Context, key string, value []byte, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = gocache.DefaultExpiration
	}
	gc.cache.Set(key, clone(value), expiration)
	return nil
}

func (gc *goCacheWrapper) Delete(_ context.Context, key string) error {
	gc.cache.Delete(key)
	return nil
}

func (gc *goCacheWrapper) Exists(_ context.Context, key string) bool {
	_, found := gc.cache.Get(key)
	return found
}

func (gc *goCacheWrapper) Keys(_ context.Context) []string {
	items := gc.cache.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	return keys
}

func (gc *goCacheWrapper) Clear(_ context.Context) error {
	gc.cache.Flush()
	return nil
}

// Close go-cache不需要关闭连接
func (gc *goCacheWrapper) Close() error { return nil }
