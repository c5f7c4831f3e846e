package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// localCache 基于 expirable LRU 的进程内缓存。
// LRU 只支持统一的 TTL，单次 Set 的 expiration 参数被忽略。
type localCache struct {
	lru *expirable.LRU[string, []byte]
}

// NewLocalCache 创建本地缓存
func NewLocalCache(config LocalConfig) Cache {
	size := config.MaxSize
	if size <= 0 {
		size = 1024
	}
	return &localCache{
		lru: expirable.NewLRU[string, []byte](size, nil, config.DefaultExpiration),
	}
}

func (lc *localCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := lc.lru.Get(key)
	if !ok {
		return nil, false
	}
	return clone(v), true
}

func (lc *localCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	lc.lru.Add(key, clone(value))
	return nil
}

func (lc *localCache) Delete(_ context.Context, key string) error {
	lc.lru.Remove(key)
	return nil
}

func (lc *localCache) Exists(_ context.Context, key string) bool {
	return lc.lru.Contains(key)
}

func (lc *localCache) Keys(_ context.Context) []string {
	return lc.lru.Keys()
}

func (lc *localCache) Clear(_ context.Context) error {
	lc.lru.Purge()
	return nil
}

func (lc *localCache) Close() error { return nil }

// clone 防止调用方修改缓存内部的切片
func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
