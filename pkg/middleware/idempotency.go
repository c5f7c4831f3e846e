package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"SafeCircle/pkg/cache"
	"SafeCircle/pkg/errors"

	"github.com/gin-gonic/gin"
)

// IdemStore 幂等键账本
type IdemStore interface {
	Set(key string, ttl time.Duration) bool // 首次写入返回 true，已存在返回 false
}

// CacheIdemStore 复用会话缓存后端（gocache / redis），键带 TTL
type CacheIdemStore struct {
	mu     sync.Mutex
	cache  cache.Cache
	prefix string
}

func NewCacheIdemStore(c cache.Cache) *CacheIdemStore {
	return &CacheIdemStore{cache: c, prefix: "idem:"}
}

func (s *CacheIdemStore) Set(key string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx := context.Background()
	k := s.prefix + key
	if s.cache.Exists(ctx, k) {
		return false
	}
	return s.cache.Set(ctx, k, []byte{1}, ttl) == nil
}

type IdempotencyConfig struct {
	HeaderName string        // 默认 Idempotency-Key
	TTL        time.Duration // 重复请求的拒绝窗口
	Store      IdemStore     // 为空时使用 gocache
}

// IdempotencyMiddleware 拒绝窗口内的重复提交（面板按钮连点）。
// 没有请求头时以 方法+路径+请求体 的哈希作为键。
func IdempotencyMiddleware(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "Idempotency-Key"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Second
	}
	store := cfg.Store
	if store == nil {
		store = NewCacheIdemStore(cache.NewGoCache(cache.LocalConfig{CleanupInterval: time.Minute}))
	}
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}
		key := strings.TrimSpace(c.GetHeader(cfg.HeaderName))
		if key == "" {
			var body []byte
			if c.Request.Body != nil {
				body, _ = io.ReadAll(c.Request.Body)
				c.Request.Body = io.NopCloser(bytes.NewReader(body))
			}
			h := sha256.New()
			h.Write([]byte(c.Request.Method + " " + c.Request.URL.Path + "\n"))
			h.Write(body)
			key = hex.EncodeToString(h.Sum(nil))
		}
		if !store.Set(key, cfg.TTL) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"code": errors.CodeConflict, "message": "duplicate request"})
			return
		}
		c.Next()
	}
}
