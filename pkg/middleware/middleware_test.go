package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"SafeCircle/pkg/cache"
	"SafeCircle/pkg/i18n"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() { gin.SetMode(gin.TestMode) }

type countingObserver struct {
	mu          sync.Mutex
	allow, deny int
}

func (o *countingObserver) OnAllow(string, string) { o.mu.Lock(); o.allow++; o.mu.Unlock() }
func (o *countingObserver) OnDeny(string, string)  { o.mu.Lock(); o.deny++; o.mu.Unlock() }

func do(r http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter(t *testing.T) {
	cfg := DefaultRateLimiterConfig()
	cfg.Rate = "2-M"
	cfg.PerRouteRates = map[string]string{"/open": "100-M"}
	obs := &countingObserver{}
	rl := NewRateLimiter(cfg, nil).WithObserver(obs)

	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/panic", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/open", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/panic", "", nil).Code)
	w := do(r, http.MethodGet, "/panic", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = do(r, http.MethodGet, "/panic", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/open", "", nil).Code)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/metrics", "", nil).Code)
	}
	assert.Equal(t, 3, obs.allow)
	assert.Equal(t, 1, obs.deny)
}

func TestRateLimiterLists(t *testing.T) {
	cfg := DefaultRateLimiterConfig()
	cfg.Rate = "1-M"
	cfg.BlacklistCIDRs = []string{"192.0.2.0/24"}
	rl := NewRateLimiter(cfg, nil)
	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	// httptest 的 RemoteAddr 是 192.0.2.1
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/x", "", nil).Code)

	cfg.BlacklistCIDRs = nil
	cfg.WhitelistCIDRs = []string{"192.0.2.0/24"}
	rl.UpdateConfig(cfg)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/x", "", nil).Code)
	}
}

func TestIdempotency(t *testing.T) {
	r := gin.New()
	r.Use(IdempotencyMiddleware(IdempotencyConfig{TTL: time.Minute}))
	hits := 0
	r.POST("/alerts", func(c *gin.Context) { hits++; c.Status(http.StatusAccepted) })
	r.GET("/alerts", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusAccepted, do(r, http.MethodPost, "/alerts", `{"kind":"panic"}`, nil).Code)
	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/alerts", `{"kind":"panic"}`, nil).Code)
	assert.Equal(t, http.StatusAccepted, do(r, http.MethodPost, "/alerts", `{"kind":"silent"}`, nil).Code)

	h := map[string]string{"Idempotency-Key": "k1"}
	assert.Equal(t, http.StatusAccepted, do(r, http.MethodPost, "/alerts", `{"kind":"test"}`, h).Code)
	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/alerts", `{"kind":"other"}`, h).Code)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/alerts", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/alerts", "", nil).Code)
	assert.Equal(t, 3, hits)
}

func TestCacheIdemStoreExpires(t *testing.T) {
	s := NewCacheIdemStore(cache.NewGoCache(cache.LocalConfig{CleanupInterval: time.Minute}))
	assert.True(t, s.Set("a", 30*time.Millisecond))
	assert.False(t, s.Set("a", 30*time.Millisecond))
	time.Sleep(50 * time.Millisecond)
	assert.True(t, s.Set("a", 30*time.Millisecond))
}

func TestLanguageMiddleware(t *testing.T) {
	msgs, err := i18n.NewI18nSupport("en")
	require.NoError(t, err)

	r := gin.New()
	r.Use(LanguageMiddleware(msgs))
	r.GET("/lang", func(c *gin.Context) { c.String(http.StatusOK, Lang(c)) })

	assert.Equal(t, "en", do(r, http.MethodGet, "/lang", "", nil).Body.String())
	assert.Equal(t, "hi", do(r, http.MethodGet, "/lang?lang=hi", "", nil).Body.String())
	w := do(r, http.MethodGet, "/lang", "", map[string]string{"Accept-Language": "hi-IN,hi;q=0.9"})
	assert.Equal(t, "hi", w.Body.String())
	assert.Equal(t, "hi", w.Header().Get("Content-Language"))
	assert.Equal(t, "en", do(r, http.MethodGet, "/lang?lang=fr", "", nil).Body.String())
}

func TestAccessLogSetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(AccessLogMiddleware(zap.NewNop()))
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, RequestID(c)) })

	w := do(r, http.MethodGet, "/x", "", map[string]string{HeaderRequestID: "req-1"})
	assert.Equal(t, "req-1", w.Body.String())

	w = do(r, http.MethodGet, "/x", "", nil)
	assert.NotEmpty(t, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get(HeaderRequestID))
}
