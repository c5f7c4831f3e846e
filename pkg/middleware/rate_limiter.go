package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"SafeCircle/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimiterConfig 限流配置
//
// Rate: "60-M"；Identifier: "ip" | "device" | "ip+route"
// PerRouteRates: {"/api/alerts": "20-M"}，键为路由模板
// SkipPaths 前缀匹配，如 "/metrics"、"/ws/"
type RateLimiterConfig struct {
	Rate           string            `json:"rate"`
	PerRouteRates  map[string]string `json:"per_route_rates"`
	Identifier     string            `json:"identifier"`
	HeaderName     string            `json:"header_name"` // identifier=device 时读取的请求头
	WhitelistCIDRs []string          `json:"whitelist_cidrs"`
	BlacklistCIDRs []string          `json:"blacklist_cidrs"`
	SkipPaths      []string          `json:"skip_paths"`
	AddHeaders     bool              `json:"add_headers"`
	DenyStatus     int               `json:"deny_status"`
	DenyMessage    string            `json:"deny_message"`
}

// DefaultRateLimiterConfig 触发类接口单独收紧
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Rate:       "120-M",
		Identifier: "ip",
		HeaderName: "X-Device-ID",
		SkipPaths:  []string{"/metrics", "/ws/", "/api/events"},
		AddHeaders: true,
		DenyStatus: http.StatusTooManyRequests,
	}
}

// MetricsObserver 限流结果上报
type MetricsObserver interface {
	OnAllow(route string, key string)
	OnDeny(route string, key string)
}

// PrometheusObserver 记到 metrics 的独立 Registry 上
type PrometheusObserver struct {
	m *metrics.Metrics
}

func NewPrometheusObserver(m *metrics.Metrics) *PrometheusObserver {
	return &PrometheusObserver{m: m}
}

func (p *PrometheusObserver) OnAllow(route, _ string) { p.m.RecordRateLimit(route, "allow") }
func (p *PrometheusObserver) OnDeny(route, _ string)  { p.m.RecordRateLimit(route, "deny") }

// RateLimiter 按速率字符串缓存 limiter 实例
type RateLimiter struct {
	cfg            *RateLimiterConfig
	store          limiter.Store
	observer       MetricsObserver
	limitersByRate map[string]*limiter.Limiter
	mu             sync.RWMutex
	whiteCIDRs     []*net.IPNet
	blackCIDRs     []*net.IPNet
}

// NewRateLimiter store 为 nil 时使用内存存储
func NewRateLimiter(cfg RateLimiterConfig, store limiter.Store) *RateLimiter {
	if store == nil {
		store = memory.NewStore()
	}
	l := &RateLimiter{
		cfg:            &cfg,
		store:          store,
		limitersByRate: make(map[string]*limiter.Limiter),
	}
	l.compileCIDRs()
	return l
}

func (l *RateLimiter) WithObserver(observer MetricsObserver) *RateLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observer = observer
	return l
}

// Middleware 返回 Gin 中间件
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := l.getConfig()
		route := routeOf(c)

		if pathSkipped(*cfg, route) {
			c.Next()
			return
		}

		clientIP := clientIPFromRequest(c)
		l.mu.RLock()
		white, black := ipListed(clientIP, l.whiteCIDRs), ipListed(clientIP, l.blackCIDRs)
		l.mu.RUnlock()
		if white {
			c.Next()
			return
		}
		if black {
			l.report(route, "blacklist", false)
			denyTooMany(c, *cfg)
			return
		}

		key := buildLimitKey(*cfg, c, clientIP, route)
		lim := l.getLimiter(l.pickRateForRoute(cfg, route))

		lctx, err := lim.Get(c, key)
		if err != nil {
			// 存储故障时放行
			c.Next()
			return
		}
		if cfg.AddHeaders {
			setStandardHeaders(c, lctx)
		}
		if lctx.Reached {
			setRetryAfter(c, time.Until(time.Unix(lctx.Reset, 0)))
			l.report(route, key, false)
			denyTooMany(c, *cfg)
			return
		}

		l.report(route, key, true)
		c.Next()
	}
}

func (l *RateLimiter) report(route, key string, allowed bool) {
	l.mu.RLock()
	obs := l.observer
	l.mu.RUnlock()
	if obs == nil {
		return
	}
	if allowed {
		obs.OnAllow(route, key)
	} else {
		obs.OnDeny(route, key)
	}
}

func (l *RateLimiter) getLimiter(rateStr string) *limiter.Limiter {
	l.mu.RLock()
	lim, ok := l.limitersByRate[rateStr]
	l.mu.RUnlock()
	if ok {
		return lim
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok = l.limitersByRate[rateStr]; ok {
		return lim
	}
	r, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		r = limiter.Rate{Period: time.Second, Limit: 10}
	}
	lim = limiter.New(l.store, r)
	l.limitersByRate[rateStr] = lim
	return lim
}

func (l *RateLimiter) pickRateForRoute(cfg *RateLimiterConfig, route string) string {
	if r, ok := cfg.PerRouteRates[route]; ok && r != "" {
		return r
	}
	if cfg.Rate != "" {
		return cfg.Rate
	}
	return "10-S"
}

func (l *RateLimiter) getConfig() *RateLimiterConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// UpdateConfig 运行时替换配置，已缓存的 limiter 保留
func (l *RateLimiter) UpdateConfig(cfg RateLimiterConfig) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg = &cfg
	l.compileCIDRs()
}

func (l *RateLimiter) compileCIDRs() {
	l.whiteCIDRs = parseCIDRs(l.cfg.WhitelistCIDRs)
	l.blackCIDRs = parseCIDRs(l.cfg.BlacklistCIDRs)
}

func parseCIDRs(list []string) []*net.IPNet {
	var out []*net.IPNet
	for _, c := range list {
		if _, ipnet, err := net.ParseCIDR(strings.TrimSpace(c)); err == nil {
			out = append(out, ipnet)
		}
	}
	return out
}

func routeOf(c *gin.Context) string {
	if r := c.FullPath(); r != "" {
		return r
	}
	return c.Request.URL.Path
}

func pathSkipped(cfg RateLimiterConfig, route string) bool {
	for _, pref := range cfg.SkipPaths {
		if pref != "" && strings.HasPrefix(route, pref) {
			return true
		}
	}
	return false
}

func clientIPFromRequest(c *gin.Context) string {
	return strings.TrimPrefix(c.ClientIP(), "::ffff:")
}

func ipListed(ip string, nets []*net.IPNet) bool {
	pip := net.ParseIP(ip)
	if pip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(pip) {
			return true
		}
	}
	return false
}

func buildLimitKey(cfg RateLimiterConfig, c *gin.Context, ip, route string) string {
	switch cfg.Identifier {
	case "device":
		if hv := strings.TrimSpace(c.GetHeader(cfg.HeaderName)); hv != "" {
			return "dev:" + hv
		}
		return "ip:" + ip
	case "ip+route":
		return "iprt:" + ip + ":" + route
	default:
		return "ip:" + ip
	}
}

func setStandardHeaders(c *gin.Context, ctx limiter.Context) {
	c.Header("X-RateLimit-Limit", strconv.FormatInt(ctx.Limit, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(ctx.Remaining, 10))
	resetSec := int(time.Until(time.Unix(ctx.Reset, 0)).Seconds())
	if resetSec < 0 {
		resetSec = 0
	}
	c.Header("X-RateLimit-Reset", strconv.Itoa(resetSec))
}

func setRetryAfter(c *gin.Context, d time.Duration) {
	sec := int(d.Seconds())
	if sec < 0 {
		sec = 0
	}
	c.Header("Retry-After", strconv.Itoa(sec))
}

func denyTooMany(c *gin.Context, cfg RateLimiterConfig) {
	status := cfg.DenyStatus
	if status == 0 {
		status = http.StatusTooManyRequests
	}
	msg := cfg.DenyMessage
	if msg == "" {
		msg = "Too Many Requests"
	}
	c.AbortWithStatusJSON(status, gin.H{"code": status * 100, "message": msg})
}
