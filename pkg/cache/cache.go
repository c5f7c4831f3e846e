package cache

import (
	"context"
	"time"
)

// Cache 会话级键值存储，值一律为已序列化的字节
type Cache interface {
	// Get 获取缓存值
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set 设置缓存值，expiration<=0 表示使用后端默认过期策略
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error

	// Delete 删除缓存
	Delete(ctx context.Context, key string) error

	// Exists 检查键是否存在
	Exists(ctx context.Context, key string) bool

	// Keys 列出当前命名空间下所有键
	Keys(ctx context.Context) []string

	// Clear 清空当前命名空间
	Clear(ctx context.Context) error

	// Close 关闭缓存连接
	Close() error
}

// Config 缓存配置
type Config struct {
	// 缓存类型: local | gocache | redis | layered
	Type string `json:"type" envconfig:"CACHE_TYPE" default:"local"`

	Redis RedisConfig `json:"redis"`

	Local LocalConfig `json:"local"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `json:"addr" envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `json:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `json:"db" envconfig:"REDIS_DB" default:"0"`

	// 键前缀，Clear/Keys 只作用于该前缀
	Prefix string `json:"prefix" envconfig:"REDIS_PREFIX" default:"safecircle:"`

	PoolSize     int           `json:"pool_size" envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `json:"min_idle_conns" envconfig:"REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `json:"dial_timeout" envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `json:"read_timeout" envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `json:"write_timeout" envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

// LocalConfig 本地缓存配置
type LocalConfig struct {
	MaxSize int `json:"max_size" envconfig:"LOCAL_CACHE_MAX_SIZE" default:"1024"`

	// 0 表示会话期间不过期
	DefaultExpiration time.Duration `json:"default_expiration" envconfig:"LOCAL_CACHE_DEFAULT_EXPIRATION" default:"0s"`

	CleanupInterval time.Duration `json:"cleanup_interval" envconfig:"LOCAL_CACHE_CLEANUP_INTERVAL" default:"10m"`
}

// DefaultConfig 返回进程内会话存储的默认配置
func DefaultConfig() Config {
	return Config{
		Type: "local",
		Local: LocalConfig{
			MaxSize:         1024,
			CleanupInterval: 10 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			Prefix:       "safecircle:",
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
}
