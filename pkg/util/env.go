package util

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// LoadEnv 按环境加载 .env 与 .env.<env>，已存在的环境变量不会被覆盖
func LoadEnv(env string) error {
	files := make([]string, 0, 2)
	for _, f := range []string{".env." + env, ".env"} {
		if _, err := os.Stat(f); err == nil {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return nil
	}
	return godotenv.Load(files...)
}

func GetEnv(key string) string {
	return os.Getenv(key)
}

// GetEnvOr 未设置时返回 def
func GetEnvOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func GetIntEnv(key string) int64 {
	return cast.ToInt64(os.Getenv(key))
}

func GetBoolEnv(key string) bool {
	return cast.ToBool(os.Getenv(key))
}

func GetFloatEnv(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return def
	}
	return f
}

// GetDurationEnv 支持 "1500ms"、"10s" 以及纯数字（按纳秒）
func GetDurationEnv(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		return def
	}
	return d
}
