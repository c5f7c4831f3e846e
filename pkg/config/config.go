package config

import (
	"log"
	"os"
	"time"

	"SafeCircle/pkg/cache"
	"SafeCircle/pkg/logger"
	"SafeCircle/pkg/storage"
	"SafeCircle/pkg/util"

	"github.com/kelseyhightower/envconfig"
)

// 摇一摇阈值的合法区间，不同设备灵敏度差异很大
const (
	MinShakeThreshold = 10.0
	MaxShakeThreshold = 18.0
)

// AlertingConfig 告警引擎的可调参数
type AlertingConfig struct {
	ShakeThreshold   float64       `envconfig:"SHAKE_THRESHOLD" default:"12"`
	ShakeCooldown    time.Duration `envconfig:"SHAKE_COOLDOWN" default:"1000ms"`
	ButtonCooldown   time.Duration `envconfig:"BUTTON_COOLDOWN" default:"0s"`
	ManualCooldown   time.Duration `envconfig:"MANUAL_COOLDOWN" default:"0s"`
	TimerCooldown    time.Duration `envconfig:"TIMER_COOLDOWN" default:"0s"`
	Stagger          time.Duration `envconfig:"DISPATCH_STAGGER" default:"1000ms"`
	LocationTimeout  time.Duration `envconfig:"LOCATION_TIMEOUT" default:"10s"`
	HighAccuracy     bool          `envconfig:"LOCATION_HIGH_ACCURACY" default:"true"`
	CountryCode      string        `envconfig:"DEFAULT_COUNTRY_CODE" default:"+91"`
	AlertLogCap      int           `envconfig:"ALERT_LOG_CAP" default:"100"`
	EvaluatorTick    time.Duration `envconfig:"EVALUATOR_TICK" default:"30s"`
	CountdownSeconds int           `envconfig:"SOS_COUNTDOWN_SECONDS" default:"5"`
	EmergencyNumber  string        `envconfig:"EMERGENCY_NUMBER" default:"100"`
	Channel          string        `envconfig:"DISPATCH_CHANNEL" default:"whatsapp"`
	DispatchRetries  int           `envconfig:"DISPATCH_RETRIES" default:"2"`
	Locale           string        `envconfig:"ALERT_LOCALE" default:"en"`
	CheckInReminder  string        `envconfig:"CHECKIN_REMINDER_CRON" default:""`
}

// Normalize 修正越界参数
func (c *AlertingConfig) Normalize() {
	if c.ShakeThreshold < MinShakeThreshold {
		c.ShakeThreshold = MinShakeThreshold
	}
	if c.ShakeThreshold > MaxShakeThreshold {
		c.ShakeThreshold = MaxShakeThreshold
	}
	if c.ShakeCooldown < time.Second {
		c.ShakeCooldown = time.Second
	}
	if c.AlertLogCap <= 0 {
		c.AlertLogCap = 100
	}
	if c.LocationTimeout <= 0 {
		c.LocationTimeout = 10 * time.Second
	}
	if c.EvaluatorTick <= 0 {
		c.EvaluatorTick = 30 * time.Second
	}
	if c.CountdownSeconds < 0 {
		c.CountdownSeconds = 0
	}
	if c.DispatchRetries < 0 {
		c.DispatchRetries = 0
	}
	if c.CountryCode == "" {
		c.CountryCode = "+91"
	}
	if c.EmergencyNumber == "" {
		c.EmergencyNumber = "100"
	}
}

// DefaultAlerting 与 envconfig default 标签一致的默认值
func DefaultAlerting() AlertingConfig {
	return AlertingConfig{
		ShakeThreshold:   12,
		ShakeCooldown:    time.Second,
		Stagger:          time.Second,
		LocationTimeout:  10 * time.Second,
		HighAccuracy:     true,
		CountryCode:      "+91",
		AlertLogCap:      100,
		EvaluatorTick:    30 * time.Second,
		CountdownSeconds: 5,
		EmergencyNumber:  "100",
		Channel:          "whatsapp",
		DispatchRetries:  2,
		Locale:           "en",
	}
}

type Config struct {
	Mode            string `env:"MODE"`
	Addr            string `env:"ADDR"`
	APIPrefix       string `env:"API_PREFIX"`
	MetricsPath     string `env:"METRICS_PATH"`
	DBDriver        string `env:"DB_DRIVER"`
	DSN             string `env:"DSN"`
	GeoIPDB         string `env:"GEOIP_DB"`
	LanguageEnabled bool   `env:"LANGUAGE_ENABLED"`
	RateLimit       string `env:"RATE_LIMIT"`
	ExportEnabled   bool   `env:"EXPORT_ENABLED"`
	BackupSchedule  string `env:"BACKUP_SCHEDULE"`
	Log             logger.LogConfig
	Cache           cache.Config
	Alerting        AlertingConfig
	Storage         storage.Config
}

var GlobalConfig *Config

func Load() error {
	// 1. 根据环境加载 .env 文件
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	if err := util.LoadEnv(env); err != nil {
		log.Printf("Failed to load .env file: %v", err)
	}

	// 2. 顶层配置
	cfg := &Config{
		Mode:            util.GetEnvOr("MODE", env),
		Addr:            util.GetEnvOr("ADDR", ":8080"),
		APIPrefix:       util.GetEnvOr("API_PREFIX", "/api"),
		MetricsPath:     util.GetEnvOr("METRICS_PATH", "/metrics"),
		DBDriver:        util.GetEnv("DB_DRIVER"),
		DSN:             util.GetEnv("DSN"),
		GeoIPDB:         util.GetEnv("GEOIP_DB"),
		LanguageEnabled: util.GetBoolEnv("LANGUAGE_ENABLED"),
		RateLimit:       util.GetEnvOr("RATE_LIMIT", "120-M"),
		ExportEnabled:   util.GetBoolEnv("EXPORT_ENABLED"),
		BackupSchedule:  util.GetEnv("BACKUP_SCHEDULE"),
	}

	// 3. 分组配置交给 envconfig，带默认值
	for _, target := range []any{&cfg.Log, &cfg.Cache, &cfg.Alerting, &cfg.Storage} {
		if err := envconfig.Process("", target); err != nil {
			return err
		}
	}
	cfg.Alerting.Normalize()

	GlobalConfig = cfg
	return nil
}

// Default 不读环境变量的配置，drill 命令和测试使用
func Default() *Config {
	return &Config{
		Mode:        "development",
		Addr:        ":8080",
		APIPrefix:   "/api",
		MetricsPath: "/metrics",
		RateLimit:   "120-M",
		Log:         logger.LogConfig{Level: "info"},
		Cache:       cache.DefaultConfig(),
		Alerting:    DefaultAlerting(),
	}
}
