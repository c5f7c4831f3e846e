package logger

import (
	"os"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig 日志配置
type LogConfig struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"`
	Filename   string `envconfig:"LOG_FILENAME"`
	MaxSize    int    `envconfig:"LOG_MAX_SIZE" default:"64"` // MB
	MaxAge     int    `envconfig:"LOG_MAX_AGE" default:"7"`   // days
	MaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"3"`
}

// Lg 全局 logger，Init 之前为 Nop，测试里不会输出
var Lg = zap.NewNop()

var atomicLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Init 初始化全局 logger。mode 为 development 时输出彩色控制台格式，
// 其他模式输出 JSON；配置了 Filename 时同时写入 lumberjack 滚动文件。
func Init(cfg LogConfig, mode string) error {
	atomicLevel.SetLevel(parseLevel(cfg.Level))

	var encCfg zapcore.EncoderConfig
	var enc zapcore.Encoder
	if mode == "development" {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "timestamp"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	sinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if cfg.Filename != "" {
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSize,
			MaxAge:     cfg.MaxAge,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}))
	}

	core := zapcore.NewCore(enc, zapcore.NewMultiWriteSyncer(sinks...), atomicLevel)
	Lg = zap.New(core, zap.AddCaller())
	if host, err := os.Hostname(); err == nil && host != "" {
		Lg = Lg.With(zap.String("hostname", host))
	}
	zap.ReplaceGlobals(Lg)
	return nil
}

// SetLevel 运行时调整日志级别
func SetLevel(level string) {
	atomicLevel.SetLevel(parseLevel(level))
}

// Named 返回带组件名的子 logger
func Named(name string) *zap.Logger {
	return Lg.Named(name)
}

func Debug(msg string, fields ...zap.Field) {
	Lg.WithOptions(zap.AddCallerSkip(1)).Debug(msg, fields...)
}
func Info(msg string, fields ...zap.Field) { Lg.WithOptions(zap.AddCallerSkip(1)).Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field) { Lg.WithOptions(zap.AddCallerSkip(1)).Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) {
	Lg.WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...)
}

// Sync 刷新缓冲
func Sync() {
	_ = Lg.Sync()
}
