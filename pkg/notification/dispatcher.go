package notification

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Dispatcher 消息分发接口，只负责发出，不确认送达
type Dispatcher interface {
	Dispatch(ctx context.Context, ch Channel, address, body string) error
}

// Intent 一次系统意图调用
type Intent struct {
	Channel Channel `json:"channel"`
	Address string  `json:"address"`
	URI     string  `json:"uri"`
}

// Launcher 便于替换/注入的意图执行端（设备通道、日志、测试桩）
type Launcher interface {
	Launch(ctx context.Context, intent Intent) error
}

// LauncherFunc 函数适配
type LauncherFunc func(ctx context.Context, intent Intent) error

func (f LauncherFunc) Launch(ctx context.Context, intent Intent) error { return f(ctx, intent) }

// IntentDispatcher 把 (channel, address, body) 转成 URI 交给 Launcher
type IntentDispatcher struct {
	launcher Launcher
}

func NewIntentDispatcher(l Launcher) *IntentDispatcher {
	return &IntentDispatcher{launcher: l}
}

func (d *IntentDispatcher) Dispatch(ctx context.Context, ch Channel, address, body string) error {
	if d.launcher == nil {
		return fmt.Errorf("launcher not configured")
	}
	uri, err := BuildURI(ch, address, body)
	if err != nil {
		return err
	}
	return d.launcher.Launch(ctx, Intent{Channel: ch, Address: address, URI: uri})
}

// LogLauncher 没有设备连接时只记录日志，drill 命令使用
type LogLauncher struct {
	Logger *zap.Logger
}

func (l LogLauncher) Launch(_ context.Context, intent Intent) error {
	lg := l.Logger
	if lg == nil {
		lg = zap.L()
	}
	lg.Info("launch intent", zap.String("channel", string(intent.Channel)),
		zap.String("address", intent.Address), zap.String("uri", intent.URI))
	return nil
}

// FallbackLauncher 依次尝试，直到有一个成功
type FallbackLauncher []Launcher

func (f FallbackLauncher) Launch(ctx context.Context, intent Intent) error {
	var lastErr error
	for _, l := range f {
		if l == nil {
			continue
		}
		if err := l.Launch(ctx, intent); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no launcher available")
	}
	return lastErr
}

// RecordingLauncher 记录所有意图，测试与演练使用
type RecordingLauncher struct {
	mu      sync.Mutex
	intents []Intent
}

func (r *RecordingLauncher) Launch(_ context.Context, intent Intent) error {
	r.mu.Lock()
	r.intents = append(r.intents, intent)
	r.mu.Unlock()
	return nil
}

func (r *RecordingLauncher) Intents() []Intent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Intent, len(r.intents))
	copy(out, r.intents)
	return out
}
