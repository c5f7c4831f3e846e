// Package device 把设备通道（websocket）适配成引擎需要的传感器、定位与意图接口。
package device

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"

	"SafeCircle/internal/location"
	"SafeCircle/internal/models"
	"SafeCircle/internal/trigger"
	"SafeCircle/pkg/errors"
	"SafeCircle/pkg/notification"
	"SafeCircle/pkg/util"
	"SafeCircle/pkg/websocket"

	"go.uber.org/zap"
)

const (
	evMotion = "device.motion"
	evButton = "device.button"
	evFix    = "device.fix"
)

// Bridge 实现 trigger.MotionSource、trigger.ButtonChannel、location.Provider 与 notification.Launcher
type Bridge struct {
	hub    *websocket.Hub
	events *util.Signals
	logger *zap.Logger

	mu            sync.Mutex
	buttonsActive bool
}

var (
	_ trigger.MotionSource  = (*Bridge)(nil)
	_ trigger.ButtonChannel = (*Bridge)(nil)
	_ location.Provider     = (*Bridge)(nil)
	_ notification.Launcher = (*Bridge)(nil)
)

func NewBridge(hub *websocket.Hub, lg *zap.Logger) *Bridge {
	if lg == nil {
		lg = zap.NewNop()
	}
	b := &Bridge{hub: hub, events: util.NewSignals(), logger: lg.Named("device")}
	hub.On(websocket.MessageTypeMotion, b.onMotion)
	hub.On(websocket.MessageTypeButton, b.onButton)
	hub.On(websocket.MessageTypeLocation, b.onLocation)
	hub.On(websocket.MessageTypeHello, func(conn *websocket.Connection, _ *websocket.Message) {
		b.logger.Info("device connected", zap.String("device", conn.DeviceID))
	})
	return b
}

func (b *Bridge) onMotion(_ *websocket.Connection, msg *websocket.Message) {
	var s trigger.MotionSample
	if err := msg.Decode(&s); err != nil {
		b.logger.Debug("bad motion frame", zap.Error(err))
		return
	}
	b.events.Emit(evMotion, s)
}

func (b *Bridge) onButton(_ *websocket.Connection, msg *websocket.Message) {
	var p trigger.ButtonPress
	if err := msg.Decode(&p); err != nil {
		b.logger.Debug("bad button frame", zap.Error(err))
		return
	}
	b.mu.Lock()
	active := b.buttonsActive
	b.mu.Unlock()
	if active {
		b.events.Emit(evButton, p)
	}
}

func (b *Bridge) onLocation(_ *websocket.Connection, msg *websocket.Message) {
	var fix models.LocationFix
	if err := msg.Decode(&fix); err != nil || !fix.Valid() {
		b.logger.Debug("bad location frame", zap.Error(err))
		return
	}
	b.events.Emit(evFix, fix)
}

func (b *Bridge) SubscribeMotion(fn func(trigger.MotionSample)) func() {
	return b.events.Connect(evMotion, func(sender any, _ ...any) { fn(sender.(trigger.MotionSample)) })
}

// Start 开始转发媒体键
func (b *Bridge) Start() error {
	b.mu.Lock()
	b.buttonsActive = true
	b.mu.Unlock()
	if len(b.hub.Devices()) == 0 {
		b.logger.Info("no device connected yet, media keys will be forwarded once one connects")
	}
	return nil
}

func (b *Bridge) Stop() error {
	b.mu.Lock()
	b.buttonsActive = false
	b.mu.Unlock()
	return nil
}

func (b *Bridge) AddListener(fn func(trigger.ButtonPress)) func() {
	return b.events.Connect(evButton, func(sender any, _ ...any) { fn(sender.(trigger.ButtonPress)) })
}

// SubscribeLocation 设备持续上报的位置（watchPosition）
func (b *Bridge) SubscribeLocation(fn func(models.LocationFix)) func() {
	return b.events.Connect(evFix, func(sender any, _ ...any) { fn(sender.(models.LocationFix)) })
}

type locationRequest struct {
	HighAccuracy bool `json:"highAccuracy"`
}

// CurrentLocation 向设备请求一次定位
func (b *Bridge) CurrentLocation(ctx context.Context, highAccuracy bool) (models.LocationFix, error) {
	resp, err := b.hub.Request(ctx, "", websocket.MessageTypeLocationRequest, locationRequest{HighAccuracy: highAccuracy})
	if err != nil {
		return models.LocationFix{}, locationError(err)
	}
	var fix models.LocationFix
	if err := resp.Decode(&fix); err != nil {
		return models.LocationFix{}, errors.WrapCode(err, errors.CodeLocationUnavailable, "decode fix")
	}
	return fix, nil
}

func locationError(err error) error {
	var remote *websocket.RemoteError
	switch {
	case stderrors.Is(err, websocket.ErrNoDeviceConnected):
		return location.ErrUnsupported
	case stderrors.Is(err, context.DeadlineExceeded), stderrors.Is(err, context.Canceled):
		return location.ErrTimeout
	case stderrors.As(err, &remote):
		msg := strings.ToLower(remote.Message)
		if strings.Contains(msg, "denied") || strings.Contains(msg, "permission") {
			return location.ErrDenied
		}
		if strings.Contains(msg, "timeout") {
			return location.ErrTimeout
		}
		if strings.Contains(msg, "unsupported") {
			return location.ErrUnsupported
		}
	}
	return errors.WrapCode(err, errors.CodeLocationUnavailable, "device location")
}

// Launch 让设备打开意图 URI，等待设备确认已交给系统
func (b *Bridge) Launch(ctx context.Context, intent notification.Intent) error {
	_, err := b.hub.Request(ctx, "", websocket.MessageTypeIntent, intent)
	if err == nil {
		return nil
	}
	if stderrors.Is(err, websocket.ErrNoDeviceConnected) {
		return errors.ErrPlatformUnsupported.WithContext("intent", string(intent.Channel))
	}
	return errors.WrapCode(err, errors.CodeDispatchFailed, "launch intent")
}

// Push 推送不需要回复的帧（提示、倒计时），没有设备时忽略
func (b *Bridge) Push(msgType string, data interface{}) int {
	msg, err := websocket.NewMessage(msgType, data)
	if err != nil {
		b.logger.Warn("encode device frame", zap.String("type", msgType), zap.Error(err))
		return 0
	}
	return b.hub.Broadcast(msg)
}
