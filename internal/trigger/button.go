package trigger

import (
	"sync"

	"SafeCircle/internal/models"
)

// ButtonPress 媒体键事件
type ButtonPress struct {
	KeyCode   int   `json:"keyCode"`
	Timestamp int64 `json:"timestamp,omitempty"`
}

// ButtonChannel 耳机/媒体键插件接口
type ButtonChannel interface {
	Start() error
	Stop() error
	AddListener(fn func(ButtonPress)) (remove func())
}

// 播放/暂停类键码：HEADSETHOOK, MEDIA_PLAY_PAUSE, MEDIA_NEXT, MEDIA_PREVIOUS, MEDIA_PAUSE
var sosKeyCodes = map[int]bool{79: true, 85: true, 87: true, 88: true, 127: true}

// IsSOSKey 是否为允许触发 SOS 的键码
func IsSOSKey(code int) bool { return sosKeyCodes[code] }

// HardwareButtonAdapter 白名单内的键码转为 hardware-button 触发
type HardwareButtonAdapter struct {
	ch    ButtonChannel
	emit  Emitter
	clock Clock

	mu     sync.Mutex
	remove func()
}

func NewHardwareButtonAdapter(ch ButtonChannel, emit Emitter, clock Clock) *HardwareButtonAdapter {
	if clock == nil {
		clock = SystemClock
	}
	return &HardwareButtonAdapter{ch: ch, emit: emit, clock: clock}
}

// Handle 返回是否发出了触发
func (a *HardwareButtonAdapter) Handle(p ButtonPress) bool {
	if !IsSOSKey(p.KeyCode) {
		return false
	}
	ts := p.Timestamp
	if ts == 0 {
		ts = a.clock()
	}
	a.emit(models.EmergencyTrigger{Source: models.SourceHardwareButton, Timestamp: ts})
	return true
}

func (a *HardwareButtonAdapter) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.remove != nil {
		return nil
	}
	if err := a.ch.Start(); err != nil {
		return err
	}
	a.remove = a.ch.AddListener(func(p ButtonPress) { a.Handle(p) })
	return nil
}

func (a *HardwareButtonAdapter) Stop() error {
	a.mu.Lock()
	remove := a.remove
	a.remove = nil
	a.mu.Unlock()
	if remove == nil {
		return nil
	}
	remove()
	return a.ch.Stop()
}
