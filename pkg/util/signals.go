package util

import (
	"sync"
	"sync/atomic"
)

// SignalHandler 信号回调，sender 为事件主体
type SignalHandler func(sender any, params ...any)

type signalSlot struct {
	id      uint64
	handler SignalHandler
}

// Signals 进程内的同步事件总线
type Signals struct {
	mu     sync.RWMutex
	nextID atomic.Uint64
	slots  map[string][]signalSlot
}

func NewSignals() *Signals {
	return &Signals{slots: make(map[string][]signalSlot)}
}

// Connect 订阅事件，返回取消订阅函数
func (s *Signals) Connect(event string, handler SignalHandler) (disconnect func()) {
	id := s.nextID.Add(1)
	s.mu.Lock()
	s.slots[event] = append(s.slots[event], signalSlot{id: id, handler: handler})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			slots := s.slots[event]
			for i, slot := range slots {
				if slot.id == id {
					s.slots[event] = append(slots[:i:i], slots[i+1:]...)
					break
				}
			}
		})
	}
}

// Emit 依次调用订阅者；handler 内的 panic 不会影响其他订阅者
func (s *Signals) Emit(event string, sender any, params ...any) {
	s.mu.RLock()
	slots := make([]signalSlot, len(s.slots[event]))
	copy(slots, s.slots[event])
	s.mu.RUnlock()

	for _, slot := range slots {
		func() {
			defer func() { _ = recover() }()
			slot.handler(sender, params...)
		}()
	}
}

var defaultSignals = NewSignals()

// Sig 全局事件总线
func Sig() *Signals {
	return defaultSignals
}
