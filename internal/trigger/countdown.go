package trigger

import (
	"sync"
	"time"
)

// Countdown SOS 倒计时，触发前可取消；倒计时期间再次 Start 会被忽略
type Countdown struct {
	seconds int
	tick    time.Duration

	mu      sync.Mutex
	running bool
	cancel  chan struct{}
}

// NewCountdown tick 为每一秒的实际时长，测试里可以缩短
func NewCountdown(seconds int, tick time.Duration) *Countdown {
	if tick <= 0 {
		tick = time.Second
	}
	return &Countdown{seconds: seconds, tick: tick}
}

// Start onTick 收到剩余秒数（含起始值），归零后调用 onFire。
// 返回 false 表示已有倒计时在进行。
func (c *Countdown) Start(onTick func(remaining int), onFire func()) bool {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return false
	}
	c.running = true
	cancel := make(chan struct{})
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(cancel, onTick, onFire)
	return true
}

func (c *Countdown) run(cancel chan struct{}, onTick func(int), onFire func()) {
	t := time.NewTicker(c.tick)
	defer t.Stop()

	for remaining := c.seconds; remaining > 0; remaining-- {
		if onTick != nil {
			onTick(remaining)
		}
		select {
		case <-cancel:
			return
		case <-t.C:
		}
	}

	// 取消与触发互斥：只有仍持有同一个 cancel 通道时才触发
	c.mu.Lock()
	if c.cancel != cancel {
		c.mu.Unlock()
		return
	}
	select {
	case <-cancel:
		c.mu.Unlock()
		return
	default:
	}
	c.running = false
	c.cancel = nil
	c.mu.Unlock()

	if onFire != nil {
		onFire()
	}
}

// Cancel 返回 true 表示成功阻止了触发
func (c *Countdown) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return false
	}
	close(c.cancel)
	c.cancel = nil
	c.running = false
	return true
}

func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
