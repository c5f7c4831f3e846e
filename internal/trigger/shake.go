package trigger

import (
	"math"
	"sync"
	"time"

	"SafeCircle/internal/models"
)

// MotionSample 含重力的加速度，单位 m/s²
type MotionSample struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Timestamp int64   `json:"timestamp"`
}

func (m MotionSample) Magnitude() float64 {
	return math.Sqrt(m.X*m.X + m.Y*m.Y + m.Z*m.Z)
}

// MotionSource 设备运动事件通道
type MotionSource interface {
	SubscribeMotion(fn func(MotionSample)) (unsubscribe func())
}

// ShakeDetector 电平信号转边沿事件：超过阈值且距上次触发至少 cooldown 才发出
type ShakeDetector struct {
	threshold float64
	cooldown  int64
	emit      Emitter

	mu       sync.Mutex
	last     int64
	accepted bool
	stop     func()
}

func NewShakeDetector(threshold float64, cooldown time.Duration, emit Emitter) *ShakeDetector {
	return &ShakeDetector{threshold: threshold, cooldown: cooldown.Milliseconds(), emit: emit}
}

// Sample 处理一个采样，返回是否发出了触发
func (d *ShakeDetector) Sample(s MotionSample) bool {
	mag := s.Magnitude()
	d.mu.Lock()
	if !(mag > d.threshold) || (d.accepted && s.Timestamp-d.last < d.cooldown) {
		d.mu.Unlock()
		return false
	}
	d.last = s.Timestamp
	d.accepted = true
	d.mu.Unlock()

	d.emit(models.EmergencyTrigger{Source: models.SourceShake, Timestamp: s.Timestamp})
	return true
}

// SetThreshold 运行时调整灵敏度
func (d *ShakeDetector) SetThreshold(v float64) {
	d.mu.Lock()
	d.threshold = v
	d.mu.Unlock()
}

func (d *ShakeDetector) Threshold() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.threshold
}

// Start 订阅运动事件，重复调用无效
func (d *ShakeDetector) Start(src MotionSource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return
	}
	d.stop = src.SubscribeMotion(func(s MotionSample) { d.Sample(s) })
}

func (d *ShakeDetector) Stop() {
	d.mu.Lock()
	stop := d.stop
	d.stop = nil
	d.mu.Unlock()
	if stop != nil {
		stop()
	}
}
