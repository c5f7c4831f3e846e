// Package trigger 把平台原始信号（加速度、媒体键、定时器）归一化为 EmergencyTrigger。
package trigger

import (
	"time"

	"SafeCircle/internal/models"
)

// Emitter 接收归一化后的触发事件
type Emitter func(models.EmergencyTrigger)

// Clock 返回 epoch 毫秒，测试可替换
type Clock func() int64

// SystemClock 系统时间
func SystemClock() int64 { return time.Now().UnixMilli() }

// Evaluable 截止时间类适配器
type Evaluable interface {
	Evaluate(now int64) (models.EmergencyTrigger, bool)
}

// EvaluateAll 定时器 tick 时调用，返回本次发出的触发数
func EvaluateAll(now int64, emit Emitter, evals ...Evaluable) int {
	n := 0
	for _, e := range evals {
		if t, ok := e.Evaluate(now); ok {
			emit(t)
			n++
		}
	}
	return n
}
