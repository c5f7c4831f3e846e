package metrics

import (
	"sync"
)

var (
	globalMetrics *Metrics
	mu            sync.RWMutex
)

// SetGlobal 设置全局指标实例
func SetGlobal(m *Metrics) {
	mu.Lock()
	defer mu.Unlock()
	globalMetrics = m
}

// Global 获取全局指标实例，未设置时为 nil（记录方法为空操作）
func Global() *Metrics {
	mu.RLock()
	defer mu.RUnlock()
	return globalMetrics
}

// IsEnabled 检查全局指标是否启用
func IsEnabled() bool {
	return Global() != nil
}
