package alertlog

import (
	"context"
	"sync"

	"SafeCircle/internal/models"
	"SafeCircle/internal/session"
)

// DefaultCap 默认最多保留的条数
const DefaultCap = 100

// Log 告警日志，新条目插在最前，超过上限时丢弃最旧的。
// 只支持整体清空，不支持删除单条。
type Log struct {
	mu      sync.RWMutex
	cap     int
	entries []models.AlertLogEntry
	store   *session.Store
}

// New store 可以为 nil，此时只保存在内存
func New(capacity int, store *session.Store) *Log {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Log{cap: capacity, store: store}
}

// Load 从会话恢复
func (l *Log) Load(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	var entries []models.AlertLogEntry
	ok, err := l.store.Get(ctx, session.KeyAlertLogs, &entries)
	if err != nil || !ok {
		return err
	}
	l.Restore(entries)
	return nil
}

// Restore 替换全部条目，超出上限的尾部被截掉
func (l *Log) Restore(entries []models.AlertLogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(entries) > l.cap {
		entries = entries[:l.cap]
	}
	l.entries = append([]models.AlertLogEntry(nil), entries...)
}

// Append 追加一条并持久化
func (l *Log) Append(ctx context.Context, e models.AlertLogEntry) error {
	l.mu.Lock()
	next := make([]models.AlertLogEntry, 0, min(len(l.entries)+1, l.cap))
	next = append(next, e)
	next = append(next, l.entries...)
	if len(next) > l.cap {
		next = next[:l.cap]
	}
	l.entries = next
	snapshot := l.entries
	l.mu.Unlock()

	return l.persist(ctx, snapshot)
}

// Entries 最新在前的副本
func (l *Log) Entries() []models.AlertLogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.AlertLogEntry(nil), l.entries...)
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Log) Clear(ctx context.Context) error {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
	if l.store == nil {
		return nil
	}
	return l.store.Delete(ctx, session.KeyAlertLogs)
}

// persist entries 切片在锁外只读，Append 每次都分配新切片
func (l *Log) persist(ctx context.Context, entries []models.AlertLogEntry) error {
	if l.store == nil {
		return nil
	}
	return l.store.Put(ctx, session.KeyAlertLogs, entries)
}
