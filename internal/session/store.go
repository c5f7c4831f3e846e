package session

import (
	"context"
	"encoding/json"
	"time"

	"SafeCircle/pkg/cache"
	"SafeCircle/pkg/errors"
)

// SchemaVersion 会话数据格式版本，结构变化时递增
const SchemaVersion = 1

// 会话存储键
const (
	KeyGeofences         = "geofences"
	KeyRecordingSessions = "recordingSessions"
	KeyAlertLogs         = "alertLogs"
	KeyCheckInSchedule   = "checkInSchedule"
	KeyJourneyTracking   = "journeyTracking"
	KeyDecoyInfo         = "decoyInfo"
	KeyShareTimer        = "shareTimer"
	KeyProfile           = "profile"
	KeySafeMode          = "safeMode"
	KeySavedRoutes       = "savedRoutes"
)

type envelope struct {
	Version int             `json:"version"`
	SavedAt int64           `json:"savedAt"`
	Data    json.RawMessage `json:"data"`
}

// Store 以带版本号的 JSON 存放会话状态
type Store struct {
	cache cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// New ttl<=0 表示跟随缓存后端默认策略
func New(c cache.Cache, ttl time.Duration) *Store {
	return &Store{cache: c, ttl: ttl, now: time.Now}
}

// Put 序列化 v 写入 key
func (s *Store) Put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode session %s", key)
	}
	blob, err := json.Marshal(envelope{Version: SchemaVersion, SavedAt: s.now().UnixMilli(), Data: data})
	if err != nil {
		return errors.Wrapf(err, "encode session %s", key)
	}
	return s.cache.Set(ctx, key, blob, s.ttl)
}

// Get 读取 key 到 out，不存在时返回 false。
// 没有版本信封的旧数据按当前结构直接解码；更高版本的数据视为不可读。
func (s *Store) Get(ctx context.Context, key string, out any) (bool, error) {
	blob, ok := s.cache.Get(ctx, key)
	if !ok {
		return false, nil
	}

	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil || env.Version == 0 || len(env.Data) == 0 {
		// 旧格式
		if err := json.Unmarshal(blob, out); err != nil {
			return false, errors.WrapCode(err, errors.CodeInvalidInput, "decode session "+key)
		}
		return true, nil
	}
	if env.Version > SchemaVersion {
		return false, errors.WithCodef(errors.CodeConflict, "session %s has schema version %d, want <= %d", key, env.Version, SchemaVersion)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return false, errors.WrapCode(err, errors.CodeInvalidInput, "decode session "+key)
	}
	return true, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.cache.Delete(ctx, key)
}

func (s *Store) Keys(ctx context.Context) []string {
	return s.cache.Keys(ctx)
}

// Reset 清空整个会话，告警日志只能通过这里清除
func (s *Store) Reset(ctx context.Context) error {
	return s.cache.Clear(ctx)
}
