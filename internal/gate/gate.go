package gate

import (
	"sync"
	"time"

	"SafeCircle/internal/models"
)

type Reason string

const (
	ReasonAccepted Reason = "accepted"
	ReasonDisarmed Reason = "disarmed"
	ReasonCooldown Reason = "cooldown"
	ReasonInvalid  Reason = "invalid"
)

// Decision Gate 的判定结果
type Decision struct {
	Accepted bool   `json:"accepted"`
	Reason   Reason `json:"reason"`
}

// Gate 去重与布防判定。
// manual / hardware-button / 定时器来源不受布防状态影响；shake 与 geofence 只在布防时放行。
// 同一来源在冷却窗口内只放行第一次。
type Gate struct {
	mu           sync.Mutex
	armed        bool
	cooldowns    map[models.TriggerSource]time.Duration
	lastAccepted map[models.TriggerSource]int64
}

// New cooldowns 中没有的来源不做冷却
func New(cooldowns map[models.TriggerSource]time.Duration) *Gate {
	cd := make(map[models.TriggerSource]time.Duration, len(cooldowns))
	for k, v := range cooldowns {
		cd[k] = v
	}
	return &Gate{
		cooldowns:    cd,
		lastAccepted: make(map[models.TriggerSource]int64),
	}
}

func (g *Gate) SetArmed(armed bool) {
	g.mu.Lock()
	g.armed = armed
	g.mu.Unlock()
}

func (g *Gate) Armed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.armed
}

// Admit 判定并在放行时记录时间戳
func (g *Gate) Admit(t models.EmergencyTrigger) Decision {
	if !t.Source.Valid() {
		return Decision{Reason: ReasonInvalid}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if t.Source.Passive() && !g.armed {
		return Decision{Reason: ReasonDisarmed}
	}
	if cd := g.cooldowns[t.Source]; cd > 0 {
		if last, ok := g.lastAccepted[t.Source]; ok && t.Timestamp-last < cd.Milliseconds() {
			return Decision{Reason: ReasonCooldown}
		}
	}
	g.lastAccepted[t.Source] = t.Timestamp
	return Decision{Accepted: true, Reason: ReasonAccepted}
}

// Reset 清空冷却记录
func (g *Gate) Reset() {
	g.mu.Lock()
	g.lastAccepted = make(map[models.TriggerSource]int64)
	g.mu.Unlock()
}
