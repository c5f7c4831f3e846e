package trigger

import (
	"strings"
	"sync"
	"time"

	"SafeCircle/internal/models"
	"SafeCircle/pkg/errors"
)

const (
	DefaultJourneyETA      = 30 * time.Minute
	DefaultCheckInInterval = 2 * time.Hour
)

// JourneyTimer 行程超时检测，同一个截止时间只触发一次
type JourneyTimer struct {
	mu    sync.Mutex
	state models.JourneyTracking
}

func (j *JourneyTimer) Start(destination string, eta time.Duration, now int64) (models.JourneyTracking, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return models.JourneyTracking{}, errors.ErrInvalidInput.WithContext("field", "destination")
	}
	if eta <= 0 {
		eta = DefaultJourneyETA
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = models.JourneyTracking{
		Active:      true,
		Destination: destination,
		EtaMs:       eta.Milliseconds(),
		StartTime:   now,
	}
	return j.state, nil
}

// End 行程结束，清空状态
func (j *JourneyTimer) End() models.JourneyTracking {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = models.JourneyTracking{}
	return j.state
}

func (j *JourneyTimer) State() models.JourneyTracking {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Restore 从会话恢复
func (j *JourneyTimer) Restore(s models.JourneyTracking) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}

func (j *JourneyTimer) Evaluate(now int64) (models.EmergencyTrigger, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.state.Active || j.state.Fired || now < j.state.Deadline() {
		return models.EmergencyTrigger{}, false
	}
	j.state.Fired = true
	return models.EmergencyTrigger{
		Source:    models.SourceJourneyTimeout,
		Timestamp: now,
		Detail:    j.state.Destination,
	}, true
}

// CheckInTimer 定时报平安，错过截止时间触发一次，直到下一次报平安重新计时
type CheckInTimer struct {
	mu    sync.Mutex
	state models.CheckInSchedule
	loc   *time.Location
}

func NewCheckInTimer(loc *time.Location) *CheckInTimer {
	if loc == nil {
		loc = time.Local
	}
	return &CheckInTimer{loc: loc}
}

func (c *CheckInTimer) Schedule(interval time.Duration, now int64, contacts []string) models.CheckInSchedule {
	if interval <= 0 {
		interval = DefaultCheckInInterval
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	next := now + interval.Milliseconds()
	c.state = models.CheckInSchedule{
		Enabled:    true,
		Time:       time.UnixMilli(next).In(c.loc).Format("15:04"),
		IntervalMs: interval.Milliseconds(),
		NextTime:   next,
		LastCheck:  c.state.LastCheck,
		Contacts:   append([]string(nil), contacts...),
	}
	return c.state
}

// CheckIn 记录一次报平安；已启用时顺延下一次截止时间
func (c *CheckInTimer) CheckIn(now int64) models.CheckInSchedule {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.LastCheck = now
	if c.state.Enabled && c.state.IntervalMs > 0 {
		c.state.NextTime = now + c.state.IntervalMs
		c.state.Time = time.UnixMilli(c.state.NextTime).In(c.loc).Format("15:04")
		c.state.Fired = false
	}
	return c.state
}

func (c *CheckInTimer) Cancel() models.CheckInSchedule {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Enabled = false
	c.state.Fired = false
	return c.state
}

func (c *CheckInTimer) State() models.CheckInSchedule {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Contacts = append([]string(nil), c.state.Contacts...)
	return s
}

func (c *CheckInTimer) Restore(s models.CheckInSchedule) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *CheckInTimer) Evaluate(now int64) (models.EmergencyTrigger, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Enabled || c.state.Fired || c.state.NextTime == 0 || now < c.state.NextTime {
		return models.EmergencyTrigger{}, false
	}
	c.state.Fired = true
	return models.EmergencyTrigger{Source: models.SourceCheckInTimeout, Timestamp: now}, true
}

// ShareTimer 限时位置共享，到期只产生提示，不是紧急触发
type ShareTimer struct {
	mu    sync.Mutex
	state models.ShareTimer
}

func (s *ShareTimer) Start(d time.Duration, now int64) (models.ShareTimer, error) {
	if d <= 0 {
		return models.ShareTimer{}, errors.ErrInvalidInput.WithContext("field", "duration")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = models.ShareTimer{Active: true, StartTime: now, EndTime: now + d.Milliseconds()}
	return s.state, nil
}

func (s *ShareTimer) Stop() models.ShareTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = models.ShareTimer{}
	return s.state
}

func (s *ShareTimer) State() models.ShareTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *ShareTimer) Restore(st models.ShareTimer) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Expire 到期时返回 true，且只返回一次
func (s *ShareTimer) Expire(now int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Active || s.state.Fired || now < s.state.EndTime {
		return false
	}
	s.state.Fired = true
	s.state.Active = false
	return true
}
