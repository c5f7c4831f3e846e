package trigger

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"SafeCircle/internal/models"
	"SafeCircle/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu  sync.Mutex
	got []models.EmergencyTrigger
}

func (c *collector) emit(t models.EmergencyTrigger) {
	c.mu.Lock()
	c.got = append(c.got, t)
	c.mu.Unlock()
}

func (c *collector) all() []models.EmergencyTrigger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.EmergencyTrigger(nil), c.got...)
}

// 竖直方向的加速度，模长即 v
func sample(v float64, ts int64) MotionSample {
	return MotionSample{Z: v, Timestamp: ts}
}

func TestShakeDebounceWithinCooldown(t *testing.T) {
	c := &collector{}
	d := NewShakeDetector(12, time.Second, c.emit)

	assert.True(t, d.Sample(sample(20, 0)))
	assert.False(t, d.Sample(sample(25, 999)))
	require.Len(t, c.all(), 1)
	assert.Equal(t, models.SourceShake, c.all()[0].Source)
}

func TestShakeSpacedSamplesEmitTwice(t *testing.T) {
	c := &collector{}
	d := NewShakeDetector(12, time.Second, c.emit)
	assert.True(t, d.Sample(sample(20, 0)))
	assert.True(t, d.Sample(sample(20, 1000)))
	assert.Len(t, c.all(), 2)
}

func TestShakeContinuousAboveThreshold(t *testing.T) {
	c := &collector{}
	d := NewShakeDetector(12, time.Second, c.emit)
	// 60Hz 持续 2.5s 高于阈值
	for ts := int64(0); ts < 2500; ts += 16 {
		d.Sample(sample(15, ts))
	}
	got := c.all()
	require.Len(t, got, 3)
	assert.Equal(t, int64(0), got[0].Timestamp)
	assert.GreaterOrEqual(t, got[1].Timestamp-got[0].Timestamp, int64(1000))
}

func TestShakeBelowThreshold(t *testing.T) {
	c := &collector{}
	d := NewShakeDetector(12, time.Second, c.emit)
	assert.False(t, d.Sample(MotionSample{X: 0, Y: 0, Z: 9.8, Timestamp: 0}))
	assert.False(t, d.Sample(sample(12, 10)), "equal to threshold does not fire")
	assert.Empty(t, c.all())

	d.SetThreshold(10)
	assert.True(t, d.Sample(sample(11, 20)))
}

func TestShakeMagnitude(t *testing.T) {
	assert.InDelta(t, 13.0, MotionSample{X: 3, Y: 4, Z: 12}.Magnitude(), 1e-9)
}

type fakeMotion struct {
	mu   sync.Mutex
	subs map[int]func(MotionSample)
	next int
}

func (f *fakeMotion) SubscribeMotion(fn func(MotionSample)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = map[int]func(MotionSample){}
	}
	id := f.next
	f.next++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *fakeMotion) push(s MotionSample) {
	f.mu.Lock()
	subs := make([]func(MotionSample), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}

func TestShakeStartStop(t *testing.T) {
	c := &collector{}
	src := &fakeMotion{}
	d := NewShakeDetector(12, time.Second, c.emit)
	d.Start(src)
	d.Start(src)
	src.push(sample(20, 0))
	assert.Len(t, c.all(), 1)

	d.Stop()
	src.push(sample(20, 5000))
	assert.Len(t, c.all(), 1)
}

type fakeButtons struct {
	started, stopped int
	listener         func(ButtonPress)
}

func (f *fakeButtons) Start() error { f.started++; return nil }
func (f *fakeButtons) Stop() error  { f.stopped++; return nil }
func (f *fakeButtons) AddListener(fn func(ButtonPress)) func() {
	f.listener = fn
	return func() { f.listener = nil }
}

func TestHardwareButtonAllowList(t *testing.T) {
	c := &collector{}
	ch := &fakeButtons{}
	a := NewHardwareButtonAdapter(ch, c.emit, func() int64 { return 777 })
	require.NoError(t, a.Start())
	require.NoError(t, a.Start())
	assert.Equal(t, 1, ch.started)

	for _, code := range []int{79, 85, 87, 88, 127} {
		ch.listener(ButtonPress{KeyCode: code})
	}
	for _, code := range []int{24, 25, 126, 0, -1} {
		ch.listener(ButtonPress{KeyCode: code})
	}
	got := c.all()
	require.Len(t, got, 5)
	assert.Equal(t, models.SourceHardwareButton, got[0].Source)
	assert.Equal(t, int64(777), got[0].Timestamp)

	assert.True(t, a.Handle(ButtonPress{KeyCode: 85, Timestamp: 5}))
	assert.Equal(t, int64(5), c.all()[5].Timestamp)

	require.NoError(t, a.Stop())
	require.NoError(t, a.Stop())
	assert.Equal(t, 1, ch.stopped)
	assert.Nil(t, ch.listener)
}

func TestJourneyScenario(t *testing.T) {
	const T = int64(1_700_000_000_000)
	j := &JourneyTimer{}
	_, err := j.Start("  ", time.Minute, T)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	st, err := j.Start("Home", 1800000*time.Millisecond, T)
	require.NoError(t, err)
	assert.Equal(t, int64(1800000), st.EtaMs)

	_, ok := j.Evaluate(T + 1_000_000)
	assert.False(t, ok)

	trig, ok := j.Evaluate(T + 1_810_000)
	require.True(t, ok)
	assert.Equal(t, models.SourceJourneyTimeout, trig.Source)
	assert.Equal(t, "Home", trig.Detail)

	_, ok = j.Evaluate(T + 1_900_000)
	assert.False(t, ok, "same deadline fires once")

	j.End()
	assert.False(t, j.State().Active)
	_, ok = j.Evaluate(T + 5_000_000)
	assert.False(t, ok)
}

func TestJourneyDefaultETA(t *testing.T) {
	j := &JourneyTimer{}
	st, err := j.Start("Office", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultJourneyETA.Milliseconds(), st.EtaMs)
}

func TestCheckInTimer(t *testing.T) {
	c := NewCheckInTimer(time.UTC)
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC).UnixMilli()
	st := c.Schedule(0, now, []string{"Mom"})
	assert.True(t, st.Enabled)
	assert.Equal(t, "12:00", st.Time)

	_, ok := c.Evaluate(now + time.Hour.Milliseconds())
	assert.False(t, ok)

	// 按时报平安，截止时间顺延
	st = c.CheckIn(now + time.Hour.Milliseconds())
	assert.Equal(t, "13:00", st.Time)
	_, ok = c.Evaluate(now + 2*time.Hour.Milliseconds())
	assert.False(t, ok)

	trig, ok := c.Evaluate(now + 3*time.Hour.Milliseconds())
	require.True(t, ok)
	assert.Equal(t, models.SourceCheckInTimeout, trig.Source)
	_, ok = c.Evaluate(now + 4*time.Hour.Milliseconds())
	assert.False(t, ok)

	// 迟到的报平安重新计时
	c.CheckIn(now + 4*time.Hour.Milliseconds())
	_, ok = c.Evaluate(now + 6*time.Hour.Milliseconds())
	assert.True(t, ok)

	c.Cancel()
	c.CheckIn(now)
	_, ok = c.Evaluate(now + 100*time.Hour.Milliseconds())
	assert.False(t, ok)
}

func TestShareTimer(t *testing.T) {
	s := &ShareTimer{}
	_, err := s.Start(0, 0)
	assert.Error(t, err)

	st, err := s.Start(15*time.Minute, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000+900000), st.EndTime)
	assert.False(t, s.Expire(500000))
	assert.True(t, s.Expire(901000))
	assert.False(t, s.Expire(902000))
	assert.False(t, s.State().Active)
}

func TestEvaluateAll(t *testing.T) {
	c := &collector{}
	j := &JourneyTimer{}
	_, _ = j.Start("Home", time.Second, 0)
	ci := NewCheckInTimer(time.UTC)
	ci.Schedule(time.Second, 0, nil)

	assert.Equal(t, 0, EvaluateAll(500, c.emit, j, ci))
	assert.Equal(t, 2, EvaluateAll(1000, c.emit, j, ci))
	assert.Equal(t, 0, EvaluateAll(2000, c.emit, j, ci))
	assert.Len(t, c.all(), 2)
}

func TestCountdownFires(t *testing.T) {
	cd := NewCountdown(3, 5*time.Millisecond)
	var ticks []int
	var mu sync.Mutex
	fired := make(chan struct{})
	require.True(t, cd.Start(func(r int) {
		mu.Lock()
		ticks = append(ticks, r)
		mu.Unlock()
	}, func() { close(fired) }))
	assert.False(t, cd.Start(nil, nil), "second press ignored")

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("countdown did not fire")
	}
	mu.Lock()
	assert.Equal(t, []int{3, 2, 1}, ticks)
	mu.Unlock()
	assert.False(t, cd.Running())
	assert.False(t, cd.Cancel())
}

func TestCountdownCancel(t *testing.T) {
	cd := NewCountdown(5, 10*time.Millisecond)
	var fired atomic.Bool
	require.True(t, cd.Start(nil, func() { fired.Store(true) }))
	time.Sleep(15 * time.Millisecond)
	assert.True(t, cd.Cancel())
	time.Sleep(80 * time.Millisecond)
	assert.False(t, fired.Load())

	// 取消后可以重新开始
	done := make(chan struct{})
	require.True(t, cd.Start(nil, func() { close(done) }))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("restarted countdown did not fire")
	}
	assert.False(t, fired.Load())
}
