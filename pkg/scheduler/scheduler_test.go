package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaggerIssuesEveryJobInOrder(t *testing.T) {
	s := New()
	defer s.Stop()

	var mu sync.Mutex
	var order []int
	var at []time.Time
	jobs := make([]Job, 4)
	for i := range jobs {
		i := i
		jobs[i] = FuncJob(func(ctx context.Context) {
			mu.Lock()
			order = append(order, i)
			at = append(at, time.Now())
			mu.Unlock()
		})
	}

	start := time.Now()
	b := s.Stagger(context.Background(), 20*time.Millisecond, jobs...)
	assert.Equal(t, 4, b.Wait())
	assert.Equal(t, 4, b.Total())
	assert.Equal(t, []int{0, 1, 2, 3}, order)
	assert.GreaterOrEqual(t, at[3].Sub(start), 60*time.Millisecond)
}

func TestStaggerSurvivesPanicAndCallerCancel(t *testing.T) {
	s := New()
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Int32
	b := s.Stagger(ctx, 5*time.Millisecond,
		FuncJob(func(context.Context) { cancel(); panic("intent refused") }),
		FuncJob(func(c context.Context) {
			assert.NoError(t, c.Err())
			ran.Add(1)
		}),
	)
	assert.Equal(t, 2, b.Wait())
	assert.Equal(t, int32(1), ran.Load())
}

func TestStaggerEmpty(t *testing.T) {
	s := New()
	defer s.Stop()
	b := s.Stagger(context.Background(), time.Second)
	assert.Equal(t, 0, b.Wait())
}

func TestStaggerStoppedScheduler(t *testing.T) {
	s := New()
	var ran atomic.Int32
	job := FuncJob(func(context.Context) { ran.Add(1) })
	b := s.Stagger(context.Background(), time.Hour, job, job)
	select {
	case <-time.After(50 * time.Millisecond):
	case <-b.Done():
		t.Fatal("batch should still be waiting")
	}
	s.Stop()
	assert.Equal(t, 1, b.Wait())
	assert.Equal(t, int32(1), ran.Load())
}

func TestAfterFuncStop(t *testing.T) {
	s := New()
	defer s.Stop()

	var ran atomic.Bool
	tm := s.AfterFunc(30*time.Millisecond, FuncJob(func(context.Context) { ran.Store(true) }))
	require.True(t, tm.Stop())
	assert.False(t, tm.Stop())
	time.Sleep(60 * time.Millisecond)
	assert.False(t, ran.Load())

	fired := make(chan struct{})
	tm = s.AfterFunc(5*time.Millisecond, FuncJob(func(context.Context) { close(fired) }))
	<-fired
	assert.True(t, tm.Fired())
	assert.False(t, tm.Stop())
}

func TestEvery(t *testing.T) {
	s := New()
	var n atomic.Int32
	s.Every(5*time.Millisecond, FuncJob(func(context.Context) { n.Add(1) }))
	time.Sleep(40 * time.Millisecond)
	s.Stop()
	assert.GreaterOrEqual(t, n.Load(), int32(2))
}

func TestCronAdd(t *testing.T) {
	c := NewCron(time.UTC, nil)
	id, err := c.Add("*/5 * * * *", FuncJob(func(context.Context) {}))
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)
	c.Remove(id)
	assert.Empty(t, c.Entries())

	_, err = c.Add("not a cron", FuncJob(func(context.Context) {}))
	assert.Error(t, err)
}
