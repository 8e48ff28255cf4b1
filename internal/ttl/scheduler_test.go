package ttl

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// #region fakes
type call struct {
	kind  string
	app   string
	other string
}

type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) TTLExpiredNoNextApp(app string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{"no_next", app, ""})
}

func (r *recorder) PrefetchTTLExpiredNotUsed(app, prefetched string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{"not_used", app, prefetched})
}

func (r *recorder) snapshot() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct {
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// fireAll runs every timer that was not stopped, like a clock jumping past
// all deadlines.
func (c *fakeClock) fireAll() {
	for _, t := range c.timers {
		if !t.stopped {
			t.stopped = true
			t.f()
		}
	}
}

func newTestScheduler() (*Scheduler, *recorder, *fakeClock) {
	rec := &recorder{}
	clk := &fakeClock{}
	return NewScheduler(rec, WithAfterFunc(clk.AfterFunc)), rec, clk
}

// #endregion fakes

func TestScheduleArmsNoNextAndPrefetchTimers(t *testing.T) {
	s, rec, clk := newTestScheduler()
	s.Schedule("A", []string{"B", "C"}, 30*time.Second)

	assert.Equal(t, 3, s.Pending())
	for _, tm := range clk.timers {
		assert.Equal(t, 30*time.Second, tm.d)
	}

	clk.fireAll()
	assert.ElementsMatch(t, []call{
		{"no_next", "A", ""},
		{"not_used", "A", "B"},
		{"not_used", "A", "C"},
	}, rec.snapshot())
	assert.Equal(t, 0, s.Pending())
}

func TestCancelOnNextAppKeepsOtherPrefetches(t *testing.T) {
	s, rec, clk := newTestScheduler()
	s.Schedule("A", []string{"B", "C"}, time.Second)

	s.CancelOnNextApp("A", "B")
	assert.Equal(t, 1, s.Pending())

	clk.fireAll()
	assert.Equal(t, []call{{"not_used", "A", "C"}}, rec.snapshot())
}

func TestRescheduleReplacesTimer(t *testing.T) {
	s, rec, clk := newTestScheduler()
	s.Schedule("A", nil, time.Second)
	s.Schedule("A", nil, 2*time.Second)

	require.Len(t, clk.timers, 2)
	assert.True(t, clk.timers[0].stopped)
	assert.Equal(t, 1, s.Pending())

	clk.fireAll()
	assert.Len(t, rec.snapshot(), 1)
}

func TestStaleCallbackIsDiscarded(t *testing.T) {
	s, rec, clk := newTestScheduler()
	s.Schedule("A", nil, time.Second)
	stale := clk.timers[0]
	s.Schedule("A", nil, time.Second)

	// the first timer's callback raced past Stop
	stale.f()
	assert.Empty(t, rec.snapshot())
	assert.Equal(t, 1, s.Pending())
}

func TestStopDisarmsAndRejects(t *testing.T) {
	s, rec, clk := newTestScheduler()
	s.Schedule("A", []string{"B"}, time.Second)
	s.Stop()
	assert.Equal(t, 0, s.Pending())

	s.Schedule("C", nil, time.Second)
	assert.Equal(t, 0, s.Pending())

	for _, tm := range clk.timers {
		tm.f()
	}
	assert.Empty(t, rec.snapshot())
}

func TestScheduleIgnoresInvalid(t *testing.T) {
	s, _, _ := newTestScheduler()
	s.Schedule("", []string{"B"}, time.Second)
	s.Schedule("A", nil, 0)
	s.Schedule("X", []string{""}, time.Second)
	assert.Equal(t, 1, s.Pending())
}

func TestRealTimerFires(t *testing.T) {
	rec := &recorder{}
	s := NewScheduler(rec)
	defer s.Stop()

	s.Schedule("A", []string{"B"}, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestCancelSingleTimers(t *testing.T) {
	s, rec, clk := newTestScheduler()
	s.Schedule("A", []string{"B", "C"}, time.Second)

	s.CancelNoNext("A")
	s.CancelPrefetch("A", "C")
	s.CancelPrefetch("Z", "C")
	assert.Equal(t, 1, s.Pending())

	clk.fireAll()
	assert.Equal(t, []call{{"not_used", "A", "B"}}, rec.snapshot())
}
