// Package ttl turns "nothing happened in time" into hook calls: after a
// decision it arms one timer for "no next app" and one per prefetched app,
// and cancels them when the real next app shows up.
package ttl

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// #region hooks
// Hooks receives expirations. The engine implements it.
type Hooks interface {
	TTLExpiredNoNextApp(app string)
	PrefetchTTLExpiredNotUsed(app, prefetched string)
}

// Timer is the part of *time.Timer the scheduler needs.
type Timer interface {
	Stop() bool
}

// AfterFunc arms f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// #endregion hooks

// #region scheduler
type kind int

const (
	kindNoNext kind = iota
	kindPrefetch
)

// key is the timer identity: (app) for no-next, (app, prefetched) for prefetch.
type key struct {
	kind  kind
	app   string
	other string
}

type entry struct {
	timer Timer
	gen   uint64
}

// Scheduler tracks pending TTL timers. Safe for concurrent use.
type Scheduler struct {
	mu      sync.Mutex
	hooks   Hooks
	after   AfterFunc
	log     logrus.FieldLogger
	timers  map[key]entry
	gen     uint64
	stopped bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithAfterFunc replaces time.AfterFunc, for tests.
func WithAfterFunc(fn AfterFunc) Option {
	return func(s *Scheduler) { s.after = fn }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Scheduler) { s.log = l }
}

// NewScheduler creates a scheduler that reports to hooks.
func NewScheduler(hooks Hooks, opts ...Option) *Scheduler {
	s := &Scheduler{
		hooks:  hooks,
		after:  realAfterFunc,
		log:    logrus.StandardLogger(),
		timers: make(map[key]entry),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.WithField("component", "ttl")
	return s
}

// #endregion scheduler

// #region schedule
// Schedule arms the no-next timer for app and one not-used timer per
// prefetched app. Re-scheduling an identity replaces its timer.
func (s *Scheduler) Schedule(app string, prefetched []string, ttl time.Duration) {
	if app == "" || ttl <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	s.armLocked(key{kind: kindNoNext, app: app}, ttl)
	for _, b := range prefetched {
		if b == "" {
			continue
		}
		s.armLocked(key{kind: kindPrefetch, app: app, other: b}, ttl)
	}
}

func (s *Scheduler) armLocked(k key, ttl time.Duration) {
	if old, ok := s.timers[k]; ok {
		old.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timers[k] = entry{gen: gen, timer: s.after(ttl, func() { s.fire(k, gen) })}
}

// CancelOnNextApp disarms the no-next timer for app and the not-used timer
// for (app, next). Other prefetched apps keep their timers.
func (s *Scheduler) CancelOnNextApp(app, next string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(key{kind: kindNoNext, app: app})
	s.cancelLocked(key{kind: kindPrefetch, app: app, other: next})
}

// CancelNoNext disarms the no-next timer for app.
func (s *Scheduler) CancelNoNext(app string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(key{kind: kindNoNext, app: app})
}

// CancelPrefetch disarms the not-used timer for (app, prefetched).
func (s *Scheduler) CancelPrefetch(app, prefetched string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(key{kind: kindPrefetch, app: app, other: prefetched})
}

func (s *Scheduler) cancelLocked(k key) {
	if e, ok := s.timers[k]; ok {
		e.timer.Stop()
		delete(s.timers, k)
	}
}

// #endregion schedule

// #region fire
// fire runs on the timer goroutine. A callback whose timer was replaced or
// cancelled after it started is discarded.
func (s *Scheduler) fire(k key, gen uint64) {
	s.mu.Lock()
	e, ok := s.timers[k]
	if !ok || e.gen != gen || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.timers, k)
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"app": k.app, "other": k.other}).Debug("ttl expired")
	switch k.kind {
	case kindNoNext:
		s.hooks.TTLExpiredNoNextApp(k.app)
	case kindPrefetch:
		s.hooks.PrefetchTTLExpiredNotUsed(k.app, k.other)
	}
}

// #endregion fire

// #region lifecycle
// Pending returns the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop disarms every timer. Later Schedule calls are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for k, e := range s.timers {
		e.timer.Stop()
		delete(s.timers, k)
	}
}

// #endregion lifecycle
