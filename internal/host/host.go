// Package host is what a platform integration calls: it forwards lifecycle
// events to the engine and keeps the TTL timers in step with them.
package host

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/danielpatrickdp/nextapp/go-controller/internal/features"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/policy"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/ttl"
)

// #region host
// Engine is the subset of *engine.Engine the host drives.
type Engine interface {
	ttl.Hooks
	AllowedToRun(app string, ctx features.Context) policy.Decision
	ForegroundChanged(prev, now string)
}

// Host pairs an engine with its TTL scheduler.
type Host struct {
	engine Engine
	timers *ttl.Scheduler
	ttl    time.Duration
	log    logrus.FieldLogger
}

// New creates a host whose timers report expirations back to engine.
func New(engine Engine, prefetchTTL time.Duration, log logrus.FieldLogger, opts ...ttl.Option) *Host {
	if log == nil {
		log = logrus.StandardLogger()
	}
	opts = append([]ttl.Option{ttl.WithLogger(log)}, opts...)
	return &Host{
		engine: engine,
		timers: ttl.NewScheduler(engine, opts...),
		ttl:    prefetchTTL,
		log:    log.WithField("component", "host"),
	}
}

// #endregion host

// #region events
// AllowedToRun asks the engine for a decision and arms the TTL timers for it.
func (h *Host) AllowedToRun(app string, ctx features.Context) policy.Decision {
	d := h.engine.AllowedToRun(app, ctx)
	if d.Reason == policy.ReasonInvalid || d.Reason == policy.ReasonDisabled {
		return d
	}
	h.timers.Schedule(app, d.Prefetch, h.ttl)
	return d
}

// ForegroundChanged cancels the timers the transition satisfies, then
// reports it to the engine.
func (h *Host) ForegroundChanged(prev, now string) {
	h.timers.CancelOnNextApp(prev, now)
	h.engine.ForegroundChanged(prev, now)
}

// TTLExpiredNoNextApp forwards an expiry observed by the platform itself and
// disarms the matching local timer so it is not reported twice.
func (h *Host) TTLExpiredNoNextApp(app string) {
	h.timers.CancelNoNext(app)
	h.engine.TTLExpiredNoNextApp(app)
}

// PrefetchTTLExpiredNotUsed forwards a platform-observed prefetch expiry.
func (h *Host) PrefetchTTLExpiredNotUsed(app, prefetched string) {
	h.timers.CancelPrefetch(app, prefetched)
	h.engine.PrefetchTTLExpiredNotUsed(app, prefetched)
}

// Pending returns the number of armed timers.
func (h *Host) Pending() int {
	return h.timers.Pending()
}

// Stop disarms all timers.
func (h *Host) Stop() {
	h.timers.Stop()
	h.log.Debug("timers stopped")
}

// #endregion events
