// Package schedule implements a generic registry of pending timed callbacks
// with a periodic sweep. It backs both verification-code expiry and command
// warmups: a time-ordered set of events that must fire at most once, no
// earlier than their deadline, and be removable before firing.
//
// Concurrency model:
//   - The registry owns one mutex guarding the pending set. Schedule, Cancel,
//     Remaining, and the bookkeeping half of Sweep all take it.
//   - Callbacks are invoked by Sweep *after* their events have been removed
//     from the pending set and the mutex released, so callbacks may safely
//     call back into the registry (or into other registries) without
//     deadlocking.
//   - An event removed by Cancel before its deadline never fires; Cancel and
//     Sweep racing on the same event resolve to exactly one winner.
//
// Failure semantics: a callback that panics is recovered and logged; the
// sweep continues with the remaining due events.
package schedule

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// ErrNegativeDelay is returned by Schedule when the requested delay is
// negative. A zero delay is valid and fires on the next sweep.
var ErrNegativeDelay = errors.New("schedule: negative delay")

// Callback is the capability attached to a scheduled event. It is invoked
// with expired=true when the sweep fires the event after its deadline.
type Callback func(expired bool)

// Handle identifies a pending event for cancellation and queries.
// Handles are never reused within a registry's lifetime.
type Handle uint64

var (
	// eventsPending gauges the number of events currently awaiting their deadline.
	eventsPending = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduled_events_pending",
			Help: "Number of scheduled events awaiting their deadline.",
		},
		[]string{"registry"},
	)

	// eventsFired counts events fired by the sweep.
	eventsFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_events_fired_total",
			Help: "Total number of scheduled events fired by the sweep.",
		},
		[]string{"registry"},
	)

	// eventsCancelled counts events removed before their deadline.
	eventsCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_events_cancelled_total",
			Help: "Total number of scheduled events cancelled before firing.",
		},
		[]string{"registry"},
	)

	// callbackPanics counts recovered callback panics.
	callbackPanics = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_event_callback_panics_total",
			Help: "Total number of recovered panics raised by event callbacks.",
		},
		[]string{"registry"},
	)
)

func init() {
	prometheus.MustRegister(eventsPending, eventsFired, eventsCancelled, callbackPanics)
}

// event is a single pending entry. The handle doubles as the registration
// sequence number, which gives deadline ties a deterministic firing order.
type event struct {
	fireAt time.Time
	cb     Callback
}

// Registry is a mutex-guarded set of pending events swept on a fixed period.
// The zero value is not usable; construct with New.
type Registry struct {
	name string
	log  zerolog.Logger
	now  func() time.Time

	mu      sync.Mutex
	pending map[Handle]*event
	nextID  Handle
}

// New constructs a Registry. The name labels this instance's metrics and
// log lines (e.g. "verify", "warmup"). The clock defaults to time.Now and
// can be overridden with WithClock for tests.
func New(name string, log zerolog.Logger) *Registry {
	return &Registry{
		name:    name,
		log:     log.With().Str("registry", name).Logger(),
		now:     time.Now,
		pending: make(map[Handle]*event),
	}
}

// WithClock replaces the registry's time source and returns the registry.
// Intended for tests that drive Sweep with a fake clock.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Schedule registers a callback to fire once the given delay has elapsed.
// A zero delay is accepted and fires on the next sweep; a negative delay is
// rejected with ErrNegativeDelay.
func (r *Registry) Schedule(delay time.Duration, cb Callback) (Handle, error) {
	if delay < 0 {
		return 0, ErrNegativeDelay
	}

	r.mu.Lock()
	r.nextID++
	h := r.nextID
	r.pending[h] = &event{fireAt: r.now().Add(delay), cb: cb}
	n := len(r.pending)
	r.mu.Unlock()

	eventsPending.WithLabelValues(r.name).Set(float64(n))
	return h, nil
}

// Cancel removes the event if it is still pending and reports whether it was
// found. A cancelled event never fires. Safe to call concurrently with the
// sweep: exactly one of Cancel and Sweep wins for any given event.
func (r *Registry) Cancel(h Handle) bool {
	r.mu.Lock()
	_, ok := r.pending[h]
	if ok {
		delete(r.pending, h)
	}
	n := len(r.pending)
	r.mu.Unlock()

	if ok {
		eventsCancelled.WithLabelValues(r.name).Inc()
		eventsPending.WithLabelValues(r.name).Set(float64(n))
	}
	return ok
}

// Remaining reports the time left until the event's deadline and whether the
// event is still pending. A due-but-unswept event reports a zero remainder.
func (r *Registry) Remaining(h Handle) (time.Duration, bool) {
	r.mu.Lock()
	ev, ok := r.pending[h]
	var d time.Duration
	if ok {
		d = ev.fireAt.Sub(r.now())
	}
	r.mu.Unlock()

	if !ok {
		return 0, false
	}
	if d < 0 {
		d = 0
	}
	return d, true
}

// Pending returns the number of events awaiting their deadline.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Sweep fires every pending event whose deadline is at or before now,
// removing it from the pending set first. Ties on the deadline fire in
// registration order. Returns the number of events fired.
//
// Sweep is idempotent: an event fires at most once no matter how often the
// sweep runs, because removal happens under the mutex before the callback
// is invoked.
func (r *Registry) Sweep(now time.Time) int {
	type due struct {
		h  Handle
		ev *event
	}

	r.mu.Lock()
	var fired []due
	for h, ev := range r.pending {
		if !ev.fireAt.After(now) {
			fired = append(fired, due{h, ev})
			delete(r.pending, h)
		}
	}
	n := len(r.pending)
	r.mu.Unlock()

	if len(fired) == 0 {
		return 0
	}

	// Deadline order; registration order for ties (handles are monotonic).
	sort.Slice(fired, func(i, j int) bool {
		if !fired[i].ev.fireAt.Equal(fired[j].ev.fireAt) {
			return fired[i].ev.fireAt.Before(fired[j].ev.fireAt)
		}
		return fired[i].h < fired[j].h
	})

	for _, d := range fired {
		r.invoke(d.h, d.ev.cb)
	}

	eventsFired.WithLabelValues(r.name).Add(float64(len(fired)))
	eventsPending.WithLabelValues(r.name).Set(float64(n))
	return len(fired)
}

// invoke runs a single callback with expired=true, recovering panics so one
// failing callback cannot stop the sweep.
func (r *Registry) invoke(h Handle, cb Callback) {
	defer func() {
		if rec := recover(); rec != nil {
			callbackPanics.WithLabelValues(r.name).Inc()
			r.log.Error().
				Uint64("handle", uint64(h)).
				Interface("panic", rec).
				Msg("scheduled event callback panicked")
		}
	}()
	cb(true)
}

// Run drives the sweep on a fixed tick until ctx is cancelled. Each tick
// sweeps with the registry's clock, so tests can combine Run with WithClock.
func (r *Registry) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()

	r.log.Info().Dur("tick", tick).Msg("sweep loop started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("sweep loop stopped")
			return
		case <-t.C:
			r.Sweep(r.now())
		}
	}
}
