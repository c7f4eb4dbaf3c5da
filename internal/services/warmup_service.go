// Package services – WarmupService
//
// This file implements per-actor, per-command cooldowns ("warmups") on top
// of the scheduled-event registry. A cooldown is one scheduled event keyed
// by (actor, command); the cooldown is over when the event fires, and an
// admin may cancel it early. The warmup sweep runs on its own tick,
// independent of verification-code expiry.
package services

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/crafthub/go-link-backend/internal/schedule"
)

// warmupKey identifies one live cooldown.
type warmupKey struct {
	Actor   string
	Command string
}

// WarmupService tracks live command cooldowns. Safe for concurrent use.
type WarmupService struct {
	events *schedule.Registry
	log    zerolog.Logger

	mu     sync.Mutex
	active map[warmupKey]schedule.Handle
}

// NewWarmupService constructs a WarmupService whose cooldown events fire on
// the given registry.
func NewWarmupService(events *schedule.Registry, log zerolog.Logger) *WarmupService {
	return &WarmupService{
		events: events,
		log:    log.With().Str("component", "warmup").Logger(),
		active: make(map[warmupKey]schedule.Handle),
	}
}

// Check reports whether a cooldown is live for (actor, command) and, if so,
// the remaining time until it elapses. A cooldown whose event has already
// been swept reports not-live.
func (s *WarmupService) Check(actor, command string) (time.Duration, bool) {
	k := warmupKey{Actor: actor, Command: command}

	s.mu.Lock()
	h, ok := s.active[k]
	s.mu.Unlock()
	if !ok {
		return 0, false
	}

	remaining, live := s.events.Remaining(h)
	if !live {
		// Event fired between the map lookup and the registry query;
		// the firing callback prunes the entry.
		return 0, false
	}
	return remaining, true
}

// Begin starts a cooldown of the given duration for (actor, command). If one
// is already live it returns ErrCooldownActive and leaves the existing
// cooldown untouched; callers use Check for the remaining time.
func (s *WarmupService) Begin(actor, command string, d time.Duration) error {
	k := warmupKey{Actor: actor, Command: command}

	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.active[k]; ok {
		if _, live := s.events.Remaining(h); live {
			return ErrCooldownActive
		}
		// Stale entry left by an interleaved sweep.
		delete(s.active, k)
	}

	h, err := s.events.Schedule(d, func(bool) { s.finish(k) })
	if err != nil {
		return err
	}
	s.active[k] = h

	s.log.Debug().
		Str("actor", actor).
		Str("command", command).
		Dur("duration", d).
		Msg("cooldown started")
	return nil
}

// Cancel removes a live cooldown before it elapses (admin override). It
// reports whether one was found.
func (s *WarmupService) Cancel(actor, command string) bool {
	k := warmupKey{Actor: actor, Command: command}

	s.mu.Lock()
	h, ok := s.active[k]
	if ok {
		delete(s.active, k)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	s.events.Cancel(h)
	s.log.Info().
		Str("actor", actor).
		Str("command", command).
		Msg("cooldown cancelled")
	return true
}

// Active returns the number of live cooldowns.
func (s *WarmupService) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// finish is the cooldown-event callback; it prunes the bookkeeping entry
// once the sweep has fired the event.
func (s *WarmupService) finish(k warmupKey) {
	s.mu.Lock()
	delete(s.active, k)
	s.mu.Unlock()

	s.log.Debug().
		Str("actor", k.Actor).
		Str("command", k.Command).
		Msg("cooldown elapsed")
}
