// Package verify implements the process-wide verification-code registry:
// a mapping from Discord account id to a live, single-use code with an
// expiry. Each live code is backed by exactly one scheduled event; redeeming
// the code cancels the event, and the event firing discards the code.
//
// Concurrency invariant: issuance, redemption, expiry, and removal for the
// same account are serialized by the registry mutex. The redeem-vs-expire
// race is resolved by whoever acquires the mutex first; if expiry wins,
// Redeem reports ErrNotFound, and if redeem wins the expiry event is
// cancelled and never fires.
package verify

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/crafthub/go-link-backend/internal/domain"
	"github.com/crafthub/go-link-backend/internal/schedule"
)

var (
	// ErrAlreadyPending is returned by Issue when a live code already exists
	// for the requesting account.
	ErrAlreadyPending = errors.New("verify: code already pending for this account")

	// ErrNotFound is returned by Redeem when no live code matches the token.
	// Expired-but-unswept codes are collapsed into this error.
	ErrNotFound = errors.New("verify: no live code matches the token")
)

// codeAlphabet deliberately omits characters that read ambiguously in chat
// clients and game consoles (0/O, 1/I/L, 5/S, 8/B).
const codeAlphabet = "234679ACDEFGHJKMNPQRTUVWXYZ"

var (
	codesLive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "verify_codes_live",
		Help: "Number of verification codes currently awaiting redemption.",
	})
	codesIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "verify_codes_issued_total",
		Help: "Total number of verification codes issued.",
	})
	codesRedeemed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "verify_codes_redeemed_total",
		Help: "Total number of verification codes redeemed successfully.",
	})
	codesExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "verify_codes_expired_total",
		Help: "Total number of verification codes discarded by expiry.",
	})
)

func init() {
	prometheus.MustRegister(codesLive, codesIssued, codesRedeemed, codesExpired)
}

// entry pairs a live code with the handle of its backing expiry event.
type entry struct {
	code   domain.VerifyCode
	expiry schedule.Handle
}

// Registry issues, tracks, and consumes verification codes. Safe for
// concurrent use. Construct with New.
type Registry struct {
	log     zerolog.Logger
	events  *schedule.Registry
	ttl     time.Duration
	codeLen int
	now     func() time.Time

	mu    sync.Mutex
	codes map[int64]*entry
}

// New constructs a Registry whose codes live for ttl and whose expiry events
// are scheduled on events. codeLen values below 4 are coerced to 4.
func New(events *schedule.Registry, ttl time.Duration, codeLen int, log zerolog.Logger) *Registry {
	if codeLen < 4 {
		codeLen = 4
	}
	return &Registry{
		log:     log.With().Str("component", "verify").Logger(),
		events:  events,
		ttl:     ttl,
		codeLen: codeLen,
		now:     time.Now,
		codes:   make(map[int64]*entry),
	}
}

// WithClock replaces the registry's time source and returns the registry.
// Intended for tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Issue generates a fresh single-use code for discordID and schedules its
// expiry. It fails with ErrAlreadyPending when a live code already exists
// for that account.
//
// Tokens are unpredictable but not guaranteed collision-free against other
// live codes; Redeem closes that gap by consuming exactly one match.
func (r *Registry) Issue(discordID int64) (domain.VerifyCode, error) {
	token, err := generateToken(r.codeLen)
	if err != nil {
		return domain.VerifyCode{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.codes[discordID]; ok {
		return domain.VerifyCode{}, ErrAlreadyPending
	}

	now := r.now()
	code := domain.VerifyCode{
		Code:      token,
		DiscordID: discordID,
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}

	h, err := r.events.Schedule(r.ttl, func(bool) { r.expire(discordID, token) })
	if err != nil {
		return domain.VerifyCode{}, err
	}
	r.codes[discordID] = &entry{code: code, expiry: h}

	codesIssued.Inc()
	codesLive.Set(float64(len(r.codes)))
	r.log.Info().
		Int64("discord_id", discordID).
		Time("expires_at", code.ExpiresAt).
		Msg("verification code issued")
	return code, nil
}

// Exists reports whether a live code exists for discordID.
func (r *Registry) Exists(discordID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.codes[discordID]
	return ok
}

// Redeem consumes the live code whose token equals the argument
// (case-sensitive exact match) and returns the owning Discord id. The
// matching entry and its expiry event are removed atomically with respect
// to the sweep, so a redeemed code can never fire as expired afterwards.
//
// A token that matches no live code, or matches one whose TTL has already
// elapsed, yields ErrNotFound. Rate limiting of redemption attempts is the
// caller's responsibility.
func (r *Registry) Redeem(token string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.codes {
		if e.code.Code != token {
			continue
		}
		if e.code.Expired(r.now()) {
			// Due but unswept: the sweep owns the cleanup, redemption just
			// refuses. Collapsed into ErrNotFound per the error taxonomy.
			return 0, ErrNotFound
		}
		delete(r.codes, id)
		r.events.Cancel(e.expiry)

		codesRedeemed.Inc()
		codesLive.Set(float64(len(r.codes)))
		r.log.Info().Int64("discord_id", id).Msg("verification code redeemed")
		return id, nil
	}
	return 0, ErrNotFound
}

// Remove discards the live code for discordID without redeeming it and
// cancels its expiry event. It reports whether a code was found.
func (r *Registry) Remove(discordID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.codes[discordID]
	if !ok {
		return false
	}
	delete(r.codes, discordID)
	r.events.Cancel(e.expiry)
	codesLive.Set(float64(len(r.codes)))
	return true
}

// Live returns the number of codes currently awaiting redemption.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.codes)
}

// expire is the expiry-event callback. The token guard makes a stale fire
// harmless: if the account re-entered the registry with a newer code, the
// old event must have been cancelled, and the guard protects against any
// remaining interleaving.
func (r *Registry) expire(discordID int64, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.codes[discordID]
	if !ok || e.code.Code != token {
		return
	}
	delete(r.codes, discordID)

	codesExpired.Inc()
	codesLive.Set(float64(len(r.codes)))
	r.log.Info().Int64("discord_id", discordID).Msg("verification code expired")
}

// generateToken returns a random token of length n drawn from codeAlphabet
// with crypto/rand.
func generateToken(n int) (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[idx.Int64()])
	}
	return b.String(), nil
}
