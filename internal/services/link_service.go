// Package services – LinkService
//
// This file implements the LinkService, the state machine that drives an
// account from unlinked, through code-issued, to linked. It coordinates the
// verification registry (live codes) and the link repository (finalized
// pairs) without a cross-component transaction.
//
// Known limitation, kept deliberately: SubmitCode redeems the token before
// inserting the link. If the insert then fails because the Minecraft account
// is already linked elsewhere, the code has been consumed and is not
// re-issued; the Discord user must start over with a new link request.
package services

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/crafthub/go-link-backend/internal/domain"
	"github.com/crafthub/go-link-backend/internal/repo"
	"github.com/crafthub/go-link-backend/internal/verify"
)

// linksTotal gauges the number of finalized pairs; refreshed after every
// successful mutation.
var linksTotal = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "account_links_total",
	Help: "Number of finalized account links.",
})

func init() {
	prometheus.MustRegister(linksTotal)
}

// CodeRegistry defines the verification-registry contract required by
// LinkService. *verify.Registry satisfies it.
type CodeRegistry interface {
	// Issue generates a fresh single-use code for the account.
	Issue(discordID int64) (domain.VerifyCode, error)
	// Exists reports whether a live code exists for the account.
	Exists(discordID int64) bool
	// Redeem consumes the code matching the token and returns its owner.
	Redeem(token string) (int64, error)
	// Remove discards a live code without redeeming it.
	Remove(discordID int64) bool
}

// LinkService provides the linking protocol operations: requesting a code,
// redeeming it into a finalized pair, lookups, and unlinking.
type LinkService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Codes is the verification registry holding live codes.
	Codes CodeRegistry
	// Log is used for protocol-level audit lines.
	Log zerolog.Logger
}

// NewLinkService constructs a LinkService.
func NewLinkService(db *gorm.DB, codes CodeRegistry, log zerolog.Logger) *LinkService {
	return &LinkService{
		DB:    db,
		Codes: codes,
		Log:   log.With().Str("component", "link").Logger(),
	}
}

// RequestLink starts the protocol for a Discord account. It rejects accounts
// that are already half of a pair (ErrAlreadyLinked) or that already hold a
// live code (ErrLinkPending); otherwise it issues and returns a fresh code.
func (s *LinkService) RequestLink(ctx context.Context, discordID int64) (domain.VerifyCode, error) {
	_, err := repo.GetLinkByDiscordID(ctx, s.DB, discordID)
	switch {
	case err == nil:
		return domain.VerifyCode{}, ErrAlreadyLinked
	case !errors.Is(err, repo.ErrNotFound):
		return domain.VerifyCode{}, err
	}

	if s.Codes.Exists(discordID) {
		return domain.VerifyCode{}, ErrLinkPending
	}

	code, err := s.Codes.Issue(discordID)
	if err != nil {
		if errors.Is(err, verify.ErrAlreadyPending) {
			return domain.VerifyCode{}, ErrLinkPending
		}
		return domain.VerifyCode{}, err
	}
	return code, nil
}

// SubmitCode completes the protocol from the game side. The token is
// redeemed first; on success the finalized pair is persisted. An insert
// rejected by the uniqueness constraints maps to ErrAlreadyLinked — at that
// point the code is already consumed (see the package note above).
func (s *LinkService) SubmitCode(ctx context.Context, minecraftID, token string) (*domain.AccountLink, error) {
	discordID, err := s.Codes.Redeem(token)
	if err != nil {
		if errors.Is(err, verify.ErrNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}

	link, err := repo.CreateLink(ctx, s.DB, minecraftID, discordID)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			s.Log.Warn().
				Str("minecraft_id", minecraftID).
				Int64("discord_id", discordID).
				Msg("code redeemed but link insert rejected; code stays consumed")
			return nil, ErrAlreadyLinked
		}
		return nil, err
	}

	s.refreshGauge(ctx)
	s.Log.Info().
		Str("minecraft_id", minecraftID).
		Int64("discord_id", discordID).
		Msg("accounts linked")
	return link, nil
}

// LinkByMinecraftID returns the pair containing the given Minecraft id, or
// ErrLinkNotFound.
func (s *LinkService) LinkByMinecraftID(ctx context.Context, minecraftID string) (*domain.AccountLink, error) {
	l, err := repo.GetLinkByMinecraftID(ctx, s.DB, minecraftID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrLinkNotFound
	}
	return l, err
}

// LinkByDiscordID returns the pair containing the given Discord id, or
// ErrLinkNotFound.
func (s *LinkService) LinkByDiscordID(ctx context.Context, discordID int64) (*domain.AccountLink, error) {
	l, err := repo.GetLinkByDiscordID(ctx, s.DB, discordID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrLinkNotFound
	}
	return l, err
}

// UnlinkDiscord removes the pair containing the Discord id. Any live code
// for the account is discarded as well, so a half-finished protocol run
// cannot outlive the link state it was based on.
func (s *LinkService) UnlinkDiscord(ctx context.Context, discordID int64) error {
	s.Codes.Remove(discordID)

	err := repo.DeleteLinkByDiscordID(ctx, s.DB, discordID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrLinkNotFound
	}
	if err != nil {
		return err
	}

	s.refreshGauge(ctx)
	s.Log.Info().Int64("discord_id", discordID).Msg("accounts unlinked")
	return nil
}

// UnlinkMinecraft removes the pair containing the Minecraft id.
func (s *LinkService) UnlinkMinecraft(ctx context.Context, minecraftID string) error {
	err := repo.DeleteLinkByMinecraftID(ctx, s.DB, minecraftID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrLinkNotFound
	}
	if err != nil {
		return err
	}

	s.refreshGauge(ctx)
	s.Log.Info().Str("minecraft_id", minecraftID).Msg("accounts unlinked")
	return nil
}

// refreshGauge updates the links gauge on a best-effort basis.
func (s *LinkService) refreshGauge(ctx context.Context) {
	if n, err := repo.CountLinks(ctx, s.DB); err == nil {
		linksTotal.Set(float64(n))
	}
}
