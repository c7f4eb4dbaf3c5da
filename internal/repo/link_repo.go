// Package repo implements the data persistence layer for account links,
// backed by GORM. This file provides repository functions for the
// AccountLink model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a link is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - When an insert violates one of the unique indexes on minecraft_id or
//     discord_id, ErrDuplicate is returned.
//   - On other DB errors (connectivity, schema), the raw gorm error is
//     propagated.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crafthub/go-link-backend/internal/domain"
)

// ErrNotFound is returned when a requested link does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate is returned when an insert would give either side of the
// pair a second link.
var ErrDuplicate = gorm.ErrDuplicatedKey

// CreateLink inserts a new verified pair. The link ID is a randomly
// generated UUID (string), and CreatedAt is set to UTC. The insert commits
// before the function returns; a unique-index violation on either id maps
// to ErrDuplicate and leaves the table untouched.
func CreateLink(ctx context.Context, db *gorm.DB, minecraftID string, discordID int64) (*domain.AccountLink, error) {
	l := &domain.AccountLink{
		ID:          uuid.NewString(),
		MinecraftID: minecraftID,
		DiscordID:   discordID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(l).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return l, nil
}

// GetLinkByMinecraftID fetches the link containing the given Minecraft id,
// or ErrNotFound if the id is not part of any pair.
func GetLinkByMinecraftID(ctx context.Context, db *gorm.DB, minecraftID string) (*domain.AccountLink, error) {
	var l domain.AccountLink
	err := db.WithContext(ctx).
		Where("minecraft_id = ?", minecraftID).
		First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetLinkByDiscordID fetches the link containing the given Discord id,
// or ErrNotFound if the id is not part of any pair.
func GetLinkByDiscordID(ctx context.Context, db *gorm.DB, discordID int64) (*domain.AccountLink, error) {
	var l domain.AccountLink
	err := db.WithContext(ctx).
		Where("discord_id = ?", discordID).
		First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// DeleteLinkByMinecraftID removes the pair containing the given Minecraft id.
// If no rows are affected, it returns ErrNotFound.
func DeleteLinkByMinecraftID(ctx context.Context, db *gorm.DB, minecraftID string) error {
	res := db.WithContext(ctx).
		Where("minecraft_id = ?", minecraftID).
		Delete(&domain.AccountLink{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteLinkByDiscordID removes the pair containing the given Discord id.
// If no rows are affected, it returns ErrNotFound.
func DeleteLinkByDiscordID(ctx context.Context, db *gorm.DB, discordID int64) error {
	res := db.WithContext(ctx).
		Where("discord_id = ?", discordID).
		Delete(&domain.AccountLink{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListLinks returns all finalized pairs ordered by creation time ascending.
// Used at startup for sanity logging and by admin tooling.
func ListLinks(ctx context.Context, db *gorm.DB) ([]domain.AccountLink, error) {
	var out []domain.AccountLink
	err := db.WithContext(ctx).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// CountLinks returns the total number of finalized pairs.
func CountLinks(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.AccountLink{}).
		Count(&total).Error
	return total, err
}

// isUniqueViolation reports whether err is a unique-constraint failure.
// GORM only maps these to ErrDuplicatedKey when the dialector translates
// errors, so the SQLite message text is checked as a fallback.
func isUniqueViolation(err error) bool {
	if err == gorm.ErrDuplicatedKey {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed") && strings.Contains(msg, "unique")
}
