// Package domain defines the persistence model for finalized account links
// and the in-memory value types shared between the verification and
// scheduling layers. AccountLink is mapped with GORM and forms the only
// durable state of the service.
package domain

import (
	"time"
)

// AccountLink represents a verified pairing between one Minecraft account
// and one Discord account. Both identifiers are unique across the table:
// no id may participate in two pairs.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - MinecraftID: the stable game-account identifier (player UUID string).
//   - DiscordID: the numeric Discord account id.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type AccountLink struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	MinecraftID string    `json:"minecraft_id" gorm:"type:char(36);not null;uniqueIndex:ux_links_minecraft"`
	DiscordID   int64     `json:"discord_id"   gorm:"not null;uniqueIndex:ux_links_discord"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for AccountLink.
func (AccountLink) TableName() string { return "account_links" }

// VerifyCode is a live, single-use verification token issued to a Discord
// account. It exists only in memory, owned by the verification registry,
// and is destroyed on redemption or expiry. At most one live VerifyCode
// exists per DiscordID at any time.
type VerifyCode struct {
	// Code is the opaque random token presented to the requester.
	Code string `json:"code"`
	// DiscordID is the account the code was issued to.
	DiscordID int64 `json:"discord_id"`
	// CreatedAt is the issuance time.
	CreatedAt time.Time `json:"created_at"`
	// ExpiresAt is the instant after which the code is unredeemable.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the code's TTL has elapsed at the given instant.
func (v VerifyCode) Expired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}
