package domain

import (
	"testing"
	"time"
)

func TestAccountLink_TableName(t *testing.T) {
	if got := (AccountLink{}).TableName(); got != "account_links" {
		t.Fatalf("TableName = %q, want account_links", got)
	}
}

func TestVerifyCode_Expired(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := VerifyCode{
		Code:      "AB12CD",
		DiscordID: 555,
		CreatedAt: base,
		ExpiresAt: base.Add(2 * time.Minute),
	}

	if v.Expired(base) {
		t.Fatalf("code expired at issuance")
	}
	if v.Expired(base.Add(119 * time.Second)) {
		t.Fatalf("code expired before TTL elapsed")
	}
	// Boundary: exactly at ExpiresAt the code is no longer redeemable.
	if !v.Expired(base.Add(2 * time.Minute)) {
		t.Fatalf("code still live at ExpiresAt")
	}
	if !v.Expired(base.Add(time.Hour)) {
		t.Fatalf("code still live long after ExpiresAt")
	}
}
