// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP
// responses (via the `fail()` helper in this package). These codes provide
// clients — the Discord bot and the game-server plugin — with a stable,
// machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless noted.
//   - Generic codes (e.g., bad_request, not_found, conflict) mirror common
//     HTTP status semantics to aid interoperability.
//   - Domain-specific codes (already_linked, link_pending, invalid_code,
//     cooldown_active, unknown_command) carry the linking-protocol outcomes
//     that status alone cannot convey.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeAlreadyLinked    = "already_linked"
	ErrCodeLinkPending      = "link_pending"
	ErrCodeInvalidCode      = "invalid_code"
	ErrCodeCooldownActive   = "cooldown_active"
	ErrCodeUnknownCommand   = "unknown_command"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
