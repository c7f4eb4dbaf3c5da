// Package services defines the business logic for account linking and
// command warmups. This file centralizes common service-level error values
// so that they can be consistently returned by service methods and checked
// by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

// Linking-protocol errors.
var (
	// ErrAlreadyLinked indicates that one side of the requested pair already
	// participates in an existing link.
	ErrAlreadyLinked = errors.New("account already linked")

	// ErrLinkPending is returned when a link request arrives while a
	// verification code is still live for the same account.
	ErrLinkPending = errors.New("verification code already pending")

	// ErrInvalidCode is returned when a submitted token matches no live
	// verification code (including codes that have already expired).
	ErrInvalidCode = errors.New("invalid or expired verification code")

	// ErrLinkNotFound indicates that no link exists for the given id.
	ErrLinkNotFound = errors.New("link not found")
)

// Warmup errors.
var (
	// ErrCooldownActive is returned when a command is requested again while
	// its warmup window is still open.
	ErrCooldownActive = errors.New("command cooldown still active")

	// ErrCooldownNotFound indicates that no live cooldown exists for the
	// given actor and command.
	ErrCooldownNotFound = errors.New("no active cooldown")
)
