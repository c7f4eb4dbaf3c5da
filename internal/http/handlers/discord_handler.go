// Discord-side HTTP handlers.
//
// This file exposes the chat-platform command boundary:
//   - POST /discord/commands            (slash-command webhook, dispatched by name)
//   - GET  /discord/links/{discord_id}  (link lookup)
//
// The webhook handler is transport-thin: it validates the payload, routes the
// invocation through the command dispatcher, and translates service sentinels
// into HTTP responses. Command handlers themselves live in the dispatch
// registry (see RegisterDiscordCommands), mirroring how the bot registers its
// slash commands.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crafthub/go-link-backend/internal/command"
	"github.com/crafthub/go-link-backend/internal/domain"
	"github.com/crafthub/go-link-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// LinkService defines the linking-protocol operations consumed by HTTP
// handlers and registered commands.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type LinkService interface {
	// RequestLink issues a verification code for a Discord account.
	RequestLink(ctx context.Context, discordID int64) (domain.VerifyCode, error)
	// SubmitCode redeems a code from the game side and finalizes the pair.
	SubmitCode(ctx context.Context, minecraftID, token string) (*domain.AccountLink, error)
	// LinkByMinecraftID resolves the pair containing a Minecraft id.
	LinkByMinecraftID(ctx context.Context, minecraftID string) (*domain.AccountLink, error)
	// LinkByDiscordID resolves the pair containing a Discord id.
	LinkByDiscordID(ctx context.Context, discordID int64) (*domain.AccountLink, error)
	// UnlinkDiscord removes the pair containing a Discord id.
	UnlinkDiscord(ctx context.Context, discordID int64) error
	// UnlinkMinecraft removes the pair containing a Minecraft id.
	UnlinkMinecraft(ctx context.Context, minecraftID string) error
}

// WarmupService defines the cooldown operations consumed by game-side
// handlers.
type WarmupService interface {
	// Check reports the remaining cooldown for (actor, command), if live.
	Check(actor, command string) (time.Duration, bool)
	// Begin starts a cooldown; ErrCooldownActive when one is already live.
	Begin(actor, command string, d time.Duration) error
	// Cancel removes a live cooldown early.
	Cancel(actor, command string) bool
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for both command surfaces. It depends on
// abstract service interfaces to keep transport concerns separate from the
// protocol logic.
type Handlers struct {
	links    LinkService
	warmups  WarmupService
	dispatch *command.Dispatcher
}

// New constructs a Handlers instance bound to the given services and
// command dispatcher.
func New(links LinkService, warmups WarmupService, dispatch *command.Dispatcher) *Handlers {
	return &Handlers{links: links, warmups: warmups, dispatch: dispatch}
}

// RegisterDiscordCommands installs the built-in slash commands ("link",
// "unlink") into the dispatcher. Call once during startup.
func RegisterDiscordCommands(d *command.Dispatcher, links LinkService) error {
	if err := d.Register(command.Spec{
		Name:        "link",
		Description: "Request a verification code to link your game account",
		Handle: func(ctx context.Context, inv command.Invocation) (any, error) {
			code, err := links.RequestLink(ctx, inv.DiscordID)
			if err != nil {
				return nil, err
			}
			return IssuedCodeResponse{Code: code.Code, ExpiresAt: code.ExpiresAt}, nil
		},
	}); err != nil {
		return err
	}

	return d.Register(command.Spec{
		Name:        "unlink",
		Description: "Remove the link to your game account",
		Handle: func(ctx context.Context, inv command.Invocation) (any, error) {
			if err := links.UnlinkDiscord(ctx, inv.DiscordID); err != nil {
				return nil, err
			}
			return nil, nil
		},
	})
}

//
// DTOs
//

// DiscordCommandRequest is the JSON payload of the slash-command webhook.
type DiscordCommandRequest struct {
	// Command is the exact command name (e.g. "link").
	Command string `json:"command" binding:"required" example:"link"`
	// DiscordID is the invoking account.
	DiscordID int64 `json:"discord_id" binding:"required" example:"555"`
}

// IssuedCodeResponse is returned when a verification code has been issued.
type IssuedCodeResponse struct {
	// Code is the single-use token to submit from the game side.
	Code string `json:"code" example:"G7KQWD"`
	// ExpiresAt is the instant after which the code is unredeemable.
	ExpiresAt time.Time `json:"expires_at"`
}

//
// Handlers
//

// DiscordCommand godoc
// @ID          discordCommand
// @Summary     Execute a Discord slash command
// @Description Routes an inbound slash command ("link", "unlink") to its registered handler by exact name.
// @Tags        Discord
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.DiscordCommandRequest  true  "Command payload"
//
// @Success     201  {object}  handlers.IssuedCodeResponse  "Code issued (link)"
// @Success     204  "Unlinked (unlink)"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown command or link not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already linked or code pending"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /discord/commands [post]
func (h *Handlers) DiscordCommand(c *gin.Context) {
	var req DiscordCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	out, err := h.dispatch.Dispatch(c.Request.Context(), req.Command, command.Invocation{DiscordID: req.DiscordID})
	if err != nil {
		h.failDiscordCommand(c, err)
		return
	}
	if out == nil {
		noContent(c)
		return
	}
	ok(c, http.StatusCreated, out)
}

// failDiscordCommand maps dispatch and service errors onto the envelope.
func (h *Handlers) failDiscordCommand(c *gin.Context, err error) {
	switch {
	case errors.Is(err, command.ErrUnknownCommand):
		fail(c, http.StatusNotFound, ErrCodeUnknownCommand, "unknown command")
	case errors.Is(err, services.ErrAlreadyLinked):
		fail(c, http.StatusConflict, ErrCodeAlreadyLinked, services.ErrAlreadyLinked.Error())
	case errors.Is(err, services.ErrLinkPending):
		fail(c, http.StatusConflict, ErrCodeLinkPending, services.ErrLinkPending.Error())
	case errors.Is(err, services.ErrLinkNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, services.ErrLinkNotFound.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// GetDiscordLink godoc
// @ID          getDiscordLink
// @Summary     Look up a link by Discord id
// @Tags        Discord
// @Produce     json
//
// @Param       discord_id  path  int  true  "Discord account id"  example(555)
//
// @Success     200  {object}  domain.AccountLink
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /discord/links/{discord_id} [get]
func (h *Handlers) GetDiscordLink(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("discord_id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "discord_id must be numeric")
		return
	}

	link, err := h.links.LinkByDiscordID(c.Request.Context(), id)
	switch {
	case errors.Is(err, services.ErrLinkNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, services.ErrLinkNotFound.Error())
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	default:
		ok(c, http.StatusOK, link)
	}
}
