// Game-side HTTP handlers.
//
// This file exposes the game-server command boundary:
//   - POST   /game/verify                  (submit a verification code)
//   - POST   /game/unlink                  (remove a link from the game side)
//   - GET    /game/links/{minecraft_id}    (link lookup)
//   - POST   /game/warmups                 (start a command cooldown)
//   - DELETE /game/warmups                 (admin cancel of a cooldown)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses.
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crafthub/go-link-backend/internal/services"
)

//
// DTOs
//

// SubmitCodeRequest is the JSON payload for redeeming a verification code.
type SubmitCodeRequest struct {
	// MinecraftID is the submitting player's stable account id.
	MinecraftID string `json:"minecraft_id" binding:"required" example:"069a79f4-44e9-4726-a5be-fca90e38aaf5"`
	// Code is the token issued to the Discord account.
	Code string `json:"code" binding:"required" example:"G7KQWD"`
}

// GameUnlinkRequest is the JSON payload for a game-side unlink.
type GameUnlinkRequest struct {
	MinecraftID string `json:"minecraft_id" binding:"required" example:"069a79f4-44e9-4726-a5be-fca90e38aaf5"`
}

// WarmupRequest is the JSON payload for starting a command cooldown.
type WarmupRequest struct {
	// Actor is the player the cooldown applies to.
	Actor string `json:"actor" binding:"required" example:"steve"`
	// Command is the cooled-down command name.
	Command string `json:"command" binding:"required" example:"spawn"`
	// Seconds is the cooldown duration; must be positive.
	Seconds int `json:"seconds" binding:"required,min=1" example:"30"`
}

// WarmupStatusResponse reports a rejected command's remaining cooldown.
type WarmupStatusResponse struct {
	RemainingSeconds int `json:"remaining_seconds" example:"12"`
}

//
// Handlers
//

// SubmitCode godoc
// @ID          submitCode
// @Summary     Redeem a verification code
// @Description Consumes a code issued to a Discord account and finalizes the link with the submitting player. A code consumed by a failed attempt is not re-issued.
// @Tags        Game
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.SubmitCodeRequest  true  "Redemption payload"
//
// @Success     201  {object}  domain.AccountLink
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Invalid or expired code"
// @Failure     409  {object}  handlers.ErrorResponse  "Player already linked"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /game/verify [post]
func (h *Handlers) SubmitCode(c *gin.Context) {
	var req SubmitCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	link, err := h.links.SubmitCode(c.Request.Context(), strings.TrimSpace(req.MinecraftID), strings.TrimSpace(req.Code))
	switch {
	case errors.Is(err, services.ErrInvalidCode):
		fail(c, http.StatusNotFound, ErrCodeInvalidCode, services.ErrInvalidCode.Error())
	case errors.Is(err, services.ErrAlreadyLinked):
		fail(c, http.StatusConflict, ErrCodeAlreadyLinked, services.ErrAlreadyLinked.Error())
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	default:
		ok(c, http.StatusCreated, link)
	}
}

// GameUnlink godoc
// @ID          gameUnlink
// @Summary     Remove a link from the game side
// @Tags        Game
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.GameUnlinkRequest  true  "Unlink payload"
//
// @Success     204  "Unlinked"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /game/unlink [post]
func (h *Handlers) GameUnlink(c *gin.Context) {
	var req GameUnlinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	err := h.links.UnlinkMinecraft(c.Request.Context(), strings.TrimSpace(req.MinecraftID))
	switch {
	case errors.Is(err, services.ErrLinkNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, services.ErrLinkNotFound.Error())
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	default:
		noContent(c)
	}
}

// GetGameLink godoc
// @ID          getGameLink
// @Summary     Look up a link by Minecraft id
// @Tags        Game
// @Produce     json
//
// @Param       minecraft_id  path  string  true  "Minecraft account id"
//
// @Success     200  {object}  domain.AccountLink
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /game/links/{minecraft_id} [get]
func (h *Handlers) GetGameLink(c *gin.Context) {
	link, err := h.links.LinkByMinecraftID(c.Request.Context(), c.Param("minecraft_id"))
	switch {
	case errors.Is(err, services.ErrLinkNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, services.ErrLinkNotFound.Error())
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	default:
		ok(c, http.StatusOK, link)
	}
}

// StartWarmup godoc
// @ID          startWarmup
// @Summary     Start a command cooldown
// @Description Starts a per-actor, per-command cooldown. While one is live the command is rejected with its remaining time.
// @Tags        Game
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.WarmupRequest  true  "Warmup payload"
//
// @Success     201  "Cooldown started; command may proceed"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.WarmupStatusResponse  "Cooldown still active"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /game/warmups [post]
func (h *Handlers) StartWarmup(c *gin.Context) {
	var req WarmupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	err := h.warmups.Begin(req.Actor, req.Command, time.Duration(req.Seconds)*time.Second)
	switch {
	case errors.Is(err, services.ErrCooldownActive):
		remaining, _ := h.warmups.Check(req.Actor, req.Command)
		c.AbortWithStatusJSON(http.StatusConflict, WarmupStatusResponse{
			RemainingSeconds: ceilSeconds(remaining),
		})
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	default:
		c.Status(http.StatusCreated)
	}
}

// CancelWarmup godoc
// @ID          cancelWarmup
// @Summary     Cancel a live cooldown (admin override)
// @Tags        Game
// @Produce     json
//
// @Param       actor    query  string  true  "Player name"
// @Param       command  query  string  true  "Command name"
//
// @Success     204  "Cancelled"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "No active cooldown"
// @Router      /game/warmups [delete]
func (h *Handlers) CancelWarmup(c *gin.Context) {
	actor := strings.TrimSpace(c.Query("actor"))
	cmd := strings.TrimSpace(c.Query("command"))
	if actor == "" || cmd == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "actor and command are required")
		return
	}

	if !h.warmups.Cancel(actor, cmd) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, services.ErrCooldownNotFound.Error())
		return
	}
	noContent(c)
}

// ceilSeconds rounds a remaining duration up to whole seconds so a client
// never sleeps short of the deadline.
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	s := int(d / time.Second)
	if d%time.Second != 0 {
		s++
	}
	return s
}
