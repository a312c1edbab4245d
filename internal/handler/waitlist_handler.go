package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studio-booking-api/internal/service"
	appErrors "github.com/noah-isme/studio-booking-api/pkg/errors"
	"github.com/noah-isme/studio-booking-api/pkg/response"
)

// WaitlistHandler exposes the waitlist endpoints.
type WaitlistHandler struct {
	waitlist *service.WaitlistService
}

// NewWaitlistHandler constructs WaitlistHandler.
func NewWaitlistHandler(waitlist *service.WaitlistService) *WaitlistHandler {
	return &WaitlistHandler{waitlist: waitlist}
}

// Join godoc
// @Summary Join a waitlist
// @Description Append a student to the FIFO waitlist for a full slot
// @Tags Waitlist
// @Accept json
// @Produce json
// @Param payload body service.JoinWaitlistRequest true "Waitlist payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /waitlist [post]
func (h *WaitlistHandler) Join(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.JoinWaitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := h.waitlist.Join(c.Request.Context(), actor.Owner, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Leave godoc
// @Summary Leave a waitlist
// @Tags Waitlist
// @Produce json
// @Param id path string true "Waitlist entry ID"
// @Success 200 {object} response.Envelope
// @Router /waitlist/{id} [delete]
func (h *WaitlistHandler) Leave(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.waitlist.Leave(c.Request.Context(), actor.Owner, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"removed": true}, nil)
}

// Confirm godoc
// @Summary Confirm a promoted waitlist entry
// @Description Claim the hold created when the entry was notified
// @Tags Waitlist
// @Produce json
// @Param id path string true "Waitlist entry ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /waitlist/{id}/confirm [post]
func (h *WaitlistHandler) Confirm(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	entry, err := h.waitlist.Confirm(c.Request.Context(), actor.Owner, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}
