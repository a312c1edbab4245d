package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studio-booking-api/internal/service"
	appErrors "github.com/noah-isme/studio-booking-api/pkg/errors"
	"github.com/noah-isme/studio-booking-api/pkg/response"
)

// CatalogHandler serves the plan catalog and availability windows.
type CatalogHandler struct {
	catalog *service.CatalogService
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ListPlans godoc
// @Summary List plans
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /plans [get]
func (h *CatalogHandler) ListPlans(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	plans, err := h.catalog.ListPlans(c.Request.Context(), actor.Owner)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plans, nil)
}

// GetPlan godoc
// @Summary Get a plan
// @Tags Catalog
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /plans/{id} [get]
func (h *CatalogHandler) GetPlan(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	plan, err := h.catalog.GetPlan(c.Request.Context(), actor.Owner, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// ListAvailability godoc
// @Summary List availability windows
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /availability [get]
func (h *CatalogHandler) ListAvailability(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	windows, err := h.catalog.ListAvailability(c.Request.Context(), actor.Owner)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, windows, nil)
}

// UpsertAvailability godoc
// @Summary Create or update an availability window
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body service.UpsertAvailabilityRequest true "Availability payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /availability [put]
func (h *CatalogHandler) UpsertAvailability(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpsertAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	window, err := h.catalog.UpsertAvailability(c.Request.Context(), actor.Owner, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, window, nil)
}
