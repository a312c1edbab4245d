package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studio-booking-api/internal/service"
	appErrors "github.com/noah-isme/studio-booking-api/pkg/errors"
	"github.com/noah-isme/studio-booking-api/pkg/response"
)

// BillingHandler exposes plan-change and payment endpoints.
type BillingHandler struct {
	billing *service.BillingService
}

// NewBillingHandler constructs BillingHandler.
func NewBillingHandler(billing *service.BillingService) *BillingHandler {
	return &BillingHandler{billing: billing}
}

// ChangePlan godoc
// @Summary Change a student's plan
// @Description Switch plan mid-cycle with prorated credit settlement
// @Tags Billing
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.ChangePlanRequest true "Plan change payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/change-plan [post]
func (h *BillingHandler) ChangePlan(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.billing.ChangePlan(c.Request.Context(), actor.Owner, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// CreatePayment godoc
// @Summary Create a payment for the student's current cycle
// @Tags Billing
// @Accept json
// @Produce json
// @Param payload body service.CreatePaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Router /payments [post]
func (h *BillingHandler) CreatePayment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	payment, err := h.billing.CreatePayment(c.Request.Context(), actor.Owner, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// MarkPaid godoc
// @Summary Settle a pending payment
// @Tags Billing
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id}/mark-paid [post]
func (h *BillingHandler) MarkPaid(c *gin.Context) {
	if _, ok := actorFromContext(c); !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	payment, err := h.billing.MarkPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// ListPayments godoc
// @Summary List payments
// @Tags Billing
// @Produce json
// @Param studentId query string true "Student to list payments for"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *BillingHandler) ListPayments(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	studentID := c.Query("studentId")
	if studentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "studentId is required"))
		return
	}
	payments, err := h.billing.ListPayments(c.Request.Context(), actor.Owner, studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}
