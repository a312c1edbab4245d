package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studio-booking-api/internal/models"
	"github.com/noah-isme/studio-booking-api/internal/service"
	appErrors "github.com/noah-isme/studio-booking-api/pkg/errors"
	"github.com/noah-isme/studio-booking-api/pkg/response"
)

// SlotHandler exposes the booking and agenda endpoints.
type SlotHandler struct {
	bookings *service.BookingService
	exports  *service.ExportService
}

// NewSlotHandler constructs SlotHandler.
func NewSlotHandler(bookings *service.BookingService, exports *service.ExportService) *SlotHandler {
	return &SlotHandler{bookings: bookings, exports: exports}
}

// List godoc
// @Summary List agenda slots
// @Tags Slots
// @Produce json
// @Param dateFrom query string false "Start date (YYYY-MM-DD)"
// @Param dateTo query string false "End date (YYYY-MM-DD)"
// @Param studentId query string false "Filter by student"
// @Param status query string false "Filter by status"
// @Param seriesId query string false "Filter by series"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /slots [get]
func (h *SlotHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.SlotFilter
	if raw := c.Query("dateFrom"); raw != "" {
		if date, err := time.Parse("2006-01-02", raw); err == nil {
			filter.DateFrom = &date
		}
	}
	if raw := c.Query("dateTo"); raw != "" {
		if date, err := time.Parse("2006-01-02", raw); err == nil {
			filter.DateTo = &date
		}
	}
	filter.StudentID = c.Query("studentId")
	filter.SeriesID = c.Query("seriesId")
	if raw := strings.ToUpper(c.Query("status")); raw != "" {
		status := models.SlotStatus(raw)
		filter.Status = &status
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	records, pagination, err := h.bookings.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Get godoc
// @Summary Get one slot
// @Tags Slots
// @Produce json
// @Param id path string true "Slot ID"
// @Success 200 {object} response.Envelope
// @Router /slots/{id} [get]
func (h *SlotHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	slot, err := h.bookings.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Create godoc
// @Summary Book a slot
// @Description Reserve a time slot for one or more students, optionally recurring
// @Tags Slots
// @Accept json
// @Produce json
// @Param payload body service.BookSlotRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /slots [post]
func (h *SlotHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.BookSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	slots, err := h.bookings.Book(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slots)
}

// Update godoc
// @Summary Edit a slot
// @Tags Slots
// @Accept json
// @Produce json
// @Param id path string true "Slot ID"
// @Param payload body service.EditSlotRequest true "Edit payload"
// @Success 200 {object} response.Envelope
// @Router /slots/{id} [patch]
func (h *SlotHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.EditSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	slot, err := h.bookings.Edit(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Cancel godoc
// @Summary Cancel a slot
// @Tags Slots
// @Produce json
// @Param id path string true "Slot ID"
// @Success 200 {object} response.Envelope
// @Router /slots/{id} [delete]
func (h *SlotHandler) Cancel(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	slot, err := h.bookings.Cancel(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

type changeStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ChangeStatus godoc
// @Summary Change slot status
// @Tags Slots
// @Accept json
// @Produce json
// @Param id path string true "Slot ID"
// @Param payload body changeStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /slots/{id}/status [put]
func (h *SlotHandler) ChangeStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req changeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	status := models.SlotStatus(strings.ToUpper(req.Status))
	slot, err := h.bookings.ChangeStatus(c.Request.Context(), actor, c.Param("id"), status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

type attendanceRequest struct {
	Attendance string `json:"attendance" binding:"required"`
}

// SetAttendance godoc
// @Summary Record attendance
// @Tags Slots
// @Accept json
// @Produce json
// @Param id path string true "Slot ID"
// @Param payload body attendanceRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /slots/{id}/attendance [put]
func (h *SlotHandler) SetAttendance(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req attendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	attendance := models.AttendanceStatus(strings.ToUpper(req.Attendance))
	slot, err := h.bookings.SetAttendance(c.Request.Context(), actor, c.Param("id"), attendance)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

type bulkCancelRequest struct {
	SlotIDs []string `json:"slot_ids" binding:"required"`
}

// BulkCancel godoc
// @Summary Cancel several slots at once
// @Tags Slots
// @Accept json
// @Produce json
// @Param payload body bulkCancelRequest true "Slot ids"
// @Success 200 {object} response.Envelope
// @Router /slots/bulk-cancel [post]
func (h *SlotHandler) BulkCancel(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req bulkCancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	cancelled, err := h.bookings.BulkCancel(c.Request.Context(), actor, req.SlotIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"cancelled": cancelled}, nil)
}

// UpdateSeries godoc
// @Summary Edit a recurring series
// @Description Move instance times or regenerate instances on a new weekday set
// @Tags Slots
// @Accept json
// @Produce json
// @Param id path string true "Series ID"
// @Param payload body service.EditSeriesRequest true "Series edit payload"
// @Success 200 {object} response.Envelope
// @Router /series/{id} [patch]
func (h *SlotHandler) UpdateSeries(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.EditSeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	affected, err := h.bookings.EditSeries(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"affected": affected}, nil)
}

// ExportWeek godoc
// @Summary Download the weekly schedule as PDF
// @Tags Slots
// @Produce application/pdf
// @Param weekStart query string true "Week start date (YYYY-MM-DD)"
// @Success 200 {file} binary
// @Router /slots/export [get]
func (h *SlotHandler) ExportWeek(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	weekStart, err := time.Parse("2006-01-02", c.Query("weekStart"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "weekStart must be YYYY-MM-DD"))
		return
	}
	payload, filename, err := h.exports.WeeklySchedulePDF(c.Request.Context(), actor.Owner, weekStart)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", payload)
}
