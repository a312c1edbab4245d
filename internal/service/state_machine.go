package service

import (
	"time"

	"github.com/noah-isme/studio-booking-api/internal/models"
	appErrors "github.com/noah-isme/studio-booking-api/pkg/errors"
)

// statusTransition represents one status edge of the class lifecycle.
type statusTransition struct {
	From models.SlotStatus
	To   models.SlotStatus
}

// allowedTransitions defines every legal status transition. The two edges
// back to RESERVED act as undo operations; they intentionally skip capacity
// and lead-time revalidation (see DESIGN.md).
var allowedTransitions = map[statusTransition]bool{
	{models.SlotStatusReserved, models.SlotStatusCompleted}: true,
	{models.SlotStatusReserved, models.SlotStatusCancelled}: true,
	{models.SlotStatusCompleted, models.SlotStatusReserved}: true,
	{models.SlotStatusCancelled, models.SlotStatusReserved}: true,
}

// CanTransition checks whether a status transition is allowed.
func CanTransition(from, to models.SlotStatus) bool {
	if from == to {
		return true
	}
	return allowedTransitions[statusTransition{from, to}]
}

// ValidateTransition returns a typed error for a rejected transition.
func ValidateTransition(from, to models.SlotStatus) error {
	if !CanTransition(from, to) {
		return appErrors.InvalidTransition(string(from), string(to))
	}
	return nil
}

// StatusForAttendance returns the slot status forced by an attendance mark:
// PRESENT and ABSENT complete the class, PENDING reverts it to reserved.
func StatusForAttendance(attendance models.AttendanceStatus) models.SlotStatus {
	if attendance == models.AttendancePending {
		return models.SlotStatusReserved
	}
	return models.SlotStatusCompleted
}

// ValidateAttendanceMark guards attendance updates: the slot must have a
// student and its scheduled time must have passed.
func ValidateAttendanceMark(slot *models.Slot, now time.Time) error {
	if slot.StudentID == nil || *slot.StudentID == "" {
		return appErrors.ErrNoStudentAssigned
	}
	if now.Before(slot.StartsAt(now.Location())) {
		return appErrors.ErrTooEarlyToMark
	}
	return nil
}
