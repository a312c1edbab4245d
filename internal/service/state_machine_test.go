package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-booking-api/internal/models"
	appErrors "github.com/noah-isme/studio-booking-api/pkg/errors"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to models.SlotStatus
		want     bool
	}{
		{models.SlotStatusReserved, models.SlotStatusCompleted, true},
		{models.SlotStatusReserved, models.SlotStatusCancelled, true},
		{models.SlotStatusCompleted, models.SlotStatusReserved, true},
		{models.SlotStatusCancelled, models.SlotStatusReserved, true},
		{models.SlotStatusCompleted, models.SlotStatusCancelled, false},
		{models.SlotStatusCancelled, models.SlotStatusCompleted, false},
		{models.SlotStatusReserved, models.SlotStatusReserved, true},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestValidateTransitionError(t *testing.T) {
	err := ValidateTransition(models.SlotStatusCompleted, models.SlotStatusCancelled)
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)
	require.Contains(t, err.Error(), "COMPLETED")
	require.Contains(t, err.Error(), "CANCELLED")
}

func TestStatusForAttendance(t *testing.T) {
	require.Equal(t, models.SlotStatusCompleted, StatusForAttendance(models.AttendancePresent))
	require.Equal(t, models.SlotStatusCompleted, StatusForAttendance(models.AttendanceAbsent))
	require.Equal(t, models.SlotStatusReserved, StatusForAttendance(models.AttendancePending))
}

func TestValidateAttendanceMark(t *testing.T) {
	now := time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC)
	student := "student-1"

	t.Run("no student", func(t *testing.T) {
		slot := &models.Slot{Date: now.AddDate(0, 0, -1), StartTime: "10:00"}
		require.ErrorIs(t, ValidateAttendanceMark(slot, now), appErrors.ErrNoStudentAssigned)
	})

	t.Run("class not started yet", func(t *testing.T) {
		slot := &models.Slot{StudentID: &student, Date: now, StartTime: "14:00"}
		require.ErrorIs(t, ValidateAttendanceMark(slot, now), appErrors.ErrTooEarlyToMark)
	})

	t.Run("class already started", func(t *testing.T) {
		slot := &models.Slot{StudentID: &student, Date: now, StartTime: "10:00"}
		require.NoError(t, ValidateAttendanceMark(slot, now))
	})
}
