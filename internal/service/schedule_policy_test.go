package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-booking-api/internal/models"
	appErrors "github.com/noah-isme/studio-booking-api/pkg/errors"
)

func testPolicy() *SchedulePolicy {
	return NewSchedulePolicy(ScheduleWindows{
		MorningStartHour:   8,
		MorningEndHour:     13,
		AfternoonStartHour: 14,
		AfternoonEndHour:   21,
		LeadTimeHours:      24,
	})
}

func TestSchedulePolicyLeadTime(t *testing.T) {
	p := testPolicy()
	now := time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC) // Monday

	// Tomorrow at 09:00 is 23h away: too close.
	err := p.Check(now, now.AddDate(0, 0, 1), "09:00", nil)
	require.ErrorIs(t, err, appErrors.ErrLeadTimeViolation)

	// Tomorrow at 11:00 is 25h away: fine.
	err = p.Check(now, now.AddDate(0, 0, 1), "11:00", nil)
	require.NoError(t, err)
}

func TestSchedulePolicyShiftWindows(t *testing.T) {
	p := testPolicy()
	now := time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC)
	date := now.AddDate(0, 0, 7) // next Monday, clear of lead time

	cases := []struct {
		name      string
		startTime string
		wantErr   error
	}{
		{"morning lower bound", "08:00", nil},
		{"before morning opens", "07:00", appErrors.ErrOutsideHours},
		{"gap between shifts", "13:30", appErrors.ErrOutsideHours},
		{"afternoon", "15:00", nil},
		{"after closing", "21:00", appErrors.ErrOutsideHours},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := p.Check(now, date, tc.startTime, nil)
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestSchedulePolicyWeekend(t *testing.T) {
	p := testPolicy()
	now := time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC)
	saturday := time.Date(2024, 3, 23, 0, 0, 0, 0, time.UTC)

	// No window configured.
	err := p.Check(now, saturday, "10:00", nil)
	require.ErrorIs(t, err, appErrors.ErrWeekendNotAvailable)

	// Inactive window.
	window := &models.AvailabilityWindow{StartTime: "09:00", EndTime: "12:00", Active: false}
	err = p.Check(now, saturday, "10:00", window)
	require.ErrorIs(t, err, appErrors.ErrWeekendNotAvailable)

	// Active window, time inside.
	window.Active = true
	require.NoError(t, p.Check(now, saturday, "10:00", window))

	// Active window, time outside.
	err = p.Check(now, saturday, "12:30", window)
	require.ErrorIs(t, err, appErrors.ErrWeekendNotAvailable)
}

func TestSchedulePolicyRuleOrder(t *testing.T) {
	p := testPolicy()
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) // Friday

	// Tomorrow (Saturday) inside lead window, outside hours, no weekend
	// window: the lead-time rule must win.
	err := p.Check(now, now.AddDate(0, 0, 1), "07:00", nil)
	require.ErrorIs(t, err, appErrors.ErrLeadTimeViolation)

	var typed *appErrors.Error
	require.True(t, errors.As(err, &typed))
	require.Equal(t, "LEAD_TIME_VIOLATION", typed.Code)
}

func TestSchedulePolicyIsMorning(t *testing.T) {
	p := testPolicy()
	require.True(t, p.IsMorning("08:00"))
	require.True(t, p.IsMorning("13:59"))
	require.False(t, p.IsMorning("14:00"))
	require.False(t, p.IsMorning("not-a-time"))
}

func TestSchedulePolicyWithinLeadWindow(t *testing.T) {
	p := testPolicy()
	now := time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC)

	require.True(t, p.WithinLeadWindow(now, now.AddDate(0, 0, 1), "09:00"))
	require.False(t, p.WithinLeadWindow(now, now.AddDate(0, 0, 2), "09:00"))
}
