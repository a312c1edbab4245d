package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-booking-api/internal/models"
)

func TestOccurrencesSameWeekdayRollsForward(t *testing.T) {
	e := NewSeriesExpander(8)
	monday := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

	dates := e.Occurrences(monday, time.Monday)
	require.Len(t, dates, 8)
	// Same weekday starts one week out, never on the initiating date.
	require.Equal(t, monday.AddDate(0, 0, 7), dates[0])
	require.Equal(t, monday.AddDate(0, 0, 7*8), dates[7])
	for _, d := range dates {
		require.Equal(t, time.Monday, d.Weekday())
	}
}

func TestOccurrencesLaterWeekday(t *testing.T) {
	e := NewSeriesExpander(8)
	monday := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

	dates := e.Occurrences(monday, time.Wednesday)
	require.Equal(t, time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC), dates[0])
	require.Equal(t, time.Wednesday, dates[len(dates)-1].Weekday())
}

func TestOccurrencesEarlierWeekdayWrapsWeek(t *testing.T) {
	e := NewSeriesExpander(8)
	wednesday := time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)

	dates := e.Occurrences(wednesday, time.Monday)
	// Monday before Wednesday wraps to the following week.
	require.Equal(t, time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC), dates[0])
}

func TestOccurrencesForSetThreeWeekdays(t *testing.T) {
	e := NewSeriesExpander(8)
	monday := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

	dates := e.OccurrencesForSet(monday, []time.Weekday{time.Monday, time.Wednesday, time.Friday})
	require.Len(t, dates, 24)

	seen := make(map[string]bool, len(dates))
	for _, d := range dates {
		key := d.Format("2006-01-02")
		require.False(t, seen[key], "duplicate date %s", key)
		seen[key] = true
		require.True(t, d.After(monday))
	}
}

func TestWeekAnchor(t *testing.T) {
	monday := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	require.Equal(t, monday, WeekAnchor(monday))
	require.Equal(t, monday, WeekAnchor(monday.AddDate(0, 0, 3)))  // Thursday
	require.Equal(t, monday, WeekAnchor(monday.AddDate(0, 0, 6)))  // Sunday
	require.NotEqual(t, monday, WeekAnchor(monday.AddDate(0, 0, 7)))
}

func TestBuildInstances(t *testing.T) {
	e := NewSeriesExpander(8)
	student := "student-1"
	teacher := "teacher-1"
	template := models.Slot{
		OwnerID:   "owner-1",
		StudentID: &student,
		TeacherID: &teacher,
		StartTime: "10:00",
		IsTrial:   true, // must not propagate
	}
	weekdays := []time.Weekday{time.Monday, time.Wednesday}
	dates := e.OccurrencesForSet(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), weekdays)

	instances := e.BuildInstances(template, "series-1", weekdays, dates)
	require.Len(t, instances, 16)
	for _, in := range instances {
		require.NotEmpty(t, in.ID)
		require.Equal(t, "owner-1", in.OwnerID)
		require.Equal(t, &student, in.StudentID)
		require.Equal(t, &teacher, in.TeacherID)
		require.Equal(t, "10:00", in.StartTime)
		require.Equal(t, models.SlotStatusReserved, in.Status)
		require.Equal(t, models.AttendancePending, in.Attendance)
		require.False(t, in.IsTrial)
		require.True(t, in.IsRecurring)
		require.Equal(t, "series-1", *in.SeriesID)
		require.Equal(t, 2, *in.WeeklyFrequency)
	}
}
