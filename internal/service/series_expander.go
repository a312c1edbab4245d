package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/noah-isme/studio-booking-api/internal/models"
)

// SeriesExpander projects a recurring booking into future weekly slot
// instances sharing a series id. Expansion past the initiating slot is
// best-effort; only the initiating slot carries a hard capacity guarantee.
type SeriesExpander struct {
	horizonWeeks int
}

// NewSeriesExpander constructs the expander.
func NewSeriesExpander(horizonWeeks int) *SeriesExpander {
	if horizonWeeks <= 0 {
		horizonWeeks = 8
	}
	return &SeriesExpander{horizonWeeks: horizonWeeks}
}

// HorizonWeeks returns the number of weekly instances generated per weekday.
func (e *SeriesExpander) HorizonWeeks() int {
	return e.horizonWeeks
}

// Occurrences computes the expansion dates for one weekday relative to the
// initiating date. The first occurrence is always strictly after the
// initiating date: an offset of zero (same weekday) rolls forward a full
// week, because the initiating slot is inserted separately.
func (e *SeriesExpander) Occurrences(initial time.Time, weekday time.Weekday) []time.Time {
	offset := (int(weekday) - int(initial.Weekday())) % 7
	if offset <= 0 {
		offset += 7
	}
	first := initial.AddDate(0, 0, offset)

	dates := make([]time.Time, 0, e.horizonWeeks)
	for i := 0; i < e.horizonWeeks; i++ {
		dates = append(dates, first.AddDate(0, 0, 7*i))
	}
	return dates
}

// OccurrencesForSet expands every weekday in the set. No two returned dates
// collide: each weekday maps to a distinct day-of-week lane.
func (e *SeriesExpander) OccurrencesForSet(initial time.Time, weekdays []time.Weekday) []time.Time {
	dates := make([]time.Time, 0, len(weekdays)*e.horizonWeeks)
	for _, d := range weekdays {
		dates = append(dates, e.Occurrences(initial, d)...)
	}
	return dates
}

// WeekAnchor returns the Monday of the week containing date, used to anchor
// regenerated instances when a series changes its weekday set.
func WeekAnchor(date time.Time) time.Time {
	offset := (int(date.Weekday()) - int(time.Monday) + 7) % 7
	return date.AddDate(0, 0, -offset)
}

// BuildInstances materialises slot rows for the given dates, all tagged
// with the series id and the per-student weekday set.
func (e *SeriesExpander) BuildInstances(template models.Slot, seriesID string, weekdays []time.Weekday, dates []time.Time) []models.Slot {
	wd := make(pq.Int64Array, len(weekdays))
	for i, d := range weekdays {
		wd[i] = int64(d)
	}
	freq := len(weekdays)

	instances := make([]models.Slot, 0, len(dates))
	for _, date := range dates {
		instances = append(instances, models.Slot{
			ID:              uuid.NewString(),
			OwnerID:         template.OwnerID,
			StudentID:       template.StudentID,
			TeacherID:       template.TeacherID,
			Date:            date,
			StartTime:       template.StartTime,
			Status:          models.SlotStatusReserved,
			Attendance:      models.AttendancePending,
			IsTrial:         false,
			IsRecurring:     true,
			WeeklyFrequency: &freq,
			Weekdays:        wd,
			SeriesID:        &seriesID,
		})
	}
	return instances
}
