package service

import (
	"time"

	"github.com/noah-isme/studio-booking-api/internal/models"
	appErrors "github.com/noah-isme/studio-booking-api/pkg/errors"
)

// ScheduleWindows carries the owner's configured bookable hours.
type ScheduleWindows struct {
	MorningStartHour   int
	MorningEndHour     int
	AfternoonStartHour int
	AfternoonEndHour   int
	LeadTimeHours      int
}

// SchedulePolicy validates a proposed slot time against the owner's
// configured hours. It is a pure check used identically for create and
// edit; the caller supplies "now" and, for weekends, the matching
// availability window (nil when none is configured).
type SchedulePolicy struct {
	windows ScheduleWindows
}

// NewSchedulePolicy constructs the policy.
func NewSchedulePolicy(windows ScheduleWindows) *SchedulePolicy {
	return &SchedulePolicy{windows: windows}
}

// IsMorning reports which shift a start time belongs to. The boundary is
// the configured afternoon start hour.
func (p *SchedulePolicy) IsMorning(startTime string) bool {
	t, err := time.Parse("15:04", startTime)
	if err != nil {
		return false
	}
	return t.Hour() < p.windows.AfternoonStartHour
}

// LeadTimeHours exposes the configured notice requirement.
func (p *SchedulePolicy) LeadTimeHours() int {
	return p.windows.LeadTimeHours
}

// WithinLeadWindow reports whether the scheduled time is already too close
// to change: edits and cancellations of such slots are rejected.
func (p *SchedulePolicy) WithinLeadWindow(now, date time.Time, startTime string) bool {
	start, err := time.Parse("15:04", startTime)
	if err != nil {
		return false
	}
	startsAt := time.Date(date.Year(), date.Month(), date.Day(), start.Hour(), start.Minute(), 0, 0, now.Location())
	return startsAt.Sub(now) < time.Duration(p.windows.LeadTimeHours)*time.Hour
}

// Check validates (date, startTime) in order: lead time, shift window,
// weekend availability. It fails with the first violated rule.
func (p *SchedulePolicy) Check(now, date time.Time, startTime string, weekend *models.AvailabilityWindow) error {
	start, err := time.Parse("15:04", startTime)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "invalid start time, expected HH:MM")
	}

	startsAt := time.Date(date.Year(), date.Month(), date.Day(), start.Hour(), start.Minute(), 0, 0, now.Location())
	lead := time.Duration(p.windows.LeadTimeHours) * time.Hour
	if startsAt.Sub(now) < lead {
		return appErrors.LeadTimeViolation(p.windows.LeadTimeHours)
	}

	hour := start.Hour()
	if p.IsMorning(startTime) {
		if hour < p.windows.MorningStartHour || hour >= p.windows.MorningEndHour {
			return appErrors.ErrOutsideHours
		}
	} else {
		if hour < p.windows.AfternoonStartHour || hour >= p.windows.AfternoonEndHour {
			return appErrors.ErrOutsideHours
		}
	}

	weekday := startsAt.Weekday()
	if weekday == time.Saturday || weekday == time.Sunday {
		if weekend == nil || !weekend.Active {
			return appErrors.ErrWeekendNotAvailable
		}
		if !withinWindow(startTime, weekend.StartTime, weekend.EndTime) {
			return appErrors.ErrWeekendNotAvailable
		}
	}

	return nil
}

// withinWindow compares HH:MM strings lexically, which is ordering-safe for
// zero-padded 24h times.
func withinWindow(t, from, to string) bool {
	return t >= from && t < to
}
