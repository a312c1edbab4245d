package models

import (
	"time"

	"github.com/lib/pq"
)

// SlotStatus is the lifecycle status of a class slot.
type SlotStatus string

const (
	SlotStatusReserved  SlotStatus = "RESERVED"
	SlotStatusCompleted SlotStatus = "COMPLETED"
	SlotStatusCancelled SlotStatus = "CANCELLED"
)

// Valid returns true when the status is a supported value.
func (s SlotStatus) Valid() bool {
	switch s {
	case SlotStatusReserved, SlotStatusCompleted, SlotStatusCancelled:
		return true
	default:
		return false
	}
}

// AttendanceStatus tracks whether the student showed up, independently of
// the slot status.
type AttendanceStatus string

const (
	AttendancePending AttendanceStatus = "PENDING"
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
)

// Valid returns true when the attendance value is supported.
func (a AttendanceStatus) Valid() bool {
	switch a {
	case AttendancePending, AttendancePresent, AttendanceAbsent:
		return true
	default:
		return false
	}
}

// Slot is one bookable (date, time) instance, optionally bound to one
// student. Several rows may share (owner_id, date, start_time), one per
// assigned student; together they are one physical time slot's occupancy.
type Slot struct {
	ID              string           `db:"id" json:"id"`
	OwnerID         string           `db:"owner_id" json:"owner_id"`
	StudentID       *string          `db:"student_id" json:"student_id,omitempty"`
	TeacherID       *string          `db:"teacher_id" json:"teacher_id,omitempty"`
	Date            time.Time        `db:"date" json:"date"`
	StartTime       string           `db:"start_time" json:"start_time"`
	Status          SlotStatus       `db:"status" json:"status"`
	Attendance      AttendanceStatus `db:"attendance" json:"attendance"`
	IsTrial         bool             `db:"is_trial" json:"is_trial"`
	IsRecurring     bool             `db:"is_recurring" json:"is_recurring"`
	WeeklyFrequency *int             `db:"weekly_frequency" json:"weekly_frequency,omitempty"`
	Weekdays        pq.Int64Array    `db:"weekdays" json:"weekdays,omitempty"`
	SeriesID        *string          `db:"series_id" json:"series_id,omitempty"`
	CalendarEventID *string          `db:"calendar_event_id" json:"calendar_event_id,omitempty"`
	DeletedAt       *time.Time       `db:"deleted_at" json:"-"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// StartsAt combines the slot date with its HH:MM start time in loc.
func (s Slot) StartsAt(loc *time.Location) time.Time {
	t, err := time.Parse("15:04", s.StartTime)
	if err != nil {
		return s.Date
	}
	return time.Date(s.Date.Year(), s.Date.Month(), s.Date.Day(), t.Hour(), t.Minute(), 0, 0, loc)
}

// SlotRecord extends a slot with student metadata for listings.
type SlotRecord struct {
	Slot
	StudentName *string `db:"student_name" json:"student_name,omitempty"`
}

// SlotFilter scopes agenda listing queries.
type SlotFilter struct {
	Scope     Scope
	DateFrom  *time.Time
	DateTo    *time.Time
	StudentID string
	Status    *SlotStatus
	SeriesID  string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// SlotUpdate carries the optional fields of a slot edit; nil fields are
// left untouched. An empty StudentID clears the assignment (stored as NULL).
type SlotUpdate struct {
	Date        *time.Time
	StartTime   *string
	StudentID   *string
	Status      *SlotStatus
	Attendance  *AttendanceStatus
	IsRecurring *bool
	Weekdays    []int64
}

// SeriesScope selects which instances of a series an edit applies to.
type SeriesScope string

const (
	SeriesScopeFuture        SeriesScope = "future"
	SeriesScopeAllUnattended SeriesScope = "all_unattended"
)

// Valid returns true when the scope is supported.
func (s SeriesScope) Valid() bool {
	return s == SeriesScopeFuture || s == SeriesScopeAllUnattended
}
