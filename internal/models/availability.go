package models

import "time"

// AvailabilityWindow defines which weekday/shift combinations are bookable
// at all. Weekday follows time.Weekday numbering (Sunday = 0). In practice
// these rows gate Saturday and Sunday, which are closed unless a window
// exists and is active.
type AvailabilityWindow struct {
	ID        string     `db:"id" json:"id"`
	OwnerID   string     `db:"owner_id" json:"owner_id"`
	Weekday   int        `db:"weekday" json:"weekday"`
	StartTime string     `db:"start_time" json:"start_time"`
	EndTime   string     `db:"end_time" json:"end_time"`
	IsMorning bool       `db:"is_morning" json:"is_morning"`
	Active    bool       `db:"active" json:"active"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}
