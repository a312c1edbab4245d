package models

import "time"

// WaitlistStatus is the lifecycle of a waitlist entry.
type WaitlistStatus string

const (
	WaitlistStatusWaiting   WaitlistStatus = "WAITING"
	WaitlistStatusNotified  WaitlistStatus = "NOTIFIED"
	WaitlistStatusConfirmed WaitlistStatus = "CONFIRMED"
)

// Valid returns true when the status is supported.
func (s WaitlistStatus) Valid() bool {
	switch s {
	case WaitlistStatusWaiting, WaitlistStatusNotified, WaitlistStatusConfirmed:
		return true
	default:
		return false
	}
}

// WaitlistEntry queues a student for a full (date, start_time) slot.
// Position values are strictly increasing by insertion order per queue key
// and are never renumbered when entries leave.
type WaitlistEntry struct {
	ID         string         `db:"id" json:"id"`
	OwnerID    string         `db:"owner_id" json:"owner_id"`
	StudentID  string         `db:"student_id" json:"student_id"`
	Date       time.Time      `db:"date" json:"date"`
	StartTime  string         `db:"start_time" json:"start_time"`
	Position   int            `db:"position" json:"position"`
	Status     WaitlistStatus `db:"status" json:"status"`
	NotifiedAt *time.Time     `db:"notified_at" json:"notified_at,omitempty"`
	ExpiresAt  *time.Time     `db:"expires_at" json:"expires_at,omitempty"`
	DeletedAt  *time.Time     `db:"deleted_at" json:"-"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}
