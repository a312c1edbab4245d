package models

import "time"

// Plan is a prepaid pack: a weekly class quota at a monthly price.
// Rows referenced by historical billing computations are treated as
// immutable; edits only affect future proration.
type Plan struct {
	ID          string     `db:"id" json:"id"`
	OwnerID     string     `db:"owner_id" json:"owner_id"`
	Name        string     `db:"name" json:"name"`
	WeeklyQuota int        `db:"weekly_quota" json:"weekly_quota"`
	Price       float64    `db:"price" json:"price"`
	DeletedAt   *time.Time `db:"deleted_at" json:"-"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
