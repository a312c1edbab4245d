package models

import "time"

// Student is a client of the owner's business. PlanID nil means the student
// pays a per-class rate instead of a prepaid pack.
type Student struct {
	ID            string     `db:"id" json:"id"`
	OwnerID       string     `db:"owner_id" json:"owner_id"`
	FullName      string     `db:"full_name" json:"full_name"`
	Email         *string    `db:"email" json:"email,omitempty"`
	Phone         *string    `db:"phone" json:"phone,omitempty"`
	PlanID        *string    `db:"plan_id" json:"plan_id,omitempty"`
	CycleStartDay int        `db:"cycle_start_day" json:"cycle_start_day"`
	CreditBalance float64    `db:"credit_balance" json:"credit_balance"`
	Active        bool       `db:"active" json:"active"`
	DeletedAt     *time.Time `db:"deleted_at" json:"-"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}
