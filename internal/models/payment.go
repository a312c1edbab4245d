package models

import "time"

// PaymentStatus is the lifecycle of a payment.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
)

// Valid returns true when the status is supported.
func (s PaymentStatus) Valid() bool {
	return s == PaymentStatusPending || s == PaymentStatusPaid
}

// Payment is one billing-cycle charge for a student. CycleLabel names the
// cycle the charge covers (e.g. "2024-01-10/2024-02-10").
type Payment struct {
	ID              string        `db:"id" json:"id"`
	StudentID       string        `db:"student_id" json:"student_id"`
	Amount          float64       `db:"amount" json:"amount"`
	DueDate         time.Time     `db:"due_date" json:"due_date"`
	PaidDate        *time.Time    `db:"paid_date" json:"paid_date,omitempty"`
	Status          PaymentStatus `db:"status" json:"status"`
	CycleLabel      string        `db:"cycle_label" json:"cycle_label"`
	ExpectedClasses *int          `db:"expected_classes" json:"expected_classes,omitempty"`
	DeletedAt       *time.Time    `db:"deleted_at" json:"-"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}
