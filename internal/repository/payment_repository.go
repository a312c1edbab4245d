package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studio-booking-api/internal/models"
)

// PaymentRepository handles persistence for payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const paymentColumns = `id, student_id, amount, due_date, paid_date, status, cycle_label, expected_classes, deleted_at, created_at, updated_at`

// Insert persists a payment.
func (r *PaymentRepository) Insert(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) (*models.Payment, error) {
	now := time.Now().UTC()
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now
	query := `INSERT INTO payments (id, student_id, amount, due_date, paid_date, status, cycle_label, expected_classes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + paymentColumns
	var stored models.Payment
	if err := sqlx.GetContext(ctx, r.exec(exec), &stored, query,
		payment.ID, payment.StudentID, payment.Amount, payment.DueDate, payment.PaidDate,
		payment.Status, payment.CycleLabel, payment.ExpectedClasses, payment.CreatedAt, payment.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	return &stored, nil
}

// FindByID loads one payment.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 AND deleted_at IS NULL`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return &payment, nil
}

// LastPaidInRange returns the most recent paid payment with paid_date inside
// [from, to), or sql.ErrNoRows when there is none.
func (r *PaymentRepository) LastPaidInRange(ctx context.Context, studentID string, from, to time.Time) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
WHERE student_id = $1 AND status = $2
  AND paid_date >= $3 AND paid_date < $4
  AND deleted_at IS NULL
ORDER BY paid_date DESC
LIMIT 1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, studentID, models.PaymentStatusPaid, from, to); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("last paid payment: %w", err)
	}
	return &payment, nil
}

// MarkPaid stamps a pending payment as paid.
func (r *PaymentRepository) MarkPaid(ctx context.Context, id string, paidDate time.Time) error {
	const query = `UPDATE payments SET status = $1, paid_date = $2, updated_at = $3
WHERE id = $4 AND status = $5 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, models.PaymentStatusPaid, paidDate, time.Now().UTC(), id, models.PaymentStatusPending)
	if err != nil {
		return fmt.Errorf("mark payment paid: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByStudent returns the student's payments, newest first.
func (r *PaymentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE student_id = $1 AND deleted_at IS NULL ORDER BY due_date DESC`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, studentID); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}
