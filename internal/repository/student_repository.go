package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studio-booking-api/internal/models"
	"github.com/noah-isme/studio-booking-api/pkg/database"
)

// StudentRepository handles persistence for students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func (r *StudentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// RunTx executes fn inside a transaction on the repository's database handle.
func (r *StudentRepository) RunTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return database.RunTx(ctx, r.db, fn)
}

const studentColumns = `id, owner_id, full_name, email, phone, plan_id, cycle_start_day, credit_balance, active, deleted_at, created_at, updated_at`

// FindByID loads one student scoped to the owner.
func (r *StudentRepository) FindByID(ctx context.Context, scope models.Scope, id string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id, scope.OwnerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// ChangePlan updates the student's plan and applies the proration delta to
// the stored credit balance in one statement.
func (r *StudentRepository) ChangePlan(ctx context.Context, exec sqlx.ExtContext, id string, planID *string, creditDelta float64) error {
	const query = `UPDATE students
SET plan_id = $1, credit_balance = credit_balance + $2, updated_at = $3
WHERE id = $4 AND deleted_at IS NULL`
	if _, err := r.exec(exec).ExecContext(ctx, query, planID, creditDelta, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("change student plan: %w", err)
	}
	return nil
}

// SetCreditBalance overwrites the stored credit balance.
func (r *StudentRepository) SetCreditBalance(ctx context.Context, exec sqlx.ExtContext, id string, balance float64) error {
	const query = `UPDATE students SET credit_balance = $1, updated_at = $2 WHERE id = $3 AND deleted_at IS NULL`
	if _, err := r.exec(exec).ExecContext(ctx, query, balance, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("set credit balance: %w", err)
	}
	return nil
}
