package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studio-booking-api/internal/models"
)

// PlanRepository handles persistence for prepaid plans.
type PlanRepository struct {
	db *sqlx.DB
}

// NewPlanRepository constructs the repository.
func NewPlanRepository(db *sqlx.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `id, owner_id, name, weekly_quota, price, deleted_at, created_at, updated_at`

// FindByID loads one plan scoped to the owner.
func (r *PlanRepository) FindByID(ctx context.Context, scope models.Scope, id string) (*models.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`
	var plan models.Plan
	if err := r.db.GetContext(ctx, &plan, query, id, scope.OwnerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find plan: %w", err)
	}
	return &plan, nil
}

// ListByOwner returns the owner's plan catalog.
func (r *PlanRepository) ListByOwner(ctx context.Context, scope models.Scope) ([]models.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE owner_id = $1 AND deleted_at IS NULL ORDER BY price ASC`
	var plans []models.Plan
	if err := r.db.SelectContext(ctx, &plans, query, scope.OwnerID); err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}
