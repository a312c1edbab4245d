package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studio-booking-api/internal/models"
)

// OwnerRepository handles persistence for owner accounts.
type OwnerRepository struct {
	db *sqlx.DB
}

// NewOwnerRepository constructs the repository.
func NewOwnerRepository(db *sqlx.DB) *OwnerRepository {
	return &OwnerRepository{db: db}
}

// FindByID loads one owner account row.
func (r *OwnerRepository) FindByID(ctx context.Context, id string) (*models.Owner, error) {
	const query = `SELECT id, kind, name, max_per_slot FROM owners WHERE id = $1`
	var owner models.Owner
	if err := r.db.GetContext(ctx, &owner, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find owner: %w", err)
	}
	return &owner, nil
}
