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

// AvailabilityRepository handles persistence for availability windows.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

const availabilityColumns = `id, owner_id, weekday, start_time, end_time, is_morning, active, deleted_at, created_at, updated_at`

// FindForShift returns the active window for a weekday/shift pair, or
// sql.ErrNoRows when the shift is closed.
func (r *AvailabilityRepository) FindForShift(ctx context.Context, scope models.Scope, weekday int, isMorning bool) (*models.AvailabilityWindow, error) {
	query := `SELECT ` + availabilityColumns + ` FROM availability_windows
WHERE owner_id = $1 AND weekday = $2 AND is_morning = $3 AND active = TRUE AND deleted_at IS NULL
LIMIT 1`
	var window models.AvailabilityWindow
	if err := r.db.GetContext(ctx, &window, query, scope.OwnerID, weekday, isMorning); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find availability window: %w", err)
	}
	return &window, nil
}

// ListByOwner returns every window configured by the owner.
func (r *AvailabilityRepository) ListByOwner(ctx context.Context, scope models.Scope) ([]models.AvailabilityWindow, error) {
	query := `SELECT ` + availabilityColumns + ` FROM availability_windows
WHERE owner_id = $1 AND deleted_at IS NULL ORDER BY weekday ASC, start_time ASC`
	var windows []models.AvailabilityWindow
	if err := r.db.SelectContext(ctx, &windows, query, scope.OwnerID); err != nil {
		return nil, fmt.Errorf("list availability windows: %w", err)
	}
	return windows, nil
}

// Upsert inserts or updates the window for (owner, weekday, shift).
func (r *AvailabilityRepository) Upsert(ctx context.Context, window *models.AvailabilityWindow) (*models.AvailabilityWindow, error) {
	now := time.Now().UTC()
	if window.ID == "" {
		window.ID = uuid.NewString()
	}
	if window.CreatedAt.IsZero() {
		window.CreatedAt = now
	}
	window.UpdatedAt = now
	query := `INSERT INTO availability_windows (id, owner_id, weekday, start_time, end_time, is_morning, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (owner_id, weekday, is_morning)
DO UPDATE SET start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time, active = EXCLUDED.active, updated_at = EXCLUDED.updated_at
RETURNING ` + availabilityColumns
	var stored models.AvailabilityWindow
	if err := r.db.GetContext(ctx, &stored, query,
		window.ID, window.OwnerID, window.Weekday, window.StartTime, window.EndTime,
		window.IsMorning, window.Active, window.CreatedAt, window.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert availability window: %w", err)
	}
	return &stored, nil
}
