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

// WaitlistRepository handles persistence for waitlist entries.
type WaitlistRepository struct {
	db *sqlx.DB
}

// NewWaitlistRepository constructs the repository.
func NewWaitlistRepository(db *sqlx.DB) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

const waitlistColumns = `id, owner_id, student_id, date, start_time, position, status, notified_at, expires_at, deleted_at, created_at`

// Insert appends an entry to the queue for (owner, date, startTime). The
// position is assigned in the same statement as max(position)+1. Under
// default isolation two concurrent joins can still read the same max and
// land on the same position; NextWaiting breaks such ties by created_at.
func (r *WaitlistRepository) Insert(ctx context.Context, entry *models.WaitlistEntry) (*models.WaitlistEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `
INSERT INTO waitlist_entries (id, owner_id, student_id, date, start_time, position, status, created_at)
SELECT $1, $2, $3, $4, $5,
       COALESCE(MAX(position), 0) + 1, $6, $7
FROM waitlist_entries
WHERE owner_id = $2 AND date = $4 AND start_time = $5 AND deleted_at IS NULL
RETURNING ` + waitlistColumns
	var stored models.WaitlistEntry
	if err := r.db.GetContext(ctx, &stored, query,
		entry.ID, entry.OwnerID, entry.StudentID, entry.Date, entry.StartTime,
		models.WaitlistStatusWaiting, entry.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert waitlist entry: %w", err)
	}
	return &stored, nil
}

// FindByID loads one entry scoped to the owner.
func (r *WaitlistRepository) FindByID(ctx context.Context, scope models.Scope, id string) (*models.WaitlistEntry, error) {
	query := `SELECT ` + waitlistColumns + ` FROM waitlist_entries WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`
	var entry models.WaitlistEntry
	if err := r.db.GetContext(ctx, &entry, query, id, scope.OwnerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find waitlist entry: %w", err)
	}
	return &entry, nil
}

// NextWaiting returns the waiting entry with the smallest position for the
// queue key, or sql.ErrNoRows when the queue is empty. Entries that raced
// into the same position are served oldest first.
func (r *WaitlistRepository) NextWaiting(ctx context.Context, scope models.Scope, date time.Time, startTime string) (*models.WaitlistEntry, error) {
	query := `SELECT ` + waitlistColumns + ` FROM waitlist_entries
WHERE owner_id = $1 AND date = $2 AND start_time = $3 AND status = $4 AND deleted_at IS NULL
ORDER BY position ASC, created_at ASC
LIMIT 1`
	var entry models.WaitlistEntry
	if err := r.db.GetContext(ctx, &entry, query, scope.OwnerID, date, startTime, models.WaitlistStatusWaiting); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("next waiting entry: %w", err)
	}
	return &entry, nil
}

// MarkNotified transitions an entry to NOTIFIED with its hold window.
func (r *WaitlistRepository) MarkNotified(ctx context.Context, id string, notifiedAt, expiresAt time.Time) error {
	const query = `UPDATE waitlist_entries SET status = $1, notified_at = $2, expires_at = $3
WHERE id = $4 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, models.WaitlistStatusNotified, notifiedAt, expiresAt, id); err != nil {
		return fmt.Errorf("mark waitlist entry notified: %w", err)
	}
	return nil
}

// UpdateStatus sets the entry status without touching positions.
func (r *WaitlistRepository) UpdateStatus(ctx context.Context, id string, status models.WaitlistStatus) error {
	const query = `UPDATE waitlist_entries SET status = $1 WHERE id = $2 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, status, id); err != nil {
		return fmt.Errorf("update waitlist status: %w", err)
	}
	return nil
}

// SoftDelete removes an entry from the queue. Remaining positions are not
// renumbered.
func (r *WaitlistRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE waitlist_entries SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("soft delete waitlist entry: %w", err)
	}
	return nil
}
