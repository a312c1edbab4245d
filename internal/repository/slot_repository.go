package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/studio-booking-api/internal/models"
	"github.com/noah-isme/studio-booking-api/pkg/database"
)

// SlotRepository handles persistence for class slots. Capacity counts and
// the inserts they guard run against the same transaction handle; the
// repository never caches counts.
type SlotRepository struct {
	db *sqlx.DB
}

// NewSlotRepository constructs the repository.
func NewSlotRepository(db *sqlx.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

func (r *SlotRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// RunSerializable executes fn inside a SERIALIZABLE transaction on the
// repository's database handle.
func (r *SlotRepository) RunSerializable(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return database.RunSerializable(ctx, r.db, fn)
}

// CountActiveAt counts non-cancelled, non-deleted slots with an assigned
// student at (owner, date, startTime), excluding excludeID when set. This is
// the live capacity read; it must always run inside the booking transaction.
func (r *SlotRepository) CountActiveAt(ctx context.Context, exec sqlx.ExtContext, scope models.Scope, date time.Time, startTime string, excludeID string) (int, error) {
	query := `SELECT COUNT(*) FROM slots
WHERE owner_id = $1 AND date = $2 AND start_time = $3
  AND student_id IS NOT NULL
  AND status <> $4
  AND deleted_at IS NULL`
	args := []interface{}{scope.OwnerID, date, startTime, models.SlotStatusCancelled}
	if excludeID != "" {
		query += " AND id <> $5"
		args = append(args, excludeID)
	}
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, args...); err != nil {
		return 0, fmt.Errorf("count slots at time: %w", err)
	}
	return count, nil
}

// CountActiveAtDates returns occupancy per date for a shared start time,
// one grouped query instead of one per generated instance. Keys use the
// YYYY-MM-DD form of each date.
func (r *SlotRepository) CountActiveAtDates(ctx context.Context, exec sqlx.ExtContext, scope models.Scope, dates []time.Time, startTime string) (map[string]int, error) {
	counts := make(map[string]int, len(dates))
	if len(dates) == 0 {
		return counts, nil
	}
	const query = `SELECT date, COUNT(*) AS cnt FROM slots
WHERE owner_id = $1 AND date = ANY($2) AND start_time = $3
  AND student_id IS NOT NULL
  AND status <> $4
  AND deleted_at IS NULL
GROUP BY date`
	rows := []struct {
		Date  time.Time `db:"date"`
		Count int       `db:"cnt"`
	}{}
	if err := sqlx.SelectContext(ctx, r.exec(exec), &rows, query, scope.OwnerID, pq.Array(dates), startTime, models.SlotStatusCancelled); err != nil {
		return nil, fmt.Errorf("count slots per date: %w", err)
	}
	for _, row := range rows {
		counts[row.Date.Format("2006-01-02")] = row.Count
	}
	return counts, nil
}

// Insert persists the given slots, assigning ids and timestamps when unset.
func (r *SlotRepository) Insert(ctx context.Context, exec sqlx.ExtContext, slots []models.Slot) error {
	if len(slots) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO slots (id, owner_id, student_id, teacher_id, date, start_time, status, attendance, is_trial, is_recurring, weekly_frequency, weekdays, series_id, calendar_event_id, created_at, updated_at)
VALUES (:id, :owner_id, :student_id, :teacher_id, :date, :start_time, :status, :attendance, :is_trial, :is_recurring, :weekly_frequency, :weekdays, :series_id, :calendar_event_id, :created_at, :updated_at)`

	for i := range slots {
		slot := &slots[i]
		if slot.ID == "" {
			slot.ID = uuid.NewString()
		}
		if slot.CreatedAt.IsZero() {
			slot.CreatedAt = now
		}
		slot.UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, query, slot); err != nil {
			return fmt.Errorf("insert slot: %w", err)
		}
	}
	return nil
}

// FindByID loads one slot scoped to the owner. Soft-deleted rows are not
// visible.
func (r *SlotRepository) FindByID(ctx context.Context, scope models.Scope, id string) (*models.Slot, error) {
	const query = `SELECT id, owner_id, student_id, teacher_id, date, start_time, status, attendance, is_trial, is_recurring, weekly_frequency, weekdays, series_id, calendar_event_id, deleted_at, created_at, updated_at
FROM slots WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`
	var slot models.Slot
	if err := r.db.GetContext(ctx, &slot, query, id, scope.OwnerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find slot: %w", err)
	}
	return &slot, nil
}

// List returns slots matching the filter with student names joined in.
func (r *SlotRepository) List(ctx context.Context, filter models.SlotFilter) ([]models.SlotRecord, int, error) {
	base := `FROM slots sl LEFT JOIN students st ON st.id = sl.student_id`
	where := []string{"sl.owner_id = $1", "sl.deleted_at IS NULL"}
	args := []interface{}{filter.Scope.OwnerID}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("sl.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("sl.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("sl.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("sl.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.SeriesID != "" {
		where = append(where, fmt.Sprintf("sl.series_id = $%d", len(args)+1))
		args = append(args, filter.SeriesID)
	}
	whereClause := strings.Join(where, " AND ")

	sortColumn := "sl.date"
	if filter.SortBy == "created_at" {
		sortColumn = "sl.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT sl.id, sl.owner_id, sl.student_id, sl.teacher_id, sl.date, sl.start_time, sl.status, sl.attendance, sl.is_trial, sl.is_recurring, sl.weekly_frequency, sl.weekdays, sl.series_id, sl.calendar_event_id, sl.deleted_at, sl.created_at, sl.updated_at,
        st.full_name AS student_name
        %s WHERE %s
        ORDER BY %s %s, sl.start_time ASC
        LIMIT %d OFFSET %d`, base, whereClause, sortColumn, order, size, offset)

	var rows []models.SlotRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list slots: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count slots: %w", err)
	}
	return rows, total, nil
}

// ListBySeries returns the instances of a series an edit applies to.
// SeriesScopeFuture selects instances dated today or later;
// SeriesScopeAllUnattended selects every instance not already marked present.
func (r *SlotRepository) ListBySeries(ctx context.Context, scope models.Scope, seriesID string, seriesScope models.SeriesScope, today time.Time) ([]models.Slot, error) {
	where := []string{"owner_id = $1", "series_id = $2", "deleted_at IS NULL"}
	args := []interface{}{scope.OwnerID, seriesID}
	switch seriesScope {
	case models.SeriesScopeFuture:
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, today)
	case models.SeriesScopeAllUnattended:
		where = append(where, fmt.Sprintf("attendance <> $%d", len(args)+1))
		args = append(args, models.AttendancePresent)
	}
	query := fmt.Sprintf(`SELECT id, owner_id, student_id, teacher_id, date, start_time, status, attendance, is_trial, is_recurring, weekly_frequency, weekdays, series_id, calendar_event_id, deleted_at, created_at, updated_at
FROM slots WHERE %s ORDER BY date ASC, start_time ASC`, strings.Join(where, " AND "))
	var slots []models.Slot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("list series slots: %w", err)
	}
	return slots, nil
}

// Update applies the populated fields of upd to one slot.
func (r *SlotRepository) Update(ctx context.Context, exec sqlx.ExtContext, id string, upd models.SlotUpdate) error {
	set := []string{}
	args := []interface{}{}
	add := func(column string, value interface{}) {
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)+1))
		args = append(args, value)
	}
	if upd.Date != nil {
		add("date", *upd.Date)
	}
	if upd.StartTime != nil {
		add("start_time", *upd.StartTime)
	}
	if upd.StudentID != nil {
		// An empty string clears the assignment. The column must go NULL,
		// not '', or the freed seat keeps counting against capacity.
		if *upd.StudentID == "" {
			add("student_id", nil)
		} else {
			add("student_id", *upd.StudentID)
		}
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.Attendance != nil {
		add("attendance", *upd.Attendance)
	}
	if upd.IsRecurring != nil {
		add("is_recurring", *upd.IsRecurring)
	}
	if upd.Weekdays != nil {
		add("weekdays", pq.Int64Array(upd.Weekdays))
	}
	if len(set) == 0 {
		return nil
	}
	add("updated_at", time.Now().UTC())
	query := fmt.Sprintf("UPDATE slots SET %s WHERE id = $%d AND deleted_at IS NULL", strings.Join(set, ", "), len(args)+1)
	args = append(args, id)
	if _, err := r.exec(exec).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update slot: %w", err)
	}
	return nil
}

// UpdateStartTimes rewrites start_time on the given slots.
func (r *SlotRepository) UpdateStartTimes(ctx context.Context, exec sqlx.ExtContext, ids []string, startTime string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const query = `UPDATE slots SET start_time = $1, updated_at = $2 WHERE id = ANY($3) AND deleted_at IS NULL`
	res, err := r.exec(exec).ExecContext(ctx, query, startTime, time.Now().UTC(), pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("update slot times: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

// SoftDelete tombstones the given slots. Tombstoned rows disappear from
// every read path, capacity counts included.
func (r *SlotRepository) SoftDelete(ctx context.Context, exec sqlx.ExtContext, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const query = `UPDATE slots SET deleted_at = $1, updated_at = $1 WHERE id = ANY($2) AND deleted_at IS NULL`
	res, err := r.exec(exec).ExecContext(ctx, query, time.Now().UTC(), pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("soft delete slots: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

// CountForStudentInRange counts non-cancelled classes for a student inside
// [from, to), used by the billing proration path.
func (r *SlotRepository) CountForStudentInRange(ctx context.Context, scope models.Scope, studentID string, from, to time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM slots
WHERE owner_id = $1 AND student_id = $2
  AND date >= $3 AND date < $4
  AND status <> $5
  AND deleted_at IS NULL`
	var count int
	if err := r.db.GetContext(ctx, &count, query, scope.OwnerID, studentID, from, to, models.SlotStatusCancelled); err != nil {
		return 0, fmt.Errorf("count student classes: %w", err)
	}
	return count, nil
}

// SetCalendarEventID stores the external calendar event reference.
func (r *SlotRepository) SetCalendarEventID(ctx context.Context, id string, eventID *string) error {
	const query = `UPDATE slots SET calendar_event_id = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, eventID, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("set calendar event id: %w", err)
	}
	return nil
}
