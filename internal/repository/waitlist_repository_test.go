package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-booking-api/internal/models"
)

func newWaitlistRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func waitlistRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "owner_id", "student_id", "date", "start_time", "position", "status", "notified_at", "expires_at", "deleted_at", "created_at"})
}

func TestWaitlistRepositoryInsertAssignsNextPosition(t *testing.T) {
	db, mock, cleanup := newWaitlistRepoMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	date := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	rows := waitlistRows().
		AddRow("entry-1", "owner-1", "student-1", date, "10:00", 4, models.WaitlistStatusWaiting, nil, nil, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(MAX(position), 0) + 1")).
		WillReturnRows(rows)

	stored, err := repo.Insert(context.Background(), &models.WaitlistEntry{
		OwnerID: "owner-1", StudentID: "student-1", Date: date, StartTime: "10:00",
	})
	require.NoError(t, err)
	require.Equal(t, 4, stored.Position)
	require.Equal(t, models.WaitlistStatusWaiting, stored.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitlistRepositoryNextWaitingOrdersByPosition(t *testing.T) {
	db, mock, cleanup := newWaitlistRepoMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	date := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	rows := waitlistRows().
		AddRow("entry-2", "owner-1", "student-2", date, "10:00", 2, models.WaitlistStatusWaiting, nil, nil, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY position ASC, created_at ASC")).
		WithArgs("owner-1", date, "10:00", models.WaitlistStatusWaiting).
		WillReturnRows(rows)

	entry, err := repo.NextWaiting(context.Background(), models.Scope{OwnerID: "owner-1"}, date, "10:00")
	require.NoError(t, err)
	require.Equal(t, "entry-2", entry.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitlistRepositoryNextWaitingEmptyQueue(t *testing.T) {
	db, mock, cleanup := newWaitlistRepoMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY position ASC")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.NextWaiting(context.Background(), models.Scope{OwnerID: "owner-1"}, time.Now(), "10:00")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitlistRepositoryMarkNotified(t *testing.T) {
	db, mock, cleanup := newWaitlistRepoMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	now := time.Now().UTC()
	expires := now.Add(2 * time.Hour)
	mock.ExpectExec(regexp.QuoteMeta("SET status = $1, notified_at = $2, expires_at = $3")).
		WithArgs(models.WaitlistStatusNotified, now, expires, "entry-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkNotified(context.Background(), "entry-1", now, expires))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitlistRepositorySoftDelete(t *testing.T) {
	db, mock, cleanup := newWaitlistRepoMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("SET deleted_at = $1")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SoftDelete(context.Background(), "entry-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
