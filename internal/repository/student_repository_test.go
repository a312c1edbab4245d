package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-booking-api/internal/models"
)

func studentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "owner_id", "full_name", "email", "phone", "plan_id", "cycle_start_day", "credit_balance", "active", "deleted_at", "created_at", "updated_at"})
}

func TestStudentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now().UTC()
	planID := "plan-1"
	rows := studentRows().
		AddRow("student-1", "owner-1", "Nina", nil, nil, planID, 1, 9333.35, true, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL")).
		WithArgs("student-1", "owner-1").
		WillReturnRows(rows)

	student, err := repo.FindByID(context.Background(), models.Scope{OwnerID: "owner-1"}, "student-1")
	require.NoError(t, err)
	require.Equal(t, "plan-1", *student.PlanID)
	require.Equal(t, 9333.35, student.CreditBalance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByIDScopesOwner(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("AND owner_id = $2")).
		WithArgs("student-1", "other-owner").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), models.Scope{OwnerID: "other-owner"}, "student-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryChangePlanAppliesDelta(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	planID := "plan-2"
	mock.ExpectExec(regexp.QuoteMeta("SET plan_id = $1, credit_balance = credit_balance + $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ChangePlan(context.Background(), nil, "student-1", &planID, 9333.35))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositorySetCreditBalance(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET credit_balance = $1")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetCreditBalance(context.Background(), nil, "student-1", 0))
	require.NoError(t, mock.ExpectationsWereMet())
}
