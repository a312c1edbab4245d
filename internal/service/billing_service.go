package service

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/studio-booking-api/internal/models"
	appErrors "github.com/noah-isme/studio-booking-api/pkg/errors"
)

// weeksPerCycle converts a weekly class quota into a monthly expectation.
const weeksPerCycle = 4

type billingStudentRepository interface {
	FindByID(ctx context.Context, scope models.Scope, id string) (*models.Student, error)
	ChangePlan(ctx context.Context, exec sqlx.ExtContext, id string, planID *string, creditDelta float64) error
	SetCreditBalance(ctx context.Context, exec sqlx.ExtContext, id string, balance float64) error
	RunTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

type planReader interface {
	FindByID(ctx context.Context, scope models.Scope, id string) (*models.Plan, error)
}

type paymentRepository interface {
	Insert(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) (*models.Payment, error)
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	LastPaidInRange(ctx context.Context, studentID string, from, to time.Time) (*models.Payment, error)
	MarkPaid(ctx context.Context, id string, paidDate time.Time) error
	ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error)
}

type billedClassCounter interface {
	CountForStudentInRange(ctx context.Context, scope models.Scope, studentID string, from, to time.Time) (int, error)
}

// ChangePlanRequest switches a student to another plan (or to per-class
// billing when plan_id is empty).
type ChangePlanRequest struct {
	PlanID *string `json:"plan_id" validate:"omitempty,uuid4"`
}

// ChangePlanResult reports the proration applied by a plan change.
type ChangePlanResult struct {
	Student      *models.Student `json:"student"`
	ClassesTaken int             `json:"classes_taken"`
	Consumed     float64         `json:"consumed"`
	Paid         float64         `json:"paid"`
	CreditDelta  float64         `json:"credit_delta"`
	CycleFrom    time.Time       `json:"cycle_from"`
	CycleTo      time.Time       `json:"cycle_to"`
}

// CreatePaymentRequest charges a student for the upcoming billing cycle.
type CreatePaymentRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	DueDate   string `json:"due_date" validate:"required,datetime=2006-01-02"`
}

// BillingService owns billing cycles, proration and payments.
type BillingService struct {
	students        billingStudentRepository
	plans           planReader
	payments        paymentRepository
	slots           billedClassCounter
	customCycleDay  bool
	defaultCycleDay int
	validator       *validator.Validate
	logger          *zap.Logger
}

// NewBillingService constructs BillingService.
func NewBillingService(students billingStudentRepository, plans planReader, payments paymentRepository, slots billedClassCounter, customCycleDay bool, defaultCycleDay int, validate *validator.Validate, logger *zap.Logger) *BillingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultCycleDay < 1 || defaultCycleDay > 31 {
		defaultCycleDay = 1
	}
	return &BillingService{students: students, plans: plans, payments: payments, slots: slots, customCycleDay: customCycleDay, defaultCycleDay: defaultCycleDay, validator: validate, logger: logger}
}

// RoundMoney rounds to two decimal places, half away from zero.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// ImpliedPerClassPrice derives the per-class value of a plan. The division
// result is rounded to money precision before any multiplication so that
// consumed amounts stay reproducible from stored values.
func ImpliedPerClassPrice(price float64, weeklyQuota int) float64 {
	if weeklyQuota <= 0 {
		return 0
	}
	return RoundMoney(price / float64(weeklyQuota*weeksPerCycle))
}

// CycleRange returns the billing cycle [from, to) containing ref for a
// student anchored at cycleStartDay. Days past the end of a month clamp to
// that month's last day.
func (s *BillingService) CycleRange(cycleStartDay int, ref time.Time) (time.Time, time.Time) {
	day := cycleStartDay
	if !s.customCycleDay || day < 1 || day > 31 {
		day = s.defaultCycleDay
	}

	from := anchoredDate(ref.Year(), ref.Month(), day, ref.Location())
	if ref.Before(from) {
		prev := ref.AddDate(0, -1, 0)
		from = anchoredDate(prev.Year(), prev.Month(), day, ref.Location())
	}
	next := from.AddDate(0, 1, 0)
	to := anchoredDate(next.Year(), next.Month(), day, ref.Location())
	return from, to
}

// anchoredDate builds midnight on (year, month, day) clamping day to the
// month's length, so an anchor of 31 lands on Feb 28/29 instead of rolling
// into March.
func anchoredDate(year int, month time.Month, day int, loc *time.Location) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// ChangePlan switches the student's plan, prorating the current cycle when
// the student moves between two quota plans: the value of classes already
// taken (at the old plan's implied per-class price) is subtracted from what
// was paid this cycle, and the remainder lands on the stored credit balance.
// Dropping to per-class billing leaves the paid cycle untouched. Changing
// to the currently assigned plan is a no-op, so a retried request cannot
// double-apply credit.
func (s *BillingService) ChangePlan(ctx context.Context, owner models.OwnerRef, studentID string, req ChangePlanRequest) (*ChangePlanResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan change payload")
	}

	scope := owner.Resolve()
	student, err := s.students.FindByID(ctx, scope, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if samePlan(student.PlanID, req.PlanID) {
		return &ChangePlanResult{Student: student}, nil
	}

	if req.PlanID != nil {
		if _, err := s.plans.FindByID(ctx, scope, *req.PlanID); err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "plan not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan")
		}
	}

	result := &ChangePlanResult{}
	now := time.Now().UTC()

	if student.PlanID != nil && req.PlanID != nil {
		oldPlan, err := s.plans.FindByID(ctx, scope, *student.PlanID)
		if err != nil && err != sql.ErrNoRows {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current plan")
		}
		if oldPlan != nil {
			from, to := s.CycleRange(student.CycleStartDay, now)
			taken, err := s.slots.CountForStudentInRange(ctx, scope, studentID, from, to)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count cycle classes")
			}

			perClass := ImpliedPerClassPrice(oldPlan.Price, oldPlan.WeeklyQuota)
			consumed := RoundMoney(perClass * float64(taken))

			paid := 0.0
			if payment, err := s.payments.LastPaidInRange(ctx, studentID, from, to); err == nil {
				paid = payment.Amount
			} else if err != sql.ErrNoRows {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cycle payment")
			}

			result.ClassesTaken = taken
			result.Consumed = consumed
			result.Paid = paid
			result.CreditDelta = RoundMoney(paid - consumed)
			result.CycleFrom = from
			result.CycleTo = to
		}
	}

	if err := s.students.ChangePlan(ctx, nil, studentID, req.PlanID, result.CreditDelta); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change plan")
	}

	updated, err := s.students.FindByID(ctx, scope, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload student")
	}
	result.Student = updated

	s.logger.Sugar().Infow("student plan changed",
		"student_id", studentID,
		"classes_taken", result.ClassesTaken,
		"credit_delta", result.CreditDelta,
	)
	return result, nil
}

// CreatePayment opens the next cycle's charge for a plan student. Any stored
// credit is consumed first; the charge covers the rest and the consumed
// credit is cleared in the same transaction.
func (s *BillingService) CreatePayment(ctx context.Context, owner models.OwnerRef, req CreatePaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid due date, expected YYYY-MM-DD")
	}

	scope := owner.Resolve()
	student, err := s.students.FindByID(ctx, scope, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.PlanID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student has no plan to bill")
	}
	plan, err := s.plans.FindByID(ctx, scope, *student.PlanID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan")
	}

	amount := RoundMoney(plan.Price - student.CreditBalance)
	remainingCredit := 0.0
	if amount < 0 {
		remainingCredit = RoundMoney(-amount)
		amount = 0
	}

	from, to := s.CycleRange(student.CycleStartDay, dueDate)
	expected := plan.WeeklyQuota * weeksPerCycle
	payment := &models.Payment{
		StudentID:       req.StudentID,
		Amount:          amount,
		DueDate:         dueDate,
		Status:          models.PaymentStatusPending,
		CycleLabel:      fmt.Sprintf("%s/%s", from.Format("2006-01-02"), to.Format("2006-01-02")),
		ExpectedClasses: &expected,
	}

	var stored *models.Payment
	err = s.students.RunTx(ctx, func(tx *sqlx.Tx) error {
		if student.CreditBalance != remainingCredit {
			if err := s.students.SetCreditBalance(ctx, tx, req.StudentID, remainingCredit); err != nil {
				return err
			}
		}
		stored, err = s.payments.Insert(ctx, tx, payment)
		return err
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payment")
	}
	return stored, nil
}

// MarkPaid settles a pending payment.
func (s *BillingService) MarkPaid(ctx context.Context, id string) (*models.Payment, error) {
	if err := s.payments.MarkPaid(ctx, id, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no pending payment to settle")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to settle payment")
	}
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload payment")
	}
	return payment, nil
}

// ListPayments returns the student's payment history, newest first.
func (s *BillingService) ListPayments(ctx context.Context, owner models.OwnerRef, studentID string) ([]models.Payment, error) {
	if _, err := s.students.FindByID(ctx, owner.Resolve(), studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	payments, err := s.payments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, nil
}

func samePlan(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
