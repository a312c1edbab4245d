package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/studio-booking-api/internal/models"
	appErrors "github.com/noah-isme/studio-booking-api/pkg/errors"
)

type waitlistRepository interface {
	Insert(ctx context.Context, entry *models.WaitlistEntry) (*models.WaitlistEntry, error)
	FindByID(ctx context.Context, scope models.Scope, id string) (*models.WaitlistEntry, error)
	NextWaiting(ctx context.Context, scope models.Scope, date time.Time, startTime string) (*models.WaitlistEntry, error)
	MarkNotified(ctx context.Context, id string, notifiedAt, expiresAt time.Time) error
	UpdateStatus(ctx context.Context, id string, status models.WaitlistStatus) error
	SoftDelete(ctx context.Context, id string) error
}

type waitlistStudentReader interface {
	FindByID(ctx context.Context, scope models.Scope, id string) (*models.Student, error)
}

type waitlistNotifier interface {
	WaitlistPromoted(entry models.WaitlistEntry)
}

// JoinWaitlistRequest queues a student for a full time slot.
type JoinWaitlistRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
}

// WaitlistService manages the per-slot FIFO waitlist and its promotion
// cascade.
type WaitlistService struct {
	repo      waitlistRepository
	students  waitlistStudentReader
	notifier  waitlistNotifier
	enabled   bool
	holdTTL   time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewWaitlistService constructs WaitlistService.
func NewWaitlistService(repo waitlistRepository, students waitlistStudentReader, notifier waitlistNotifier, enabled bool, holdTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *WaitlistService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if holdTTL <= 0 {
		holdTTL = 2 * time.Hour
	}
	return &WaitlistService{repo: repo, students: students, notifier: notifier, enabled: enabled, holdTTL: holdTTL, validator: validate, logger: logger}
}

// Join appends a student to the queue for (date, startTime). Positions are
// assigned by insertion order and never reused.
func (s *WaitlistService) Join(ctx context.Context, owner models.OwnerRef, req JoinWaitlistRequest) (*models.WaitlistEntry, error) {
	if !s.enabled {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "waitlist is not enabled")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid waitlist payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD")
	}

	scope := owner.Resolve()
	student, err := s.students.FindByID(ctx, scope, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is inactive")
	}

	entry := &models.WaitlistEntry{
		OwnerID:   scope.OwnerID,
		StudentID: req.StudentID,
		Date:      date,
		StartTime: req.StartTime,
		Status:    models.WaitlistStatusWaiting,
	}
	stored, err := s.repo.Insert(ctx, entry)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to join waitlist")
	}
	return stored, nil
}

// Leave removes an entry from the queue. Later entries keep their positions:
// relative order is what matters, not contiguity.
func (s *WaitlistService) Leave(ctx context.Context, owner models.OwnerRef, id string) error {
	if _, err := s.repo.FindByID(ctx, owner.Resolve(), id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "waitlist entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist entry")
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to leave waitlist")
	}
	return nil
}

// Confirm marks a notified entry as having taken the seat, removing it from
// the queue.
func (s *WaitlistService) Confirm(ctx context.Context, owner models.OwnerRef, id string) (*models.WaitlistEntry, error) {
	entry, err := s.repo.FindByID(ctx, owner.Resolve(), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "waitlist entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist entry")
	}
	if entry.Status != models.WaitlistStatusNotified {
		return nil, appErrors.Clone(appErrors.ErrConflict, "entry has not been offered a seat")
	}
	if err := s.repo.UpdateStatus(ctx, id, models.WaitlistStatusConfirmed); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm waitlist entry")
	}
	entry.Status = models.WaitlistStatusConfirmed
	return entry, nil
}

// PromoteNext advances the queue for a slot that just freed one seat: the
// lowest-position WAITING entry becomes NOTIFIED with a hold deadline and
// exactly one notification is emitted. An empty queue is a no-op. Expired
// holds are swept by an external scheduler, not here.
func (s *WaitlistService) PromoteNext(ctx context.Context, scope models.Scope, date time.Time, startTime string) (*models.WaitlistEntry, error) {
	if !s.enabled {
		return nil, nil
	}
	entry, err := s.repo.NextWaiting(ctx, scope, date, startTime)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read waitlist")
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.holdTTL)
	if err := s.repo.MarkNotified(ctx, entry.ID, now, expiresAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote waitlist entry")
	}
	entry.Status = models.WaitlistStatusNotified
	entry.NotifiedAt = &now
	entry.ExpiresAt = &expiresAt

	if s.notifier != nil {
		s.notifier.WaitlistPromoted(*entry)
	}
	s.logger.Sugar().Infow("waitlist entry promoted",
		"entry_id", entry.ID,
		"student_id", entry.StudentID,
		"date", entry.Date.Format("2006-01-02"),
		"start_time", entry.StartTime,
	)
	return entry, nil
}
