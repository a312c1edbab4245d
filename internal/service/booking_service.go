package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/studio-booking-api/internal/models"
	"github.com/noah-isme/studio-booking-api/pkg/database"
	appErrors "github.com/noah-isme/studio-booking-api/pkg/errors"
)

type slotRepository interface {
	RunSerializable(ctx context.Context, fn func(tx *sqlx.Tx) error) error
	CountActiveAt(ctx context.Context, exec sqlx.ExtContext, scope models.Scope, date time.Time, startTime string, excludeID string) (int, error)
	CountActiveAtDates(ctx context.Context, exec sqlx.ExtContext, scope models.Scope, dates []time.Time, startTime string) (map[string]int, error)
	Insert(ctx context.Context, exec sqlx.ExtContext, slots []models.Slot) error
	FindByID(ctx context.Context, scope models.Scope, id string) (*models.Slot, error)
	List(ctx context.Context, filter models.SlotFilter) ([]models.SlotRecord, int, error)
	ListBySeries(ctx context.Context, scope models.Scope, seriesID string, seriesScope models.SeriesScope, today time.Time) ([]models.Slot, error)
	Update(ctx context.Context, exec sqlx.ExtContext, id string, upd models.SlotUpdate) error
	UpdateStartTimes(ctx context.Context, exec sqlx.ExtContext, ids []string, startTime string) (int64, error)
	SoftDelete(ctx context.Context, exec sqlx.ExtContext, ids []string) (int64, error)
}

type bookingStudentReader interface {
	FindByID(ctx context.Context, scope models.Scope, id string) (*models.Student, error)
}

type ownerReader interface {
	FindByID(ctx context.Context, id string) (*models.Owner, error)
}

type availabilityReader interface {
	FindForShift(ctx context.Context, scope models.Scope, weekday int, isMorning bool) (*models.AvailabilityWindow, error)
}

type waitlistCascade interface {
	PromoteNext(ctx context.Context, scope models.Scope, date time.Time, startTime string) (*models.WaitlistEntry, error)
}

type slotSideEffects interface {
	SlotBooked(slots []models.Slot)
	SlotRescheduled(slot models.Slot)
	SlotCancelled(slot models.Slot)
}

type bookingMetrics interface {
	BookingAttempt()
	CapacityConflict()
	SerializationRetry()
}

// BookSlotRequest creates one time slot booking, optionally for several
// students at once and optionally recurring.
type BookSlotRequest struct {
	Date        string   `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime   string   `json:"start_time" validate:"required,datetime=15:04"`
	StudentIDs  []string `json:"student_ids" validate:"omitempty,dive,required"`
	IsTrial     bool     `json:"is_trial"`
	IsRecurring bool     `json:"is_recurring"`
	Weekdays    []int    `json:"weekdays" validate:"omitempty,dive,min=0,max=6"`
}

// EditSlotRequest reschedules or reassigns one slot. Nil fields are left
// untouched.
type EditSlotRequest struct {
	Date      *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	StartTime *string `json:"start_time" validate:"omitempty,datetime=15:04"`
	StudentID *string `json:"student_id"`
}

// EditSeriesRequest rewrites future instances of a recurring series.
type EditSeriesRequest struct {
	StartTime *string `json:"start_time" validate:"omitempty,datetime=15:04"`
	Weekdays  []int   `json:"weekdays" validate:"omitempty,dive,min=0,max=6"`
	Scope     string  `json:"scope" validate:"required,oneof=future all_unattended"`
}

// BookingConfig carries the tunables the booking engine needs.
type BookingConfig struct {
	MaxPerSlot         int
	SerializableRetry  int
	SeriesHorizonWeeks int
	RecurringEnabled   bool
}

// BookingService orchestrates slot creation, edits, cancellation and the
// series lifecycle. Capacity reads and the writes they guard always share
// one SERIALIZABLE transaction; everything that can fail validation fails
// before the transaction opens.
type BookingService struct {
	slots        slotRepository
	students     bookingStudentReader
	owners       ownerReader
	availability availabilityReader
	waitlist     waitlistCascade
	effects      slotSideEffects
	policy       *SchedulePolicy
	expander     *SeriesExpander
	access       AccessPolicy
	metrics      bookingMetrics

	maxPerSlot       int
	maxRetries       int
	recurringEnabled bool

	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewBookingService constructs BookingService.
func NewBookingService(
	slots slotRepository,
	students bookingStudentReader,
	owners ownerReader,
	availability availabilityReader,
	waitlist waitlistCascade,
	effects slotSideEffects,
	policy *SchedulePolicy,
	cfg BookingConfig,
	access AccessPolicy,
	metrics bookingMetrics,
	validate *validator.Validate,
	logger *zap.Logger,
) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if access == nil {
		access = RoleAccessPolicy{}
	}
	maxPerSlot := cfg.MaxPerSlot
	if maxPerSlot <= 0 {
		maxPerSlot = 3
	}
	maxRetries := cfg.SerializableRetry
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &BookingService{
		slots:            slots,
		students:         students,
		owners:           owners,
		availability:     availability,
		waitlist:         waitlist,
		effects:          effects,
		policy:           policy,
		expander:         NewSeriesExpander(cfg.SeriesHorizonWeeks),
		access:           access,
		metrics:          metrics,
		maxPerSlot:       maxPerSlot,
		maxRetries:       maxRetries,
		recurringEnabled: cfg.RecurringEnabled,
		validator:        validate,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// Book validates and reserves a slot for the requested students. With
// is_recurring set it also expands the booking into weekly instances over
// the configured horizon; only the initiating date carries a hard capacity
// guarantee, generated instances silently skip full dates.
func (s *BookingService) Book(ctx context.Context, actor Actor, req BookSlotRequest) ([]models.Slot, error) {
	s.countAttempt()
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD")
	}
	if req.IsRecurring {
		if !s.recurringEnabled {
			return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "recurring bookings are not enabled")
		}
		if req.IsTrial {
			return nil, appErrors.Clone(appErrors.ErrValidation, "trial classes cannot recur")
		}
		if len(req.Weekdays) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "recurring bookings need at least one weekday")
		}
	}

	scope := actor.Owner.Resolve()
	now := s.now()
	if err := s.checkSchedule(ctx, scope, now, date, req.StartTime); err != nil {
		return nil, err
	}

	for _, studentID := range req.StudentIDs {
		student, err := s.students.FindByID(ctx, scope, studentID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		if !student.Active {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student is inactive")
		}
	}

	created := s.buildInitialSlots(actor, scope, date, req)
	requested := 0
	for _, slot := range created {
		if slot.StudentID != nil {
			requested++
		}
	}

	limit := s.seatLimit(ctx, scope)
	err = s.withSerializableRetry(ctx, func(tx *sqlx.Tx) error {
		if requested > 0 {
			count, err := s.slots.CountActiveAt(ctx, tx, scope, date, req.StartTime, "")
			if err != nil {
				return err
			}
			if count+requested > limit {
				s.countConflict()
				return appErrors.CapacityExceeded(limit - count)
			}
		}
		return s.slots.Insert(ctx, tx, created)
	})
	if err != nil {
		return nil, s.asBookingError(err, "failed to book slot")
	}

	booked := append([]models.Slot(nil), created...)
	if req.IsRecurring {
		for _, slot := range created {
			expanded, err := s.expandSeries(ctx, scope, slot, intWeekdays(req.Weekdays))
			if err != nil {
				s.logger.Sugar().Warnw("series expansion incomplete", "series_id", deref(slot.SeriesID), "error", err)
				continue
			}
			booked = append(booked, expanded...)
		}
	}

	if s.effects != nil {
		s.effects.SlotBooked(booked)
	}
	return booked, nil
}

// buildInitialSlots materialises the initiating slot rows: one per student,
// or a single unassigned row when no students were given (blocking the time
// without consuming capacity).
func (s *BookingService) buildInitialSlots(actor Actor, scope models.Scope, date time.Time, req BookSlotRequest) []models.Slot {
	var teacherID *string
	if actor.Role == models.RoleStaff {
		id := actor.UserID
		teacherID = &id
	}

	template := models.Slot{
		OwnerID:     scope.OwnerID,
		TeacherID:   teacherID,
		Date:        date,
		StartTime:   req.StartTime,
		Status:      models.SlotStatusReserved,
		Attendance:  models.AttendancePending,
		IsTrial:     req.IsTrial,
		IsRecurring: req.IsRecurring,
	}
	if req.IsRecurring {
		freq := len(req.Weekdays)
		template.WeeklyFrequency = &freq
		wd := make(pq.Int64Array, len(req.Weekdays))
		for i, d := range req.Weekdays {
			wd[i] = int64(d)
		}
		template.Weekdays = wd
	}

	if len(req.StudentIDs) == 0 {
		slot := template
		slot.ID = uuid.NewString()
		return []models.Slot{slot}
	}

	created := make([]models.Slot, 0, len(req.StudentIDs))
	for _, studentID := range req.StudentIDs {
		slot := template
		slot.ID = uuid.NewString()
		id := studentID
		slot.StudentID = &id
		if req.IsRecurring {
			seriesID := uuid.NewString()
			slot.SeriesID = &seriesID
		}
		created = append(created, slot)
	}
	return created
}

// expandSeries inserts the weekly instances for one booked slot. Per-date
// occupancy comes from one grouped count; dates already at capacity are
// dropped without failing the booking.
func (s *BookingService) expandSeries(ctx context.Context, scope models.Scope, initial models.Slot, weekdays []time.Weekday) ([]models.Slot, error) {
	if initial.SeriesID == nil {
		return nil, nil
	}
	dates := s.expander.OccurrencesForSet(initial.Date, weekdays)
	instances := s.expander.BuildInstances(initial, *initial.SeriesID, weekdays, dates)

	var inserted []models.Slot
	limit := s.seatLimit(ctx, scope)
	err := s.withSerializableRetry(ctx, func(tx *sqlx.Tx) error {
		counts, err := s.slots.CountActiveAtDates(ctx, tx, scope, dates, initial.StartTime)
		if err != nil {
			return err
		}
		inserted = inserted[:0]
		taken := make(map[string]int, len(counts))
		for _, instance := range instances {
			key := instance.Date.Format("2006-01-02")
			if counts[key]+taken[key] >= limit {
				s.logger.Sugar().Debugw("skipping full date in series expansion",
					"series_id", deref(instance.SeriesID), "date", key)
				continue
			}
			taken[key]++
			inserted = append(inserted, instance)
		}
		return s.slots.Insert(ctx, tx, inserted)
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// Get loads one slot in the actor's scope.
func (s *BookingService) Get(ctx context.Context, actor Actor, id string) (*models.Slot, error) {
	slot, err := s.slots.FindByID(ctx, actor.Owner.Resolve(), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot")
	}
	return slot, nil
}

// List returns the agenda matching the filter with pagination metadata.
func (s *BookingService) List(ctx context.Context, actor Actor, filter models.SlotFilter) ([]models.SlotRecord, *models.Pagination, error) {
	filter.Scope = actor.Owner.Resolve()
	records, total, err := s.slots.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list slots")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return records, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Edit reschedules or reassigns one slot. The new time passes the same
// schedule policy as a fresh booking, and any change that affects occupancy
// at the target time re-checks capacity under SERIALIZABLE isolation.
func (s *BookingService) Edit(ctx context.Context, actor Actor, id string, req EditSlotRequest) (*models.Slot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid edit payload")
	}

	scope := actor.Owner.Resolve()
	slot, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !s.access.CanMutateSlot(actor, slot) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to modify this slot")
	}

	newDate := slot.Date
	if req.Date != nil {
		newDate, err = time.Parse("2006-01-02", *req.Date)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD")
		}
	}
	newStart := slot.StartTime
	if req.StartTime != nil {
		newStart = *req.StartTime
	}
	timeChanged := !newDate.Equal(slot.Date) || newStart != slot.StartTime

	now := s.now()
	if timeChanged {
		// Both ends of the move honour the lead-time rule.
		if s.policy.WithinLeadWindow(now, slot.Date, slot.StartTime) {
			return nil, appErrors.LeadTimeViolation(s.policy.LeadTimeHours())
		}
		if err := s.checkSchedule(ctx, scope, now, newDate, newStart); err != nil {
			return nil, err
		}
	}

	newStudent := slot.StudentID
	studentChanged := false
	if req.StudentID != nil {
		studentChanged = true
		if *req.StudentID == "" {
			newStudent = nil
		} else {
			student, err := s.students.FindByID(ctx, scope, *req.StudentID)
			if err != nil {
				if err == sql.ErrNoRows {
					return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
				}
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
			}
			if !student.Active {
				return nil, appErrors.Clone(appErrors.ErrValidation, "student is inactive")
			}
			newStudent = &student.ID
		}
	}

	upd := models.SlotUpdate{}
	if req.Date != nil {
		upd.Date = &newDate
	}
	if req.StartTime != nil {
		upd.StartTime = &newStart
	}
	if studentChanged {
		if newStudent == nil {
			empty := ""
			upd.StudentID = &empty
		} else {
			upd.StudentID = newStudent
		}
	}

	occupies := newStudent != nil && slot.Status != models.SlotStatusCancelled
	needsCapacityCheck := occupies && (timeChanged || (studentChanged && slot.StudentID == nil))
	seatFreed := studentChanged && newStudent == nil && slot.StudentID != nil && slot.Status != models.SlotStatusCancelled

	limit := s.seatLimit(ctx, scope)
	err = s.withSerializableRetry(ctx, func(tx *sqlx.Tx) error {
		if needsCapacityCheck {
			count, err := s.slots.CountActiveAt(ctx, tx, scope, newDate, newStart, slot.ID)
			if err != nil {
				return err
			}
			if count+1 > limit {
				s.countConflict()
				return appErrors.CapacityExceeded(limit - count)
			}
		}
		return s.slots.Update(ctx, tx, slot.ID, upd)
	})
	if err != nil {
		return nil, s.asBookingError(err, "failed to edit slot")
	}

	updated, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if timeChanged && s.effects != nil {
		s.effects.SlotRescheduled(*updated)
	}
	if timeChanged || seatFreed {
		// The vacated time (or the freed seat) may now fit the first
		// waiting student.
		s.promote(ctx, scope, slot.Date, slot.StartTime)
	}
	return updated, nil
}

// ChangeStatus applies a status transition. Re-activating a cancelled slot
// re-checks capacity, since its seat may have been taken meanwhile; undoing
// a completion does not, the seat never freed.
func (s *BookingService) ChangeStatus(ctx context.Context, actor Actor, id string, target models.SlotStatus) (*models.Slot, error) {
	if !target.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown slot status")
	}
	scope := actor.Owner.Resolve()
	slot, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !s.access.CanMutateSlot(actor, slot) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to modify this slot")
	}
	if err := ValidateTransition(slot.Status, target); err != nil {
		return nil, err
	}
	if slot.Status == target {
		return slot, nil
	}

	reoccupies := slot.Status == models.SlotStatusCancelled && target == models.SlotStatusReserved && slot.StudentID != nil
	upd := models.SlotUpdate{Status: &target}
	if target == models.SlotStatusCancelled || target == models.SlotStatusReserved {
		pending := models.AttendancePending
		upd.Attendance = &pending
	}

	limit := s.seatLimit(ctx, scope)
	err = s.withSerializableRetry(ctx, func(tx *sqlx.Tx) error {
		if reoccupies {
			count, err := s.slots.CountActiveAt(ctx, tx, scope, slot.Date, slot.StartTime, slot.ID)
			if err != nil {
				return err
			}
			if count+1 > limit {
				s.countConflict()
				return appErrors.CapacityExceeded(limit - count)
			}
		}
		return s.slots.Update(ctx, tx, slot.ID, upd)
	})
	if err != nil {
		return nil, s.asBookingError(err, "failed to change slot status")
	}

	updated, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if target == models.SlotStatusCancelled {
		if s.effects != nil {
			s.effects.SlotCancelled(*updated)
		}
		if slot.StudentID != nil {
			s.promote(ctx, scope, slot.Date, slot.StartTime)
		}
	}
	return updated, nil
}

// Cancel moves a reserved slot to CANCELLED, freeing its seat and advancing
// the waitlist.
func (s *BookingService) Cancel(ctx context.Context, actor Actor, id string) (*models.Slot, error) {
	slot, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if s.policy.WithinLeadWindow(now, slot.Date, slot.StartTime) {
		return nil, appErrors.LeadTimeViolation(s.policy.LeadTimeHours())
	}
	return s.ChangeStatus(ctx, actor, id, models.SlotStatusCancelled)
}

// SetAttendance records whether the student showed up. The attendance mark
// drives the slot status: present or absent completes the class, resetting
// to pending reopens it.
func (s *BookingService) SetAttendance(ctx context.Context, actor Actor, id string, attendance models.AttendanceStatus) (*models.Slot, error) {
	if !attendance.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown attendance status")
	}
	slot, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !s.access.CanMutateSlot(actor, slot) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to modify this slot")
	}
	if attendance != models.AttendancePending {
		if err := ValidateAttendanceMark(slot, s.now()); err != nil {
			return nil, err
		}
	}

	status := StatusForAttendance(attendance)
	if err := ValidateTransition(slot.Status, status); err != nil {
		return nil, err
	}

	upd := models.SlotUpdate{Attendance: &attendance, Status: &status}
	if err := s.slots.Update(ctx, nil, slot.ID, upd); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	return s.Get(ctx, actor, id)
}

// BulkCancel tombstones a batch of slots and advances the waitlist for every
// seat freed. Returns how many rows were removed.
func (s *BookingService) BulkCancel(ctx context.Context, actor Actor, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "no slot ids given")
	}

	scope := actor.Owner.Resolve()
	slots := make([]models.Slot, 0, len(ids))
	for _, id := range ids {
		slot, err := s.Get(ctx, actor, id)
		if err != nil {
			return 0, err
		}
		if !s.access.CanMutateSlot(actor, slot) {
			return 0, appErrors.Clone(appErrors.ErrForbidden, "not allowed to modify this slot")
		}
		slots = append(slots, *slot)
	}

	affected, err := s.slots.SoftDelete(ctx, nil, ids)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel slots")
	}

	for _, slot := range slots {
		if s.effects != nil {
			s.effects.SlotCancelled(slot)
		}
		if slot.StudentID != nil && slot.Status != models.SlotStatusCancelled {
			s.promote(ctx, scope, slot.Date, slot.StartTime)
		}
	}
	return int(affected), nil
}

// EditSeries rewrites a series' future instances: a pure time change moves
// them in place, a weekday change regenerates each affected week on the new
// weekdays, anchored to that week's Monday. Regeneration is best-effort per
// date, like the original expansion.
func (s *BookingService) EditSeries(ctx context.Context, actor Actor, seriesID string, req EditSeriesRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid series edit payload")
	}
	seriesScope := models.SeriesScope(req.Scope)

	scope := actor.Owner.Resolve()
	today := s.now().Truncate(24 * time.Hour)
	instances, err := s.slots.ListBySeries(ctx, scope, seriesID, seriesScope, today)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load series")
	}
	if len(instances) == 0 {
		return 0, appErrors.Clone(appErrors.ErrNotFound, "series has no matching instances")
	}
	if !s.access.CanMutateSlot(actor, &instances[0]) {
		return 0, appErrors.Clone(appErrors.ErrForbidden, "not allowed to modify this series")
	}

	newStart := instances[0].StartTime
	if req.StartTime != nil {
		newStart = *req.StartTime
	}

	if len(req.Weekdays) == 0 {
		if req.StartTime == nil {
			return 0, appErrors.Clone(appErrors.ErrValidation, "nothing to change")
		}
		return s.moveSeriesTimes(ctx, scope, instances, newStart)
	}
	return s.regenerateSeries(ctx, scope, instances, seriesID, newStart, intWeekdays(req.Weekdays))
}

func (s *BookingService) moveSeriesTimes(ctx context.Context, scope models.Scope, instances []models.Slot, newStart string) (int, error) {
	var moved int64
	limit := s.seatLimit(ctx, scope)
	err := s.withSerializableRetry(ctx, func(tx *sqlx.Tx) error {
		dates := make([]time.Time, 0, len(instances))
		for _, in := range instances {
			dates = append(dates, in.Date)
		}
		counts, err := s.slots.CountActiveAtDates(ctx, tx, scope, dates, newStart)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(instances))
		for _, in := range instances {
			if in.StudentID != nil && counts[in.Date.Format("2006-01-02")] >= limit {
				continue
			}
			ids = append(ids, in.ID)
		}
		moved, err = s.slots.UpdateStartTimes(ctx, tx, ids, newStart)
		return err
	})
	if err != nil {
		return 0, s.asBookingError(err, "failed to move series")
	}
	return int(moved), nil
}

func (s *BookingService) regenerateSeries(ctx context.Context, scope models.Scope, instances []models.Slot, seriesID, newStart string, weekdays []time.Weekday) (int, error) {
	template := instances[0]
	template.StartTime = newStart

	// One regenerated instance per (affected week, new weekday).
	weeks := make(map[time.Time]struct{})
	ids := make([]string, 0, len(instances))
	for _, in := range instances {
		weeks[WeekAnchor(in.Date)] = struct{}{}
		ids = append(ids, in.ID)
	}
	dates := make([]time.Time, 0, len(weeks)*len(weekdays))
	for anchor := range weeks {
		for _, wd := range weekdays {
			offset := (int(wd) - int(time.Monday) + 7) % 7
			dates = append(dates, anchor.AddDate(0, 0, offset))
		}
	}

	regenerated := s.expander.BuildInstances(template, seriesID, weekdays, dates)

	var inserted int
	limit := s.seatLimit(ctx, scope)
	err := s.withSerializableRetry(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.slots.SoftDelete(ctx, tx, ids); err != nil {
			return err
		}
		counts, err := s.slots.CountActiveAtDates(ctx, tx, scope, dates, newStart)
		if err != nil {
			return err
		}
		keep := make([]models.Slot, 0, len(regenerated))
		taken := make(map[string]int, len(counts))
		for _, instance := range regenerated {
			key := instance.Date.Format("2006-01-02")
			if instance.StudentID != nil && counts[key]+taken[key] >= limit {
				continue
			}
			taken[key]++
			keep = append(keep, instance)
		}
		inserted = len(keep)
		return s.slots.Insert(ctx, tx, keep)
	})
	if err != nil {
		return 0, s.asBookingError(err, "failed to regenerate series")
	}
	return inserted, nil
}

// seatLimit resolves the per-slot seat limit for one owner: the owner row's
// max_per_slot wins when set, the configured default covers the rest. Lookup
// failures fall back to the default rather than blocking the booking.
func (s *BookingService) seatLimit(ctx context.Context, scope models.Scope) int {
	if s.owners == nil {
		return s.maxPerSlot
	}
	owner, err := s.owners.FindByID(ctx, scope.OwnerID)
	if err != nil {
		if err != sql.ErrNoRows {
			s.logger.Sugar().Warnw("failed to load owner seat limit", "owner_id", scope.OwnerID, "error", err)
		}
		return s.maxPerSlot
	}
	if owner.MaxPerSlot > 0 {
		return owner.MaxPerSlot
	}
	return s.maxPerSlot
}

// checkSchedule runs the schedule policy, fetching the owner's weekend
// window when the date needs one.
func (s *BookingService) checkSchedule(ctx context.Context, scope models.Scope, now, date time.Time, startTime string) error {
	var weekend *models.AvailabilityWindow
	weekday := date.Weekday()
	if weekday == time.Saturday || weekday == time.Sunday {
		window, err := s.availability.FindForShift(ctx, scope, int(weekday), s.policy.IsMorning(startTime))
		if err != nil && err != sql.ErrNoRows {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
		}
		weekend = window
	}
	return s.policy.Check(now, date, startTime, weekend)
}

// withSerializableRetry reruns fn on serialization conflicts, up to the
// configured bound.
func (s *BookingService) withSerializableRetry(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = s.slots.RunSerializable(ctx, fn)
		if err == nil {
			return nil
		}
		if !database.IsSerializationFailure(err) || attempt >= s.maxRetries {
			return err
		}
		s.countRetry()
		s.logger.Sugar().Debugw("retrying after serialization conflict", "attempt", attempt+1)
	}
}

func (s *BookingService) asBookingError(err error, message string) error {
	var typed *appErrors.Error
	if e := appErrors.FromError(err); e.Code != appErrors.ErrInternal.Code {
		typed = e
	}
	if typed != nil {
		return typed
	}
	if database.IsSerializationFailure(err) {
		return appErrors.Clone(appErrors.ErrSerializationFailure, "")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *BookingService) promote(ctx context.Context, scope models.Scope, date time.Time, startTime string) {
	if s.waitlist == nil {
		return
	}
	if _, err := s.waitlist.PromoteNext(ctx, scope, date, startTime); err != nil {
		s.logger.Sugar().Warnw("waitlist promotion failed",
			"date", date.Format("2006-01-02"), "start_time", startTime, "error", err)
	}
}

func (s *BookingService) countAttempt() {
	if s.metrics != nil {
		s.metrics.BookingAttempt()
	}
}

func (s *BookingService) countConflict() {
	if s.metrics != nil {
		s.metrics.CapacityConflict()
	}
}

func (s *BookingService) countRetry() {
	if s.metrics != nil {
		s.metrics.SerializationRetry()
	}
}

func intWeekdays(days []int) []time.Weekday {
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		out = append(out, time.Weekday(d))
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
