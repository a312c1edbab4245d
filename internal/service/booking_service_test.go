package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-booking-api/internal/models"
	appErrors "github.com/noah-isme/studio-booking-api/pkg/errors"
)

func slotKey(date time.Time, startTime string) string {
	return date.Format("2006-01-02") + "|" + startTime
}

// slotRepoFake keeps slot state in memory and can simulate serialization
// conflicts on the first N transactions.
type slotRepoFake struct {
	slots  map[string]*models.Slot
	counts map[string]int

	conflicts   int
	inserted    [][]models.Slot
	softDeleted []string
	movedIDs    []string
	movedStart  string
}

func newSlotRepoFake() *slotRepoFake {
	return &slotRepoFake{slots: map[string]*models.Slot{}, counts: map[string]int{}}
}

func (f *slotRepoFake) RunSerializable(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if f.conflicts > 0 {
		f.conflicts--
		return &pq.Error{Code: "40001"}
	}
	return fn(nil)
}

func (f *slotRepoFake) CountActiveAt(ctx context.Context, exec sqlx.ExtContext, scope models.Scope, date time.Time, startTime string, excludeID string) (int, error) {
	return f.counts[slotKey(date, startTime)], nil
}

func (f *slotRepoFake) CountActiveAtDates(ctx context.Context, exec sqlx.ExtContext, scope models.Scope, dates []time.Time, startTime string) (map[string]int, error) {
	out := make(map[string]int, len(dates))
	for _, d := range dates {
		out[d.Format("2006-01-02")] = f.counts[slotKey(d, startTime)]
	}
	return out, nil
}

func (f *slotRepoFake) Insert(ctx context.Context, exec sqlx.ExtContext, slots []models.Slot) error {
	f.inserted = append(f.inserted, slots)
	for i := range slots {
		slot := slots[i]
		f.slots[slot.ID] = &slot
	}
	return nil
}

func (f *slotRepoFake) FindByID(ctx context.Context, scope models.Scope, id string) (*models.Slot, error) {
	slot, ok := f.slots[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *slot
	return &clone, nil
}

func (f *slotRepoFake) List(ctx context.Context, filter models.SlotFilter) ([]models.SlotRecord, int, error) {
	records := make([]models.SlotRecord, 0, len(f.slots))
	for _, slot := range f.slots {
		records = append(records, models.SlotRecord{Slot: *slot})
	}
	return records, len(records), nil
}

func (f *slotRepoFake) ListBySeries(ctx context.Context, scope models.Scope, seriesID string, seriesScope models.SeriesScope, today time.Time) ([]models.Slot, error) {
	out := make([]models.Slot, 0)
	for _, slot := range f.slots {
		if slot.SeriesID != nil && *slot.SeriesID == seriesID && !slot.Date.Before(today) {
			out = append(out, *slot)
		}
	}
	return out, nil
}

func (f *slotRepoFake) Update(ctx context.Context, exec sqlx.ExtContext, id string, upd models.SlotUpdate) error {
	slot, ok := f.slots[id]
	if !ok {
		return sql.ErrNoRows
	}
	if upd.Date != nil {
		slot.Date = *upd.Date
	}
	if upd.StartTime != nil {
		slot.StartTime = *upd.StartTime
	}
	if upd.StudentID != nil {
		if *upd.StudentID == "" {
			slot.StudentID = nil
		} else {
			slot.StudentID = upd.StudentID
		}
	}
	if upd.Status != nil {
		slot.Status = *upd.Status
	}
	if upd.Attendance != nil {
		slot.Attendance = *upd.Attendance
	}
	return nil
}

func (f *slotRepoFake) UpdateStartTimes(ctx context.Context, exec sqlx.ExtContext, ids []string, startTime string) (int64, error) {
	f.movedIDs = ids
	f.movedStart = startTime
	for _, id := range ids {
		if slot, ok := f.slots[id]; ok {
			slot.StartTime = startTime
		}
	}
	return int64(len(ids)), nil
}

func (f *slotRepoFake) SoftDelete(ctx context.Context, exec sqlx.ExtContext, ids []string) (int64, error) {
	f.softDeleted = append(f.softDeleted, ids...)
	for _, id := range ids {
		delete(f.slots, id)
	}
	return int64(len(ids)), nil
}

type bookingStudentStub struct {
	students map[string]*models.Student
}

func (s bookingStudentStub) FindByID(ctx context.Context, scope models.Scope, id string) (*models.Student, error) {
	student, ok := s.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

type ownerRowStub struct {
	owner *models.Owner
}

func (s *ownerRowStub) FindByID(ctx context.Context, id string) (*models.Owner, error) {
	if s.owner == nil {
		return nil, sql.ErrNoRows
	}
	return s.owner, nil
}

type availabilityStub struct {
	window *models.AvailabilityWindow
}

func (s availabilityStub) FindForShift(ctx context.Context, scope models.Scope, weekday int, isMorning bool) (*models.AvailabilityWindow, error) {
	if s.window == nil {
		return nil, sql.ErrNoRows
	}
	return s.window, nil
}

type cascadeSpy struct {
	promoted []string
}

func (s *cascadeSpy) PromoteNext(ctx context.Context, scope models.Scope, date time.Time, startTime string) (*models.WaitlistEntry, error) {
	s.promoted = append(s.promoted, slotKey(date, startTime))
	return nil, nil
}

type effectsSpy struct {
	booked      [][]models.Slot
	rescheduled []models.Slot
	cancelled   []models.Slot
}

func (s *effectsSpy) SlotBooked(slots []models.Slot) { s.booked = append(s.booked, slots) }
func (s *effectsSpy) SlotRescheduled(slot models.Slot) {
	s.rescheduled = append(s.rescheduled, slot)
}
func (s *effectsSpy) SlotCancelled(slot models.Slot) { s.cancelled = append(s.cancelled, slot) }

type metricsSpy struct {
	attempts  int
	conflicts int
	retries   int
}

func (s *metricsSpy) BookingAttempt()     { s.attempts++ }
func (s *metricsSpy) CapacityConflict()   { s.conflicts++ }
func (s *metricsSpy) SerializationRetry() { s.retries++ }

type bookingFixture struct {
	svc     *BookingService
	repo    *slotRepoFake
	owners  *ownerRowStub
	cascade *cascadeSpy
	effects *effectsSpy
	metrics *metricsSpy
	now     time.Time
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	repo := newSlotRepoFake()
	owners := &ownerRowStub{}
	cascade := &cascadeSpy{}
	effects := &effectsSpy{}
	metrics := &metricsSpy{}
	students := bookingStudentStub{students: map[string]*models.Student{
		"student-1": {ID: "student-1", Active: true},
		"student-2": {ID: "student-2", Active: true},
		"inactive":  {ID: "inactive", Active: false},
	}}

	svc := NewBookingService(
		repo,
		students,
		owners,
		availabilityStub{},
		cascade,
		effects,
		testPolicy(),
		BookingConfig{MaxPerSlot: 3, SerializableRetry: 3, SeriesHorizonWeeks: 8, RecurringEnabled: true},
		RoleAccessPolicy{},
		metrics,
		nil,
		nil,
	)
	now := time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC) // Monday
	svc.now = func() time.Time { return now }
	return &bookingFixture{svc: svc, repo: repo, owners: owners, cascade: cascade, effects: effects, metrics: metrics, now: now}
}

func ownerActor() Actor {
	return Actor{UserID: "user-1", Role: models.RoleOwner, Owner: testOwner()}
}

func staffActor(userID string) Actor {
	return Actor{UserID: userID, Role: models.RoleStaff, Owner: testOwner()}
}

func (f *bookingFixture) seedSlot(t *testing.T, slot models.Slot) models.Slot {
	t.Helper()
	if slot.ID == "" {
		slot.ID = "slot-1"
	}
	if slot.Status == "" {
		slot.Status = models.SlotStatusReserved
	}
	if slot.Attendance == "" {
		slot.Attendance = models.AttendancePending
	}
	stored := slot
	f.repo.slots[slot.ID] = &stored
	return slot
}

func TestBookSingleStudent(t *testing.T) {
	f := newBookingFixture(t)

	booked, err := f.svc.Book(context.Background(), ownerActor(), BookSlotRequest{
		Date: "2024-03-20", StartTime: "10:00", StudentIDs: []string{"student-1"},
	})
	require.NoError(t, err)
	require.Len(t, booked, 1)
	require.Equal(t, models.SlotStatusReserved, booked[0].Status)
	require.Equal(t, "student-1", *booked[0].StudentID)
	require.Len(t, f.effects.booked, 1)
	require.Equal(t, 1, f.metrics.attempts)
}

func TestBookCapacityFull(t *testing.T) {
	f := newBookingFixture(t)
	date := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	f.repo.counts[slotKey(date, "10:00")] = 3

	_, err := f.svc.Book(context.Background(), ownerActor(), BookSlotRequest{
		Date: "2024-03-20", StartTime: "10:00", StudentIDs: []string{"student-1"},
	})
	require.ErrorIs(t, err, appErrors.ErrCapacityExceeded)
	require.Equal(t, 1, f.metrics.conflicts)
	require.Empty(t, f.effects.booked)
}

func TestBookPartialGroupRejected(t *testing.T) {
	f := newBookingFixture(t)
	date := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	f.repo.counts[slotKey(date, "10:00")] = 2

	// Two students into one remaining seat: all-or-nothing.
	_, err := f.svc.Book(context.Background(), ownerActor(), BookSlotRequest{
		Date: "2024-03-20", StartTime: "10:00", StudentIDs: []string{"student-1", "student-2"},
	})
	require.ErrorIs(t, err, appErrors.ErrCapacityExceeded)
	require.Empty(t, f.repo.inserted)
}

func TestBookUnassignedSkipsCapacityCheck(t *testing.T) {
	f := newBookingFixture(t)
	date := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	f.repo.counts[slotKey(date, "10:00")] = 3

	// A studentless placeholder does not consume a seat.
	booked, err := f.svc.Book(context.Background(), ownerActor(), BookSlotRequest{
		Date: "2024-03-20", StartTime: "10:00",
	})
	require.NoError(t, err)
	require.Len(t, booked, 1)
	require.Nil(t, booked[0].StudentID)
}

func TestBookHonorsOwnerSeatLimit(t *testing.T) {
	f := newBookingFixture(t)
	// The owner row caps seats below the configured default of 3.
	f.owners.owner = &models.Owner{ID: "owner-1", Kind: models.OwnerKindProfessional, MaxPerSlot: 1}
	date := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	f.repo.counts[slotKey(date, "10:00")] = 1

	_, err := f.svc.Book(context.Background(), ownerActor(), BookSlotRequest{
		Date: "2024-03-20", StartTime: "10:00", StudentIDs: []string{"student-1"},
	})
	require.ErrorIs(t, err, appErrors.ErrCapacityExceeded)
}

func TestBookOwnerWithoutLimitUsesDefault(t *testing.T) {
	f := newBookingFixture(t)
	f.owners.owner = &models.Owner{ID: "owner-1", Kind: models.OwnerKindProfessional}
	date := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	f.repo.counts[slotKey(date, "10:00")] = 2

	booked, err := f.svc.Book(context.Background(), ownerActor(), BookSlotRequest{
		Date: "2024-03-20", StartTime: "10:00", StudentIDs: []string{"student-1"},
	})
	require.NoError(t, err)
	require.Len(t, booked, 1)
}

func TestBookRetriesSerializationConflicts(t *testing.T) {
	f := newBookingFixture(t)
	f.repo.conflicts = 2

	_, err := f.svc.Book(context.Background(), ownerActor(), BookSlotRequest{
		Date: "2024-03-20", StartTime: "10:00", StudentIDs: []string{"student-1"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, f.metrics.retries)
}

func TestBookGivesUpAfterRetryBudget(t *testing.T) {
	f := newBookingFixture(t)
	f.repo.conflicts = 10

	_, err := f.svc.Book(context.Background(), ownerActor(), BookSlotRequest{
		Date: "2024-03-20", StartTime: "10:00", StudentIDs: []string{"student-1"},
	})
	require.ErrorIs(t, err, appErrors.ErrSerializationFailure)
	require.Equal(t, 3, f.metrics.retries)
}

func TestBookInactiveStudent(t *testing.T) {
	f := newBookingFixture(t)

	_, err := f.svc.Book(context.Background(), ownerActor(), BookSlotRequest{
		Date: "2024-03-20", StartTime: "10:00", StudentIDs: []string{"inactive"},
	})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestBookRecurringExpandsSeries(t *testing.T) {
	f := newBookingFixture(t)

	// Wednesday initiating slot recurring on Wednesdays.
	booked, err := f.svc.Book(context.Background(), ownerActor(), BookSlotRequest{
		Date: "2024-03-20", StartTime: "10:00", StudentIDs: []string{"student-1"},
		IsRecurring: true, Weekdays: []int{3},
	})
	require.NoError(t, err)
	// Initiating slot plus 8 weekly instances.
	require.Len(t, booked, 9)
	seriesID := booked[0].SeriesID
	require.NotNil(t, seriesID)
	for _, slot := range booked[1:] {
		require.Equal(t, *seriesID, *slot.SeriesID)
		require.Equal(t, time.Wednesday, slot.Date.Weekday())
		require.True(t, slot.Date.After(booked[0].Date))
	}
}

func TestBookRecurringSkipsFullDates(t *testing.T) {
	f := newBookingFixture(t)
	full := time.Date(2024, 3, 27, 0, 0, 0, 0, time.UTC)
	f.repo.counts[slotKey(full, "10:00")] = 3

	booked, err := f.svc.Book(context.Background(), ownerActor(), BookSlotRequest{
		Date: "2024-03-20", StartTime: "10:00", StudentIDs: []string{"student-1"},
		IsRecurring: true, Weekdays: []int{3},
	})
	require.NoError(t, err)
	// One full week dropped silently.
	require.Len(t, booked, 8)
	for _, slot := range booked {
		require.NotEqual(t, full, slot.Date)
	}
}

func TestBookRecurringGates(t *testing.T) {
	f := newBookingFixture(t)

	_, err := f.svc.Book(context.Background(), ownerActor(), BookSlotRequest{
		Date: "2024-03-20", StartTime: "10:00", IsRecurring: true, IsTrial: true, Weekdays: []int{3},
	})
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Book(context.Background(), ownerActor(), BookSlotRequest{
		Date: "2024-03-20", StartTime: "10:00", IsRecurring: true,
	})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestEditReschedulePromotesVacatedTime(t *testing.T) {
	f := newBookingFixture(t)
	student := "student-1"
	oldDate := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	f.seedSlot(t, models.Slot{ID: "slot-1", StudentID: &student, Date: oldDate, StartTime: "10:00"})

	newStart := "15:00"
	updated, err := f.svc.Edit(context.Background(), ownerActor(), "slot-1", EditSlotRequest{StartTime: &newStart})
	require.NoError(t, err)
	require.Equal(t, "15:00", updated.StartTime)
	require.Len(t, f.effects.rescheduled, 1)
	require.Equal(t, []string{slotKey(oldDate, "10:00")}, f.cascade.promoted)
}

func TestEditRescheduleTargetFull(t *testing.T) {
	f := newBookingFixture(t)
	student := "student-1"
	date := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	f.seedSlot(t, models.Slot{ID: "slot-1", StudentID: &student, Date: date, StartTime: "10:00"})
	f.repo.counts[slotKey(date, "15:00")] = 3

	newStart := "15:00"
	_, err := f.svc.Edit(context.Background(), ownerActor(), "slot-1", EditSlotRequest{StartTime: &newStart})
	require.ErrorIs(t, err, appErrors.ErrCapacityExceeded)
	require.Empty(t, f.cascade.promoted)
}

func TestEditWithinLeadWindowRejected(t *testing.T) {
	f := newBookingFixture(t)
	student := "student-1"
	// Slot starts in 4 hours.
	f.seedSlot(t, models.Slot{ID: "slot-1", StudentID: &student, Date: f.now, StartTime: "14:00"})

	newStart := "15:00"
	_, err := f.svc.Edit(context.Background(), ownerActor(), "slot-1", EditSlotRequest{StartTime: &newStart})
	require.ErrorIs(t, err, appErrors.ErrLeadTimeViolation)
}

func TestEditAssignStudentToPlaceholder(t *testing.T) {
	f := newBookingFixture(t)
	date := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	f.seedSlot(t, models.Slot{ID: "slot-1", Date: date, StartTime: "10:00"})
	f.repo.counts[slotKey(date, "10:00")] = 3

	// Assigning a student to an unassigned slot claims a seat.
	student := "student-1"
	_, err := f.svc.Edit(context.Background(), ownerActor(), "slot-1", EditSlotRequest{StudentID: &student})
	require.ErrorIs(t, err, appErrors.ErrCapacityExceeded)
}

func TestEditUnassignFreesSeatAndPromotes(t *testing.T) {
	f := newBookingFixture(t)
	student := "student-1"
	date := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	f.seedSlot(t, models.Slot{ID: "slot-1", StudentID: &student, Date: date, StartTime: "10:00"})

	// Clearing the student frees a seat at the unchanged time, so the
	// waitlist for that time advances.
	empty := ""
	updated, err := f.svc.Edit(context.Background(), ownerActor(), "slot-1", EditSlotRequest{StudentID: &empty})
	require.NoError(t, err)
	require.Nil(t, updated.StudentID)
	require.Equal(t, []string{slotKey(date, "10:00")}, f.cascade.promoted)
	require.Empty(t, f.effects.rescheduled)
}

func TestEditUnassignPlaceholderDoesNotPromote(t *testing.T) {
	f := newBookingFixture(t)
	date := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	f.seedSlot(t, models.Slot{ID: "slot-1", Date: date, StartTime: "10:00"})

	// No student was assigned, so nothing was freed.
	empty := ""
	_, err := f.svc.Edit(context.Background(), ownerActor(), "slot-1", EditSlotRequest{StudentID: &empty})
	require.NoError(t, err)
	require.Empty(t, f.cascade.promoted)
}

func TestStaffCannotTouchOthersSlots(t *testing.T) {
	f := newBookingFixture(t)
	student := "student-1"
	teacher := "teacher-9"
	f.seedSlot(t, models.Slot{ID: "slot-1", StudentID: &student, TeacherID: &teacher,
		Date: time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC), StartTime: "10:00"})

	newStart := "15:00"
	_, err := f.svc.Edit(context.Background(), staffActor("teacher-5"), "slot-1", EditSlotRequest{StartTime: &newStart})
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	// The assigned teacher may edit it.
	_, err = f.svc.Edit(context.Background(), staffActor("teacher-9"), "slot-1", EditSlotRequest{StartTime: &newStart})
	require.NoError(t, err)
}

func TestChangeStatusCancelAdvancesWaitlist(t *testing.T) {
	f := newBookingFixture(t)
	student := "student-1"
	date := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	f.seedSlot(t, models.Slot{ID: "slot-1", StudentID: &student, Date: date, StartTime: "10:00"})

	updated, err := f.svc.ChangeStatus(context.Background(), ownerActor(), "slot-1", models.SlotStatusCancelled)
	require.NoError(t, err)
	require.Equal(t, models.SlotStatusCancelled, updated.Status)
	require.Equal(t, models.AttendancePending, updated.Attendance)
	require.Len(t, f.effects.cancelled, 1)
	require.Equal(t, []string{slotKey(date, "10:00")}, f.cascade.promoted)
}

func TestChangeStatusReactivationChecksCapacity(t *testing.T) {
	f := newBookingFixture(t)
	student := "student-1"
	date := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	f.seedSlot(t, models.Slot{ID: "slot-1", StudentID: &student, Date: date, StartTime: "10:00",
		Status: models.SlotStatusCancelled})
	f.repo.counts[slotKey(date, "10:00")] = 3

	// The freed seat was taken meanwhile.
	_, err := f.svc.ChangeStatus(context.Background(), ownerActor(), "slot-1", models.SlotStatusReserved)
	require.ErrorIs(t, err, appErrors.ErrCapacityExceeded)
}

func TestChangeStatusInvalidTransition(t *testing.T) {
	f := newBookingFixture(t)
	student := "student-1"
	f.seedSlot(t, models.Slot{ID: "slot-1", StudentID: &student,
		Date: time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC), StartTime: "10:00",
		Status: models.SlotStatusCompleted})

	_, err := f.svc.ChangeStatus(context.Background(), ownerActor(), "slot-1", models.SlotStatusCancelled)
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)
}

func TestCancelWithinLeadWindow(t *testing.T) {
	f := newBookingFixture(t)
	student := "student-1"
	f.seedSlot(t, models.Slot{ID: "slot-1", StudentID: &student, Date: f.now, StartTime: "14:00"})

	_, err := f.svc.Cancel(context.Background(), ownerActor(), "slot-1")
	require.ErrorIs(t, err, appErrors.ErrLeadTimeViolation)
}

func TestSetAttendanceCompletesClass(t *testing.T) {
	f := newBookingFixture(t)
	student := "student-1"
	// Class was yesterday.
	f.seedSlot(t, models.Slot{ID: "slot-1", StudentID: &student,
		Date: f.now.AddDate(0, 0, -1), StartTime: "10:00"})

	updated, err := f.svc.SetAttendance(context.Background(), ownerActor(), "slot-1", models.AttendancePresent)
	require.NoError(t, err)
	require.Equal(t, models.AttendancePresent, updated.Attendance)
	require.Equal(t, models.SlotStatusCompleted, updated.Status)
}

func TestSetAttendanceTooEarly(t *testing.T) {
	f := newBookingFixture(t)
	student := "student-1"
	f.seedSlot(t, models.Slot{ID: "slot-1", StudentID: &student,
		Date: f.now.AddDate(0, 0, 3), StartTime: "10:00"})

	_, err := f.svc.SetAttendance(context.Background(), ownerActor(), "slot-1", models.AttendancePresent)
	require.ErrorIs(t, err, appErrors.ErrTooEarlyToMark)
}

func TestSetAttendancePendingReopens(t *testing.T) {
	f := newBookingFixture(t)
	student := "student-1"
	f.seedSlot(t, models.Slot{ID: "slot-1", StudentID: &student,
		Date: f.now.AddDate(0, 0, -1), StartTime: "10:00",
		Status: models.SlotStatusCompleted, Attendance: models.AttendancePresent})

	updated, err := f.svc.SetAttendance(context.Background(), ownerActor(), "slot-1", models.AttendancePending)
	require.NoError(t, err)
	require.Equal(t, models.SlotStatusReserved, updated.Status)
	require.Equal(t, models.AttendancePending, updated.Attendance)
}

func TestBulkCancelPromotesFreedSeats(t *testing.T) {
	f := newBookingFixture(t)
	s1, s2 := "student-1", "student-2"
	d1 := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 3, 21, 0, 0, 0, 0, time.UTC)
	f.seedSlot(t, models.Slot{ID: "slot-1", StudentID: &s1, Date: d1, StartTime: "10:00"})
	f.seedSlot(t, models.Slot{ID: "slot-2", StudentID: &s2, Date: d2, StartTime: "15:00"})
	f.seedSlot(t, models.Slot{ID: "slot-3", Date: d2, StartTime: "16:00"}) // placeholder, no seat freed

	affected, err := f.svc.BulkCancel(context.Background(), ownerActor(), []string{"slot-1", "slot-2", "slot-3"})
	require.NoError(t, err)
	require.Equal(t, 3, affected)
	require.Len(t, f.effects.cancelled, 3)
	require.ElementsMatch(t, []string{slotKey(d1, "10:00"), slotKey(d2, "15:00")}, f.cascade.promoted)
}

func TestEditSeriesMoveTimes(t *testing.T) {
	f := newBookingFixture(t)
	student := "student-1"
	series := "series-1"
	for i := 0; i < 4; i++ {
		f.seedSlot(t, models.Slot{
			ID:        "slot-" + string(rune('a'+i)),
			StudentID: &student,
			SeriesID:  &series,
			Date:      time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 7*i),
			StartTime: "10:00",
		})
	}

	newStart := "15:00"
	moved, err := f.svc.EditSeries(context.Background(), ownerActor(), series, EditSeriesRequest{
		StartTime: &newStart, Scope: "future",
	})
	require.NoError(t, err)
	require.Equal(t, 4, moved)
	require.Equal(t, "15:00", f.repo.movedStart)
}

func TestEditSeriesRegenerateWeekdays(t *testing.T) {
	f := newBookingFixture(t)
	student := "student-1"
	series := "series-1"
	// Two weekly Wednesday instances.
	for i := 0; i < 2; i++ {
		f.seedSlot(t, models.Slot{
			ID:        "slot-" + string(rune('a'+i)),
			StudentID: &student,
			SeriesID:  &series,
			Date:      time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 7*i),
			StartTime: "10:00",
		})
	}

	// Move the series to Tuesday and Thursday.
	regenerated, err := f.svc.EditSeries(context.Background(), ownerActor(), series, EditSeriesRequest{
		Weekdays: []int{2, 4}, Scope: "future",
	})
	require.NoError(t, err)
	require.Equal(t, 4, regenerated)
	require.Len(t, f.repo.softDeleted, 2)
}

func TestEditSeriesNothingToChange(t *testing.T) {
	f := newBookingFixture(t)
	student := "student-1"
	series := "series-1"
	f.seedSlot(t, models.Slot{ID: "slot-a", StudentID: &student, SeriesID: &series,
		Date: time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC), StartTime: "10:00"})

	_, err := f.svc.EditSeries(context.Background(), ownerActor(), series, EditSeriesRequest{Scope: "future"})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestBookWeekendWithoutWindow(t *testing.T) {
	f := newBookingFixture(t)

	_, err := f.svc.Book(context.Background(), ownerActor(), BookSlotRequest{
		Date: "2024-03-23", StartTime: "10:00", StudentIDs: []string{"student-1"}, // Saturday
	})
	require.ErrorIs(t, err, appErrors.ErrWeekendNotAvailable)
}
