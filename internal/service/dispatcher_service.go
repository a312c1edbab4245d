package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/studio-booking-api/internal/models"
	"github.com/noah-isme/studio-booking-api/pkg/jobs"
)

// Notification kinds emitted by the booking flows.
const (
	NotificationBookingConfirmed = "booking_confirmed"
	NotificationBookingCancelled = "booking_cancelled"
	NotificationBookingMoved     = "booking_moved"
	NotificationWaitlistSpot     = "waitlist_spot_available"
)

// Calendar job actions.
const (
	calendarActionUpsert = "upsert"
	calendarActionDelete = "delete"
)

// NotificationMessage is the payload delivered to the notification sink.
type NotificationMessage struct {
	Kind      string
	OwnerID   string
	StudentID string
	Date      time.Time
	StartTime string
	ExpiresAt *time.Time
}

// NotificationSink delivers a notification to the outside world (push,
// email, whatever the deployment wires in).
type NotificationSink interface {
	Send(ctx context.Context, msg NotificationMessage) error
}

// CalendarEvent is the payload for calendar synchronisation jobs.
type CalendarEvent struct {
	Action    string
	SlotID    string
	OwnerID   string
	StudentID *string
	Date      time.Time
	StartTime string
	EventID   *string
}

// CalendarSink mirrors slots into an external calendar.
type CalendarSink interface {
	Upsert(ctx context.Context, event CalendarEvent) (string, error)
	Delete(ctx context.Context, eventID string) error
}

type calendarEventWriter interface {
	SetCalendarEventID(ctx context.Context, id string, eventID *string) error
}

// DispatcherService fans booking side effects out to background queues.
// Dispatch happens strictly after the triggering transaction commits, and a
// failed or dropped job never fails the booking: delivery is best-effort.
type DispatcherService struct {
	notifications *jobs.Queue
	calendar      *jobs.Queue

	notificationsEnabled bool
	calendarEnabled      bool

	logger *zap.Logger
}

// DispatcherConfig tunes the two side-effect queues.
type DispatcherConfig struct {
	NotificationsEnabled bool
	NotificationWorkers  int
	NotificationRetries  int
	CalendarEnabled      bool
	CalendarWorkers      int
	CalendarRetries      int
}

// NewDispatcherService constructs the dispatcher with its worker queues.
func NewDispatcherService(cfg DispatcherConfig, notifSink NotificationSink, calSink CalendarSink, slots calendarEventWriter, logger *zap.Logger) *DispatcherService {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &DispatcherService{
		notificationsEnabled: cfg.NotificationsEnabled,
		calendarEnabled:      cfg.CalendarEnabled,
		logger:               logger,
	}

	s.notifications = jobs.NewQueue("notifications", func(ctx context.Context, job jobs.Job) error {
		msg, ok := job.Payload.(NotificationMessage)
		if !ok {
			return fmt.Errorf("unexpected notification payload %T", job.Payload)
		}
		return notifSink.Send(ctx, msg)
	}, jobs.QueueConfig{
		Workers:    cfg.NotificationWorkers,
		MaxRetries: cfg.NotificationRetries,
		Logger:     logger,
	})

	s.calendar = jobs.NewQueue("calendar", func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(CalendarEvent)
		if !ok {
			return fmt.Errorf("unexpected calendar payload %T", job.Payload)
		}
		switch event.Action {
		case calendarActionDelete:
			if event.EventID == nil {
				return nil
			}
			return calSink.Delete(ctx, *event.EventID)
		default:
			eventID, err := calSink.Upsert(ctx, event)
			if err != nil {
				return err
			}
			return slots.SetCalendarEventID(ctx, event.SlotID, &eventID)
		}
	}, jobs.QueueConfig{
		Workers:    cfg.CalendarWorkers,
		MaxRetries: cfg.CalendarRetries,
		Logger:     logger,
	})

	return s
}

// Start launches the queue workers.
func (s *DispatcherService) Start(ctx context.Context) {
	s.notifications.Start(ctx)
	s.calendar.Start(ctx)
}

// Stop drains the queue workers.
func (s *DispatcherService) Stop() {
	s.notifications.Stop()
	s.calendar.Stop()
}

// SlotBooked emits confirmation and calendar jobs for freshly committed
// slots.
func (s *DispatcherService) SlotBooked(slots []models.Slot) {
	for _, slot := range slots {
		if slot.StudentID != nil {
			s.notify(NotificationMessage{
				Kind:      NotificationBookingConfirmed,
				OwnerID:   slot.OwnerID,
				StudentID: *slot.StudentID,
				Date:      slot.Date,
				StartTime: slot.StartTime,
			})
		}
		s.syncCalendar(CalendarEvent{
			Action:    calendarActionUpsert,
			SlotID:    slot.ID,
			OwnerID:   slot.OwnerID,
			StudentID: slot.StudentID,
			Date:      slot.Date,
			StartTime: slot.StartTime,
		})
	}
}

// SlotRescheduled emits a move notification plus a calendar update.
func (s *DispatcherService) SlotRescheduled(slot models.Slot) {
	if slot.StudentID != nil {
		s.notify(NotificationMessage{
			Kind:      NotificationBookingMoved,
			OwnerID:   slot.OwnerID,
			StudentID: *slot.StudentID,
			Date:      slot.Date,
			StartTime: slot.StartTime,
		})
	}
	s.syncCalendar(CalendarEvent{
		Action:    calendarActionUpsert,
		SlotID:    slot.ID,
		OwnerID:   slot.OwnerID,
		StudentID: slot.StudentID,
		Date:      slot.Date,
		StartTime: slot.StartTime,
		EventID:   slot.CalendarEventID,
	})
}

// SlotCancelled emits a cancellation notification and removes the mirrored
// calendar event when one exists.
func (s *DispatcherService) SlotCancelled(slot models.Slot) {
	if slot.StudentID != nil {
		s.notify(NotificationMessage{
			Kind:      NotificationBookingCancelled,
			OwnerID:   slot.OwnerID,
			StudentID: *slot.StudentID,
			Date:      slot.Date,
			StartTime: slot.StartTime,
		})
	}
	if slot.CalendarEventID != nil {
		s.syncCalendar(CalendarEvent{
			Action:  calendarActionDelete,
			SlotID:  slot.ID,
			OwnerID: slot.OwnerID,
			EventID: slot.CalendarEventID,
		})
	}
}

// WaitlistPromoted notifies the promoted student that a seat opened, with
// the hold deadline attached. Exactly one notification per promotion.
func (s *DispatcherService) WaitlistPromoted(entry models.WaitlistEntry) {
	s.notify(NotificationMessage{
		Kind:      NotificationWaitlistSpot,
		OwnerID:   entry.OwnerID,
		StudentID: entry.StudentID,
		Date:      entry.Date,
		StartTime: entry.StartTime,
		ExpiresAt: entry.ExpiresAt,
	})
}

func (s *DispatcherService) notify(msg NotificationMessage) {
	if !s.notificationsEnabled {
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: msg.Kind, Payload: msg}
	if err := s.notifications.Enqueue(job); err != nil {
		s.logger.Sugar().Warnw("dropping notification", "kind", msg.Kind, "error", err)
	}
}

func (s *DispatcherService) syncCalendar(event CalendarEvent) {
	if !s.calendarEnabled {
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: "calendar_" + event.Action, Payload: event}
	if err := s.calendar.Enqueue(job); err != nil {
		s.logger.Sugar().Warnw("dropping calendar job", "slot_id", event.SlotID, "error", err)
	}
}

// LogNotificationSink writes notifications to the application log. It is the
// default sink until a real channel is configured.
type LogNotificationSink struct {
	Logger *zap.Logger
}

// Send logs the notification.
func (s LogNotificationSink) Send(_ context.Context, msg NotificationMessage) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Sugar().Infow("notification",
		"kind", msg.Kind,
		"student_id", msg.StudentID,
		"date", msg.Date.Format("2006-01-02"),
		"start_time", msg.StartTime,
	)
	return nil
}

// NoopCalendarSink satisfies CalendarSink when calendar sync is disabled.
type NoopCalendarSink struct{}

// Upsert returns a synthetic event id.
func (NoopCalendarSink) Upsert(_ context.Context, event CalendarEvent) (string, error) {
	return "noop-" + event.SlotID, nil
}

// Delete does nothing.
func (NoopCalendarSink) Delete(context.Context, string) error { return nil }
