package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/studio-booking-api/internal/models"
	"github.com/noah-isme/studio-booking-api/pkg/export"
	appErrors "github.com/noah-isme/studio-booking-api/pkg/errors"
)

type agendaReader interface {
	List(ctx context.Context, filter models.SlotFilter) ([]models.SlotRecord, int, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportService renders the weekly agenda as a downloadable PDF.
type ExportService struct {
	slots  agendaReader
	pdf    pdfRenderer
	logger *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(slots agendaReader, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{slots: slots, pdf: pdf, logger: logger}
}

// WeeklySchedulePDF renders the seven days starting at weekStart.
func (s *ExportService) WeeklySchedulePDF(ctx context.Context, owner models.OwnerRef, weekStart time.Time) ([]byte, string, error) {
	from := weekStart
	to := weekStart.AddDate(0, 0, 6)
	filter := models.SlotFilter{
		Scope:    owner.Resolve(),
		DateFrom: &from,
		DateTo:   &to,
		PageSize: 200,
		SortBy:   "date",
	}
	records, _, err := s.slots.List(ctx, filter)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load agenda")
	}

	rows := make([]map[string]string, 0, len(records))
	for _, record := range records {
		student := ""
		if record.StudentName != nil {
			student = *record.StudentName
		}
		recurring := ""
		if record.IsRecurring {
			recurring = "yes"
		}
		rows = append(rows, map[string]string{
			"Date":       record.Date.Format("Mon 02 Jan"),
			"Time":       record.StartTime,
			"Student":    student,
			"Status":     string(record.Status),
			"Attendance": string(record.Attendance),
			"Recurring":  recurring,
		})
	}

	dataset := export.Dataset{
		Headers: []string{"Date", "Time", "Student", "Status", "Attendance", "Recurring"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Schedule %s - %s", from.Format("02 Jan 2006"), to.Format("02 Jan 2006"))

	payload, err := s.pdf.Render(dataset, title)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render schedule")
	}
	filename := fmt.Sprintf("schedule_%s.pdf", from.Format("20060102"))
	return payload, filename, nil
}
