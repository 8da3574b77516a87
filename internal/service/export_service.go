package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dat-nglt/cusc-schedule/internal/models"
	appErrors "github.com/dat-nglt/cusc-schedule/pkg/errors"
	"github.com/dat-nglt/cusc-schedule/pkg/export"
)

// maxExportRange bounds a timetable export to roughly one academic year.
const maxExportRange = 366 * 24 * time.Hour

type timetableSource interface {
	Timetable(ctx context.Context, filter models.ClassScheduleFilter) ([]models.TimetableEntry, error)
}

// TimetableExportRequest selects the schedules to export. Exactly one of
// ClassID and LecturerID is expected.
type TimetableExportRequest struct {
	ClassID    string    `form:"class_id" validate:"required_without=LecturerID,excluded_with=LecturerID,omitempty,uuid"`
	LecturerID string    `form:"lecturer_id" validate:"required_without=ClassID,omitempty,uuid"`
	From       time.Time `form:"from" time_format:"2006-01-02" validate:"required"`
	To         time.Time `form:"to" time_format:"2006-01-02" validate:"required,gtefield=From"`
	Format     string    `form:"format" validate:"omitempty,oneof=csv pdf"`
}

// Document is a rendered export ready to be streamed.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders timetables as CSV or PDF documents.
type ExportService struct {
	source    timetableSource
	renderers map[export.Format]export.Renderer
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(source timetableSource, validate *validator.Validate, logger *zap.Logger) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		source: source,
		renderers: map[export.Format]export.Renderer{
			export.FormatCSV: export.RendererFor(export.FormatCSV),
			export.FormatPDF: export.RendererFor(export.FormatPDF),
		},
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Timetable renders the selected schedules ordered by date and slot.
func (s *ExportService) Timetable(ctx context.Context, req TimetableExportRequest) (*Document, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid export request")
	}
	if req.To.Sub(req.From) > maxExportRange {
		return nil, appErrors.WithFields(appErrors.ErrValidation, map[string]string{"to": "range must not exceed one year"})
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		return nil, appErrors.WithFields(appErrors.ErrValidation, map[string]string{"format": err.Error()})
	}

	from, to := truncateDay(req.From), truncateDay(req.To)
	filter := models.ClassScheduleFilter{ClassID: req.ClassID, LecturerID: req.LecturerID, From: &from, To: &to}
	entries, err := s.source.Timetable(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load timetable")
	}

	table := buildTimetable(entries, timetableTitle(req, from, to))
	data, err := s.renderers[format].Render(table)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render timetable")
	}
	s.logger.Info("timetable exported",
		zap.String("format", string(format)),
		zap.Int("rows", len(entries)),
		zap.String("class_id", req.ClassID),
		zap.String("lecturer_id", req.LecturerID))

	return &Document{
		Filename:    s.buildFilename(req, format),
		ContentType: format.ContentType(),
		Data:        data,
	}, nil
}

var timetableColumns = []string{"Date", "Weekday", "Slot", "Start", "End", "Class", "Subject", "Lecturer", "Room", "Status"}

func buildTimetable(entries []models.TimetableEntry, title string) export.Table {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.ScheduleDate.Format("2006-01-02"),
			e.ScheduleDate.Weekday().String(),
			deref(e.SlotCode),
			clock(e.StartTime),
			clock(e.EndTime),
			e.ClassCode,
			fmt.Sprintf("%s %s", e.SubjectCode, e.SubjectName),
			deref(e.LecturerName),
			deref(e.RoomCode),
			string(e.Status),
		})
	}
	return export.Table{Title: title, Columns: timetableColumns, Rows: rows}
}

func timetableTitle(req TimetableExportRequest, from, to time.Time) string {
	scope := "Class " + req.ClassID
	if req.ClassID == "" {
		scope = "Lecturer " + req.LecturerID
	}
	return fmt.Sprintf("Timetable %s (%s to %s)", scope, from.Format("2006-01-02"), to.Format("2006-01-02"))
}

func (s *ExportService) buildFilename(req TimetableExportRequest, format export.Format) string {
	owner := "class_" + sanitizeFilename(req.ClassID)
	if req.ClassID == "" {
		owner = "lecturer_" + sanitizeFilename(req.LecturerID)
	}
	return fmt.Sprintf("timetable_%s_%s.%s", owner, s.now().Format("20060102_150405"), format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

// clock trims a postgres time value to HH:MM.
func clock(ptr *string) string {
	v := deref(ptr)
	if len(v) >= 5 {
		return v[:5]
	}
	return v
}
