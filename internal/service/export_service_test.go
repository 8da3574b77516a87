package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dat-nglt/cusc-schedule/internal/models"
	appErrors "github.com/dat-nglt/cusc-schedule/pkg/errors"
)

type timetableStub struct {
	filters []models.ClassScheduleFilter
	entries []models.TimetableEntry
}

func (s *timetableStub) Timetable(_ context.Context, filter models.ClassScheduleFilter) ([]models.TimetableEntry, error) {
	s.filters = append(s.filters, filter)
	return s.entries, nil
}

func strPtr(s string) *string { return &s }

func newExportFixture() (*ExportService, *timetableStub) {
	stub := &timetableStub{entries: []models.TimetableEntry{
		{
			ScheduleDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
			SlotCode:     strPtr("S1"),
			StartTime:    strPtr("07:00:00"),
			EndTime:      strPtr("09:30:00"),
			ClassCode:    "DI20V7A1",
			SubjectCode:  "CT101",
			SubjectName:  "Programming",
			LecturerName: strPtr("Tran Van A"),
			Status:       models.ClassScheduleScheduled,
		},
	}}
	svc := NewExportService(stub, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC) }
	return svc, stub
}

func TestExportTimetableCSV(t *testing.T) {
	svc, stub := newExportFixture()
	from := time.Date(2024, 4, 1, 15, 0, 0, 0, time.UTC)
	doc, err := svc.Timetable(context.Background(), TimetableExportRequest{
		ClassID: schedID, From: from, To: from.AddDate(0, 0, 6),
	})
	require.NoError(t, err)

	assert.Equal(t, "text/csv; charset=utf-8", doc.ContentType)
	assert.Equal(t, "timetable_class_"+schedID+"_20240402_100000.csv", doc.Filename)
	assert.Contains(t, string(doc.Data), "Date,Weekday,Slot,Start,End,Class,Subject,Lecturer,Room,Status")
	assert.Contains(t, string(doc.Data), "2024-04-01,Monday,S1,07:00,09:30,DI20V7A1,CT101 Programming,Tran Van A,,scheduled")

	require.Len(t, stub.filters, 1)
	assert.Equal(t, schedID, stub.filters[0].ClassID)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), *stub.filters[0].From)
}

func TestExportTimetablePDF(t *testing.T) {
	svc, _ := newExportFixture()
	from := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	doc, err := svc.Timetable(context.Background(), TimetableExportRequest{
		LecturerID: lecturerA, From: from, To: from.AddDate(0, 1, 0), Format: "pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF")))
	assert.Contains(t, doc.Filename, "timetable_lecturer_")
}

func TestExportTimetableValidation(t *testing.T) {
	svc, stub := newExportFixture()
	from := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	cases := map[string]TimetableExportRequest{
		"no owner":       {From: from, To: from},
		"both owners":    {ClassID: schedID, LecturerID: lecturerA, From: from, To: from},
		"inverted range": {ClassID: schedID, From: from, To: from.AddDate(0, 0, -1)},
		"too long":       {ClassID: schedID, From: from, To: from.AddDate(2, 0, 0)},
		"bad format":     {ClassID: schedID, From: from, To: from, Format: "xlsx"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Timetable(context.Background(), req)
			assert.Equal(t, 400, appErrors.FromError(err).Status)
		})
	}
	assert.Empty(t, stub.filters)
}
