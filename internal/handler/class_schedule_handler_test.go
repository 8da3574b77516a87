package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dat-nglt/cusc-schedule/internal/models"
	"github.com/dat-nglt/cusc-schedule/internal/service"
	appErrors "github.com/dat-nglt/cusc-schedule/pkg/errors"
)

type classScheduleServiceMock struct {
	listFilter *models.ClassScheduleFilter
	bulkReq    service.BulkClassScheduleRequest
	createErr  error
}

func (m *classScheduleServiceMock) List(_ context.Context, filter models.ClassScheduleFilter) ([]models.ClassSchedule, *models.Pagination, error) {
	m.listFilter = &filter
	return []models.ClassSchedule{}, models.NewPagination(filter.Page, filter.PageSize, 0), nil
}

func (m *classScheduleServiceMock) Get(_ context.Context, id string) (*models.ClassSchedule, error) {
	return &models.ClassSchedule{ID: id}, nil
}

func (m *classScheduleServiceMock) Create(_ context.Context, req service.ClassScheduleRequest) (*models.ClassSchedule, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &models.ClassSchedule{ID: "cs-1", ClassID: req.ClassID}, nil
}

func (m *classScheduleServiceMock) Update(_ context.Context, id string, _ service.ClassScheduleRequest) (*models.ClassSchedule, error) {
	return &models.ClassSchedule{ID: id}, nil
}

func (m *classScheduleServiceMock) Delete(context.Context, string) error { return nil }

func (m *classScheduleServiceMock) BulkCreate(_ context.Context, req service.BulkClassScheduleRequest) (*service.BulkClassScheduleResult, error) {
	m.bulkReq = req
	return &service.BulkClassScheduleResult{Conflicts: []service.ScheduleConflict{{Index: 1, Dimension: "LECTURER"}}}, nil
}

func TestClassScheduleHandlerListParsesDates(t *testing.T) {
	svc := &classScheduleServiceMock{}
	handler := NewClassScheduleHandler(svc)
	c, w := newJSONContext(http.MethodGet, "/class-schedules?lecturer_id=l1&from=2024-09-01&to=2024-09-30", nil)

	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.listFilter)
	assert.Equal(t, "l1", svc.listFilter.LecturerID)
	require.NotNil(t, svc.listFilter.From)
	assert.True(t, svc.listFilter.From.Equal(time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)))
	require.NotNil(t, svc.listFilter.To)
}

func TestClassScheduleHandlerListRejectsBadDate(t *testing.T) {
	svc := &classScheduleServiceMock{}
	handler := NewClassScheduleHandler(svc)
	c, w := newJSONContext(http.MethodGet, "/class-schedules?from=01/09/2024", nil)

	handler.List(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, svc.listFilter)
	errs := decodeBody(t, w)["errors"].(map[string]interface{})
	assert.Contains(t, errs, "from")
}

func TestClassScheduleHandlerCreateConflict(t *testing.T) {
	svc := &classScheduleServiceMock{createErr: appErrors.Clone(appErrors.ErrConflict, "lecturer is busy in this slot")}
	handler := NewClassScheduleHandler(svc)
	c, w := newJSONContext(http.MethodPost, "/class-schedules", map[string]interface{}{
		"class_id":      "c1",
		"subject_id":    "s1",
		"schedule_date": "2024-09-10T00:00:00Z",
	})

	handler.Create(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestClassScheduleHandlerBulkCreate(t *testing.T) {
	svc := &classScheduleServiceMock{}
	handler := NewClassScheduleHandler(svc)
	c, w := newJSONContext(http.MethodPost, "/class-schedules/bulk", map[string]interface{}{
		"partial_on_error": true,
		"items": []map[string]interface{}{
			{"class_id": "c1", "subject_id": "s1", "schedule_date": "2024-09-10T00:00:00Z"},
			{"class_id": "c1", "subject_id": "s2", "schedule_date": "2024-09-10T00:00:00Z"},
		},
	})

	handler.BulkCreate(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, svc.bulkReq.PartialOnError)
	assert.Len(t, svc.bulkReq.Items, 2)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Len(t, data["conflicts"], 1)
}
