package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dat-nglt/cusc-schedule/internal/middleware"
	"github.com/dat-nglt/cusc-schedule/internal/models"
	appErrors "github.com/dat-nglt/cusc-schedule/pkg/errors"
)

type changeRequestServiceMock struct {
	createdBy  string
	listFilter models.ChangeRequestFilter
	listRole   models.Role
	reviewReq  models.ReviewChangeRequest
	reviewErr  error
	canceledID string
	canceledBy string
}

func (m *changeRequestServiceMock) Create(_ context.Context, req models.CreateChangeRequest, lecturerID string) (*models.ScheduleChangeRequest, error) {
	m.createdBy = lecturerID
	return &models.ScheduleChangeRequest{ID: "cr-1", ClassScheduleID: req.ClassScheduleID, LecturerID: lecturerID,
		RequestType: req.RequestType, Status: models.ChangeRequestPending}, nil
}

func (m *changeRequestServiceMock) Get(_ context.Context, id, _ string, _ models.Role) (*models.ScheduleChangeRequest, error) {
	return &models.ScheduleChangeRequest{ID: id}, nil
}

func (m *changeRequestServiceMock) List(_ context.Context, filter models.ChangeRequestFilter, _ string, role models.Role) ([]models.ScheduleChangeRequest, *models.Pagination, error) {
	m.listFilter = filter
	m.listRole = role
	return []models.ScheduleChangeRequest{}, models.NewPagination(1, 20, 0), nil
}

func (m *changeRequestServiceMock) Review(_ context.Context, id string, req models.ReviewChangeRequest, _ string) (*models.ScheduleChangeRequest, error) {
	m.reviewReq = req
	if m.reviewErr != nil {
		return nil, m.reviewErr
	}
	return &models.ScheduleChangeRequest{ID: id, Status: req.Decision}, nil
}

func (m *changeRequestServiceMock) Cancel(_ context.Context, id, lecturerID string) error {
	m.canceledID = id
	m.canceledBy = lecturerID
	return nil
}

func TestChangeRequestHandlerCreateUsesCaller(t *testing.T) {
	svc := &changeRequestServiceMock{}
	handler := NewChangeRequestHandler(svc)
	c, w := newJSONContext(http.MethodPost, "/change-requests", models.CreateChangeRequest{
		ClassScheduleID: "33333333-3333-3333-3333-333333333333",
		RequestType:     models.ChangeCancel,
		Reason:          "conference",
	})
	c.Set(middleware.ContextUserKey, &models.JWTClaims{AccountID: "lect-1", Role: models.RoleLecturer})

	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "lect-1", svc.createdBy)
}

func TestChangeRequestHandlerListParsesStatuses(t *testing.T) {
	svc := &changeRequestServiceMock{}
	handler := NewChangeRequestHandler(svc)
	c, w := newJSONContext(http.MethodGet, "/change-requests?status=pending,%20approved&page=2", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{AccountID: "admin-1", Role: models.RoleAdmin})

	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []models.ChangeRequestStatus{models.ChangeRequestPending, models.ChangeRequestApproved}, svc.listFilter.Status)
	assert.Equal(t, 2, svc.listFilter.Page)
	assert.Equal(t, models.RoleAdmin, svc.listRole)
}

func TestChangeRequestHandlerReviewNormalizesDecision(t *testing.T) {
	svc := &changeRequestServiceMock{}
	handler := NewChangeRequestHandler(svc)
	c, w := newJSONContext(http.MethodPost, "/change-requests/cr-1/review", map[string]string{"decision": "approved"})
	c.Params = gin.Params{{Key: "id", Value: "cr-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{AccountID: "officer-1", Role: models.RoleTrainingOfficer})

	handler.Review(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ChangeRequestApproved, svc.reviewReq.Decision)
}

func TestChangeRequestHandlerReviewConflict(t *testing.T) {
	svc := &changeRequestServiceMock{reviewErr: appErrors.Clone(appErrors.ErrConflict, "change request is no longer pending")}
	handler := NewChangeRequestHandler(svc)
	c, w := newJSONContext(http.MethodPost, "/change-requests/cr-1/review", map[string]string{"decision": "REJECTED"})
	c.Params = gin.Params{{Key: "id", Value: "cr-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{AccountID: "officer-1", Role: models.RoleTrainingOfficer})

	handler.Review(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "change request is no longer pending", decodeBody(t, w)["message"])
}

func TestChangeRequestHandlerCancel(t *testing.T) {
	svc := &changeRequestServiceMock{}
	handler := NewChangeRequestHandler(svc)
	c, _ := newJSONContext(http.MethodPost, "/change-requests/cr-9/cancel", nil)
	c.Params = gin.Params{{Key: "id", Value: "cr-9"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{AccountID: "lect-1", Role: models.RoleLecturer})

	handler.Cancel(c)

	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, "cr-9", svc.canceledID)
	assert.Equal(t, "lect-1", svc.canceledBy)
}
