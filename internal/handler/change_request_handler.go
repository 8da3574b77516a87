package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dat-nglt/cusc-schedule/internal/models"
	"github.com/dat-nglt/cusc-schedule/pkg/response"
)

type changeRequestService interface {
	Create(ctx context.Context, req models.CreateChangeRequest, lecturerID string) (*models.ScheduleChangeRequest, error)
	Get(ctx context.Context, id, callerID string, callerRole models.Role) (*models.ScheduleChangeRequest, error)
	List(ctx context.Context, filter models.ChangeRequestFilter, callerID string, callerRole models.Role) ([]models.ScheduleChangeRequest, *models.Pagination, error)
	Review(ctx context.Context, id string, req models.ReviewChangeRequest, reviewerID string) (*models.ScheduleChangeRequest, error)
	Cancel(ctx context.Context, id, lecturerID string) error
}

// ChangeRequestHandler exposes schedule change request endpoints.
type ChangeRequestHandler struct {
	service changeRequestService
}

// NewChangeRequestHandler constructs the handler.
func NewChangeRequestHandler(svc changeRequestService) *ChangeRequestHandler {
	return &ChangeRequestHandler{service: svc}
}

// Create godoc
// @Summary Submit change request
// @Description A lecturer asks to change one of their class schedules
// @Tags ChangeRequests
// @Accept json
// @Produce json
// @Param payload body models.CreateChangeRequest true "Change request"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.ErrorBody
// @Failure 403 {object} response.ErrorBody
// @Security BearerAuth
// @Router /change-requests [post]
func (h *ChangeRequestHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req models.CreateChangeRequest
	if !bindJSON(c, &req, "invalid change request payload") {
		return
	}
	cr, err := h.service.Create(c.Request.Context(), req, claims.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cr)
}

// List godoc
// @Summary List change requests
// @Description Lecturers only see their own requests
// @Tags ChangeRequests
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param lecturer_id query string false "Lecturer ID"
// @Param class_schedule_id query string false "Class schedule ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /change-requests [get]
func (h *ChangeRequestHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var filter models.ChangeRequestFilter
	for _, s := range strings.Split(c.Query("status"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			filter.Status = append(filter.Status, models.ChangeRequestStatus(strings.ToUpper(s)))
		}
	}
	filter.LecturerID = c.Query("lecturer_id")
	filter.ClassScheduleID = c.Query("class_schedule_id")
	filter.Page, filter.PageSize = pageParams(c)

	items, pagination, err := h.service.List(c.Request.Context(), filter, claims.AccountID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get change request
// @Tags ChangeRequests
// @Produce json
// @Param id path string true "Change request ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /change-requests/{id} [get]
func (h *ChangeRequestHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	cr, err := h.service.Get(c.Request.Context(), c.Param("id"), claims.AccountID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cr, nil)
}

// Review godoc
// @Summary Approve or reject a change request
// @Description Approval applies the change to the class schedule atomically
// @Tags ChangeRequests
// @Accept json
// @Produce json
// @Param id path string true "Change request ID"
// @Param payload body models.ReviewChangeRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.ErrorBody
// @Security BearerAuth
// @Router /change-requests/{id}/review [post]
func (h *ChangeRequestHandler) Review(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req models.ReviewChangeRequest
	if !bindJSON(c, &req, "invalid review payload") {
		return
	}
	req.Decision = models.ChangeRequestStatus(strings.ToUpper(string(req.Decision)))
	cr, err := h.service.Review(c.Request.Context(), c.Param("id"), req, claims.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cr, nil)
}

// Cancel godoc
// @Summary Withdraw a change request
// @Tags ChangeRequests
// @Param id path string true "Change request ID"
// @Success 204
// @Failure 409 {object} response.ErrorBody
// @Security BearerAuth
// @Router /change-requests/{id}/cancel [post]
func (h *ChangeRequestHandler) Cancel(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if err := h.service.Cancel(c.Request.Context(), c.Param("id"), claims.AccountID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
