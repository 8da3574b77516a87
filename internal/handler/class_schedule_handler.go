package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dat-nglt/cusc-schedule/internal/models"
	"github.com/dat-nglt/cusc-schedule/internal/service"
	"github.com/dat-nglt/cusc-schedule/pkg/response"
)

type classScheduleService interface {
	List(ctx context.Context, filter models.ClassScheduleFilter) ([]models.ClassSchedule, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.ClassSchedule, error)
	Create(ctx context.Context, req service.ClassScheduleRequest) (*models.ClassSchedule, error)
	Update(ctx context.Context, id string, req service.ClassScheduleRequest) (*models.ClassSchedule, error)
	Delete(ctx context.Context, id string) error
	BulkCreate(ctx context.Context, req service.BulkClassScheduleRequest) (*service.BulkClassScheduleResult, error)
}

// ClassScheduleHandler exposes class schedule endpoints.
type ClassScheduleHandler struct {
	service classScheduleService
}

// NewClassScheduleHandler constructs the handler.
func NewClassScheduleHandler(svc classScheduleService) *ClassScheduleHandler {
	return &ClassScheduleHandler{service: svc}
}

// List godoc
// @Summary List class schedules
// @Tags ClassSchedules
// @Produce json
// @Param class_id query string false "Class ID"
// @Param subject_id query string false "Subject ID"
// @Param lecturer_id query string false "Lecturer ID"
// @Param room_id query string false "Room ID"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.ErrorBody
// @Security BearerAuth
// @Router /class-schedules [get]
func (h *ClassScheduleHandler) List(c *gin.Context) {
	filter := models.ClassScheduleFilter{
		ClassID:    c.Query("class_id"),
		SubjectID:  c.Query("subject_id"),
		LecturerID: c.Query("lecturer_id"),
		RoomID:     c.Query("room_id"),
	}
	var err error
	if filter.From, err = dateQuery(c, "from"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.To, err = dateQuery(c, "to"); err != nil {
		response.Error(c, err)
		return
	}
	filter.Page, filter.PageSize = pageParams(c)

	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get class schedule
// @Tags ClassSchedules
// @Produce json
// @Param id path string true "Class schedule ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /class-schedules/{id} [get]
func (h *ClassScheduleHandler) Get(c *gin.Context) {
	sched, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sched, nil)
}

// Create godoc
// @Summary Create class schedule
// @Description Rejected with 409 when the lecturer is busy or already booked in the slot
// @Tags ClassSchedules
// @Accept json
// @Produce json
// @Param payload body service.ClassScheduleRequest true "Schedule payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.ErrorBody
// @Security BearerAuth
// @Router /class-schedules [post]
func (h *ClassScheduleHandler) Create(c *gin.Context) {
	var req service.ClassScheduleRequest
	if !bindJSON(c, &req, "invalid schedule payload") {
		return
	}
	sched, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sched)
}

// BulkCreate godoc
// @Summary Create class schedules in bulk
// @Description With partial_on_error conflicting items are reported and the rest created
// @Tags ClassSchedules
// @Accept json
// @Produce json
// @Param payload body service.BulkClassScheduleRequest true "Bulk payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.ErrorBody
// @Security BearerAuth
// @Router /class-schedules/bulk [post]
func (h *ClassScheduleHandler) BulkCreate(c *gin.Context) {
	var req service.BulkClassScheduleRequest
	if !bindJSON(c, &req, "invalid bulk payload") {
		return
	}
	res, err := h.service.BulkCreate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Update godoc
// @Summary Update class schedule
// @Tags ClassSchedules
// @Accept json
// @Produce json
// @Param id path string true "Class schedule ID"
// @Param payload body service.ClassScheduleRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.ErrorBody
// @Security BearerAuth
// @Router /class-schedules/{id} [put]
func (h *ClassScheduleHandler) Update(c *gin.Context) {
	var req service.ClassScheduleRequest
	if !bindJSON(c, &req, "invalid schedule payload") {
		return
	}
	sched, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sched, nil)
}

// Delete godoc
// @Summary Delete class schedule
// @Tags ClassSchedules
// @Param id path string true "Class schedule ID"
// @Success 204
// @Security BearerAuth
// @Router /class-schedules/{id} [delete]
func (h *ClassScheduleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
