package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dat-nglt/cusc-schedule/internal/models"
	"github.com/dat-nglt/cusc-schedule/internal/service"
	"github.com/dat-nglt/cusc-schedule/pkg/response"
)

type lecturerService interface {
	ListAssignments(ctx context.Context, lecturerID string) ([]models.LecturerAssignment, error)
	Assign(ctx context.Context, lecturerID string, req service.AssignSubjectRequest) (*models.LecturerAssignment, error)
	Unassign(ctx context.Context, lecturerID, subjectID string) error
	ListBusySlots(ctx context.Context, lecturerID string) ([]models.BusySlot, error)
	AddBusySlot(ctx context.Context, lecturerID string, req service.BusySlotRequest) (*models.BusySlot, error)
	RemoveBusySlot(ctx context.Context, lecturerID, id string) error
	ListSemesterBusySlots(ctx context.Context, lecturerID, semesterID string) ([]models.SemesterBusySlot, error)
	AddSemesterBusySlot(ctx context.Context, lecturerID string, req service.SemesterBusySlotRequest) (*models.SemesterBusySlot, error)
	RemoveSemesterBusySlot(ctx context.Context, lecturerID, id string) error
}

// LecturerHandler exposes subject assignments and unavailability of a lecturer.
// Every route is keyed by the lecturer's account id in :id.
type LecturerHandler struct {
	service lecturerService
}

// NewLecturerHandler constructs the handler.
func NewLecturerHandler(svc lecturerService) *LecturerHandler {
	return &LecturerHandler{service: svc}
}

// ListAssignments godoc
// @Summary List subjects assigned to a lecturer
// @Tags Lecturers
// @Produce json
// @Param id path string true "Lecturer account ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /lecturers/{id}/assignments [get]
func (h *LecturerHandler) ListAssignments(c *gin.Context) {
	items, err := h.service.ListAssignments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Assign godoc
// @Summary Assign a subject to a lecturer
// @Tags Lecturers
// @Accept json
// @Produce json
// @Param id path string true "Lecturer account ID"
// @Param payload body service.AssignSubjectRequest true "Subject"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.ErrorBody
// @Security BearerAuth
// @Router /lecturers/{id}/assignments [post]
func (h *LecturerHandler) Assign(c *gin.Context) {
	var req service.AssignSubjectRequest
	if !bindJSON(c, &req, "invalid assignment payload") {
		return
	}
	item, err := h.service.Assign(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Unassign godoc
// @Summary Remove a subject assignment
// @Tags Lecturers
// @Param id path string true "Lecturer account ID"
// @Param subjectId path string true "Subject ID"
// @Success 204
// @Security BearerAuth
// @Router /lecturers/{id}/assignments/{subjectId} [delete]
func (h *LecturerHandler) Unassign(c *gin.Context) {
	if err := h.service.Unassign(c.Request.Context(), c.Param("id"), c.Param("subjectId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListBusySlots godoc
// @Summary List weekly busy slots
// @Tags Lecturers
// @Produce json
// @Param id path string true "Lecturer account ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /lecturers/{id}/busy-slots [get]
func (h *LecturerHandler) ListBusySlots(c *gin.Context) {
	items, err := h.service.ListBusySlots(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// AddBusySlot godoc
// @Summary Declare a weekly busy slot
// @Tags Lecturers
// @Accept json
// @Produce json
// @Param id path string true "Lecturer account ID"
// @Param payload body service.BusySlotRequest true "Busy slot"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.ErrorBody
// @Security BearerAuth
// @Router /lecturers/{id}/busy-slots [post]
func (h *LecturerHandler) AddBusySlot(c *gin.Context) {
	var req service.BusySlotRequest
	if !bindJSON(c, &req, "invalid busy slot payload") {
		return
	}
	item, err := h.service.AddBusySlot(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// RemoveBusySlot godoc
// @Summary Remove a weekly busy slot
// @Tags Lecturers
// @Param id path string true "Lecturer account ID"
// @Param slotId path string true "Busy slot ID"
// @Success 204
// @Security BearerAuth
// @Router /lecturers/{id}/busy-slots/{slotId} [delete]
func (h *LecturerHandler) RemoveBusySlot(c *gin.Context) {
	if err := h.service.RemoveBusySlot(c.Request.Context(), c.Param("id"), c.Param("slotId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListSemesterBusySlots godoc
// @Summary List dated busy slots
// @Tags Lecturers
// @Produce json
// @Param id path string true "Lecturer account ID"
// @Param semester_id query string false "Semester ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /lecturers/{id}/semester-busy-slots [get]
func (h *LecturerHandler) ListSemesterBusySlots(c *gin.Context) {
	items, err := h.service.ListSemesterBusySlots(c.Request.Context(), c.Param("id"), c.Query("semester_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// AddSemesterBusySlot godoc
// @Summary Declare a busy slot on one date
// @Tags Lecturers
// @Accept json
// @Produce json
// @Param id path string true "Lecturer account ID"
// @Param payload body service.SemesterBusySlotRequest true "Busy slot"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.ErrorBody
// @Security BearerAuth
// @Router /lecturers/{id}/semester-busy-slots [post]
func (h *LecturerHandler) AddSemesterBusySlot(c *gin.Context) {
	var req service.SemesterBusySlotRequest
	if !bindJSON(c, &req, "invalid busy slot payload") {
		return
	}
	item, err := h.service.AddSemesterBusySlot(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// RemoveSemesterBusySlot godoc
// @Summary Remove a dated busy slot
// @Tags Lecturers
// @Param id path string true "Lecturer account ID"
// @Param slotId path string true "Busy slot ID"
// @Success 204
// @Security BearerAuth
// @Router /lecturers/{id}/semester-busy-slots/{slotId} [delete]
func (h *LecturerHandler) RemoveSemesterBusySlot(c *gin.Context) {
	if err := h.service.RemoveSemesterBusySlot(c.Request.Context(), c.Param("id"), c.Param("slotId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
