package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dat-nglt/cusc-schedule/internal/models"
	"github.com/dat-nglt/cusc-schedule/internal/service"
	"github.com/dat-nglt/cusc-schedule/pkg/response"
)

type roomService interface {
	ListRooms(ctx context.Context, filter models.AcademicFilter) ([]models.Room, *models.Pagination, error)
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	CreateRoom(ctx context.Context, req service.RoomRequest) (*models.Room, error)
	UpdateRoom(ctx context.Context, id string, req service.RoomRequest) (*models.Room, error)
	DeleteRoom(ctx context.Context, id string) error
	ListTimeSlots(ctx context.Context, filter models.AcademicFilter) ([]models.TimeSlot, *models.Pagination, error)
	GetTimeSlot(ctx context.Context, id string) (*models.TimeSlot, error)
	CreateTimeSlot(ctx context.Context, req service.TimeSlotRequest) (*models.TimeSlot, error)
	UpdateTimeSlot(ctx context.Context, id string, req service.TimeSlotRequest) (*models.TimeSlot, error)
	DeleteTimeSlot(ctx context.Context, id string) error
}

// RoomHandler exposes rooms and the time slot catalogue.
type RoomHandler struct {
	service roomService
}

// NewRoomHandler constructs the handler.
func NewRoomHandler(svc roomService) *RoomHandler {
	return &RoomHandler{service: svc}
}

// ListRooms godoc
// @Summary List rooms
// @Tags Rooms
// @Produce json
// @Param search query string false "Search keyword"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /rooms [get]
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, pagination, err := h.service.ListRooms(c.Request.Context(), academicFilter(c, ""))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, pagination)
}

// GetRoom godoc
// @Summary Get room
// @Tags Rooms
// @Produce json
// @Param id path string true "Room ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /rooms/{id} [get]
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.service.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, room, nil)
}

// CreateRoom godoc
// @Summary Create room
// @Tags Rooms
// @Accept json
// @Produce json
// @Param payload body service.RoomRequest true "Room payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /rooms [post]
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req service.RoomRequest
	if !bindJSON(c, &req, "invalid room payload") {
		return
	}
	room, err := h.service.CreateRoom(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, room)
}

// UpdateRoom godoc
// @Summary Update room
// @Tags Rooms
// @Accept json
// @Produce json
// @Param id path string true "Room ID"
// @Param payload body service.RoomRequest true "Room payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /rooms/{id} [put]
func (h *RoomHandler) UpdateRoom(c *gin.Context) {
	var req service.RoomRequest
	if !bindJSON(c, &req, "invalid room payload") {
		return
	}
	room, err := h.service.UpdateRoom(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, room, nil)
}

// DeleteRoom godoc
// @Summary Delete room
// @Description Schedules in the room keep existing without a room
// @Tags Rooms
// @Param id path string true "Room ID"
// @Success 204
// @Security BearerAuth
// @Router /rooms/{id} [delete]
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	if err := h.service.DeleteRoom(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListTimeSlots godoc
// @Summary List time slots
// @Tags TimeSlots
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /time-slots [get]
func (h *RoomHandler) ListTimeSlots(c *gin.Context) {
	slots, pagination, err := h.service.ListTimeSlots(c.Request.Context(), academicFilter(c, ""))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, pagination)
}

// GetTimeSlot godoc
// @Summary Get time slot
// @Tags TimeSlots
// @Produce json
// @Param id path string true "Time slot ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /time-slots/{id} [get]
func (h *RoomHandler) GetTimeSlot(c *gin.Context) {
	slot, err := h.service.GetTimeSlot(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// CreateTimeSlot godoc
// @Summary Create time slot
// @Tags TimeSlots
// @Accept json
// @Produce json
// @Param payload body service.TimeSlotRequest true "Time slot payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /time-slots [post]
func (h *RoomHandler) CreateTimeSlot(c *gin.Context) {
	var req service.TimeSlotRequest
	if !bindJSON(c, &req, "invalid time slot payload") {
		return
	}
	slot, err := h.service.CreateTimeSlot(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slot)
}

// UpdateTimeSlot godoc
// @Summary Update time slot
// @Tags TimeSlots
// @Accept json
// @Produce json
// @Param id path string true "Time slot ID"
// @Param payload body service.TimeSlotRequest true "Time slot payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /time-slots/{id} [put]
func (h *RoomHandler) UpdateTimeSlot(c *gin.Context) {
	var req service.TimeSlotRequest
	if !bindJSON(c, &req, "invalid time slot payload") {
		return
	}
	slot, err := h.service.UpdateTimeSlot(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// DeleteTimeSlot godoc
// @Summary Delete time slot
// @Tags TimeSlots
// @Param id path string true "Time slot ID"
// @Success 204
// @Security BearerAuth
// @Router /time-slots/{id} [delete]
func (h *RoomHandler) DeleteTimeSlot(c *gin.Context) {
	if err := h.service.DeleteTimeSlot(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
