package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dat-nglt/cusc-schedule/internal/models"
	appErrors "github.com/dat-nglt/cusc-schedule/pkg/errors"
)

type roomRepository interface {
	ListRooms(ctx context.Context, filter models.AcademicFilter) ([]models.Room, int, error)
	FindRoom(ctx context.Context, id string) (*models.Room, error)
	CreateRoom(ctx context.Context, room *models.Room) error
	UpdateRoom(ctx context.Context, room *models.Room) error
	DeleteRoom(ctx context.Context, id string) error
	ListTimeSlots(ctx context.Context, filter models.AcademicFilter) ([]models.TimeSlot, int, error)
	FindTimeSlot(ctx context.Context, id string) (*models.TimeSlot, error)
	CreateTimeSlot(ctx context.Context, slot *models.TimeSlot) error
	UpdateTimeSlot(ctx context.Context, slot *models.TimeSlot) error
	DeleteTimeSlot(ctx context.Context, id string) error
}

// RoomRequest creates or replaces a room.
type RoomRequest struct {
	Code     string          `json:"code" validate:"required,max=32"`
	Name     string          `json:"name" validate:"required,max=255"`
	Capacity int             `json:"capacity" validate:"required,min=1"`
	RoomType models.RoomType `json:"room_type" validate:"required,oneof=theory lab hall"`
}

// TimeSlotRequest creates or replaces a time slot. Times accept HH:MM or HH:MM:SS.
type TimeSlotRequest struct {
	Code      string `json:"code" validate:"required,max=32"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// RoomService manages rooms and the time slot catalogue.
type RoomService struct {
	repo      roomRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRoomService constructs RoomService.
func NewRoomService(repo roomRepository, validate *validator.Validate, logger *zap.Logger) *RoomService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomService{repo: repo, validator: validate, logger: logger}
}

// ListRooms returns rooms with pagination metadata.
func (s *RoomService) ListRooms(ctx context.Context, filter models.AcademicFilter) ([]models.Room, *models.Pagination, error) {
	items, total, err := s.repo.ListRooms(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list rooms")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// GetRoom returns a room.
func (s *RoomService) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	room, err := s.repo.FindRoom(ctx, id)
	if err != nil {
		return nil, lookupError(err, "room")
	}
	return room, nil
}

// CreateRoom adds a room.
func (s *RoomService) CreateRoom(ctx context.Context, req RoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid room payload")
	}
	room := &models.Room{Code: strings.TrimSpace(req.Code), Name: strings.TrimSpace(req.Name), Capacity: req.Capacity, RoomType: req.RoomType}
	if err := s.repo.CreateRoom(ctx, room); err != nil {
		return nil, mapWriteError(err, "failed to create room")
	}
	return room, nil
}

// UpdateRoom replaces a room.
func (s *RoomService) UpdateRoom(ctx context.Context, id string, req RoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid room payload")
	}
	room, err := s.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	room.Code = strings.TrimSpace(req.Code)
	room.Name = strings.TrimSpace(req.Name)
	room.Capacity = req.Capacity
	room.RoomType = req.RoomType
	if err := s.repo.UpdateRoom(ctx, room); err != nil {
		return nil, mapWriteError(err, "failed to update room")
	}
	return room, nil
}

// DeleteRoom removes a room; schedules that used it keep a NULL room.
func (s *RoomService) DeleteRoom(ctx context.Context, id string) error {
	if err := s.repo.DeleteRoom(ctx, id); err != nil {
		return lookupError(err, "room")
	}
	return nil
}

// ListTimeSlots returns time slots with pagination metadata.
func (s *RoomService) ListTimeSlots(ctx context.Context, filter models.AcademicFilter) ([]models.TimeSlot, *models.Pagination, error) {
	items, total, err := s.repo.ListTimeSlots(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list time slots")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// GetTimeSlot returns a time slot.
func (s *RoomService) GetTimeSlot(ctx context.Context, id string) (*models.TimeSlot, error) {
	slot, err := s.repo.FindTimeSlot(ctx, id)
	if err != nil {
		return nil, lookupError(err, "time slot")
	}
	return slot, nil
}

// CreateTimeSlot adds a time slot.
func (s *RoomService) CreateTimeSlot(ctx context.Context, req TimeSlotRequest) (*models.TimeSlot, error) {
	start, end, err := s.validateSlot(req)
	if err != nil {
		return nil, err
	}
	slot := &models.TimeSlot{Code: strings.TrimSpace(req.Code), StartTime: start, EndTime: end}
	if err := s.repo.CreateTimeSlot(ctx, slot); err != nil {
		return nil, mapWriteError(err, "failed to create time slot")
	}
	return slot, nil
}

// UpdateTimeSlot replaces a time slot.
func (s *RoomService) UpdateTimeSlot(ctx context.Context, id string, req TimeSlotRequest) (*models.TimeSlot, error) {
	start, end, err := s.validateSlot(req)
	if err != nil {
		return nil, err
	}
	slot, err := s.GetTimeSlot(ctx, id)
	if err != nil {
		return nil, err
	}
	slot.Code = strings.TrimSpace(req.Code)
	slot.StartTime = start
	slot.EndTime = end
	if err := s.repo.UpdateTimeSlot(ctx, slot); err != nil {
		return nil, mapWriteError(err, "failed to update time slot")
	}
	return slot, nil
}

// DeleteTimeSlot removes a time slot; schedules keep a NULL slot and busy slots cascade.
func (s *RoomService) DeleteTimeSlot(ctx context.Context, id string) error {
	if err := s.repo.DeleteTimeSlot(ctx, id); err != nil {
		return lookupError(err, "time slot")
	}
	return nil
}

func (s *RoomService) validateSlot(req TimeSlotRequest) (string, string, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", "", appErrors.FromValidation(err, "invalid time slot payload")
	}
	start, okStart := parseClock(req.StartTime)
	end, okEnd := parseClock(req.EndTime)
	fields := map[string]string{}
	if !okStart {
		fields["start_time"] = "must be HH:MM or HH:MM:SS"
	}
	if !okEnd {
		fields["end_time"] = "must be HH:MM or HH:MM:SS"
	}
	if okStart && okEnd && !end.After(start) {
		fields["end_time"] = "must be after start_time"
	}
	if len(fields) > 0 {
		return "", "", appErrors.WithFields(appErrors.ErrValidation, fields)
	}
	return start.Format("15:04:05"), end.Format("15:04:05"), nil
}

func parseClock(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
