package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dat-nglt/cusc-schedule/internal/models"
)

var roomTable = tableSpec{
	name:          "rooms",
	columns:       "id, code, name, capacity, room_type, created_at, updated_at",
	searchColumns: []string{"code", "name"},
	sorts:         map[string]bool{"code": true, "capacity": true, "room_type": true},
	defaultSort:   "code",
}

var timeSlotTable = tableSpec{
	name:        "time_slots",
	columns:     "id, code, start_time, end_time, created_at, updated_at",
	sorts:       map[string]bool{"code": true, "start_time": true},
	defaultSort: "start_time",
}

// RoomRepository manages rooms and time slots, the two hard-deleted
// scheduling resources.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs the repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// ListRooms returns rooms matching the filter.
func (r *RoomRepository) ListRooms(ctx context.Context, filter models.AcademicFilter) ([]models.Room, int, error) {
	var items []models.Room
	total, err := roomTable.list(ctx, r.db, filter, &items)
	return items, total, err
}

// FindRoom returns a room by ID.
func (r *RoomRepository) FindRoom(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	if err := roomTable.get(ctx, r.db, id, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// CreateRoom inserts a room.
func (r *RoomRepository) CreateRoom(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	stamp(&room.CreatedAt, &room.UpdatedAt)
	return roomTable.exec(ctx, r.db, "create", `INSERT INTO rooms (id, code, name, capacity, room_type, created_at, updated_at) VALUES (:id, :code, :name, :capacity, :room_type, :created_at, :updated_at)`, room)
}

// UpdateRoom modifies a room.
func (r *RoomRepository) UpdateRoom(ctx context.Context, room *models.Room) error {
	stamp(nil, &room.UpdatedAt)
	return roomTable.exec(ctx, r.db, "update", `UPDATE rooms SET code = :code, name = :name, capacity = :capacity, room_type = :room_type, updated_at = :updated_at WHERE id = :id`, room)
}

// DeleteRoom removes a room; schedules keep existing with a NULL room.
func (r *RoomRepository) DeleteRoom(ctx context.Context, id string) error {
	return roomTable.remove(ctx, r.db, id)
}

// ListTimeSlots returns every time slot ordered by start time.
func (r *RoomRepository) ListTimeSlots(ctx context.Context, filter models.AcademicFilter) ([]models.TimeSlot, int, error) {
	var items []models.TimeSlot
	total, err := timeSlotTable.list(ctx, r.db, filter, &items)
	return items, total, err
}

// FindTimeSlot returns a time slot by ID.
func (r *RoomRepository) FindTimeSlot(ctx context.Context, id string) (*models.TimeSlot, error) {
	var slot models.TimeSlot
	if err := timeSlotTable.get(ctx, r.db, id, &slot); err != nil {
		return nil, err
	}
	return &slot, nil
}

// CreateTimeSlot inserts a time slot.
func (r *RoomRepository) CreateTimeSlot(ctx context.Context, slot *models.TimeSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	stamp(&slot.CreatedAt, &slot.UpdatedAt)
	return timeSlotTable.exec(ctx, r.db, "create", `INSERT INTO time_slots (id, code, start_time, end_time, created_at, updated_at) VALUES (:id, :code, :start_time, :end_time, :created_at, :updated_at)`, slot)
}

// UpdateTimeSlot modifies a time slot.
func (r *RoomRepository) UpdateTimeSlot(ctx context.Context, slot *models.TimeSlot) error {
	stamp(nil, &slot.UpdatedAt)
	return timeSlotTable.exec(ctx, r.db, "update", `UPDATE time_slots SET code = :code, start_time = :start_time, end_time = :end_time, updated_at = :updated_at WHERE id = :id`, slot)
}

// DeleteTimeSlot removes a time slot; schedules keep existing with a NULL slot.
func (r *RoomRepository) DeleteTimeSlot(ctx context.Context, id string) error {
	return timeSlotTable.remove(ctx, r.db, id)
}
