package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dat-nglt/cusc-schedule/internal/models"
	"github.com/dat-nglt/cusc-schedule/internal/repository"
	appErrors "github.com/dat-nglt/cusc-schedule/pkg/errors"
)

var uniqueViolation = &pq.Error{Code: "23505", Constraint: "uq_programs_code"}

type stubProgramRepo struct {
	items map[string]*models.Program
}

func (r *stubProgramRepo) List(context.Context, models.AcademicFilter) ([]models.Program, int, error) {
	var out []models.Program
	for _, p := range r.items {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (r *stubProgramRepo) FindByID(_ context.Context, id string) (*models.Program, error) {
	if p, ok := r.items[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (r *stubProgramRepo) Create(_ context.Context, p *models.Program) error {
	for _, existing := range r.items {
		if existing.Code == p.Code {
			return uniqueViolation
		}
	}
	p.ID = fmt.Sprintf("p-%d", len(r.items)+1)
	cp := *p
	r.items[p.ID] = &cp
	return nil
}

func (r *stubProgramRepo) Update(_ context.Context, p *models.Program) error {
	if _, ok := r.items[p.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *p
	r.items[p.ID] = &cp
	return nil
}

func (r *stubProgramRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.items, id)
	return nil
}

func TestProgramServiceLifecycle(t *testing.T) {
	repo := &stubProgramRepo{items: map[string]*models.Program{}}
	svc := NewProgramService(repo, nil, nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, ProgramRequest{Code: " SE ", Name: "Software Engineering", DurationYears: 4})
	require.NoError(t, err)
	assert.Equal(t, "SE", p.Code)

	_, err = svc.Create(ctx, ProgramRequest{Code: "SE", Name: "Dup", DurationYears: 4})
	assert.Equal(t, 409, appErrors.FromError(err).Status)

	_, err = svc.Create(ctx, ProgramRequest{Code: "X", Name: "Too long", DurationYears: 11})
	assert.Equal(t, 400, appErrors.FromError(err).Status)

	updated, err := svc.Update(ctx, p.ID, ProgramRequest{Code: "SE", Name: "Software Eng.", DurationYears: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.DurationYears)

	require.NoError(t, svc.Delete(ctx, p.ID))
	assert.Equal(t, 404, appErrors.FromError(svc.Delete(ctx, p.ID)).Status)
	_, err = svc.Update(ctx, p.ID, ProgramRequest{Code: "SE", Name: "n", DurationYears: 3})
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}

type stubSemesterRepo struct {
	programs map[string]bool
	created  []models.Semester
}

func (r *stubSemesterRepo) List(context.Context, models.AcademicFilter) ([]models.Semester, int, error) {
	return r.created, len(r.created), nil
}
func (r *stubSemesterRepo) FindByID(context.Context, string) (*models.Semester, error) {
	return nil, sql.ErrNoRows
}
func (r *stubSemesterRepo) Create(_ context.Context, s *models.Semester) error {
	if !r.programs[s.ProgramID] {
		return &pq.Error{Code: "23503"}
	}
	r.created = append(r.created, *s)
	return nil
}
func (r *stubSemesterRepo) Update(context.Context, *models.Semester) error { return sql.ErrNoRows }
func (r *stubSemesterRepo) Delete(context.Context, string) error           { return sql.ErrNoRows }

func TestSemesterServiceValidatesDatesAndParent(t *testing.T) {
	program := "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
	repo := &stubSemesterRepo{programs: map[string]bool{program: true}}
	svc := NewSemesterService(repo, nil, nil)
	start := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Create(context.Background(), SemesterRequest{ProgramID: program, Code: "HK1", Name: "Fall", StartDate: start, EndDate: start.AddDate(0, 0, -1)})
	appErr := appErrors.FromError(err)
	assert.Equal(t, 400, appErr.Status)
	assert.Contains(t, appErr.Fields, "end_date")

	_, err = svc.Create(context.Background(), SemesterRequest{ProgramID: "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb", Code: "HK1", Name: "Fall", StartDate: start, EndDate: start.AddDate(0, 4, 0)})
	appErr = appErrors.FromError(err)
	assert.Equal(t, 400, appErr.Status)
	assert.Equal(t, "referenced row does not exist", appErr.Message)

	sem, err := svc.Create(context.Background(), SemesterRequest{ProgramID: program, Code: "HK1", Name: "Fall", StartDate: start, EndDate: start.AddDate(0, 4, 0)})
	require.NoError(t, err)
	assert.Equal(t, program, sem.ProgramID)

	_, err = svc.Get(context.Background(), "deleted")
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}

type stubRoomRepo struct {
	slots []models.TimeSlot
}

func (r *stubRoomRepo) ListRooms(context.Context, models.AcademicFilter) ([]models.Room, int, error) {
	return nil, 0, nil
}
func (r *stubRoomRepo) FindRoom(context.Context, string) (*models.Room, error) {
	return nil, sql.ErrNoRows
}
func (r *stubRoomRepo) CreateRoom(context.Context, *models.Room) error { return nil }
func (r *stubRoomRepo) UpdateRoom(context.Context, *models.Room) error { return nil }
func (r *stubRoomRepo) DeleteRoom(context.Context, string) error       { return sql.ErrNoRows }
func (r *stubRoomRepo) ListTimeSlots(context.Context, models.AcademicFilter) ([]models.TimeSlot, int, error) {
	return r.slots, len(r.slots), nil
}
func (r *stubRoomRepo) FindTimeSlot(context.Context, string) (*models.TimeSlot, error) {
	return nil, sql.ErrNoRows
}
func (r *stubRoomRepo) CreateTimeSlot(_ context.Context, slot *models.TimeSlot) error {
	r.slots = append(r.slots, *slot)
	return nil
}
func (r *stubRoomRepo) UpdateTimeSlot(context.Context, *models.TimeSlot) error { return nil }
func (r *stubRoomRepo) DeleteTimeSlot(context.Context, string) error           { return nil }

func TestRoomServiceTimeSlots(t *testing.T) {
	repo := &stubRoomRepo{}
	svc := NewRoomService(repo, nil, nil)

	slot, err := svc.CreateTimeSlot(context.Background(), TimeSlotRequest{Code: "S1", StartTime: "07:00", EndTime: "09:30:00"})
	require.NoError(t, err)
	assert.Equal(t, "07:00:00", slot.StartTime)
	assert.Equal(t, "09:30:00", slot.EndTime)

	_, err = svc.CreateTimeSlot(context.Background(), TimeSlotRequest{Code: "S2", StartTime: "10:00", EndTime: "09:00"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, 400, appErr.Status)
	assert.Equal(t, "must be after start_time", appErr.Fields["end_time"])

	_, err = svc.CreateTimeSlot(context.Background(), TimeSlotRequest{Code: "S3", StartTime: "7am", EndTime: "09:00"})
	assert.Contains(t, appErrors.FromError(err).Fields, "start_time")
	assert.Len(t, repo.slots, 1)

	_, err = svc.CreateRoom(context.Background(), RoomRequest{Code: "A1", Name: "Hall", Capacity: 10, RoomType: "kitchen"})
	assert.Equal(t, 400, appErrors.FromError(err).Status)
	assert.Equal(t, 404, appErrors.FromError(svc.DeleteRoom(context.Background(), "missing")).Status)
}

type stubClassScheduleRepo struct {
	stored  []models.ClassSchedule
	busy    map[string]bool // lecturer|slot|weekday
	bulk    [][]models.ClassSchedule
	deleted map[string]bool // soft-deleted class, subject or lecturer ids
}

func (r *stubClassScheduleRepo) LiveReferences(_ context.Context, classID, subjectID string, lecturerID *string) (repository.ScheduleReferences, error) {
	return repository.ScheduleReferences{
		Class:    !r.deleted[classID],
		Subject:  !r.deleted[subjectID],
		Lecturer: lecturerID == nil || !r.deleted[*lecturerID],
	}, nil
}

func (r *stubClassScheduleRepo) LecturerBusy(_ context.Context, q repository.SlotQuery) (bool, error) {
	return r.busy[fmt.Sprintf("%s|%s|%d", q.LecturerID, q.TimeSlotID, models.ISOWeekday(q.Date))], nil
}

func (r *stubClassScheduleRepo) LecturerDoubleBooked(_ context.Context, q repository.SlotQuery) (bool, error) {
	for _, s := range r.stored {
		if s.ID != q.ExcludeID && s.Status == models.ClassScheduleScheduled && *s.LecturerID == q.LecturerID &&
			*s.TimeSlotID == q.TimeSlotID && s.ScheduleDate.Equal(q.Date) {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubClassScheduleRepo) List(context.Context, models.ClassScheduleFilter) ([]models.ClassSchedule, int, error) {
	return r.stored, len(r.stored), nil
}

func (r *stubClassScheduleRepo) FindByID(_ context.Context, id string) (*models.ClassSchedule, error) {
	for _, s := range r.stored {
		if s.ID == id {
			cp := s
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *stubClassScheduleRepo) Create(_ context.Context, s *models.ClassSchedule) error {
	s.ID = fmt.Sprintf("cs-%d", len(r.stored)+1)
	r.stored = append(r.stored, *s)
	return nil
}

func (r *stubClassScheduleRepo) BulkCreate(_ context.Context, items []models.ClassSchedule) error {
	r.bulk = append(r.bulk, items)
	return nil
}

func (r *stubClassScheduleRepo) Update(_ context.Context, s *models.ClassSchedule) error {
	for i := range r.stored {
		if r.stored[i].ID == s.ID {
			r.stored[i] = *s
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *stubClassScheduleRepo) Delete(context.Context, string) error { return sql.ErrNoRows }

func scheduleRequest(lecturer, slot string, date time.Time) ClassScheduleRequest {
	return ClassScheduleRequest{
		ClassID:      "cccccccc-cccc-cccc-cccc-cccccccccccc",
		SubjectID:    "dddddddd-dddd-dddd-dddd-dddddddddddd",
		LecturerID:   &lecturer,
		TimeSlotID:   &slot,
		ScheduleDate: date,
	}
}

func TestClassScheduleRejectsBusyAndDoubleBooked(t *testing.T) {
	monday := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	repo := &stubClassScheduleRepo{busy: map[string]bool{lecturerA + "|" + slotID + "|2": true}}
	svc := NewClassScheduleService(repo, nil, nil)
	ctx := context.Background()

	first, err := svc.Create(ctx, scheduleRequest(lecturerA, slotID, monday.Add(9*time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, monday, first.ScheduleDate)
	assert.Equal(t, models.ClassScheduleScheduled, first.Status)

	_, err = svc.Create(ctx, scheduleRequest(lecturerA, slotID, monday))
	assert.Equal(t, 409, appErrors.FromError(err).Status)

	_, err = svc.Create(ctx, scheduleRequest(lecturerA, slotID, monday.AddDate(0, 0, 1)))
	appErr := appErrors.FromError(err)
	assert.Equal(t, 409, appErr.Status)
	assert.Equal(t, "lecturer is busy in that slot", appErr.Message)

	// Editing a schedule does not collide with itself.
	req := scheduleRequest(lecturerA, slotID, monday)
	note := "moved to lab"
	req.Note = &note
	_, err = svc.Update(ctx, first.ID, req)
	require.NoError(t, err)

	canceled := scheduleRequest(lecturerA, slotID, monday)
	canceled.Status = models.ClassScheduleCanceled
	_, err = svc.Create(ctx, canceled)
	assert.NoError(t, err)
}

func TestClassScheduleBulkCreate(t *testing.T) {
	monday := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	repo := &stubClassScheduleRepo{busy: map[string]bool{}}
	svc := NewClassScheduleService(repo, nil, nil)
	items := []ClassScheduleRequest{
		scheduleRequest(lecturerA, slotID, monday),
		scheduleRequest(lecturerA, slotID, monday),
		scheduleRequest(lecturerB, slotID, monday),
	}

	_, err := svc.BulkCreate(context.Background(), BulkClassScheduleRequest{Items: items})
	assert.Equal(t, 409, appErrors.FromError(err).Status)
	assert.Empty(t, repo.bulk)

	res, err := svc.BulkCreate(context.Background(), BulkClassScheduleRequest{Items: items, PartialOnError: true})
	require.NoError(t, err)
	assert.Len(t, res.Created, 2)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, 1, res.Conflicts[0].Index)
	assert.Equal(t, conflictBooked, res.Conflicts[0].Dimension)
	require.Len(t, repo.bulk, 1)

	_, err = svc.BulkCreate(context.Background(), BulkClassScheduleRequest{})
	assert.Equal(t, 400, appErrors.FromError(err).Status)
}

func TestClassScheduleRejectsDeletedReferences(t *testing.T) {
	monday := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	repo := &stubClassScheduleRepo{busy: map[string]bool{}, deleted: map[string]bool{}}
	svc := NewClassScheduleService(repo, nil, nil)
	ctx := context.Background()

	first, err := svc.Create(ctx, scheduleRequest(lecturerA, slotID, monday))
	require.NoError(t, err)

	req := scheduleRequest(lecturerA, slotID, monday.AddDate(0, 0, 7))
	repo.deleted[req.ClassID] = true
	_, err = svc.Create(ctx, req)
	appErr := appErrors.FromError(err)
	assert.Equal(t, 400, appErr.Status)
	assert.Equal(t, "class not found", appErr.Fields["class_id"])

	_, err = svc.Update(ctx, first.ID, req)
	assert.Equal(t, 400, appErrors.FromError(err).Status)

	delete(repo.deleted, req.ClassID)
	repo.deleted[lecturerB] = true
	_, err = svc.BulkCreate(ctx, BulkClassScheduleRequest{Items: []ClassScheduleRequest{
		req,
		scheduleRequest(lecturerB, slotID, monday),
	}, PartialOnError: true})
	appErr = appErrors.FromError(err)
	assert.Equal(t, 400, appErr.Status)
	assert.Equal(t, "lecturer not found", appErr.Fields["items[1].lecturer_id"])
	assert.Empty(t, repo.bulk)
	assert.Len(t, repo.stored, 1)
}

func TestClassScheduleListRejectsInvertedRange(t *testing.T) {
	svc := NewClassScheduleService(&stubClassScheduleRepo{}, nil, nil)
	from := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, -1)
	_, _, err := svc.List(context.Background(), models.ClassScheduleFilter{From: &from, To: &to})
	assert.Equal(t, 400, appErrors.FromError(err).Status)
}

type stubAssignments struct {
	pairs map[string]bool
}

func (r *stubAssignments) ListByLecturer(context.Context, string) ([]models.LecturerAssignment, error) {
	return nil, nil
}
func (r *stubAssignments) Exists(_ context.Context, lecturerID, subjectID string) (bool, error) {
	return r.pairs[lecturerID+subjectID], nil
}
func (r *stubAssignments) Create(_ context.Context, a *models.LecturerAssignment) error {
	r.pairs[a.LecturerID+a.SubjectID] = true
	return nil
}
func (r *stubAssignments) Delete(_ context.Context, lecturerID, subjectID string) error {
	if !r.pairs[lecturerID+subjectID] {
		return sql.ErrNoRows
	}
	delete(r.pairs, lecturerID+subjectID)
	return nil
}

type stubBusySlots struct {
	weekly map[string]bool
}

func (r *stubBusySlots) ListWeekly(context.Context, string) ([]models.BusySlot, error) {
	return nil, nil
}
func (r *stubBusySlots) CreateWeekly(_ context.Context, slot *models.BusySlot) error {
	key := fmt.Sprintf("%s|%s|%d", slot.LecturerID, slot.TimeSlotID, slot.DayOfWeek)
	if r.weekly[key] {
		return &pq.Error{Code: "23505", Constraint: "uq_busy_slots_lecturer_id_time_slot_id_day_of_week"}
	}
	r.weekly[key] = true
	return nil
}
func (r *stubBusySlots) DeleteWeekly(context.Context, string, string) error { return sql.ErrNoRows }
func (r *stubBusySlots) ListDated(context.Context, string, string) ([]models.SemesterBusySlot, error) {
	return nil, nil
}
func (r *stubBusySlots) CreateDated(context.Context, *models.SemesterBusySlot) error { return nil }
func (r *stubBusySlots) DeleteDated(context.Context, string, string) error           { return nil }

type stubAccountReader map[string]models.Role

func (r stubAccountReader) FindByID(_ context.Context, id string) (*models.Account, error) {
	role, ok := r[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.Account{ID: id, Role: role}, nil
}

func TestLecturerServiceAssignments(t *testing.T) {
	subject := "dddddddd-dddd-dddd-dddd-dddddddddddd"
	accounts := stubAccountReader{lecturerA: models.RoleLecturer, "stu": models.RoleStudent}
	svc := NewLecturerService(accounts, &stubAssignments{pairs: map[string]bool{}}, &stubBusySlots{weekly: map[string]bool{}}, nil, nil)
	ctx := context.Background()

	_, err := svc.Assign(ctx, lecturerA, AssignSubjectRequest{SubjectID: subject})
	require.NoError(t, err)
	_, err = svc.Assign(ctx, lecturerA, AssignSubjectRequest{SubjectID: subject})
	assert.Equal(t, 409, appErrors.FromError(err).Status)
	_, err = svc.Assign(ctx, "stu", AssignSubjectRequest{SubjectID: subject})
	assert.Equal(t, 404, appErrors.FromError(err).Status)

	require.NoError(t, svc.Unassign(ctx, lecturerA, subject))
	assert.Equal(t, 404, appErrors.FromError(svc.Unassign(ctx, lecturerA, subject)).Status)
}

func TestLecturerServiceBusySlots(t *testing.T) {
	svc := NewLecturerService(stubAccountReader{}, &stubAssignments{}, &stubBusySlots{weekly: map[string]bool{}}, nil, nil)
	ctx := context.Background()

	_, err := svc.AddBusySlot(ctx, lecturerA, BusySlotRequest{TimeSlotID: slotID, DayOfWeek: 3})
	require.NoError(t, err)
	_, err = svc.AddBusySlot(ctx, lecturerA, BusySlotRequest{TimeSlotID: slotID, DayOfWeek: 3})
	assert.Equal(t, 409, appErrors.FromError(err).Status)
	_, err = svc.AddBusySlot(ctx, lecturerA, BusySlotRequest{TimeSlotID: slotID, DayOfWeek: 8})
	assert.Equal(t, 400, appErrors.FromError(err).Status)
	assert.Equal(t, 404, appErrors.FromError(svc.RemoveBusySlot(ctx, lecturerA, "x")).Status)
}
