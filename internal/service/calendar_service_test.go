package service

import (
	"testing"
	"time"

	"lms_backend/internal/model"
	"lms_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeCalendarStore struct {
	events map[uint]*model.CalendarEvent
	nextID uint
}

func (s *fakeCalendarStore) Create(e *model.CalendarEvent) error {
	s.nextID++
	e.ID = s.nextID
	cp := *e
	s.events[e.ID] = &cp
	return nil
}

func (s *fakeCalendarStore) FindByID(id uint) (*model.CalendarEvent, error) {
	e, ok := s.events[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *fakeCalendarStore) Update(e *model.CalendarEvent) error {
	cp := *e
	s.events[e.ID] = &cp
	return nil
}

func (s *fakeCalendarStore) Delete(id uint) error {
	delete(s.events, id)
	return nil
}

func (s *fakeCalendarStore) ListOverlapping(from, to time.Time, batchIDs []uint) ([]model.CalendarEvent, error) {
	var out []model.CalendarEvent
	for _, e := range s.events {
		if e.StartAt.After(to) || e.EndAt.Before(from) {
			continue
		}
		if batchIDs != nil && e.BatchID != nil && !containsID(batchIDs, *e.BatchID) {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

type fakeBatchLookup struct {
	batches  map[uint]bool
	trainees map[uint][]uint
}

func (b *fakeBatchLookup) FindByID(id uint) (*model.Batch, error) {
	if !b.batches[id] {
		return nil, gorm.ErrRecordNotFound
	}
	return &model.Batch{BaseModel: model.BaseModel{ID: id}}, nil
}

func (b *fakeBatchLookup) BatchIDsForTrainee(userID uint) ([]uint, error) {
	return b.trainees[userID], nil
}

func newCalendarFixture(t *testing.T) (*CalendarService, map[string]uint) {
	t.Helper()
	svc := NewCalendarService(
		&fakeCalendarStore{events: map[uint]*model.CalendarEvent{}},
		&fakeBatchLookup{batches: map[uint]bool{1: true, 2: true}, trainees: map[uint][]uint{traineeID: {1}}},
	)
	trainer := Actor{UserID: 5}
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	ids := map[string]uint{}
	for name, batch := range map[string]*uint{"global": nil, "own": uintPtr(1), "other": uintPtr(2)} {
		e, err := svc.CreateEvent(trainer, CalendarEventRequest{
			Title: name, StartAt: start, EndAt: start.Add(time.Hour), BatchID: batch,
		})
		require.NoError(t, err)
		ids[name] = e.ID
	}
	return svc, ids
}

func uintPtr(v uint) *uint { return &v }

func TestCalendarGetEvent_TraineeVisibility(t *testing.T) {
	svc, ids := newCalendarFixture(t)

	for _, name := range []string{"global", "own"} {
		e, err := svc.GetEvent(traineeID, true, ids[name])
		require.NoError(t, err, name)
		assert.Equal(t, name, e.Title)
	}

	_, err := svc.GetEvent(traineeID, true, ids["other"])
	assert.ErrorIs(t, err, util.ErrNotFound)

	// 讲师和管理员不受批次限制
	e, err := svc.GetEvent(5, false, ids["other"])
	require.NoError(t, err)
	assert.Equal(t, "other", e.Title)

	_, err = svc.GetEvent(traineeID, true, 999)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestCalendarListEvents_TraineeVisibility(t *testing.T) {
	svc, _ := newCalendarFixture(t)
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(31 * 24 * time.Hour)

	events, err := svc.ListEvents(traineeID, true, from, to)
	require.NoError(t, err)
	titles := make([]string, 0, len(events))
	for _, e := range events {
		titles = append(titles, e.Title)
	}
	assert.ElementsMatch(t, []string{"global", "own"}, titles)

	events, err = svc.ListEvents(5, false, from, to)
	require.NoError(t, err)
	assert.Len(t, events, 3)

	_, err = svc.ListEvents(traineeID, true, to, from)
	assert.ErrorIs(t, err, util.ErrInvalidDateRange)
}

func TestCalendarEvent_Validation(t *testing.T) {
	svc, ids := newCalendarFixture(t)
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	_, err := svc.CreateEvent(Actor{UserID: 5}, CalendarEventRequest{Title: "x", StartAt: start, EndAt: start.Add(-time.Minute)})
	assert.ErrorIs(t, err, util.ErrInvalidDateRange)

	_, err = svc.CreateEvent(Actor{UserID: 5}, CalendarEventRequest{Title: "x", StartAt: start, EndAt: start, BatchID: uintPtr(9)})
	assert.ErrorIs(t, err, util.ErrNotFound)

	// 只有创建者或管理员可以修改
	_, err = svc.UpdateEvent(Actor{UserID: 6}, ids["global"], CalendarEventRequest{Title: "y", StartAt: start, EndAt: start})
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
	assert.NoError(t, svc.DeleteEvent(Actor{UserID: 6, Admin: true}, ids["global"]))
}
