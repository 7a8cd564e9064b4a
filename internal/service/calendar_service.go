package service

import (
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"strings"
	"time"
)

// CalendarStore 由 repository.CalendarRepository 实现
type CalendarStore interface {
	Create(e *model.CalendarEvent) error
	FindByID(id uint) (*model.CalendarEvent, error)
	Update(e *model.CalendarEvent) error
	Delete(id uint) error
	ListOverlapping(from, to time.Time, batchIDs []uint) ([]model.CalendarEvent, error)
}

// BatchLookup 由 repository.BatchRepository 实现
type BatchLookup interface {
	FindByID(id uint) (*model.Batch, error)
	BatchIDsForTrainee(userID uint) ([]uint, error)
}

type CalendarService struct {
	CalendarRepo CalendarStore
	BatchRepo    BatchLookup
}

func NewCalendarService(calendarRepo CalendarStore, batchRepo BatchLookup) *CalendarService {
	return &CalendarService{CalendarRepo: calendarRepo, BatchRepo: batchRepo}
}

// swagger:model CalendarEventRequest
type CalendarEventRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	StartAt     time.Time `json:"startAt" binding:"required"`
	EndAt       time.Time `json:"endAt" binding:"required"`
	BatchID     *uint     `json:"batchId"`
	CourseID    *uint     `json:"courseId"`
}

func (s *CalendarService) CreateEvent(actor Actor, req CalendarEventRequest) (*model.CalendarEvent, error) {
	e := &model.CalendarEvent{CreatedBy: actor.UserID}
	if err := s.apply(e, req); err != nil {
		return nil, err
	}
	return e, s.CalendarRepo.Create(e)
}

func (s *CalendarService) UpdateEvent(actor Actor, id uint, req CalendarEventRequest) (*model.CalendarEvent, error) {
	e, err := s.editable(actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(e, req); err != nil {
		return nil, err
	}
	return e, s.CalendarRepo.Update(e)
}

func (s *CalendarService) DeleteEvent(actor Actor, id uint) error {
	if _, err := s.editable(actor, id); err != nil {
		return err
	}
	return s.CalendarRepo.Delete(id)
}

// GetEvent 学员只能查看全局事件和所在批次的事件，其他批次的事件视为不存在
func (s *CalendarService) GetEvent(userID uint, traineeOnly bool, id uint) (*model.CalendarEvent, error) {
	e, err := s.find(id)
	if err != nil {
		return nil, err
	}
	if !traineeOnly || e.BatchID == nil {
		return e, nil
	}
	ids, err := s.BatchRepo.BatchIDsForTrainee(userID)
	if err != nil {
		return nil, err
	}
	for _, bid := range ids {
		if bid == *e.BatchID {
			return e, nil
		}
	}
	return nil, util.ErrNotFound
}

func (s *CalendarService) find(id uint) (*model.CalendarEvent, error) {
	e, err := s.CalendarRepo.FindByID(id)
	if repository.IsNotFound(err) {
		return nil, util.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListEvents 学员只能看到所在批次和全局事件
func (s *CalendarService) ListEvents(userID uint, traineeOnly bool, from, to time.Time) ([]model.CalendarEvent, error) {
	if to.Before(from) {
		return nil, util.ErrInvalidDateRange
	}
	var batchIDs []uint
	if traineeOnly {
		ids, err := s.BatchRepo.BatchIDsForTrainee(userID)
		if err != nil {
			return nil, err
		}
		batchIDs = append([]uint{}, ids...)
	}
	return s.CalendarRepo.ListOverlapping(from, to, batchIDs)
}

func (s *CalendarService) apply(e *model.CalendarEvent, req CalendarEventRequest) error {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return fmt.Errorf("%w: title is required", util.ErrValidation)
	}
	if req.EndAt.Before(req.StartAt) {
		return util.ErrInvalidDateRange
	}
	if req.BatchID != nil {
		if _, err := s.BatchRepo.FindByID(*req.BatchID); err != nil {
			if repository.IsNotFound(err) {
				return fmt.Errorf("%w: batch %d", util.ErrNotFound, *req.BatchID)
			}
			return err
		}
	}
	e.Title = title
	e.Description = req.Description
	e.StartAt = req.StartAt
	e.EndAt = req.EndAt
	e.BatchID = req.BatchID
	e.CourseID = req.CourseID
	return nil
}

func (s *CalendarService) editable(actor Actor, id uint) (*model.CalendarEvent, error) {
	e, err := s.find(id)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && e.CreatedBy != actor.UserID {
		return nil, util.ErrPermissionDenied
	}
	return e, nil
}
