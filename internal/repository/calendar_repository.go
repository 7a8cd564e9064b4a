package repository

import (
	"lms_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type CalendarRepository struct {
	DB *gorm.DB
}

func NewCalendarRepository(db *gorm.DB) *CalendarRepository {
	return &CalendarRepository{DB: db}
}

func (r *CalendarRepository) Create(e *model.CalendarEvent) error {
	return r.DB.Create(e).Error
}

func (r *CalendarRepository) FindByID(id uint) (*model.CalendarEvent, error) {
	var e model.CalendarEvent
	err := r.DB.First(&e, id).Error
	return &e, err
}

func (r *CalendarRepository) Update(e *model.CalendarEvent) error {
	return r.DB.Save(e).Error
}

func (r *CalendarRepository) Delete(id uint) error {
	return r.DB.Delete(&model.CalendarEvent{}, id).Error
}

// ListOverlapping 与 [from, to] 区间有交集的事件；batchIDs 非 nil 时只返回这些批次和全局事件
func (r *CalendarRepository) ListOverlapping(from, to time.Time, batchIDs []uint) ([]model.CalendarEvent, error) {
	var es []model.CalendarEvent
	query := r.DB.Where("start_at <= ? AND end_at >= ?", to, from)
	if batchIDs != nil {
		if len(batchIDs) == 0 {
			query = query.Where("batch_id IS NULL")
		} else {
			query = query.Where("batch_id IS NULL OR batch_id IN ?", batchIDs)
		}
	}
	err := query.Order("start_at asc").Find(&es).Error
	return es, err
}
