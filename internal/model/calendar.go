package model

import "time"

// swagger:model CalendarEvent
type CalendarEvent struct {
	BaseModel
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	StartAt     time.Time `gorm:"index;not null" json:"startAt"`
	EndAt       time.Time `gorm:"index;not null" json:"endAt"`
	BatchID     *uint     `gorm:"index" json:"batchId,omitempty"`
	CourseID    *uint     `gorm:"index" json:"courseId,omitempty"`
	CreatedBy   uint      `json:"createdBy"`
}

func (CalendarEvent) TableName() string {
	return "calendar_events"
}
