package model

import "time"

// swagger:model Batch
type Batch struct {
	BaseModel
	Code        string      `gorm:"size:50;not null;index" json:"code"`
	Location    string      `gorm:"size:100;not null" json:"location"`
	StartDate   time.Time   `gorm:"type:date;not null" json:"startDate"`
	EndDate     time.Time   `gorm:"type:date;not null" json:"endDate"`
	Description string      `gorm:"type:text" json:"description"`
	Trainees    []User      `gorm:"many2many:batch_trainees;" json:"trainees,omitempty"`
	Curriculum  *Curriculum `gorm:"constraint:OnDelete:CASCADE;" json:"curriculum,omitempty"`
}

func (Batch) TableName() string {
	return "batches"
}

type Curriculum struct {
	BaseModel
	BatchID     uint      `gorm:"uniqueIndex;not null" json:"batchId"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Quarters    []Quarter `gorm:"constraint:OnDelete:CASCADE;" json:"quarters,omitempty"`
	Courses     []Course  `gorm:"many2many:curriculum_courses;" json:"courses,omitempty"`
}

func (Curriculum) TableName() string {
	return "curriculums"
}

const MaxQuarters = 4

type Quarter struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CurriculumID uint      `gorm:"not null;uniqueIndex:idx_quarter_number,priority:1" json:"curriculumId"`
	Number       int       `gorm:"not null;uniqueIndex:idx_quarter_number,priority:2" json:"number"`
	StartDate    time.Time `gorm:"type:date;not null" json:"startDate"`
	EndDate      time.Time `gorm:"type:date;not null" json:"endDate"`
}

func (Quarter) TableName() string {
	return "quarters"
}
