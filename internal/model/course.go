package model

// swagger:model Course
type Course struct {
	BaseModel
	Title       string   `gorm:"size:255;not null" json:"title"`
	Description string   `gorm:"type:text" json:"description"`
	Image       string   `gorm:"size:255" json:"image"`
	IsPublished bool     `gorm:"default:false" json:"isPublished"`
	Instructors []User   `gorm:"many2many:course_instructors;" json:"instructors,omitempty"`
	Modules     []Module `gorm:"constraint:OnDelete:CASCADE;" json:"modules,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

// CourseInstructor is the join row between a course and a trainer.
type CourseInstructor struct {
	CourseID uint `gorm:"primaryKey"`
	UserID   uint `gorm:"primaryKey"`
}

func (CourseInstructor) TableName() string {
	return "course_instructors"
}

type Module struct {
	BaseModel
	CourseID    uint      `gorm:"index;not null" json:"courseId"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Order       int       `gorm:"default:0" json:"order"`
	Lectures    []Lecture `gorm:"constraint:OnDelete:CASCADE;" json:"lectures,omitempty"`
}

func (Module) TableName() string {
	return "modules"
}

type Lecture struct {
	BaseModel
	ModuleID    uint         `gorm:"index;not null" json:"moduleId"`
	Title       string       `gorm:"size:255;not null" json:"title"`
	Content     string       `gorm:"type:text" json:"content"`
	VideoURL    string       `gorm:"size:255" json:"videoUrl"`
	Order       int          `gorm:"default:0" json:"order"`
	Resources   []Resource   `gorm:"constraint:OnDelete:CASCADE;" json:"resources,omitempty"`
	Assessments []Assessment `gorm:"constraint:OnDelete:CASCADE;" json:"assessments,omitempty"`
}

func (Lecture) TableName() string {
	return "lectures"
}

type Resource struct {
	BaseModel
	LectureID  uint   `gorm:"index;not null" json:"lectureId"`
	Title      string `gorm:"size:255" json:"title"`
	Kind       string `gorm:"size:20" json:"kind"` // pdf, video, image, document
	FileName   string `gorm:"size:255" json:"fileName"`
	URL        string `gorm:"size:512" json:"url"`
	Size       int64  `json:"size"`
	UploaderID uint   `gorm:"index" json:"uploaderId"`
}

func (Resource) TableName() string {
	return "resources"
}
