package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	QuestionSingleChoice   = "single_choice"
	QuestionMultipleChoice = "multiple_choice"
	QuestionTrueFalse      = "true_false"
	QuestionShortAnswer    = "short_answer"
)

func ValidQuestionType(t string) bool {
	switch t {
	case QuestionSingleChoice, QuestionMultipleChoice, QuestionTrueFalse, QuestionShortAnswer:
		return true
	}
	return false
}

// swagger:model Assessment
type Assessment struct {
	BaseModel
	LectureID    *uint                `gorm:"index" json:"lectureId,omitempty"`
	Title        string               `gorm:"size:255;not null" json:"title"`
	Description  string               `gorm:"type:text" json:"description"`
	TimeLimit    int                  `gorm:"default:0" json:"timeLimit"`   // Minutes, 0 = unlimited
	MaxAttempts  int                  `gorm:"default:1" json:"maxAttempts"` // 0 = unlimited
	PassingScore float64              `gorm:"default:50" json:"passingScore"`
	IsPublished  bool                 `gorm:"default:false" json:"isPublished"`
	CreatedBy    uint                 `gorm:"index" json:"createdBy"`
	Questions    []AssessmentQuestion `gorm:"constraint:OnDelete:CASCADE;" json:"questions,omitempty"`
}

func (Assessment) TableName() string {
	return "assessments"
}

// swagger:model AssessmentQuestion
type AssessmentQuestion struct {
	BaseModel
	AssessmentID uint           `gorm:"index;not null" json:"assessmentId"`
	QuestionType string         `gorm:"size:50;not null" json:"questionType"`
	Content      string         `gorm:"type:text;not null" json:"content"`
	Options      datatypes.JSON `gorm:"type:json" json:"options"`
	Answer       string         `gorm:"type:text" json:"answer"`
	Points       int            `gorm:"default:1" json:"points"`
	Order        int            `gorm:"default:0" json:"order"`
	Explanation  string         `gorm:"type:text" json:"explanation"`
}

func (AssessmentQuestion) TableName() string {
	return "assessment_questions"
}

// AssessmentResponse is the latest answer of a user to one question.
type AssessmentResponse struct {
	BaseModel
	UserID       uint   `gorm:"not null;uniqueIndex:idx_response_user_question,priority:1" json:"userId"`
	QuestionID   uint   `gorm:"not null;uniqueIndex:idx_response_user_question,priority:2" json:"questionId"`
	AssessmentID uint   `gorm:"index;not null" json:"assessmentId"`
	SessionID    string `gorm:"size:36;index" json:"sessionId"`
	Answer       string `gorm:"type:text" json:"answer"`
	IsCorrect    bool   `json:"isCorrect"`
	Score        int    `json:"score"`
}

func (AssessmentResponse) TableName() string {
	return "assessment_responses"
}

// Grade is the rolled up result of a user for an assessment.
type Grade struct {
	BaseModel
	UserID       uint       `gorm:"not null;uniqueIndex:idx_grade_user_assessment,priority:1" json:"userId"`
	User         *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	AssessmentID uint       `gorm:"not null;uniqueIndex:idx_grade_user_assessment,priority:2" json:"assessmentId"`
	Score        int        `json:"score"`
	MaxScore     int        `json:"maxScore"`
	Percentage   float64    `json:"percentage"`
	Passed       bool       `json:"passed"`
	Attempts     int        `gorm:"default:0" json:"attempts"`
	Feedback     string     `gorm:"type:text" json:"feedback"`
	Overridden   bool       `gorm:"default:false" json:"overridden"`
	GradedAt     time.Time  `json:"gradedAt"`
	GradedBy     *uint      `json:"gradedBy,omitempty"`
	OverriddenAt *time.Time `json:"overriddenAt,omitempty"`
}

func (Grade) TableName() string {
	return "grades"
}
