package service

import (
	"encoding/json"
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type AssessmentService struct {
	Repo          *repository.AssessmentRepository
	ProctorRepo   *repository.ProctorRepository
	CourseService *CourseService
}

func NewAssessmentService(repo *repository.AssessmentRepository, proctorRepo *repository.ProctorRepository, courseService *CourseService) *AssessmentService {
	return &AssessmentService{
		Repo:          repo,
		ProctorRepo:   proctorRepo,
		CourseService: courseService,
	}
}

// swagger:model AssessmentRequest
type AssessmentRequest struct {
	LectureID    *uint   `json:"lectureId"`
	Title        string  `json:"title" binding:"required"`
	Description  string  `json:"description"`
	TimeLimit    int     `json:"timeLimit" binding:"min=0"`
	MaxAttempts  *int    `json:"maxAttempts" binding:"omitempty,min=0"`
	PassingScore float64 `json:"passingScore" binding:"min=0,max=100"`
}

// swagger:model QuestionInput
type QuestionInput struct {
	QuestionType string   `json:"questionType" binding:"required"`
	Content      string   `json:"content" binding:"required"`
	Options      []string `json:"options"`
	Answer       string   `json:"answer"`
	Points       int      `json:"points"`
	Order        int      `json:"order"`
	Explanation  string   `json:"explanation"`
}

// swagger:model GradeOverrideRequest
type GradeOverrideRequest struct {
	Score    int    `json:"score" binding:"min=0"`
	Feedback string `json:"feedback"`
}

func (s *AssessmentService) ListAssessments(page, limit int, filter repository.AssessmentFilter) ([]model.Assessment, int64, error) {
	return s.Repo.ListAssessments(page, limit, filter)
}

func (s *AssessmentService) GetAssessment(id uint) (*model.Assessment, error) {
	a, err := s.find(id)
	if err != nil {
		return nil, err
	}
	qs, err := s.Repo.ListQuestions(id)
	if err != nil {
		return nil, err
	}
	a.Questions = qs
	return a, nil
}

func (s *AssessmentService) CreateAssessment(actor Actor, req AssessmentRequest) (*model.Assessment, error) {
	if req.LectureID != nil {
		if err := s.CourseService.CanEditLecture(actor, *req.LectureID); err != nil {
			return nil, err
		}
	}
	a := &model.Assessment{
		LectureID:    req.LectureID,
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		TimeLimit:    req.TimeLimit,
		MaxAttempts:  1,
		PassingScore: req.PassingScore,
		CreatedBy:    actor.UserID,
	}
	if req.MaxAttempts != nil {
		a.MaxAttempts = *req.MaxAttempts
	}
	if req.PassingScore == 0 {
		a.PassingScore = 50
	}
	if err := s.Repo.CreateAssessment(a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AssessmentService) UpdateAssessment(actor Actor, id uint, req AssessmentRequest) (*model.Assessment, error) {
	a, err := s.Editable(actor, id)
	if err != nil {
		return nil, err
	}
	if req.LectureID != nil && (a.LectureID == nil || *a.LectureID != *req.LectureID) {
		if err := s.CourseService.CanEditLecture(actor, *req.LectureID); err != nil {
			return nil, err
		}
		a.LectureID = req.LectureID
	}
	a.Title = strings.TrimSpace(req.Title)
	a.Description = req.Description
	a.TimeLimit = req.TimeLimit
	if req.MaxAttempts != nil {
		a.MaxAttempts = *req.MaxAttempts
	}
	if req.PassingScore > 0 {
		a.PassingScore = req.PassingScore
	}
	return a, s.Repo.UpdateAssessment(a)
}

func (s *AssessmentService) DeleteAssessment(actor Actor, id uint) error {
	if _, err := s.Editable(actor, id); err != nil {
		return err
	}
	return s.Repo.DeleteAssessment(id)
}

// SetPublished 发布前至少需要一道题
func (s *AssessmentService) SetPublished(actor Actor, id uint, published bool) (*model.Assessment, error) {
	a, err := s.Editable(actor, id)
	if err != nil {
		return nil, err
	}
	if published {
		qs, err := s.Repo.ListQuestions(id)
		if err != nil {
			return nil, err
		}
		if len(qs) == 0 {
			return nil, fmt.Errorf("%w: assessment has no questions", util.ErrInvalidQuestion)
		}
	}
	a.IsPublished = published
	return a, s.Repo.UpdateAssessment(a)
}

// Questions

func (s *AssessmentService) CreateQuestion(actor Actor, assessmentID uint, in QuestionInput) (*model.AssessmentQuestion, error) {
	if _, err := s.Editable(actor, assessmentID); err != nil {
		return nil, err
	}
	q, err := BuildQuestion(assessmentID, in)
	if err != nil {
		return nil, err
	}
	return q, s.Repo.CreateQuestion(q)
}

func (s *AssessmentService) UpdateQuestion(actor Actor, id uint, in QuestionInput) (*model.AssessmentQuestion, error) {
	existing, err := s.Repo.FindQuestionByID(id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	if _, err := s.Editable(actor, existing.AssessmentID); err != nil {
		return nil, err
	}
	q, err := BuildQuestion(existing.AssessmentID, in)
	if err != nil {
		return nil, err
	}
	q.BaseModel = existing.BaseModel
	return q, s.Repo.UpdateQuestion(q)
}

func (s *AssessmentService) DeleteQuestion(actor Actor, id uint) error {
	q, err := s.Repo.FindQuestionByID(id)
	if err != nil {
		if repository.IsNotFound(err) {
			return util.ErrNotFound
		}
		return err
	}
	if _, err := s.Editable(actor, q.AssessmentID); err != nil {
		return err
	}
	return s.Repo.DeleteQuestion(id)
}

// ReplaceQuestions 整体替换题目，任意一题非法则不做修改
func (s *AssessmentService) ReplaceQuestions(actor Actor, assessmentID uint, inputs []QuestionInput) ([]model.AssessmentQuestion, error) {
	if _, err := s.Editable(actor, assessmentID); err != nil {
		return nil, err
	}
	qs, err := BuildQuestions(assessmentID, inputs)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.ReplaceQuestions(assessmentID, qs); err != nil {
		return nil, err
	}
	return qs, nil
}

// Grades

func (s *AssessmentService) ListGrades(actor Actor, assessmentID uint, page, limit int) ([]model.Grade, int64, error) {
	if _, err := s.Editable(actor, assessmentID); err != nil {
		return nil, 0, err
	}
	return s.Repo.ListGradesByAssessment(assessmentID, page, limit)
}

func (s *AssessmentService) MyGrades(userID uint) ([]model.Grade, error) {
	return s.Repo.ListGradesByUser(userID)
}

func (s *AssessmentService) MyResponses(userID, assessmentID uint) ([]model.AssessmentResponse, error) {
	return s.Repo.ListResponses(userID, assessmentID)
}

// OverrideGrade 人工改分，按及格线重新计算是否通过
func (s *AssessmentService) OverrideGrade(actor Actor, gradeID uint, req GradeOverrideRequest) (*model.Grade, error) {
	g, err := s.Repo.FindGradeByID(gradeID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	a, err := s.Editable(actor, g.AssessmentID)
	if err != nil {
		return nil, err
	}
	if req.Score > g.MaxScore {
		return nil, fmt.Errorf("%w: score must be between 0 and %d", util.ErrValidation, g.MaxScore)
	}

	g.Score = req.Score
	g.Percentage = Percentage(req.Score, g.MaxScore)
	g.Passed = g.Percentage >= a.PassingScore
	g.Feedback = req.Feedback
	g.GradedAt = time.Now()
	if err := s.Repo.OverrideGrade(g, actor.UserID); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *AssessmentService) ListSessions(actor Actor, assessmentID uint, page, limit int) ([]model.AssessmentScreenSession, int64, error) {
	if _, err := s.Editable(actor, assessmentID); err != nil {
		return nil, 0, err
	}
	return s.ProctorRepo.ListSessionsByAssessment(assessmentID, page, limit)
}

// Editable 课时下的测验跟随课程讲师权限，独立测验只有创建者和管理员可以编辑
func (s *AssessmentService) Editable(actor Actor, id uint) (*model.Assessment, error) {
	a, err := s.find(id)
	if err != nil {
		return nil, err
	}
	if actor.Admin {
		return a, nil
	}
	if a.LectureID != nil {
		if err := s.CourseService.CanEditLecture(actor, *a.LectureID); err != nil {
			return nil, err
		}
		return a, nil
	}
	if a.CreatedBy != actor.UserID {
		return nil, util.ErrPermissionDenied
	}
	return a, nil
}

func (s *AssessmentService) find(id uint) (*model.Assessment, error) {
	a, err := s.Repo.FindAssessmentByID(id)
	if repository.IsNotFound(err) {
		return nil, util.ErrNotFound
	}
	return a, err
}

func BuildQuestions(assessmentID uint, inputs []QuestionInput) ([]model.AssessmentQuestion, error) {
	qs := make([]model.AssessmentQuestion, 0, len(inputs))
	for i, in := range inputs {
		if in.Order == 0 {
			in.Order = i + 1
		}
		q, err := BuildQuestion(assessmentID, in)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		qs = append(qs, *q)
	}
	return qs, nil
}

// BuildQuestion 校验并转换为题目模型
func BuildQuestion(assessmentID uint, in QuestionInput) (*model.AssessmentQuestion, error) {
	qType := strings.ToLower(strings.TrimSpace(in.QuestionType))
	if !model.ValidQuestionType(qType) {
		return nil, fmt.Errorf("%w: unknown type %q", util.ErrInvalidQuestion, in.QuestionType)
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", util.ErrInvalidQuestion)
	}
	answer := strings.TrimSpace(in.Answer)

	var options []string
	for _, o := range in.Options {
		if o = strings.TrimSpace(o); o != "" {
			options = append(options, o)
		}
	}

	switch qType {
	case model.QuestionSingleChoice, model.QuestionMultipleChoice:
		if len(options) < 2 {
			return nil, fmt.Errorf("%w: choice questions need at least two options", util.ErrInvalidQuestion)
		}
		if qType == model.QuestionMultipleChoice {
			if choices := ParseChoices(answer); len(choices) > 0 {
				answer = EncodeChoices(choices)
			} else {
				answer = ""
			}
		}
		if answer == "" {
			return nil, fmt.Errorf("%w: answer is required", util.ErrInvalidQuestion)
		}
	case model.QuestionTrueFalse:
		switch strings.ToLower(answer) {
		case "true", "false":
			answer = strings.ToLower(answer)
		default:
			return nil, fmt.Errorf("%w: true_false answer must be true or false", util.ErrInvalidQuestion)
		}
		options = []string{"true", "false"}
	case model.QuestionShortAnswer:
		if answer == "" {
			return nil, fmt.Errorf("%w: answer is required", util.ErrInvalidQuestion)
		}
		options = nil
	}

	points := in.Points
	if points <= 0 {
		points = 1
	}

	q := &model.AssessmentQuestion{
		AssessmentID: assessmentID,
		QuestionType: qType,
		Content:      content,
		Answer:       answer,
		Points:       points,
		Order:        in.Order,
		Explanation:  in.Explanation,
	}
	if options != nil {
		data, err := json.Marshal(options)
		if err != nil {
			return nil, err
		}
		q.Options = datatypes.JSON(data)
	}
	return q, nil
}
