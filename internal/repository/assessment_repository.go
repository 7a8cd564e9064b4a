package repository

import (
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"time"

	"gorm.io/gorm"
)

type AssessmentRepository struct {
	DB *gorm.DB
}

func NewAssessmentRepository(db *gorm.DB) *AssessmentRepository {
	return &AssessmentRepository{DB: db}
}

type AssessmentFilter struct {
	LectureID *uint
	CourseID  uint
	Published *bool
	CreatedBy uint
}

func (r *AssessmentRepository) CreateAssessment(a *model.Assessment) error {
	return r.DB.Omit("Questions").Create(a).Error
}

func (r *AssessmentRepository) FindAssessmentByID(id uint) (*model.Assessment, error) {
	var a model.Assessment
	err := r.DB.First(&a, id).Error
	return &a, err
}

func (r *AssessmentRepository) ListAssessments(page, limit int, filter AssessmentFilter) ([]model.Assessment, int64, error) {
	var as []model.Assessment
	var total int64

	query := r.DB.Model(&model.Assessment{})
	if filter.LectureID != nil {
		query = query.Where("assessments.lecture_id = ?", *filter.LectureID)
	}
	if filter.CourseID > 0 {
		query = query.Joins("JOIN lectures ON lectures.id = assessments.lecture_id").
			Joins("JOIN modules ON modules.id = lectures.module_id").
			Where("modules.course_id = ?", filter.CourseID)
	}
	if filter.Published != nil {
		query = query.Where("assessments.is_published = ?", *filter.Published)
	}
	if filter.CreatedBy > 0 {
		query = query.Where("assessments.created_by = ?", filter.CreatedBy)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := util.Offset(page, limit)
	err := query.Order("assessments.created_at desc").Offset(offset).Limit(limit).Find(&as).Error
	return as, total, err
}

func (r *AssessmentRepository) UpdateAssessment(a *model.Assessment) error {
	return r.DB.Omit("Questions").Save(a).Error
}

func (r *AssessmentRepository) DeleteAssessment(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		return deleteAssessments(tx, []uint{id})
	})
}

func (r *AssessmentRepository) CountAssessments() (int64, error) {
	var n int64
	err := r.DB.Model(&model.Assessment{}).Count(&n).Error
	return n, err
}

// Questions

func (r *AssessmentRepository) CreateQuestion(q *model.AssessmentQuestion) error {
	return r.DB.Create(q).Error
}

// CreateQuestions 批量写入（AI 出题），失败整体回滚
func (r *AssessmentRepository) CreateQuestions(qs []model.AssessmentQuestion) error {
	if len(qs) == 0 {
		return nil
	}
	return r.DB.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&qs, 50).Error
	})
}

// ReplaceQuestions 删除题库中现有题目后写入新题目
func (r *AssessmentRepository) ReplaceQuestions(assessmentID uint, qs []model.AssessmentQuestion) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("assessment_id = ?", assessmentID).Delete(&model.AssessmentQuestion{}).Error; err != nil {
			return err
		}
		if len(qs) == 0 {
			return nil
		}
		return tx.CreateInBatches(&qs, 50).Error
	})
}

func (r *AssessmentRepository) FindQuestionByID(id uint) (*model.AssessmentQuestion, error) {
	var q model.AssessmentQuestion
	err := r.DB.First(&q, id).Error
	return &q, err
}

func (r *AssessmentRepository) ListQuestions(assessmentID uint) ([]model.AssessmentQuestion, error) {
	var qs []model.AssessmentQuestion
	err := r.DB.Where("assessment_id = ?", assessmentID).Scopes(model.Ordered).Find(&qs).Error
	return qs, err
}

func (r *AssessmentRepository) UpdateQuestion(q *model.AssessmentQuestion) error {
	return r.DB.Save(q).Error
}

func (r *AssessmentRepository) DeleteQuestion(id uint) error {
	return r.DB.Delete(&model.AssessmentQuestion{}, id).Error
}

// Grades

// FindGrade 没有成绩时返回 nil, nil
func (r *AssessmentRepository) FindGrade(userID, assessmentID uint) (*model.Grade, error) {
	var g model.Grade
	err := r.DB.Where("user_id = ? AND assessment_id = ?", userID, assessmentID).First(&g).Error
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *AssessmentRepository) FindGradeByID(id uint) (*model.Grade, error) {
	var g model.Grade
	err := r.DB.First(&g, id).Error
	return &g, err
}

func (r *AssessmentRepository) ListGradesByAssessment(assessmentID uint, page, limit int) ([]model.Grade, int64, error) {
	var gs []model.Grade
	var total int64
	query := r.DB.Model(&model.Grade{}).Where("assessment_id = ?", assessmentID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Preload("User").Order("percentage desc, id asc").
		Offset(util.Offset(page, limit)).Limit(limit).Find(&gs).Error
	return gs, total, err
}

func (r *AssessmentRepository) ListGradesByUser(userID uint) ([]model.Grade, error) {
	var gs []model.Grade
	err := r.DB.Where("user_id = ?", userID).Order("graded_at desc").Find(&gs).Error
	return gs, err
}

func (r *AssessmentRepository) OverrideGrade(g *model.Grade, by uint) error {
	now := time.Now()
	g.Overridden = true
	g.OverriddenAt = &now
	g.GradedBy = &by
	return r.DB.Omit("User").Save(g).Error
}

// ListResponses 只返回仍在题库中的题目的答题记录
func (r *AssessmentRepository) ListResponses(userID, assessmentID uint) ([]model.AssessmentResponse, error) {
	var rs []model.AssessmentResponse
	live := r.DB.Model(&model.AssessmentQuestion{}).Select("id").Where("assessment_id = ?", assessmentID)
	err := r.DB.Where("user_id = ? AND assessment_id = ? AND question_id IN (?)", userID, assessmentID, live).
		Order("question_id asc").Find(&rs).Error
	return rs, err
}

func (r *AssessmentRepository) CountSubmissions(assessmentIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(assessmentIDs))
	if len(assessmentIDs) == 0 {
		return counts, nil
	}
	type row struct {
		AssessmentID uint
		Total        int64
	}
	var rows []row
	err := r.DB.Model(&model.Grade{}).
		Select("assessment_id, COUNT(*) AS total").
		Where("assessment_id IN ?", assessmentIDs).
		Group("assessment_id").Scan(&rows).Error
	for _, r := range rows {
		counts[r.AssessmentID] = r.Total
	}
	return counts, err
}
