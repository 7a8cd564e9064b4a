package repository

import (
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubmissionRecord 一次已评分的提交，由 CompleteSubmission 原子落库
type SubmissionRecord struct {
	SessionID    string
	UserID       uint
	AssessmentID uint
	Trigger      string
	Responses    []model.AssessmentResponse
	Score        int
	MaxScore     int
	Percentage   float64
	Passed       bool
	SubmittedAt  time.Time
}

type ProctorRepository struct {
	DB *gorm.DB
}

func NewProctorRepository(db *gorm.DB) *ProctorRepository {
	return &ProctorRepository{DB: db}
}

func (r *ProctorRepository) FindAssessment(id uint) (*model.Assessment, error) {
	var a model.Assessment
	err := r.DB.First(&a, id).Error
	return &a, err
}

func (r *ProctorRepository) ListQuestions(assessmentID uint) ([]model.AssessmentQuestion, error) {
	var qs []model.AssessmentQuestion
	err := r.DB.Where("assessment_id = ?", assessmentID).Scopes(model.Ordered).Find(&qs).Error
	return qs, err
}

func (r *ProctorRepository) FindGrade(userID, assessmentID uint) (*model.Grade, error) {
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

func (r *ProctorRepository) CreateSession(s *model.AssessmentScreenSession) error {
	return r.DB.Create(s).Error
}

func (r *ProctorRepository) FindSession(id string) (*model.AssessmentScreenSession, error) {
	var s model.AssessmentScreenSession
	err := r.DB.Where("id = ?", id).First(&s).Error
	return &s, err
}

// FindOpenSessions 同一用户同一测验下仍未结束的会话
func (r *ProctorRepository) FindOpenSessions(userID, assessmentID uint) ([]model.AssessmentScreenSession, error) {
	var ss []model.AssessmentScreenSession
	err := r.DB.Where("user_id = ? AND assessment_id = ? AND status IN ?",
		userID, assessmentID, openStatuses()).
		Order("started_at desc").Find(&ss).Error
	return ss, err
}

// TransitionSession 条件更新状态，返回是否命中
func (r *ProctorRepository) TransitionSession(id string, from []model.SessionStatus, to model.SessionStatus) (bool, error) {
	updates := map[string]interface{}{"status": to}
	if !to.Open() {
		updates["ended_at"] = time.Now()
	}
	res := r.DB.Model(&model.AssessmentScreenSession{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

// AddViolation 原子递增违规次数并返回新值
func (r *ProctorRepository) AddViolation(id string) (int, error) {
	var count int
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.AssessmentScreenSession{}).
			Where("id = ? AND status IN ?", id, openStatuses()).
			UpdateColumn("violation_count", gorm.Expr("violation_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return util.ErrSessionClosed
		}
		return tx.Model(&model.AssessmentScreenSession{}).
			Where("id = ?", id).
			Pluck("violation_count", &count).Error
	})
	return count, err
}

// SetRecording 只允许写入一次录屏文件
func (r *ProctorRepository) SetRecording(id, file string, secs float64) (bool, error) {
	res := r.DB.Model(&model.AssessmentScreenSession{}).
		Where("id = ? AND (recording_file = '' OR recording_file IS NULL)", id).
		Updates(map[string]interface{}{"recording_file": file, "recording_secs": secs})
	return res.RowsAffected == 1, res.Error
}

// CompleteSubmission 条件更新会话为 submitted，只有命中的调用方写入答题记录与成绩
func (r *ProctorRepository) CompleteSubmission(rec SubmissionRecord) (*model.Grade, error) {
	var grade model.Grade
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.AssessmentScreenSession{}).
			Where("id = ? AND status IN ?", rec.SessionID, openStatuses()).
			Updates(map[string]interface{}{
				"status":         model.SessionSubmitted,
				"ended_at":       rec.SubmittedAt,
				"submit_trigger": rec.Trigger,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return util.ErrAlreadySubmitted
		}

		// 题目被替换后旧题的答题记录不再属于本次结果
		stale := tx.Unscoped().Where("user_id = ? AND assessment_id = ?", rec.UserID, rec.AssessmentID)
		if len(rec.Responses) > 0 {
			ids := make([]uint, 0, len(rec.Responses))
			for _, resp := range rec.Responses {
				ids = append(ids, resp.QuestionID)
			}
			stale = stale.Where("question_id NOT IN ?", ids)
		}
		if err := stale.Delete(&model.AssessmentResponse{}).Error; err != nil {
			return err
		}

		if len(rec.Responses) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "user_id"}, {Name: "question_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"assessment_id", "session_id", "answer", "is_correct", "score", "updated_at",
				}),
			}).Create(&rec.Responses).Error; err != nil {
				return err
			}
		}

		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND assessment_id = ?", rec.UserID, rec.AssessmentID).
			First(&grade).Error
		switch {
		case IsNotFound(err):
			grade = model.Grade{
				UserID:       rec.UserID,
				AssessmentID: rec.AssessmentID,
				Attempts:     0,
			}
		case err != nil:
			return err
		}

		grade.Score = rec.Score
		grade.MaxScore = rec.MaxScore
		grade.Percentage = rec.Percentage
		grade.Passed = rec.Passed
		grade.Attempts++
		grade.GradedAt = rec.SubmittedAt
		grade.Overridden = false
		grade.OverriddenAt = nil
		grade.GradedBy = nil
		return tx.Omit("User").Save(&grade).Error
	})
	if err != nil {
		return nil, err
	}
	return &grade, nil
}

// ListExpiredSessions 已过截止时间但仍未结束的会话
func (r *ProctorRepository) ListExpiredSessions(now time.Time, limit int) ([]model.AssessmentScreenSession, error) {
	var ss []model.AssessmentScreenSession
	err := r.DB.Where("status IN ? AND deadline_at IS NOT NULL AND deadline_at < ?", openStatuses(), now).
		Order("deadline_at asc").Limit(limit).Find(&ss).Error
	return ss, err
}

// ListStaleSessions 无时间限制且长时间未提交的会话
func (r *ProctorRepository) ListStaleSessions(before time.Time, limit int) ([]model.AssessmentScreenSession, error) {
	var ss []model.AssessmentScreenSession
	err := r.DB.Where("status IN ? AND deadline_at IS NULL AND started_at < ?", openStatuses(), before).
		Order("started_at asc").Limit(limit).Find(&ss).Error
	return ss, err
}

func (r *ProctorRepository) ListSessionsByAssessment(assessmentID uint, page, limit int) ([]model.AssessmentScreenSession, int64, error) {
	var ss []model.AssessmentScreenSession
	var total int64
	query := r.DB.Model(&model.AssessmentScreenSession{}).Where("assessment_id = ?", assessmentID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("started_at desc").Offset(util.Offset(page, limit)).Limit(limit).Find(&ss).Error
	return ss, total, err
}

// ListFlaggedSessions 指定测验中存在违规记录的最近会话
func (r *ProctorRepository) ListFlaggedSessions(assessmentIDs []uint, limit int) ([]model.AssessmentScreenSession, error) {
	var ss []model.AssessmentScreenSession
	if len(assessmentIDs) == 0 {
		return ss, nil
	}
	err := r.DB.Where("assessment_id IN ? AND violation_count > 0", assessmentIDs).
		Order("started_at desc").Limit(limit).Find(&ss).Error
	return ss, err
}

func (r *ProctorRepository) CountOpenSessions() (int64, error) {
	var n int64
	err := r.DB.Model(&model.AssessmentScreenSession{}).Where("status IN ?", openStatuses()).Count(&n).Error
	return n, err
}

func openStatuses() []model.SessionStatus {
	return []model.SessionStatus{model.SessionArmed, model.SessionRecording}
}
