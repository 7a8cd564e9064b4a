package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/monitoring"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	// 无时间限制的会话超过该时长未提交则作废
	staleSessionAge = 24 * time.Hour
	sweepBatchSize  = 100
	draftExtraTTL   = time.Hour
	maxRecordingMB  = 500
)

// QuizStore 测验会话的持久化接口，由 repository.ProctorRepository 实现
type QuizStore interface {
	FindAssessment(id uint) (*model.Assessment, error)
	ListQuestions(assessmentID uint) ([]model.AssessmentQuestion, error)
	FindGrade(userID, assessmentID uint) (*model.Grade, error)
	FindOpenSessions(userID, assessmentID uint) ([]model.AssessmentScreenSession, error)
	CreateSession(s *model.AssessmentScreenSession) error
	FindSession(id string) (*model.AssessmentScreenSession, error)
	TransitionSession(id string, from []model.SessionStatus, to model.SessionStatus) (bool, error)
	AddViolation(id string) (int, error)
	SetRecording(id, file string, secs float64) (bool, error)
	CompleteSubmission(rec repository.SubmissionRecord) (*model.Grade, error)
	ListExpiredSessions(now time.Time, limit int) ([]model.AssessmentScreenSession, error)
	ListStaleSessions(before time.Time, limit int) ([]model.AssessmentScreenSession, error)
}

// DraftStore 答题草稿，由 repository.DraftRepository 实现
type DraftStore interface {
	Save(ctx context.Context, sessionID string, answers map[uint]string, ttl time.Duration) error
	Load(ctx context.Context, sessionID string) (map[uint]string, error)
	Delete(ctx context.Context, sessionID string) error
}

// ObjectStore 录屏文件存储，由 StorageService 实现
type ObjectStore interface {
	UploadFile(ctx context.Context, key string, localPath string, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// EventPublisher 监考事件推送，由 ProctorHub 实现
type EventPublisher interface {
	Publish(evt ProctorEvent)
}

// ProctorPolicy 监考策略，可热更新
type ProctorPolicy struct {
	mu            sync.RWMutex
	maxViolations int
	grace         time.Duration
}

func NewProctorPolicy(cfg config.ProctorConfig) *ProctorPolicy {
	p := &ProctorPolicy{}
	p.Reload(cfg)
	return p
}

func (p *ProctorPolicy) Reload(cfg config.ProctorConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxViolations = cfg.MaxViolations
	if p.maxViolations <= 0 {
		p.maxViolations = 2
	}
	p.grace = time.Duration(cfg.GraceSeconds) * time.Second
}

func (p *ProctorPolicy) MaxViolations() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.maxViolations
}

func (p *ProctorPolicy) Grace() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.grace
}

type QuizService struct {
	Store    QuizStore
	Drafts   DraftStore
	Storage  ObjectStore
	Events   EventPublisher
	Policy   *ProctorPolicy
	Duration func(path string) (float64, error)
	Now      func() time.Time
}

func NewQuizService(store QuizStore, drafts DraftStore, storage ObjectStore, events EventPublisher, policy *ProctorPolicy) *QuizService {
	return &QuizService{
		Store:    store,
		Drafts:   drafts,
		Storage:  storage,
		Events:   events,
		Policy:   policy,
		Duration: util.VideoDuration,
		Now:      time.Now,
	}
}

// PublicQuestion 下发给考生的题目，不含答案
// swagger:model PublicQuestion
type PublicQuestion struct {
	ID           uint           `json:"id"`
	QuestionType string         `json:"questionType"`
	Content      string         `json:"content"`
	Options      datatypes.JSON `json:"options"`
	Points       int            `json:"points"`
	Order        int            `json:"order"`
}

// swagger:model QuizView
type QuizView struct {
	AssessmentID      uint             `json:"assessmentId"`
	Title             string           `json:"title"`
	Description       string           `json:"description"`
	TimeLimit         int              `json:"timeLimit"`
	MaxAttempts       int              `json:"maxAttempts"`
	PassingScore      float64          `json:"passingScore"`
	RemainingAttempts int              `json:"remainingAttempts"` // -1 = unlimited
	Questions         []PublicQuestion `json:"questions"`
}

// swagger:model StartResult
type StartResult struct {
	Session *model.AssessmentScreenSession `json:"session"`
	Quiz    *QuizView                      `json:"quiz"`
	// 返回的是之前未结束的会话
	Resumed bool `json:"resumed"`
}

// swagger:model SubmitResult
type SubmitResult struct {
	SessionID    string    `json:"sessionId"`
	AssessmentID uint      `json:"assessmentId"`
	Trigger      string    `json:"trigger"`
	Score        int       `json:"score"`
	MaxScore     int       `json:"maxScore"`
	Percentage   float64   `json:"percentage"`
	Passed       bool      `json:"passed"`
	Attempts     int       `json:"attempts"`
	SubmittedAt  time.Time `json:"submittedAt"`
}

// swagger:model ViolationResult
type ViolationResult struct {
	ViolationCount int           `json:"violationCount"`
	MaxViolations  int           `json:"maxViolations"`
	Submitted      bool          `json:"submitted"`
	Result         *SubmitResult `json:"result,omitempty"`
}

// GetQuiz 考生查看测验（不含答案）
func (s *QuizService) GetQuiz(userID, assessmentID uint) (*QuizView, error) {
	a, err := s.publishedAssessment(assessmentID)
	if err != nil {
		return nil, err
	}
	grade, err := s.Store.FindGrade(userID, assessmentID)
	if err != nil {
		return nil, err
	}
	return s.quizView(a, remainingAttempts(a, grade))
}

// StartSession 开始一次作答。未到截止时间的未结束会话原样返回（保留原截止时间）；
// 已过截止时间的会话先按计时器交卷并计入作答次数，再检查剩余次数并创建 armed 会话
func (s *QuizService) StartSession(ctx context.Context, userID, assessmentID uint) (*StartResult, error) {
	a, err := s.publishedAssessment(assessmentID)
	if err != nil {
		return nil, err
	}

	resumed, err := s.settleOpenSessions(ctx, userID, assessmentID)
	if err != nil {
		return nil, err
	}

	grade, err := s.Store.FindGrade(userID, assessmentID)
	if err != nil {
		return nil, err
	}
	remaining := remainingAttempts(a, grade)

	if resumed != nil {
		view, err := s.quizView(a, remaining)
		if err != nil {
			return nil, err
		}
		return &StartResult{Session: resumed, Quiz: view, Resumed: true}, nil
	}
	if remaining == 0 {
		return nil, util.ErrAttemptsExhausted
	}

	now := s.Now()
	session := &model.AssessmentScreenSession{
		UserID:       userID,
		AssessmentID: assessmentID,
		Status:       model.SessionArmed,
		StartedAt:    now,
	}
	if a.TimeLimit > 0 {
		deadline := now.Add(time.Duration(a.TimeLimit)*time.Minute + s.Policy.Grace())
		session.DeadlineAt = &deadline
	}
	if err := s.Store.CreateSession(session); err != nil {
		return nil, err
	}
	s.publish(EventSessionStarted, session, nil)

	view, err := s.quizView(a, remaining)
	if err != nil {
		return nil, err
	}
	return &StartResult{Session: session, Quiz: view}, nil
}

// settleOpenSessions 返回仍在作答期内的最新会话；过期的按计时器交卷，多余的作废
func (s *QuizService) settleOpenSessions(ctx context.Context, userID, assessmentID uint) (*model.AssessmentScreenSession, error) {
	open, err := s.Store.FindOpenSessions(userID, assessmentID)
	if err != nil {
		return nil, err
	}
	now := s.Now()

	var live *model.AssessmentScreenSession
	for i := range open {
		sess := &open[i]
		if sess.DeadlineAt != nil && !now.Before(*sess.DeadlineAt) {
			if _, err := s.submit(ctx, sess, nil, model.TriggerTimer); err != nil &&
				!errors.Is(err, util.ErrAlreadySubmitted) && !errors.Is(err, util.ErrSessionClosed) {
				return nil, err
			}
			continue
		}
		if live == nil || sess.StartedAt.After(live.StartedAt) {
			live = sess
		}
	}
	for i := range open {
		sess := open[i]
		if live != nil && sess.ID != live.ID && (sess.DeadlineAt == nil || now.Before(*sess.DeadlineAt)) {
			s.expire(ctx, sess)
		}
	}
	return live, nil
}

// StartRecording 共享屏幕授权后 armed -> recording，重复调用幂等
func (s *QuizService) StartRecording(userID uint, sessionID string) (*model.AssessmentScreenSession, error) {
	session, err := s.ownedSession(userID, sessionID)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case model.SessionRecording:
		return session, nil
	case model.SessionArmed:
	default:
		return nil, util.ErrSessionClosed
	}

	ok, err := s.Store.TransitionSession(sessionID, []model.SessionStatus{model.SessionArmed}, model.SessionRecording)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.ErrInvalidTransition
	}
	session.Status = model.SessionRecording
	s.publish(EventRecordingStarted, session, nil)
	return session, nil
}

// SaveDraft 自动保存答案草稿
func (s *QuizService) SaveDraft(ctx context.Context, userID uint, sessionID string, answers map[uint]string) error {
	session, err := s.ownedSession(userID, sessionID)
	if err != nil {
		return err
	}
	if !session.Status.Open() {
		return util.ErrSessionClosed
	}

	ttl := staleSessionAge + draftExtraTTL
	if session.DeadlineAt != nil {
		ttl = session.DeadlineAt.Sub(s.Now()) + draftExtraTTL
		if ttl <= draftExtraTTL {
			ttl = draftExtraTTL
		}
	}
	return s.Drafts.Save(ctx, sessionID, answers, ttl)
}

// ReportViolation 记录违规；结束共享屏幕立即交卷，切屏达到上限时交卷
func (s *QuizService) ReportViolation(ctx context.Context, userID uint, sessionID, violation string) (*ViolationResult, error) {
	if violation != model.TriggerTabSwitch && violation != model.TriggerScreenShareEnds {
		return nil, fmt.Errorf("%w: unknown violation %q", util.ErrValidation, violation)
	}
	session, err := s.ownedSession(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Status.Open() {
		return nil, util.ErrSessionClosed
	}

	monitoring.ProctorViolations.WithLabelValues(violation).Inc()
	count, err := s.Store.AddViolation(sessionID)
	if err != nil {
		return nil, err
	}
	session.ViolationCount = count
	s.publish(EventViolation, session, map[string]interface{}{"type": violation})

	max := s.Policy.MaxViolations()
	res := &ViolationResult{ViolationCount: count, MaxViolations: max}
	if violation == model.TriggerTabSwitch && count < max {
		return res, nil
	}

	result, err := s.submit(ctx, session, nil, violation)
	if err != nil && !errors.Is(err, util.ErrAlreadySubmitted) {
		return nil, err
	}
	res.Submitted = true
	res.Result = result
	return res, nil
}

// Submit 考生手动交卷或前端计时器到点交卷
func (s *QuizService) Submit(ctx context.Context, userID uint, sessionID string, answers map[uint]string, trigger string) (*SubmitResult, error) {
	if trigger == "" {
		trigger = model.TriggerManual
	}
	if trigger != model.TriggerManual && trigger != model.TriggerTimer {
		return nil, fmt.Errorf("%w: unknown trigger %q", util.ErrValidation, trigger)
	}
	session, err := s.ownedSession(userID, sessionID)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, session, answers, trigger)
}

// submit 所有交卷路径的唯一入口；条件更新命中的调用方负责评分落库，其余调用方得到 ErrAlreadySubmitted 和已保存的结果
func (s *QuizService) submit(ctx context.Context, session *model.AssessmentScreenSession, answers map[uint]string, trigger string) (*SubmitResult, error) {
	switch session.Status {
	case model.SessionSubmitted:
		return s.alreadySubmitted(session, trigger)
	case model.SessionExpired:
		return nil, util.ErrSessionClosed
	}

	if len(answers) == 0 {
		draft, err := s.Drafts.Load(ctx, session.ID)
		if err != nil {
			logger.Log.Warn("Failed to load draft answers", zap.String("sessionId", session.ID), zap.Error(err))
		} else {
			answers = draft
		}
	}

	a, err := s.Store.FindAssessment(session.AssessmentID)
	if err != nil {
		return nil, err
	}
	questions, err := s.Store.ListQuestions(session.AssessmentID)
	if err != nil {
		return nil, err
	}

	graded := GradeAnswers(session.UserID, session.ID, a, questions, answers)
	now := s.Now()
	grade, err := s.Store.CompleteSubmission(repository.SubmissionRecord{
		SessionID:    session.ID,
		UserID:       session.UserID,
		AssessmentID: session.AssessmentID,
		Trigger:      trigger,
		Responses:    graded.Responses,
		Score:        graded.Score,
		MaxScore:     graded.MaxScore,
		Percentage:   graded.Percentage,
		Passed:       graded.Passed,
		SubmittedAt:  now,
	})
	if errors.Is(err, util.ErrAlreadySubmitted) {
		latest, ferr := s.Store.FindSession(session.ID)
		if ferr == nil && latest.Status == model.SessionExpired {
			return nil, util.ErrSessionClosed
		}
		if ferr == nil {
			session = latest
		}
		return s.alreadySubmitted(session, trigger)
	}
	if err != nil {
		return nil, err
	}

	monitoring.QuizSubmissions.WithLabelValues(trigger, "graded").Inc()
	if err := s.Drafts.Delete(ctx, session.ID); err != nil {
		logger.Log.Warn("Failed to delete draft answers", zap.String("sessionId", session.ID), zap.Error(err))
	}

	session.Status = model.SessionSubmitted
	session.SubmitTrigger = trigger
	session.EndedAt = &now
	s.publish(EventSubmitted, session, map[string]interface{}{
		"trigger":    trigger,
		"percentage": grade.Percentage,
		"passed":     grade.Passed,
	})
	logger.Log.Info("Quiz submitted",
		zap.String("sessionId", session.ID),
		zap.Uint("userId", session.UserID),
		zap.Uint("assessmentId", session.AssessmentID),
		zap.String("trigger", trigger),
		zap.Float64("percentage", grade.Percentage),
	)

	return &SubmitResult{
		SessionID:    session.ID,
		AssessmentID: session.AssessmentID,
		Trigger:      trigger,
		Score:        grade.Score,
		MaxScore:     grade.MaxScore,
		Percentage:   grade.Percentage,
		Passed:       grade.Passed,
		Attempts:     grade.Attempts,
		SubmittedAt:  now,
	}, nil
}

func (s *QuizService) alreadySubmitted(session *model.AssessmentScreenSession, trigger string) (*SubmitResult, error) {
	monitoring.QuizSubmissions.WithLabelValues(trigger, "duplicate").Inc()
	grade, err := s.Store.FindGrade(session.UserID, session.AssessmentID)
	if err != nil {
		return nil, err
	}
	res := &SubmitResult{
		SessionID:    session.ID,
		AssessmentID: session.AssessmentID,
		Trigger:      session.SubmitTrigger,
	}
	if session.EndedAt != nil {
		res.SubmittedAt = *session.EndedAt
	}
	if grade != nil {
		res.Score = grade.Score
		res.MaxScore = grade.MaxScore
		res.Percentage = grade.Percentage
		res.Passed = grade.Passed
		res.Attempts = grade.Attempts
	}
	return res, util.ErrAlreadySubmitted
}

// UploadRecording 上传录屏（交卷后也允许），每个会话只接受一次
func (s *QuizService) UploadRecording(ctx context.Context, userID uint, sessionID string, file *multipart.FileHeader) (*model.AssessmentScreenSession, error) {
	session, err := s.ownedSession(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.RecordingFile != "" {
		return nil, util.ErrRecordingExists
	}
	if file.Size > maxRecordingMB<<20 {
		return nil, fmt.Errorf("%w: recording larger than %d MB", util.ErrInvalidFileType, maxRecordingMB)
	}

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	mimeType, err := util.ValidateMimeType(src, []string{util.MimeVideo, util.MimeOctetStream})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidFileType, err)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext == "" {
		ext = ".webm"
	}
	tmp, err := os.CreateTemp("", "recording-*"+ext)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	var secs float64
	if s.Duration != nil {
		if secs, err = s.Duration(tmp.Name()); err != nil {
			logger.Log.Warn("Failed to read recording duration", zap.String("sessionId", sessionID), zap.Error(err))
			secs = 0
		}
	}

	if mimeType == util.MimeOctetStream {
		mimeType = "video/webm"
	}
	key := util.KindRecording + "/" + model.GenerateUUID() + ext
	if _, err := s.Storage.UploadFile(ctx, key, tmp.Name(), mimeType); err != nil {
		return nil, err
	}

	ok, err := s.Store.SetRecording(sessionID, key, secs)
	if err != nil || !ok {
		if derr := s.Storage.Delete(ctx, key); derr != nil {
			logger.Log.Warn("Failed to remove duplicate recording", zap.String("key", key), zap.Error(derr))
		}
		if err != nil {
			return nil, err
		}
		return nil, util.ErrRecordingExists
	}

	session.RecordingFile = key
	session.RecordingSecs = secs
	s.publish(EventRecordingUploaded, session, map[string]interface{}{"seconds": secs})
	return session, nil
}

// Sweep 提交已过截止时间的会话（使用草稿答案），作废长时间未提交的无限时会话
func (s *QuizService) Sweep(ctx context.Context) (submitted, expired int, err error) {
	now := s.Now()
	due, err := s.Store.ListExpiredSessions(now, sweepBatchSize)
	if err != nil {
		return 0, 0, err
	}
	for i := range due {
		if _, err := s.submit(ctx, &due[i], nil, model.TriggerTimer); err != nil {
			if !errors.Is(err, util.ErrAlreadySubmitted) && !errors.Is(err, util.ErrSessionClosed) {
				logger.Log.Error("Failed to auto submit session", zap.String("sessionId", due[i].ID), zap.Error(err))
			}
			continue
		}
		submitted++
	}

	stale, err := s.Store.ListStaleSessions(now.Add(-staleSessionAge), sweepBatchSize)
	if err != nil {
		return submitted, 0, err
	}
	for _, sess := range stale {
		if s.expire(ctx, sess) {
			expired++
		}
	}
	return submitted, expired, nil
}

// RunSweeper 按固定间隔执行 Sweep，ctx 取消时退出
func (s *QuizService) RunSweeper(ctx context.Context, interval time.Duration) {
	log := logger.Named("sweeper")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			submitted, expired, err := s.Sweep(ctx)
			if err != nil {
				log.Error("Quiz sweeper failed", zap.Error(err))
				continue
			}
			if submitted > 0 || expired > 0 {
				log.Info("Quiz sweeper finished", zap.Int("submitted", submitted), zap.Int("expired", expired))
			}
		}
	}
}

func (s *QuizService) expire(ctx context.Context, session model.AssessmentScreenSession) bool {
	ok, err := s.Store.TransitionSession(session.ID,
		[]model.SessionStatus{model.SessionArmed, model.SessionRecording}, model.SessionExpired)
	if err != nil {
		logger.Log.Error("Failed to expire session", zap.String("sessionId", session.ID), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := s.Drafts.Delete(ctx, session.ID); err != nil {
		logger.Log.Warn("Failed to delete draft answers", zap.String("sessionId", session.ID), zap.Error(err))
	}
	session.Status = model.SessionExpired
	s.publish(EventSessionExpired, &session, nil)
	return true
}

func (s *QuizService) publishedAssessment(id uint) (*model.Assessment, error) {
	a, err := s.Store.FindAssessment(id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	if !a.IsPublished {
		return nil, util.ErrAssessmentClosed
	}
	return a, nil
}

func (s *QuizService) ownedSession(userID uint, sessionID string) (*model.AssessmentScreenSession, error) {
	session, err := s.Store.FindSession(sessionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrSessionNotFound
		}
		return nil, err
	}
	if session.UserID != userID {
		return nil, util.ErrSessionNotFound
	}
	return session, nil
}

func (s *QuizService) quizView(a *model.Assessment, remaining int) (*QuizView, error) {
	questions, err := s.Store.ListQuestions(a.ID)
	if err != nil {
		return nil, err
	}
	public := make([]PublicQuestion, 0, len(questions))
	for _, q := range questions {
		public = append(public, PublicQuestion{
			ID:           q.ID,
			QuestionType: q.QuestionType,
			Content:      q.Content,
			Options:      q.Options,
			Points:       q.Points,
			Order:        q.Order,
		})
	}
	return &QuizView{
		AssessmentID:      a.ID,
		Title:             a.Title,
		Description:       a.Description,
		TimeLimit:         a.TimeLimit,
		MaxAttempts:       a.MaxAttempts,
		PassingScore:      a.PassingScore,
		RemainingAttempts: remaining,
		Questions:         public,
	}, nil
}

func (s *QuizService) publish(eventType string, session *model.AssessmentScreenSession, data map[string]interface{}) {
	if s.Events == nil {
		return
	}
	s.Events.Publish(ProctorEvent{
		Type:           eventType,
		SessionID:      session.ID,
		UserID:         session.UserID,
		AssessmentID:   session.AssessmentID,
		Status:         session.Status,
		ViolationCount: session.ViolationCount,
		Data:           data,
		At:             s.Now(),
	})
}

// remainingAttempts 返回 -1 表示不限次数
func remainingAttempts(a *model.Assessment, grade *model.Grade) int {
	if a.MaxAttempts <= 0 {
		return -1
	}
	used := 0
	if grade != nil {
		used = grade.Attempts
	}
	if used >= a.MaxAttempts {
		return 0
	}
	return a.MaxAttempts - used
}
