package repository

import (
	"sync"
	"testing"
	"time"

	"lms_backend/internal/model"
	"lms_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type submissionFixture struct {
	db        *gorm.DB
	proctor   *ProctorRepository
	assess    *AssessmentRepository
	user      *model.User
	quiz      *model.Assessment
	questions []model.AssessmentQuestion
}

func newSubmissionFixture(t *testing.T) *submissionFixture {
	t.Helper()
	db := newTestDB(t)
	f := &submissionFixture{
		db:      db,
		proctor: NewProctorRepository(db),
		assess:  NewAssessmentRepository(db),
		user:    createUser(t, db, "trainee@lms.local"),
		quiz:    &model.Assessment{Title: "Go basics", PassingScore: 50, IsPublished: true},
	}
	require.NoError(t, f.assess.CreateAssessment(f.quiz))
	f.questions = []model.AssessmentQuestion{
		{AssessmentID: f.quiz.ID, QuestionType: model.QuestionTrueFalse, Content: "q1", Answer: "true", Points: 1, Order: 1},
		{AssessmentID: f.quiz.ID, QuestionType: model.QuestionTrueFalse, Content: "q2", Answer: "false", Points: 1, Order: 2},
	}
	require.NoError(t, f.assess.CreateQuestions(f.questions))
	return f
}

func (f *submissionFixture) openSession(t *testing.T) *model.AssessmentScreenSession {
	t.Helper()
	s := &model.AssessmentScreenSession{
		UserID: f.user.ID, AssessmentID: f.quiz.ID, Status: model.SessionArmed, StartedAt: testNow,
	}
	require.NoError(t, f.proctor.CreateSession(s))
	return s
}

func (f *submissionFixture) record(sessionID string, qs []model.AssessmentQuestion) SubmissionRecord {
	rec := SubmissionRecord{
		SessionID: sessionID, UserID: f.user.ID, AssessmentID: f.quiz.ID, Trigger: model.TriggerManual,
		MaxScore: len(qs), SubmittedAt: testNow.Add(10 * time.Minute),
	}
	for _, q := range qs {
		rec.Responses = append(rec.Responses, model.AssessmentResponse{
			UserID: f.user.ID, QuestionID: q.ID, AssessmentID: f.quiz.ID, SessionID: sessionID,
			Answer: q.Answer, IsCorrect: true, Score: q.Points,
		})
		rec.Score += q.Points
	}
	rec.Percentage = 100
	rec.Passed = true
	return rec
}

func TestCompleteSubmission_OnlyOnce(t *testing.T) {
	f := newSubmissionFixture(t)
	sess := f.openSession(t)

	grade, err := f.proctor.CompleteSubmission(f.record(sess.ID, f.questions))
	require.NoError(t, err)
	assert.Equal(t, 1, grade.Attempts)
	assert.Equal(t, 2, grade.Score)

	_, err = f.proctor.CompleteSubmission(f.record(sess.ID, f.questions))
	assert.ErrorIs(t, err, util.ErrAlreadySubmitted)

	assert.EqualValues(t, 1, countRows(t, f.db, &model.Grade{}, "user_id = ?", f.user.ID))
	assert.EqualValues(t, 2, countRows(t, f.db, &model.AssessmentResponse{}, "user_id = ?", f.user.ID))

	stored, err := f.proctor.FindGrade(f.user.ID, f.quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Attempts)

	got, err := f.proctor.FindSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionSubmitted, got.Status)
	assert.Equal(t, model.TriggerManual, got.SubmitTrigger)
	require.NotNil(t, got.EndedAt)
}

func TestCompleteSubmission_ConcurrentCallers(t *testing.T) {
	f := newSubmissionFixture(t)
	sess := f.openSession(t)

	const callers = 4
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.proctor.CompleteSubmission(f.record(sess.ID, f.questions))
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, util.ErrAlreadySubmitted)
	}
	assert.Equal(t, 1, won)

	stored, err := f.proctor.FindGrade(f.user.ID, f.quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Attempts)
	assert.EqualValues(t, 2, countRows(t, f.db, &model.AssessmentResponse{}, "user_id = ?", f.user.ID))
}

func TestCompleteSubmission_ClosedSession(t *testing.T) {
	f := newSubmissionFixture(t)
	sess := f.openSession(t)

	ok, err := f.proctor.TransitionSession(sess.ID, []model.SessionStatus{model.SessionArmed}, model.SessionExpired)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.proctor.CompleteSubmission(f.record(sess.ID, f.questions))
	assert.ErrorIs(t, err, util.ErrAlreadySubmitted)
	assert.EqualValues(t, 0, countRows(t, f.db, &model.Grade{}, "user_id = ?", f.user.ID))
}

func TestReplaceQuestions_DropsStaleResponses(t *testing.T) {
	f := newSubmissionFixture(t)
	first := f.openSession(t)
	_, err := f.proctor.CompleteSubmission(f.record(first.ID, f.questions))
	require.NoError(t, err)

	fresh := []model.AssessmentQuestion{
		{AssessmentID: f.quiz.ID, QuestionType: model.QuestionShortAnswer, Content: "q3", Answer: "goroutine", Points: 2},
	}
	require.NoError(t, f.assess.ReplaceQuestions(f.quiz.ID, fresh))

	// 旧题已被替换，旧答题记录不再出现在结果里
	rs, err := f.assess.ListResponses(f.user.ID, f.quiz.ID)
	require.NoError(t, err)
	assert.Empty(t, rs)

	live, err := f.assess.ListQuestions(f.quiz.ID)
	require.NoError(t, err)
	require.Len(t, live, 1)

	second := f.openSession(t)
	grade, err := f.proctor.CompleteSubmission(f.record(second.ID, live))
	require.NoError(t, err)
	assert.Equal(t, 2, grade.Attempts)
	assert.Equal(t, 2, grade.Score)

	rs, err = f.assess.ListResponses(f.user.ID, f.quiz.ID)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, live[0].ID, rs[0].QuestionID)
	assert.Equal(t, second.ID, rs[0].SessionID)

	var all int64
	require.NoError(t, f.db.Unscoped().Model(&model.AssessmentResponse{}).
		Where("user_id = ? AND assessment_id = ?", f.user.ID, f.quiz.ID).Count(&all).Error)
	assert.EqualValues(t, 1, all)
}

func TestFindOpenSessions_NewestFirst(t *testing.T) {
	f := newSubmissionFixture(t)
	older := f.openSession(t)
	newer := &model.AssessmentScreenSession{
		UserID: f.user.ID, AssessmentID: f.quiz.ID, Status: model.SessionRecording, StartedAt: testNow.Add(time.Minute),
	}
	require.NoError(t, f.proctor.CreateSession(newer))
	done := f.openSession(t)
	_, err := f.proctor.TransitionSession(done.ID, []model.SessionStatus{model.SessionArmed}, model.SessionExpired)
	require.NoError(t, err)

	open, err := f.proctor.FindOpenSessions(f.user.ID, f.quiz.ID)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, newer.ID, open[0].ID)
	assert.Equal(t, older.ID, open[1].ID)
}
