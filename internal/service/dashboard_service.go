package service

import (
	"context"
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
)

const (
	dashboardCacheTTL  = 60 * time.Second
	upcomingEventRange = 7 * 24 * time.Hour
	dashboardListLimit = 100
)

type DashboardService struct {
	UserRepo       *repository.UserRepository
	CourseRepo     *repository.CourseRepository
	BatchRepo      *repository.BatchRepository
	AssessmentRepo *repository.AssessmentRepository
	ProctorRepo    *repository.ProctorRepository
	CalendarRepo   *repository.CalendarRepository
	Cache          *repository.CacheRepository
}

func NewDashboardService(
	userRepo *repository.UserRepository,
	courseRepo *repository.CourseRepository,
	batchRepo *repository.BatchRepository,
	assessmentRepo *repository.AssessmentRepository,
	proctorRepo *repository.ProctorRepository,
	calendarRepo *repository.CalendarRepository,
	cache *repository.CacheRepository,
) *DashboardService {
	return &DashboardService{
		UserRepo:       userRepo,
		CourseRepo:     courseRepo,
		BatchRepo:      batchRepo,
		AssessmentRepo: assessmentRepo,
		ProctorRepo:    proctorRepo,
		CalendarRepo:   calendarRepo,
		Cache:          cache,
	}
}

// swagger:model AdminDashboard
type AdminDashboard struct {
	UsersByRole    map[model.RoleName]int64 `json:"usersByRole"`
	Courses        int64                    `json:"courses"`
	Batches        int64                    `json:"batches"`
	Assessments    int64                    `json:"assessments"`
	ActiveSessions int64                    `json:"activeSessions"`
}

// swagger:model AssessmentSummary
type AssessmentSummary struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	IsPublished bool   `json:"isPublished"`
	Submissions int64  `json:"submissions"`
}

// swagger:model TrainerDashboard
type TrainerDashboard struct {
	Courses         []model.Course                  `json:"courses"`
	Assessments     []AssessmentSummary             `json:"assessments"`
	FlaggedSessions []model.AssessmentScreenSession `json:"flaggedSessions"`
}

// swagger:model OpenAssessment
type OpenAssessment struct {
	ID                uint   `json:"id"`
	Title             string `json:"title"`
	CourseID          uint   `json:"courseId"`
	TimeLimit         int    `json:"timeLimit"`
	RemainingAttempts int    `json:"remainingAttempts"`
}

// swagger:model TraineeDashboard
type TraineeDashboard struct {
	Batches         []model.Batch         `json:"batches"`
	UpcomingEvents  []model.CalendarEvent `json:"upcomingEvents"`
	Grades          []model.Grade         `json:"grades"`
	OpenAssessments []OpenAssessment      `json:"openAssessments"`
}

func (s *DashboardService) Admin(ctx context.Context) (*AdminDashboard, error) {
	var d AdminDashboard
	if s.cached(ctx, "dashboard:admin", &d) {
		return &d, nil
	}

	var err error
	if d.UsersByRole, err = s.UserRepo.CountByRole(); err != nil {
		return nil, err
	}
	if d.Courses, err = s.CourseRepo.Count(); err != nil {
		return nil, err
	}
	if d.Batches, err = s.BatchRepo.Count(); err != nil {
		return nil, err
	}
	if d.Assessments, err = s.AssessmentRepo.CountAssessments(); err != nil {
		return nil, err
	}
	if d.ActiveSessions, err = s.ProctorRepo.CountOpenSessions(); err != nil {
		return nil, err
	}

	s.store(ctx, "dashboard:admin", &d)
	return &d, nil
}

func (s *DashboardService) Trainer(ctx context.Context, userID uint) (*TrainerDashboard, error) {
	key := fmt.Sprintf("dashboard:trainer:%d", userID)
	var d TrainerDashboard
	if s.cached(ctx, key, &d) {
		return &d, nil
	}

	courses, _, err := s.CourseRepo.List(1, dashboardListLimit, repository.CourseFilter{InstructorID: userID})
	if err != nil {
		return nil, err
	}
	d.Courses = courses

	var assessments []model.Assessment
	for _, c := range courses {
		as, _, err := s.AssessmentRepo.ListAssessments(1, dashboardListLimit, repository.AssessmentFilter{CourseID: c.ID})
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, as...)
	}
	own, _, err := s.AssessmentRepo.ListAssessments(1, dashboardListLimit, repository.AssessmentFilter{CreatedBy: userID})
	if err != nil {
		return nil, err
	}
	assessments = mergeAssessments(assessments, own)

	ids := make([]uint, 0, len(assessments))
	for _, a := range assessments {
		ids = append(ids, a.ID)
	}
	counts, err := s.AssessmentRepo.CountSubmissions(ids)
	if err != nil {
		return nil, err
	}
	d.Assessments = make([]AssessmentSummary, 0, len(assessments))
	for _, a := range assessments {
		d.Assessments = append(d.Assessments, AssessmentSummary{
			ID:          a.ID,
			Title:       a.Title,
			IsPublished: a.IsPublished,
			Submissions: counts[a.ID],
		})
	}

	if d.FlaggedSessions, err = s.ProctorRepo.ListFlaggedSessions(ids, 20); err != nil {
		return nil, err
	}

	s.store(ctx, key, &d)
	return &d, nil
}

func (s *DashboardService) Trainee(ctx context.Context, userID uint) (*TraineeDashboard, error) {
	key := fmt.Sprintf("dashboard:trainee:%d", userID)
	var d TraineeDashboard
	if s.cached(ctx, key, &d) {
		return &d, nil
	}

	batches, err := s.BatchRepo.ListForTrainee(userID)
	if err != nil {
		return nil, err
	}
	d.Batches = batches

	batchIDs := make([]uint, 0, len(batches))
	for _, b := range batches {
		batchIDs = append(batchIDs, b.ID)
	}
	now := time.Now()
	if d.UpcomingEvents, err = s.CalendarRepo.ListOverlapping(now, now.Add(upcomingEventRange), batchIDs); err != nil {
		return nil, err
	}
	if d.Grades, err = s.AssessmentRepo.ListGradesByUser(userID); err != nil {
		return nil, err
	}

	grades := make(map[uint]*model.Grade, len(d.Grades))
	for i := range d.Grades {
		grades[d.Grades[i].AssessmentID] = &d.Grades[i]
	}

	published := true
	seen := make(map[uint]bool)
	d.OpenAssessments = []OpenAssessment{}
	for _, b := range batches {
		curriculum, err := s.BatchRepo.FindCurriculum(b.ID)
		if err != nil {
			if repository.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		for _, c := range curriculum.Courses {
			as, _, err := s.AssessmentRepo.ListAssessments(1, dashboardListLimit,
				repository.AssessmentFilter{CourseID: c.ID, Published: &published})
			if err != nil {
				return nil, err
			}
			for i := range as {
				if seen[as[i].ID] {
					continue
				}
				seen[as[i].ID] = true
				remaining := remainingAttempts(&as[i], grades[as[i].ID])
				if remaining == 0 {
					continue
				}
				d.OpenAssessments = append(d.OpenAssessments, OpenAssessment{
					ID:                as[i].ID,
					Title:             as[i].Title,
					CourseID:          c.ID,
					TimeLimit:         as[i].TimeLimit,
					RemainingAttempts: remaining,
				})
			}
		}
	}

	s.store(ctx, key, &d)
	return &d, nil
}

func (s *DashboardService) cached(ctx context.Context, key string, dest interface{}) bool {
	if s.Cache == nil {
		return false
	}
	hit, err := s.Cache.GetJSON(ctx, key, dest)
	if err != nil {
		logger.Log.Warn("Dashboard cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (s *DashboardService) store(ctx context.Context, key string, value interface{}) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.SetJSON(ctx, key, value, dashboardCacheTTL); err != nil {
		logger.Log.Warn("Dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func mergeAssessments(a, b []model.Assessment) []model.Assessment {
	seen := make(map[uint]bool, len(a)+len(b))
	out := make([]model.Assessment, 0, len(a)+len(b))
	for _, list := range [][]model.Assessment{a, b} {
		for _, x := range list {
			if !seen[x.ID] {
				seen[x.ID] = true
				out = append(out, x)
			}
		}
	}
	return out
}
