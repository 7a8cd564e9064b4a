package service

import (
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"sort"
	"strings"
	"time"
)

const curriculumDateFormat = "010206"

type BatchService struct {
	BatchRepo  *repository.BatchRepository
	UserRepo   *repository.UserRepository
	CourseRepo *repository.CourseRepository
}

func NewBatchService(batchRepo *repository.BatchRepository, userRepo *repository.UserRepository, courseRepo *repository.CourseRepository) *BatchService {
	return &BatchService{
		BatchRepo:  batchRepo,
		UserRepo:   userRepo,
		CourseRepo: courseRepo,
	}
}

// swagger:model BatchRequest
type BatchRequest struct {
	Code        string `json:"code" binding:"required"`
	Location    string `json:"location" binding:"required"`
	StartDate   string `json:"startDate" binding:"required"` // 2006-01-02
	EndDate     string `json:"endDate" binding:"required"`
	Description string `json:"description"`
}

// swagger:model QuarterInput
type QuarterInput struct {
	Number    int    `json:"number" binding:"required"`
	StartDate string `json:"startDate" binding:"required"`
	EndDate   string `json:"endDate" binding:"required"`
}

// CurriculumName 课程体系名称：{code}{location}{MMDDYY}–{MMDDYY}
func CurriculumName(code, location string, start, end time.Time) string {
	return fmt.Sprintf("%s%s%s–%s", code, location, start.Format(curriculumDateFormat), end.Format(curriculumDateFormat))
}

func (s *BatchService) CreateBatch(req BatchRequest) (*model.Batch, error) {
	batch, err := batchFromRequest(req)
	if err != nil {
		return nil, err
	}
	curriculum := &model.Curriculum{
		Name: CurriculumName(batch.Code, batch.Location, batch.StartDate, batch.EndDate),
	}
	if err := s.BatchRepo.CreateWithCurriculum(batch, curriculum); err != nil {
		return nil, err
	}
	return batch, nil
}

// UpdateBatch 更新批次并重新计算课程体系名称；已有季度必须仍在新的日期范围内
func (s *BatchService) UpdateBatch(id uint, req BatchRequest) (*model.Batch, error) {
	batch, err := s.GetBatch(id)
	if err != nil {
		return nil, err
	}
	updated, err := batchFromRequest(req)
	if err != nil {
		return nil, err
	}

	if batch.Curriculum != nil {
		for _, q := range batch.Curriculum.Quarters {
			if q.StartDate.Before(updated.StartDate) || q.EndDate.After(updated.EndDate) {
				return nil, fmt.Errorf("%w: quarter %d falls outside the new batch dates", util.ErrInvalidQuarter, q.Number)
			}
		}
	}

	batch.Code = updated.Code
	batch.Location = updated.Location
	batch.StartDate = updated.StartDate
	batch.EndDate = updated.EndDate
	batch.Description = updated.Description

	name := CurriculumName(batch.Code, batch.Location, batch.StartDate, batch.EndDate)
	if err := s.BatchRepo.UpdateWithCurriculumName(batch, name); err != nil {
		return nil, err
	}
	if batch.Curriculum != nil {
		batch.Curriculum.Name = name
	}
	return batch, nil
}

func (s *BatchService) GetBatch(id uint) (*model.Batch, error) {
	b, err := s.BatchRepo.FindByID(id)
	if repository.IsNotFound(err) {
		return nil, util.ErrNotFound
	}
	return b, err
}

func (s *BatchService) ListBatches(page, size int, search string) ([]model.Batch, int64, error) {
	return s.BatchRepo.List(page, size, search)
}

func (s *BatchService) MyBatches(userID uint) ([]model.Batch, error) {
	return s.BatchRepo.ListForTrainee(userID)
}

func (s *BatchService) DeleteBatch(id uint) error {
	if _, err := s.GetBatch(id); err != nil {
		return err
	}
	return s.BatchRepo.Delete(id)
}

// AddTrainees 只允许添加拥有 trainee 角色的用户
func (s *BatchService) AddTrainees(batchID uint, userIDs []uint) (*model.Batch, error) {
	batch, err := s.GetBatch(batchID)
	if err != nil {
		return nil, err
	}
	var users []model.User
	for _, id := range uniqueIDs(userIDs) {
		u, err := s.UserRepo.FindByID(id)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, fmt.Errorf("%w: %d", util.ErrUserNotFound, id)
			}
			return nil, err
		}
		if !u.HasRole(model.Trainee) {
			return nil, fmt.Errorf("%w: user %d is not a trainee", util.ErrInvalidRole, id)
		}
		users = append(users, *u)
	}
	if len(users) == 0 {
		return batch, nil
	}
	if err := s.BatchRepo.AddTrainees(batch, users); err != nil {
		return nil, err
	}
	return s.GetBatch(batchID)
}

func (s *BatchService) RemoveTrainee(batchID, userID uint) error {
	batch, err := s.GetBatch(batchID)
	if err != nil {
		return err
	}
	return s.BatchRepo.RemoveTrainee(batch, userID)
}

func (s *BatchService) GetCurriculum(batchID uint) (*model.Curriculum, error) {
	c, err := s.BatchRepo.FindCurriculum(batchID)
	if repository.IsNotFound(err) {
		return nil, util.ErrNotFound
	}
	return c, err
}

func (s *BatchService) UpdateCurriculumDescription(batchID uint, description string) (*model.Curriculum, error) {
	c, err := s.GetCurriculum(batchID)
	if err != nil {
		return nil, err
	}
	c.Description = description
	return c, s.BatchRepo.UpdateCurriculumDescription(c)
}

// ReplaceQuarters 整体替换季度
func (s *BatchService) ReplaceQuarters(batchID uint, inputs []QuarterInput) (*model.Curriculum, error) {
	batch, err := s.GetBatch(batchID)
	if err != nil {
		return nil, err
	}
	if batch.Curriculum == nil {
		return nil, util.ErrNotFound
	}
	quarters, err := BuildQuarters(batch, inputs)
	if err != nil {
		return nil, err
	}
	if err := s.BatchRepo.ReplaceQuarters(batch.Curriculum.ID, quarters); err != nil {
		return nil, err
	}
	return s.GetCurriculum(batchID)
}

func (s *BatchService) AddCourse(batchID, courseID uint) (*model.Curriculum, error) {
	c, err := s.GetCurriculum(batchID)
	if err != nil {
		return nil, err
	}
	if _, err := s.CourseRepo.FindByID(courseID); err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	if err := s.BatchRepo.AddCourse(c, courseID); err != nil {
		return nil, err
	}
	return s.GetCurriculum(batchID)
}

func (s *BatchService) RemoveCourse(batchID, courseID uint) error {
	c, err := s.GetCurriculum(batchID)
	if err != nil {
		return err
	}
	return s.BatchRepo.RemoveCourse(c, courseID)
}

// BuildQuarters 校验季度：1..4 个，编号唯一且在 1..4，位于批次日期范围内且互不重叠
func BuildQuarters(batch *model.Batch, inputs []QuarterInput) ([]model.Quarter, error) {
	if len(inputs) > model.MaxQuarters {
		return nil, util.ErrQuarterLimit
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: at least one quarter is required", util.ErrInvalidQuarter)
	}

	seen := make(map[int]bool, len(inputs))
	quarters := make([]model.Quarter, 0, len(inputs))
	for _, in := range inputs {
		if in.Number < 1 || in.Number > model.MaxQuarters {
			return nil, fmt.Errorf("%w: number must be between 1 and %d", util.ErrInvalidQuarter, model.MaxQuarters)
		}
		if seen[in.Number] {
			return nil, fmt.Errorf("%w: duplicate quarter %d", util.ErrInvalidQuarter, in.Number)
		}
		seen[in.Number] = true

		start, end, err := parseDateRange(in.StartDate, in.EndDate)
		if err != nil {
			return nil, err
		}
		if start.Before(batch.StartDate) || end.After(batch.EndDate) {
			return nil, fmt.Errorf("%w: quarter %d must be within the batch dates", util.ErrInvalidQuarter, in.Number)
		}
		quarters = append(quarters, model.Quarter{Number: in.Number, StartDate: start, EndDate: end})
	}

	sort.Slice(quarters, func(i, j int) bool { return quarters[i].StartDate.Before(quarters[j].StartDate) })
	for i := 1; i < len(quarters); i++ {
		if !quarters[i].StartDate.After(quarters[i-1].EndDate) {
			return nil, fmt.Errorf("%w: quarters %d and %d overlap", util.ErrInvalidQuarter, quarters[i-1].Number, quarters[i].Number)
		}
	}
	sort.Slice(quarters, func(i, j int) bool { return quarters[i].Number < quarters[j].Number })
	return quarters, nil
}

func batchFromRequest(req BatchRequest) (*model.Batch, error) {
	code := strings.TrimSpace(req.Code)
	location := strings.TrimSpace(req.Location)
	if code == "" || location == "" {
		return nil, fmt.Errorf("%w: code and location are required", util.ErrValidation)
	}
	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	return &model.Batch{
		Code:        code,
		Location:    location,
		StartDate:   start,
		EndDate:     end,
		Description: req.Description,
	}, nil
}

func parseDateRange(from, to string) (time.Time, time.Time, error) {
	start, err := time.Parse(util.DateFormat, strings.TrimSpace(from))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid start date %q", util.ErrValidation, from)
	}
	end, err := time.Parse(util.DateFormat, strings.TrimSpace(to))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid end date %q", util.ErrValidation, to)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, util.ErrInvalidDateRange
	}
	return start, end, nil
}
