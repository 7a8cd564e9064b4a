package service

import (
	"context"
	"fmt"
	"io"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"mime/multipart"
	"strings"

	"go.uber.org/zap"
)

type CourseService struct {
	CourseRepo     *repository.CourseRepository
	UserRepo       *repository.UserRepository
	StorageService *StorageService
}

func NewCourseService(courseRepo *repository.CourseRepository, userRepo *repository.UserRepository, storage *StorageService) *CourseService {
	return &CourseService{
		CourseRepo:     courseRepo,
		UserRepo:       userRepo,
		StorageService: storage,
	}
}

// Actor 当前操作者
type Actor struct {
	UserID uint
	Admin  bool
}

func ActorFromClaims(claims *util.Claims) Actor {
	return Actor{UserID: claims.UserID, Admin: claims.IsAdmin()}
}

// swagger:model CourseRequest
type CourseRequest struct {
	Title         string `json:"title" binding:"required"`
	Description   string `json:"description"`
	InstructorIDs []uint `json:"instructorIds"`
}

// swagger:model ModuleRequest
type ModuleRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

// swagger:model LectureRequest
type LectureRequest struct {
	Title    string `json:"title" binding:"required"`
	Content  string `json:"content"`
	VideoURL string `json:"videoUrl"`
	Order    int    `json:"order"`
}

func (s *CourseService) ListCourses(page, size int, filter repository.CourseFilter) ([]model.Course, int64, error) {
	return s.CourseRepo.List(page, size, filter)
}

func (s *CourseService) GetCourse(id uint) (*model.Course, error) {
	c, err := s.CourseRepo.FindTree(id)
	if repository.IsNotFound(err) {
		return nil, util.ErrNotFound
	}
	return c, err
}

// CreateCourse 创建者为培训师时自动成为讲师
func (s *CourseService) CreateCourse(actor Actor, req CourseRequest) (*model.Course, error) {
	ids := uniqueIDs(req.InstructorIDs)
	if !actor.Admin && !containsID(ids, actor.UserID) {
		ids = append(ids, actor.UserID)
	}
	if err := s.checkTrainers(ids); err != nil {
		return nil, err
	}

	course := &model.Course{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
	}
	if err := s.CourseRepo.CreateWithInstructors(course, ids); err != nil {
		return nil, err
	}
	return s.CourseRepo.FindByID(course.ID)
}

func (s *CourseService) UpdateCourse(actor Actor, id uint, req CourseRequest) (*model.Course, error) {
	course, err := s.editableCourse(actor, id)
	if err != nil {
		return nil, err
	}
	course.Title = strings.TrimSpace(req.Title)
	course.Description = req.Description
	if err := s.CourseRepo.Update(course); err != nil {
		return nil, err
	}
	return course, nil
}

// DeleteCourse 级联删除课程内容，并清理课程图片与资源文件
func (s *CourseService) DeleteCourse(ctx context.Context, id uint) error {
	course, err := s.findCourse(id)
	if err != nil {
		return err
	}
	files, err := s.CourseRepo.Delete(id)
	if err != nil {
		return err
	}
	if course.Image != "" {
		files = append(files, keyFromURL(course.Image, util.KindImage))
	}
	s.removeObjects(ctx, files)
	return nil
}

func (s *CourseService) SetPublished(actor Actor, id uint, published bool) (*model.Course, error) {
	course, err := s.editableCourse(actor, id)
	if err != nil {
		return nil, err
	}
	course.IsPublished = published
	if err := s.CourseRepo.Update(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) AssignInstructor(courseID, userID uint) error {
	if _, err := s.findCourse(courseID); err != nil {
		return err
	}
	if err := s.checkTrainers([]uint{userID}); err != nil {
		return err
	}
	return s.CourseRepo.AddInstructor(courseID, userID)
}

func (s *CourseService) UnassignInstructor(courseID, userID uint) error {
	if _, err := s.findCourse(courseID); err != nil {
		return err
	}
	return s.CourseRepo.RemoveInstructor(courseID, userID)
}

// UploadImage 上传课程封面，覆盖旧图片
func (s *CourseService) UploadImage(ctx context.Context, actor Actor, courseID uint, file *multipart.FileHeader) (*model.Course, error) {
	course, err := s.editableCourse(actor, courseID)
	if err != nil {
		return nil, err
	}

	key, url, err := s.store(ctx, util.KindImage, file, []string{util.MimeImage})
	if err != nil {
		return nil, err
	}

	old := course.Image
	course.Image = url
	if err := s.CourseRepo.Update(course); err != nil {
		s.removeObject(ctx, key)
		return nil, err
	}
	if old != "" {
		s.removeObject(ctx, keyFromURL(old, util.KindImage))
	}
	return course, nil
}

// Modules

func (s *CourseService) ListModules(courseID uint) ([]model.Module, error) {
	if _, err := s.findCourse(courseID); err != nil {
		return nil, err
	}
	return s.CourseRepo.ListModules(courseID)
}

func (s *CourseService) CreateModule(actor Actor, courseID uint, req ModuleRequest) (*model.Module, error) {
	if _, err := s.editableCourse(actor, courseID); err != nil {
		return nil, err
	}
	m := &model.Module{
		CourseID:    courseID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Order:       req.Order,
	}
	return m, s.CourseRepo.CreateModule(m)
}

func (s *CourseService) UpdateModule(actor Actor, id uint, req ModuleRequest) (*model.Module, error) {
	m, err := s.editableModule(actor, id)
	if err != nil {
		return nil, err
	}
	m.Title = strings.TrimSpace(req.Title)
	m.Description = req.Description
	m.Order = req.Order
	return m, s.CourseRepo.UpdateModule(m)
}

func (s *CourseService) DeleteModule(ctx context.Context, actor Actor, id uint) error {
	if _, err := s.editableModule(actor, id); err != nil {
		return err
	}
	files, err := s.CourseRepo.DeleteModule(id)
	if err != nil {
		return err
	}
	s.removeObjects(ctx, files)
	return nil
}

// Lectures

func (s *CourseService) ListLectures(moduleID uint) ([]model.Lecture, error) {
	if _, err := s.CourseRepo.FindModule(moduleID); err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	return s.CourseRepo.ListLectures(moduleID)
}

func (s *CourseService) GetLecture(id uint) (*model.Lecture, error) {
	l, err := s.CourseRepo.FindLecture(id)
	if repository.IsNotFound(err) {
		return nil, util.ErrNotFound
	}
	return l, err
}

func (s *CourseService) CreateLecture(actor Actor, moduleID uint, req LectureRequest) (*model.Lecture, error) {
	if _, err := s.editableModule(actor, moduleID); err != nil {
		return nil, err
	}
	l := &model.Lecture{
		ModuleID: moduleID,
		Title:    strings.TrimSpace(req.Title),
		Content:  req.Content,
		VideoURL: req.VideoURL,
		Order:    req.Order,
	}
	return l, s.CourseRepo.CreateLecture(l)
}

func (s *CourseService) UpdateLecture(actor Actor, id uint, req LectureRequest) (*model.Lecture, error) {
	l, err := s.editableLecture(actor, id)
	if err != nil {
		return nil, err
	}
	l.Title = strings.TrimSpace(req.Title)
	l.Content = req.Content
	l.VideoURL = req.VideoURL
	l.Order = req.Order
	return l, s.CourseRepo.UpdateLecture(l)
}

func (s *CourseService) DeleteLecture(ctx context.Context, actor Actor, id uint) error {
	if _, err := s.editableLecture(actor, id); err != nil {
		return err
	}
	files, err := s.CourseRepo.DeleteLecture(id)
	if err != nil {
		return err
	}
	s.removeObjects(ctx, files)
	return nil
}

// Resources

func (s *CourseService) ListResources(lectureID uint) ([]model.Resource, error) {
	if _, err := s.GetLecture(lectureID); err != nil {
		return nil, err
	}
	return s.CourseRepo.ListResources(lectureID)
}

var resourceMimeTypes = []string{
	util.MimePDF, util.MimeVideo, util.MimeImage, util.MimeText,
	"application/zip", "application/msword",
	"application/vnd.openxmlformats-officedocument",
	util.MimeOctetStream,
}

func (s *CourseService) UploadResource(ctx context.Context, actor Actor, lectureID uint, title string, file *multipart.FileHeader) (*model.Resource, error) {
	if _, err := s.editableLecture(actor, lectureID); err != nil {
		return nil, err
	}

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	mimeType, err := util.ValidateMimeType(src, resourceMimeTypes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidFileType, err)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	key := NewKey(util.KindResource, file.Filename)
	url, err := s.StorageService.Upload(ctx, key, src, file.Size, mimeType)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(title) == "" {
		title = file.Filename
	}
	res := &model.Resource{
		LectureID:  lectureID,
		Title:      title,
		Kind:       util.ResourceKind(mimeType),
		FileName:   key,
		URL:        url,
		Size:       file.Size,
		UploaderID: actor.UserID,
	}
	if err := s.CourseRepo.CreateResource(res); err != nil {
		s.removeObject(ctx, key)
		return nil, err
	}
	return res, nil
}

// DeleteResource 同时删除存储中的文件
func (s *CourseService) DeleteResource(ctx context.Context, actor Actor, id uint) error {
	res, err := s.CourseRepo.FindResource(id)
	if err != nil {
		if repository.IsNotFound(err) {
			return util.ErrNotFound
		}
		return err
	}
	if _, err := s.editableLecture(actor, res.LectureID); err != nil {
		return err
	}
	if err := s.CourseRepo.DeleteResource(id); err != nil {
		return err
	}
	s.removeObject(ctx, res.FileName)
	return nil
}

// CanEditLecture 测验归属于课时，编辑权限跟随课程讲师
func (s *CourseService) CanEditLecture(actor Actor, lectureID uint) error {
	_, err := s.editableLecture(actor, lectureID)
	return err
}

func (s *CourseService) findCourse(id uint) (*model.Course, error) {
	c, err := s.CourseRepo.FindByID(id)
	if repository.IsNotFound(err) {
		return nil, util.ErrNotFound
	}
	return c, err
}

func (s *CourseService) editableCourse(actor Actor, id uint) (*model.Course, error) {
	c, err := s.findCourse(id)
	if err != nil {
		return nil, err
	}
	if actor.Admin {
		return c, nil
	}
	for _, in := range c.Instructors {
		if in.ID == actor.UserID {
			return c, nil
		}
	}
	return nil, util.ErrNotInstructor
}

func (s *CourseService) editableModule(actor Actor, id uint) (*model.Module, error) {
	m, err := s.CourseRepo.FindModule(id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	if _, err := s.editableCourse(actor, m.CourseID); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *CourseService) editableLecture(actor Actor, id uint) (*model.Lecture, error) {
	l, err := s.CourseRepo.FindLecture(id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	if _, err := s.editableModule(actor, l.ModuleID); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *CourseService) checkTrainers(ids []uint) error {
	for _, id := range ids {
		u, err := s.UserRepo.FindByID(id)
		if err != nil {
			if repository.IsNotFound(err) {
				return fmt.Errorf("%w: %d", util.ErrUserNotFound, id)
			}
			return err
		}
		if !u.HasRole(model.Trainer) && !u.HasRole(model.Admin) {
			return fmt.Errorf("%w: user %d is not a trainer", util.ErrInvalidRole, id)
		}
	}
	return nil
}

func (s *CourseService) store(ctx context.Context, kind string, file *multipart.FileHeader, allowed []string) (string, string, error) {
	src, err := file.Open()
	if err != nil {
		return "", "", err
	}
	defer src.Close()

	mimeType, err := util.ValidateMimeType(src, allowed)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", util.ErrInvalidFileType, err)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", "", err
	}

	key := NewKey(kind, file.Filename)
	url, err := s.StorageService.Upload(ctx, key, src, file.Size, mimeType)
	return key, url, err
}

func (s *CourseService) removeObjects(ctx context.Context, keys []string) {
	for _, key := range keys {
		s.removeObject(ctx, key)
	}
}

func (s *CourseService) removeObject(ctx context.Context, key string) {
	if key == "" || s.StorageService == nil {
		return
	}
	if err := s.StorageService.Delete(ctx, key); err != nil {
		logger.Log.Warn("Failed to delete stored object", zap.String("key", key), zap.Error(err))
	}
}

// keyFromURL 从访问地址还原对象名
func keyFromURL(url, kind string) string {
	i := strings.Index(url, kind+"/")
	if i < 0 {
		return ""
	}
	return url[i:]
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id != 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
