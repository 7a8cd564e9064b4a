package repository

import (
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"time"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

type CourseFilter struct {
	Published    *bool
	InstructorID uint
	Search       string
}

// CreateWithInstructors 课程与讲师关联在同一事务中写入
func (r *CourseRepository) CreateWithInstructors(course *model.Course, instructorIDs []uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Instructors", "Modules").Create(course).Error; err != nil {
			return err
		}
		for _, uid := range instructorIDs {
			if err := tx.Create(&model.CourseInstructor{CourseID: course.ID, UserID: uid}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *CourseRepository) FindByID(id uint) (*model.Course, error) {
	var c model.Course
	err := r.DB.Preload("Instructors").First(&c, id).Error
	return &c, err
}

// FindTree 课程 + 模块 + 课时，按 order 排序
func (r *CourseRepository) FindTree(id uint) (*model.Course, error) {
	var c model.Course
	err := r.DB.
		Preload("Instructors").
		Preload("Modules", model.Ordered).
		Preload("Modules.Lectures", model.Ordered).
		Preload("Modules.Lectures.Resources").
		First(&c, id).Error
	return &c, err
}

func (r *CourseRepository) List(page, size int, filter CourseFilter) ([]model.Course, int64, error) {
	var cs []model.Course
	var total int64

	query := r.DB.Model(&model.Course{})
	if filter.Published != nil {
		query = query.Where("courses.is_published = ?", *filter.Published)
	}
	if filter.InstructorID > 0 {
		query = query.Joins("JOIN course_instructors ci ON ci.course_id = courses.id").
			Where("ci.user_id = ?", filter.InstructorID)
	}
	if filter.Search != "" {
		query = query.Where("courses.title LIKE ?", "%"+filter.Search+"%")
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Preload("Instructors").Order("courses.created_at desc").
		Offset(util.Offset(page, size)).Limit(size).Find(&cs).Error
	return cs, total, err
}

func (r *CourseRepository) Update(c *model.Course) error {
	return r.DB.Omit("Instructors", "Modules").Save(c).Error
}

// Delete 删除课程及其模块、课时、资源和测验，返回需要清理的资源文件
func (r *CourseRepository) Delete(id uint) ([]string, error) {
	var files []string
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		var moduleIDs []uint
		if err := tx.Model(&model.Module{}).Where("course_id = ?", id).Pluck("id", &moduleIDs).Error; err != nil {
			return err
		}
		var err error
		if files, err = deleteModules(tx, moduleIDs); err != nil {
			return err
		}
		if err := tx.Where("course_id = ?", id).Delete(&model.CourseInstructor{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM curriculum_courses WHERE course_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Course{}, id).Error
	})
	return files, err
}

// deleteModules 软删除不会触发外键级联，逐层删除子记录
func deleteModules(tx *gorm.DB, ids []uint) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var lectureIDs []uint
	if err := tx.Model(&model.Lecture{}).Where("module_id IN ?", ids).Pluck("id", &lectureIDs).Error; err != nil {
		return nil, err
	}
	files, err := deleteLectures(tx, lectureIDs)
	if err != nil {
		return nil, err
	}
	return files, tx.Scopes(model.ByIDs(ids)).Delete(&model.Module{}).Error
}

func deleteLectures(tx *gorm.DB, ids []uint) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var files []string
	if err := tx.Model(&model.Resource{}).Where("lecture_id IN ? AND file_name <> ''", ids).
		Pluck("file_name", &files).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("lecture_id IN ?", ids).Delete(&model.Resource{}).Error; err != nil {
		return nil, err
	}
	var assessmentIDs []uint
	if err := tx.Model(&model.Assessment{}).Where("lecture_id IN ?", ids).Pluck("id", &assessmentIDs).Error; err != nil {
		return nil, err
	}
	if err := deleteAssessments(tx, assessmentIDs); err != nil {
		return nil, err
	}
	return files, tx.Scopes(model.ByIDs(ids)).Delete(&model.Lecture{}).Error
}

// deleteAssessments 删除测验与题目，并作废仍在进行中的会话
func deleteAssessments(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Model(&model.AssessmentScreenSession{}).
		Where("assessment_id IN ? AND status IN ?", ids, openStatuses()).
		Updates(map[string]interface{}{"status": model.SessionExpired, "ended_at": time.Now()}).Error; err != nil {
		return err
	}
	if err := tx.Where("assessment_id IN ?", ids).Delete(&model.AssessmentQuestion{}).Error; err != nil {
		return err
	}
	return tx.Scopes(model.ByIDs(ids)).Delete(&model.Assessment{}).Error
}

func (r *CourseRepository) AddInstructor(courseID, userID uint) error {
	return r.DB.Where(model.CourseInstructor{CourseID: courseID, UserID: userID}).
		FirstOrCreate(&model.CourseInstructor{}).Error
}

func (r *CourseRepository) RemoveInstructor(courseID, userID uint) error {
	return r.DB.Where("course_id = ? AND user_id = ?", courseID, userID).Delete(&model.CourseInstructor{}).Error
}

func (r *CourseRepository) IsInstructor(courseID, userID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.CourseInstructor{}).
		Where("course_id = ? AND user_id = ?", courseID, userID).Count(&count).Error
	return count > 0, err
}

// Modules

func (r *CourseRepository) CreateModule(m *model.Module) error {
	return r.DB.Create(m).Error
}

func (r *CourseRepository) FindModule(id uint) (*model.Module, error) {
	var m model.Module
	err := r.DB.First(&m, id).Error
	return &m, err
}

func (r *CourseRepository) ListModules(courseID uint) ([]model.Module, error) {
	var ms []model.Module
	err := r.DB.Where("course_id = ?", courseID).Scopes(model.Ordered).Find(&ms).Error
	return ms, err
}

func (r *CourseRepository) UpdateModule(m *model.Module) error {
	return r.DB.Omit("Lectures").Save(m).Error
}

// DeleteModule 删除模块及其课时，返回需要清理的资源文件
func (r *CourseRepository) DeleteModule(id uint) ([]string, error) {
	var files []string
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		files, err = deleteModules(tx, []uint{id})
		return err
	})
	return files, err
}

// Lectures

func (r *CourseRepository) CreateLecture(l *model.Lecture) error {
	return r.DB.Create(l).Error
}

func (r *CourseRepository) FindLecture(id uint) (*model.Lecture, error) {
	var l model.Lecture
	err := r.DB.Preload("Resources").Preload("Assessments").First(&l, id).Error
	return &l, err
}

func (r *CourseRepository) ListLectures(moduleID uint) ([]model.Lecture, error) {
	var ls []model.Lecture
	err := r.DB.Where("module_id = ?", moduleID).Scopes(model.Ordered).Find(&ls).Error
	return ls, err
}

func (r *CourseRepository) UpdateLecture(l *model.Lecture) error {
	return r.DB.Omit("Resources", "Assessments").Save(l).Error
}

// DeleteLecture 删除课时及其资源和测验，返回需要清理的资源文件
func (r *CourseRepository) DeleteLecture(id uint) ([]string, error) {
	var files []string
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		files, err = deleteLectures(tx, []uint{id})
		return err
	})
	return files, err
}

// CourseIDOfLecture 课时所属课程
func (r *CourseRepository) CourseIDOfLecture(lectureID uint) (uint, error) {
	var courseID uint
	err := r.DB.Table("lectures").
		Select("modules.course_id").
		Joins("JOIN modules ON modules.id = lectures.module_id").
		Where("lectures.id = ?", lectureID).
		Scan(&courseID).Error
	if err == nil && courseID == 0 {
		err = gorm.ErrRecordNotFound
	}
	return courseID, err
}

// Resources

func (r *CourseRepository) CreateResource(res *model.Resource) error {
	return r.DB.Create(res).Error
}

func (r *CourseRepository) FindResource(id uint) (*model.Resource, error) {
	var res model.Resource
	err := r.DB.First(&res, id).Error
	return &res, err
}

func (r *CourseRepository) ListResources(lectureID uint) ([]model.Resource, error) {
	var rs []model.Resource
	err := r.DB.Where("lecture_id = ?", lectureID).Order("created_at asc").Find(&rs).Error
	return rs, err
}

func (r *CourseRepository) DeleteResource(id uint) error {
	return r.DB.Delete(&model.Resource{}, id).Error
}

func (r *CourseRepository) Count() (int64, error) {
	var n int64
	err := r.DB.Model(&model.Course{}).Count(&n).Error
	return n, err
}
