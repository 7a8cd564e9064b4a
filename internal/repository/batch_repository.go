package repository

import (
	"lms_backend/internal/model"
	"lms_backend/internal/util"

	"gorm.io/gorm"
)

type BatchRepository struct {
	DB *gorm.DB
}

func NewBatchRepository(db *gorm.DB) *BatchRepository {
	return &BatchRepository{DB: db}
}

// CreateWithCurriculum 批次与课程体系在同一事务中创建
func (r *BatchRepository) CreateWithCurriculum(batch *model.Batch, curriculum *model.Curriculum) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Trainees", "Curriculum").Create(batch).Error; err != nil {
			return err
		}
		curriculum.BatchID = batch.ID
		if err := tx.Omit("Quarters", "Courses").Create(curriculum).Error; err != nil {
			return err
		}
		batch.Curriculum = curriculum
		return nil
	})
}

// UpdateWithCurriculumName 更新批次并同步课程体系名称
func (r *BatchRepository) UpdateWithCurriculumName(batch *model.Batch, curriculumName string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Trainees", "Curriculum").Save(batch).Error; err != nil {
			return err
		}
		return tx.Model(&model.Curriculum{}).
			Where("batch_id = ?", batch.ID).
			Update("name", curriculumName).Error
	})
}

func (r *BatchRepository) FindByID(id uint) (*model.Batch, error) {
	var b model.Batch
	err := r.DB.
		Preload("Trainees").
		Preload("Curriculum").
		Preload("Curriculum.Quarters", func(db *gorm.DB) *gorm.DB { return db.Order("number asc") }).
		Preload("Curriculum.Courses").
		First(&b, id).Error
	return &b, err
}

func (r *BatchRepository) List(page, size int, search string) ([]model.Batch, int64, error) {
	var bs []model.Batch
	var total int64

	query := r.DB.Model(&model.Batch{})
	if search != "" {
		term := "%" + search + "%"
		query = query.Where("code LIKE ? OR location LIKE ?", term, term)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Preload("Curriculum").Order("start_date desc").
		Offset(util.Offset(page, size)).Limit(size).Find(&bs).Error
	return bs, total, err
}

func (r *BatchRepository) ListForTrainee(userID uint) ([]model.Batch, error) {
	var bs []model.Batch
	err := r.DB.
		Joins("JOIN batch_trainees bt ON bt.batch_id = batches.id").
		Where("bt.user_id = ?", userID).
		Preload("Curriculum").
		Order("batches.start_date desc").
		Find(&bs).Error
	return bs, err
}

func (r *BatchRepository) BatchIDsForTrainee(userID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Table("batch_trainees").Where("user_id = ?", userID).Pluck("batch_id", &ids).Error
	return ids, err
}

func (r *BatchRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		batch := &model.Batch{BaseModel: model.BaseModel{ID: id}}
		if err := tx.Model(batch).Association("Trainees").Clear(); err != nil {
			return err
		}
		if err := tx.Where("batch_id = ?", id).Delete(&model.Curriculum{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Batch{}, id).Error
	})
}

func (r *BatchRepository) AddTrainees(batch *model.Batch, users []model.User) error {
	return r.DB.Model(batch).Association("Trainees").Append(users)
}

func (r *BatchRepository) RemoveTrainee(batch *model.Batch, userID uint) error {
	return r.DB.Model(batch).Association("Trainees").
		Delete(&model.User{BaseModel: model.BaseModel{ID: userID}})
}

func (r *BatchRepository) FindCurriculum(batchID uint) (*model.Curriculum, error) {
	var c model.Curriculum
	err := r.DB.Where("batch_id = ?", batchID).
		Preload("Quarters", func(db *gorm.DB) *gorm.DB { return db.Order("number asc") }).
		Preload("Courses").
		First(&c).Error
	return &c, err
}

func (r *BatchRepository) UpdateCurriculumDescription(c *model.Curriculum) error {
	return r.DB.Model(c).Update("description", c.Description).Error
}

// ReplaceQuarters 整体替换季度集合
func (r *BatchRepository) ReplaceQuarters(curriculumID uint, quarters []model.Quarter) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("curriculum_id = ?", curriculumID).Delete(&model.Quarter{}).Error; err != nil {
			return err
		}
		for i := range quarters {
			quarters[i].ID = 0
			quarters[i].CurriculumID = curriculumID
		}
		if len(quarters) == 0 {
			return nil
		}
		return tx.Create(&quarters).Error
	})
}

func (r *BatchRepository) AddCourse(c *model.Curriculum, courseID uint) error {
	return r.DB.Model(c).Association("Courses").
		Append(&model.Course{BaseModel: model.BaseModel{ID: courseID}})
}

func (r *BatchRepository) RemoveCourse(c *model.Curriculum, courseID uint) error {
	return r.DB.Model(c).Association("Courses").
		Delete(&model.Course{BaseModel: model.BaseModel{ID: courseID}})
}

func (r *BatchRepository) Count() (int64, error) {
	var n int64
	err := r.DB.Model(&model.Batch{}).Count(&n).Error
	return n, err
}
