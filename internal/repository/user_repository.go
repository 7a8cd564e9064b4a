package repository

import (
	"errors"
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// UserFilter 用户列表筛选条件
type UserFilter struct {
	Role   string
	Search string
	Active *bool
}

// CreateWithPassword 在同一事务中写入用户、角色关联和当前密码
func (r *UserRepository) CreateWithPassword(user *model.User, hash string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return tx.Create(&model.UserPassword{
			UserID:    user.ID,
			Hash:      hash,
			IsCurrent: model.CurrentFlag(),
		}).Error
	})
}

func (r *UserRepository) FindByID(id uint) (*model.User, error) {
	var user model.User
	err := r.DB.Preload("Roles").First(&user, id).Error
	return &user, err
}

func (r *UserRepository) FindByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.DB.Preload("Roles").Where("email = ?", email).First(&user).Error
	return &user, err
}

func (r *UserRepository) EmailExists(email string) (bool, error) {
	var count int64
	err := r.DB.Model(&model.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) List(page, size int, filter UserFilter) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	query := r.DB.Model(&model.User{})
	if filter.Role != "" {
		query = query.Where("users.id IN (?)",
			r.DB.Table("user_roles").
				Select("user_roles.user_id").
				Joins("JOIN roles ON roles.id = user_roles.role_id").
				Where("roles.name = ?", filter.Role))
	}
	if filter.Search != "" {
		term := "%" + filter.Search + "%"
		query = query.Where("users.name LIKE ? OR users.email LIKE ?", term, term)
	}
	if filter.Active != nil {
		query = query.Where("users.is_active = ?", *filter.Active)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := util.Offset(page, size)
	err := query.Preload("Roles").Order("users.created_at DESC").Offset(offset).Limit(size).Find(&users).Error
	return users, total, err
}

func (r *UserRepository) Update(user *model.User) error {
	return r.DB.Omit("Roles").Save(user).Error
}

func (r *UserRepository) ReplaceRoles(user *model.User, roles []model.Role) error {
	return r.DB.Model(user).Association("Roles").Replace(roles)
}

func (r *UserRepository) Delete(id uint) error {
	return r.DB.Select(clause.Associations).Delete(&model.User{BaseModel: model.BaseModel{ID: id}}).Error
}

func (r *UserRepository) SetActive(id uint, active bool) error {
	res := r.DB.Model(&model.User{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *UserRepository) UpdateLastLogin(id uint, at time.Time) error {
	return r.DB.Model(&model.User{}).Where("id = ?", id).UpdateColumn("last_login", at).Error
}

func (r *UserRepository) FindRoles(names []model.RoleName) ([]model.Role, error) {
	var roles []model.Role
	err := r.DB.Where("name IN ?", names).Find(&roles).Error
	return roles, err
}

func (r *UserRepository) CurrentPassword(userID uint) (*model.UserPassword, error) {
	var p model.UserPassword
	err := r.DB.Where("user_id = ? AND is_current = ?", userID, true).First(&p).Error
	return &p, err
}

func (r *UserRepository) RecentPasswords(userID uint, n int) ([]model.UserPassword, error) {
	var ps []model.UserPassword
	err := r.DB.Where("user_id = ?", userID).Order("created_at DESC, id DESC").Limit(n).Find(&ps).Error
	return ps, err
}

// SetPassword 将旧的当前密码置为 NULL 后插入新密码，唯一索引保证每个用户只有一条当前密码
func (r *UserRepository) SetPassword(userID uint, hash string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.UserPassword{}).
			Where("user_id = ? AND is_current = ?", userID, true).
			Update("is_current", gorm.Expr("NULL")).Error; err != nil {
			return err
		}
		return tx.Create(&model.UserPassword{
			UserID:    userID,
			Hash:      hash,
			IsCurrent: model.CurrentFlag(),
		}).Error
	})
}

func (r *UserRepository) CountByRole() (map[model.RoleName]int64, error) {
	type row struct {
		Name  model.RoleName
		Total int64
	}
	var rows []row
	err := r.DB.Table("user_roles").
		Select("roles.name AS name, COUNT(DISTINCT user_roles.user_id) AS total").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Joins("JOIN users ON users.id = user_roles.user_id AND users.deleted_at IS NULL").
		Group("roles.name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.RoleName]int64, len(rows))
	for _, r := range rows {
		counts[r.Name] = r.Total
	}
	return counts, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate 唯一索引冲突，MySQL 错误码 1062
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
