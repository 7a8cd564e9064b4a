package model

import (
	"time"
)

type RoleName string

const (
	Admin   RoleName = "admin"
	Trainer RoleName = "trainer"
	Trainee RoleName = "trainee"
)

var AllRoles = []RoleName{Admin, Trainer, Trainee}

func (r RoleName) Valid() bool {
	for _, v := range AllRoles {
		if v == r {
			return true
		}
	}
	return false
}

// swagger:model User
type User struct {
	BaseModel
	Name      string     `gorm:"size:100;not null" json:"name"`
	Email     string     `gorm:"size:100;uniqueIndex;not null" json:"email"`
	IsActive  bool       `gorm:"default:true" json:"isActive"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	Roles     []Role     `gorm:"many2many:user_roles;" json:"roles"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, string(r.Name))
	}
	return names
}

func (u *User) HasRole(name RoleName) bool {
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

type Role struct {
	ID          uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        RoleName     `gorm:"size:20;uniqueIndex;not null" json:"name"`
	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions,omitempty"`
}

func (Role) TableName() string {
	return "roles"
}

type Permission struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Code string `gorm:"size:64;uniqueIndex;not null" json:"code"`
}

func (Permission) TableName() string {
	return "permissions"
}

// UserPassword keeps the password history of a user. IsCurrent is either
// true or NULL; the unique index on (user_id, is_current) lets MySQL hold
// any number of NULL rows but only one current row per user.
type UserPassword struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_current_password,priority:1;index" json:"userId"`
	Hash      string    `gorm:"size:100;not null" json:"-"`
	IsCurrent *bool     `gorm:"uniqueIndex:idx_user_current_password,priority:2" json:"isCurrent"`
	CreatedAt time.Time `json:"createdAt"`
}

func (UserPassword) TableName() string {
	return "user_passwords"
}

// CurrentFlag returns the value stored in UserPassword.IsCurrent for a current row.
func CurrentFlag() *bool {
	t := true
	return &t
}
