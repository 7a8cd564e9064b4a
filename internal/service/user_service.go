package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	mailer "lms_backend/pkg/mail"
	"net/mail"
	"strings"
	"time"
)

// UserStore 用户与密码历史的持久化接口，由 repository.UserRepository 实现
type UserStore interface {
	CreateWithPassword(user *model.User, hash string) error
	FindByID(id uint) (*model.User, error)
	FindByEmail(email string) (*model.User, error)
	EmailExists(email string) (bool, error)
	List(page, size int, filter repository.UserFilter) ([]model.User, int64, error)
	Update(user *model.User) error
	ReplaceRoles(user *model.User, roles []model.Role) error
	Delete(id uint) error
	SetActive(id uint, active bool) error
	UpdateLastLogin(id uint, at time.Time) error
	FindRoles(names []model.RoleName) ([]model.Role, error)
	CurrentPassword(userID uint) (*model.UserPassword, error)
	RecentPasswords(userID uint, n int) ([]model.UserPassword, error)
	SetPassword(userID uint, hash string) error
}

const tempPasswordLength = 12

// UserService 处理用户相关的业务逻辑
type UserService struct {
	UserRepo UserStore
	Mailer   mailer.Sender
	AppName  string
}

func NewUserService(userRepo UserStore, sender mailer.Sender, appName string) *UserService {
	return &UserService{
		UserRepo: userRepo,
		Mailer:   sender,
		AppName:  appName,
	}
}

// swagger:model CreateUserInput
type CreateUserInput struct {
	Name     string           `json:"name" binding:"required"`
	Email    string           `json:"email" binding:"required"`
	Password string           `json:"password"`
	Roles    []model.RoleName `json:"roles" binding:"required"`
}

// swagger:model UpdateUserInput
type UpdateUserInput struct {
	Name  *string          `json:"name"`
	Email *string          `json:"email"`
	Roles []model.RoleName `json:"roles"`
}

func (s *UserService) ListUsers(page, size int, filter repository.UserFilter) ([]model.User, int64, error) {
	return s.UserRepo.List(page, size, filter)
}

func (s *UserService) GetUser(id uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(id)
	if repository.IsNotFound(err) {
		return nil, util.ErrUserNotFound
	}
	return user, err
}

// CreateUser 创建用户；未提供密码时生成临时密码并通过邮件发送
func (s *UserService) CreateUser(in CreateUserInput) (*model.User, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", util.ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email %q", util.ErrValidation, in.Email)
	}

	roles, err := s.resolveRoles(in.Roles)
	if err != nil {
		return nil, err
	}

	exists, err := s.UserRepo.EmailExists(email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, util.ErrEmailRegistered
	}

	password := in.Password
	generated := password == ""
	if generated {
		password = util.GenerateRandomString(tempPasswordLength)
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:     name,
		Email:    email,
		IsActive: true,
		Roles:    roles,
	}
	if err := s.UserRepo.CreateWithPassword(user, hash); err != nil {
		if repository.IsDuplicate(err) {
			return nil, util.ErrEmailRegistered
		}
		return nil, err
	}

	body := fmt.Sprintf("Hello %s,\n\nAn account has been created for you on %s.\nLogin email: %s\n", user.Name, s.AppName, user.Email)
	if generated {
		body += fmt.Sprintf("Temporary password: %s\nPlease change it after your first login.\n", password)
	}
	s.Mailer.Send(mailer.Message{
		ToName:      user.Name,
		ToAddress:   user.Email,
		Subject:     "Welcome",
		TextContent: body,
	})
	return user, nil
}

func (s *UserService) UpdateUser(id uint, in UpdateUserInput) (*model.User, error) {
	user, err := s.GetUser(id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", util.ErrValidation)
		}
		user.Name = name
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, fmt.Errorf("%w: invalid email %q", util.ErrValidation, *in.Email)
		}
		if email != user.Email {
			exists, err := s.UserRepo.EmailExists(email)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, util.ErrEmailRegistered
			}
			user.Email = email
		}
	}
	if err := s.UserRepo.Update(user); err != nil {
		if repository.IsDuplicate(err) {
			return nil, util.ErrEmailRegistered
		}
		return nil, err
	}

	if in.Roles != nil {
		roles, err := s.resolveRoles(in.Roles)
		if err != nil {
			return nil, err
		}
		if err := s.UserRepo.ReplaceRoles(user, roles); err != nil {
			return nil, err
		}
		user.Roles = roles
	}
	return user, nil
}

func (s *UserService) DeleteUser(id uint) error {
	if _, err := s.GetUser(id); err != nil {
		return err
	}
	return s.UserRepo.Delete(id)
}

func (s *UserService) SetActive(id uint, active bool) error {
	err := s.UserRepo.SetActive(id, active)
	if repository.IsNotFound(err) {
		return util.ErrUserNotFound
	}
	return err
}

// ResetPassword 生成临时密码并通过邮件发送
func (s *UserService) ResetPassword(id uint) error {
	user, err := s.GetUser(id)
	if err != nil {
		return err
	}

	password := util.GenerateRandomString(tempPasswordLength)
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	if err := s.UserRepo.SetPassword(user.ID, hash); err != nil {
		return err
	}

	s.Mailer.Send(mailer.Message{
		ToName:    user.Name,
		ToAddress: user.Email,
		Subject:   "Password reset",
		TextContent: fmt.Sprintf("Hello %s,\n\nYour password on %s has been reset.\nTemporary password: %s\n",
			user.Name, s.AppName, password),
	})
	return nil
}

// swagger:model ImportRowResult
type ImportRowResult struct {
	Row     int    `json:"row"`
	Email   string `json:"email"`
	Success bool   `json:"success"`
	UserID  uint   `json:"userId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// swagger:model ImportResult
type ImportResult struct {
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Rows      []ImportRowResult `json:"rows"`
}

// ImportCSV 批量导入用户，表头为 name,email,role[,password]；每行独立创建，单行失败不影响其他行
func (s *UserService) ImportCSV(r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidCSV, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, required := range []string{"name", "email", "role"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", util.ErrInvalidCSV, required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	result := &ImportResult{Rows: []ImportRowResult{}}
	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		res := ImportRowResult{Row: row}
		if err != nil {
			res.Error = err.Error()
			result.add(res)
			continue
		}

		res.Email = field(record, "email")
		user, err := s.CreateUser(CreateUserInput{
			Name:     field(record, "name"),
			Email:    res.Email,
			Password: field(record, "password"),
			Roles:    parseRoleList(field(record, "role")),
		})
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Success = true
			res.UserID = user.ID
		}
		result.add(res)
	}
	return result, nil
}

func (r *ImportResult) add(row ImportRowResult) {
	r.Total++
	if row.Success {
		r.Succeeded++
	} else {
		r.Failed++
	}
	r.Rows = append(r.Rows, row)
}

func (s *UserService) resolveRoles(names []model.RoleName) ([]model.Role, error) {
	if len(names) == 0 {
		return nil, util.ErrInvalidRole
	}
	seen := make(map[model.RoleName]bool, len(names))
	uniq := make([]model.RoleName, 0, len(names))
	for _, n := range names {
		n = model.RoleName(strings.ToLower(strings.TrimSpace(string(n))))
		if !n.Valid() {
			return nil, fmt.Errorf("%w: %q", util.ErrInvalidRole, n)
		}
		if !seen[n] {
			seen[n] = true
			uniq = append(uniq, n)
		}
	}

	roles, err := s.UserRepo.FindRoles(uniq)
	if err != nil {
		return nil, err
	}
	if len(roles) != len(uniq) {
		return nil, util.ErrInvalidRole
	}
	return roles, nil
}

// parseRoleList 支持 "trainer;trainee" 形式的多角色
func parseRoleList(s string) []model.RoleName {
	var roles []model.RoleName
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == '|' }) {
		if part = strings.TrimSpace(part); part != "" {
			roles = append(roles, model.RoleName(part))
		}
	}
	return roles
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
