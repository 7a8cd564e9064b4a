package service

import (
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// 修改密码时不能与最近几次密码相同
const passwordHistoryDepth = 3

var passwordCost = bcrypt.DefaultCost

type AuthService struct {
	UserRepo UserStore
	Cfg      *config.Config
}

func NewAuthService(userRepo UserStore, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Cfg:      cfg,
	}
}

type LoginResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Login 先检查账号状态再校验密码，停用账号无论密码是否正确都拒绝
func (s *AuthService) Login(email, password string) (*LoginResult, error) {
	user, err := s.UserRepo.FindByEmail(normalizeEmail(email))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, util.ErrAccountDisabled
	}

	current, err := s.UserRepo.CurrentPassword(user.ID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrInvalidCredentials
		}
		return nil, err
	}
	if !checkPassword(current.Hash, password) {
		return nil, util.ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.UserRepo.UpdateLastLogin(user.ID, now); err != nil {
		logger.Log.Warn("Failed to update last login", zap.Uint("userId", user.ID), zap.Error(err))
	} else {
		user.LastLogin = &now
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: user}, nil
}

func (s *AuthService) Profile(userID uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(userID)
	if repository.IsNotFound(err) {
		return nil, util.ErrUserNotFound
	}
	return user, err
}

// ChangePassword 校验当前密码，拒绝复用最近的密码
func (s *AuthService) ChangePassword(userID uint, currentPassword, newPassword string) error {
	current, err := s.UserRepo.CurrentPassword(userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return util.ErrUserNotFound
		}
		return err
	}
	if !checkPassword(current.Hash, currentPassword) {
		return util.ErrWrongPassword
	}

	history, err := s.UserRepo.RecentPasswords(userID, passwordHistoryDepth)
	if err != nil {
		return err
	}
	for _, p := range history {
		if checkPassword(p.Hash, newPassword) {
			return util.ErrPasswordReused
		}
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.UserRepo.SetPassword(userID, hash)
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
