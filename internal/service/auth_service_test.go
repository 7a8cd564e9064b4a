package service

import (
	"os"
	"testing"
	"time"

	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-with-at-least-32-characters"

func TestMain(m *testing.M) {
	passwordCost = bcrypt.MinCost
	os.Exit(m.Run())
}

func newAuthService(store UserStore) *AuthService {
	cfg := &config.Config{}
	cfg.JWT.Secret = testSecret
	cfg.JWT.ExpireTime = time.Hour
	return NewAuthService(store, cfg)
}

func TestLogin(t *testing.T) {
	store := newFakeUserStore()
	u := store.addUser("Alice", "alice@example.com", "correct-horse", true, model.Trainer)
	svc := newAuthService(store)

	res, err := svc.Login(" Alice@Example.com ", "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, u.ID, res.User.ID)
	require.NotNil(t, res.User.LastLogin)

	claims, err := util.ParseJWT(res.Token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.True(t, claims.HasRole(model.Trainer))
}

func TestLogin_Failures(t *testing.T) {
	store := newFakeUserStore()
	store.addUser("Alice", "alice@example.com", "correct-horse", true, model.Trainee)
	store.addUser("Bob", "bob@example.com", "correct-horse", false, model.Trainee)
	svc := newAuthService(store)

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"unknown email", "nobody@example.com", "correct-horse", util.ErrInvalidCredentials},
		{"wrong password", "alice@example.com", "wrong", util.ErrInvalidCredentials},
		// 停用账号即使密码正确也拒绝
		{"disabled correct password", "bob@example.com", "correct-horse", util.ErrAccountDisabled},
		{"disabled wrong password", "bob@example.com", "wrong", util.ErrAccountDisabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Login(tt.email, tt.password)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, res)
		})
	}
}

func TestChangePassword(t *testing.T) {
	store := newFakeUserStore()
	u := store.addUser("Alice", "alice@example.com", "password-1", true, model.Trainee)
	svc := newAuthService(store)

	assert.ErrorIs(t, svc.ChangePassword(u.ID, "nope", "password-2"), util.ErrWrongPassword)
	assert.ErrorIs(t, svc.ChangePassword(u.ID, "password-1", "password-1"), util.ErrPasswordReused)

	require.NoError(t, svc.ChangePassword(u.ID, "password-1", "password-2"))
	require.NoError(t, svc.ChangePassword(u.ID, "password-2", "password-3"))

	// 最近三次密码都不能复用
	assert.ErrorIs(t, svc.ChangePassword(u.ID, "password-3", "password-1"), util.ErrPasswordReused)
	assert.ErrorIs(t, svc.ChangePassword(u.ID, "password-3", "password-2"), util.ErrPasswordReused)

	require.NoError(t, svc.ChangePassword(u.ID, "password-3", "password-4"))
	require.NoError(t, svc.ChangePassword(u.ID, "password-4", "password-1"))

	_, err := svc.Login("alice@example.com", "password-4")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
	_, err = svc.Login("alice@example.com", "password-1")
	assert.NoError(t, err)
}
