package repository

import (
	"testing"

	"lms_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetPassword_SingleCurrentRow(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)

	roles, err := repo.FindRoles([]model.RoleName{model.Trainee})
	require.NoError(t, err)
	require.Len(t, roles, 1)

	user := &model.User{Name: "Trainee", Email: "trainee@lms.local", IsActive: true, Roles: roles}
	require.NoError(t, repo.CreateWithPassword(user, "hash-1"))
	require.NoError(t, repo.SetPassword(user.ID, "hash-2"))
	require.NoError(t, repo.SetPassword(user.ID, "hash-3"))

	assert.EqualValues(t, 1, countRows(t, db, &model.UserPassword{}, "user_id = ? AND is_current = ?", user.ID, true))
	assert.EqualValues(t, 3, countRows(t, db, &model.UserPassword{}, "user_id = ?", user.ID))

	current, err := repo.CurrentPassword(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash-3", current.Hash)

	recent, err := repo.RecentPasswords(user.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "hash-3", recent[0].Hash)
	assert.Equal(t, "hash-2", recent[1].Hash)

	// 唯一索引拒绝第二条当前密码
	err = db.Create(&model.UserPassword{UserID: user.ID, Hash: "rogue", IsCurrent: model.CurrentFlag()}).Error
	assert.Error(t, err)
}

func TestUserRepository_RolesAndActive(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)

	trainee, err := repo.FindRoles([]model.RoleName{model.Trainee})
	require.NoError(t, err)
	trainer, err := repo.FindRoles([]model.RoleName{model.Trainer})
	require.NoError(t, err)

	a := &model.User{Name: "A", Email: "a@lms.local", IsActive: true, Roles: trainee}
	b := &model.User{Name: "B", Email: "b@lms.local", IsActive: true, Roles: trainer}
	require.NoError(t, repo.CreateWithPassword(a, "h"))
	require.NoError(t, repo.CreateWithPassword(b, "h"))

	exists, err := repo.EmailExists("a@lms.local")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, repo.ReplaceRoles(b, append(trainer, trainee...)))
	found, err := repo.FindByID(b.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"trainer", "trainee"}, found.RoleNames())

	counts, err := repo.CountByRole()
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts[model.Trainee])
	assert.EqualValues(t, 1, counts[model.Trainer])

	require.NoError(t, repo.SetActive(a.ID, false))
	found, err = repo.FindByEmail("a@lms.local")
	require.NoError(t, err)
	assert.False(t, found.IsActive)
}
