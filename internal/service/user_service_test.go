package service

import (
	"strings"
	"testing"

	"lms_backend/internal/model"
	"lms_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	store := newFakeUserStore()
	mails := &fakeMailer{}
	svc := NewUserService(store, mails, "LMS")

	u, err := svc.CreateUser(CreateUserInput{
		Name:  "Carol",
		Email: " Carol@Example.com",
		Roles: []model.RoleName{"Trainer", model.Trainee, model.Trainer},
	})
	require.NoError(t, err)
	assert.Equal(t, "carol@example.com", u.Email)
	assert.True(t, u.IsActive)
	assert.Len(t, u.Roles, 2)

	require.Len(t, mails.sent, 1)
	assert.Equal(t, "carol@example.com", mails.sent[0].ToAddress)
	assert.Contains(t, mails.sent[0].TextContent, "Temporary password")

	_, err = svc.CreateUser(CreateUserInput{Name: "Carol", Email: "carol@example.com", Roles: []model.RoleName{model.Trainee}})
	assert.ErrorIs(t, err, util.ErrEmailRegistered)
}

func TestCreateUser_Validation(t *testing.T) {
	svc := NewUserService(newFakeUserStore(), &fakeMailer{}, "LMS")

	tests := []struct {
		name string
		in   CreateUserInput
		want error
	}{
		{"empty name", CreateUserInput{Name: " ", Email: "a@example.com", Roles: []model.RoleName{model.Trainee}}, util.ErrValidation},
		{"bad email", CreateUserInput{Name: "A", Email: "not-an-email", Roles: []model.RoleName{model.Trainee}}, util.ErrValidation},
		{"no roles", CreateUserInput{Name: "A", Email: "a@example.com"}, util.ErrInvalidRole},
		{"unknown role", CreateUserInput{Name: "A", Email: "a@example.com", Roles: []model.RoleName{"student"}}, util.ErrInvalidRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateUser(tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUpdateUser(t *testing.T) {
	store := newFakeUserStore()
	existing := store.addUser("Dave", "dave@example.com", "password", true, model.Trainee)
	other := store.addUser("Erin", "erin@example.com", "password", true, model.Trainee)
	svc := NewUserService(store, &fakeMailer{}, "LMS")

	email := "dave@example.com"
	_, err := svc.UpdateUser(other.ID, UpdateUserInput{Email: &email})
	assert.ErrorIs(t, err, util.ErrEmailRegistered)

	name := "David"
	u, err := svc.UpdateUser(existing.ID, UpdateUserInput{Name: &name, Roles: []model.RoleName{model.Trainer}})
	require.NoError(t, err)
	assert.Equal(t, "David", u.Name)
	require.Len(t, u.Roles, 1)
	assert.Equal(t, model.Trainer, u.Roles[0].Name)

	_, err = svc.UpdateUser(999, UpdateUserInput{Name: &name})
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}

func TestSetActive_BlocksLogin(t *testing.T) {
	store := newFakeUserStore()
	u := store.addUser("Frank", "frank@example.com", "password", true, model.Trainee)
	users := NewUserService(store, &fakeMailer{}, "LMS")
	auth := newAuthService(store)

	require.NoError(t, users.SetActive(u.ID, false))
	_, err := auth.Login("frank@example.com", "password")
	assert.ErrorIs(t, err, util.ErrAccountDisabled)

	require.NoError(t, users.SetActive(u.ID, true))
	_, err = auth.Login("frank@example.com", "password")
	assert.NoError(t, err)

	assert.ErrorIs(t, users.SetActive(999, false), util.ErrUserNotFound)
}

func TestResetPassword(t *testing.T) {
	store := newFakeUserStore()
	u := store.addUser("Gina", "gina@example.com", "old-password", true, model.Trainee)
	mails := &fakeMailer{}
	svc := NewUserService(store, mails, "LMS")

	require.NoError(t, svc.ResetPassword(u.ID))
	require.Len(t, mails.sent, 1)

	_, err := newAuthService(store).Login("gina@example.com", "old-password")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
}

func TestImportCSV(t *testing.T) {
	store := newFakeUserStore()
	store.addUser("Existing", "taken@example.com", "password", true, model.Trainee)
	svc := NewUserService(store, &fakeMailer{}, "LMS")

	csvData := "\ufeffName,Email,Role,Password\n" +
		"Hank,hank@example.com,trainee,\n" +
		"Ivy,ivy@example.com,trainer;trainee,secret-pass\n" +
		"Dup,taken@example.com,trainee,\n" +
		"Bad,not-an-email,trainee,\n" +
		"Nobody,nobody@example.com,student,\n"

	res, err := svc.ImportCSV(strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 3, res.Failed)

	require.Len(t, res.Rows, 5)
	assert.True(t, res.Rows[0].Success)
	assert.Equal(t, 2, res.Rows[0].Row)
	assert.True(t, res.Rows[1].Success)
	assert.False(t, res.Rows[2].Success)
	assert.Contains(t, res.Rows[2].Error, util.ErrEmailRegistered.Error())
	assert.False(t, res.Rows[3].Success)
	assert.False(t, res.Rows[4].Success)

	ivy, err := store.FindByEmail("ivy@example.com")
	require.NoError(t, err)
	assert.True(t, ivy.HasRole(model.Trainer))
	assert.True(t, ivy.HasRole(model.Trainee))

	_, err = newAuthService(store).Login("ivy@example.com", "secret-pass")
	assert.NoError(t, err)
}

func TestImportCSV_MissingColumn(t *testing.T) {
	svc := NewUserService(newFakeUserStore(), &fakeMailer{}, "LMS")
	_, err := svc.ImportCSV(strings.NewReader("name,email\nA,a@example.com\n"))
	assert.ErrorIs(t, err, util.ErrInvalidCSV)

	_, err = svc.ImportCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, util.ErrInvalidCSV)
}
