package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/database"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.SetupJoinTables(db))
	require.NoError(t, database.Migrate(db, config.SeedConfig{}))
	return db
}

type courseFixture struct {
	db      *gorm.DB
	svc     *CourseService
	root    string
	trainer *model.User
}

func newCourseFixture(t *testing.T) *courseFixture {
	t.Helper()
	db := newSQLiteDB(t)
	users := repository.NewUserRepository(db)
	roles, err := users.FindRoles([]model.RoleName{model.Trainer})
	require.NoError(t, err)
	trainer := &model.User{Name: "Trainer", Email: "trainer@lms.local", IsActive: true, Roles: roles}
	require.NoError(t, users.CreateWithPassword(trainer, "h"))

	root := t.TempDir()
	storage := &StorageService{Provider: &LocalStorageProvider{Config: &config.StorageConfig{LocalPath: root}}}
	return &courseFixture{
		db:      db,
		svc:     NewCourseService(repository.NewCourseRepository(db), users, storage),
		root:    root,
		trainer: trainer,
	}
}

func (f *courseFixture) writeObject(t *testing.T, key string) {
	t.Helper()
	path := filepath.Join(f.root, filepath.FromSlash(key))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func (f *courseFixture) exists(key string) bool {
	_, err := os.Stat(filepath.Join(f.root, filepath.FromSlash(key)))
	return err == nil
}

func (f *courseFixture) lectureWithFile(t *testing.T, moduleID uint, key string) *model.Lecture {
	t.Helper()
	actor := Actor{UserID: f.trainer.ID}
	lec, err := f.svc.CreateLecture(actor, moduleID, LectureRequest{Title: key})
	require.NoError(t, err)
	f.writeObject(t, key)
	require.NoError(t, f.db.Create(&model.Resource{LectureID: lec.ID, Kind: "pdf", FileName: key}).Error)
	return lec
}

func TestCreateCourse_InstructorsMustBeTrainers(t *testing.T) {
	f := newCourseFixture(t)
	plain := &model.User{Name: "Plain", Email: "plain@lms.local", IsActive: true}
	require.NoError(t, f.db.Create(plain).Error)

	_, err := f.svc.CreateCourse(Actor{UserID: 1, Admin: true}, CourseRequest{Title: "x", InstructorIDs: []uint{plain.ID}})
	assert.ErrorIs(t, err, util.ErrInvalidRole)

	// 培训师创建课程时自动成为讲师
	course, err := f.svc.CreateCourse(Actor{UserID: f.trainer.ID}, CourseRequest{Title: "  Go  "})
	require.NoError(t, err)
	assert.Equal(t, "Go", course.Title)
	require.Len(t, course.Instructors, 1)
	assert.Equal(t, f.trainer.ID, course.Instructors[0].ID)

	_, err = f.svc.UpdateCourse(Actor{UserID: plain.ID}, course.ID, CourseRequest{Title: "hijack"})
	assert.ErrorIs(t, err, util.ErrNotInstructor)
}

func TestDeleteCourse_RemovesStoredFiles(t *testing.T) {
	f := newCourseFixture(t)
	ctx := context.Background()
	actor := Actor{UserID: f.trainer.ID}

	course, err := f.svc.CreateCourse(actor, CourseRequest{Title: "Go"})
	require.NoError(t, err)
	f.writeObject(t, "images/cover.png")
	require.NoError(t, f.db.Model(&model.Course{}).Where("id = ?", course.ID).
		Update("image", "/uploads/images/cover.png").Error)

	mod, err := f.svc.CreateModule(actor, course.ID, ModuleRequest{Title: "m1"})
	require.NoError(t, err)
	first := f.lectureWithFile(t, mod.ID, "resources/a.pdf")
	f.lectureWithFile(t, mod.ID, "resources/b.pdf")

	other, err := f.svc.CreateModule(actor, course.ID, ModuleRequest{Title: "m2"})
	require.NoError(t, err)
	f.lectureWithFile(t, other.ID, "resources/c.pdf")

	require.NoError(t, f.svc.DeleteLecture(ctx, actor, first.ID))
	assert.False(t, f.exists("resources/a.pdf"))
	assert.True(t, f.exists("resources/b.pdf"))

	require.NoError(t, f.svc.DeleteModule(ctx, actor, other.ID))
	assert.False(t, f.exists("resources/c.pdf"))
	assert.True(t, f.exists("resources/b.pdf"))

	require.NoError(t, f.svc.DeleteCourse(ctx, course.ID))
	assert.False(t, f.exists("resources/b.pdf"))
	assert.False(t, f.exists("images/cover.png"))

	_, err = f.svc.GetCourse(course.ID)
	assert.ErrorIs(t, err, util.ErrNotFound)
	assert.ErrorIs(t, f.svc.DeleteCourse(ctx, course.ID), util.ErrNotFound)
}
