package repository

import (
	"testing"

	"lms_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type courseTree struct {
	course   *model.Course
	modules  []*model.Module
	lectures []*model.Lecture // 每个模块两个课时
	quizzes  []*model.Assessment
	session  *model.AssessmentScreenSession
}

// seedCourseTree 两个模块，每个课时带一个文件资源和一份已发布测验
func seedCourseTree(t *testing.T, db *gorm.DB) *courseTree {
	t.Helper()
	repo := NewCourseRepository(db)
	trainer := createUser(t, db, "trainer@lms.local")
	trainee := createUser(t, db, "trainee@lms.local")

	tree := &courseTree{course: &model.Course{Title: "Go in production", Image: "image/cover.png", IsPublished: true}}
	require.NoError(t, repo.CreateWithInstructors(tree.course, []uint{trainer.ID}))

	for m := 0; m < 2; m++ {
		mod := &model.Module{CourseID: tree.course.ID, Title: "module", Order: m}
		require.NoError(t, repo.CreateModule(mod))
		tree.modules = append(tree.modules, mod)
		for l := 0; l < 2; l++ {
			lec := &model.Lecture{ModuleID: mod.ID, Title: "lecture", Order: l}
			require.NoError(t, repo.CreateLecture(lec))
			tree.lectures = append(tree.lectures, lec)

			require.NoError(t, db.Create(&model.Resource{
				LectureID: lec.ID, Kind: "pdf", FileName: "pdf/" + lecKey(len(tree.lectures)), UploaderID: trainer.ID,
			}).Error)
			require.NoError(t, db.Create(&model.Resource{LectureID: lec.ID, Kind: "document", URL: "https://example.com/doc"}).Error)

			lectureID := lec.ID
			quiz := &model.Assessment{LectureID: &lectureID, Title: "quiz", IsPublished: true, CreatedBy: trainer.ID}
			require.NoError(t, db.Omit("Questions").Create(quiz).Error)
			require.NoError(t, db.Create(&model.AssessmentQuestion{
				AssessmentID: quiz.ID, QuestionType: model.QuestionTrueFalse, Content: "?", Answer: "true", Points: 1,
			}).Error)
			tree.quizzes = append(tree.quizzes, quiz)
		}
	}

	tree.session = &model.AssessmentScreenSession{
		UserID: trainee.ID, AssessmentID: tree.quizzes[0].ID, Status: model.SessionRecording, StartedAt: testNow,
	}
	require.NoError(t, NewProctorRepository(db).CreateSession(tree.session))

	batches := NewBatchRepository(db)
	curriculum := &model.Curriculum{Name: "track"}
	require.NoError(t, batches.CreateWithCurriculum(newBatch("B-1"), curriculum))
	require.NoError(t, batches.AddCourse(curriculum, tree.course.ID))
	return tree
}

func lecKey(n int) string {
	return string(rune('a'+n-1)) + ".pdf"
}

func TestDeleteLecture_RemovesChildren(t *testing.T) {
	db := newTestDB(t)
	tree := seedCourseTree(t, db)
	repo := NewCourseRepository(db)

	files, err := repo.DeleteLecture(tree.lectures[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"pdf/a.pdf"}, files)

	_, err = repo.FindLecture(tree.lectures[0].ID)
	assert.True(t, IsNotFound(err))
	assert.EqualValues(t, 0, countRows(t, db, &model.Resource{}, "lecture_id = ?", tree.lectures[0].ID))
	assert.EqualValues(t, 0, countRows(t, db, &model.Assessment{}, "id = ?", tree.quizzes[0].ID))
	assert.EqualValues(t, 0, countRows(t, db, &model.AssessmentQuestion{}, "assessment_id = ?", tree.quizzes[0].ID))

	// 进行中的监考会话随测验一起作废
	sess, err := NewProctorRepository(db).FindSession(tree.session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionExpired, sess.Status)
	assert.NotNil(t, sess.EndedAt)

	// 同模块的其他课时不受影响
	_, err = repo.FindLecture(tree.lectures[1].ID)
	assert.NoError(t, err)
	assert.EqualValues(t, 1, countRows(t, db, &model.Assessment{}, "id = ?", tree.quizzes[1].ID))
}

func TestDeleteModule_RemovesLecturesAndQuizzes(t *testing.T) {
	db := newTestDB(t)
	tree := seedCourseTree(t, db)
	repo := NewCourseRepository(db)

	files, err := repo.DeleteModule(tree.modules[1].ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pdf/c.pdf", "pdf/d.pdf"}, files)

	_, err = repo.FindModule(tree.modules[1].ID)
	assert.True(t, IsNotFound(err))
	assert.EqualValues(t, 0, countRows(t, db, &model.Lecture{}, "module_id = ?", tree.modules[1].ID))
	assert.EqualValues(t, 0, countRows(t, db, &model.Assessment{}, "id IN ?", []uint{tree.quizzes[2].ID, tree.quizzes[3].ID}))

	ms, err := repo.ListModules(tree.course.ID)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, tree.modules[0].ID, ms[0].ID)
}

func TestDeleteCourse_RemovesWholeTree(t *testing.T) {
	db := newTestDB(t)
	tree := seedCourseTree(t, db)
	repo := NewCourseRepository(db)

	files, err := repo.Delete(tree.course.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pdf/a.pdf", "pdf/b.pdf", "pdf/c.pdf", "pdf/d.pdf"}, files)

	_, err = repo.FindTree(tree.course.ID)
	assert.True(t, IsNotFound(err))
	assert.EqualValues(t, 0, countRows(t, db, &model.Module{}, "course_id = ?", tree.course.ID))
	assert.EqualValues(t, 0, countRows(t, db, &model.Lecture{}, "1 = 1"))
	assert.EqualValues(t, 0, countRows(t, db, &model.Resource{}, "1 = 1"))
	assert.EqualValues(t, 0, countRows(t, db, &model.Assessment{}, "1 = 1"))
	assert.EqualValues(t, 0, countRows(t, db, &model.AssessmentQuestion{}, "1 = 1"))
	assert.EqualValues(t, 0, countRows(t, db, &model.CourseInstructor{}, "course_id = ?", tree.course.ID))

	var linked int64
	require.NoError(t, db.Table("curriculum_courses").Where("course_id = ?", tree.course.ID).Count(&linked).Error)
	assert.EqualValues(t, 0, linked)

	// 不属于任何课时的测验不受影响
	standalone := &model.Assessment{Title: "placement", IsPublished: true}
	require.NoError(t, db.Omit("Questions").Create(standalone).Error)
	_, err = repo.Delete(tree.course.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, countRows(t, db, &model.Assessment{}, "id = ?", standalone.ID))
}

func TestCourseTree_OrderedChildren(t *testing.T) {
	db := newTestDB(t)
	repo := NewCourseRepository(db)
	course := &model.Course{Title: "ordering"}
	require.NoError(t, repo.CreateWithInstructors(course, nil))
	for _, order := range []int{2, 0, 1} {
		require.NoError(t, repo.CreateModule(&model.Module{CourseID: course.ID, Title: "m", Order: order}))
	}

	tree, err := repo.FindTree(course.ID)
	require.NoError(t, err)
	require.Len(t, tree.Modules, 3)
	for i, m := range tree.Modules {
		assert.Equal(t, i, m.Order)
	}
}
