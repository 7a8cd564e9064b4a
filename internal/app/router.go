package app

import (
	"lms_backend/docs"
	"lms_backend/internal/config"
	"lms_backend/internal/middleware"
	"lms_backend/internal/model"
	"lms_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.Health)

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.POST("/login", c.auth.Login)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		a.registerCommonRoutes(authGroup, c)
		a.registerTraineeRoutes(authGroup.Group("/trainee", middleware.RoleMiddleware(model.Trainee)), c)
		a.registerTrainerRoutes(authGroup.Group("/trainer", middleware.RoleMiddleware(model.Trainer)), c)
		a.registerAdminRoutes(authGroup.Group("/admin", middleware.RoleMiddleware(model.Admin)), c)
	}
}

func (a *App) registerCommonRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/profile", c.auth.Profile)
	rg.PUT("/profile/password", c.auth.ChangePassword)

	// 课程浏览
	rg.GET("/courses", c.course.ListCourses)
	rg.GET("/courses/:id", c.course.GetCourse)
	rg.GET("/courses/:id/modules", c.course.ListModules)
	rg.GET("/modules/:id/lectures", c.course.ListLectures)
	rg.GET("/lectures/:id", c.course.GetLecture)
	rg.GET("/lectures/:id/resources", c.course.ListResources)
	rg.GET("/lectures/:id/assessments", c.assessment.ListPublished)

	// 日历
	rg.GET("/calendar", c.calendar.ListEvents)
	rg.GET("/calendar/:id", c.calendar.GetEvent)
}

func (a *App) registerTraineeRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/dashboard", c.dashboard.TraineeDashboard)
	rg.GET("/batches", c.batch.MyBatches)
	rg.GET("/grades", c.quiz.MyGrades)

	// 测验作答
	rg.GET("/assessments/:id", c.quiz.GetQuiz)
	rg.GET("/assessments/:id/responses", c.quiz.MyResponses)
	rg.POST("/assessments/:id/sessions", c.quiz.StartSession)

	// 监考会话
	session := rg.Group("/sessions/:sessionId")
	{
		session.POST("/recording/start", c.quiz.StartRecording)
		session.POST("/recording", c.quiz.UploadRecording)
		session.PUT("/draft", c.quiz.SaveDraft)
		session.POST("/violations", c.quiz.ReportViolation)
		session.POST("/submit", c.quiz.Submit)
	}
}

func (a *App) registerTrainerRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/dashboard", c.dashboard.TrainerDashboard)

	// 课程管理
	rg.GET("/courses", c.course.TrainerCourses)
	rg.POST("/courses", c.course.CreateCourse)
	rg.PUT("/courses/:id", c.course.UpdateCourse)
	rg.PUT("/courses/:id/publish", c.course.PublishCourse)
	rg.POST("/courses/:id/image", c.course.UploadImage)
	rg.POST("/courses/:id/modules", c.course.CreateModule)
	rg.PUT("/modules/:id", c.course.UpdateModule)
	rg.DELETE("/modules/:id", c.course.DeleteModule)
	rg.POST("/modules/:id/lectures", c.course.CreateLecture)
	rg.PUT("/lectures/:id", c.course.UpdateLecture)
	rg.DELETE("/lectures/:id", c.course.DeleteLecture)
	rg.POST("/lectures/:id/resources", c.course.UploadResource)
	rg.DELETE("/resources/:id", c.course.DeleteResource)

	// 测验管理
	rg.GET("/assessments", c.assessment.ListAssessments)
	rg.POST("/assessments", c.assessment.CreateAssessment)
	rg.GET("/assessments/:id", c.assessment.GetAssessment)
	rg.PUT("/assessments/:id", c.assessment.UpdateAssessment)
	rg.DELETE("/assessments/:id", c.assessment.DeleteAssessment)
	rg.PUT("/assessments/:id/publish", c.assessment.PublishAssessment)
	rg.POST("/assessments/:id/questions", c.assessment.CreateQuestion)
	rg.PUT("/assessments/:id/questions", c.assessment.ReplaceQuestions)
	rg.POST("/assessments/:id/generate", c.assessment.GenerateQuestions)
	rg.GET("/assessments/:id/grades", c.assessment.ListGrades)
	rg.GET("/assessments/:id/sessions", c.assessment.ListSessions)
	rg.PUT("/questions/:id", c.assessment.UpdateQuestion)
	rg.DELETE("/questions/:id", c.assessment.DeleteQuestion)
	rg.PUT("/grades/:id", c.assessment.OverrideGrade)

	// 实时监考
	rg.GET("/proctor/ws", c.quiz.Monitor)

	// 日历
	rg.POST("/calendar", c.calendar.CreateEvent)
	rg.PUT("/calendar/:id", c.calendar.UpdateEvent)
	rg.DELETE("/calendar/:id", c.calendar.DeleteEvent)
}

func (a *App) registerAdminRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/dashboard", c.dashboard.AdminDashboard)

	// 用户管理
	rg.GET("/users", c.user.ListUsers)
	rg.POST("/users", c.user.CreateUser)
	rg.POST("/users/import", c.user.ImportUsers)
	rg.GET("/users/:id", c.user.GetUser)
	rg.PUT("/users/:id", c.user.UpdateUser)
	rg.DELETE("/users/:id", c.user.DeleteUser)
	rg.PUT("/users/:id/active", c.user.SetActive)
	rg.POST("/users/:id/reset-password", c.user.ResetPassword)

	// 课程
	rg.DELETE("/courses/:id", c.course.DeleteCourse)
	rg.POST("/courses/:id/instructors", c.course.AssignInstructor)
	rg.DELETE("/courses/:id/instructors/:userId", c.course.UnassignInstructor)

	// 批次与课程体系
	rg.GET("/batches", c.batch.ListBatches)
	rg.POST("/batches", c.batch.CreateBatch)
	rg.GET("/batches/:id", c.batch.GetBatch)
	rg.PUT("/batches/:id", c.batch.UpdateBatch)
	rg.DELETE("/batches/:id", c.batch.DeleteBatch)
	rg.POST("/batches/:id/trainees", c.batch.AddTrainees)
	rg.DELETE("/batches/:id/trainees/:userId", c.batch.RemoveTrainee)
	rg.GET("/batches/:id/curriculum", c.batch.GetCurriculum)
	rg.PUT("/batches/:id/curriculum", c.batch.UpdateCurriculum)
	rg.PUT("/batches/:id/quarters", c.batch.ReplaceQuarters)
	rg.POST("/batches/:id/curriculum/courses", c.batch.AddCourse)
	rg.DELETE("/batches/:id/curriculum/courses/:courseId", c.batch.RemoveCourse)
}
