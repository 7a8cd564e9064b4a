package app

import (
	"context"
	"lms_backend/internal/config"
	"lms_backend/internal/controller"
	"lms_backend/internal/repository"
	"lms_backend/internal/service"
	"lms_backend/pkg/configwatcher"
	"lms_backend/pkg/database"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/mail"
	"lms_backend/pkg/monitoring"
	"lms_backend/pkg/security"
	"lms_backend/pkg/tracing"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ConfigDir 配置文件目录，热更新时监听该目录
const ConfigDir = "configs"

const sweepInterval = time.Minute

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	limiter         *security.IPRateLimiter
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)

	ctx    context.Context
	cancel context.CancelFunc
}

type repositories struct {
	user       *repository.UserRepository
	course     *repository.CourseRepository
	assessment *repository.AssessmentRepository
	proctor    *repository.ProctorRepository
	draft      *repository.DraftRepository
	cache      *repository.CacheRepository
	batch      *repository.BatchRepository
	calendar   *repository.CalendarRepository
}

type services struct {
	auth       *service.AuthService
	user       *service.UserService
	storage    *service.StorageService
	course     *service.CourseService
	assessment *service.AssessmentService
	ai         *service.AIService
	generation *service.QuizGenerationService
	policy     *service.ProctorPolicy
	hub        *service.ProctorHub
	quiz       *service.QuizService
	batch      *service.BatchService
	calendar   *service.CalendarService
	dashboard  *service.DashboardService
}

type controllers struct {
	auth       *controller.AuthController
	user       *controller.UserController
	course     *controller.CourseController
	assessment *controller.AssessmentController
	quiz       *controller.QuizController
	batch      *controller.BatchController
	calendar   *controller.CalendarController
	dashboard  *controller.DashboardController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	keys := database.KeySpace(a.Config.Redis.KeyPrefix)
	return &repositories{
		user:       repository.NewUserRepository(db),
		course:     repository.NewCourseRepository(db),
		assessment: repository.NewAssessmentRepository(db),
		proctor:    repository.NewProctorRepository(db),
		draft:      repository.NewDraftRepository(rdb, keys),
		cache:      repository.NewCacheRepository(rdb, keys),
		batch:      repository.NewBatchRepository(db),
		calendar:   repository.NewCalendarRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.user = service.NewUserService(repos.user, mail.NewSender(cfg.Mail), cfg.Mail.AppName)
	s.course = service.NewCourseService(repos.course, repos.user, s.storage)
	s.assessment = service.NewAssessmentService(repos.assessment, repos.proctor, s.course)

	s.ai = service.NewAIService(cfg.AI)
	s.generation = service.NewQuizGenerationService(s.ai, s.assessment, repos.assessment, s.storage)

	s.policy = service.NewProctorPolicy(cfg.Proctor)
	s.hub = service.NewProctorHub()
	s.quiz = service.NewQuizService(repos.proctor, repos.draft, s.storage, s.hub, s.policy)

	s.batch = service.NewBatchService(repos.batch, repos.user, repos.course)
	s.calendar = service.NewCalendarService(repos.calendar, repos.batch)
	s.dashboard = service.NewDashboardService(
		repos.user,
		repos.course,
		repos.batch,
		repos.assessment,
		repos.proctor,
		repos.calendar,
		repos.cache,
	)

	// 热更新：AI 接入参数和监考策略
	a.RegisterConfigCallback(func(newCfg *config.Config) {
		s.ai.Reload(newCfg.AI)
		s.policy.Reload(newCfg.Proctor)
	})

	return s
}

func (a *App) initControllers(s *services, repos *repositories, db *gorm.DB) *controllers {
	return &controllers{
		auth:       controller.NewAuthController(s.auth),
		user:       controller.NewUserController(s.user),
		course:     controller.NewCourseController(s.course),
		assessment: controller.NewAssessmentController(s.assessment, s.generation),
		quiz:       controller.NewQuizController(s.quiz, s.assessment, s.hub),
		batch:      controller.NewBatchController(s.batch),
		calendar:   controller.NewCalendarController(s.calendar),
		dashboard:  controller.NewDashboardController(s.dashboard),
		health:     controller.NewHealthController(db, repos.cache),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	a.limiter = security.NewIPRateLimiter(cfg.RateLimit.MaxRequests, window)
	router.Use(a.limiter.Middleware())

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) startBackgroundTasks(s *services) {
	go s.hub.Run(a.ctx)
	go a.limiter.Run(a.ctx)

	// 超时未交卷的会话自动交卷
	go s.quiz.RunSweeper(a.ctx, sweepInterval)

	go func() {
		err := configwatcher.WatchConfig(a.ctx, ConfigDir, func(newCfg *config.Config) {
			for _, cb := range a.configCallbacks {
				cb(newCfg)
			}
		})
		if err != nil {
			logger.Log.Error("Config watcher stopped", zap.Error(err))
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == "debug")
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// release 模式下默认不迁移，需要 -migrate 显式开启
	if cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode {
		if err := database.Migrate(db, cfg.Seed); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}
	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}
	app.Redis = rdb
	app.ctx, app.cancel = context.WithCancel(context.Background())

	repos := app.initRepositories(db, rdb)
	services := app.initServices(repos, cfg)
	app.services = services
	controllers := app.initControllers(services, repos, db)

	// 监控初始化
	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Tracing)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "" || cfg.Storage.Type == "local" {
		if err := os.MkdirAll(cfg.Storage.LocalPath, os.ModePerm); err != nil {
			logger.Log.Warn("Failed to create upload directory", zap.Error(err))
		}
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(services)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	// 停止后台任务，关闭监考 WebSocket 连接
	a.cancel()

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}

	logger.Log.Info("Server exiting")
}
