package database

import (
	"fmt"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig, debug bool) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := SetupJoinTables(db); err != nil {
		return nil, err
	}

	logger.Log.Info("Database connection established")
	return db, nil
}

// SetupJoinTables 自定义中间表需要在迁移和关联操作之前注册
func SetupJoinTables(db *gorm.DB) error {
	return db.SetupJoinTable(&model.Course{}, "Instructors", &model.CourseInstructor{})
}

// Migrate 建表并写入初始数据
func Migrate(db *gorm.DB, seed config.SeedConfig) error {
	err := db.AutoMigrate(
		&model.Permission{},
		&model.Role{},
		&model.User{},
		&model.UserPassword{},
		&model.Course{},
		&model.CourseInstructor{},
		&model.Module{},
		&model.Lecture{},
		&model.Resource{},
		&model.Assessment{},
		&model.AssessmentQuestion{},
		&model.AssessmentResponse{},
		&model.Grade{},
		&model.AssessmentScreenSession{},
		&model.Batch{},
		&model.Curriculum{},
		&model.Quarter{},
		&model.CalendarEvent{},
	)
	if err != nil {
		return err
	}

	logger.Log.Info("Database migration completed")

	if err := seedRoles(db); err != nil {
		return err
	}
	return seedAdmin(db, seed)
}

var defaultPermissions = map[model.RoleName][]string{
	model.Admin: {
		"users.manage", "courses.manage", "batches.manage", "calendar.manage",
		"assessments.manage", "grades.manage", "dashboard.admin",
	},
	model.Trainer: {
		"courses.teach", "assessments.manage", "grades.manage", "calendar.manage",
		"proctoring.monitor", "dashboard.trainer",
	},
	model.Trainee: {
		"courses.view", "quizzes.take", "grades.view", "calendar.view", "dashboard.trainee",
	},
}

func seedRoles(db *gorm.DB) error {
	for _, name := range model.AllRoles {
		var role model.Role
		if err := db.Where(model.Role{Name: name}).FirstOrCreate(&role).Error; err != nil {
			return err
		}

		perms := make([]model.Permission, 0, len(defaultPermissions[name]))
		for _, code := range defaultPermissions[name] {
			var p model.Permission
			if err := db.Where(model.Permission{Code: code}).FirstOrCreate(&p).Error; err != nil {
				return err
			}
			perms = append(perms, p)
		}
		if err := db.Model(&role).Association("Permissions").Replace(perms); err != nil {
			return err
		}
	}
	return nil
}

func seedAdmin(db *gorm.DB, seed config.SeedConfig) error {
	if seed.AdminEmail == "" || seed.AdminPassword == "" {
		return nil
	}

	var count int64
	db.Model(&model.User{}).Count(&count)
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seed.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var role model.Role
		if err := tx.Where("name = ?", model.Admin).First(&role).Error; err != nil {
			return err
		}
		admin := &model.User{Name: "Administrator", Email: seed.AdminEmail, IsActive: true, Roles: []model.Role{role}}
		if err := tx.Create(admin).Error; err != nil {
			return err
		}
		logger.Log.Info("Seeded admin user", zap.String("email", admin.Email))
		return tx.Create(&model.UserPassword{UserID: admin.ID, Hash: string(hash), IsCurrent: model.CurrentFlag()}).Error
	})
}
