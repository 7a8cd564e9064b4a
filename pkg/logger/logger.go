package logger

import (
	"lms_backend/internal/config"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ServiceName 写入每条日志的 service 字段
const ServiceName = "lms-backend"

// Log 在 InitLogger 之前为空操作 logger，测试中无需初始化
var Log = zap.NewNop()

func InitLogger(cfg *config.Config) {
	Log = New(cfg.Log, cfg.Server.Mode)
}

// New 按配置构建 logger：文件输出 JSON，控制台输出可读格式
func New(cfg config.LogConfig, mode string) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	level := ParseLevel(cfg.Level, mode)

	var cores []zapcore.Core
	if cfg.File != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 30),
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), fileWriter, level))
	}
	if cfg.Console {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(os.Stdout), level))
	}
	if len(cores) == 0 {
		return zap.NewNop()
	}

	return zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zap.ErrorLevel),
		zap.Fields(zap.String("service", ServiceName), zap.String("mode", mode)),
	)
}

// ParseLevel 未配置或无法识别时 debug 模式用 Debug，其余用 Info
func ParseLevel(level, mode string) zapcore.Level {
	if level != "" {
		var l zapcore.Level
		if err := l.UnmarshalText([]byte(strings.ToLower(level))); err == nil {
			return l
		}
	}
	if mode == "debug" {
		return zap.DebugLevel
	}
	return zap.InfoLevel
}

// Named 组件子 logger，如 Named("sweeper")
func Named(component string) *zap.Logger {
	return Log.Named(component)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
