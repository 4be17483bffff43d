package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"leviathan/internal/config"
)

var (
	base   = newConsoleLogger(zapcore.InfoLevel)
	sugar  = base.Sugar()
	recent = newRecentLines(400)
)

func newConsoleLogger(level zapcore.Level) *zap.Logger {
	core := zapcore.NewCore(consoleEncoder(), zapcore.Lock(os.Stderr), level)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

func consoleEncoder() zapcore.Encoder {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(enc)
}

// createLogFilePath generates a log file path with the current date
func createLogFilePath(logDir, prefix string) string {
	currentDate := time.Now().Format("2006-01-02")
	return filepath.Join(logDir, fmt.Sprintf("%s-%s.log", prefix, currentDate))
}

// createRotatingLogger creates a lumberjack rotating logger
func createRotatingLogger(logFilePath string, cfg *config.Config) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    cfg.Logger.Rotation.MaxSize,
		MaxBackups: cfg.Logger.Rotation.MaxBackups,
		MaxAge:     cfg.Logger.Rotation.MaxAge,
		Compress:   cfg.Logger.Rotation.Compress,
	}
}

// ParseLevel maps the configured level names onto zap levels.
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "FATAL":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Setup configures logging to a rotating file, optionally stdout, and the
// in-memory buffer of recent lines served by the admin API.
func Setup(cfg *config.Config) error {
	logDir := cfg.Logger.Directory

	// Create log directory if it doesn't exist
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logFilePath := createLogFilePath(logDir, "leviathan")
	rotatingLogger := createRotatingLogger(logFilePath, cfg)

	level := ParseLevel(cfg.Logger.Level)
	recent = newRecentLines(cfg.Logger.RecentLines)

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(rotatingLogger), level),
		zapcore.NewCore(consoleEncoder(), zapcore.AddSync(recent), level),
	}
	if cfg.Logger.Console {
		cores = append(cores, zapcore.NewCore(consoleEncoder(), zapcore.Lock(os.Stdout), level))
	}

	replace(zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1)))

	Infof("Logging initialized: writing to %s", logFilePath)
	return nil
}

// SetOutput points logging at w only. Used by tests.
func SetOutput(w io.Writer, level zapcore.Level) {
	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder(), zapcore.AddSync(w), level),
		zapcore.NewCore(consoleEncoder(), zapcore.AddSync(recent), level),
	)
	replace(zap.New(core, zap.AddCallerSkip(1)))
}

func replace(l *zap.Logger) {
	base = l
	sugar = l.Sugar()
	zap.ReplaceGlobals(l.WithOptions(zap.AddCallerSkip(-1)))
	zap.RedirectStdLog(l.WithOptions(zap.AddCallerSkip(-1)))
}

// Named returns a structured logger for a component.
func Named(name string) *zap.Logger {
	return base.WithOptions(zap.AddCallerSkip(-1)).Named(name)
}

// RecentLines returns the most recent formatted log lines, oldest first.
func RecentLines() []string {
	return recent.Lines()
}

func Sync() {
	_ = base.Sync()
}

func Debugf(format string, args ...interface{}) { sugar.Debugf(format, args...) }

func Info(args ...interface{}) { sugar.Info(args...) }

func Infof(format string, args ...interface{}) { sugar.Infof(format, args...) }

func Warning(args ...interface{}) { sugar.Warn(args...) }

func Warningf(format string, args ...interface{}) { sugar.Warnf(format, args...) }

func Error(args ...interface{}) { sugar.Error(args...) }

func Errorf(format string, args ...interface{}) { sugar.Errorf(format, args...) }

func Fatalf(format string, args ...interface{}) { sugar.Fatalf(format, args...) }
