// Package logger exposes process-wide slog loggers backed by a zap core.
package logger

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes how the application logger should behave.
type Config struct {
	Level       string         `json:"level"`
	Format      string         `json:"format"`
	OutputPaths []string       `json:"output_paths"`
	File        RotationConfig `json:"file"`
	Audit       AuditConfig    `json:"audit"`
}

// RotationConfig bounds the size and retention of file outputs.
type RotationConfig struct {
	MaxSizeMB  int  `json:"max_size_mb"`
	MaxBackups int  `json:"max_backups"`
	MaxAgeDays int  `json:"max_age_days"`
	Compress   bool `json:"compress"`
}

// AuditConfig controls audit log output behaviour.
type AuditConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// Logger bundles an application logger with its audit counterpart.
type Logger struct {
	app   *slog.Logger
	audit *slog.Logger
	cores []*zap.Logger
}

var (
	mu            sync.Mutex
	defaultLogger *Logger
	once          sync.Once
	initErr       error
)

// Init configures the global logger instances. Only the first call has effect.
func Init(cfg Config) error {
	once.Do(func() {
		l, err := New(cfg)
		if err != nil {
			initErr = err
			return
		}
		mu.Lock()
		defaultLogger = l
		mu.Unlock()
	})
	return initErr
}

// New builds a standalone logger without touching the globals.
func New(cfg Config) (*Logger, error) {
	level := parseLevel(cfg.Level)
	core, err := buildCore(cfg, level)
	if err != nil {
		return nil, err
	}
	app := zap.New(core, zap.AddCaller())
	l := &Logger{app: slog.New(zapslog.NewHandler(app.Core())), cores: []*zap.Logger{app}}
	l.audit = l.app

	if cfg.Audit.Enabled {
		audit, err := buildAuditLogger(cfg.Audit)
		if err != nil {
			return nil, err
		}
		l.cores = append(l.cores, audit)
		l.audit = slog.New(zapslog.NewHandler(audit.Core()))
	}
	return l, nil
}

// Slog returns the application logger.
func (l *Logger) Slog() *slog.Logger { return l.app }

// AuditLog returns the audit logger.
func (l *Logger) AuditLog() *slog.Logger { return l.audit }

// Sync flushes buffered entries of every core.
func (l *Logger) Sync() error {
	var err error
	for _, c := range l.cores {
		if syncErr := c.Sync(); syncErr != nil && !isIgnorableSyncErr(syncErr) {
			err = errors.Join(err, syncErr)
		}
	}
	return err
}

func buildCore(cfg Config, level zapcore.Level) (zapcore.Core, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.EqualFold(cfg.Format, "text") || strings.EqualFold(cfg.Format, "console") {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}
	syncers := make([]zapcore.WriteSyncer, 0, len(outputs))
	for _, out := range outputs {
		ws, err := openWriter(out, cfg.File)
		if err != nil {
			return nil, err
		}
		syncers = append(syncers, ws)
	}
	return zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), level), nil
}

func buildAuditLogger(cfg AuditConfig) (*zap.Logger, error) {
	if cfg.Path == "" {
		return nil, errors.New("audit log path cannot be empty when enabled")
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 100
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 7
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 30
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}
	writer := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(writer), zapcore.InfoLevel)
	return zap.New(core), nil
}

func openWriter(path string, rotation RotationConfig) (zapcore.WriteSyncer, error) {
	switch strings.ToLower(path) {
	case "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	default:
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		maxSize := rotation.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSize,
			MaxBackups: rotation.MaxBackups,
			MaxAge:     rotation.MaxAgeDays,
			Compress:   rotation.Compress,
		}), nil
	}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// stdout/stderr return EINVAL or ENOTTY on Sync for terminals and pipes.
func isIgnorableSyncErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "invalid argument") || strings.Contains(msg, "inappropriate ioctl")
}

func current() *Logger {
	mu.Lock()
	l := defaultLogger
	mu.Unlock()
	if l != nil {
		return l
	}
	_ = Init(Config{})
	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		// Init failed with a broken config; fall back to stderr so callers never see nil.
		defaultLogger = &Logger{app: slog.New(slog.NewJSONHandler(os.Stderr, nil))}
		defaultLogger.audit = defaultLogger.app
	}
	return defaultLogger
}

// L returns the structured logger instance.
func L() *slog.Logger {
	return current().app
}

// Audit returns the audit logger.
func Audit() *slog.Logger {
	return current().audit
}

// Sync flushes buffered log entries to their outputs.
func Sync() error {
	mu.Lock()
	l := defaultLogger
	mu.Unlock()
	if l == nil {
		return nil
	}
	return l.Sync()
}

// Named returns a child logger tagged with the provided component name.
func Named(name string) *slog.Logger {
	return L().With(slog.String("component", name))
}
