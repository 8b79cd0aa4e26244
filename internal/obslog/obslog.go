// Package obslog is the engine's diagnostic logging wrapper. It is purely
// observational: nothing in the engine branches on what gets logged, and a
// caller that never configures one gets a no-op logger. Grounded on
// packetd's logger/logger.go (Options with stdout/level/file/rotation
// fields, a toZapLevel mapping, a *zap.SugaredLogger underneath).
package obslog

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is a logging verbosity, matching packetd's string-keyed levels.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

func toZapLevel(l Level) zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Options configures a file- or stdout-backed Logger.
type Options struct {
	Stdout     bool
	Level      Level
	Filename   string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
}

// Logger is the interface the engine accepts as an optional constructor
// argument. Connection calls these directly on frame/state transitions
// that are useful to trace but that don't warrant an Observer callback.
type Logger interface {
	Debugf(template string, args ...any)
	Infof(template string, args ...any)
	Warnf(template string, args ...any)
	Errorf(template string, args ...any)
}

type zapLogger struct {
	sugared *zap.SugaredLogger
}

func (l zapLogger) Debugf(template string, args ...any) { l.sugared.Debugf(template, args...) }
func (l zapLogger) Infof(template string, args ...any)  { l.sugared.Infof(template, args...) }
func (l zapLogger) Warnf(template string, args ...any)  { l.sugared.Warnf(template, args...) }
func (l zapLogger) Errorf(template string, args ...any) { l.sugared.Errorf(template, args...) }

// New builds a Logger from opt, writing to a rotated file via lumberjack,
// or to stdout when opt.Stdout is set, opt.Filename is empty, or the
// file's directory cannot be created.
func New(opt Options) Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Local().Format("2006-01-02 15:04:05.000"))
	}
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	var w zapcore.WriteSyncer
	if opt.Stdout || opt.Filename == "" {
		w = zapcore.AddSync(os.Stdout)
	} else {
		if err := os.MkdirAll(filepath.Dir(opt.Filename), os.ModePerm); err != nil {
			w = zapcore.AddSync(os.Stdout)
		} else {
			w = zapcore.AddSync(&lumberjack.Logger{
				Filename:   opt.Filename,
				MaxSize:    opt.MaxSizeMB,
				MaxBackups: opt.MaxBackups,
				MaxAge:     opt.MaxAgeDays,
				LocalTime:  true,
			})
		}
	}

	core := zapcore.NewCore(encoder, w, toZapLevel(opt.Level))
	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return zapLogger{sugared: logger.Sugar()}
}

// nopLogger discards everything; used when an embedder configures no
// Logger at all.
type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// Nop is the shared no-op Logger.
var Nop Logger = nopLogger{}
