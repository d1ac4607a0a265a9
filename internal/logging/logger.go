package logging

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fields is a convenience alias for structured log context.
type Fields map[string]interface{}

// Logger wraps a zap logger behind a small leveled API so callers do not
// depend on zap directly.
type Logger struct {
	mu          sync.RWMutex
	base        *zap.Logger
	atomicLevel zap.AtomicLevel
}

type Entry struct {
	logger *Logger
	fields []zap.Field
}

var std = New()

func New() *Logger {
	atomicLevel := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		atomicLevel,
	)

	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
	return &Logger{base: base, atomicLevel: atomicLevel}
}

// SetLevel adjusts the minimum emitted level. Accepted values mirror zap's
// level names; unknown values leave the level unchanged.
func (l *Logger) SetLevel(level string) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.atomicLevel.SetLevel(parsed)
}

func (l *Logger) WithField(key string, value interface{}) *Entry {
	return &Entry{logger: l, fields: []zap.Field{zap.Any(key, value)}}
}

func (l *Logger) WithFields(fields Fields) *Entry {
	return &Entry{logger: l, fields: toZapFields(fields)}
}

func (l *Logger) WithError(err error) *Entry {
	return &Entry{logger: l, fields: []zap.Field{zap.Error(err)}}
}

func (l *Logger) Debug(args ...interface{}) { l.base.Debug(fmt.Sprint(args...)) }
func (l *Logger) Info(args ...interface{})  { l.base.Info(fmt.Sprint(args...)) }
func (l *Logger) Warn(args ...interface{})  { l.base.Warn(fmt.Sprint(args...)) }
func (l *Logger) Error(args ...interface{}) { l.base.Error(fmt.Sprint(args...)) }

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.base.Debug(fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.base.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.base.Warn(fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.base.Error(fmt.Sprintf(format, args...))
}

func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.base.Fatal(fmt.Sprintf(format, args...))
}

func (e *Entry) Debug(args ...interface{}) { e.logger.base.Debug(fmt.Sprint(args...), e.fields...) }
func (e *Entry) Info(args ...interface{})  { e.logger.base.Info(fmt.Sprint(args...), e.fields...) }
func (e *Entry) Warn(args ...interface{})  { e.logger.base.Warn(fmt.Sprint(args...), e.fields...) }
func (e *Entry) Error(args ...interface{}) { e.logger.base.Error(fmt.Sprint(args...), e.fields...) }

func (e *Entry) Infof(format string, args ...interface{}) {
	e.logger.base.Info(fmt.Sprintf(format, args...), e.fields...)
}

func (e *Entry) Warnf(format string, args ...interface{}) {
	e.logger.base.Warn(fmt.Sprintf(format, args...), e.fields...)
}

func (e *Entry) Errorf(format string, args ...interface{}) {
	e.logger.base.Error(fmt.Sprintf(format, args...), e.fields...)
}

func (e *Entry) WithField(key string, value interface{}) *Entry {
	return &Entry{logger: e.logger, fields: append(append([]zap.Field{}, e.fields...), zap.Any(key, value))}
}

func toZapFields(fields Fields) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

// Package-level helpers delegating to the shared logger.

func SetLevel(level string) { std.SetLevel(level) }

func WithField(key string, value interface{}) *Entry { return std.WithField(key, value) }
func WithFields(fields Fields) *Entry                { return std.WithFields(fields) }
func WithError(err error) *Entry                     { return std.WithError(err) }

func Debug(args ...interface{}) { std.Debug(args...) }
func Info(args ...interface{})  { std.Info(args...) }
func Warn(args ...interface{})  { std.Warn(args...) }
func Error(args ...interface{}) { std.Error(args...) }

func Debugf(format string, args ...interface{}) { std.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { std.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { std.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { std.Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { std.Fatalf(format, args...) }
