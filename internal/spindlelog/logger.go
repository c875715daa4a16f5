// Package spindlelog provides the daemon's always-on, rotating structured
// logger. It generalizes the conditional, hand-rolled KV-line logger the
// daemon's ancestor used for a one-shot CLI (enabled only behind a --debug
// flag, one unrotated file per run) into a long-lived daemon logger: always
// on, size-rotated, built on the ecosystem's structured logging library
// instead of a bespoke formatter.
package spindlelog

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps a zap.SugaredLogger with the component/kv convention used
// throughout the daemon.
type Logger struct {
	sugar *zap.SugaredLogger
}

var (
	global   *Logger
	globalMu sync.RWMutex
)

// Init creates the rotating daemon log at path and installs it as the
// package-level global logger. Safe to call more than once (e.g. in tests);
// the previous logger is replaced.
func Init(path string) (*Logger, error) {
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    20, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	core := zapcore.NewCore(encoder, zapcore.AddSync(rotator), zap.InfoLevel)
	logger := zap.New(core)

	l := &Logger{sugar: logger.Sugar()}
	globalMu.Lock()
	global = l
	globalMu.Unlock()
	return l, nil
}

// NewDiscard returns a Logger that drops everything, for use in tests.
func NewDiscard() *Logger {
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(discardWriter{}), zapcore.FatalLevel+1)
	return &Logger{sugar: zap.New(core).Sugar()}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Global returns the process-wide logger, initializing a discard logger if
// Init was never called (keeps library code panic-free in tests).
func Global() *Logger {
	globalMu.RLock()
	l := global
	globalMu.RUnlock()
	if l == nil {
		return NewDiscard()
	}
	return l
}

// Infow logs an informational line: component, message, then alternating
// key/value pairs — the same convention as the ancestor CLI's LogKV.
func (l *Logger) Infow(component, msg string, kv ...any) {
	l.sugar.Infow(msg, append([]any{"component", component}, kv...)...)
}

// Warnw logs a warning line.
func (l *Logger) Warnw(component, msg string, kv ...any) {
	l.sugar.Warnw(msg, append([]any{"component", component}, kv...)...)
}

// Errorw logs an error line.
func (l *Logger) Errorw(component, msg string, kv ...any) {
	l.sugar.Errorw(msg, append([]any{"component", component}, kv...)...)
}

// Sync flushes buffered log entries. Call before process exit.
func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}
