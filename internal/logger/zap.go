package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap's SugaredLogger.
type Logger struct {
	*zap.SugaredLogger
}

// defaultZapLevel defines the fallback log level when an unknown level string is provided.
const defaultZapLevel = zapcore.DebugLevel

// level is shared by every logger built here so SetLevel applies after Get.
var level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// toZapLevel converts a textual level to zapcore.Level using known level constants.
func toZapLevel(levelStr string) zapcore.Level {
	switch levelStr {
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return defaultZapLevel
	}
}

// newConsoleCore builds a zapcore.Core with a console encoder targeting stdout.
func newConsoleCore(lvl zap.AtomicLevel) zapcore.Core {
	return newCore(zapcore.Lock(os.Stdout), lvl) // thread-safe writer
}

func newCore(ws zapcore.WriteSyncer, lvl zapcore.LevelEnabler) zapcore.Core {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder

	encoder := zapcore.NewConsoleEncoder(cfg)
	return zapcore.NewCore(encoder, ws, lvl)
}

// newZapLogger constructs a sugared zap logger with the provided level string.
func newZapLogger(levelStr string) *Logger {
	level.SetLevel(toZapLevel(levelStr))
	core := newConsoleCore(level)
	return &Logger{
		SugaredLogger: zap.New(core).Sugar(),
	}
}

// SetLevel changes the level of every logger returned by Get.
func SetLevel(levelStr string) {
	level.SetLevel(toZapLevel(levelStr))
}

// Named returns a child logger whose entries carry the given component name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.Named(name)}
}

// NewFile returns a logger appending to path, for programs that own the terminal.
// Its level is fixed and not affected by SetLevel.
func NewFile(path, levelStr string) (*Logger, func() error, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	core := newCore(zapcore.Lock(f), toZapLevel(levelStr))
	return &Logger{SugaredLogger: zap.New(core).Sugar()}, f.Close, nil
}
