package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Logger is a thin wrapper over zap's sugared logger so call sites stay
// on keysAndValues pairs without importing zap directly.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New builds a logger for the given mode ("prod"/"production" selects the
// JSON production encoder, anything else the console development one).
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{sugar: zl.Sugar()}, nil
}

// Nop returns a logger that discards everything. Used by tests.
func Nop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

func (l *Logger) Sync() { _ = l.sugar.Sync() }

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(keysAndValues...)}
}
