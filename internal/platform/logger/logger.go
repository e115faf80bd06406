package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yungbote/workload-harness/internal/signals"
)

type Logger struct {
	SugaredLogger *zap.SugaredLogger
}

type options struct {
	filePath string
	hook     func(zapcore.Entry) error
}

type Option func(*options)

// WithFile tees log output into path (typically <run_output>/run.log) in
// addition to stderr. The directory must already exist.
func WithFile(path string) Option {
	return func(o *options) { o.filePath = path }
}

// WithBus forwards warn/error entries to the diagnostic signal channels.
// Observers of those channels (the executor's "errors occurred" flags) see
// every warning or error logged anywhere in the harness.
func WithBus(bus *signals.Bus) Option {
	return func(o *options) {
		o.hook = func(e zapcore.Entry) error {
			switch {
			case e.Level >= zapcore.ErrorLevel:
				bus.Emit(signals.ErrorLogged, nil, e.Message)
			case e.Level == zapcore.WarnLevel:
				bus.Emit(signals.WarningLogged, nil, e.Message)
			}
			return nil
		}
	}
}

func New(mode string, opts ...Option) (*Logger, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	if o.filePath != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, o.filePath)
	}

	var zopts []zap.Option
	if o.hook != nil {
		zopts = append(zopts, zap.Hooks(o.hook))
	}
	zapLogger, err := cfg.Build(zopts...)
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: zapLogger.Sugar()}, nil
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, keysAndValues...)
}
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, keysAndValues...)
}
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, keysAndValues...)
}
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, keysAndValues...)
}
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Fatalw(msg, keysAndValues...)
}
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(keysAndValues...)}
}

// Nop returns a logger that discards everything. Used by tests.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}
