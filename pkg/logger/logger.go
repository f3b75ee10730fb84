package logger

import (
	"go.uber.org/zap"
)

type LogLevel string

const (
	Development LogLevel = "development"
	Production  LogLevel = "production"
)

// Logger is the logging surface the SDK components accept. Components never
// write to stdout directly; pass a NoOpLogger (or nil, see EnsureLogger) to
// silence them.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Debugf(format string, args ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Infof(format string, args ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Warnf(format string, args ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(msg string, keysAndValues ...interface{})
	Fatalf(format string, args ...interface{})

	With(keysAndValues ...interface{}) Logger
	Sync() error
}

type ZapLogger struct {
	logger *zap.SugaredLogger
}

var _ Logger = (*ZapLogger)(nil)

// NewZapLogger builds a zap-backed Logger. Development gets the console
// encoder and debug level, production gets sampled JSON at info level.
func NewZapLogger(env LogLevel) (Logger, error) {
	var config zap.Config
	if env == Production {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	zl, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &ZapLogger{logger: zl.Sugar()}, nil
}

func (z *ZapLogger) Debug(msg string, keysAndValues ...interface{}) {
	z.logger.Debugw(msg, keysAndValues...)
}

func (z *ZapLogger) Debugf(format string, args ...interface{}) {
	z.logger.Debugf(format, args...)
}

func (z *ZapLogger) Info(msg string, keysAndValues ...interface{}) {
	z.logger.Infow(msg, keysAndValues...)
}

func (z *ZapLogger) Infof(format string, args ...interface{}) {
	z.logger.Infof(format, args...)
}

func (z *ZapLogger) Warn(msg string, keysAndValues ...interface{}) {
	z.logger.Warnw(msg, keysAndValues...)
}

func (z *ZapLogger) Warnf(format string, args ...interface{}) {
	z.logger.Warnf(format, args...)
}

func (z *ZapLogger) Error(msg string, keysAndValues ...interface{}) {
	z.logger.Errorw(msg, keysAndValues...)
}

func (z *ZapLogger) Errorf(format string, args ...interface{}) {
	z.logger.Errorf(format, args...)
}

func (z *ZapLogger) Fatal(msg string, keysAndValues ...interface{}) {
	z.logger.Fatalw(msg, keysAndValues...)
}

func (z *ZapLogger) Fatalf(format string, args ...interface{}) {
	z.logger.Fatalf(format, args...)
}

func (z *ZapLogger) With(keysAndValues ...interface{}) Logger {
	return &ZapLogger{logger: z.logger.With(keysAndValues...)}
}

func (z *ZapLogger) Sync() error {
	return z.logger.Sync()
}
