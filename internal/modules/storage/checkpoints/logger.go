package checkpoints

import (
	"fmt"

	"go.uber.org/zap"
)

// badgerLogger satisfies badger.Logger on top of zap.
type badgerLogger struct {
	logger *zap.Logger
}

func newBadgerLogger(logger *zap.Logger) *badgerLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &badgerLogger{logger: logger.With(zap.String("component", "checkpoints"))}
}

func (l *badgerLogger) Errorf(msg string, args ...any) {
	l.logger.Error(fmt.Sprintf(msg, args...))
}

func (l *badgerLogger) Warningf(msg string, args ...any) {
	l.logger.Warn(fmt.Sprintf(msg, args...))
}

func (l *badgerLogger) Infof(msg string, args ...any) {
	l.logger.Info(fmt.Sprintf(msg, args...))
}

func (l *badgerLogger) Debugf(msg string, args ...any) {
	l.logger.Debug(fmt.Sprintf(msg, args...))
}
