package scheduler

import (
	"github.com/robfig/cron/v3"

	"TdxBridge/internal/logging"
)

// cronLogger routes cron's internal logging through zerolog.
type cronLogger struct {
	l *logging.Logger
}

var _ cron.Logger = cronLogger{}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
