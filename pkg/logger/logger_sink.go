package logger

import (
	"fmt"
	"sync"

	"idp-node/pkg/utilities/timeutil"

	"github.com/rs/zerolog"
)

type SinkFunc func(msg string, level zerolog.Level, timestamp timeutil.TimeUTC)

// sinkHolder is shared between a logger and every child derived from it,
// so a sink attached after startup still sees entries of child loggers.
type sinkHolder struct {
	mu       sync.RWMutex
	fn       SinkFunc
	minLevel zerolog.Level
}

// AddSinkToLoggerInstance forwards entries at or above minLevel to sinkFunction.
func AddSinkToLoggerInstance(loggerInstance *Logger, minLevel zerolog.Level, sinkFunction SinkFunc) {
	loggerInstance.sink.mu.Lock()
	defer loggerInstance.sink.mu.Unlock()

	loggerInstance.sink.fn = sinkFunction
	loggerInstance.sink.minLevel = minLevel
}

func (l *Logger) activateSinkFormatted(level zerolog.Level, format string, v ...interface{}) {
	if !l.sinkEnabled(level) {
		return
	}
	l.activateSink(level, fmt.Sprintf(format, v...))
}

func (l *Logger) activateSink(level zerolog.Level, msg string) {
	if !l.sinkEnabled(level) {
		return
	}

	l.sink.mu.RLock()
	fn := l.sink.fn
	l.sink.mu.RUnlock()

	fn(msg, level, timeutil.NowUTC())
}

func (l *Logger) sinkEnabled(level zerolog.Level) bool {
	if l.sink == nil {
		return false
	}

	l.sink.mu.RLock()
	defer l.sink.mu.RUnlock()
	return l.sink.fn != nil && level >= l.sink.minLevel
}
