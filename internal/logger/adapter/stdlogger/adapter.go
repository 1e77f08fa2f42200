// Package stdlogger bridges printf style loggers, such as gorm's, onto zerolog.
package stdlogger

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger forwards formatted messages to the global zerolog logger.
type Logger struct {
	component string
}

// New returns a Logger tagging every entry with the given component name.
func New(component ...string) *Logger {
	l := &Logger{}
	if len(component) > 0 {
		l.component = component[0]
	}

	return l
}

func (l *Logger) event(level zerolog.Level) *zerolog.Event {
	e := log.WithLevel(level)
	if l.component != "" {
		e = e.Str("component", l.component)
	}

	return e
}

// Debugf logs on debug level.
func (l *Logger) Debugf(format string, v ...any) {
	l.event(zerolog.DebugLevel).Msgf(format, v...)
}

// Infof logs on info level.
func (l *Logger) Infof(format string, v ...any) {
	l.event(zerolog.InfoLevel).Msgf(format, v...)
}

// Warningf logs on warn level.
func (l *Logger) Warningf(format string, v ...any) {
	l.event(zerolog.WarnLevel).Msgf(format, v...)
}

// Errorf logs on error level.
func (l *Logger) Errorf(format string, v ...any) {
	l.event(zerolog.ErrorLevel).Msgf(format, v...)
}

// Printf satisfies gorm's logger.Writer. gorm prefixes slow queries and
// failures with its own markers, those are raised to warn.
func (l *Logger) Printf(format string, v ...any) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))

	level := zerolog.InfoLevel
	if strings.Contains(msg, "SLOW SQL") || strings.Contains(msg, "[error]") || strings.Contains(msg, "[warn]") {
		level = zerolog.WarnLevel
	}

	l.event(level).Msg(msg)
}
