package log

import (
	"io"
	stdlog "log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var logger = New(os.Stderr)

// Logger wraps zerolog with key/value style metadata.
type Logger struct {
	log zerolog.Logger
}

func New(out io.Writer) *Logger {
	zl := zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	return &Logger{log: zl}
}

// SetOutput replaces the package logger.
func SetOutput(out io.Writer) {
	logger = New(out)
}

// SetLevel sets logging level. The name is case-insensitive, unknown values fall back to info.
func SetLevel(level string) {
	level = strings.ToLower(strings.TrimSpace(level))
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// withFields attaches metadata given as alternating keys and values. A trailing key
// without a value is dropped.
func withFields(e *zerolog.Event, metadata []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(metadata); i += 2 {
		key, ok := metadata[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, metadata[i+1])
	}
	return e
}

func (l *Logger) Debug(msg string, metadata ...interface{}) {
	withFields(l.log.Debug(), metadata).Msg(msg)
}

func (l *Logger) Info(msg string, metadata ...interface{}) {
	withFields(l.log.Info(), metadata).Msg(msg)
}

func (l *Logger) Warn(msg string, metadata ...interface{}) {
	withFields(l.log.Warn(), metadata).Msg(msg)
}

func (l *Logger) Error(msg string, metadata ...interface{}) {
	withFields(l.log.Error(), metadata).Msg(msg)
}

func (l *Logger) Fatal(msg string, metadata ...interface{}) {
	withFields(l.log.Error(), metadata).Msg(msg)
	stdlog.Fatal(msg)
}

func Debug(msg string, metadata ...interface{}) { logger.Debug(msg, metadata...) }
func Info(msg string, metadata ...interface{})  { logger.Info(msg, metadata...) }
func Warn(msg string, metadata ...interface{})  { logger.Warn(msg, metadata...) }
func Error(msg string, metadata ...interface{}) { logger.Error(msg, metadata...) }
func Fatal(msg string, metadata ...interface{}) { logger.Fatal(msg, metadata...) }
